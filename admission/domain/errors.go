package domain

import "errors"

var (
	// ErrPolicyUnavailable indica store de política/estado inacessível
	// (timeout, conexão, permissão).
	ErrPolicyUnavailable  = errors.New("policy store unavailable")
	ErrCategoryNotAllowed = errors.New("category not allowed")
	ErrQuotaExceeded      = errors.New("submission quota exceeded")
	// ErrConflict indica que o registro mudou entre a leitura e a escrita (CAS).
	ErrConflict = errors.New("conflict")
	ErrNotFound = errors.New("not found")
	// ErrInvalidPolicy indica valores fora do permitido numa escrita de política.
	ErrInvalidPolicy = errors.New("invalid policy")
)
