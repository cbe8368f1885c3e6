package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"aspirasi-gateway/admission/domain"
	"aspirasi-gateway/identity"
)

const (
	DefaultTimeout    = 3 * time.Second
	DefaultMaxRetries = 5
)

// VerdictObserver recebe toda decisão produzida pelo Service (métricas).
type VerdictObserver interface {
	ObserveVerdict(v domain.Verdict)
}

// Reservation é o resultado de Reserve.
//
// Committed indica que State foi gravado; só reservas gravadas podem ser
// desfeitas por Release.
type Reservation struct {
	Verdict      domain.Verdict
	IPHash       string
	TrackingCode string
	Previous     *domain.PeriodState
	State        domain.PeriodState
	Committed    bool
}

// Degraded indica que a decisão foi tomada sem a store (fail-open).
func (r Reservation) Degraded() bool { return r.Verdict.Reason == domain.ReasonPolicyUnavailable }

// Service combina a política, o estado por identidade e o motor de decisão.
type Service struct {
	Policies domain.PolicyStore
	Tracker  domain.TrackerStore

	// Timeout limita cada chamada à store; estourar conta como indisponível.
	Timeout time.Duration
	// OnUnavailable decide o veredito quando a store falha.
	OnUnavailable domain.FailureMode
	// MaxRetries limita as tentativas de CAS por identidade.
	MaxRetries int

	Now      func() time.Time
	Logger   *zap.Logger
	Observer VerdictObserver
}

// now trunca em microssegundos, a precisão do postgres.
func (s *Service) now() time.Time {
	t := time.Now()
	if s.Now != nil {
		t = s.Now()
	}
	return t.UTC().Truncate(time.Microsecond)
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *Service) timeout() time.Duration {
	if s.Timeout <= 0 {
		return DefaultTimeout
	}
	return s.Timeout
}

func (s *Service) retries() int {
	if s.MaxRetries <= 0 {
		return DefaultMaxRetries
	}
	return s.MaxRetries
}

// Policy devolve a política normalizada do namespace, ou a padrão quando não
// existe registro. Falhas da store voltam como ErrPolicyUnavailable.
func (s *Service) Policy(ctx context.Context, namespace string) (domain.Policy, error) {
	if s.Policies == nil {
		return domain.DefaultPolicy(), nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	p, found, err := s.Policies.GetPolicy(ctx, namespace)
	if err != nil {
		return domain.Policy{}, unavailable(err)
	}
	if !found {
		return domain.DefaultPolicy(), nil
	}
	return p.Normalize(), nil
}

// UpdatePolicy valida e grava a política (caminho do administrador).
func (s *Service) UpdatePolicy(ctx context.Context, namespace string, p domain.Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if s.Policies == nil {
		return fmt.Errorf("%w: no policy store configured", domain.ErrPolicyUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	if err := s.Policies.PutPolicy(ctx, namespace, p); err != nil {
		return unavailable(err)
	}
	return nil
}

// Check avalia se ipHash pode submeter na categoria, sem gravar nada.
//
// Com a store indisponível e OnUnavailable=FailOpen devolve um veredito
// permitido com ReasonPolicyUnavailable e erro nil. Com FailClosed devolve o
// veredito negado junto de ErrPolicyUnavailable.
func (s *Service) Check(ctx context.Context, namespace, ipHash string, cat domain.Category) (domain.Verdict, error) {
	if ipHash == "" {
		return domain.Verdict{}, identity.ErrInvalidIdentity
	}

	p, err := s.Policy(ctx, namespace)
	if err != nil {
		return s.fallback(ipHash, cat, err)
	}
	if v, final := PreCheck(p, cat); final {
		return s.observe(v), nil
	}

	st, err := s.getState(ctx, namespace, ipHash)
	if err != nil {
		return s.fallback(ipHash, cat, err)
	}
	return s.observe(Decide(p, st, cat, s.now())), nil
}

// Quota devolve a prévia de cota de ipHash sem gravar nada. Falhas da store
// voltam como ErrPolicyUnavailable qualquer que seja OnUnavailable.
func (s *Service) Quota(ctx context.Context, namespace, ipHash string) (domain.Quota, error) {
	if ipHash == "" {
		return domain.Quota{}, identity.ErrInvalidIdentity
	}

	p, err := s.Policy(ctx, namespace)
	if err != nil {
		return domain.Quota{}, err
	}
	st, err := s.getState(ctx, namespace, ipHash)
	if err != nil {
		return domain.Quota{}, err
	}
	return QuotaFor(p, st, s.now()), nil
}

// Reserve decide e grava a submissão numa única escrita condicional por
// identidade. Duas reservas concorrentes da mesma identidade nunca passam
// juntas da cota: a perdedora do CAS relê o estado e decide de novo.
//
// Negações voltam com o veredito preenchido e o erro correspondente
// (ErrCategoryNotAllowed, ErrQuotaExceeded).
func (s *Service) Reserve(ctx context.Context, namespace, ipHash string, cat domain.Category, trackingCode string) (Reservation, error) {
	res := Reservation{IPHash: ipHash, TrackingCode: trackingCode}
	if ipHash == "" {
		return res, identity.ErrInvalidIdentity
	}

	p, err := s.Policy(ctx, namespace)
	if err != nil {
		res.Verdict, err = s.fallback(ipHash, cat, err)
		return res, err
	}

	for attempt := 0; attempt < s.retries(); attempt++ {
		st, err := s.getState(ctx, namespace, ipHash)
		if err != nil {
			res.Verdict, err = s.fallback(ipHash, cat, err)
			return res, err
		}

		now := s.now()
		v := Decide(p, st, cat, now)
		if !v.Allowed {
			res.Verdict = s.observe(v)
			return res, v.Err()
		}

		next := Advance(p, st, ipHash, trackingCode, now)
		saved, err := s.saveState(ctx, namespace, next)
		if errors.Is(err, domain.ErrConflict) {
			s.logger().Debug("admission reserve conflict, retrying",
				zap.String("ip_hash", ipHash),
				zap.Int("attempt", attempt+1),
			)
			continue
		}
		if err != nil {
			res.Verdict, err = s.fallback(ipHash, cat, err)
			return res, err
		}

		res.Verdict = s.observe(v)
		res.Previous = st
		res.State = saved
		res.Committed = true
		return res, nil
	}

	return res, fmt.Errorf("reserve %s: %w after %d attempts", ipHash, domain.ErrConflict, s.retries())
}

// Release desfaz uma reserva gravada cuja escrita da aspiração falhou.
// Registro apagado nesse meio tempo (reset do administrador) não é erro.
func (s *Service) Release(ctx context.Context, namespace string, r Reservation) error {
	if !r.Committed {
		return nil
	}

	for attempt := 0; attempt < s.retries(); attempt++ {
		cur, err := s.getState(ctx, namespace, r.IPHash)
		if err != nil {
			return err
		}
		if cur == nil {
			return nil
		}

		_, err = s.saveState(ctx, namespace, Retract(*cur, r))
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		return err
	}
	return fmt.Errorf("release %s: %w after %d attempts", r.IPHash, domain.ErrConflict, s.retries())
}

// State devolve o estado atual da identidade (nil quando não existe).
func (s *Service) State(ctx context.Context, namespace, ipHash string) (*domain.PeriodState, error) {
	return s.getState(ctx, namespace, ipHash)
}

// SetWhitelisted liga ou desliga o bypass da identidade.
func (s *Service) SetWhitelisted(ctx context.Context, namespace, ipHash string, whitelisted bool) error {
	if ipHash == "" {
		return identity.ErrInvalidIdentity
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	if err := s.Tracker.SetWhitelisted(ctx, namespace, ipHash, whitelisted); err != nil {
		return unavailable(err)
	}
	return nil
}

// ResetState apaga o estado da identidade. Identidade desconhecida devolve
// ErrNotFound.
func (s *Service) ResetState(ctx context.Context, namespace, ipHash string) error {
	if ipHash == "" {
		return identity.ErrInvalidIdentity
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	if err := s.Tracker.ResetState(ctx, namespace, ipHash); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Service) getState(ctx context.Context, namespace, ipHash string) (*domain.PeriodState, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	st, err := s.Tracker.GetState(ctx, namespace, ipHash)
	if err != nil {
		return nil, unavailable(err)
	}
	return st, nil
}

func (s *Service) saveState(ctx context.Context, namespace string, next domain.PeriodState) (domain.PeriodState, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	saved, err := s.Tracker.SaveState(ctx, namespace, next)
	if err != nil {
		return domain.PeriodState{}, unavailable(err)
	}
	return saved, nil
}

// fallback aplica OnUnavailable e sempre registra o erro original.
func (s *Service) fallback(ipHash string, cat domain.Category, cause error) (domain.Verdict, error) {
	v := domain.Verdict{Reason: domain.ReasonPolicyUnavailable, Category: cat}

	if s.OnUnavailable == domain.FailOpen {
		v.Allowed = true
		s.logger().Warn("admission store unavailable, failing open",
			zap.String("ip_hash", ipHash),
			zap.Error(cause),
		)
		return s.observe(v), nil
	}

	s.logger().Warn("admission store unavailable, failing closed",
		zap.String("ip_hash", ipHash),
		zap.Error(cause),
	)
	return s.observe(v), cause
}

func (s *Service) observe(v domain.Verdict) domain.Verdict {
	if s.Observer != nil {
		s.Observer.ObserveVerdict(v)
	}
	return v
}

// unavailable embrulha erros de infraestrutura em ErrPolicyUnavailable.
// ErrConflict e ErrNotFound passam intactos.
func unavailable(err error) error {
	if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrPolicyUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrPolicyUnavailable, err)
}
