package domain

import (
	"math"
	"time"
)

type Reason string

const (
	ReasonAllowed            Reason = "allowed"
	ReasonCooldownDisabled   Reason = "cooldown_disabled"
	ReasonCategoryNotAllowed Reason = "category_not_allowed"
	ReasonQuotaExceeded      Reason = "quota_exceeded"
	ReasonWhitelisted        Reason = "whitelisted"
	ReasonPolicyUnavailable  Reason = "policy_unavailable"
)

// Verdict é o resultado derivado da decisão; não é persistido.
// Os campos de tempo e contagem só são preenchidos em ReasonQuotaExceeded.
type Verdict struct {
	Allowed  bool
	Reason   Reason
	Category Category

	TimeRemaining    time.Duration
	NextAllowedAt    time.Time
	LastSubmissionAt time.Time
	SubmissionCount  int
	MaxSubmissions   int
	LastTrackingCode string
}

// Quota é a prévia da cota de uma identidade no período corrente.
// Unlimited cobre cooldown desligado e whitelist; Remaining então é ignorado.
// NextResetAt é zero quando não há período em curso.
type Quota struct {
	Unlimited   bool
	Max         int
	Used        int
	Remaining   int
	NextResetAt time.Time
}

// DaysRemaining arredonda para cima: 0 dias e 3 horas vira 1 dia.
func (v Verdict) DaysRemaining() int { return ceilUnits(v.TimeRemaining, Day) }

// HoursRemaining arredonda para cima.
func (v Verdict) HoursRemaining() int { return ceilUnits(v.TimeRemaining, time.Hour) }

// Err mapeia negações para os erros sentinela.
func (v Verdict) Err() error {
	switch v.Reason {
	case ReasonCategoryNotAllowed:
		return ErrCategoryNotAllowed
	case ReasonQuotaExceeded:
		return ErrQuotaExceeded
	}
	return nil
}

func ceilUnits(d, unit time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(float64(d) / float64(unit)))
}
