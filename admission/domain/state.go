package domain

import "time"

// PeriodState é o estado persistido por identidade (chave: IPHash).
//
// LastSubmissionAt zero significa "sem submissão registrada" (ex.: registro
// criado só para whitelist). Version é usada para CAS: 0 indica registro
// inexistente e cada escrita bem-sucedida incrementa.
type PeriodState struct {
	IPHash                  string
	LastSubmissionAt        time.Time
	PeriodStartedAt         time.Time
	SubmissionCountInPeriod int
	TotalSubmissionCount    int
	IsWhitelisted           bool
	LastTrackingCode        string
	Version                 int64
}

func (s PeriodState) HasSubmission() bool { return !s.LastSubmissionAt.IsZero() }
