package domain

import "time"

// PolicyRecord é o formato externo da política (documento de configuração do
// administrador). CooldownEnabled ausente vale true.
type PolicyRecord struct {
	CooldownEnabled         *bool    `json:"cooldownEnabled"`
	CooldownDays            int      `json:"cooldownDays"`
	MaxAspirationsPerPeriod int      `json:"maxAspirationsPerPeriod"`
	AllowedCategories       []string `json:"allowedCategories"`
}

// Policy converte o registro; o resultado ainda não está normalizado.
func (r PolicyRecord) Policy() Policy {
	enabled := true
	if r.CooldownEnabled != nil {
		enabled = *r.CooldownEnabled
	}
	cats := make([]Category, 0, len(r.AllowedCategories))
	for _, c := range r.AllowedCategories {
		cats = append(cats, Category(c))
	}
	return Policy{
		CooldownEnabled:         enabled,
		CooldownWindow:          time.Duration(r.CooldownDays) * Day,
		MaxSubmissionsPerWindow: r.MaxAspirationsPerPeriod,
		AllowedCategories:       cats,
	}
}

func NewPolicyRecord(p Policy) PolicyRecord {
	enabled := p.CooldownEnabled
	cats := make([]string, 0, len(p.AllowedCategories))
	for _, c := range p.AllowedCategories {
		cats = append(cats, string(c))
	}
	return PolicyRecord{
		CooldownEnabled:         &enabled,
		CooldownDays:            p.CooldownDays(),
		MaxAspirationsPerPeriod: p.MaxSubmissionsPerWindow,
		AllowedCategories:       cats,
	}
}

// TrackerRecord é o formato externo do estado por identidade.
type TrackerRecord struct {
	IPHash                  string     `json:"ipHash"`
	LastSubmissionAt        *time.Time `json:"lastSubmissionAt,omitempty"`
	LastTrackingCode        string     `json:"lastTrackingCode"`
	SubmissionCount         int        `json:"submissionCount"`
	SubmissionCountInPeriod int        `json:"submissionCountInPeriod"`
	PeriodStartedAt         *time.Time `json:"periodStartedAt,omitempty"`
	IsWhitelisted           bool       `json:"isWhitelisted"`
	Version                 int64      `json:"version"`
}

func (r TrackerRecord) State() PeriodState {
	s := PeriodState{
		IPHash:                  r.IPHash,
		LastTrackingCode:        r.LastTrackingCode,
		TotalSubmissionCount:    r.SubmissionCount,
		SubmissionCountInPeriod: r.SubmissionCountInPeriod,
		IsWhitelisted:           r.IsWhitelisted,
		Version:                 r.Version,
	}
	if r.LastSubmissionAt != nil {
		s.LastSubmissionAt = r.LastSubmissionAt.UTC()
	}
	if r.PeriodStartedAt != nil {
		s.PeriodStartedAt = r.PeriodStartedAt.UTC()
	}
	return s
}

func NewTrackerRecord(s PeriodState) TrackerRecord {
	r := TrackerRecord{
		IPHash:                  s.IPHash,
		LastTrackingCode:        s.LastTrackingCode,
		SubmissionCount:         s.TotalSubmissionCount,
		SubmissionCountInPeriod: s.SubmissionCountInPeriod,
		IsWhitelisted:           s.IsWhitelisted,
		Version:                 s.Version,
	}
	if !s.LastSubmissionAt.IsZero() {
		t := s.LastSubmissionAt.UTC()
		r.LastSubmissionAt = &t
	}
	if !s.PeriodStartedAt.IsZero() {
		t := s.PeriodStartedAt.UTC()
		r.PeriodStartedAt = &t
	}
	return r
}
