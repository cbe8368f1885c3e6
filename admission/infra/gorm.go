package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"aspirasi-gateway/admission/domain"
)

// PolicyModel é a linha da política por namespace.
type PolicyModel struct {
	Namespace         string `gorm:"primaryKey;size:128"`
	CooldownEnabled   bool
	CooldownDays      int
	MaxPerPeriod      int
	AllowedCategories string `gorm:"size:512"`
	UpdatedAt         time.Time
}

func (PolicyModel) TableName() string { return "admission_policies" }

// TrackerModel é a linha de estado por identidade.
type TrackerModel struct {
	Namespace               string `gorm:"primaryKey;size:128"`
	IPHash                  string `gorm:"primaryKey;size:64"`
	LastSubmissionAt        *time.Time
	PeriodStartedAt         *time.Time
	SubmissionCountInPeriod int
	SubmissionCount         int
	IsWhitelisted           bool
	LastTrackingCode        string `gorm:"size:16"`
	Version                 int64  `gorm:"not null;default:0"`
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

func (TrackerModel) TableName() string { return "ip_trackings" }

// Models lista os modelos para AutoMigrate.
func Models() []any {
	return []any{&PolicyModel{}, &TrackerModel{}}
}

// GormStore persiste política e estado via gorm. O *gorm.DB deve ter sido
// aberto com TranslateError para que chave duplicada vire conflito.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetPolicy(ctx context.Context, namespace string) (domain.Policy, bool, error) {
	var m PolicyModel
	err := s.db.WithContext(ctx).Where("namespace = ?", namespace).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Policy{}, false, nil
	}
	if err != nil {
		return domain.Policy{}, false, fmt.Errorf("get policy: %w", err)
	}

	return domain.Policy{
		CooldownEnabled:         m.CooldownEnabled,
		CooldownWindow:          time.Duration(m.CooldownDays) * domain.Day,
		MaxSubmissionsPerWindow: m.MaxPerPeriod,
		AllowedCategories:       splitCategories(m.AllowedCategories),
	}, true, nil
}

func (s *GormStore) PutPolicy(ctx context.Context, namespace string, p domain.Policy) error {
	m := PolicyModel{
		Namespace:         namespace,
		CooldownEnabled:   p.CooldownEnabled,
		CooldownDays:      p.CooldownDays(),
		MaxPerPeriod:      p.MaxSubmissionsPerWindow,
		AllowedCategories: joinCategories(p.AllowedCategories),
	}
	// Save faz upsert pela chave primária.
	if err := s.db.WithContext(ctx).Save(&m).Error; err != nil {
		return fmt.Errorf("put policy: %w", err)
	}
	return nil
}

func (s *GormStore) GetState(ctx context.Context, namespace, ipHash string) (*domain.PeriodState, error) {
	var m TrackerModel
	err := s.db.WithContext(ctx).
		Where("namespace = ? AND ip_hash = ?", namespace, ipHash).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}
	st := m.state()
	return &st, nil
}

// SaveState grava next se a versão armazenada for next.Version.
// Versão 0 cria o registro; chave duplicada significa que outro escritor
// criou antes.
func (s *GormStore) SaveState(ctx context.Context, namespace string, next domain.PeriodState) (domain.PeriodState, error) {
	m := newTrackerModel(namespace, next)
	m.Version = next.Version + 1

	db := s.db.WithContext(ctx)
	if next.Version == 0 {
		err := db.Create(&m).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.PeriodState{}, domain.ErrConflict
		}
		if err != nil {
			return domain.PeriodState{}, fmt.Errorf("create state: %w", err)
		}
		return m.state(), nil
	}

	res := db.Model(&TrackerModel{}).
		Where("namespace = ? AND ip_hash = ? AND version = ?", namespace, next.IPHash, next.Version).
		Updates(map[string]any{
			"last_submission_at":         m.LastSubmissionAt,
			"period_started_at":          m.PeriodStartedAt,
			"submission_count_in_period": m.SubmissionCountInPeriod,
			"submission_count":           m.SubmissionCount,
			"is_whitelisted":             m.IsWhitelisted,
			"last_tracking_code":         m.LastTrackingCode,
			"version":                    m.Version,
		})
	if res.Error != nil {
		return domain.PeriodState{}, fmt.Errorf("update state: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.PeriodState{}, domain.ErrConflict
	}
	return m.state(), nil
}

func (s *GormStore) SetWhitelisted(ctx context.Context, namespace, ipHash string, whitelisted bool) error {
	db := s.db.WithContext(ctx)
	res := db.Model(&TrackerModel{}).
		Where("namespace = ? AND ip_hash = ?", namespace, ipHash).
		Updates(map[string]any{
			"is_whitelisted": whitelisted,
			"version":        gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return fmt.Errorf("whitelist: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	m := TrackerModel{Namespace: namespace, IPHash: ipHash, IsWhitelisted: whitelisted, Version: 1}
	err := db.Create(&m).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// criado entre o update e o insert; tenta o update de novo
		return s.SetWhitelisted(ctx, namespace, ipHash, whitelisted)
	}
	if err != nil {
		return fmt.Errorf("whitelist: %w", err)
	}
	return nil
}

func (s *GormStore) ResetState(ctx context.Context, namespace, ipHash string) error {
	res := s.db.WithContext(ctx).
		Where("namespace = ? AND ip_hash = ?", namespace, ipHash).
		Delete(&TrackerModel{})
	if res.Error != nil {
		return fmt.Errorf("reset state: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func newTrackerModel(namespace string, s domain.PeriodState) TrackerModel {
	m := TrackerModel{
		Namespace:               namespace,
		IPHash:                  s.IPHash,
		SubmissionCountInPeriod: s.SubmissionCountInPeriod,
		SubmissionCount:         s.TotalSubmissionCount,
		IsWhitelisted:           s.IsWhitelisted,
		LastTrackingCode:        s.LastTrackingCode,
		Version:                 s.Version,
	}
	if !s.LastSubmissionAt.IsZero() {
		t := s.LastSubmissionAt.UTC()
		m.LastSubmissionAt = &t
	}
	if !s.PeriodStartedAt.IsZero() {
		t := s.PeriodStartedAt.UTC()
		m.PeriodStartedAt = &t
	}
	return m
}

func (m TrackerModel) state() domain.PeriodState {
	s := domain.PeriodState{
		IPHash:                  m.IPHash,
		SubmissionCountInPeriod: m.SubmissionCountInPeriod,
		TotalSubmissionCount:    m.SubmissionCount,
		IsWhitelisted:           m.IsWhitelisted,
		LastTrackingCode:        m.LastTrackingCode,
		Version:                 m.Version,
	}
	if m.LastSubmissionAt != nil {
		s.LastSubmissionAt = m.LastSubmissionAt.UTC()
	}
	if m.PeriodStartedAt != nil {
		s.PeriodStartedAt = m.PeriodStartedAt.UTC()
	}
	return s
}

func joinCategories(cats []domain.Category) string {
	parts := make([]string, 0, len(cats))
	for _, c := range cats {
		parts = append(parts, string(c))
	}
	return strings.Join(parts, ",")
}

func splitCategories(s string) []domain.Category {
	if s == "" {
		return nil
	}
	var cats []domain.Category
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			cats = append(cats, domain.Category(part))
		}
	}
	return cats
}
