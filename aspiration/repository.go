package aspiration

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persiste aspirações com gorm.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Models lista os modelos para AutoMigrate.
func Models() []any {
	return []any{&Aspiration{}}
}

// Create grava a aspiração; ID vazio recebe um uuid e status vazio vira
// received.
func (r *Repository) Create(ctx context.Context, a *Aspiration) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = StatusReceived
	}
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("create aspiration: %w", err)
	}
	return nil
}

func (r *Repository) FindByTrackingCode(ctx context.Context, namespace, code string) (*Aspiration, error) {
	var a Aspiration
	err := r.db.WithContext(ctx).
		Where("namespace = ? AND tracking_code = ?", namespace, NormalizeCode(code)).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find aspiration: %w", err)
	}
	return &a, nil
}

// UpdateStatus muda o status e, se reply não for nil, a resposta do
// administrador. Uma resposta nova leva o status a followed_up quando o
// chamador não informa outro.
func (r *Repository) UpdateStatus(ctx context.Context, namespace, code string, status Status, reply *string) (*Aspiration, error) {
	if status == "" && reply != nil {
		status = StatusFollowedUp
	}
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	updates := map[string]any{}
	if status != "" {
		updates["status"] = status
	}
	if reply != nil {
		updates["admin_reply"] = strip.Sanitize(*reply)
	}
	if len(updates) == 0 {
		return r.FindByTrackingCode(ctx, namespace, code)
	}

	res := r.db.WithContext(ctx).Model(&Aspiration{}).
		Where("namespace = ? AND tracking_code = ?", namespace, NormalizeCode(code)).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("update aspiration: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.FindByTrackingCode(ctx, namespace, code)
}
