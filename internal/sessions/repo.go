package sessions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vitalcart/storefront-backend/internal/repo"
	"github.com/vitalcart/storefront-backend/pkg/db/models"
	"github.com/vitalcart/storefront-backend/pkg/enums"
	"gorm.io/gorm"
)

type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) Create(ctx context.Context, session *models.CheckoutSession) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	return r.DB(ctx).Create(session).Error
}

// FindActiveByToken only returns sessions that are active and not yet expired at now.
func (r *Repository) FindActiveByToken(ctx context.Context, token string, now time.Time) (*models.CheckoutSession, error) {
	var session models.CheckoutSession
	err := r.DB(ctx).
		Where("session_token = ? AND status = ? AND expires_at > ?", token, enums.CheckoutSessionActive, now).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// FindForUser loads a session by id for its owner regardless of expiry.
func (r *Repository) FindForUser(ctx context.Context, tx *gorm.DB, id, userID uuid.UUID) (*models.CheckoutSession, error) {
	var session models.CheckoutSession
	err := r.Conn(ctx, tx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Update writes updates while the session is still active. Zero rows means it was not.
func (r *Repository) Update(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]any) (int64, error) {
	updates["updated_at"] = time.Now().UTC()
	res := r.Conn(ctx, tx).
		Model(&models.CheckoutSession{}).
		Where("id = ? AND status = ?", id, enums.CheckoutSessionActive).
		Updates(updates)
	return res.RowsAffected, res.Error
}

// ExpireStale flips active sessions past their expiry to expired.
func (r *Repository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	res := r.DB(ctx).
		Model(&models.CheckoutSession{}).
		Where("status = ? AND expires_at <= ?", enums.CheckoutSessionActive, now).
		Updates(map[string]any{"status": enums.CheckoutSessionExpired, "updated_at": now})
	return res.RowsAffected, res.Error
}
