package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vitalcart/storefront-backend/internal/repo"
	"github.com/vitalcart/storefront-backend/pkg/db/models"
	"github.com/vitalcart/storefront-backend/pkg/enums"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists payment intents and stored card tokens.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) CreateIntent(ctx context.Context, tx *gorm.DB, intent *models.PaymentIntent) error {
	if intent.ID == uuid.Nil {
		intent.ID = uuid.New()
	}
	if intent.Status == "" {
		intent.Status = enums.PaymentIntentOpen
	}
	return r.Conn(ctx, tx).Create(intent).Error
}

func (r *Repository) FindIntent(ctx context.Context, tx *gorm.DB, transactionID string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := r.Conn(ctx, tx).Where("transaction_id = ?", transactionID).First(&intent).Error; err != nil {
		return nil, err
	}
	return &intent, nil
}

// intentSources mirrors the phase lattice: only a void may follow a confirmation.
var intentSources = map[enums.PaymentIntentStatus][]enums.PaymentIntentStatus{
	enums.PaymentIntentConfirmed: {enums.PaymentIntentOpen},
	enums.PaymentIntentVoided:    {enums.PaymentIntentOpen, enums.PaymentIntentConfirmed},
	enums.PaymentIntentCancelled: {enums.PaymentIntentOpen},
	enums.PaymentIntentFailed:    {enums.PaymentIntentOpen},
}

// TransitionIntent moves the intent to target when the current status allows it.
func (r *Repository) TransitionIntent(ctx context.Context, tx *gorm.DB, transactionID string, target enums.PaymentIntentStatus, orderID *uuid.UUID) (int64, error) {
	updates := map[string]any{"status": target, "updated_at": time.Now().UTC()}
	if orderID != nil {
		updates["order_id"] = *orderID
	}
	res := r.Conn(ctx, tx).
		Model(&models.PaymentIntent{}).
		Where("transaction_id = ? AND status IN ?", transactionID, intentSources[target]).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *Repository) ListTokens(ctx context.Context, userID uuid.UUID) ([]models.PaymentToken, error) {
	var tokens []models.PaymentToken
	err := r.DB(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC").
		Order("created_at ASC").
		Find(&tokens).Error
	return tokens, err
}

func (r *Repository) FindToken(ctx context.Context, userID, id uuid.UUID) (*models.PaymentToken, error) {
	var token models.PaymentToken
	if err := r.DB(ctx).Where("id = ? AND user_id = ?", id, userID).First(&token).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

// InsertMissingTokens stores tokens whose provider id is not yet known and
// returns how many were added.
func (r *Repository) InsertMissingTokens(ctx context.Context, tx *gorm.DB, tokens []models.PaymentToken) (int, error) {
	added := 0
	for i := range tokens {
		if tokens[i].ID == uuid.Nil {
			tokens[i].ID = uuid.New()
		}
		res := r.Conn(ctx, tx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "provider_token_id"}}, DoNothing: true}).
			Create(&tokens[i])
		if res.Error != nil {
			return added, res.Error
		}
		added += int(res.RowsAffected)
	}
	return added, nil
}
