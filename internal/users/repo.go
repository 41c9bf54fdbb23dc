package users

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vitalcart/storefront-backend/internal/repo"
	"github.com/vitalcart/storefront-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository exposes identity and profile persistence.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// Create inserts a new user and returns the persisted model.
func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.DB(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (r *Repository) CreateProfile(ctx context.Context, dto CreateProfileDTO) (*models.UserProfile, error) {
	profile := dto.ToModel()
	if err := r.DB(ctx).Create(profile).Error; err != nil {
		return nil, err
	}
	return profile, nil
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.DB(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.DB(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *Repository) FindProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := r.DB(ctx).First(&profile, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *Repository) FindProfileByGenieCustomerID(ctx context.Context, customerID string) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := r.DB(ctx).First(&profile, "genie_customer_id = ?", customerID).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *Repository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, &models.User{}, "email = ?", email)
}

func (r *Repository) NICExists(ctx context.Context, nic string) (bool, error) {
	return r.exists(ctx, &models.UserProfile{}, "nic = ?", nic)
}

func (r *Repository) exists(ctx context.Context, model any, query string, arg any) (bool, error) {
	var count int64
	if err := r.DB(ctx).Model(model).Where(query, arg).Limit(1).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// SetEMedPatientID backfills the clinical pointer only when it is still empty.
func (r *Repository) SetEMedPatientID(ctx context.Context, userID uuid.UUID, patientID string) error {
	return r.setPointer(ctx, userID, "emed_patient_id", patientID)
}

// SetGenieCustomerID backfills the billing pointer only when it is still empty.
func (r *Repository) SetGenieCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error {
	return r.setPointer(ctx, userID, "genie_customer_id", customerID)
}

func (r *Repository) setPointer(ctx context.Context, userID uuid.UUID, column, value string) error {
	res := r.DB(ctx).
		Model(&models.UserProfile{}).
		Where("user_id = ?", userID).
		Where("(" + column + " IS NULL OR " + column + " = '')").
		Updates(map[string]any{column: value, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.DB(ctx).Model(&models.UserProfile{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
	}
	return nil
}

func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.DB(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

// Delete removes the profile and identity together.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.UserProfile{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.User{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errors.New("user not found")
		}
		return nil
	})
}
