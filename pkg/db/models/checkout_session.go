package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/vitalcart/storefront-backend/pkg/enums"
	"gorm.io/datatypes"
)

// CheckoutSession snapshots a guest checkout until payment completes.
type CheckoutSession struct {
	ID              uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SessionToken    string                      `gorm:"column:session_token;not null;uniqueIndex"`
	Status          enums.CheckoutSessionStatus `gorm:"column:status;type:text;not null;default:'active'"`
	UserID          *uuid.UUID                  `gorm:"column:user_id;type:uuid"`
	CustomerInfo    datatypes.JSON              `gorm:"column:customer_info;type:jsonb"`
	ShippingAddress datatypes.JSON              `gorm:"column:shipping_address;type:jsonb"`
	CartItems       datatypes.JSON              `gorm:"column:cart_items;type:jsonb"`
	QuizResponses   datatypes.JSON              `gorm:"column:quiz_responses;type:jsonb"`
	CurrentStep     enums.CheckoutStep          `gorm:"column:current_step;type:text;not null"`
	ExpiresAt       time.Time                   `gorm:"column:expires_at;not null"`
	CreatedAt       time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}
