package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vitalcart/storefront-backend/pkg/enums"
)

// PaymentIntent correlates a gateway transaction with the checkout that started it.
type PaymentIntent struct {
	ID                uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TransactionID     string                    `gorm:"column:transaction_id;not null;uniqueIndex"`
	LocalID           string                    `gorm:"column:local_id;not null"`
	UserID            uuid.UUID                 `gorm:"column:user_id;type:uuid;not null"`
	CheckoutSessionID *uuid.UUID                `gorm:"column:checkout_session_id;type:uuid"`
	OrderID           *uuid.UUID                `gorm:"column:order_id;type:uuid"`
	Phase             enums.PaymentPhase        `gorm:"column:phase;type:text;not null"`
	Amount            decimal.Decimal           `gorm:"column:amount;type:numeric(12,2);not null"`
	Status            enums.PaymentIntentStatus `gorm:"column:status;type:text;not null;default:'open'"`
	PaymentURL        *string                   `gorm:"column:payment_url"`
	CreatedAt         time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

// PaymentToken is a tokenised card stored by the gateway for a customer.
type PaymentToken struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	GenieCustomerID string    `gorm:"column:genie_customer_id;not null"`
	ProviderTokenID string    `gorm:"column:provider_token_id;not null;uniqueIndex"`
	Brand           string    `gorm:"column:brand"`
	MaskedNumber    string    `gorm:"column:masked_number"`
	ExpiryMonth     int       `gorm:"column:expiry_month"`
	ExpiryYear      int       `gorm:"column:expiry_year"`
	IsDefault       bool      `gorm:"column:is_default;not null;default:false"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
