package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vitalcart/storefront-backend/pkg/enums"
	"gorm.io/datatypes"
)

type Order struct {
	ID                    uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID                uuid.UUID                  `gorm:"column:user_id;type:uuid;not null;index"`
	OrderNumber           string                     `gorm:"column:order_number;not null;uniqueIndex"`
	TotalAmount           decimal.Decimal            `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Currency              enums.Currency             `gorm:"column:currency;type:text;not null;default:'LKR'"`
	Status                enums.OrderStatus          `gorm:"column:status;type:text;not null"`
	PaymentFlowType       enums.PaymentFlowType      `gorm:"column:payment_flow_type;type:text;not null"`
	ConsultationStatus    enums.ConsultationStatus   `gorm:"column:consultation_status;type:text;not null"`
	PaymentStatus         enums.OrderPaymentStatus   `gorm:"column:payment_status;type:text;not null"`
	ProductPaymentStatus  enums.ProductPaymentStatus `gorm:"column:product_payment_status;type:text;not null"`
	ConsultationPaymentID *string                    `gorm:"column:consultation_payment_id;uniqueIndex"`
	ProductPaymentID      *string                    `gorm:"column:product_payment_id;uniqueIndex"`
	DeliveryAddress       datatypes.JSON             `gorm:"column:delivery_address;type:jsonb"`
	Metadata              datatypes.JSON             `gorm:"column:metadata;type:jsonb"`
	HealthVerticalID      *uuid.UUID                 `gorm:"column:health_vertical_id;type:uuid"`
	CheckoutSessionID     *uuid.UUID                 `gorm:"column:checkout_session_id;type:uuid"`
	CreatedAt             time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time                  `gorm:"column:updated_at;autoUpdateTime"`

	Items  []OrderItem         `gorm:"foreignKey:OrderID"`
	Phases []OrderPaymentPhase `gorm:"foreignKey:OrderID"`
}

type OrderItem struct {
	ID                   uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID              uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID            string          `gorm:"column:product_id;not null"`
	ProductName          string          `gorm:"column:product_name;not null"`
	Quantity             int             `gorm:"column:quantity;not null"`
	UnitPrice            decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Months               int             `gorm:"column:months;not null;default:1"`
	MonthlyPrice         decimal.Decimal `gorm:"column:monthly_price;type:numeric(12,2);not null"`
	TotalPrice           decimal.Decimal `gorm:"column:total_price;type:numeric(12,2);not null"`
	ConsultationFee      decimal.Decimal `gorm:"column:consultation_fee;type:numeric(12,2);not null;default:0"`
	PrescriptionRequired bool            `gorm:"column:prescription_required;not null;default:false"`
	Metadata             datatypes.JSON  `gorm:"column:metadata;type:jsonb"`
	CreatedAt            time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// OrderPaymentPhase records one gateway transaction against an order.
type OrderPaymentPhase struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	Phase         enums.PaymentPhase `gorm:"column:phase;type:text;not null"`
	TransactionID string             `gorm:"column:transaction_id;not null;uniqueIndex"`
	Status        enums.PhaseStatus  `gorm:"column:status;type:text;not null"`
	Amount        decimal.Decimal    `gorm:"column:amount;type:numeric(12,2);not null"`
	CompletedAt   *time.Time         `gorm:"column:completed_at"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
