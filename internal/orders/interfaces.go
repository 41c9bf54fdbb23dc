package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vitalcart/storefront-backend/pkg/db/models"
	"github.com/vitalcart/storefront-backend/pkg/enums"
	"github.com/vitalcart/storefront-backend/pkg/pagination"
	"gorm.io/gorm"
)

// Repository defines persistence operations for orders, items and payment phases.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateItems(ctx context.Context, items []models.OrderItem) error
	CreatePhase(ctx context.Context, phase *models.OrderPaymentPhase) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindUserOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	ListUserOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
	FindByConsultationPayment(ctx context.Context, transactionID string) (*models.Order, error)
	FindByProductPayment(ctx context.Context, transactionID string) (*models.Order, error)
	ReferencesTransaction(ctx context.Context, transactionID string) (bool, error)
	FindPhase(ctx context.Context, transactionID string) (*models.OrderPaymentPhase, error)
	TransitionPhase(ctx context.Context, transactionID string, target enums.PhaseStatus, at time.Time) (int64, error)
	UpdateOrderFrom(ctx context.Context, orderID uuid.UUID, sources []enums.OrderStatus, updates map[string]any) (int64, error)
	AttachProductPayment(ctx context.Context, orderID uuid.UUID, transactionID string) (int64, error)
	HealthVerticalID(ctx context.Context, slug string) (*uuid.UUID, error)
}
