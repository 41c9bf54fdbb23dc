package orders

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vitalcart/storefront-backend/pkg/db/models"
	"github.com/vitalcart/storefront-backend/pkg/enums"
	"github.com/vitalcart/storefront-backend/pkg/pagination"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Omit("Items", "Phases").Create(order).Error
}

func (r *repository) CreateItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) CreatePhase(ctx context.Context, phase *models.OrderPaymentPhase) error {
	if phase.ID == uuid.Nil {
		phase.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(phase).Error
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Phases", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindUserOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Phases", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListUserOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("user_id = ?", userID)
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	page, next := pagination.Trim(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	list := &OrderList{Orders: make([]OrderSummary, 0, len(page)), NextCursor: next}
	for i := range page {
		list.Orders = append(list.Orders, SummaryFromModel(&page[i]))
	}
	return list, nil
}

func (r *repository) FindByConsultationPayment(ctx context.Context, transactionID string) (*models.Order, error) {
	return r.findOne(ctx, "consultation_payment_id = ?", transactionID)
}

func (r *repository) FindByProductPayment(ctx context.Context, transactionID string) (*models.Order, error) {
	return r.findOne(ctx, "product_payment_id = ?", transactionID)
}

func (r *repository) findOne(ctx context.Context, query string, args ...any) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where(query, args...).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// ReferencesTransaction reports whether any order or phase already carries the transaction.
func (r *repository) ReferencesTransaction(ctx context.Context, transactionID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("consultation_payment_id = ? OR product_payment_id = ?", transactionID, transactionID).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}
	if err := r.db.WithContext(ctx).
		Model(&models.OrderPaymentPhase{}).
		Where("transaction_id = ?", transactionID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) FindPhase(ctx context.Context, transactionID string) (*models.OrderPaymentPhase, error) {
	var phase models.OrderPaymentPhase
	if err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&phase).Error; err != nil {
		return nil, err
	}
	return &phase, nil
}

// TransitionPhase moves the phase for transactionID to target only from a status
// the lattice allows. Zero rows affected means the phase is missing or already past target.
func (r *repository) TransitionPhase(ctx context.Context, transactionID string, target enums.PhaseStatus, at time.Time) (int64, error) {
	sources := enums.PhaseSourcesFor(target)
	if len(sources) == 0 {
		return 0, errors.New("no transition leads to " + string(target))
	}
	updates := map[string]any{"status": target, "updated_at": at}
	if target == enums.PhaseStatusCompleted {
		updates["completed_at"] = at
	}
	res := r.db.WithContext(ctx).
		Model(&models.OrderPaymentPhase{}).
		Where("transaction_id = ? AND status IN ?", transactionID, sources).
		Updates(updates)
	return res.RowsAffected, res.Error
}

// UpdateOrderFrom applies updates only while the order is in one of sources.
func (r *repository) UpdateOrderFrom(ctx context.Context, orderID uuid.UUID, sources []enums.OrderStatus, updates map[string]any) (int64, error) {
	if len(sources) == 0 {
		return 0, errors.New("source statuses required")
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", orderID, sources).
		Updates(updates)
	return res.RowsAffected, res.Error
}

// AttachProductPayment points the order at a new product transaction unless the
// products were already paid for.
func (r *repository) AttachProductPayment(ctx context.Context, orderID uuid.UUID, transactionID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND product_payment_status <> ?", orderID, enums.ProductPaymentPaid).
		Updates(map[string]any{
			"product_payment_id":     transactionID,
			"product_payment_status": enums.ProductPaymentPending,
			"updated_at":             time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *repository) HealthVerticalID(ctx context.Context, slug string) (*uuid.UUID, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, nil
	}
	var vertical models.HealthVertical
	err := r.db.WithContext(ctx).Select("id").Where("slug = ?", slug).First(&vertical).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &vertical.ID, nil
}
