package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/vitalcart/storefront-backend/pkg/db/models"
	"github.com/vitalcart/storefront-backend/pkg/enums"
	"github.com/vitalcart/storefront-backend/pkg/types"
)

// OrderSummary is the row shape returned by the order list.
type OrderSummary struct {
	ID                   uuid.UUID                  `json:"id"`
	OrderNumber          string                     `json:"order_number"`
	CreatedAt            time.Time                  `json:"created_at"`
	TotalAmount          string                     `json:"total_amount"`
	Currency             enums.Currency             `json:"currency"`
	Status               enums.OrderStatus          `json:"status"`
	PaymentFlowType      enums.PaymentFlowType      `json:"payment_flow_type"`
	ConsultationStatus   enums.ConsultationStatus   `json:"consultation_status"`
	PaymentStatus        enums.OrderPaymentStatus   `json:"payment_status"`
	ProductPaymentStatus enums.ProductPaymentStatus `json:"product_payment_status"`
	TotalItems           int                        `json:"total_items"`
}

type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

type OrderItemDTO struct {
	ProductID            string `json:"product_id"`
	ProductName          string `json:"product_name"`
	Quantity             int    `json:"quantity"`
	Months               int    `json:"months"`
	MonthlyPrice         string `json:"monthly_price"`
	TotalPrice           string `json:"total_price"`
	ConsultationFee      string `json:"consultation_fee"`
	PrescriptionRequired bool   `json:"prescription_required"`
}

type PaymentPhaseDTO struct {
	Phase         enums.PaymentPhase `json:"phase"`
	TransactionID string             `json:"transaction_id"`
	Status        enums.PhaseStatus  `json:"status"`
	Amount        string             `json:"amount"`
	CompletedAt   *time.Time         `json:"completed_at,omitempty"`
}

// OrderDetail is the full order view including items and payment phases.
type OrderDetail struct {
	OrderSummary
	DeliveryAddress types.Address     `json:"delivery_address"`
	Items           []OrderItemDTO    `json:"items"`
	PaymentPhases   []PaymentPhaseDTO `json:"payment_phases"`
}

func SummaryFromModel(o *models.Order) OrderSummary {
	items := 0
	for _, item := range o.Items {
		items += item.Quantity
	}
	return OrderSummary{
		ID:                   o.ID,
		OrderNumber:          o.OrderNumber,
		CreatedAt:            o.CreatedAt,
		TotalAmount:          types.FormatMoney(o.TotalAmount),
		Currency:             o.Currency,
		Status:               o.Status,
		PaymentFlowType:      o.PaymentFlowType,
		ConsultationStatus:   o.ConsultationStatus,
		PaymentStatus:        o.PaymentStatus,
		ProductPaymentStatus: o.ProductPaymentStatus,
		TotalItems:           items,
	}
}

func DetailFromModel(o *models.Order) *OrderDetail {
	if o == nil {
		return nil
	}
	detail := &OrderDetail{
		OrderSummary:  SummaryFromModel(o),
		Items:         make([]OrderItemDTO, 0, len(o.Items)),
		PaymentPhases: make([]PaymentPhaseDTO, 0, len(o.Phases)),
	}
	if len(o.DeliveryAddress) > 0 {
		_ = detail.DeliveryAddress.Scan([]byte(o.DeliveryAddress))
	}
	for _, item := range o.Items {
		detail.Items = append(detail.Items, OrderItemDTO{
			ProductID:            item.ProductID,
			ProductName:          item.ProductName,
			Quantity:             item.Quantity,
			Months:               item.Months,
			MonthlyPrice:         types.FormatMoney(item.MonthlyPrice),
			TotalPrice:           types.FormatMoney(item.TotalPrice),
			ConsultationFee:      types.FormatMoney(item.ConsultationFee),
			PrescriptionRequired: item.PrescriptionRequired,
		})
	}
	for _, phase := range o.Phases {
		detail.PaymentPhases = append(detail.PaymentPhases, PaymentPhaseDTO{
			Phase:         phase.Phase,
			TransactionID: phase.TransactionID,
			Status:        phase.Status,
			Amount:        types.FormatMoney(phase.Amount),
			CompletedAt:   phase.CompletedAt,
		})
	}
	return detail
}
