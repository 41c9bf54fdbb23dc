package enums

import "fmt"

type OrderStatus string

const (
	OrderStatusPendingPayment  OrderStatus = "pending_payment"
	OrderStatusPhysicianReview OrderStatus = "physician_review"
	OrderStatusProcessing      OrderStatus = "processing"
	OrderStatusShipped         OrderStatus = "shipped"
	OrderStatusDelivered       OrderStatus = "delivered"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusPaymentFailed   OrderStatus = "payment_failed"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPendingPayment,
	OrderStatusPhysicianReview,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusPaymentFailed,
}

func (o OrderStatus) String() string {
	return string(o)
}

func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

type ConsultationStatus string

const (
	ConsultationNotRequired ConsultationStatus = "not_required"
	ConsultationPending     ConsultationStatus = "pending"
	ConsultationPaid        ConsultationStatus = "paid"
	ConsultationCancelled   ConsultationStatus = "cancelled"
	ConsultationFailed      ConsultationStatus = "failed"
)

var validConsultationStatuses = []ConsultationStatus{
	ConsultationNotRequired,
	ConsultationPending,
	ConsultationPaid,
	ConsultationCancelled,
	ConsultationFailed,
}

func (c ConsultationStatus) String() string {
	return string(c)
}

func (c ConsultationStatus) IsValid() bool {
	for _, candidate := range validConsultationStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

func ParseConsultationStatus(value string) (ConsultationStatus, error) {
	for _, candidate := range validConsultationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid consultation status %q", value)
}

// OrderPaymentStatus is the aggregate payment state across phases.
type OrderPaymentStatus string

const (
	OrderPaymentPending          OrderPaymentStatus = "pending"
	OrderPaymentConsultationPaid OrderPaymentStatus = "consultation_paid"
	OrderPaymentFullyPaid        OrderPaymentStatus = "fully_paid"
	OrderPaymentCancelled        OrderPaymentStatus = "cancelled"
	OrderPaymentFailed           OrderPaymentStatus = "failed"
)

var validOrderPaymentStatuses = []OrderPaymentStatus{
	OrderPaymentPending,
	OrderPaymentConsultationPaid,
	OrderPaymentFullyPaid,
	OrderPaymentCancelled,
	OrderPaymentFailed,
}

func (o OrderPaymentStatus) String() string {
	return string(o)
}

func (o OrderPaymentStatus) IsValid() bool {
	for _, candidate := range validOrderPaymentStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

func ParseOrderPaymentStatus(value string) (OrderPaymentStatus, error) {
	for _, candidate := range validOrderPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order payment status %q", value)
}

type ProductPaymentStatus string

const (
	ProductPaymentNotStarted ProductPaymentStatus = "not_started"
	ProductPaymentPending    ProductPaymentStatus = "pending"
	ProductPaymentPaid       ProductPaymentStatus = "paid"
	ProductPaymentCancelled  ProductPaymentStatus = "cancelled"
	ProductPaymentFailed     ProductPaymentStatus = "failed"
)

var validProductPaymentStatuses = []ProductPaymentStatus{
	ProductPaymentNotStarted,
	ProductPaymentPending,
	ProductPaymentPaid,
	ProductPaymentCancelled,
	ProductPaymentFailed,
}

func (p ProductPaymentStatus) String() string {
	return string(p)
}

func (p ProductPaymentStatus) IsValid() bool {
	for _, candidate := range validProductPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

func ParseProductPaymentStatus(value string) (ProductPaymentStatus, error) {
	for _, candidate := range validProductPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product payment status %q", value)
}
