package payments

import (
	"github.com/google/uuid"
	"github.com/vitalcart/storefront-backend/pkg/db/models"
)

// Started is what the storefront needs to send the customer to the hosted payment page.
type Started struct {
	TransactionID string `json:"transactionId"`
	URL           string `json:"url"`
	Amount        string `json:"amount"`
	Charged       bool   `json:"charged"`
}

type PaymentMethodDTO struct {
	ID           uuid.UUID `json:"id"`
	Brand        string    `json:"brand"`
	MaskedNumber string    `json:"maskedNumber"`
	ExpiryMonth  int       `json:"expiryMonth"`
	ExpiryYear   int       `json:"expiryYear"`
	IsDefault    bool      `json:"isDefault"`
}

func MethodFromModel(t models.PaymentToken) PaymentMethodDTO {
	return PaymentMethodDTO{
		ID:           t.ID,
		Brand:        t.Brand,
		MaskedNumber: t.MaskedNumber,
		ExpiryMonth:  t.ExpiryMonth,
		ExpiryYear:   t.ExpiryYear,
		IsDefault:    t.IsDefault,
	}
}
