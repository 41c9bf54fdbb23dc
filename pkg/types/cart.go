package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CartItem is one subscription line as the storefront posts it.
type CartItem struct {
	ProductID             string          `json:"productId" validate:"required"`
	ProductName           string          `json:"productName" validate:"required"`
	Quantity              int             `json:"quantity" validate:"gte=1"`
	UnitPrice             decimal.Decimal `json:"unitPrice"`
	Months                int             `json:"months" validate:"gte=1"`
	MonthlyPrice          decimal.Decimal `json:"monthlyPrice"`
	TotalPrice            decimal.Decimal `json:"totalPrice"`
	ConsultationFee       decimal.Decimal `json:"consultationFee"`
	PrescriptionRequired  bool            `json:"prescriptionRequired"`
	RequiresQuestionnaire bool            `json:"requiresQuestionnaire"`
	HealthVerticalSlug    string          `json:"healthVerticalSlug,omitempty"`
}

// ExpectedTotal is quantity * months * monthlyPrice.
func (c CartItem) ExpectedTotal() decimal.Decimal {
	return c.MonthlyPrice.
		Mul(decimal.NewFromInt(int64(c.Quantity))).
		Mul(decimal.NewFromInt(int64(c.Months)))
}

// CheckTotal rejects a line whose totalPrice disagrees with its pricing.
func (c CartItem) CheckTotal() error {
	if c.TotalPrice.IsNegative() || c.MonthlyPrice.IsNegative() || c.ConsultationFee.IsNegative() {
		return fmt.Errorf("item %s: amounts must not be negative", c.ProductID)
	}
	if !RoundMoney(c.TotalPrice).Equal(RoundMoney(c.ExpectedTotal())) {
		return fmt.Errorf("item %s: totalPrice %s does not equal quantity * months * monthlyPrice (%s)",
			c.ProductID, FormatMoney(c.TotalPrice), FormatMoney(c.ExpectedTotal()))
	}
	return nil
}

type Cart []CartItem

// Subtotal sums line totals without consultation fees.
func (c Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range c {
		sum = sum.Add(item.TotalPrice)
	}
	return RoundMoney(sum)
}

func (c Cart) ConsultationFees() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range c {
		sum = sum.Add(item.ConsultationFee)
	}
	return RoundMoney(sum)
}

// Total is what the customer owes across both payment phases.
func (c Cart) Total() decimal.Decimal {
	return c.Subtotal().Add(c.ConsultationFees())
}

func (c Cart) AnyPrescriptionRequired() bool {
	for _, item := range c {
		if item.PrescriptionRequired {
			return true
		}
	}
	return false
}

func (c Cart) AnyRequiresQuestionnaire() bool {
	for _, item := range c {
		if item.RequiresQuestionnaire {
			return true
		}
	}
	return false
}

// VerticalSlug returns the first health vertical named in the cart.
func (c Cart) VerticalSlug() string {
	for _, item := range c {
		if item.HealthVerticalSlug != "" {
			return item.HealthVerticalSlug
		}
	}
	return ""
}

// CustomerInfo is the contact snapshot kept on sessions and order metadata.
type CustomerInfo struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
}
