package types

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCartItemCheckTotal(t *testing.T) {
	item := CartItem{
		ProductID:    "finasteride-1mg",
		Quantity:     2,
		Months:       3,
		MonthlyPrice: decimal.RequireFromString("1500"),
		TotalPrice:   decimal.RequireFromString("9000.00"),
	}
	if err := item.CheckTotal(); err != nil {
		t.Fatalf("expected consistent total, got %v", err)
	}

	item.TotalPrice = decimal.RequireFromString("8999")
	if err := item.CheckTotal(); err == nil {
		t.Fatal("expected mismatch error")
	}

	item.TotalPrice = decimal.RequireFromString("-1")
	if err := item.CheckTotal(); err == nil {
		t.Fatal("expected negative amount error")
	}
}

func TestCartTotals(t *testing.T) {
	cart := Cart{
		{ProductID: "a", TotalPrice: decimal.RequireFromString("3000"), ConsultationFee: decimal.RequireFromString("2000"), PrescriptionRequired: true, HealthVerticalSlug: "hair-loss"},
		{ProductID: "b", TotalPrice: decimal.RequireFromString("1250.50"), RequiresQuestionnaire: true},
	}
	if got := FormatMoney(cart.Subtotal()); got != "4250.50" {
		t.Fatalf("subtotal: got %s", got)
	}
	if got := FormatMoney(cart.ConsultationFees()); got != "2000.00" {
		t.Fatalf("fees: got %s", got)
	}
	if got := FormatMoney(cart.Total()); got != "6250.50" {
		t.Fatalf("total: got %s", got)
	}
	if !cart.AnyPrescriptionRequired() || !cart.AnyRequiresQuestionnaire() {
		t.Fatal("expected flags from cart lines")
	}
	if cart.VerticalSlug() != "hair-loss" {
		t.Fatalf("unexpected vertical %q", cart.VerticalSlug())
	}
	if (Cart{}).AnyPrescriptionRequired() {
		t.Fatal("empty cart requires nothing")
	}
}
