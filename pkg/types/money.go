package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// LKR amounts carry two decimal places.
const moneyScale = 2

// RoundMoney normalises an amount to the settlement scale.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyScale)
}

// FormatMoney renders an amount the way the gateway expects it ("5000.00").
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(moneyScale)
}

// ToCents converts an amount into minor units, rejecting sub-cent precision.
func ToCents(d decimal.Decimal) (int64, error) {
	scaled := d.Shift(moneyScale)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than %d decimal places", d.String(), moneyScale)
	}
	return scaled.IntPart(), nil
}
