package shared

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var moneyPrinter = message.NewPrinter(language.English)

// ParseAmount parses a monetary amount. Amounts must be positive and carry
// at most two decimal places.
func ParseAmount(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount must be a number", ErrValidation)
	}
	return CheckAmount(d)
}

// CheckAmount validates an already-parsed amount.
func CheckAmount(d decimal.Decimal) (decimal.Decimal, error) {
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	}
	if d.Exponent() < -2 {
		return decimal.Zero, fmt.Errorf("%w: amount cannot have more than two decimal places", ErrValidation)
	}
	return d, nil
}

// FormatAmount renders an amount with grouping separators and two decimal
// places, e.g. "12,345.00".
func FormatAmount(d decimal.Decimal) string {
	f, _ := d.Float64()
	return moneyPrinter.Sprint(number.Decimal(f, number.Scale(2)))
}
