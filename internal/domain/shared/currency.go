package shared

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CoherenceToleranceMinorUnits is the single tolerance, in minor units,
// within which commission + payeeShare must equal the total amount.
// The legacy layers disagreed on this value (0.05 vs 1.0 currency units);
// 5 minor units is the documented, unified choice.
const CoherenceToleranceMinorUnits int64 = 5

// currencyExponents maps ISO 4217 codes to their minor-unit exponent.
// Currencies absent from the map use the common exponent of 2.
var currencyExponents = map[string]int32{
	"BHD": 3,
	"JOD": 3,
	"KWD": 3,
	"JPY": 0,
	"KRW": 0,
	"VND": 0,
}

// CurrencyExponent returns the minor-unit exponent for a currency code.
func CurrencyExponent(currency string) int32 {
	if exp, ok := currencyExponents[strings.ToUpper(currency)]; ok {
		return exp
	}
	return 2
}

// ToMinorUnits converts a main-unit decimal amount to minor units for the
// given currency. It fails when the amount carries sub-minor precision.
func ToMinorUnits(amount decimal.Decimal, currency string) (int64, error) {
	exp := CurrencyExponent(currency)
	scaled := amount.Shift(exp)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, NewDomainError(KindValidation, "AMOUNT_PRECISION",
			fmt.Sprintf("amount %s has sub-minor precision for %s", amount.String(), currency))
	}
	return scaled.IntPart(), nil
}

// FromMinorUnits converts minor units back to a main-unit decimal.
func FromMinorUnits(minor int64, currency string) decimal.Decimal {
	return decimal.NewFromInt(minor).Shift(-CurrencyExponent(currency))
}

// AmountsCoherent reports whether commission + payeeShare equals amount
// within the unified coherence tolerance.
func AmountsCoherent(amount, commission, payeeShare int64) bool {
	diff := amount - commission - payeeShare
	if diff < 0 {
		diff = -diff
	}
	return diff <= CoherenceToleranceMinorUnits
}

// AmountBounds holds the configured per-currency bounds for a single
// authorization, in minor units.
type AmountBounds struct {
	Min int64
	Max int64
}

// Contains reports whether the amount falls within the bounds.
func (b AmountBounds) Contains(amount int64) bool {
	return amount >= b.Min && amount <= b.Max
}
