package utils

import "math"

// Paystack transmits and stores amounts in pesewas (GHS x 100). These two
// helpers are the only place the conversion happens; everything else in the
// codebase carries integer minor units.

// ToPesewas converts a cedi amount to pesewas with exact rounding.
func ToPesewas(cedis float64) int {
	return int(math.Round(cedis * 100))
}

// FromPesewas converts pesewas back to a cedi amount.
func FromPesewas(pesewas int) float64 {
	return float64(pesewas) / 100
}
