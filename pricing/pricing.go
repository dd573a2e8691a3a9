// Package pricing derives the price of a track from its billable duration.
//
// The amount path is exact integer arithmetic end to end: the rate is a
// fixed number of atomic units per second, so the required amount never
// depends on floating point and cannot drift from what the client signed.
package pricing

import (
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	// RatePerSecondAtomic is the price per billed second in atomic units
	// of the 6-decimal asset ($0.0333/s).
	RatePerSecondAtomic = 33300

	// MinBillableSeconds is the floor applied to every quote.
	MinBillableSeconds = 5

	// atomicPerCent converts atomic units to display cents (10^6 per
	// dollar, 10^4 per cent).
	atomicPerCent = 10_000
)

// Quote is a deterministic price for a billed duration. Cents is display
// only; Atomic is the authoritative amount.
type Quote struct {
	BilledSeconds int
	Cents         float64
	Atomic        string
}

// ForSeconds quotes the price for a requested duration. Non-positive or
// short requests clamp to the minimum billable duration, never to zero.
func ForSeconds(requested int) Quote {
	billed := requested
	if billed < MinBillableSeconds {
		billed = MinBillableSeconds
	}

	atomic := new(big.Int).Mul(big.NewInt(int64(billed)), big.NewInt(RatePerSecondAtomic))

	cents, _ := decimal.NewFromBigInt(atomic, 0).
		Div(decimal.NewFromInt(atomicPerCent)).
		Float64()

	return Quote{
		BilledSeconds: billed,
		Cents:         cents,
		Atomic:        atomic.String(),
	}
}
