package ledger

import (
	"math"
	"math/bits"
)

// Gas schedule.
const (
	// DefaultGasPrice is the reference gas price.
	DefaultGasPrice uint64 = 1
	// DefaultGasBudget is the budget used by envelopes built without explicit budget.
	DefaultGasBudget uint64 = 10_000_000

	baseComputationUnits    uint64 = 1000
	commandComputationUnits uint64 = 500
)

// Fee returns the gas charged for an envelope of n commands at the given gas price.
func Fee(price uint64, n int) uint64 {
	hi, lo := bits.Mul64(price, baseComputationUnits+commandComputationUnits*uint64(n))
	if hi != 0 {
		return math.MaxUint64
	}
	return lo
}
