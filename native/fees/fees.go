package fees

import (
	"math/big"
)

const (
	// DenominatorBps is the fixed basis-point denominator for all fee math.
	DenominatorBps = 10_000
	// MaxRateBps is the hard ceiling on any configured fee rate (10%). It is
	// enforced at every rate-setting entry point, not only at construction.
	MaxRateBps = 1_000
	// DefaultRateBps is the rate installed when a deployment is bootstrapped
	// without an explicit override.
	DefaultRateBps = 200
)

// ValidRate reports whether a basis-point rate is within the policy ceiling.
func ValidRate(bps uint32) bool {
	return bps <= MaxRateBps
}

// Calculate returns floor(total * bps / 10000). Nil or non-positive totals
// yield zero.
func Calculate(total *big.Int, bps uint32) *big.Int {
	if total == nil || total.Sign() <= 0 || bps == 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(total, new(big.Int).SetUint64(uint64(bps)))
	return fee.Div(fee, big.NewInt(DenominatorBps))
}

// Split divides a gross amount into (fee, net) at the supplied rate.
func Split(total *big.Int, bps uint32) (*big.Int, *big.Int) {
	if total == nil || total.Sign() <= 0 {
		return big.NewInt(0), big.NewInt(0)
	}
	fee := Calculate(total, bps)
	net := new(big.Int).Sub(total, fee)
	return fee, net
}
