package state

import (
	"fmt"
	"math/big"

	"github.com/BenjDW/maitre-slither/native/ledger"
)

// FeesAccruedGet returns the global withdrawable fee accrual. Missing entries
// default to zero.
func (m *Manager) FeesAccruedGet() (*big.Int, error) {
	if m == nil {
		return nil, fmt.Errorf("fees: state manager not initialised")
	}
	amount, err := m.loadAmount(feesAccruedKey)
	if err != nil {
		return nil, fmt.Errorf("fees: load accrued: %w", err)
	}
	return amount, nil
}

// FeesAccruedSet overwrites the global withdrawable fee accrual.
func (m *Manager) FeesAccruedSet(amount *big.Int) error {
	if m == nil {
		return fmt.Errorf("fees: state manager not initialised")
	}
	if amount != nil && amount.Sign() < 0 {
		return fmt.Errorf("fees: accrued cannot be negative")
	}
	if err := m.KVPut(feesAccruedKey, ledger.CloneBig(amount)); err != nil {
		return fmt.Errorf("fees: persist accrued: %w", err)
	}
	return nil
}
