package state

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/BenjDW/maitre-slither/native/ledger"
)

func tokenBalanceKey(addr [20]byte) []byte {
	hexAddr := hex.EncodeToString(addr[:])
	buf := make([]byte, len(tokenBalancePrefix)+len(hexAddr))
	copy(buf, tokenBalancePrefix)
	copy(buf[len(tokenBalancePrefix):], hexAddr)
	return buf
}

func tokenAllowanceKey(owner, spender [20]byte) []byte {
	hexOwner := hex.EncodeToString(owner[:])
	hexSpender := hex.EncodeToString(spender[:])
	buf := make([]byte, len(tokenAllowancePrefix)+len(hexOwner)+1+len(hexSpender))
	copy(buf, tokenAllowancePrefix)
	offset := len(tokenAllowancePrefix)
	copy(buf[offset:], hexOwner)
	offset += len(hexOwner)
	buf[offset] = '/'
	offset++
	copy(buf[offset:], hexSpender)
	return buf
}

func (m *Manager) loadAmount(key []byte) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.KVGet(key, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

// TokenBalanceGet returns the settlement token balance for the account.
// Missing entries default to zero.
func (m *Manager) TokenBalanceGet(addr [20]byte) (*big.Int, error) {
	if m == nil {
		return nil, fmt.Errorf("token: state manager not initialised")
	}
	amount, err := m.loadAmount(tokenBalanceKey(addr))
	if err != nil {
		return nil, fmt.Errorf("token: load balance: %w", err)
	}
	return amount, nil
}

// TokenBalanceSet overwrites the settlement token balance for the account.
func (m *Manager) TokenBalanceSet(addr [20]byte, amount *big.Int) error {
	if m == nil {
		return fmt.Errorf("token: state manager not initialised")
	}
	if amount != nil && amount.Sign() < 0 {
		return fmt.Errorf("token: negative balance not allowed")
	}
	if err := m.KVPut(tokenBalanceKey(addr), ledger.CloneBig(amount)); err != nil {
		return fmt.Errorf("token: persist balance: %w", err)
	}
	return nil
}

// TokenAllowanceGet returns the amount the spender may pull from the owner.
// Missing entries default to zero.
func (m *Manager) TokenAllowanceGet(owner, spender [20]byte) (*big.Int, error) {
	if m == nil {
		return nil, fmt.Errorf("token: state manager not initialised")
	}
	amount, err := m.loadAmount(tokenAllowanceKey(owner, spender))
	if err != nil {
		return nil, fmt.Errorf("token: load allowance: %w", err)
	}
	return amount, nil
}

// TokenAllowanceSet overwrites the allowance the spender may pull from the
// owner.
func (m *Manager) TokenAllowanceSet(owner, spender [20]byte, amount *big.Int) error {
	if m == nil {
		return fmt.Errorf("token: state manager not initialised")
	}
	if amount != nil && amount.Sign() < 0 {
		return fmt.Errorf("token: negative allowance not allowed")
	}
	if err := m.KVPut(tokenAllowanceKey(owner, spender), ledger.CloneBig(amount)); err != nil {
		return fmt.Errorf("token: persist allowance: %w", err)
	}
	return nil
}

// TokenSupplyGet returns the total minted supply. Missing entries default to
// zero.
func (m *Manager) TokenSupplyGet() (*big.Int, error) {
	if m == nil {
		return nil, fmt.Errorf("token: state manager not initialised")
	}
	amount, err := m.loadAmount(tokenSupplyKey)
	if err != nil {
		return nil, fmt.Errorf("token: load supply: %w", err)
	}
	return amount, nil
}

// TokenSupplySet overwrites the total minted supply.
func (m *Manager) TokenSupplySet(amount *big.Int) error {
	if m == nil {
		return fmt.Errorf("token: state manager not initialised")
	}
	if amount != nil && amount.Sign() < 0 {
		return fmt.Errorf("token: supply cannot be negative")
	}
	if err := m.KVPut(tokenSupplyKey, ledger.CloneBig(amount)); err != nil {
		return fmt.Errorf("token: persist supply: %w", err)
	}
	return nil
}
