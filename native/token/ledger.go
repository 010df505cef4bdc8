// Package token implements the single settlement token every pool and room is
// denominated in. Balances, allowances and supply live in node state; the
// vault account holds all escrowed funds.
package token

import (
	"math/big"

	"github.com/BenjDW/maitre-slither/core/events"
	"github.com/BenjDW/maitre-slither/native/ledger"
)

// State captures the subset of state manager capabilities the token ledger
// needs.
type State interface {
	TokenBalanceGet(addr [20]byte) (*big.Int, error)
	TokenBalanceSet(addr [20]byte, amount *big.Int) error
	TokenAllowanceGet(owner, spender [20]byte) (*big.Int, error)
	TokenAllowanceSet(owner, spender [20]byte, amount *big.Int) error
	TokenSupplyGet() (*big.Int, error)
	TokenSupplySet(amount *big.Int) error
}

// Ledger moves settlement token balances. It performs no authorization of its
// own; privileged entry points such as minting are gated by their callers.
type Ledger struct {
	state   State
	emitter events.Emitter
}

// NewLedger constructs a ledger with no backing state. Callers must wire a
// state manager via SetState before use.
func NewLedger() *Ledger {
	return &Ledger{emitter: events.NoopEmitter{}}
}

// SetState wires the state backend.
func (l *Ledger) SetState(state State) {
	l.state = state
}

// SetEmitter configures the sink that receives token events. Passing nil
// restores the default no-op emitter.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	l.emitter = emitter
}

func (l *Ledger) withState() (State, error) {
	if l == nil || l.state == nil {
		return nil, ErrNilState
	}
	return l.state, nil
}

func (l *Ledger) emit(evt events.Event) {
	if l == nil || l.emitter == nil {
		return
	}
	l.emitter.Emit(evt)
}

// BalanceOf returns the balance held by addr.
func (l *Ledger) BalanceOf(addr [20]byte) (*big.Int, error) {
	state, err := l.withState()
	if err != nil {
		return nil, err
	}
	balance, err := state.TokenBalanceGet(addr)
	if err != nil {
		return nil, err
	}
	return ledger.CloneBig(balance), nil
}

// Allowance returns the spending budget owner has granted to spender.
func (l *Ledger) Allowance(owner, spender [20]byte) (*big.Int, error) {
	state, err := l.withState()
	if err != nil {
		return nil, err
	}
	allowance, err := state.TokenAllowanceGet(owner, spender)
	if err != nil {
		return nil, err
	}
	return ledger.CloneBig(allowance), nil
}

// TotalSupply returns the amount of settlement token ever minted.
func (l *Ledger) TotalSupply() (*big.Int, error) {
	state, err := l.withState()
	if err != nil {
		return nil, err
	}
	supply, err := state.TokenSupplyGet()
	if err != nil {
		return nil, err
	}
	return ledger.CloneBig(supply), nil
}

// Mint creates amount new units and credits them to the destination account.
func (l *Ledger) Mint(to [20]byte, amount *big.Int) error {
	state, err := l.withState()
	if err != nil {
		return err
	}
	if to == ([20]byte{}) {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	balance, err := state.TokenBalanceGet(to)
	if err != nil {
		return err
	}
	supply, err := state.TokenSupplyGet()
	if err != nil {
		return err
	}
	next := new(big.Int).Add(ledger.CloneBig(balance), amount)
	if err := state.TokenBalanceSet(to, next); err != nil {
		return err
	}
	if err := state.TokenSupplySet(new(big.Int).Add(ledger.CloneBig(supply), amount)); err != nil {
		return err
	}
	l.emit(&MintedEvent{To: to, Amount: ledger.CloneBig(amount)})
	return nil
}

// Transfer moves amount from one account to another. A zero amount is a
// no-op.
func (l *Ledger) Transfer(from, to [20]byte, amount *big.Int) error {
	state, err := l.withState()
	if err != nil {
		return err
	}
	if to == ([20]byte{}) {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	fromBalance, err := state.TokenBalanceGet(from)
	if err != nil {
		return err
	}
	fromBalance = ledger.CloneBig(fromBalance)
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if from == to {
		return nil
	}
	toBalance, err := state.TokenBalanceGet(to)
	if err != nil {
		return err
	}
	if err := state.TokenBalanceSet(from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	if err := state.TokenBalanceSet(to, new(big.Int).Add(ledger.CloneBig(toBalance), amount)); err != nil {
		return err
	}
	l.emit(&TransferredEvent{From: from, To: to, Amount: ledger.CloneBig(amount)})
	return nil
}

// Approve grants spender a spending budget from owner's balance. A zero
// amount clears the allowance.
func (l *Ledger) Approve(owner, spender [20]byte, amount *big.Int) error {
	state, err := l.withState()
	if err != nil {
		return err
	}
	if spender == ([20]byte{}) {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	return state.TokenAllowanceSet(owner, spender, ledger.CloneBig(amount))
}

// TransferFrom moves amount from owner to the destination using spender's
// allowance.
func (l *Ledger) TransferFrom(spender, owner, to [20]byte, amount *big.Int) error {
	state, err := l.withState()
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	allowance, err := state.TokenAllowanceGet(owner, spender)
	if err != nil {
		return err
	}
	allowance = ledger.CloneBig(allowance)
	if allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := l.Transfer(owner, to, amount); err != nil {
		return err
	}
	return state.TokenAllowanceSet(owner, spender, new(big.Int).Sub(allowance, amount))
}
