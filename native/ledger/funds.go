// Package ledger provides the custody accounting embedded in every pool and
// room record. It tracks lifetime deposits, the fee slice earmarked for the
// treasury and lifetime payouts, and derives the spendable remainder.
package ledger

import "math/big"

// CloneBig returns an independent copy of v, treating nil as zero.
func CloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// Funds tracks custody accounting for a single pool or room. Amounts are in
// base units of the settlement token and are never negative. Deposited and
// PaidOut are lifetime totals; refunds count toward PaidOut just like
// settlement payouts.
type Funds struct {
	Deposited   *big.Int
	ReservedFee *big.Int
	PaidOut     *big.Int
}

// NewFunds returns a zeroed accounting record.
func NewFunds() Funds {
	return Funds{
		Deposited:   big.NewInt(0),
		ReservedFee: big.NewInt(0),
		PaidOut:     big.NewInt(0),
	}
}

// Normalize replaces nil amounts with zero so decoded records are safe to
// operate on.
func (f *Funds) Normalize() {
	if f.Deposited == nil {
		f.Deposited = big.NewInt(0)
	}
	if f.ReservedFee == nil {
		f.ReservedFee = big.NewInt(0)
	}
	if f.PaidOut == nil {
		f.PaidOut = big.NewInt(0)
	}
}

// Credit records a deposit into custody. The amount must be positive.
func (f *Funds) Credit(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	f.Normalize()
	f.Deposited = new(big.Int).Add(f.Deposited, amount)
	return nil
}

// ReserveFee earmarks part of the remaining balance for the protocol fee. A
// zero reservation is a no-op.
func (f *Funds) ReserveFee(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	f.Normalize()
	if amount.Cmp(f.Available()) > 0 {
		return ErrInsufficientFunds
	}
	f.ReservedFee = new(big.Int).Add(f.ReservedFee, amount)
	return nil
}

// Debit records a payout or refund leaving custody. A zero debit is a no-op;
// settlement formulas can round a tiny pot down to nothing.
func (f *Funds) Debit(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	f.Normalize()
	if amount.Cmp(f.Available()) > 0 {
		return ErrInsufficientFunds
	}
	f.PaidOut = new(big.Int).Add(f.PaidOut, amount)
	return nil
}

// Available returns the balance not yet reserved or paid out, clamped at
// zero.
func (f *Funds) Available() *big.Int {
	f.Normalize()
	available := new(big.Int).Sub(f.Deposited, f.ReservedFee)
	available.Sub(available, f.PaidOut)
	if available.Sign() < 0 {
		return big.NewInt(0)
	}
	return available
}

// Clone returns a deep copy of the record.
func (f Funds) Clone() Funds {
	return Funds{
		Deposited:   CloneBig(f.Deposited),
		ReservedFee: CloneBig(f.ReservedFee),
		PaidOut:     CloneBig(f.PaidOut),
	}
}
