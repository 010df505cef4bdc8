package ledger

import "errors"

var (
	// ErrInvalidAmount rejects nil or negative amounts, and zero amounts
	// where a positive value is required.
	ErrInvalidAmount = errors.New("ledger: invalid amount")
	// ErrInsufficientFunds indicates a debit or reservation exceeds the
	// remaining custody balance.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
)
