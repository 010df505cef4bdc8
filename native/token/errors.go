package token

import "errors"

var (
	// ErrNilState indicates the ledger was used before SetState wired a
	// backing store.
	ErrNilState = errors.New("token: state not configured")
	// ErrZeroAddress rejects the zero account as a transfer or mint
	// destination.
	ErrZeroAddress = errors.New("token: zero address")
	// ErrInvalidAmount rejects nil or negative amounts.
	ErrInvalidAmount = errors.New("token: invalid amount")
	// ErrInsufficientBalance indicates the sender holds less than the
	// requested amount.
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	// ErrInsufficientAllowance indicates the spender's approved budget is
	// smaller than the requested amount.
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
)
