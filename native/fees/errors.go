package fees

import "errors"

var (
	// ErrRateTooHigh marks a basis-point rate above the policy ceiling.
	ErrRateTooHigh = errors.New("fees: rate above ceiling")
	// ErrInvalidAmount marks a nil, zero or negative withdrawal amount.
	ErrInvalidAmount = errors.New("fees: amount must be positive")
	// ErrInsufficientAccrued marks a withdrawal exceeding the accrued total.
	ErrInsufficientAccrued = errors.New("fees: withdrawal exceeds accrued fees")
	// ErrNilState is returned when the engine is used before wiring.
	ErrNilState = errors.New("fees: state not configured")
	// ErrNilRegistry is returned when no admin registry is wired.
	ErrNilRegistry = errors.New("fees: registry not configured")
	// ErrNilCustodian is returned when no custody vault is wired.
	ErrNilCustodian = errors.New("fees: custodian not configured")
)
