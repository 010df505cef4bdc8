package registry

import "errors"

var (
	// ErrNilState indicates the registry was used before SetState wired a
	// backing parameter store.
	ErrNilState = errors.New("registry: state not configured")
	// ErrNotBootstrapped indicates no admin record has been written yet.
	ErrNotBootstrapped = errors.New("registry: not bootstrapped")
	// ErrZeroAddress rejects the zero account for any admin identity.
	ErrZeroAddress = errors.New("registry: zero address")
	// ErrNotOwner indicates the acting account does not hold the owner role.
	ErrNotOwner = errors.New("registry: caller is not the owner")
	// ErrNotOperator indicates the acting account does not hold the
	// operator role.
	ErrNotOperator = errors.New("registry: caller is not the operator")
	// ErrUnknownRole rejects authorization checks against a role value the
	// registry does not track.
	ErrUnknownRole = errors.New("registry: unknown role")
)
