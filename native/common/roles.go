package common

// Role identifies the administrative capability an operation requires. Role
// checks are centralised in the registry's Authorize decision function;
// engines never compare addresses against stored identities themselves.
type Role uint8

const (
	// RoleOwner may rotate admin identities, change the fee rate and
	// withdraw accrued fees.
	RoleOwner Role = iota + 1
	// RoleOperator may create pools and rooms, start games and declare
	// settlement outcomes.
	RoleOperator
)

// Valid reports whether the role value is within the supported range.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleOperator:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleOperator:
		return "operator"
	default:
		return "unknown"
	}
}
