package room

import (
	"math/big"

	"github.com/BenjDW/maitre-slither/native/ledger"
)

// Status tracks the lifecycle of a paired room. Rooms only move forward;
// StatusCancelled is reached when both players refund after the deadline.
type Status uint8

const (
	StatusNone Status = iota
	StatusCreated
	StatusReady
	StatusStarted
	StatusResolved
	StatusCancelled
)

// Valid reports whether the status is a known enumeration value.
func (s Status) Valid() bool {
	switch s {
	case StatusNone, StatusCreated, StatusReady, StatusStarted, StatusResolved, StatusCancelled:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusCreated:
		return "created"
	case StatusReady:
		return "ready"
	case StatusStarted:
		return "started"
	case StatusResolved:
		return "resolved"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

type operation uint8

const (
	opJoin operation = iota
	opStart
	opResolve
	opRefund
)

// allowedStatus is the transition gate consulted by every mutating operation.
var allowedStatus = map[operation]map[Status]bool{
	opJoin:    {StatusCreated: true, StatusReady: true},
	opStart:   {StatusReady: true},
	opResolve: {StatusStarted: true},
	opRefund:  {StatusCreated: true, StatusReady: true, StatusStarted: true},
}

func statusAllows(op operation, status Status) bool {
	return allowedStatus[op][status]
}

// Room is one escrow instance in the two-player variant. The pair of players,
// the stake and the join deadline are fixed at creation, and the fee rate is
// snapshotted at creation rather than at start.
type Room struct {
	ID           uint64
	Players      [2][20]byte
	Stake        *big.Int
	JoinDeadline int64
	FeeRateBps   uint32
	Status       Status
	PaidMask     uint8
	RefundedMask uint8
	Winner       [20]byte
	CreatedAt    int64
	StartedAt    int64
	ResolvedAt   int64
	Funds        ledger.Funds
}

// Clone returns a deep copy safe to hand to callers.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Stake = ledger.CloneBig(r.Stake)
	clone.Funds = r.Funds.Clone()
	return &clone
}

func (r *Room) normalize() {
	if r.Stake == nil {
		r.Stake = big.NewInt(0)
	}
	r.Funds.Normalize()
}

// playerIndex resolves an identity to its slot, reporting false for
// outsiders.
func (r *Room) playerIndex(addr [20]byte) (int, bool) {
	for i, player := range r.Players {
		if player == addr {
			return i, true
		}
	}
	return 0, false
}

// HasPaid reports whether the slot's payment bit is set.
func (r *Room) HasPaid(slot int) bool {
	return r.PaidMask&(1<<uint(slot)) != 0
}

// HasRefunded reports whether the slot's refund bit is set.
func (r *Room) HasRefunded(slot int) bool {
	return r.RefundedMask&(1<<uint(slot)) != 0
}

// BothPaid reports whether both players have deposited their stake.
func (r *Room) BothPaid() bool {
	return r.PaidMask == 0b11
}

// BothRefunded reports whether both players have taken the refund path.
func (r *Room) BothRefunded() bool {
	return r.RefundedMask == 0b11
}
