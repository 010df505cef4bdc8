package pool

import (
	"math/big"

	"github.com/BenjDW/maitre-slither/native/ledger"
)

// Status tracks the lifecycle of a pool. Pools only move forward;
// StatusCancelled is reserved for a future operator-abort path and is not
// reachable through the current operations.
type Status uint8

const (
	StatusNone Status = iota
	StatusWaiting
	StatusFull
	StatusLive
	StatusEnded
	StatusCancelled
)

// Valid reports whether the status is a known enumeration value.
func (s Status) Valid() bool {
	switch s {
	case StatusNone, StatusWaiting, StatusFull, StatusLive, StatusEnded, StatusCancelled:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusWaiting:
		return "waiting"
	case StatusFull:
		return "full"
	case StatusLive:
		return "live"
	case StatusEnded:
		return "ended"
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
	opSettle
	opRevive
	opEnd
)

// allowedStatus is the transition gate consulted by every mutating operation.
// Lookups are exact so adding a new status never silently widens an existing
// operation.
var allowedStatus = map[operation]map[Status]bool{
	opJoin:   {StatusWaiting: true, StatusFull: true},
	opStart:  {StatusWaiting: true, StatusFull: true},
	opSettle: {StatusLive: true},
	opRevive: {StatusLive: true},
	opEnd:    {StatusLive: true},
}

func statusAllows(op operation, status Status) bool {
	return allowedStatus[op][status]
}

// Pool is one escrow instance in the N-player variant. Stake, TargetCount and
// JoinDeadline are fixed at creation; FeeRateBps is snapshotted when the
// operator starts the game.
type Pool struct {
	ID           uint64
	Stake        *big.Int
	TargetCount  uint32
	JoinDeadline int64
	FeeRateBps   uint32
	Status       Status
	ActiveCount  uint32
	CreatedAt    int64
	StartedAt    int64
	EndedAt      int64
	Funds        ledger.Funds
}

// Clone returns a deep copy safe to hand to callers.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Stake = ledger.CloneBig(p.Stake)
	clone.Funds = p.Funds.Clone()
	return &clone
}

func (p *Pool) normalize() {
	if p.Stake == nil {
		p.Stake = big.NewInt(0)
	}
	p.Funds.Normalize()
}

// Participant is the per-pool record of one identity. Deposited accumulates
// across the initial join and every revival. Active and Exited are mutually
// exclusive once EverJoined is set.
type Participant struct {
	Deposited  *big.Int
	EverJoined bool
	Active     bool
	Exited     bool
}

// Clone returns a deep copy safe to hand to callers.
func (p *Participant) Clone() *Participant {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Deposited = ledger.CloneBig(p.Deposited)
	return &clone
}

func (p *Participant) normalize() {
	if p.Deposited == nil {
		p.Deposited = big.NewInt(0)
	}
}
