package pool

import (
	"math/big"

	"github.com/BenjDW/maitre-slither/core/events"
)

const (
	// EventTypeCreated is emitted when the operator opens a new pool.
	EventTypeCreated = "pool.created"
	// EventTypeJoined is emitted for every successful join, including the
	// one that fills the pool.
	EventTypeJoined = "pool.joined"
	// EventTypeStarted is emitted when the operator locks the pool and the
	// fee is reserved.
	EventTypeStarted = "pool.started"
	// EventTypeSettled is emitted for every death or alive settlement.
	EventTypeSettled = "pool.settled"
	// EventTypeRevived is emitted when an exited participant buys back in.
	EventTypeRevived = "pool.revived"
	// EventTypeEnded is emitted when the operator closes the pool and the
	// reserved fee accrues to the treasury pot.
	EventTypeEnded = "pool.ended"
)

// Settlement outcome labels used in SettledEvent attributes.
const (
	OutcomeDeath = "death"
	OutcomeAlive = "alive"
)

// CreatedEvent records a newly opened pool.
type CreatedEvent struct {
	PoolID       uint64
	Stake        *big.Int
	TargetCount  uint32
	JoinDeadline int64
}

// EventType implements events.Event.
func (*CreatedEvent) EventType() string { return EventTypeCreated }

// Attributes implements events.Attributer.
func (e *CreatedEvent) Attributes() map[string]string {
	return map[string]string{
		"poolId":       events.Uint64String(e.PoolID),
		"stake":        events.BigString(e.Stake),
		"targetCount":  events.Uint32String(e.TargetCount),
		"joinDeadline": events.Uint64String(uint64(e.JoinDeadline)),
	}
}

// JoinedEvent records a participant taking a seat.
type JoinedEvent struct {
	PoolID      uint64
	Participant [20]byte
	Stake       *big.Int
	ActiveCount uint32
	Status      Status
}

// EventType implements events.Event.
func (*JoinedEvent) EventType() string { return EventTypeJoined }

// Attributes implements events.Attributer.
func (e *JoinedEvent) Attributes() map[string]string {
	return map[string]string{
		"poolId":      events.Uint64String(e.PoolID),
		"participant": events.HexAddress(e.Participant),
		"stake":       events.BigString(e.Stake),
		"activeCount": events.Uint32String(e.ActiveCount),
		"status":      e.Status.String(),
	}
}

// StartedEvent records the transition to live play and the reserved fee.
type StartedEvent struct {
	PoolID      uint64
	FeeRateBps  uint32
	ReservedFee *big.Int
	Deposited   *big.Int
}

// EventType implements events.Event.
func (*StartedEvent) EventType() string { return EventTypeStarted }

// Attributes implements events.Attributer.
func (e *StartedEvent) Attributes() map[string]string {
	return map[string]string{
		"poolId":      events.Uint64String(e.PoolID),
		"feeRateBps":  events.Uint32String(e.FeeRateBps),
		"reservedFee": events.BigString(e.ReservedFee),
		"deposited":   events.BigString(e.Deposited),
	}
}

// SettledEvent records one participant's exit payout.
type SettledEvent struct {
	PoolID      uint64
	Participant [20]byte
	Outcome     string
	Value       *big.Int
	Payout      *big.Int
	EventID     uint64
	ActiveCount uint32
}

// EventType implements events.Event.
func (*SettledEvent) EventType() string { return EventTypeSettled }

// Attributes implements events.Attributer.
func (e *SettledEvent) Attributes() map[string]string {
	return map[string]string{
		"poolId":      events.Uint64String(e.PoolID),
		"participant": events.HexAddress(e.Participant),
		"outcome":     e.Outcome,
		"value":       events.BigString(e.Value),
		"payout":      events.BigString(e.Payout),
		"eventId":     events.Uint64String(e.EventID),
		"activeCount": events.Uint32String(e.ActiveCount),
	}
}

// RevivedEvent records an exited participant re-entering with a fresh stake.
type RevivedEvent struct {
	PoolID      uint64
	Participant [20]byte
	Stake       *big.Int
	ActiveCount uint32
}

// EventType implements events.Event.
func (*RevivedEvent) EventType() string { return EventTypeRevived }

// Attributes implements events.Attributer.
func (e *RevivedEvent) Attributes() map[string]string {
	return map[string]string{
		"poolId":      events.Uint64String(e.PoolID),
		"participant": events.HexAddress(e.Participant),
		"stake":       events.BigString(e.Stake),
		"activeCount": events.Uint32String(e.ActiveCount),
	}
}

// EndedEvent records the pool closing and its fee accruing to the treasury
// pot.
type EndedEvent struct {
	PoolID     uint64
	AccruedFee *big.Int
}

// EventType implements events.Event.
func (*EndedEvent) EventType() string { return EventTypeEnded }

// Attributes implements events.Attributer.
func (e *EndedEvent) Attributes() map[string]string {
	return map[string]string{
		"poolId":     events.Uint64String(e.PoolID),
		"accruedFee": events.BigString(e.AccruedFee),
	}
}
