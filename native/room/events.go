package room

import (
	"math/big"

	"github.com/BenjDW/maitre-slither/core/events"
)

const (
	// EventTypeCreated is emitted when the operator opens a room for a pair.
	EventTypeCreated = "room.created"
	// EventTypeJoined is emitted when a player deposits their stake.
	EventTypeJoined = "room.joined"
	// EventTypeStarted is emitted when play begins.
	EventTypeStarted = "room.started"
	// EventTypeResolved is emitted when an operator-signed outcome settles
	// the room.
	EventTypeResolved = "room.resolved"
	// EventTypeRefunded is emitted for each post-deadline self-refund.
	EventTypeRefunded = "room.refunded"
)

// CreatedEvent records a newly opened room.
type CreatedEvent struct {
	RoomID       uint64
	PlayerA      [20]byte
	PlayerB      [20]byte
	Stake        *big.Int
	JoinDeadline int64
	FeeRateBps   uint32
}

// EventType implements events.Event.
func (*CreatedEvent) EventType() string { return EventTypeCreated }

// Attributes implements events.Attributer.
func (e *CreatedEvent) Attributes() map[string]string {
	return map[string]string{
		"roomId":       events.Uint64String(e.RoomID),
		"playerA":      events.HexAddress(e.PlayerA),
		"playerB":      events.HexAddress(e.PlayerB),
		"stake":        events.BigString(e.Stake),
		"joinDeadline": events.Uint64String(uint64(e.JoinDeadline)),
		"feeRateBps":   events.Uint32String(e.FeeRateBps),
	}
}

// JoinedEvent records one player's deposit.
type JoinedEvent struct {
	RoomID uint64
	Player [20]byte
	Stake  *big.Int
	Status Status
}

// EventType implements events.Event.
func (*JoinedEvent) EventType() string { return EventTypeJoined }

// Attributes implements events.Attributer.
func (e *JoinedEvent) Attributes() map[string]string {
	return map[string]string{
		"roomId": events.Uint64String(e.RoomID),
		"player": events.HexAddress(e.Player),
		"stake":  events.BigString(e.Stake),
		"status": e.Status.String(),
	}
}

// StartedEvent records the transition to live play.
type StartedEvent struct {
	RoomID uint64
}

// EventType implements events.Event.
func (*StartedEvent) EventType() string { return EventTypeStarted }

// Attributes implements events.Attributer.
func (e *StartedEvent) Attributes() map[string]string {
	return map[string]string{
		"roomId": events.Uint64String(e.RoomID),
	}
}

// ResolvedEvent records the signed settlement outcome.
type ResolvedEvent struct {
	RoomID uint64
	Winner [20]byte
	Pot    *big.Int
	Fee    *big.Int
	Payout *big.Int
	Nonce  uint64
}

// EventType implements events.Event.
func (*ResolvedEvent) EventType() string { return EventTypeResolved }

// Attributes implements events.Attributer.
func (e *ResolvedEvent) Attributes() map[string]string {
	return map[string]string{
		"roomId": events.Uint64String(e.RoomID),
		"winner": events.HexAddress(e.Winner),
		"pot":    events.BigString(e.Pot),
		"fee":    events.BigString(e.Fee),
		"payout": events.BigString(e.Payout),
		"nonce":  events.Uint64String(e.Nonce),
	}
}

// RefundedEvent records one player's post-deadline refund. Status is the room
// status after the refund, so the flip to cancelled is visible on the second
// event.
type RefundedEvent struct {
	RoomID uint64
	Player [20]byte
	Stake  *big.Int
	Status Status
}

// EventType implements events.Event.
func (*RefundedEvent) EventType() string { return EventTypeRefunded }

// Attributes implements events.Attributer.
func (e *RefundedEvent) Attributes() map[string]string {
	return map[string]string{
		"roomId": events.Uint64String(e.RoomID),
		"player": events.HexAddress(e.Player),
		"stake":  events.BigString(e.Stake),
		"status": e.Status.String(),
	}
}
