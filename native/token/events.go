package token

import (
	"math/big"

	"github.com/BenjDW/maitre-slither/core/events"
)

const (
	// EventTypeMinted is emitted when new supply is created.
	EventTypeMinted = "token.minted"
	// EventTypeTransferred is emitted for every balance movement, including
	// vault deposits and payouts.
	EventTypeTransferred = "token.transferred"
)

// MintedEvent records newly created supply.
type MintedEvent struct {
	To     [20]byte
	Amount *big.Int
}

// EventType implements events.Event.
func (*MintedEvent) EventType() string { return EventTypeMinted }

// Attributes implements events.Attributer.
func (e *MintedEvent) Attributes() map[string]string {
	return map[string]string{
		"to":     events.HexAddress(e.To),
		"amount": events.BigString(e.Amount),
	}
}

// TransferredEvent records a balance movement between two accounts.
type TransferredEvent struct {
	From   [20]byte
	To     [20]byte
	Amount *big.Int
}

// EventType implements events.Event.
func (*TransferredEvent) EventType() string { return EventTypeTransferred }

// Attributes implements events.Attributer.
func (e *TransferredEvent) Attributes() map[string]string {
	return map[string]string{
		"from":   events.HexAddress(e.From),
		"to":     events.HexAddress(e.To),
		"amount": events.BigString(e.Amount),
	}
}
