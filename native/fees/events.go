package fees

import (
	"math/big"

	"github.com/BenjDW/maitre-slither/core/events"
)

// EventTypeWithdrawn is emitted when accrued fees leave custody for the
// treasury.
const EventTypeWithdrawn = "fees.withdrawn"

// WithdrawnEvent records a treasury withdrawal.
type WithdrawnEvent struct {
	Treasury  [20]byte
	Amount    *big.Int
	Remaining *big.Int
}

// EventType implements events.Event.
func (*WithdrawnEvent) EventType() string { return EventTypeWithdrawn }

// Attributes implements events.Attributer.
func (e *WithdrawnEvent) Attributes() map[string]string {
	return map[string]string{
		"treasury":  events.HexAddress(e.Treasury),
		"amount":    events.BigString(e.Amount),
		"remaining": events.BigString(e.Remaining),
	}
}
