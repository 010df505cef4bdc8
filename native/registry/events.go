package registry

import "github.com/BenjDW/maitre-slither/core/events"

const (
	// EventTypeBootstrapped is emitted once when the genesis admin record
	// is written.
	EventTypeBootstrapped = "registry.bootstrapped"
	// EventTypeUpdated is emitted whenever an owner rotates an admin
	// identity or changes the fee rate.
	EventTypeUpdated = "registry.updated"
)

// BootstrappedEvent records the initial admin configuration.
type BootstrappedEvent struct {
	Owner      [20]byte
	Operator   [20]byte
	Treasury   [20]byte
	FeeRateBps uint32
}

// EventType implements events.Event.
func (*BootstrappedEvent) EventType() string { return EventTypeBootstrapped }

// Attributes implements events.Attributer.
func (e *BootstrappedEvent) Attributes() map[string]string {
	return map[string]string{
		"owner":      events.HexAddress(e.Owner),
		"operator":   events.HexAddress(e.Operator),
		"treasury":   events.HexAddress(e.Treasury),
		"feeRateBps": events.Uint32String(e.FeeRateBps),
	}
}

// UpdatedEvent records a single admin field change.
type UpdatedEvent struct {
	Field    string
	Previous string
	Next     string
}

// EventType implements events.Event.
func (*UpdatedEvent) EventType() string { return EventTypeUpdated }

// Attributes implements events.Attributer.
func (e *UpdatedEvent) Attributes() map[string]string {
	return map[string]string{
		"field":    e.Field,
		"previous": e.Previous,
		"next":     e.Next,
	}
}
