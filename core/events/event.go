package events

// Event represents a structured state change emitted by the settlement node.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// Attributer is implemented by events that can flatten their payload into
// string attributes for transport surfaces such as the websocket feed.
type Attributer interface {
	Attributes() map[string]string
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is the default for engines whose caller has not wired a subscriber.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}
