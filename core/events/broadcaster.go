package events

import (
	"sync"

	"github.com/BenjDW/maitre-slither/core/types"
)

// Entry is one broadcast event with its position in the stream. Sequence
// numbers start at 1 and never repeat within a process.
type Entry struct {
	Sequence uint64 `json:"sequence"`
	types.Event
}

// Broadcaster fans emitted events out to live subscribers while retaining a
// bounded backlog so late subscribers can catch up from a cursor. It
// implements Emitter and is safe for concurrent use. Slow subscribers are
// dropped rather than allowed to block settlement operations.
type Broadcaster struct {
	mu      sync.Mutex
	seq     uint64
	backlog []Entry
	limit   int
	subs    map[uint64]chan Entry
	nextSub uint64
}

// NewBroadcaster creates a broadcaster retaining up to limit entries of
// backlog. A non-positive limit falls back to 1024.
func NewBroadcaster(limit int) *Broadcaster {
	if limit <= 0 {
		limit = 1024
	}
	return &Broadcaster{
		limit: limit,
		subs:  make(map[uint64]chan Entry),
	}
}

// Emit implements Emitter. The event's attributes are captured at emit time so
// later mutation of the event value cannot alter the stream.
func (b *Broadcaster) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	var attrs map[string]string
	if attributer, ok := evt.(Attributer); ok {
		source := attributer.Attributes()
		if len(source) > 0 {
			attrs = make(map[string]string, len(source))
			for k, v := range source {
				attrs[k] = v
			}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	entry := Entry{Sequence: b.seq, Event: types.Event{Type: evt.EventType(), Attributes: attrs}}
	b.backlog = append(b.backlog, entry)
	if len(b.backlog) > b.limit {
		b.backlog = b.backlog[len(b.backlog)-b.limit:]
	}
	for id, ch := range b.subs {
		select {
		case ch <- entry:
		default:
			close(ch)
			delete(b.subs, id)
		}
	}
}

// Subscribe registers a live subscriber and returns the entries recorded after
// the supplied cursor (0 replays the whole retained backlog). The returned
// cancel function must be called when the subscriber goes away.
func (b *Broadcaster) Subscribe(cursor uint64) (<-chan Entry, func(), []Entry) {
	if b == nil {
		ch := make(chan Entry)
		close(ch)
		return ch, func() {}, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	var replay []Entry
	for _, entry := range b.backlog {
		if entry.Sequence > cursor {
			replay = append(replay, entry)
		}
	}

	id := b.nextSub
	b.nextSub++
	ch := make(chan Entry, 256)
	b.subs[id] = ch
	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if existing, ok := b.subs[id]; ok {
			close(existing)
			delete(b.subs, id)
		}
	}
	return ch, cancel, replay
}

// Sequence returns the sequence number of the most recently emitted entry.
func (b *Broadcaster) Sequence() uint64 {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}
