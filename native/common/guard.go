package common

import (
	"errors"
	"sync/atomic"
)

// ErrReentrantCall is returned when a protected operation is entered again
// before the previous entry has returned.
var ErrReentrantCall = errors.New("guard: reentrant call")

// Guard rejects nested re-entry into the operations of one engine. State is
// committed before any external transfer, so a reentrant call would already
// fail the ordinary status checks; the guard closes the path outright,
// regardless of which pool or room the nested call targets.
type Guard struct {
	busy atomic.Bool
}

// Enter claims the guard. It fails if the guard is already held.
func (g *Guard) Enter() error {
	if g == nil {
		return nil
	}
	if !g.busy.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	return nil
}

// Exit releases the guard. Must be paired with a successful Enter.
func (g *Guard) Exit() {
	if g == nil {
		return
	}
	g.busy.Store(false)
}
