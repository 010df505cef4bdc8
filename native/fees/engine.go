package fees

import (
	"math/big"

	"github.com/BenjDW/maitre-slither/core/events"
	"github.com/BenjDW/maitre-slither/native/common"
	"github.com/BenjDW/maitre-slither/native/ledger"
)

type engineState interface {
	FeesAccruedGet() (*big.Int, error)
	FeesAccruedSet(amount *big.Int) error
}

type adminView interface {
	Authorize(actor [20]byte, role common.Role) error
	Treasury() ([20]byte, error)
}

type custodian interface {
	TransferOut(to [20]byte, amount *big.Int) error
}

// Engine pays accrued protocol fees out of custody to the treasury. Fees are
// credited by the pool and room engines when games settle; this engine only
// reads and drains the accrued total.
type Engine struct {
	state    engineState
	registry adminView
	vault    custodian
	emitter  events.Emitter
	guard    common.Guard
}

// NewEngine creates a fees engine with a no-op emitter. Callers wire state,
// registry and custodian before use.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetRegistry configures the admin registry that answers role checks.
func (e *Engine) SetRegistry(registry adminView) { e.registry = registry }

// SetCustodian configures the vault that releases withdrawn funds.
func (e *Engine) SetCustodian(vault custodian) { e.vault = vault }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) wired() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if e.registry == nil {
		return ErrNilRegistry
	}
	if e.vault == nil {
		return ErrNilCustodian
	}
	return nil
}

// Accrued returns the total fees collected but not yet withdrawn.
func (e *Engine) Accrued() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	accrued, err := e.state.FeesAccruedGet()
	if err != nil {
		return nil, err
	}
	return ledger.CloneBig(accrued), nil
}

// Withdraw moves amount from the accrued fee pot to the treasury account.
// Only the owner may call it. All checks complete before any state is
// touched; the custody transfer is the final step.
func (e *Engine) Withdraw(caller [20]byte, amount *big.Int) error {
	if err := e.guard.Enter(); err != nil {
		return err
	}
	defer e.guard.Exit()

	if err := e.wired(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := e.registry.Authorize(caller, common.RoleOwner); err != nil {
		return err
	}
	treasury, err := e.registry.Treasury()
	if err != nil {
		return err
	}
	accrued, err := e.state.FeesAccruedGet()
	if err != nil {
		return err
	}
	accrued = ledger.CloneBig(accrued)
	if accrued.Cmp(amount) < 0 {
		return ErrInsufficientAccrued
	}

	remaining := new(big.Int).Sub(accrued, amount)
	if err := e.state.FeesAccruedSet(remaining); err != nil {
		return err
	}
	if err := e.vault.TransferOut(treasury, amount); err != nil {
		return err
	}
	e.emit(&WithdrawnEvent{Treasury: treasury, Amount: ledger.CloneBig(amount), Remaining: remaining})
	return nil
}
