// Package pool implements the N-player escrow variant: participants deposit a
// fixed stake, the operator starts the game, declares per-participant death or
// alive outcomes, and closes the pool. Payouts are bounded pool-wide by the
// deposits net of the reserved fee, never per participant.
package pool

import (
	"math/big"
	"time"

	"github.com/BenjDW/maitre-slither/core/events"
	"github.com/BenjDW/maitre-slither/native/common"
	"github.com/BenjDW/maitre-slither/native/fees"
	"github.com/BenjDW/maitre-slither/native/ledger"
)

// deathPayoutDivisor halves a declared value when a participant exits dead.
const deathPayoutDivisor = 2

type engineState interface {
	PoolNextID() (uint64, error)
	PoolPut(p *Pool) error
	PoolGet(id uint64) (*Pool, bool, error)
	PoolParticipantPut(poolID uint64, addr [20]byte, record *Participant) error
	PoolParticipantGet(poolID uint64, addr [20]byte) (*Participant, bool, error)
	PoolEventConsumed(poolID, eventID uint64) (bool, error)
	PoolConsumeEvent(poolID, eventID uint64) error
	FeesAccruedGet() (*big.Int, error)
	FeesAccruedSet(amount *big.Int) error
}

type adminView interface {
	Authorize(actor [20]byte, role common.Role) error
	FeeRateBps() (uint32, error)
}

type custodian interface {
	TransferIn(from [20]byte, amount *big.Int) error
	TransferOut(to [20]byte, amount *big.Int) error
}

// Engine wires the pool lifecycle with external state, the admin registry and
// the custody vault. Every mutating operation validates completely before the
// first write, and the custody transfer is always the final step.
type Engine struct {
	state    engineState
	registry adminView
	vault    custodian
	emitter  events.Emitter
	guard    common.Guard
	nowFn    func() int64
}

// NewEngine creates a pool engine with a no-op emitter. Callers wire state,
// registry and custodian before use.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetRegistry configures the admin registry that answers role checks and
// provides the live fee rate.
func (e *Engine) SetRegistry(registry adminView) { e.registry = registry }

// SetCustodian configures the vault that moves stakes and payouts.
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

// SetNowFunc overrides the time source used for deadline checks. Primarily
// intended for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
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

func (e *Engine) loadPool(id uint64) (*Pool, error) {
	record, ok, err := e.state.PoolGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || record == nil {
		return nil, ErrPoolNotFound
	}
	record.normalize()
	return record, nil
}

func (e *Engine) loadParticipant(poolID uint64, addr [20]byte) (*Participant, error) {
	record, ok, err := e.state.PoolParticipantGet(poolID, addr)
	if err != nil {
		return nil, err
	}
	if !ok || record == nil {
		return &Participant{Deposited: big.NewInt(0)}, nil
	}
	record.normalize()
	return record, nil
}

// Create opens a new pool in the waiting status. Only the operator may call
// it. The stake and target count must be positive and the join deadline must
// lie strictly in the future.
func (e *Engine) Create(caller [20]byte, stake *big.Int, targetCount uint32, joinDeadline int64) (uint64, error) {
	if err := e.guard.Enter(); err != nil {
		return 0, err
	}
	defer e.guard.Exit()

	if err := e.wired(); err != nil {
		return 0, err
	}
	if err := e.registry.Authorize(caller, common.RoleOperator); err != nil {
		return 0, err
	}
	if stake == nil || stake.Sign() <= 0 {
		return 0, ErrInvalidStake
	}
	if targetCount == 0 {
		return 0, ErrInvalidTargetCount
	}
	now := e.now()
	if joinDeadline <= now {
		return 0, ErrDeadlineNotFuture
	}

	id, err := e.state.PoolNextID()
	if err != nil {
		return 0, err
	}
	record := &Pool{
		ID:           id,
		Stake:        ledger.CloneBig(stake),
		TargetCount:  targetCount,
		JoinDeadline: joinDeadline,
		Status:       StatusWaiting,
		CreatedAt:    now,
		Funds:        ledger.NewFunds(),
	}
	if err := e.state.PoolPut(record); err != nil {
		return 0, err
	}
	e.emit(&CreatedEvent{PoolID: id, Stake: ledger.CloneBig(stake), TargetCount: targetCount, JoinDeadline: joinDeadline})
	return id, nil
}

// Join seats the caller in the pool and pulls one stake into custody. Joining
// stays open through the full status so late entrants can still buy in before
// the game starts.
func (e *Engine) Join(poolID uint64, caller [20]byte) error {
	if err := e.guard.Enter(); err != nil {
		return err
	}
	defer e.guard.Exit()

	if err := e.wired(); err != nil {
		return err
	}
	if caller == ([20]byte{}) {
		return ErrZeroAddress
	}
	record, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	if !statusAllows(opJoin, record.Status) {
		return ErrWrongStatus
	}
	if e.now() > record.JoinDeadline {
		return ErrJoinDeadline
	}
	participant, err := e.loadParticipant(poolID, caller)
	if err != nil {
		return err
	}
	if participant.Active {
		return ErrAlreadyActive
	}

	stake := ledger.CloneBig(record.Stake)
	participant.EverJoined = true
	participant.Active = true
	participant.Exited = false
	participant.Deposited = new(big.Int).Add(participant.Deposited, stake)
	record.ActiveCount++
	if record.Status == StatusWaiting && record.ActiveCount >= record.TargetCount {
		record.Status = StatusFull
	}
	if err := record.Funds.Credit(stake); err != nil {
		return err
	}
	if err := e.state.PoolParticipantPut(poolID, caller, participant); err != nil {
		return err
	}
	if err := e.state.PoolPut(record); err != nil {
		return err
	}
	if err := e.vault.TransferIn(caller, stake); err != nil {
		return err
	}
	e.emit(&JoinedEvent{PoolID: poolID, Participant: caller, Stake: stake, ActiveCount: record.ActiveCount, Status: record.Status})
	return nil
}

// Start locks the pool for live play. Only the operator may call it. The
// current fee rate is snapshotted and the fee is reserved against everything
// deposited so far; reaching the target count is not required.
func (e *Engine) Start(poolID uint64, caller [20]byte) error {
	if err := e.guard.Enter(); err != nil {
		return err
	}
	defer e.guard.Exit()

	if err := e.wired(); err != nil {
		return err
	}
	record, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	if err := e.registry.Authorize(caller, common.RoleOperator); err != nil {
		return err
	}
	if !statusAllows(opStart, record.Status) {
		return ErrWrongStatus
	}
	rate, err := e.registry.FeeRateBps()
	if err != nil {
		return err
	}

	reserved := fees.Calculate(record.Funds.Deposited, rate)
	if err := record.Funds.ReserveFee(reserved); err != nil {
		return err
	}
	record.FeeRateBps = rate
	record.Status = StatusLive
	record.StartedAt = e.now()
	if err := e.state.PoolPut(record); err != nil {
		return err
	}
	e.emit(&StartedEvent{PoolID: poolID, FeeRateBps: rate, ReservedFee: reserved, Deposited: ledger.CloneBig(record.Funds.Deposited)})
	return nil
}

// SettleDeath pays an exiting participant half of the declared value, rounded
// down. The event id must be fresh for this pool.
func (e *Engine) SettleDeath(poolID uint64, caller, participant [20]byte, value *big.Int, eventID uint64) (*big.Int, error) {
	return e.settle(poolID, caller, participant, value, eventID, OutcomeDeath)
}

// SettleAlive pays a surviving participant the declared value in full. The
// event id must be fresh for this pool.
func (e *Engine) SettleAlive(poolID uint64, caller, participant [20]byte, value *big.Int, eventID uint64) (*big.Int, error) {
	return e.settle(poolID, caller, participant, value, eventID, OutcomeAlive)
}

func (e *Engine) settle(poolID uint64, caller, participant [20]byte, value *big.Int, eventID uint64, outcome string) (*big.Int, error) {
	if err := e.guard.Enter(); err != nil {
		return nil, err
	}
	defer e.guard.Exit()

	if err := e.wired(); err != nil {
		return nil, err
	}
	record, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}
	if err := e.registry.Authorize(caller, common.RoleOperator); err != nil {
		return nil, err
	}
	if !statusAllows(opSettle, record.Status) {
		return nil, ErrWrongStatus
	}
	if value == nil || value.Sign() <= 0 {
		return nil, ErrInvalidValue
	}
	seat, err := e.loadParticipant(poolID, participant)
	if err != nil {
		return nil, err
	}
	if !seat.EverJoined {
		return nil, ErrNotParticipant
	}
	if seat.Exited || !seat.Active {
		return nil, ErrAlreadyExited
	}
	consumed, err := e.state.PoolEventConsumed(poolID, eventID)
	if err != nil {
		return nil, err
	}
	if consumed {
		return nil, ErrEventConsumed
	}
	payout := ledger.CloneBig(value)
	if outcome == OutcomeDeath {
		payout = new(big.Int).Div(payout, big.NewInt(deathPayoutDivisor))
	}
	if payout.Cmp(record.Funds.Available()) > 0 {
		return nil, ledger.ErrInsufficientFunds
	}

	if err := e.state.PoolConsumeEvent(poolID, eventID); err != nil {
		return nil, err
	}
	seat.Active = false
	seat.Exited = true
	record.ActiveCount--
	if err := record.Funds.Debit(payout); err != nil {
		return nil, err
	}
	if err := e.state.PoolParticipantPut(poolID, participant, seat); err != nil {
		return nil, err
	}
	if err := e.state.PoolPut(record); err != nil {
		return nil, err
	}
	if err := e.vault.TransferOut(participant, payout); err != nil {
		return nil, err
	}
	e.emit(&SettledEvent{
		PoolID:      poolID,
		Participant: participant,
		Outcome:     outcome,
		Value:       ledger.CloneBig(value),
		Payout:      ledger.CloneBig(payout),
		EventID:     eventID,
		ActiveCount: record.ActiveCount,
	})
	return payout, nil
}

// Revive re-seats a previously exited participant for a fresh stake. Any
// caller may trigger it; the stake is always pulled from the participant.
func (e *Engine) Revive(poolID uint64, participant [20]byte) error {
	if err := e.guard.Enter(); err != nil {
		return err
	}
	defer e.guard.Exit()

	if err := e.wired(); err != nil {
		return err
	}
	if participant == ([20]byte{}) {
		return ErrZeroAddress
	}
	record, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	if !statusAllows(opRevive, record.Status) {
		return ErrWrongStatus
	}
	seat, err := e.loadParticipant(poolID, participant)
	if err != nil {
		return err
	}
	if !seat.EverJoined {
		return ErrNotParticipant
	}
	if seat.Active {
		return ErrAlreadyActive
	}
	if !seat.Exited {
		return ErrNotExited
	}

	stake := ledger.CloneBig(record.Stake)
	seat.Active = true
	seat.Exited = false
	seat.Deposited = new(big.Int).Add(seat.Deposited, stake)
	record.ActiveCount++
	if err := record.Funds.Credit(stake); err != nil {
		return err
	}
	if err := e.state.PoolParticipantPut(poolID, participant, seat); err != nil {
		return err
	}
	if err := e.state.PoolPut(record); err != nil {
		return err
	}
	if err := e.vault.TransferIn(participant, stake); err != nil {
		return err
	}
	e.emit(&RevivedEvent{PoolID: poolID, Participant: participant, Stake: stake, ActiveCount: record.ActiveCount})
	return nil
}

// End closes a live pool. Only the operator may call it. The reserved fee
// accrues to the treasury pot; remaining funds stay in custody for audit.
func (e *Engine) End(poolID uint64, caller [20]byte) error {
	if err := e.guard.Enter(); err != nil {
		return err
	}
	defer e.guard.Exit()

	if err := e.wired(); err != nil {
		return err
	}
	record, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	if err := e.registry.Authorize(caller, common.RoleOperator); err != nil {
		return err
	}
	if !statusAllows(opEnd, record.Status) {
		return ErrWrongStatus
	}
	accrued, err := e.state.FeesAccruedGet()
	if err != nil {
		return err
	}

	reserved := ledger.CloneBig(record.Funds.ReservedFee)
	if err := e.state.FeesAccruedSet(new(big.Int).Add(ledger.CloneBig(accrued), reserved)); err != nil {
		return err
	}
	record.Status = StatusEnded
	record.EndedAt = e.now()
	if err := e.state.PoolPut(record); err != nil {
		return err
	}
	e.emit(&EndedEvent{PoolID: poolID, AccruedFee: reserved})
	return nil
}

// Get returns a deep copy of the pool record.
func (e *Engine) Get(poolID uint64) (*Pool, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	record, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}
	return record.Clone(), nil
}

// Participant returns a deep copy of the participant record. Identities that
// never joined yield a zeroed record rather than an error so callers can read
// the everJoined flag directly.
func (e *Engine) Participant(poolID uint64, addr [20]byte) (*Participant, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if _, err := e.loadPool(poolID); err != nil {
		return nil, err
	}
	seat, err := e.loadParticipant(poolID, addr)
	if err != nil {
		return nil, err
	}
	return seat.Clone(), nil
}

// Available returns the pool's payable balance: deposits minus the reserved
// fee minus everything already paid out.
func (e *Engine) Available(poolID uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	record, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}
	return record.Funds.Available(), nil
}
