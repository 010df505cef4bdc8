// Package room implements the two-player escrow variant: a fixed pair
// deposits equal stakes, play starts once both have paid, and a single
// operator-signed settlement pays the winner. If the operator never resolves,
// each payer can reclaim their stake after the join deadline.
package room

import (
	"math/big"
	"time"

	"github.com/BenjDW/maitre-slither/core/events"
	"github.com/BenjDW/maitre-slither/crypto/eip712"
	"github.com/BenjDW/maitre-slither/native/common"
	"github.com/BenjDW/maitre-slither/native/ledger"
)

type engineState interface {
	RoomNextID() (uint64, error)
	RoomPut(r *Room) error
	RoomGet(id uint64) (*Room, bool, error)
	RoomNonceConsumed(roomID, nonce uint64) (bool, error)
	RoomConsumeNonce(roomID, nonce uint64) error
	FeesAccruedGet() (*big.Int, error)
	FeesAccruedSet(amount *big.Int) error
}

type adminView interface {
	Authorize(actor [20]byte, role common.Role) error
	Operator() ([20]byte, error)
	FeeRateBps() (uint32, error)
}

type custodian interface {
	TransferIn(from [20]byte, amount *big.Int) error
	TransferOut(to [20]byte, amount *big.Int) error
}

// Engine wires the room lifecycle with external state, the admin registry,
// the custody vault and the signing domain. Every mutating operation
// validates completely before the first write, and the custody transfer is
// always the final step.
type Engine struct {
	state    engineState
	registry adminView
	vault    custodian
	domain   eip712.Domain
	emitter  events.Emitter
	guard    common.Guard
	nowFn    func() int64
}

// NewEngine creates a room engine with a no-op emitter. Callers wire state,
// registry, custodian and the signing domain before use.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetRegistry configures the admin registry that answers role checks and
// provides the operator identity and fee rate.
func (e *Engine) SetRegistry(registry adminView) { e.registry = registry }

// SetCustodian configures the vault that moves stakes and payouts.
func (e *Engine) SetCustodian(vault custodian) { e.vault = vault }

// SetDomain configures the EIP-712 domain that scopes resolve signatures to
// this deployment.
func (e *Engine) SetDomain(domain eip712.Domain) { e.domain = domain }

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

func (e *Engine) loadRoom(id uint64) (*Room, error) {
	record, ok, err := e.state.RoomGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || record == nil {
		return nil, ErrRoomNotFound
	}
	record.normalize()
	return record, nil
}

// Create opens a room for two distinct players. Only the operator may call
// it. The current fee rate is snapshotted immediately; later rate changes
// never affect an existing room.
func (e *Engine) Create(caller, playerA, playerB [20]byte, stake *big.Int, joinDeadline int64) (uint64, error) {
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
	if playerA == ([20]byte{}) || playerB == ([20]byte{}) {
		return 0, ErrZeroAddress
	}
	if playerA == playerB {
		return 0, ErrSamePlayer
	}
	if stake == nil || stake.Sign() <= 0 {
		return 0, ErrInvalidStake
	}
	now := e.now()
	if joinDeadline <= now {
		return 0, ErrDeadlineNotFuture
	}
	rate, err := e.registry.FeeRateBps()
	if err != nil {
		return 0, err
	}

	id, err := e.state.RoomNextID()
	if err != nil {
		return 0, err
	}
	record := &Room{
		ID:           id,
		Players:      [2][20]byte{playerA, playerB},
		Stake:        ledger.CloneBig(stake),
		JoinDeadline: joinDeadline,
		FeeRateBps:   rate,
		Status:       StatusCreated,
		CreatedAt:    now,
		Funds:        ledger.NewFunds(),
	}
	if err := e.state.RoomPut(record); err != nil {
		return 0, err
	}
	e.emit(&CreatedEvent{
		RoomID:       id,
		PlayerA:      playerA,
		PlayerB:      playerB,
		Stake:        ledger.CloneBig(stake),
		JoinDeadline: joinDeadline,
		FeeRateBps:   rate,
	})
	return id, nil
}

// Join deposits the caller's stake. Only the two configured players may join,
// each exactly once, at or before the deadline. The room advances to ready
// when the second stake lands.
func (e *Engine) Join(roomID uint64, caller [20]byte) error {
	if err := e.guard.Enter(); err != nil {
		return err
	}
	defer e.guard.Exit()

	if err := e.wired(); err != nil {
		return err
	}
	record, err := e.loadRoom(roomID)
	if err != nil {
		return err
	}
	if !statusAllows(opJoin, record.Status) {
		return ErrWrongStatus
	}
	if e.now() > record.JoinDeadline {
		return ErrJoinDeadline
	}
	slot, ok := record.playerIndex(caller)
	if !ok {
		return ErrNotParticipant
	}
	if record.HasPaid(slot) {
		return ErrAlreadyPaid
	}

	stake := ledger.CloneBig(record.Stake)
	record.PaidMask |= 1 << uint(slot)
	if record.BothPaid() {
		record.Status = StatusReady
	}
	if err := record.Funds.Credit(stake); err != nil {
		return err
	}
	if err := e.state.RoomPut(record); err != nil {
		return err
	}
	if err := e.vault.TransferIn(caller, stake); err != nil {
		return err
	}
	e.emit(&JoinedEvent{RoomID: roomID, Player: caller, Stake: stake, Status: record.Status})
	return nil
}

// Start begins play once both stakes are in custody. Any caller may trigger
// it.
func (e *Engine) Start(roomID uint64) error {
	if err := e.guard.Enter(); err != nil {
		return err
	}
	defer e.guard.Exit()

	if err := e.wired(); err != nil {
		return err
	}
	record, err := e.loadRoom(roomID)
	if err != nil {
		return err
	}
	if !statusAllows(opStart, record.Status) {
		return ErrWrongStatus
	}

	record.Status = StatusStarted
	record.StartedAt = e.now()
	if err := e.state.RoomPut(record); err != nil {
		return err
	}
	e.emit(&StartedEvent{RoomID: roomID})
	return nil
}

// Resolve settles a started room with an operator-signed outcome. Any caller
// may submit the tuple and signature. The signature must cover exactly the
// supplied values; the conservation bound rejects tuples that would overdraw
// the room. If authorization fails, no state changes.
func (e *Engine) Resolve(params ResolveParams, sig []byte) (*big.Int, error) {
	if err := e.guard.Enter(); err != nil {
		return nil, err
	}
	defer e.guard.Exit()

	if err := e.wired(); err != nil {
		return nil, err
	}
	if e.domain.Name == "" {
		return nil, ErrNilDomain
	}
	record, err := e.loadRoom(params.RoomID)
	if err != nil {
		return nil, err
	}
	if !statusAllows(opResolve, record.Status) {
		return nil, ErrWrongStatus
	}
	if _, ok := record.playerIndex(params.Winner); !ok {
		return nil, ErrInvalidWinner
	}
	if !record.BothPaid() {
		return nil, ErrNotPaid
	}
	consumed, err := e.state.RoomNonceConsumed(params.RoomID, params.Nonce)
	if err != nil {
		return nil, err
	}
	if consumed {
		return nil, ErrNonceConsumed
	}
	digest, err := ResolveDigest(e.domain, params)
	if err != nil {
		return nil, err
	}
	operator, err := e.registry.Operator()
	if err != nil {
		return nil, err
	}
	signer := eip712.Recover(digest, sig)
	if !signer.Valid || signer.Address != operator {
		return nil, ErrBadSignature
	}
	fee := ledger.CloneBig(params.Fee)
	payout := ledger.CloneBig(params.Payout)
	if err := record.Funds.ReserveFee(fee); err != nil {
		return nil, err
	}
	if err := record.Funds.Debit(payout); err != nil {
		return nil, err
	}

	if err := e.state.RoomConsumeNonce(params.RoomID, params.Nonce); err != nil {
		return nil, err
	}
	record.Status = StatusResolved
	record.Winner = params.Winner
	record.ResolvedAt = e.now()
	if err := e.state.RoomPut(record); err != nil {
		return nil, err
	}
	accrued, err := e.state.FeesAccruedGet()
	if err != nil {
		return nil, err
	}
	if err := e.state.FeesAccruedSet(new(big.Int).Add(ledger.CloneBig(accrued), fee)); err != nil {
		return nil, err
	}
	if err := e.vault.TransferOut(params.Winner, payout); err != nil {
		return nil, err
	}
	e.emit(&ResolvedEvent{
		RoomID: params.RoomID,
		Winner: params.Winner,
		Pot:    ledger.CloneBig(params.Pot),
		Fee:    fee,
		Payout: payout,
		Nonce:  params.Nonce,
	})
	return payout, nil
}

// Refund returns the caller's stake after the join deadline has passed on an
// unresolved room. Each payer may refund exactly once; the room flips to
// cancelled when both have.
func (e *Engine) Refund(roomID uint64, caller [20]byte) error {
	if err := e.guard.Enter(); err != nil {
		return err
	}
	defer e.guard.Exit()

	if err := e.wired(); err != nil {
		return err
	}
	record, err := e.loadRoom(roomID)
	if err != nil {
		return err
	}
	if !statusAllows(opRefund, record.Status) {
		return ErrWrongStatus
	}
	if e.now() <= record.JoinDeadline {
		return ErrDeadlineNotReached
	}
	slot, ok := record.playerIndex(caller)
	if !ok {
		return ErrNotParticipant
	}
	if !record.HasPaid(slot) {
		return ErrNothingToRefund
	}
	if record.HasRefunded(slot) {
		return ErrAlreadyRefunded
	}

	stake := ledger.CloneBig(record.Stake)
	record.RefundedMask |= 1 << uint(slot)
	if err := record.Funds.Debit(stake); err != nil {
		return err
	}
	if record.BothRefunded() {
		record.Status = StatusCancelled
	}
	if err := e.state.RoomPut(record); err != nil {
		return err
	}
	if err := e.vault.TransferOut(caller, stake); err != nil {
		return err
	}
	e.emit(&RefundedEvent{RoomID: roomID, Player: caller, Stake: stake, Status: record.Status})
	return nil
}

// Get returns a deep copy of the room record.
func (e *Engine) Get(roomID uint64) (*Room, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	record, err := e.loadRoom(roomID)
	if err != nil {
		return nil, err
	}
	return record.Clone(), nil
}

// VerifyResolve checks a settlement tuple and signature without consuming the
// nonce or touching the room. It reports the recovered signer, whether it
// matches the current operator, and whether the nonce is already spent.
func (e *Engine) VerifyResolve(params ResolveParams, sig []byte) (*VerificationResult, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if e.registry == nil {
		return nil, ErrNilRegistry
	}
	if e.domain.Name == "" {
		return nil, ErrNilDomain
	}
	digest, err := ResolveDigest(e.domain, params)
	if err != nil {
		return nil, err
	}
	operator, err := e.registry.Operator()
	if err != nil {
		return nil, err
	}
	consumed, err := e.state.RoomNonceConsumed(params.RoomID, params.Nonce)
	if err != nil {
		return nil, err
	}
	signer := eip712.Recover(digest, sig)
	return &VerificationResult{
		Signer:        signer.Address,
		Valid:         signer.Valid && signer.Address == operator,
		NonceConsumed: consumed,
	}, nil
}
