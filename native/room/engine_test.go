package room

import (
	"bytes"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/BenjDW/maitre-slither/core/events"
	"github.com/BenjDW/maitre-slither/crypto/eip712"
	"github.com/BenjDW/maitre-slither/native/common"
	"github.com/BenjDW/maitre-slither/native/ledger"
)

const (
	testBaseTime  = int64(1_700_000_000)
	testChainID   = uint64(1337)
	testStakeBase = int64(10_000_000)
)

var errMockDenied = errors.New("mock: role denied")

type nonceKey struct {
	roomID uint64
	nonce  uint64
}

type mockState struct {
	seq     uint64
	rooms   map[uint64]*Room
	nonces  map[nonceKey]bool
	accrued *big.Int
}

func newMockState() *mockState {
	return &mockState{
		rooms:   make(map[uint64]*Room),
		nonces:  make(map[nonceKey]bool),
		accrued: big.NewInt(0),
	}
}

func (m *mockState) RoomNextID() (uint64, error) {
	m.seq++
	return m.seq, nil
}

func (m *mockState) RoomPut(r *Room) error {
	m.rooms[r.ID] = r.Clone()
	return nil
}

func (m *mockState) RoomGet(id uint64) (*Room, bool, error) {
	record, ok := m.rooms[id]
	if !ok {
		return nil, false, nil
	}
	return record.Clone(), true, nil
}

func (m *mockState) RoomNonceConsumed(roomID, nonce uint64) (bool, error) {
	return m.nonces[nonceKey{roomID, nonce}], nil
}

func (m *mockState) RoomConsumeNonce(roomID, nonce uint64) error {
	m.nonces[nonceKey{roomID, nonce}] = true
	return nil
}

func (m *mockState) FeesAccruedGet() (*big.Int, error) {
	return ledger.CloneBig(m.accrued), nil
}

func (m *mockState) FeesAccruedSet(amount *big.Int) error {
	m.accrued = ledger.CloneBig(amount)
	return nil
}

type mockAdmin struct {
	operator [20]byte
	rate     uint32
}

func (m *mockAdmin) Authorize(actor [20]byte, role common.Role) error {
	if role == common.RoleOperator && actor == m.operator {
		return nil
	}
	return errMockDenied
}

func (m *mockAdmin) Operator() ([20]byte, error) {
	return m.operator, nil
}

func (m *mockAdmin) FeeRateBps() (uint32, error) {
	return m.rate, nil
}

type transfer struct {
	addr   [20]byte
	amount *big.Int
}

type mockVault struct {
	ins  []transfer
	outs []transfer
}

func (m *mockVault) TransferIn(from [20]byte, amount *big.Int) error {
	m.ins = append(m.ins, transfer{addr: from, amount: ledger.CloneBig(amount)})
	return nil
}

func (m *mockVault) TransferOut(to [20]byte, amount *big.Int) error {
	m.outs = append(m.outs, transfer{addr: to, amount: ledger.CloneBig(amount)})
	return nil
}

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(evt events.Event) {
	c.events = append(c.events, evt)
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

type testEnv struct {
	engine  *Engine
	state   *mockState
	admin   *mockAdmin
	vault   *mockVault
	emitter *capturingEmitter
	key     *ecdsa.PrivateKey
	domain  eip712.Domain
	now     int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	key, err := ethcrypto.ToECDSA(bytes.Repeat([]byte{0x42}, 32))
	if err != nil {
		t.Fatalf("derive operator key: %v", err)
	}
	operator := [20]byte(ethcrypto.PubkeyToAddress(key.PublicKey))
	env := &testEnv{
		state:   newMockState(),
		admin:   &mockAdmin{operator: operator, rate: 200},
		vault:   &mockVault{},
		emitter: &capturingEmitter{},
		key:     key,
		domain:  SettlementDomain(testChainID, newTestAddress(0xEE)),
		now:     testBaseTime,
	}
	env.engine = NewEngine()
	env.engine.SetState(env.state)
	env.engine.SetRegistry(env.admin)
	env.engine.SetCustodian(env.vault)
	env.engine.SetDomain(env.domain)
	env.engine.SetEmitter(env.emitter)
	env.engine.SetNowFunc(func() int64 { return env.now })
	return env
}

func (env *testEnv) sign(t *testing.T, params ResolveParams) []byte {
	t.Helper()
	digest, err := ResolveDigest(env.domain, params)
	if err != nil {
		t.Fatalf("resolve digest: %v", err)
	}
	sig, err := ethcrypto.Sign(digest[:], env.key)
	if err != nil {
		t.Fatalf("sign digest: %v", err)
	}
	return sig
}

func (env *testEnv) createRoom(t *testing.T) (uint64, [20]byte, [20]byte) {
	t.Helper()
	playerA := newTestAddress(0x11)
	playerB := newTestAddress(0x22)
	id, err := env.engine.Create(env.admin.operator, playerA, playerB, big.NewInt(testStakeBase), testBaseTime+3600)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	return id, playerA, playerB
}

func (env *testEnv) startedRoom(t *testing.T) (uint64, [20]byte, [20]byte) {
	t.Helper()
	id, playerA, playerB := env.createRoom(t)
	if err := env.engine.Join(id, playerA); err != nil {
		t.Fatalf("join player A: %v", err)
	}
	if err := env.engine.Join(id, playerB); err != nil {
		t.Fatalf("join player B: %v", err)
	}
	if err := env.engine.Start(id); err != nil {
		t.Fatalf("start room: %v", err)
	}
	return id, playerA, playerB
}

func (env *testEnv) resolveParams(id uint64, winner [20]byte, nonce uint64) ResolveParams {
	return ResolveParams{
		RoomID: id,
		Winner: winner,
		Pot:    big.NewInt(2 * testStakeBase),
		Fee:    big.NewInt(400_000),
		Payout: big.NewInt(19_600_000),
		Nonce:  nonce,
	}
}

func (env *testEnv) mustGet(t *testing.T, id uint64) *Room {
	t.Helper()
	record, err := env.engine.Get(id)
	if err != nil {
		t.Fatalf("get room %d: %v", id, err)
	}
	return record
}

func TestCreateSnapshotsFeeRate(t *testing.T) {
	env := newTestEnv(t)
	id, playerA, playerB := env.createRoom(t)

	record := env.mustGet(t, id)
	if record.Status != StatusCreated {
		t.Fatalf("status = %s, want created", record.Status)
	}
	if record.Players[0] != playerA || record.Players[1] != playerB {
		t.Fatalf("unexpected players: %+v", record.Players)
	}
	if record.FeeRateBps != 200 {
		t.Fatalf("fee rate snapshot = %d, want 200", record.FeeRateBps)
	}

	env.admin.rate = 500
	if env.mustGet(t, id).FeeRateBps != 200 {
		t.Fatalf("rate change leaked into existing room")
	}
	second, err := env.engine.Create(env.admin.operator, newTestAddress(0x33), newTestAddress(0x44), big.NewInt(testStakeBase), testBaseTime+3600)
	if err != nil {
		t.Fatalf("create second room: %v", err)
	}
	if env.mustGet(t, second).FeeRateBps != 500 {
		t.Fatalf("new room should carry the live rate")
	}
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	playerA := newTestAddress(0x11)
	playerB := newTestAddress(0x22)
	deadline := testBaseTime + 3600

	if _, err := env.engine.Create(newTestAddress(0x99), playerA, playerB, big.NewInt(1), deadline); !errors.Is(err, errMockDenied) {
		t.Fatalf("expected role denial, got %v", err)
	}
	if _, err := env.engine.Create(env.admin.operator, [20]byte{}, playerB, big.NewInt(1), deadline); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("expected ErrZeroAddress, got %v", err)
	}
	if _, err := env.engine.Create(env.admin.operator, playerA, playerA, big.NewInt(1), deadline); !errors.Is(err, ErrSamePlayer) {
		t.Fatalf("expected ErrSamePlayer, got %v", err)
	}
	if _, err := env.engine.Create(env.admin.operator, playerA, playerB, big.NewInt(0), deadline); !errors.Is(err, ErrInvalidStake) {
		t.Fatalf("expected ErrInvalidStake, got %v", err)
	}
	if _, err := env.engine.Create(env.admin.operator, playerA, playerB, big.NewInt(1), testBaseTime); !errors.Is(err, ErrDeadlineNotFuture) {
		t.Fatalf("expected ErrDeadlineNotFuture, got %v", err)
	}
}

func TestJoinAdvancesToReady(t *testing.T) {
	env := newTestEnv(t)
	id, playerA, playerB := env.createRoom(t)

	if err := env.engine.Join(id, playerA); err != nil {
		t.Fatalf("join player A: %v", err)
	}
	record := env.mustGet(t, id)
	if record.Status != StatusCreated {
		t.Fatalf("status after first join = %s, want created", record.Status)
	}
	if !record.HasPaid(0) || record.HasPaid(1) {
		t.Fatalf("unexpected paid mask %04b", record.PaidMask)
	}
	if err := env.engine.Join(id, playerB); err != nil {
		t.Fatalf("join player B: %v", err)
	}
	record = env.mustGet(t, id)
	if record.Status != StatusReady {
		t.Fatalf("status after both joins = %s, want ready", record.Status)
	}
	if record.Funds.Deposited.Cmp(big.NewInt(2*testStakeBase)) != 0 {
		t.Fatalf("deposited = %s, want %d", record.Funds.Deposited, 2*testStakeBase)
	}
	if len(env.vault.ins) != 2 {
		t.Fatalf("expected two custody pulls, got %d", len(env.vault.ins))
	}
}

func TestJoinGuards(t *testing.T) {
	env := newTestEnv(t)
	id, playerA, playerB := env.createRoom(t)
	other, _, otherB := env.createRoom(t)

	if err := env.engine.Join(42, playerA); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	if err := env.engine.Join(id, newTestAddress(0x99)); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
	if err := env.engine.Join(id, playerA); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := env.engine.Join(id, playerA); !errors.Is(err, ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid, got %v", err)
	}

	env.now = testBaseTime + 3600
	if err := env.engine.Join(id, playerB); err != nil {
		t.Fatalf("join at exact deadline should pass: %v", err)
	}
	env.now = testBaseTime + 3601
	if err := env.engine.Join(other, otherB); !errors.Is(err, ErrJoinDeadline) {
		t.Fatalf("expected ErrJoinDeadline, got %v", err)
	}
}

func TestStartRequiresReady(t *testing.T) {
	env := newTestEnv(t)
	id, playerA, playerB := env.createRoom(t)

	if err := env.engine.Start(id); !errors.Is(err, ErrWrongStatus) {
		t.Fatalf("expected ErrWrongStatus before joins, got %v", err)
	}
	if err := env.engine.Join(id, playerA); err != nil {
		t.Fatalf("join player A: %v", err)
	}
	if err := env.engine.Start(id); !errors.Is(err, ErrWrongStatus) {
		t.Fatalf("expected ErrWrongStatus with one payer, got %v", err)
	}
	if err := env.engine.Join(id, playerB); err != nil {
		t.Fatalf("join player B: %v", err)
	}
	if err := env.engine.Start(id); err != nil {
		t.Fatalf("start: %v", err)
	}
	if env.mustGet(t, id).Status != StatusStarted {
		t.Fatalf("status after start should be started")
	}
	if err := env.engine.Start(id); !errors.Is(err, ErrWrongStatus) {
		t.Fatalf("expected ErrWrongStatus on restart, got %v", err)
	}
}

func TestResolvePaysWinner(t *testing.T) {
	env := newTestEnv(t)
	id, playerA, _ := env.startedRoom(t)
	params := env.resolveParams(id, playerA, 5)

	payout, err := env.engine.Resolve(params, env.sign(t, params))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if payout.Cmp(big.NewInt(19_600_000)) != 0 {
		t.Fatalf("payout = %s, want 19600000", payout)
	}
	record := env.mustGet(t, id)
	if record.Status != StatusResolved {
		t.Fatalf("status = %s, want resolved", record.Status)
	}
	if record.Winner != playerA {
		t.Fatalf("winner not recorded")
	}
	if record.Funds.ReservedFee.Cmp(big.NewInt(400_000)) != 0 {
		t.Fatalf("reservedFee = %s, want 400000", record.Funds.ReservedFee)
	}
	if env.state.accrued.Cmp(big.NewInt(400_000)) != 0 {
		t.Fatalf("accrued fees = %s, want 400000", env.state.accrued)
	}
	last := env.vault.outs[len(env.vault.outs)-1]
	if last.addr != playerA || last.amount.Cmp(big.NewInt(19_600_000)) != 0 {
		t.Fatalf("unexpected payout transfer %+v", last)
	}
	if consumed, _ := env.state.RoomNonceConsumed(id, 5); !consumed {
		t.Fatalf("nonce not consumed")
	}

	if _, err := env.engine.Resolve(params, env.sign(t, params)); !errors.Is(err, ErrWrongStatus) {
		t.Fatalf("expected ErrWrongStatus on re-resolve, got %v", err)
	}
	fresh := env.resolveParams(id, playerA, 6)
	if _, err := env.engine.Resolve(fresh, env.sign(t, fresh)); !errors.Is(err, ErrWrongStatus) {
		t.Fatalf("expected ErrWrongStatus with fresh nonce, got %v", err)
	}
}

func TestResolveSignatureBinding(t *testing.T) {
	env := newTestEnv(t)
	id, playerA, playerB := env.startedRoom(t)
	params := env.resolveParams(id, playerA, 7)
	sig := env.sign(t, params)

	tampered := params
	tampered.Winner = playerB
	if _, err := env.engine.Resolve(tampered, sig); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature for changed winner, got %v", err)
	}
	tampered = params
	tampered.Payout = big.NewInt(19_600_001)
	if _, err := env.engine.Resolve(tampered, sig); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature for changed payout, got %v", err)
	}
	tampered = params
	tampered.Fee = big.NewInt(0)
	if _, err := env.engine.Resolve(tampered, sig); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature for changed fee, got %v", err)
	}
	tampered = params
	tampered.Nonce = 8
	if _, err := env.engine.Resolve(tampered, sig); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature for changed nonce, got %v", err)
	}

	record := env.mustGet(t, id)
	if record.Status != StatusStarted || record.Funds.PaidOut.Sign() != 0 {
		t.Fatalf("failed authorization mutated room: %+v", record)
	}
	if _, err := env.engine.Resolve(params, sig); err != nil {
		t.Fatalf("original tuple should still resolve: %v", err)
	}
}

func TestResolveSignatureScopedToRoom(t *testing.T) {
	env := newTestEnv(t)
	first, playerA, _ := env.startedRoom(t)
	second, _, _ := env.startedRoom(t)

	params := env.resolveParams(first, playerA, 1)
	sig := env.sign(t, params)
	crossed := params
	crossed.RoomID = second
	if _, err := env.engine.Resolve(crossed, sig); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature across rooms, got %v", err)
	}
}

func TestResolveRejectsForeignSigner(t *testing.T) {
	env := newTestEnv(t)
	id, playerA, _ := env.startedRoom(t)
	params := env.resolveParams(id, playerA, 3)

	foreign, err := ethcrypto.ToECDSA(bytes.Repeat([]byte{0x24}, 32))
	if err != nil {
		t.Fatalf("derive foreign key: %v", err)
	}
	digest, err := ResolveDigest(env.domain, params)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	sig, err := ethcrypto.Sign(digest[:], foreign)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := env.engine.Resolve(params, sig); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature for foreign signer, got %v", err)
	}
	if _, err := env.engine.Resolve(params, []byte("short")); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature for malformed signature, got %v", err)
	}
}

func TestResolveGuards(t *testing.T) {
	env := newTestEnv(t)
	id, playerA, playerB := env.createRoom(t)
	params := env.resolveParams(id, playerA, 1)

	if _, err := env.engine.Resolve(params, env.sign(t, params)); !errors.Is(err, ErrWrongStatus) {
		t.Fatalf("expected ErrWrongStatus before start, got %v", err)
	}
	if err := env.engine.Join(id, playerA); err != nil {
		t.Fatalf("join player A: %v", err)
	}
	if err := env.engine.Join(id, playerB); err != nil {
		t.Fatalf("join player B: %v", err)
	}
	if err := env.engine.Start(id); err != nil {
		t.Fatalf("start: %v", err)
	}

	missing := env.resolveParams(42, playerA, 1)
	if _, err := env.engine.Resolve(missing, env.sign(t, missing)); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	outsider := env.resolveParams(id, newTestAddress(0x99), 1)
	if _, err := env.engine.Resolve(outsider, env.sign(t, outsider)); !errors.Is(err, ErrInvalidWinner) {
		t.Fatalf("expected ErrInvalidWinner, got %v", err)
	}

	if err := env.state.RoomConsumeNonce(id, 9); err != nil {
		t.Fatalf("mark nonce: %v", err)
	}
	spent := env.resolveParams(id, playerA, 9)
	if _, err := env.engine.Resolve(spent, env.sign(t, spent)); !errors.Is(err, ErrNonceConsumed) {
		t.Fatalf("expected ErrNonceConsumed, got %v", err)
	}

	halfPaid := &Room{
		ID:           77,
		Players:      [2][20]byte{playerA, playerB},
		Stake:        big.NewInt(testStakeBase),
		JoinDeadline: testBaseTime + 3600,
		FeeRateBps:   200,
		Status:       StatusStarted,
		PaidMask:     0b01,
		Funds:        ledger.NewFunds(),
	}
	if err := env.state.RoomPut(halfPaid); err != nil {
		t.Fatalf("seed half-paid room: %v", err)
	}
	partial := env.resolveParams(77, playerA, 1)
	if _, err := env.engine.Resolve(partial, env.sign(t, partial)); !errors.Is(err, ErrNotPaid) {
		t.Fatalf("expected ErrNotPaid, got %v", err)
	}
}

func TestResolveBoundedByConservation(t *testing.T) {
	env := newTestEnv(t)
	id, playerA, _ := env.startedRoom(t)

	params := env.resolveParams(id, playerA, 1)
	params.Payout = big.NewInt(20_000_000)
	if _, err := env.engine.Resolve(params, env.sign(t, params)); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	record := env.mustGet(t, id)
	if record.Status != StatusStarted {
		t.Fatalf("failed resolve mutated status: %s", record.Status)
	}
	if consumed, _ := env.state.RoomNonceConsumed(id, 1); consumed {
		t.Fatalf("failed resolve consumed nonce")
	}
	if env.state.accrued.Sign() != 0 {
		t.Fatalf("failed resolve accrued fees: %s", env.state.accrued)
	}
}

func TestRefundAfterDeadline(t *testing.T) {
	env := newTestEnv(t)
	id, playerA, playerB := env.createRoom(t)
	if err := env.engine.Join(id, playerA); err != nil {
		t.Fatalf("join player A: %v", err)
	}

	if err := env.engine.Refund(id, playerA); !errors.Is(err, ErrDeadlineNotReached) {
		t.Fatalf("expected ErrDeadlineNotReached, got %v", err)
	}
	env.now = testBaseTime + 3600
	if err := env.engine.Refund(id, playerA); !errors.Is(err, ErrDeadlineNotReached) {
		t.Fatalf("refund at exact deadline must fail, got %v", err)
	}
	env.now = testBaseTime + 3601
	if err := env.engine.Refund(id, playerA); err != nil {
		t.Fatalf("refund: %v", err)
	}
	record := env.mustGet(t, id)
	if record.Status == StatusCancelled {
		t.Fatalf("room must not cancel while one player never refunded")
	}
	if !record.HasRefunded(0) {
		t.Fatalf("refund bit not set")
	}
	last := env.vault.outs[len(env.vault.outs)-1]
	if last.addr != playerA || last.amount.Cmp(big.NewInt(testStakeBase)) != 0 {
		t.Fatalf("unexpected refund transfer %+v", last)
	}

	if err := env.engine.Refund(id, playerA); !errors.Is(err, ErrAlreadyRefunded) {
		t.Fatalf("expected ErrAlreadyRefunded, got %v", err)
	}
	if err := env.engine.Refund(id, playerB); !errors.Is(err, ErrNothingToRefund) {
		t.Fatalf("expected ErrNothingToRefund for non-payer, got %v", err)
	}
	if err := env.engine.Refund(id, newTestAddress(0x99)); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
}

func TestRefundNeverJoined(t *testing.T) {
	env := newTestEnv(t)
	id, playerA, _ := env.createRoom(t)

	env.now = testBaseTime + 4000
	if err := env.engine.Refund(id, playerA); !errors.Is(err, ErrNothingToRefund) {
		t.Fatalf("expected ErrNothingToRefund, got %v", err)
	}
}

func TestBothRefundsCancelRoom(t *testing.T) {
	env := newTestEnv(t)
	id, playerA, playerB := env.startedRoom(t)

	env.now = testBaseTime + 4000
	if err := env.engine.Refund(id, playerA); err != nil {
		t.Fatalf("refund player A: %v", err)
	}
	if env.mustGet(t, id).Status != StatusStarted {
		t.Fatalf("single refund must not cancel a started room")
	}
	if err := env.engine.Refund(id, playerB); err != nil {
		t.Fatalf("refund player B: %v", err)
	}
	record := env.mustGet(t, id)
	if record.Status != StatusCancelled {
		t.Fatalf("status = %s, want cancelled", record.Status)
	}
	if record.Funds.Available().Sign() != 0 {
		t.Fatalf("available after both refunds = %s, want 0", record.Funds.Available())
	}

	if err := env.engine.Refund(id, playerA); !errors.Is(err, ErrWrongStatus) {
		t.Fatalf("expected ErrWrongStatus on cancelled room, got %v", err)
	}
}

func TestRefundDrainsResolve(t *testing.T) {
	env := newTestEnv(t)
	id, playerA, _ := env.startedRoom(t)

	env.now = testBaseTime + 4000
	if err := env.engine.Refund(id, playerA); err != nil {
		t.Fatalf("refund player A: %v", err)
	}
	params := env.resolveParams(id, playerA, 1)
	if _, err := env.engine.Resolve(params, env.sign(t, params)); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds after refund drain, got %v", err)
	}
}

func TestRefundRejectedAfterResolve(t *testing.T) {
	env := newTestEnv(t)
	id, playerA, playerB := env.startedRoom(t)
	params := env.resolveParams(id, playerA, 2)
	if _, err := env.engine.Resolve(params, env.sign(t, params)); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	env.now = testBaseTime + 4000
	if err := env.engine.Refund(id, playerB); !errors.Is(err, ErrWrongStatus) {
		t.Fatalf("expected ErrWrongStatus after resolve, got %v", err)
	}
}

func TestVerifyResolveDoesNotConsume(t *testing.T) {
	env := newTestEnv(t)
	id, playerA, _ := env.startedRoom(t)
	params := env.resolveParams(id, playerA, 5)
	sig := env.sign(t, params)

	result, err := env.engine.VerifyResolve(params, sig)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !result.Valid || result.NonceConsumed {
		t.Fatalf("unexpected verification result %+v", result)
	}
	if result.Signer != env.admin.operator {
		t.Fatalf("signer = %x, want operator", result.Signer)
	}
	if consumed, _ := env.state.RoomNonceConsumed(id, 5); consumed {
		t.Fatalf("verification consumed the nonce")
	}

	tampered := params
	tampered.Payout = big.NewInt(1)
	result, err = env.engine.VerifyResolve(tampered, sig)
	if err != nil || result.Valid {
		t.Fatalf("tampered tuple should not verify: %+v (%v)", result, err)
	}

	if _, err := env.engine.Resolve(params, sig); err != nil {
		t.Fatalf("resolve after verification: %v", err)
	}
	result, err = env.engine.VerifyResolve(params, sig)
	if err != nil || !result.NonceConsumed {
		t.Fatalf("consumed nonce not reported: %+v (%v)", result, err)
	}
}

func TestReentrantCallRejected(t *testing.T) {
	env := newTestEnv(t)
	id, playerA, _ := env.createRoom(t)
	reentrant := &reentrantVault{engine: env.engine, roomID: id}
	env.engine.SetCustodian(reentrant)

	err := env.engine.Join(id, playerA)
	if !errors.Is(err, common.ErrReentrantCall) {
		t.Fatalf("expected reentrancy rejection to propagate, got %v", err)
	}
	if !errors.Is(reentrant.nested, common.ErrReentrantCall) {
		t.Fatalf("nested call should observe ErrReentrantCall, got %v", reentrant.nested)
	}
}

type reentrantVault struct {
	engine *Engine
	roomID uint64
	nested error
}

func (v *reentrantVault) TransferIn(from [20]byte, amount *big.Int) error {
	v.nested = v.engine.Start(v.roomID)
	return v.nested
}

func (v *reentrantVault) TransferOut(to [20]byte, amount *big.Int) error {
	return nil
}
