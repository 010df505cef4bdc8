package state

import (
	"math/big"
	"testing"

	"github.com/BenjDW/maitre-slither/native/ledger"
	"github.com/BenjDW/maitre-slither/native/room"
	"github.com/BenjDW/maitre-slither/storage"
)

func TestRoomRecordRoundTrip(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	mgr := NewManager(db)
	playerA := testAddr(0x11)
	playerB := testAddr(0x22)
	record := &room.Room{
		ID:           3,
		Players:      [2][20]byte{playerA, playerB},
		Stake:        big.NewInt(10_000_000),
		JoinDeadline: 1_700_003_600,
		FeeRateBps:   200,
		Status:       room.StatusResolved,
		PaidMask:     0b11,
		RefundedMask: 0b01,
		Winner:       playerA,
		CreatedAt:    1_700_000_000,
		StartedAt:    1_700_000_200,
		ResolvedAt:   1_700_000_500,
		Funds: ledger.Funds{
			Deposited:   big.NewInt(20_000_000),
			ReservedFee: big.NewInt(400_000),
			PaidOut:     big.NewInt(19_600_000),
		},
	}
	if err := mgr.RoomPut(record); err != nil {
		t.Fatalf("put: %v", err)
	}

	loaded, ok, err := mgr.RoomGet(3)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if loaded.Players[0] != playerA || loaded.Players[1] != playerB {
		t.Fatalf("players lost: %+v", loaded.Players)
	}
	if loaded.Status != room.StatusResolved || loaded.Winner != playerA {
		t.Fatalf("resolution lost: status=%s winner=%x", loaded.Status, loaded.Winner)
	}
	if loaded.PaidMask != 0b11 || loaded.RefundedMask != 0b01 {
		t.Fatalf("masks lost: paid=%04b refunded=%04b", loaded.PaidMask, loaded.RefundedMask)
	}
	if loaded.JoinDeadline != 1_700_003_600 || loaded.ResolvedAt != 1_700_000_500 {
		t.Fatalf("timestamps lost: %+v", loaded)
	}
	if loaded.Funds.Available().Sign() != 0 {
		t.Fatalf("available = %s, want 0", loaded.Funds.Available())
	}

	loaded.Funds.PaidOut.SetInt64(0)
	again, _, err := mgr.RoomGet(3)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Funds.PaidOut.Cmp(big.NewInt(19_600_000)) != 0 {
		t.Fatalf("stored record aliased by caller mutation")
	}

	if _, ok, err := mgr.RoomGet(42); err != nil || ok {
		t.Fatalf("missing room: ok=%v err=%v", ok, err)
	}
}

func TestRoomSequenceIndependentFromPools(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	mgr := NewManager(db)
	if _, err := mgr.PoolNextID(); err != nil {
		t.Fatalf("pool id: %v", err)
	}
	roomID, err := mgr.RoomNextID()
	if err != nil {
		t.Fatalf("room id: %v", err)
	}
	if roomID != 1 {
		t.Fatalf("room sequence shares pool counter: got %d, want 1", roomID)
	}
}

func TestRoomNonceMarkersScopedPerRoom(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	mgr := NewManager(db)
	if consumed, err := mgr.RoomNonceConsumed(1, 9); err != nil || consumed {
		t.Fatalf("unexpected initial marker: consumed=%v err=%v", consumed, err)
	}
	if err := mgr.RoomConsumeNonce(1, 9); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if consumed, err := mgr.RoomNonceConsumed(1, 9); err != nil || !consumed {
		t.Fatalf("marker not recorded: consumed=%v err=%v", consumed, err)
	}
	if consumed, err := mgr.RoomNonceConsumed(2, 9); err != nil || consumed {
		t.Fatalf("marker leaked across rooms: consumed=%v err=%v", consumed, err)
	}
	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	reopened := NewManager(db)
	if consumed, err := reopened.RoomNonceConsumed(1, 9); err != nil || !consumed {
		t.Fatalf("marker lost after commit: consumed=%v err=%v", consumed, err)
	}
}
