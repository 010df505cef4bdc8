package state

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/BenjDW/maitre-slither/storage"
)

func TestKVWritesStayBufferedUntilCommit(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	mgr := NewManager(db)
	key := []byte("test/entry")
	if err := mgr.KVPut(key, uint64(42)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if mgr.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", mgr.Pending())
	}

	var buffered uint64
	ok, err := mgr.KVGet(key, &buffered)
	if err != nil || !ok {
		t.Fatalf("buffered read: ok=%v err=%v", ok, err)
	}
	if buffered != 42 {
		t.Fatalf("buffered value = %d, want 42", buffered)
	}

	other := NewManager(db)
	if ok, err := other.KVGet(key, nil); err != nil || ok {
		t.Fatalf("uncommitted write visible through backend: ok=%v err=%v", ok, err)
	}

	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if mgr.Pending() != 0 {
		t.Fatalf("pending after commit = %d, want 0", mgr.Pending())
	}
	var persisted uint64
	ok, err = other.KVGet(key, &persisted)
	if err != nil || !ok {
		t.Fatalf("committed read: ok=%v err=%v", ok, err)
	}
	if persisted != 42 {
		t.Fatalf("persisted value = %d, want 42", persisted)
	}
}

func TestResetDiscardsBufferedWrites(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	mgr := NewManager(db)
	if err := mgr.KVPut([]byte("kept"), uint64(1)); err != nil {
		t.Fatalf("put kept: %v", err)
	}
	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := mgr.KVPut([]byte("kept"), uint64(2)); err != nil {
		t.Fatalf("overwrite kept: %v", err)
	}
	if err := mgr.KVPut([]byte("dropped"), uint64(3)); err != nil {
		t.Fatalf("put dropped: %v", err)
	}
	mgr.Reset()

	if mgr.Pending() != 0 {
		t.Fatalf("pending after reset = %d, want 0", mgr.Pending())
	}
	var kept uint64
	ok, err := mgr.KVGet([]byte("kept"), &kept)
	if err != nil || !ok {
		t.Fatalf("read kept: ok=%v err=%v", ok, err)
	}
	if kept != 1 {
		t.Fatalf("kept value = %d, want the committed 1", kept)
	}
	if ok, err := mgr.KVGet([]byte("dropped"), nil); err != nil || ok {
		t.Fatalf("dropped value survived reset: ok=%v err=%v", ok, err)
	}
}

func TestKVRejectsEmptyKey(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	mgr := NewManager(db)
	if err := mgr.KVPut(nil, uint64(1)); err == nil {
		t.Fatalf("expected error for empty key put")
	}
	if _, err := mgr.KVGet(nil, nil); err == nil {
		t.Fatalf("expected error for empty key get")
	}
}

func TestParamStoreRoundTrip(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	mgr := NewManager(db)
	if _, ok, err := mgr.ParamStoreGet("registry/admin"); err != nil || ok {
		t.Fatalf("unexpected initial param: ok=%v err=%v", ok, err)
	}
	payload := []byte(`{"owner":"0x01"}`)
	if err := mgr.ParamStoreSet("registry/admin", payload); err != nil {
		t.Fatalf("set param: %v", err)
	}
	stored, ok, err := mgr.ParamStoreGet("registry/admin")
	if err != nil || !ok {
		t.Fatalf("get param: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(stored, payload) {
		t.Fatalf("param payload = %q, want %q", stored, payload)
	}
	if err := mgr.ParamStoreSet("  ", payload); err == nil {
		t.Fatalf("expected error for blank param name")
	}
}

func TestFeesAccruedAccessors(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	mgr := NewManager(db)
	initial, err := mgr.FeesAccruedGet()
	if err != nil {
		t.Fatalf("initial accrued: %v", err)
	}
	if initial.Sign() != 0 {
		t.Fatalf("initial accrued = %s, want 0", initial)
	}
	if err := mgr.FeesAccruedSet(big.NewInt(-1)); err == nil {
		t.Fatalf("expected rejection of negative accrued")
	}
	if err := mgr.FeesAccruedSet(big.NewInt(400_000)); err != nil {
		t.Fatalf("set accrued: %v", err)
	}
	accrued, err := mgr.FeesAccruedGet()
	if err != nil {
		t.Fatalf("get accrued: %v", err)
	}
	if accrued.Cmp(big.NewInt(400_000)) != 0 {
		t.Fatalf("accrued = %s, want 400000", accrued)
	}
}

func TestEnsureStateVersion(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	if err := EnsureStateVersion(db, false); err != nil {
		t.Fatalf("fresh database: %v", err)
	}
	mgr := NewManager(db)
	version, ok, err := mgr.StateVersion()
	if err != nil || !ok {
		t.Fatalf("read version: ok=%v err=%v", ok, err)
	}
	if version != StateVersion {
		t.Fatalf("version = %d, want %d", version, StateVersion)
	}
	if err := EnsureStateVersion(db, false); err != nil {
		t.Fatalf("matching version: %v", err)
	}

	if err := mgr.SetStateVersion(StateVersion + 1); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit bump: %v", err)
	}
	if err := EnsureStateVersion(db, false); !errors.Is(err, ErrStateVersionMismatch) {
		t.Fatalf("expected ErrStateVersionMismatch, got %v", err)
	}
	if err := EnsureStateVersion(db, true); err != nil {
		t.Fatalf("allowMigrate should tolerate mismatch: %v", err)
	}
}
