package state

import (
	"math/big"
	"testing"

	"github.com/BenjDW/maitre-slither/storage"
)

func TestTokenBalanceDefaultsToZero(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	mgr := NewManager(db)
	addr := testAddr(0x11)
	balance, err := mgr.TokenBalanceGet(addr)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if balance.Sign() != 0 {
		t.Fatalf("balance = %s, want 0", balance)
	}

	if err := mgr.TokenBalanceSet(addr, big.NewInt(-5)); err == nil {
		t.Fatalf("expected rejection of negative balance")
	}
	if err := mgr.TokenBalanceSet(addr, big.NewInt(500)); err != nil {
		t.Fatalf("set: %v", err)
	}
	updated, err := mgr.TokenBalanceGet(addr)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if updated.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("balance = %s, want 500", updated)
	}
}

func TestTokenAllowanceKeyedByOwnerAndSpender(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	mgr := NewManager(db)
	owner := testAddr(0x11)
	spender := testAddr(0x22)
	if err := mgr.TokenAllowanceSet(owner, spender, big.NewInt(300)); err != nil {
		t.Fatalf("set: %v", err)
	}

	allowance, err := mgr.TokenAllowanceGet(owner, spender)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if allowance.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("allowance = %s, want 300", allowance)
	}
	reversed, err := mgr.TokenAllowanceGet(spender, owner)
	if err != nil {
		t.Fatalf("reversed get: %v", err)
	}
	if reversed.Sign() != 0 {
		t.Fatalf("allowance leaked across direction: %s", reversed)
	}
}

func TestTokenSupplyAccessors(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	mgr := NewManager(db)
	supply, err := mgr.TokenSupplyGet()
	if err != nil {
		t.Fatalf("initial supply: %v", err)
	}
	if supply.Sign() != 0 {
		t.Fatalf("initial supply = %s, want 0", supply)
	}
	if err := mgr.TokenSupplySet(big.NewInt(-1)); err == nil {
		t.Fatalf("expected rejection of negative supply")
	}
	if err := mgr.TokenSupplySet(big.NewInt(1_000_000)); err != nil {
		t.Fatalf("set supply: %v", err)
	}
	updated, err := mgr.TokenSupplyGet()
	if err != nil {
		t.Fatalf("reload supply: %v", err)
	}
	if updated.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("supply = %s, want 1000000", updated)
	}
}
