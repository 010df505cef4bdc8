package rpc

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

func TestTokenMintRequiresOwner(t *testing.T) {
	env := newTestEnv(t)
	req := &RPCRequest{ID: 1, Params: []json.RawMessage{marshalParam(t, map[string]interface{}{
		"caller": formatAddress(env.operator),
		"to":     formatAddress(env.playerA),
		"amount": "1000000",
	})}}
	rec := httptest.NewRecorder()
	env.server.handleTokenMint(rec, env.newRequest(), req)
	_, rpcErr := decodeRPCResponse(t, rec)
	if rpcErr == nil || rpcErr.Code != codeTokenForbidden {
		t.Fatalf("expected code %d got %+v", codeTokenForbidden, rpcErr)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 got %d", rec.Code)
	}
}

func TestTokenMintGrowsSupply(t *testing.T) {
	env := newTestEnv(t)
	mintReq := &RPCRequest{ID: 1, Params: []json.RawMessage{marshalParam(t, map[string]interface{}{
		"caller": formatAddress(env.owner),
		"to":     formatAddress(env.playerA),
		"amount": "1000000",
	})}}
	mintRec := httptest.NewRecorder()
	env.server.handleTokenMint(mintRec, env.newRequest(), mintReq)
	if _, mintErr := decodeRPCResponse(t, mintRec); mintErr != nil {
		t.Fatalf("mint: %+v", mintErr)
	}

	balanceRec := httptest.NewRecorder()
	env.server.handleTokenBalanceOf(balanceRec, env.newRequest(), &RPCRequest{ID: 2, Params: []json.RawMessage{marshalParam(t, map[string]interface{}{
		"address": formatAddress(env.playerA),
	})}})
	balanceResult, balanceErr := decodeRPCResponse(t, balanceRec)
	if balanceErr != nil {
		t.Fatalf("balance: %+v", balanceErr)
	}
	var balance string
	if err := json.Unmarshal(balanceResult, &balance); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	if want := strconv.FormatInt(testAlloc+1_000_000, 10); balance != want {
		t.Fatalf("expected balance %s got %s", want, balance)
	}

	supplyRec := httptest.NewRecorder()
	env.server.handleTokenTotalSupply(supplyRec, env.newRequest(), &RPCRequest{ID: 3})
	supplyResult, supplyErr := decodeRPCResponse(t, supplyRec)
	if supplyErr != nil {
		t.Fatalf("total supply: %+v", supplyErr)
	}
	var supply string
	if err := json.Unmarshal(supplyResult, &supply); err != nil {
		t.Fatalf("decode supply: %v", err)
	}
	if supply != "201000000" {
		t.Fatalf("expected supply 201000000 got %s", supply)
	}
}

func TestTokenTransferInsufficientBalance(t *testing.T) {
	env := newTestEnv(t)
	req := &RPCRequest{ID: 1, Params: []json.RawMessage{marshalParam(t, map[string]interface{}{
		"from":   formatAddress(testAddr(0x33)),
		"to":     formatAddress(env.playerA),
		"amount": "1",
	})}}
	rec := httptest.NewRecorder()
	env.server.handleTokenTransfer(rec, env.newRequest(), req)
	_, rpcErr := decodeRPCResponse(t, rec)
	if rpcErr == nil || rpcErr.Code != codeTokenConflict {
		t.Fatalf("expected code %d got %+v", codeTokenConflict, rpcErr)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409 got %d", rec.Code)
	}
}

func TestTokenAllowanceFlowOverRPC(t *testing.T) {
	env := newTestEnv(t)
	spender := testAddr(0x55)

	approveReq := &RPCRequest{ID: 1, Params: []json.RawMessage{marshalParam(t, map[string]interface{}{
		"owner":   formatAddress(env.playerA),
		"spender": formatAddress(spender),
		"amount":  "5000000",
	})}}
	approveRec := httptest.NewRecorder()
	env.server.handleTokenApprove(approveRec, env.newRequest(), approveReq)
	if _, approveErr := decodeRPCResponse(t, approveRec); approveErr != nil {
		t.Fatalf("approve: %+v", approveErr)
	}

	transferReq := &RPCRequest{ID: 2, Params: []json.RawMessage{marshalParam(t, map[string]interface{}{
		"spender": formatAddress(spender),
		"owner":   formatAddress(env.playerA),
		"to":      formatAddress(env.playerB),
		"amount":  "3000000",
	})}}
	transferRec := httptest.NewRecorder()
	env.server.handleTokenTransferFrom(transferRec, env.newRequest(), transferReq)
	if _, transferErr := decodeRPCResponse(t, transferRec); transferErr != nil {
		t.Fatalf("transferFrom: %+v", transferErr)
	}

	allowanceRec := httptest.NewRecorder()
	env.server.handleTokenAllowance(allowanceRec, env.newRequest(), &RPCRequest{ID: 3, Params: []json.RawMessage{marshalParam(t, map[string]interface{}{
		"owner":   formatAddress(env.playerA),
		"spender": formatAddress(spender),
	})}})
	allowanceResult, allowanceErr := decodeRPCResponse(t, allowanceRec)
	if allowanceErr != nil {
		t.Fatalf("allowance: %+v", allowanceErr)
	}
	var allowance string
	if err := json.Unmarshal(allowanceResult, &allowance); err != nil {
		t.Fatalf("decode allowance: %v", err)
	}
	if allowance != "2000000" {
		t.Fatalf("expected allowance 2000000 got %s", allowance)
	}

	exceedReq := &RPCRequest{ID: 4, Params: []json.RawMessage{marshalParam(t, map[string]interface{}{
		"spender": formatAddress(spender),
		"owner":   formatAddress(env.playerA),
		"to":      formatAddress(env.playerB),
		"amount":  "3000000",
	})}}
	exceedRec := httptest.NewRecorder()
	env.server.handleTokenTransferFrom(exceedRec, env.newRequest(), exceedReq)
	_, exceedErr := decodeRPCResponse(t, exceedRec)
	if exceedErr == nil || exceedErr.Code != codeTokenConflict {
		t.Fatalf("expected code %d got %+v", codeTokenConflict, exceedErr)
	}
}

func TestTokenVaultTracksCustody(t *testing.T) {
	env := newTestEnv(t)
	id := env.createPool(t)
	if err := env.node.PoolJoin(id, env.playerA); err != nil {
		t.Fatalf("join pool: %v", err)
	}

	rec := httptest.NewRecorder()
	env.server.handleTokenVault(rec, env.newRequest(), &RPCRequest{ID: 1})
	result, rpcErr := decodeRPCResponse(t, rec)
	if rpcErr != nil {
		t.Fatalf("vault: %+v", rpcErr)
	}
	var vault tokenVaultResult
	if err := json.Unmarshal(result, &vault); err != nil {
		t.Fatalf("decode vault: %v", err)
	}
	if vault.Balance != "10000000" {
		t.Fatalf("expected vault balance 10000000 got %s", vault.Balance)
	}
	if vault.Address == "" {
		t.Fatalf("expected vault address")
	}
}
