package rpc

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAdminInfoFormatsIdentities(t *testing.T) {
	env := newTestEnv(t)
	rec := httptest.NewRecorder()
	env.server.handleAdminInfo(rec, env.newRequest(), &RPCRequest{ID: 1})
	result, rpcErr := decodeRPCResponse(t, rec)
	if rpcErr != nil {
		t.Fatalf("admin info: %+v", rpcErr)
	}
	var info adminInfoJSON
	if err := json.Unmarshal(result, &info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if info.Owner != formatAddress(env.owner) {
		t.Fatalf("unexpected owner %s", info.Owner)
	}
	if info.Operator != formatAddress(env.operator) {
		t.Fatalf("unexpected operator %s", info.Operator)
	}
	if info.Treasury != formatAddress(env.treasury) {
		t.Fatalf("unexpected treasury %s", info.Treasury)
	}
	if info.FeeRateBps != 200 {
		t.Fatalf("expected fee rate 200 got %d", info.FeeRateBps)
	}
}

func TestAdminRotationRequiresOwner(t *testing.T) {
	env := newTestEnv(t)
	req := &RPCRequest{ID: 1, Params: []json.RawMessage{marshalParam(t, map[string]interface{}{
		"caller":  formatAddress(env.playerA),
		"address": formatAddress(testAddr(0x44)),
	})}}
	rec := httptest.NewRecorder()
	env.server.handleAdminSetOperator(rec, env.newRequest(), req)
	_, rpcErr := decodeRPCResponse(t, rec)
	if rpcErr == nil || rpcErr.Code != codeAdminForbidden {
		t.Fatalf("expected code %d got %+v", codeAdminForbidden, rpcErr)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 got %d", rec.Code)
	}
}

func TestAdminRotateOperatorOverRPC(t *testing.T) {
	env := newTestEnv(t)
	next := testAddr(0x44)
	req := &RPCRequest{ID: 1, Params: []json.RawMessage{marshalParam(t, map[string]interface{}{
		"caller":  formatAddress(env.owner),
		"address": formatAddress(next),
	})}}
	rec := httptest.NewRecorder()
	env.server.handleAdminSetOperator(rec, env.newRequest(), req)
	if _, rpcErr := decodeRPCResponse(t, rec); rpcErr != nil {
		t.Fatalf("rotate operator: %+v", rpcErr)
	}

	infoRec := httptest.NewRecorder()
	env.server.handleAdminInfo(infoRec, env.newRequest(), &RPCRequest{ID: 2})
	result, infoErr := decodeRPCResponse(t, infoRec)
	if infoErr != nil {
		t.Fatalf("admin info: %+v", infoErr)
	}
	var info adminInfoJSON
	if err := json.Unmarshal(result, &info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if info.Operator != formatAddress(next) {
		t.Fatalf("expected rotated operator got %s", info.Operator)
	}
}

func TestAdminSetFeeRateCeiling(t *testing.T) {
	env := newTestEnv(t)
	req := &RPCRequest{ID: 1, Params: []json.RawMessage{marshalParam(t, map[string]interface{}{
		"caller":     formatAddress(env.owner),
		"feeRateBps": 1200,
	})}}
	rec := httptest.NewRecorder()
	env.server.handleAdminSetFeeRate(rec, env.newRequest(), req)
	_, rpcErr := decodeRPCResponse(t, rec)
	if rpcErr == nil || rpcErr.Code != codeAdminInvalidParams {
		t.Fatalf("expected code %d got %+v", codeAdminInvalidParams, rpcErr)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}

	okReq := &RPCRequest{ID: 2, Params: []json.RawMessage{marshalParam(t, map[string]interface{}{
		"caller":     formatAddress(env.owner),
		"feeRateBps": 300,
	})}}
	okRec := httptest.NewRecorder()
	env.server.handleAdminSetFeeRate(okRec, env.newRequest(), okReq)
	if _, okErr := decodeRPCResponse(t, okRec); okErr != nil {
		t.Fatalf("set fee rate: %+v", okErr)
	}
}

func TestFeesWithdrawOverRPC(t *testing.T) {
	env := newTestEnv(t)
	id := env.livePool(t)
	if err := env.node.PoolEnd(id, env.operator); err != nil {
		t.Fatalf("end pool: %v", err)
	}

	accruedRec := httptest.NewRecorder()
	env.server.handleFeesAccrued(accruedRec, env.newRequest(), &RPCRequest{ID: 1})
	result, accruedErr := decodeRPCResponse(t, accruedRec)
	if accruedErr != nil {
		t.Fatalf("fees accrued: %+v", accruedErr)
	}
	var accrued string
	if err := json.Unmarshal(result, &accrued); err != nil {
		t.Fatalf("decode accrued: %v", err)
	}
	if accrued != "400000" {
		t.Fatalf("expected accrued 400000 got %s", accrued)
	}

	operatorReq := &RPCRequest{ID: 2, Params: []json.RawMessage{marshalParam(t, map[string]interface{}{
		"caller": formatAddress(env.operator),
		"amount": "400000",
	})}}
	operatorRec := httptest.NewRecorder()
	env.server.handleFeesWithdraw(operatorRec, env.newRequest(), operatorReq)
	_, operatorErr := decodeRPCResponse(t, operatorRec)
	if operatorErr == nil || operatorErr.Code != codeAdminForbidden {
		t.Fatalf("expected code %d got %+v", codeAdminForbidden, operatorErr)
	}

	excessReq := &RPCRequest{ID: 3, Params: []json.RawMessage{marshalParam(t, map[string]interface{}{
		"caller": formatAddress(env.owner),
		"amount": "500000",
	})}}
	excessRec := httptest.NewRecorder()
	env.server.handleFeesWithdraw(excessRec, env.newRequest(), excessReq)
	_, excessErr := decodeRPCResponse(t, excessRec)
	if excessErr == nil || excessErr.Code != codeAdminConflict {
		t.Fatalf("expected code %d got %+v", codeAdminConflict, excessErr)
	}
	if excessRec.Code != http.StatusConflict {
		t.Fatalf("expected status 409 got %d", excessRec.Code)
	}

	ownerReq := &RPCRequest{ID: 4, Params: []json.RawMessage{marshalParam(t, map[string]interface{}{
		"caller": formatAddress(env.owner),
		"amount": "400000",
	})}}
	ownerRec := httptest.NewRecorder()
	env.server.handleFeesWithdraw(ownerRec, env.newRequest(), ownerReq)
	if _, ownerErr := decodeRPCResponse(t, ownerRec); ownerErr != nil {
		t.Fatalf("withdraw: %+v", ownerErr)
	}

	drainedRec := httptest.NewRecorder()
	env.server.handleFeesAccrued(drainedRec, env.newRequest(), &RPCRequest{ID: 5})
	drainedResult, drainedErr := decodeRPCResponse(t, drainedRec)
	if drainedErr != nil {
		t.Fatalf("fees accrued: %+v", drainedErr)
	}
	var drained string
	if err := json.Unmarshal(drainedResult, &drained); err != nil {
		t.Fatalf("decode accrued: %v", err)
	}
	if drained != "0" {
		t.Fatalf("expected drained fees got %s", drained)
	}
}
