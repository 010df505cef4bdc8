package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/BenjDW/maitre-slither/native/fees"
	"github.com/BenjDW/maitre-slither/native/ledger"
	"github.com/BenjDW/maitre-slither/native/registry"
	"github.com/BenjDW/maitre-slither/native/token"
)

const (
	codeAdminInvalidParams = -32041
	codeAdminForbidden     = -32042
	codeAdminConflict      = -32043
	codeAdminInternal      = -32044
)

type adminRotateParams struct {
	Caller  string `json:"caller"`
	Address string `json:"address"`
}

type adminFeeRateParams struct {
	Caller     string `json:"caller"`
	FeeRateBps uint32 `json:"feeRateBps"`
}

type feesWithdrawParams struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

type adminInfoJSON struct {
	Owner      string `json:"owner"`
	Operator   string `json:"operator"`
	Treasury   string `json:"treasury"`
	FeeRateBps uint32 `json:"feeRateBps"`
}

func (s *Server) handleAdminInfo(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeAdminInvalidParams, "invalid_params", "no parameters expected")
		return
	}
	admin, err := s.node.AdminInfo()
	if err != nil {
		s.writeAdminError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, adminInfoJSON{
		Owner:      formatAddress(admin.Owner),
		Operator:   formatAddress(admin.Operator),
		Treasury:   formatAddress(admin.Treasury),
		FeeRateBps: admin.FeeRateBps,
	})
}

func (s *Server) handleAdminSetOwner(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.adminRotate(w, req, s.node.AdminSetOwner)
}

func (s *Server) handleAdminSetOperator(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.adminRotate(w, req, s.node.AdminSetOperator)
}

func (s *Server) handleAdminSetTreasury(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.adminRotate(w, req, s.node.AdminSetTreasury)
}

// adminRotate covers the three identity rotations, which share a parameter
// shape and an owner-only gate.
func (s *Server) adminRotate(w http.ResponseWriter, req *RPCRequest, fn func(caller, next [20]byte) error) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeAdminInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params adminRotateParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAdminInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAdminInvalidParams, "invalid_params", err.Error())
		return
	}
	next, err := parseBech32Address(params.Address, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAdminInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := fn(caller, next); err != nil {
		s.writeAdminError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleAdminSetFeeRate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeAdminInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params adminFeeRateParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAdminInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAdminInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.AdminSetFeeRate(caller, params.FeeRateBps); err != nil {
		s.writeAdminError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleFeesAccrued(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeAdminInvalidParams, "invalid_params", "no parameters expected")
		return
	}
	accrued, err := s.node.FeesAccrued()
	if err != nil {
		s.writeAdminError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatAmount(accrued))
}

func (s *Server) handleFeesWithdraw(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeAdminInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params feesWithdrawParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAdminInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAdminInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount, "amount")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAdminInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.FeesWithdraw(caller, amount); err != nil {
		s.writeAdminError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) writeAdminError(w http.ResponseWriter, id int, err error) {
	switch {
	case errors.Is(err, registry.ErrNotOwner),
		errors.Is(err, registry.ErrNotOperator):
		writeError(w, http.StatusForbidden, id, codeAdminForbidden, "forbidden", err.Error())
	case errors.Is(err, fees.ErrInsufficientAccrued),
		errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrInsufficientFunds):
		writeError(w, http.StatusConflict, id, codeAdminConflict, "conflict", err.Error())
	case errors.Is(err, registry.ErrZeroAddress),
		errors.Is(err, fees.ErrRateTooHigh),
		errors.Is(err, fees.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, id, codeAdminInvalidParams, "invalid_params", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeAdminInternal, "internal_error", err.Error())
	}
}
