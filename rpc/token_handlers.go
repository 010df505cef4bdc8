package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/BenjDW/maitre-slither/native/registry"
	"github.com/BenjDW/maitre-slither/native/token"
)

const (
	codeTokenInvalidParams = -32051
	codeTokenForbidden     = -32052
	codeTokenConflict      = -32053
	codeTokenInternal      = -32054
)

type tokenMintParams struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type tokenTransferParams struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type tokenApproveParams struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type tokenTransferFromParams struct {
	Spender string `json:"spender"`
	Owner   string `json:"owner"`
	To      string `json:"to"`
	Amount  string `json:"amount"`
}

type tokenAddressParams struct {
	Address string `json:"address"`
}

type tokenAllowanceParams struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
}

type tokenVaultResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

func (s *Server) handleTokenMint(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeTokenInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params tokenMintParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTokenInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTokenInvalidParams, "invalid_params", err.Error())
		return
	}
	to, err := parseBech32Address(params.To, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTokenInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount, "amount")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTokenInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.TokenMint(caller, to, amount); err != nil {
		s.writeTokenError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleTokenTransfer(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeTokenInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params tokenTransferParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTokenInvalidParams, "invalid_params", err.Error())
		return
	}
	from, err := parseBech32Address(params.From, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTokenInvalidParams, "invalid_params", err.Error())
		return
	}
	to, err := parseBech32Address(params.To, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTokenInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount, "amount")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTokenInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.TokenTransfer(from, to, amount); err != nil {
		s.writeTokenError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleTokenApprove(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeTokenInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params tokenApproveParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTokenInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseBech32Address(params.Owner, "owner")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTokenInvalidParams, "invalid_params", err.Error())
		return
	}
	spender, err := parseBech32Address(params.Spender, "spender")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTokenInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parseNonNegativeBigInt(params.Amount, "amount")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTokenInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.TokenApprove(owner, spender, amount); err != nil {
		s.writeTokenError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleTokenTransferFrom(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeTokenInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params tokenTransferFromParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTokenInvalidParams, "invalid_params", err.Error())
		return
	}
	spender, err := parseBech32Address(params.Spender, "spender")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTokenInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseBech32Address(params.Owner, "owner")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTokenInvalidParams, "invalid_params", err.Error())
		return
	}
	to, err := parseBech32Address(params.To, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTokenInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount, "amount")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTokenInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.TokenTransferFrom(spender, owner, to, amount); err != nil {
		s.writeTokenError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleTokenBalanceOf(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeTokenInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params tokenAddressParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTokenInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseBech32Address(params.Address, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTokenInvalidParams, "invalid_params", err.Error())
		return
	}
	balance, err := s.node.TokenBalanceOf(addr)
	if err != nil {
		s.writeTokenError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatAmount(balance))
}

func (s *Server) handleTokenAllowance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeTokenInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params tokenAllowanceParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTokenInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseBech32Address(params.Owner, "owner")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTokenInvalidParams, "invalid_params", err.Error())
		return
	}
	spender, err := parseBech32Address(params.Spender, "spender")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTokenInvalidParams, "invalid_params", err.Error())
		return
	}
	allowance, err := s.node.TokenAllowance(owner, spender)
	if err != nil {
		s.writeTokenError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatAmount(allowance))
}

func (s *Server) handleTokenTotalSupply(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeTokenInvalidParams, "invalid_params", "no parameters expected")
		return
	}
	supply, err := s.node.TokenTotalSupply()
	if err != nil {
		s.writeTokenError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatAmount(supply))
}

func (s *Server) handleTokenVault(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeTokenInvalidParams, "invalid_params", "no parameters expected")
		return
	}
	balance, err := s.node.VaultBalance()
	if err != nil {
		s.writeTokenError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, tokenVaultResult{
		Address: formatAddress(s.node.VaultAddress()),
		Balance: formatAmount(balance),
	})
}

func (s *Server) writeTokenError(w http.ResponseWriter, id int, err error) {
	switch {
	case errors.Is(err, registry.ErrNotOwner):
		writeError(w, http.StatusForbidden, id, codeTokenForbidden, "forbidden", err.Error())
	case errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientAllowance):
		writeError(w, http.StatusConflict, id, codeTokenConflict, "conflict", err.Error())
	case errors.Is(err, token.ErrZeroAddress),
		errors.Is(err, token.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, id, codeTokenInvalidParams, "invalid_params", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeTokenInternal, "internal_error", err.Error())
	}
}
