package rpc

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"

	"github.com/BenjDW/maitre-slither/native/ledger"
	"github.com/BenjDW/maitre-slither/native/pool"
	"github.com/BenjDW/maitre-slither/native/registry"
	"github.com/BenjDW/maitre-slither/native/token"
)

const (
	codePoolInvalidParams = -32021
	codePoolNotFound      = -32022
	codePoolForbidden     = -32023
	codePoolConflict      = -32024
	codePoolInternal      = -32025
)

type poolCreateParams struct {
	Caller       string `json:"caller"`
	Stake        string `json:"stake"`
	TargetCount  uint32 `json:"targetCount"`
	JoinDeadline int64  `json:"joinDeadline"`
}

type poolTransitionParams struct {
	PoolID uint64 `json:"poolId"`
	Caller string `json:"caller"`
}

type poolSettleParams struct {
	PoolID      uint64 `json:"poolId"`
	Caller      string `json:"caller"`
	Participant string `json:"participant"`
	Value       string `json:"value"`
	EventID     uint64 `json:"eventId"`
}

type poolReviveParams struct {
	PoolID      uint64 `json:"poolId"`
	Participant string `json:"participant"`
}

type poolQueryParams struct {
	PoolID uint64 `json:"poolId"`
}

type poolParticipantParams struct {
	PoolID  uint64 `json:"poolId"`
	Address string `json:"address"`
}

type poolJSON struct {
	ID           uint64 `json:"id"`
	Stake        string `json:"stake"`
	TargetCount  uint32 `json:"targetCount"`
	JoinDeadline int64  `json:"joinDeadline"`
	FeeRateBps   uint32 `json:"feeRateBps"`
	Status       string `json:"status"`
	ActiveCount  uint32 `json:"activeCount"`
	CreatedAt    int64  `json:"createdAt"`
	StartedAt    int64  `json:"startedAt,omitempty"`
	EndedAt      int64  `json:"endedAt,omitempty"`
	Deposited    string `json:"deposited"`
	ReservedFee  string `json:"reservedFee"`
	PaidOut      string `json:"paidOut"`
	Available    string `json:"available"`
}

type poolParticipantJSON struct {
	Address    string `json:"address"`
	Deposited  string `json:"deposited"`
	EverJoined bool   `json:"everJoined"`
	Active     bool   `json:"active"`
	Exited     bool   `json:"exited"`
}

type poolCreateResult struct {
	PoolID uint64 `json:"poolId"`
}

type poolSettleResult struct {
	Participant string `json:"participant"`
	Outcome     string `json:"outcome"`
	Payout      string `json:"payout"`
}

func (s *Server) handlePoolCreate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codePoolInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params poolCreateParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codePoolInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codePoolInvalidParams, "invalid_params", err.Error())
		return
	}
	stake, err := parsePositiveBigInt(params.Stake, "stake")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codePoolInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := s.node.PoolCreate(caller, stake, params.TargetCount, params.JoinDeadline)
	if err != nil {
		s.writePoolError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, poolCreateResult{PoolID: id})
}

func (s *Server) handlePoolJoin(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.poolTransition(w, req, s.node.PoolJoin)
}

func (s *Server) handlePoolStart(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.poolTransition(w, req, s.node.PoolStart)
}

func (s *Server) handlePoolEnd(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.poolTransition(w, req, s.node.PoolEnd)
}

// poolTransition covers the mutations that only need a pool id and the acting
// identity.
func (s *Server) poolTransition(w http.ResponseWriter, req *RPCRequest, fn func(poolID uint64, caller [20]byte) error) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codePoolInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params poolTransitionParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codePoolInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codePoolInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := fn(params.PoolID, caller); err != nil {
		s.writePoolError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handlePoolSettleDeath(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.poolSettle(w, req, pool.OutcomeDeath, s.node.PoolSettleDeath)
}

func (s *Server) handlePoolSettleAlive(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.poolSettle(w, req, pool.OutcomeAlive, s.node.PoolSettleAlive)
}

func (s *Server) poolSettle(w http.ResponseWriter, req *RPCRequest, outcome string, fn func(poolID uint64, caller, participant [20]byte, value *big.Int, eventID uint64) (*big.Int, error)) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codePoolInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params poolSettleParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codePoolInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codePoolInvalidParams, "invalid_params", err.Error())
		return
	}
	participant, err := parseBech32Address(params.Participant, "participant")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codePoolInvalidParams, "invalid_params", err.Error())
		return
	}
	value, err := parsePositiveBigInt(params.Value, "value")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codePoolInvalidParams, "invalid_params", err.Error())
		return
	}
	payout, err := fn(params.PoolID, caller, participant, value, params.EventID)
	if err != nil {
		s.writePoolError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, poolSettleResult{
		Participant: formatAddress(participant),
		Outcome:     outcome,
		Payout:      formatAmount(payout),
	})
}

func (s *Server) handlePoolRevive(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codePoolInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params poolReviveParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codePoolInvalidParams, "invalid_params", err.Error())
		return
	}
	participant, err := parseBech32Address(params.Participant, "participant")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codePoolInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.PoolRevive(params.PoolID, participant); err != nil {
		s.writePoolError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handlePoolGet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codePoolInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params poolQueryParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codePoolInvalidParams, "invalid_params", err.Error())
		return
	}
	p, err := s.node.PoolGet(params.PoolID)
	if err != nil {
		s.writePoolError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatPoolJSON(p))
}

func (s *Server) handlePoolParticipant(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codePoolInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params poolParticipantParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codePoolInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseBech32Address(params.Address, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codePoolInvalidParams, "invalid_params", err.Error())
		return
	}
	participant, err := s.node.PoolParticipant(params.PoolID, addr)
	if err != nil {
		s.writePoolError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, poolParticipantJSON{
		Address:    formatAddress(addr),
		Deposited:  formatAmount(participant.Deposited),
		EverJoined: participant.EverJoined,
		Active:     participant.Active,
		Exited:     participant.Exited,
	})
}

func (s *Server) handlePoolAvailable(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codePoolInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params poolQueryParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codePoolInvalidParams, "invalid_params", err.Error())
		return
	}
	available, err := s.node.PoolAvailable(params.PoolID)
	if err != nil {
		s.writePoolError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatAmount(available))
}

func formatPoolJSON(p *pool.Pool) poolJSON {
	return poolJSON{
		ID:           p.ID,
		Stake:        formatAmount(p.Stake),
		TargetCount:  p.TargetCount,
		JoinDeadline: p.JoinDeadline,
		FeeRateBps:   p.FeeRateBps,
		Status:       p.Status.String(),
		ActiveCount:  p.ActiveCount,
		CreatedAt:    p.CreatedAt,
		StartedAt:    p.StartedAt,
		EndedAt:      p.EndedAt,
		Deposited:    formatAmount(p.Funds.Deposited),
		ReservedFee:  formatAmount(p.Funds.ReservedFee),
		PaidOut:      formatAmount(p.Funds.PaidOut),
		Available:    formatAmount(p.Funds.Available()),
	}
}

func (s *Server) writePoolError(w http.ResponseWriter, id int, err error) {
	switch {
	case errors.Is(err, pool.ErrPoolNotFound):
		writeError(w, http.StatusNotFound, id, codePoolNotFound, "not_found", err.Error())
	case errors.Is(err, registry.ErrNotOperator),
		errors.Is(err, registry.ErrNotOwner),
		errors.Is(err, pool.ErrNotParticipant):
		writeError(w, http.StatusForbidden, id, codePoolForbidden, "forbidden", err.Error())
	case errors.Is(err, pool.ErrWrongStatus),
		errors.Is(err, pool.ErrJoinDeadline),
		errors.Is(err, pool.ErrAlreadyActive),
		errors.Is(err, pool.ErrAlreadyExited),
		errors.Is(err, pool.ErrNotExited),
		errors.Is(err, pool.ErrEventConsumed),
		errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrInsufficientFunds):
		writeError(w, http.StatusConflict, id, codePoolConflict, "conflict", err.Error())
	case errors.Is(err, pool.ErrInvalidStake),
		errors.Is(err, pool.ErrInvalidTargetCount),
		errors.Is(err, pool.ErrDeadlineNotFuture),
		errors.Is(err, pool.ErrInvalidValue),
		errors.Is(err, pool.ErrZeroAddress),
		errors.Is(err, ledger.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, id, codePoolInvalidParams, "invalid_params", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codePoolInternal, "internal_error", err.Error())
	}
}
