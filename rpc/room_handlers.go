package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/BenjDW/maitre-slither/native/ledger"
	"github.com/BenjDW/maitre-slither/native/registry"
	"github.com/BenjDW/maitre-slither/native/room"
	"github.com/BenjDW/maitre-slither/native/token"
)

const (
	codeRoomInvalidParams = -32031
	codeRoomNotFound      = -32032
	codeRoomForbidden     = -32033
	codeRoomConflict      = -32034
	codeRoomInternal      = -32035
)

type roomCreateParams struct {
	Caller       string `json:"caller"`
	PlayerA      string `json:"playerA"`
	PlayerB      string `json:"playerB"`
	Stake        string `json:"stake"`
	JoinDeadline int64  `json:"joinDeadline"`
}

type roomTransitionParams struct {
	RoomID uint64 `json:"roomId"`
	Caller string `json:"caller"`
}

type roomQueryParams struct {
	RoomID uint64 `json:"roomId"`
}

type roomResolveParams struct {
	RoomID    uint64 `json:"roomId"`
	Winner    string `json:"winner"`
	Pot       string `json:"pot"`
	Fee       string `json:"fee"`
	Payout    string `json:"payout"`
	Nonce     uint64 `json:"nonce"`
	Signature string `json:"signature"`
}

type roomJSON struct {
	ID           uint64 `json:"id"`
	PlayerA      string `json:"playerA"`
	PlayerB      string `json:"playerB"`
	Stake        string `json:"stake"`
	JoinDeadline int64  `json:"joinDeadline"`
	FeeRateBps   uint32 `json:"feeRateBps"`
	Status       string `json:"status"`
	PaidA        bool   `json:"paidA"`
	PaidB        bool   `json:"paidB"`
	RefundedA    bool   `json:"refundedA"`
	RefundedB    bool   `json:"refundedB"`
	Winner       string `json:"winner,omitempty"`
	CreatedAt    int64  `json:"createdAt"`
	StartedAt    int64  `json:"startedAt,omitempty"`
	ResolvedAt   int64  `json:"resolvedAt,omitempty"`
	Deposited    string `json:"deposited"`
	ReservedFee  string `json:"reservedFee"`
	PaidOut      string `json:"paidOut"`
}

type roomCreateResult struct {
	RoomID uint64 `json:"roomId"`
}

type roomResolveResult struct {
	Winner string `json:"winner"`
	Payout string `json:"payout"`
}

type roomVerifyResult struct {
	Signer        string `json:"signer"`
	Valid         bool   `json:"valid"`
	NonceConsumed bool   `json:"nonceConsumed"`
}

func (s *Server) handleRoomCreate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeRoomInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params roomCreateParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRoomInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRoomInvalidParams, "invalid_params", err.Error())
		return
	}
	playerA, err := parseBech32Address(params.PlayerA, "playerA")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRoomInvalidParams, "invalid_params", err.Error())
		return
	}
	playerB, err := parseBech32Address(params.PlayerB, "playerB")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRoomInvalidParams, "invalid_params", err.Error())
		return
	}
	stake, err := parsePositiveBigInt(params.Stake, "stake")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRoomInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := s.node.RoomCreate(caller, playerA, playerB, stake, params.JoinDeadline)
	if err != nil {
		s.writeRoomError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, roomCreateResult{RoomID: id})
}

func (s *Server) handleRoomJoin(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.roomTransition(w, req, s.node.RoomJoin)
}

func (s *Server) handleRoomRefund(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.roomTransition(w, req, s.node.RoomRefund)
}

// roomTransition covers the mutations that only need a room id and the acting
// identity.
func (s *Server) roomTransition(w http.ResponseWriter, req *RPCRequest, fn func(roomID uint64, caller [20]byte) error) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeRoomInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params roomTransitionParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRoomInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRoomInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := fn(params.RoomID, caller); err != nil {
		s.writeRoomError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleRoomStart(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeRoomInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params roomQueryParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRoomInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.RoomStart(params.RoomID); err != nil {
		s.writeRoomError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleRoomResolve(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	params, sig, ok := s.decodeResolveParams(w, req)
	if !ok {
		return
	}
	payout, err := s.node.RoomResolve(params, sig)
	if err != nil {
		s.writeRoomError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, roomResolveResult{
		Winner: formatAddress(params.Winner),
		Payout: formatAmount(payout),
	})
}

func (s *Server) handleRoomVerifyResolve(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	params, sig, ok := s.decodeResolveParams(w, req)
	if !ok {
		return
	}
	result, err := s.node.RoomVerifyResolve(params, sig)
	if err != nil {
		s.writeRoomError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, roomVerifyResult{
		Signer:        formatAddress(result.Signer),
		Valid:         result.Valid,
		NonceConsumed: result.NonceConsumed,
	})
}

// decodeResolveParams parses the shared settlement tuple for room_resolve and
// room_verifyResolve. It reports false after writing the error response.
func (s *Server) decodeResolveParams(w http.ResponseWriter, req *RPCRequest) (room.ResolveParams, []byte, bool) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeRoomInvalidParams, "invalid_params", "exactly one parameter object expected")
		return room.ResolveParams{}, nil, false
	}
	var params roomResolveParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRoomInvalidParams, "invalid_params", err.Error())
		return room.ResolveParams{}, nil, false
	}
	winner, err := parseBech32Address(params.Winner, "winner")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRoomInvalidParams, "invalid_params", err.Error())
		return room.ResolveParams{}, nil, false
	}
	pot, err := parsePositiveBigInt(params.Pot, "pot")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRoomInvalidParams, "invalid_params", err.Error())
		return room.ResolveParams{}, nil, false
	}
	fee, err := parseNonNegativeBigInt(params.Fee, "fee")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRoomInvalidParams, "invalid_params", err.Error())
		return room.ResolveParams{}, nil, false
	}
	payout, err := parsePositiveBigInt(params.Payout, "payout")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRoomInvalidParams, "invalid_params", err.Error())
		return room.ResolveParams{}, nil, false
	}
	sig, err := parseHexSignature(params.Signature)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRoomInvalidParams, "invalid_params", err.Error())
		return room.ResolveParams{}, nil, false
	}
	return room.ResolveParams{
		RoomID: params.RoomID,
		Winner: winner,
		Pot:    pot,
		Fee:    fee,
		Payout: payout,
		Nonce:  params.Nonce,
	}, sig, true
}

func (s *Server) handleRoomGet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeRoomInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params roomQueryParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRoomInvalidParams, "invalid_params", err.Error())
		return
	}
	record, err := s.node.RoomGet(params.RoomID)
	if err != nil {
		s.writeRoomError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatRoomJSON(record))
}

func parseHexSignature(value string) ([]byte, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, errors.New("signature is required")
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(trimmed, "0x"))
	if err != nil {
		return nil, errors.New("signature must be hex encoded")
	}
	if len(sig) != 65 {
		return nil, fmt.Errorf("signature must be 65 bytes, got %d", len(sig))
	}
	return sig, nil
}

func formatRoomJSON(r *room.Room) roomJSON {
	out := roomJSON{
		ID:           r.ID,
		PlayerA:      formatAddress(r.Players[0]),
		PlayerB:      formatAddress(r.Players[1]),
		Stake:        formatAmount(r.Stake),
		JoinDeadline: r.JoinDeadline,
		FeeRateBps:   r.FeeRateBps,
		Status:       r.Status.String(),
		PaidA:        r.HasPaid(0),
		PaidB:        r.HasPaid(1),
		RefundedA:    r.HasRefunded(0),
		RefundedB:    r.HasRefunded(1),
		CreatedAt:    r.CreatedAt,
		StartedAt:    r.StartedAt,
		ResolvedAt:   r.ResolvedAt,
		Deposited:    formatAmount(r.Funds.Deposited),
		ReservedFee:  formatAmount(r.Funds.ReservedFee),
		PaidOut:      formatAmount(r.Funds.PaidOut),
	}
	if r.Winner != ([20]byte{}) {
		out.Winner = formatAddress(r.Winner)
	}
	return out
}

func (s *Server) writeRoomError(w http.ResponseWriter, id int, err error) {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		writeError(w, http.StatusNotFound, id, codeRoomNotFound, "not_found", err.Error())
	case errors.Is(err, room.ErrBadSignature),
		errors.Is(err, room.ErrNotParticipant),
		errors.Is(err, registry.ErrNotOperator),
		errors.Is(err, registry.ErrNotOwner):
		writeError(w, http.StatusForbidden, id, codeRoomForbidden, "forbidden", err.Error())
	case errors.Is(err, room.ErrWrongStatus),
		errors.Is(err, room.ErrJoinDeadline),
		errors.Is(err, room.ErrDeadlineNotReached),
		errors.Is(err, room.ErrAlreadyPaid),
		errors.Is(err, room.ErrNotPaid),
		errors.Is(err, room.ErrNothingToRefund),
		errors.Is(err, room.ErrAlreadyRefunded),
		errors.Is(err, room.ErrNonceConsumed),
		errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrInsufficientFunds):
		writeError(w, http.StatusConflict, id, codeRoomConflict, "conflict", err.Error())
	case errors.Is(err, room.ErrInvalidStake),
		errors.Is(err, room.ErrDeadlineNotFuture),
		errors.Is(err, room.ErrZeroAddress),
		errors.Is(err, room.ErrSamePlayer),
		errors.Is(err, room.ErrInvalidWinner),
		errors.Is(err, ledger.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, id, codeRoomInvalidParams, "invalid_params", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeRoomInternal, "internal_error", err.Error())
	}
}
