package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/BenjDW/maitre-slither/core"
	"github.com/BenjDW/maitre-slither/crypto"
	"github.com/BenjDW/maitre-slither/native/common"
	"github.com/BenjDW/maitre-slither/observability"
)

const jsonRPCVersion = "2.0"

// maxRequestBytes caps the accepted request body. Settlement calls are small;
// anything larger is hostile or broken.
const maxRequestBytes = 1 << 20

// mutationsPerMinute bounds how many mutating calls a single source may issue
// per minute. Reads are not throttled.
const mutationsPerMinute = 600

// maxTrackedSources caps the throttle table; stale epochs are pruned once the
// table fills up.
const maxTrackedSources = 1024

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeRateLimited    = -32020
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Server exposes the settlement node over JSON-RPC plus a websocket event
// stream. Mutating methods require the bearer token from MSL_RPC_TOKEN and are
// throttled per source; read methods are open.
type Server struct {
	node      *core.Node
	authToken string

	mu      sync.Mutex
	quota   common.Quota
	sources map[string]common.QuotaNow
	nowFunc func() time.Time
}

func NewServer(node *core.Node) *Server {
	return &Server{
		node:      node,
		authToken: strings.TrimSpace(os.Getenv("MSL_RPC_TOKEN")),
		quota:     common.Quota{MaxRequestsPerEpoch: mutationsPerMinute, EpochSeconds: 60},
		sources:   make(map[string]common.QuotaNow),
		nowFunc:   time.Now,
	}
}

func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.HandleFunc("/ws/events", s.handleEventsWS)
	fmt.Printf("Starting JSON-RPC server on %s\n", addr)
	return http.ListenAndServe(addr, mux)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required", nil)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, nil, codeInvalidRequest, "request body too large", nil)
			return
		}
		writeError(w, http.StatusBadRequest, nil, codeParseError, "unable to read request body", nil)
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "empty request body", nil)
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON-RPC request", nil)
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported JSON-RPC version", nil)
		return
	}
	method := strings.TrimSpace(req.Method)
	if method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method is required", nil)
		return
	}
	req.Method = method

	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.dispatch(rec, r, &req)
	observability.ModuleMetrics().Observe(moduleForMethod(method), method, rec.status, time.Since(start))
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	switch req.Method {
	case "pool_create":
		if !s.authorizeMutation(w, r, req) {
			return
		}
		s.handlePoolCreate(w, r, req)
	case "pool_join":
		if !s.authorizeMutation(w, r, req) {
			return
		}
		s.handlePoolJoin(w, r, req)
	case "pool_start":
		if !s.authorizeMutation(w, r, req) {
			return
		}
		s.handlePoolStart(w, r, req)
	case "pool_settleDeath":
		if !s.authorizeMutation(w, r, req) {
			return
		}
		s.handlePoolSettleDeath(w, r, req)
	case "pool_settleAlive":
		if !s.authorizeMutation(w, r, req) {
			return
		}
		s.handlePoolSettleAlive(w, r, req)
	case "pool_revive":
		if !s.authorizeMutation(w, r, req) {
			return
		}
		s.handlePoolRevive(w, r, req)
	case "pool_end":
		if !s.authorizeMutation(w, r, req) {
			return
		}
		s.handlePoolEnd(w, r, req)
	case "pool_get":
		s.handlePoolGet(w, r, req)
	case "pool_participant":
		s.handlePoolParticipant(w, r, req)
	case "pool_available":
		s.handlePoolAvailable(w, r, req)
	case "room_create":
		if !s.authorizeMutation(w, r, req) {
			return
		}
		s.handleRoomCreate(w, r, req)
	case "room_join":
		if !s.authorizeMutation(w, r, req) {
			return
		}
		s.handleRoomJoin(w, r, req)
	case "room_start":
		if !s.authorizeMutation(w, r, req) {
			return
		}
		s.handleRoomStart(w, r, req)
	case "room_resolve":
		if !s.authorizeMutation(w, r, req) {
			return
		}
		s.handleRoomResolve(w, r, req)
	case "room_refund":
		if !s.authorizeMutation(w, r, req) {
			return
		}
		s.handleRoomRefund(w, r, req)
	case "room_get":
		s.handleRoomGet(w, r, req)
	case "room_verifyResolve":
		s.handleRoomVerifyResolve(w, r, req)
	case "admin_info":
		s.handleAdminInfo(w, r, req)
	case "admin_setOwner":
		if !s.authorizeMutation(w, r, req) {
			return
		}
		s.handleAdminSetOwner(w, r, req)
	case "admin_setOperator":
		if !s.authorizeMutation(w, r, req) {
			return
		}
		s.handleAdminSetOperator(w, r, req)
	case "admin_setTreasury":
		if !s.authorizeMutation(w, r, req) {
			return
		}
		s.handleAdminSetTreasury(w, r, req)
	case "admin_setFeeRate":
		if !s.authorizeMutation(w, r, req) {
			return
		}
		s.handleAdminSetFeeRate(w, r, req)
	case "fees_accrued":
		s.handleFeesAccrued(w, r, req)
	case "fees_withdraw":
		if !s.authorizeMutation(w, r, req) {
			return
		}
		s.handleFeesWithdraw(w, r, req)
	case "token_mint":
		if !s.authorizeMutation(w, r, req) {
			return
		}
		s.handleTokenMint(w, r, req)
	case "token_transfer":
		if !s.authorizeMutation(w, r, req) {
			return
		}
		s.handleTokenTransfer(w, r, req)
	case "token_approve":
		if !s.authorizeMutation(w, r, req) {
			return
		}
		s.handleTokenApprove(w, r, req)
	case "token_transferFrom":
		if !s.authorizeMutation(w, r, req) {
			return
		}
		s.handleTokenTransferFrom(w, r, req)
	case "token_balanceOf":
		s.handleTokenBalanceOf(w, r, req)
	case "token_allowance":
		s.handleTokenAllowance(w, r, req)
	case "token_totalSupply":
		s.handleTokenTotalSupply(w, r, req)
	case "token_vault":
		s.handleTokenVault(w, r, req)
	case "msl_info":
		s.handleInfo(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %q not found", req.Method), nil)
	}
}

// authorizeMutation gates a mutating method: bearer token first, then the
// per-source throttle. It reports false after writing the error response.
func (s *Server) authorizeMutation(w http.ResponseWriter, r *http.Request, req *RPCRequest) bool {
	if err := s.requireAuth(r); err != nil {
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, err.Error(), nil)
		return false
	}
	source := clientSource(r)
	if !s.allowSource(source) {
		observability.ModuleMetrics().RecordThrottle(moduleForMethod(req.Method), "rate_limit")
		writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "mutation rate limit exceeded", source)
		return false
	}
	return true
}

// requireAuth validates the bearer token on mutating methods. The comparison
// is constant time so a probing client learns nothing from latency.
func (s *Server) requireAuth(r *http.Request) error {
	if s.authToken == "" {
		return errors.New("RPC authentication token not configured")
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return errors.New("missing bearer token")
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return errors.New("authorization header must use the Bearer scheme")
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return errors.New("missing bearer token")
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return errors.New("invalid bearer token")
	}
	return nil
}

func (s *Server) allowSource(source string) bool {
	if source == "" {
		source = "unknown"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	epoch := s.quota.Epoch(s.nowFunc().Unix())
	next, err := common.CheckQuota(s.quota, epoch, s.sources[source], 1)
	if err != nil {
		return false
	}
	if len(s.sources) >= maxTrackedSources {
		s.pruneSourcesLocked(epoch)
	}
	s.sources[source] = next
	return true
}

func (s *Server) pruneSourcesLocked(epoch uint64) {
	for source, usage := range s.sources {
		if usage.EpochID != epoch {
			delete(s.sources, source)
		}
	}
}

func clientSource(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

type infoResult struct {
	ChainID       uint64 `json:"chainId"`
	EventSequence uint64 `json:"eventSequence"`
	VaultAddress  string `json:"vaultAddress"`
	VaultBalance  string `json:"vaultBalance"`
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "no parameters expected")
		return
	}
	balance, err := s.node.VaultBalance()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "internal_error", err.Error())
		return
	}
	vault := s.node.VaultAddress()
	writeResult(w, req.ID, infoResult{
		ChainID:       s.node.ChainID(),
		EventSequence: s.node.EventsSequence(),
		VaultAddress:  formatAddress(vault),
		VaultBalance:  balance.String(),
	})
}

// statusRecorder captures the HTTP status a handler wrote so the request can
// be observed with its outcome.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func moduleForMethod(method string) string {
	if idx := strings.Index(method, "_"); idx > 0 {
		return method[:idx]
	}
	return method
}

func writeResult(w http.ResponseWriter, id int, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(&RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(&RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: &RPCError{Code: code, Message: message, Data: data}})
}

// --- shared parameter helpers ---

func parseBech32Address(value, field string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return out, fmt.Errorf("%s is required", field)
	}
	decoded, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return out, fmt.Errorf("%s must be a bech32 address", field)
	}
	if decoded.Prefix() != crypto.MSLPrefix {
		return out, fmt.Errorf("%s must use the %q prefix", field, crypto.MSLPrefix)
	}
	copy(out[:], decoded.Bytes())
	return out, nil
}

func parsePositiveBigInt(value, field string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("%s is required", field)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("%s must be a base-10 integer", field)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("%s must be positive", field)
	}
	return amount, nil
}

func parseNonNegativeBigInt(value, field string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("%s is required", field)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("%s must be a base-10 integer", field)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("%s must not be negative", field)
	}
	return amount, nil
}

func formatAddress(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.MSLPrefix, addr[:]).String()
}

func formatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}
