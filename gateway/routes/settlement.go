package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/BenjDW/maitre-slither/native/pool"
)

const settlementRequestLimit = 1 << 20 // 1 MiB

// settlementRoutes is the REST face of the node's JSON-RPC settlement
// surface. The game backend reports deaths, cash-outs, revivals and resolved
// rooms here; the bridge translates each call and signs it with the node RPC
// token.
type settlementRoutes struct {
	target  *url.URL
	token   string
	client  *http.Client
	timeout time.Duration
	nextID  atomic.Int64
}

type settlementRPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int64         `json:"id"`
}

type settlementRPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type settlementRPCResponse struct {
	JSONRPC string              `json:"jsonrpc"`
	Result  json.RawMessage     `json:"result"`
	Error   *settlementRPCError `json:"error"`
	status  int
}

type settlePoolRequest struct {
	Caller      string `json:"caller"`
	Participant string `json:"participant"`
	Value       string `json:"value"`
	EventID     uint64 `json:"eventId"`
	Outcome     string `json:"outcome"`
}

type revivePoolRequest struct {
	Participant string `json:"participant"`
}

type resolveRoomRequest struct {
	Winner    string `json:"winner"`
	Pot       string `json:"pot"`
	Fee       string `json:"fee"`
	Payout    string `json:"payout"`
	Nonce     uint64 `json:"nonce"`
	Signature string `json:"signature"`
}

func newSettlementRoutes(target *url.URL, token string) (*settlementRoutes, error) {
	if target == nil {
		return nil, fmt.Errorf("nil settlement target")
	}
	cloned := *target
	if strings.TrimSpace(cloned.Scheme) == "" {
		return nil, fmt.Errorf("settlement target scheme required")
	}
	if strings.TrimSpace(cloned.Host) == "" {
		return nil, fmt.Errorf("settlement target host required")
	}
	if strings.TrimSpace(cloned.Path) == "" {
		cloned.Path = "/"
	}
	return &settlementRoutes{
		target:  &cloned,
		token:   strings.TrimSpace(token),
		client:  &http.Client{Timeout: 15 * time.Second},
		timeout: 10 * time.Second,
	}, nil
}

func (sr *settlementRoutes) mount(r chi.Router) {
	r.Get("/pools/{poolID}", sr.getPool)
	r.Post("/pools/{poolID}/settle", sr.settlePool)
	r.Post("/pools/{poolID}/revive", sr.revivePool)
	r.Get("/rooms/{roomID}", sr.getRoom)
	r.Post("/rooms/{roomID}/resolve", sr.resolveRoom)
}

func (sr *settlementRoutes) getPool(w http.ResponseWriter, r *http.Request) {
	poolID, err := parsePathID(r, "poolID")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	ctx, cancel := sr.context(r.Context())
	defer cancel()

	resp, err := sr.callRPC(ctx, "pool_get", map[string]interface{}{"poolId": poolID}, r)
	if err != nil {
		writeInternalError(w, fmt.Errorf("pool_get failed: %w", err))
		return
	}
	sr.writeRPCResult(w, resp)
}

func (sr *settlementRoutes) settlePool(w http.ResponseWriter, r *http.Request) {
	poolID, err := parsePathID(r, "poolID")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req settlePoolRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	var method string
	switch req.Outcome {
	case pool.OutcomeDeath:
		method = "pool_settleDeath"
	case pool.OutcomeAlive:
		method = "pool_settleAlive"
	default:
		writeBadRequest(w, fmt.Errorf("outcome must be %q or %q", pool.OutcomeDeath, pool.OutcomeAlive))
		return
	}

	ctx, cancel := sr.context(r.Context())
	defer cancel()

	resp, err := sr.callRPC(ctx, method, map[string]interface{}{
		"poolId":      poolID,
		"caller":      req.Caller,
		"participant": req.Participant,
		"value":       req.Value,
		"eventId":     req.EventID,
	}, r)
	if err != nil {
		writeInternalError(w, fmt.Errorf("%s failed: %w", method, err))
		return
	}
	sr.writeRPCResult(w, resp)
}

func (sr *settlementRoutes) revivePool(w http.ResponseWriter, r *http.Request) {
	poolID, err := parsePathID(r, "poolID")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req revivePoolRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	ctx, cancel := sr.context(r.Context())
	defer cancel()

	resp, err := sr.callRPC(ctx, "pool_revive", map[string]interface{}{
		"poolId":      poolID,
		"participant": req.Participant,
	}, r)
	if err != nil {
		writeInternalError(w, fmt.Errorf("pool_revive failed: %w", err))
		return
	}
	sr.writeRPCResult(w, resp)
}

func (sr *settlementRoutes) getRoom(w http.ResponseWriter, r *http.Request) {
	roomID, err := parsePathID(r, "roomID")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	ctx, cancel := sr.context(r.Context())
	defer cancel()

	resp, err := sr.callRPC(ctx, "room_get", map[string]interface{}{"roomId": roomID}, r)
	if err != nil {
		writeInternalError(w, fmt.Errorf("room_get failed: %w", err))
		return
	}
	sr.writeRPCResult(w, resp)
}

func (sr *settlementRoutes) resolveRoom(w http.ResponseWriter, r *http.Request) {
	roomID, err := parsePathID(r, "roomID")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req resolveRoomRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if strings.TrimSpace(req.Signature) == "" {
		writeBadRequest(w, errors.New("signature is required"))
		return
	}

	ctx, cancel := sr.context(r.Context())
	defer cancel()

	resp, err := sr.callRPC(ctx, "room_resolve", map[string]interface{}{
		"roomId":    roomID,
		"winner":    req.Winner,
		"pot":       req.Pot,
		"fee":       req.Fee,
		"payout":    req.Payout,
		"nonce":     req.Nonce,
		"signature": req.Signature,
	}, r)
	if err != nil {
		writeInternalError(w, fmt.Errorf("room_resolve failed: %w", err))
		return
	}
	sr.writeRPCResult(w, resp)
}

func (sr *settlementRoutes) callRPC(ctx context.Context, method string, params interface{}, r *http.Request) (*settlementRPCResponse, error) {
	id := sr.nextID.Add(1)
	payload, err := json.Marshal(settlementRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  []interface{}{params},
		ID:      id,
	})
	if err != nil {
		return nil, fmt.Errorf("encode rpc request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sr.target.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if sr.token != "" {
		req.Header.Set("Authorization", "Bearer "+sr.token)
	}
	forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if remote := clientIP(r.RemoteAddr); remote != "" {
		if forwarded != "" {
			forwarded = fmt.Sprintf("%s, %s", forwarded, remote)
		} else {
			forwarded = remote
		}
	}
	if forwarded != "" {
		req.Header.Set("X-Forwarded-For", forwarded)
	}

	resp, err := sr.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("perform rpc request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read rpc response: %w", err)
	}
	var rpcResp settlementRPCResponse
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return nil, fmt.Errorf("decode rpc response: %w", err)
	}
	rpcResp.status = resp.StatusCode
	return &rpcResp, nil
}

// writeRPCResult relays the node's answer. Node-side taxonomy statuses (404,
// 403, 409, 400) pass through so REST callers see the same classification as
// RPC callers.
func (sr *settlementRoutes) writeRPCResult(w http.ResponseWriter, resp *settlementRPCResponse) {
	if resp.Error != nil {
		status := resp.status
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		writeJSONError(w, status, errors.New(resp.Error.Message))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if len(resp.Result) == 0 {
		_, _ = w.Write([]byte("null"))
		return
	}
	_, _ = w.Write(resp.Result)
}

func (sr *settlementRoutes) context(parent context.Context) (context.Context, context.CancelFunc) {
	timeout := sr.timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(parent, timeout)
}

func parsePathID(r *http.Request, name string) (uint64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an unsigned integer", name)
	}
	return id, nil
}

func decodeJSONBody(r *http.Request, out interface{}) error {
	if r.Body == nil {
		return errors.New("missing request body")
	}
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, settlementRequestLimit))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return errors.New("request body is empty")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSONError(w, http.StatusBadRequest, err)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeJSONError(w, http.StatusInternalServerError, err)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = http.StatusText(status)
	}
	payload, marshalErr := json.Marshal(map[string]string{"error": message})
	if marshalErr != nil {
		replacer := strings.NewReplacer(
			"\\", "\\\\",
			"\"", "\\\"",
			"\n", "\\n",
			"\r", "\\r",
			"\t", "\\t",
		)
		payload = []byte(fmt.Sprintf("{\"error\":\"%s\"}", replacer.Replace(message)))
	}
	_, _ = w.Write(payload)
}

func clientIP(addr string) string {
	host := strings.TrimSpace(addr)
	if host == "" {
		return ""
	}
	if parsedHost, _, err := net.SplitHostPort(host); err == nil {
		host = parsedHost
	}
	return strings.TrimSpace(host)
}
