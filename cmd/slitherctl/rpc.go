package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// rpcCall is swapped out by tests so command plumbing can be exercised without
// a node.
var rpcCall = callRPC

func (c *controller) call(method string, params interface{}, requireAuth bool) (json.RawMessage, *rpcError, error) {
	return rpcCall(c.rpcURL, c.auth, method, params, requireAuth)
}

func callRPC(rpcURL, auth, method string, params interface{}, requireAuth bool) (json.RawMessage, *rpcError, error) {
	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      int(time.Now().UnixNano()),
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	} else {
		payload["params"] = []interface{}{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequest(http.MethodPost, rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if requireAuth {
		if strings.TrimSpace(auth) == "" {
			return nil, nil, fmt.Errorf("privileged RPC call requires %s or --auth", rpcTokenEnv)
		}
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(auth))
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, nil, fmt.Errorf("failed to decode RPC response: %w", err)
	}
	return rpcResp.Result, rpcResp.Error, nil
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func printError(w io.Writer, msg string) int {
	fmt.Fprintf(w, "Error: %s\n", msg)
	return 1
}

func handleRPCError(w io.Writer, err *rpcError) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(w, "RPC error %d: %s\n", err.Code, err.Message)
	if len(err.Data) > 0 && string(err.Data) != "null" {
		fmt.Fprintf(w, "Details: %s\n", strings.TrimSpace(string(err.Data)))
	}
	return 1
}

func handleRPCCallError(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(w, "RPC call failed: %v\n", err)
	return 1
}

func writeRPCResult(w io.Writer, result json.RawMessage) {
	if len(result) == 0 {
		fmt.Fprintln(w, "null")
		return
	}
	if _, err := w.Write(result); err == nil {
		if result[len(result)-1] != '\n' {
			fmt.Fprintln(w)
		}
	}
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(data))
	return nil
}
