package main

import (
	"fmt"
	"os"
	"strings"
)

const (
	operatorPassEnv = "MSL_OPERATOR_PASS"
	rpcURLEnv       = "MSL_RPC_URL"
	rpcTokenEnv     = "MSL_RPC_TOKEN"

	defaultKeystore = "operator.keystore"
	defaultJournal  = "resolve-nonces.db"
)

func main() {
	defaultRPC := strings.TrimSpace(os.Getenv(rpcURLEnv))
	if defaultRPC == "" {
		defaultRPC = "http://127.0.0.1:8080"
	}
	defaultAuth := strings.TrimSpace(os.Getenv(rpcTokenEnv))

	root := newFlagSet("slitherctl", os.Stderr)
	rpcURL := root.String("rpc", defaultRPC, "JSON-RPC endpoint")
	authToken := root.String("auth", defaultAuth, "Bearer token for mutating RPC calls")
	if err := root.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}

	args := root.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage())
		os.Exit(1)
	}

	ctl := &controller{rpcURL: *rpcURL, auth: *authToken}

	code := 0
	switch args[0] {
	case "keygen":
		code = ctl.runKeygen(args[1:], os.Stdout, os.Stderr)
	case "sign-resolve":
		code = ctl.runSignResolve(args[1:], os.Stdout, os.Stderr)
	case "verify-resolve":
		code = ctl.runVerifyResolve(args[1:], os.Stdout, os.Stderr)
	case "admin":
		code = ctl.runAdmin(args[1:], os.Stdout, os.Stderr)
	case "fees":
		code = ctl.runFees(args[1:], os.Stdout, os.Stderr)
	case "info":
		code = ctl.runInfo(args[1:], os.Stdout, os.Stderr)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		fmt.Fprintln(os.Stderr, usage())
		code = 1
	}
	if code != 0 {
		os.Exit(code)
	}
}

// controller carries the RPC connection settings shared by every subcommand.
type controller struct {
	rpcURL string
	auth   string
}

func usage() string {
	return strings.TrimSpace(`Usage:
  slitherctl [--rpc URL] [--auth TOKEN] <command> [flags]

Commands:
  keygen          Generate an operator key into an encrypted keystore
  sign-resolve    Sign a room settlement tuple, journalling the nonce
  verify-resolve  Ask the node to check a settlement tuple and signature
  admin           Inspect or rotate the registry (info, set-owner,
                  set-operator, set-treasury, set-fee)
  fees            Inspect or withdraw accrued settlement fees
  info            Show node identity and event cursor
`)
}
