package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/BenjDW/maitre-slither/config"
)

func (c *controller) runAdmin(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		return printError(stderr, "admin requires a subcommand: info, set-owner, set-operator, set-treasury, set-fee")
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "info":
		result, rpcErr, err := c.call("admin_info", nil, false)
		if err != nil {
			return handleRPCCallError(stderr, err)
		}
		if rpcErr != nil {
			return handleRPCError(stderr, rpcErr)
		}
		writeRPCResult(stdout, result)
		return 0
	case "set-owner":
		return c.runAdminSetAccount("admin_setOwner", "slitherctl admin set-owner", rest, stdout, stderr)
	case "set-operator":
		return c.runAdminSetAccount("admin_setOperator", "slitherctl admin set-operator", rest, stdout, stderr)
	case "set-treasury":
		return c.runAdminSetAccount("admin_setTreasury", "slitherctl admin set-treasury", rest, stdout, stderr)
	case "set-fee":
		return c.runAdminSetFee(rest, stdout, stderr)
	default:
		return printError(stderr, fmt.Sprintf("unknown admin subcommand %q", sub))
	}
}

func (c *controller) runAdminSetAccount(method, name string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(name, stderr)
	caller := fs.String("caller", "", "owner account issuing the change (bech32)")
	address := fs.String("address", "", "account to install (bech32)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if _, err := decodeAccountFlag("--caller", *caller); err != nil {
		return printError(stderr, err.Error())
	}
	if _, err := decodeAccountFlag("--address", *address); err != nil {
		return printError(stderr, err.Error())
	}

	result, rpcErr, err := c.call(method, map[string]interface{}{
		"caller":  strings.TrimSpace(*caller),
		"address": strings.TrimSpace(*address),
	}, true)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func (c *controller) runAdminSetFee(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("slitherctl admin set-fee", stderr)
	caller := fs.String("caller", "", "owner account issuing the change (bech32)")
	bps := fs.Uint("bps", 0, "fee rate in basis points")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if _, err := decodeAccountFlag("--caller", *caller); err != nil {
		return printError(stderr, err.Error())
	}
	if *bps > uint(config.MaxFeeRateBps) {
		return printError(stderr, fmt.Sprintf("--bps must not exceed %d", config.MaxFeeRateBps))
	}

	result, rpcErr, err := c.call("admin_setFeeRate", map[string]interface{}{
		"caller":     strings.TrimSpace(*caller),
		"feeRateBps": *bps,
	}, true)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func (c *controller) runFees(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		return printError(stderr, "fees requires a subcommand: accrued, withdraw")
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "accrued":
		result, rpcErr, err := c.call("fees_accrued", nil, false)
		if err != nil {
			return handleRPCCallError(stderr, err)
		}
		if rpcErr != nil {
			return handleRPCError(stderr, rpcErr)
		}
		writeRPCResult(stdout, result)
		return 0
	case "withdraw":
		return c.runFeesWithdraw(rest, stdout, stderr)
	default:
		return printError(stderr, fmt.Sprintf("unknown fees subcommand %q", sub))
	}
}

func (c *controller) runFeesWithdraw(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("slitherctl fees withdraw", stderr)
	caller := fs.String("caller", "", "owner account issuing the withdrawal (bech32)")
	amount := fs.String("amount", "", "amount to withdraw in base units")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if _, err := decodeAccountFlag("--caller", *caller); err != nil {
		return printError(stderr, err.Error())
	}
	parsed, err := parseAmountFlag("--amount", *amount)
	if err != nil {
		return printError(stderr, err.Error())
	}

	result, rpcErr, err := c.call("fees_withdraw", map[string]interface{}{
		"caller": strings.TrimSpace(*caller),
		"amount": parsed.String(),
	}, true)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func (c *controller) runInfo(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("slitherctl info", stderr)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	result, rpcErr, err := c.call("msl_info", nil, false)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}
