package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/BenjDW/maitre-slither/cmd/internal/passphrase"
	"github.com/BenjDW/maitre-slither/config"
	"github.com/BenjDW/maitre-slither/crypto"
	"github.com/BenjDW/maitre-slither/native/room"
)

type resolveTuple struct {
	RoomID    uint64 `json:"roomId"`
	Winner    string `json:"winner"`
	Pot       string `json:"pot"`
	Fee       string `json:"fee"`
	Payout    string `json:"payout"`
	Nonce     uint64 `json:"nonce"`
	Signature string `json:"signature"`
	Digest    string `json:"digest"`
}

func (c *controller) runSignResolve(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("slitherctl sign-resolve", stderr)
	keystorePath := fs.String("keystore", defaultKeystore, "operator keystore to sign with")
	passEnv := fs.String("pass-env", operatorPassEnv, "environment variable holding the keystore passphrase")
	journalPath := fs.String("journal", defaultJournal, "nonce journal database")
	roomID := fs.Uint64("room", 0, "room identifier")
	winnerStr := fs.String("winner", "", "winner account (bech32)")
	potStr := fs.String("pot", "", "total pot in base units")
	feeStr := fs.String("fee", "", "protocol fee in base units")
	payoutStr := fs.String("payout", "", "winner payout in base units")
	nonceStr := fs.String("nonce", "", "explicit nonce (defaults to the journal's next nonce)")
	chainID := fs.Uint64("chain-id", 0, "settlement chain id (fetched from the node when omitted)")
	vaultStr := fs.String("vault", "", "vault account the signature is bound to (fetched from the node when omitted)")
	submit := fs.Bool("submit", false, "submit the signed tuple via room_resolve")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *roomID == 0 {
		return printError(stderr, "--room is required")
	}
	winner, err := decodeAccountFlag("--winner", *winnerStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	pot, err := parseAmountFlag("--pot", *potStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	fee, err := parseAmountFlag("--fee", *feeStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	payout, err := parseAmountFlag("--payout", *payoutStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if new(big.Int).Add(fee, payout).Cmp(pot) > 0 {
		return printError(stderr, "fee plus payout exceeds the pot")
	}
	var explicitNonce *uint64
	if strings.TrimSpace(*nonceStr) != "" {
		parsed, err := strconv.ParseUint(strings.TrimSpace(*nonceStr), 10, 64)
		if err != nil {
			return printError(stderr, "invalid --nonce")
		}
		explicitNonce = &parsed
	}

	resolvedChainID, vault, code := c.resolveDomainInputs(*chainID, *vaultStr, stderr)
	if code != 0 {
		return code
	}

	pass, err := passphrase.NewSource(*passEnv).Get()
	if err != nil {
		return printError(stderr, err.Error())
	}
	key, err := crypto.LoadFromKeystore(*keystorePath, pass)
	if err != nil {
		return printError(stderr, fmt.Sprintf("failed to open keystore: %v", err))
	}

	journal, err := OpenJournal(*journalPath)
	if err != nil {
		return printError(stderr, err.Error())
	}
	defer journal.Close()

	domain := room.SettlementDomain(resolvedChainID, vault)
	entry, err := journal.Issue(*roomID, explicitNonce, func(nonce uint64) (issuedNonce, error) {
		params := room.ResolveParams{
			RoomID: *roomID,
			Winner: winner,
			Pot:    pot,
			Fee:    fee,
			Payout: payout,
			Nonce:  nonce,
		}
		digest, err := room.ResolveDigest(domain, params)
		if err != nil {
			return issuedNonce{}, err
		}
		sig, err := ethcrypto.Sign(digest[:], key.PrivateKey)
		if err != nil {
			return issuedNonce{}, fmt.Errorf("sign resolve digest: %w", err)
		}
		return issuedNonce{
			Winner:    crypto.MustNewAddress(crypto.MSLPrefix, winner[:]).String(),
			Digest:    "0x" + hex.EncodeToString(digest[:]),
			Signature: "0x" + hex.EncodeToString(sig),
		}, nil
	})
	if err != nil {
		return printError(stderr, err.Error())
	}

	tuple := resolveTuple{
		RoomID:    *roomID,
		Winner:    entry.Winner,
		Pot:       pot.String(),
		Fee:       fee.String(),
		Payout:    payout.String(),
		Nonce:     entry.Nonce,
		Signature: entry.Signature,
		Digest:    entry.Digest,
	}
	if err := printJSON(stdout, tuple); err != nil {
		return printError(stderr, err.Error())
	}

	if !*submit {
		return 0
	}
	result, rpcErr, err := c.call("room_resolve", map[string]interface{}{
		"roomId":    tuple.RoomID,
		"winner":    tuple.Winner,
		"pot":       tuple.Pot,
		"fee":       tuple.Fee,
		"payout":    tuple.Payout,
		"nonce":     tuple.Nonce,
		"signature": tuple.Signature,
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

func (c *controller) runVerifyResolve(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("slitherctl verify-resolve", stderr)
	roomID := fs.Uint64("room", 0, "room identifier")
	winnerStr := fs.String("winner", "", "winner account (bech32)")
	potStr := fs.String("pot", "", "total pot in base units")
	feeStr := fs.String("fee", "", "protocol fee in base units")
	payoutStr := fs.String("payout", "", "winner payout in base units")
	nonce := fs.Uint64("nonce", 0, "nonce the signature covers")
	signature := fs.String("signature", "", "hex-encoded 65-byte signature")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *roomID == 0 {
		return printError(stderr, "--room is required")
	}
	if _, err := decodeAccountFlag("--winner", *winnerStr); err != nil {
		return printError(stderr, err.Error())
	}
	pot, err := parseAmountFlag("--pot", *potStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	fee, err := parseAmountFlag("--fee", *feeStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	payout, err := parseAmountFlag("--payout", *payoutStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if strings.TrimSpace(*signature) == "" {
		return printError(stderr, "--signature is required")
	}

	result, rpcErr, err := c.call("room_verifyResolve", map[string]interface{}{
		"roomId":    *roomID,
		"winner":    strings.TrimSpace(*winnerStr),
		"pot":       pot.String(),
		"fee":       fee.String(),
		"payout":    payout.String(),
		"nonce":     *nonce,
		"signature": strings.TrimSpace(*signature),
	}, false)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

// resolveDomainInputs fills in the chain id and vault account the resolve
// signature binds to, querying the node for whichever the caller did not
// supply.
func (c *controller) resolveDomainInputs(chainID uint64, vaultStr string, stderr io.Writer) (uint64, [20]byte, int) {
	var vault [20]byte
	needInfo := chainID == 0 || strings.TrimSpace(vaultStr) == ""
	if needInfo {
		result, rpcErr, err := c.call("msl_info", nil, false)
		if err != nil {
			return 0, vault, handleRPCCallError(stderr, err)
		}
		if rpcErr != nil {
			return 0, vault, handleRPCError(stderr, rpcErr)
		}
		var info struct {
			ChainID      uint64 `json:"chainId"`
			VaultAddress string `json:"vaultAddress"`
		}
		if err := json.Unmarshal(result, &info); err != nil {
			return 0, vault, printError(stderr, fmt.Sprintf("failed to decode msl_info result: %v", err))
		}
		if chainID == 0 {
			chainID = info.ChainID
		}
		if strings.TrimSpace(vaultStr) == "" {
			vaultStr = info.VaultAddress
		}
	}
	decoded, err := decodeAccountFlag("--vault", vaultStr)
	if err != nil {
		return 0, vault, printError(stderr, err.Error())
	}
	if chainID == 0 {
		chainID = config.DefaultChainID
	}
	return chainID, decoded, 0
}

func decodeAccountFlag(flagName, value string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return out, fmt.Errorf("%s is required", flagName)
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return out, fmt.Errorf("invalid %s: %v", flagName, err)
	}
	if addr.Prefix() != crypto.MSLPrefix {
		return out, fmt.Errorf("invalid %s: expected %q prefix", flagName, crypto.MSLPrefix)
	}
	copy(out[:], addr.Bytes())
	return out, nil
}
