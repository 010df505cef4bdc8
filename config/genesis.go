package config

import (
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/BenjDW/maitre-slither/crypto"
)

// GenesisSpec is the parsed genesis payload the node applies on first start.
type GenesisSpec struct {
	Owner      [20]byte
	Operator   [20]byte
	Treasury   [20]byte
	FeeRateBps uint32
	Alloc      []GenesisAccount
}

// GenesisAccount is one pre-funded balance in the settlement token book.
type GenesisAccount struct {
	Account [20]byte
	Balance *big.Int
}

// Spec parses the configured genesis strings into runtime values. A blank
// owner stays zero so the caller can substitute the node keystore identity;
// blank operator and treasury entries inherit the resolved owner.
func (g GenesisConfig) Spec() (GenesisSpec, error) {
	spec := GenesisSpec{FeeRateBps: g.FeeRateBps}
	if spec.FeeRateBps == 0 {
		spec.FeeRateBps = DefaultFeeRateBps
	}

	owner, err := parseOptionalAddress(g.Owner)
	if err != nil {
		return GenesisSpec{}, fmt.Errorf("invalid genesis.Owner: %w", err)
	}
	spec.Owner = owner

	operator, err := parseOptionalAddress(g.Operator)
	if err != nil {
		return GenesisSpec{}, fmt.Errorf("invalid genesis.Operator: %w", err)
	}
	spec.Operator = operator

	treasury, err := parseOptionalAddress(g.Treasury)
	if err != nil {
		return GenesisSpec{}, fmt.Errorf("invalid genesis.Treasury: %w", err)
	}
	spec.Treasury = treasury

	accounts := make([]string, 0, len(g.Alloc))
	for raw := range g.Alloc {
		accounts = append(accounts, raw)
	}
	sort.Strings(accounts)
	for _, raw := range accounts {
		account, err := parseOptionalAddress(raw)
		if err != nil || account == ([20]byte{}) {
			return GenesisSpec{}, fmt.Errorf("invalid genesis.Alloc account %q: %w", raw, err)
		}
		balance, err := parseAmount(g.Alloc[raw])
		if err != nil {
			return GenesisSpec{}, fmt.Errorf("invalid genesis.Alloc balance for %q: %w", raw, err)
		}
		spec.Alloc = append(spec.Alloc, GenesisAccount{Account: account, Balance: balance})
	}

	return spec, nil
}

// WithDefaultOwner fills blank identities from the supplied fallback account,
// typically the address of the auto-provisioned owner keystore.
func (s GenesisSpec) WithDefaultOwner(fallback [20]byte) GenesisSpec {
	if s.Owner == ([20]byte{}) {
		s.Owner = fallback
	}
	if s.Operator == ([20]byte{}) {
		s.Operator = s.Owner
	}
	if s.Treasury == ([20]byte{}) {
		s.Treasury = s.Owner
	}
	return s
}

func parseOptionalAddress(raw string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return out, nil
	}
	decoded, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return out, err
	}
	if decoded.Prefix() != crypto.MSLPrefix {
		return out, fmt.Errorf("unexpected address prefix %q", decoded.Prefix())
	}
	copy(out[:], decoded.Bytes())
	return out, nil
}

// parseAmount reads a base-unit amount in plain decimal or mantissa-exponent
// form ("5000e18", "1.25e3"). Fractional digits must be covered by the
// exponent so the result is an exact integer.
func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(trimmed, "-") {
		return nil, fmt.Errorf("amount must not be negative")
	}

	mantissa := trimmed
	exponent := 0
	if idx := strings.IndexAny(trimmed, "eE"); idx >= 0 {
		mantissa = trimmed[:idx]
		parsed, err := strconv.Atoi(trimmed[idx+1:])
		if err != nil {
			return nil, fmt.Errorf("invalid exponent in %q", raw)
		}
		exponent = parsed
	}

	intPart := mantissa
	fracPart := ""
	if idx := strings.Index(mantissa, "."); idx >= 0 {
		intPart = mantissa[:idx]
		fracPart = mantissa[idx+1:]
	}
	digits := intPart + fracPart
	if digits == "" {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("invalid amount %q", raw)
		}
	}

	shift := exponent - len(fracPart)
	if shift < 0 {
		return nil, fmt.Errorf("amount %q is not an integer", raw)
	}
	value, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if shift > 0 {
		scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(shift)), nil)
		value.Mul(value, scale)
	}
	return value, nil
}
