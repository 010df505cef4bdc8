package main

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// normalizeAmount accepts plain integers, underscore separators, and
// scientific notation such as 5000e3 or 1.25e6, and returns the canonical
// base-unit decimal string.
func normalizeAmount(flagName, value string) (string, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(value), "_", "")
	if trimmed == "" {
		return "", fmt.Errorf("%s is required", flagName)
	}
	var exponent int
	base := trimmed
	if idx := strings.IndexAny(trimmed, "eE"); idx != -1 {
		base = trimmed[:idx]
		expPart := strings.TrimSpace(trimmed[idx+1:])
		if expPart == "" {
			return "", fmt.Errorf("invalid scientific notation in %s", flagName)
		}
		expValue, err := strconv.ParseInt(expPart, 10, 32)
		if err != nil {
			return "", fmt.Errorf("invalid scientific notation in %s", flagName)
		}
		exponent = int(expValue)
	}
	base = strings.TrimSpace(strings.TrimPrefix(base, "+"))
	if strings.HasPrefix(base, "-") {
		return "", fmt.Errorf("%s must not be negative", flagName)
	}
	parts := strings.Split(base, ".")
	if len(parts) > 2 {
		return "", fmt.Errorf("invalid %s format", flagName)
	}
	integerPart := parts[0]
	fractionalPart := ""
	if len(parts) == 2 {
		fractionalPart = parts[1]
	}
	digits := integerPart + fractionalPart
	if digits == "" {
		return "", fmt.Errorf("invalid %s format", flagName)
	}
	if !isDigits(digits) {
		return "", fmt.Errorf("invalid %s format", flagName)
	}
	digits = strings.TrimLeft(digits, "0")
	fracLen := len(fractionalPart)
	if fracLen > 0 {
		for fracLen > 0 && len(digits) > 0 && digits[len(digits)-1] == '0' {
			digits = digits[:len(digits)-1]
			fracLen--
		}
	}
	totalExponent := exponent - fracLen
	if totalExponent < 0 {
		return "", fmt.Errorf("%s must be an integer amount of base units", flagName)
	}
	if digits == "" {
		return "0", nil
	}
	if totalExponent > 0 {
		digits += strings.Repeat("0", totalExponent)
	}
	return digits, nil
}

func parseAmountFlag(flagName, value string) (*big.Int, error) {
	normalized, err := normalizeAmount(flagName, value)
	if err != nil {
		return nil, err
	}
	amount, ok := new(big.Int).SetString(normalized, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s format", flagName)
	}
	return amount, nil
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
