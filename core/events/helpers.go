package events

import (
	"encoding/hex"
	"math/big"
	"strconv"
)

// HexAddress renders a raw 20-byte account as a 0x-prefixed hex string for
// event attributes.
func HexAddress(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

// BigString renders an amount in base units. Nil amounts render as "0" so
// attribute maps never carry an empty value.
func BigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// Uint64String renders an identifier or counter attribute.
func Uint64String(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// Uint32String renders a small numeric attribute such as a fee rate.
func Uint32String(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}
