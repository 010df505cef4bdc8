// Package eip712 implements the typed structured-data hashing atoms from
// EIP-712. Only the subset needed for operator-signed settlement messages is
// covered: static uint256/address fields, a single struct level, and the
// versioned domain separator. The encoding is byte-for-byte compatible with
// standard wallet tooling, which is what lets externally produced signatures
// verify against digests computed here.
package eip712

import (
	"errors"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// ErrWordOverflow marks integers that do not fit a 256-bit word.
var ErrWordOverflow = errors.New("eip712: integer exceeds 256 bits")

const domainType = "EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"

// Domain scopes signatures to one application deployment on one chain.
type Domain struct {
	Name              string
	Version           string
	ChainID           uint64
	VerifyingContract [20]byte
}

// Separator computes the EIP-712 domain separator hash.
func (d Domain) Separator() [32]byte {
	return StructHash(
		TypeHash(domainType),
		hashBytes([]byte(d.Name)),
		hashBytes([]byte(d.Version)),
		Uint64Word(d.ChainID),
		AddressWord(d.VerifyingContract),
	)
}

// TypeHash hashes a struct type signature, e.g.
// "Resolve(uint256 roomId,address winner,...)".
func TypeHash(signature string) [32]byte {
	return hashBytes([]byte(signature))
}

// Uint64Word encodes an unsigned integer as a big-endian 32-byte word.
func Uint64Word(v uint64) [32]byte {
	return uint256.NewInt(v).Bytes32()
}

// BigWord encodes a non-negative big integer as a 32-byte word. Negative
// values and values wider than 256 bits are rejected rather than truncated.
func BigWord(v *big.Int) ([32]byte, error) {
	if v == nil {
		return uint256.NewInt(0).Bytes32(), nil
	}
	if v.Sign() < 0 {
		return [32]byte{}, ErrWordOverflow
	}
	word, overflow := uint256.FromBig(v)
	if overflow {
		return [32]byte{}, ErrWordOverflow
	}
	return word.Bytes32(), nil
}

// AddressWord left-pads a 20-byte account to a 32-byte word.
func AddressWord(addr [20]byte) [32]byte {
	var out [32]byte
	copy(out[12:], addr[:])
	return out
}

// StructHash hashes the type hash followed by the encoded field words.
func StructHash(typeHash [32]byte, fields ...[32]byte) [32]byte {
	buf := make([]byte, 0, 32*(len(fields)+1))
	buf = append(buf, typeHash[:]...)
	for _, field := range fields {
		buf = append(buf, field[:]...)
	}
	return hashBytes(buf)
}

// Digest computes the final signable digest: keccak256(0x19 0x01 ‖ domain
// separator ‖ struct hash).
func Digest(domainSeparator, structHash [32]byte) [32]byte {
	buf := make([]byte, 0, 2+32+32)
	buf = append(buf, 0x19, 0x01)
	buf = append(buf, domainSeparator[:]...)
	buf = append(buf, structHash[:]...)
	return hashBytes(buf)
}

func hashBytes(data []byte) [32]byte {
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(data))
	return out
}
