package eip712

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// RecoveredSigner carries the identity recovered from a signature together
// with an explicit validity flag. Callers must check Valid before comparing
// the address; a failed recovery never yields a usable zero identity.
type RecoveredSigner struct {
	Address [20]byte
	Valid   bool
}

// Recover extracts the signer of a 65-byte [R ‖ S ‖ V] secp256k1 signature
// over the supplied digest.
func Recover(digest [32]byte, sig []byte) RecoveredSigner {
	if len(sig) != 65 {
		return RecoveredSigner{}
	}
	pubKey, err := ethcrypto.SigToPub(digest[:], sig)
	if err != nil {
		return RecoveredSigner{}
	}
	recovered := ethcrypto.PubkeyToAddress(*pubKey)
	var out RecoveredSigner
	copy(out.Address[:], recovered[:])
	out.Valid = true
	return out
}
