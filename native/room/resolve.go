package room

import (
	"math/big"

	"github.com/BenjDW/maitre-slither/crypto/eip712"
)

// EIP-712 identity of room settlements. Changing any of these invalidates
// every signature an operator tool has ever produced, so they are fixed.
const (
	DomainName    = "MaitreSlitherRooms"
	DomainVersion = "1"

	resolveTypeSignature = "Resolve(uint256 roomId,address winner,uint256 pot,uint256 fee,uint256 payout,uint256 nonce)"
)

var resolveTypeHash = eip712.TypeHash(resolveTypeSignature)

// SettlementDomain builds the signing domain for one deployment: the chain id
// scopes it to a network, the settlement vault address scopes it to an
// instance.
func SettlementDomain(chainID uint64, verifyingContract [20]byte) eip712.Domain {
	return eip712.Domain{
		Name:              DomainName,
		Version:           DomainVersion,
		ChainID:           chainID,
		VerifyingContract: verifyingContract,
	}
}

// ResolveParams is the exact tuple an operator signs to authorize one room
// settlement. The engine never recomputes pot, fee or payout from the stake;
// the signature binds the caller-supplied values and the conservation bound
// rejects any tuple that would overdraw the room.
type ResolveParams struct {
	RoomID uint64
	Winner [20]byte
	Pot    *big.Int
	Fee    *big.Int
	Payout *big.Int
	Nonce  uint64
}

// ResolveDigest computes the signable digest for a settlement tuple under the
// supplied domain.
func ResolveDigest(domain eip712.Domain, params ResolveParams) ([32]byte, error) {
	pot, err := eip712.BigWord(params.Pot)
	if err != nil {
		return [32]byte{}, err
	}
	fee, err := eip712.BigWord(params.Fee)
	if err != nil {
		return [32]byte{}, err
	}
	payout, err := eip712.BigWord(params.Payout)
	if err != nil {
		return [32]byte{}, err
	}
	structHash := eip712.StructHash(
		resolveTypeHash,
		eip712.Uint64Word(params.RoomID),
		eip712.AddressWord(params.Winner),
		pot,
		fee,
		payout,
		eip712.Uint64Word(params.Nonce),
	)
	return eip712.Digest(domain.Separator(), structHash), nil
}

// VerificationResult reports a non-consuming signature check. Valid is true
// only when the signature recovers to the current operator identity; the
// nonce flag lets operator tooling spot an exhausted tuple before submitting.
type VerificationResult struct {
	Signer        [20]byte
	Valid         bool
	NonceConsumed bool
}
