package token

import (
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// vaultSeed is hashed to derive the settlement vault account. The address has
// no known private key; funds only leave it through engine payouts.
const vaultSeed = "msl/settlement-vault"

// VaultAddress returns the deterministic account that holds all escrowed
// deposits. The same address doubles as the EIP-712 verifying contract for
// room settlement signatures.
func VaultAddress() [20]byte {
	var addr [20]byte
	hash := ethcrypto.Keccak256([]byte(vaultSeed))
	copy(addr[:], hash[12:])
	return addr
}

// Vault moves funds between participant accounts and the shared settlement
// custody account.
type Vault struct {
	addr   [20]byte
	ledger *Ledger
}

// NewVault binds the custody account to a token ledger.
func NewVault(ledger *Ledger) *Vault {
	return &Vault{addr: VaultAddress(), ledger: ledger}
}

// Address returns the custody account.
func (v *Vault) Address() [20]byte {
	return v.addr
}

// Balance returns the total funds currently held in custody.
func (v *Vault) Balance() (*big.Int, error) {
	if v == nil || v.ledger == nil {
		return nil, ErrNilState
	}
	return v.ledger.BalanceOf(v.addr)
}

// TransferIn pulls a deposit from the participant into custody.
func (v *Vault) TransferIn(from [20]byte, amount *big.Int) error {
	if v == nil || v.ledger == nil {
		return ErrNilState
	}
	return v.ledger.Transfer(from, v.addr, amount)
}

// TransferOut pays funds from custody to the recipient.
func (v *Vault) TransferOut(to [20]byte, amount *big.Int) error {
	if v == nil || v.ledger == nil {
		return ErrNilState
	}
	return v.ledger.Transfer(v.addr, to, amount)
}
