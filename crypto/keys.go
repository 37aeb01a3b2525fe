package crypto

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"marketledger/core/types"
)

// AddressHRP is the human-readable prefix used when rendering ledger
// identities in bech32.
const AddressHRP = "mkt"

// EncodeAddress renders an address as a bech32 string.
func EncodeAddress(addr types.Address) (string, error) {
	conv, err := bech32.ConvertBits(addr[:], 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(AddressHRP, conv)
}

// DecodeAddress parses a bech32 address carrying the ledger prefix.
func DecodeAddress(addrStr string) (types.Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return types.Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	if prefix != AddressHRP {
		return types.Address{}, fmt.Errorf("unexpected address prefix %q", prefix)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return types.Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != types.AddressLength {
		return types.Address{}, fmt.Errorf("address must be %d bytes long", types.AddressLength)
	}
	return types.BytesToAddress(conv), nil
}

// ParseAddress accepts either the bech32 or the 0x-hex rendering.
func ParseAddress(s string) (types.Address, error) {
	if addr, err := types.ParseHexAddress(s); err == nil {
		return addr, nil
	}
	return DecodeAddress(s)
}

// --- Key Management ---

type PrivateKey struct {
	*ecdsa.PrivateKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return ethcrypto.FromECDSA(k.PrivateKey)
}

// Address returns the ledger identity controlled by the key.
func (k *PrivateKey) Address() types.Address {
	return types.Address(ethcrypto.PubkeyToAddress(k.PrivateKey.PublicKey))
}

// Sign produces a 65-byte recoverable signature over a 32-byte digest.
func (k *PrivateKey) Sign(digest types.Hash) ([]byte, error) {
	return ethcrypto.Sign(digest[:], k.PrivateKey)
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := ethcrypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}
