package crypto

import (
	"encoding/binary"
	"errors"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"marketledger/core/types"
)

// SignatureLength is the size of a recoverable secp256k1 signature (r || s || v).
const SignatureLength = 65

var ErrInvalidSignature = errors.New("crypto: invalid signature")

// Keccak256 hashes the concatenation of the supplied byte slices.
func Keccak256(parts ...[]byte) types.Hash {
	return types.Hash(ethcrypto.Keccak256Hash(parts...))
}

// PayloadHash returns the off-chain payload digest stored on listings, plans,
// contests and entries.
func PayloadHash(payload []byte) types.Hash {
	return Keccak256(payload)
}

// ListingAuthorizationDigest binds a seller's off-chain approval to the exact
// listing seed, payload hash, price and currency an operator may publish.
func ListingAuthorizationDigest(seed, payloadHash types.Hash, price uint64, currency types.Address) types.Hash {
	var priceBytes [8]byte
	binary.BigEndian.PutUint64(priceBytes[:], price)
	return Keccak256([]byte("listing-authorization"), seed[:], payloadHash[:], priceBytes[:], currency[:])
}

// Verifier validates that a signature over a message was produced by signer.
type Verifier interface {
	Verify(signer types.Address, message []byte, signature []byte) error
}

// Secp256k1Verifier recovers the signing key from a 65-byte signature over
// keccak256(message) and compares its address against the expected signer.
type Secp256k1Verifier struct{}

// Verify implements Verifier.
func (Secp256k1Verifier) Verify(signer types.Address, message []byte, signature []byte) error {
	if len(signature) != SignatureLength {
		return ErrInvalidSignature
	}
	if signature[64] > 1 {
		return ErrInvalidSignature
	}
	digest := ethcrypto.Keccak256(message)
	pub, err := ethcrypto.SigToPub(digest, signature)
	if err != nil {
		return ErrInvalidSignature
	}
	if types.Address(ethcrypto.PubkeyToAddress(*pub)) != signer {
		return ErrInvalidSignature
	}
	if !ethcrypto.VerifySignature(ethcrypto.CompressPubkey(pub), digest, signature[:64]) {
		return ErrInvalidSignature
	}
	return nil
}

// SignMessage signs keccak256(message) so the result verifies with
// Secp256k1Verifier.
func SignMessage(key *PrivateKey, message []byte) ([]byte, error) {
	if key == nil || key.PrivateKey == nil {
		return nil, errors.New("crypto: nil private key")
	}
	return key.Sign(Keccak256(message))
}
