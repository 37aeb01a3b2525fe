package crypto

import (
	"errors"
	"testing"

	"marketledger/core/types"
)

func TestSignMessageVerifies(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	digest := ListingAuthorizationDigest(types.Hash{1}, PayloadHash([]byte("doc")), 1000, types.NativeMint)
	sig, err := SignMessage(key, digest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if len(sig) != SignatureLength {
		t.Fatalf("unexpected signature length %d", len(sig))
	}
	var v Secp256k1Verifier
	if err := v.Verify(key.Address(), digest[:], sig); err != nil {
		t.Fatalf("verify: %v", err)
	}

	other, _ := GeneratePrivateKey()
	if err := v.Verify(other.Address(), digest[:], sig); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected wrong signer rejected, got %v", err)
	}
	tampered := ListingAuthorizationDigest(types.Hash{1}, PayloadHash([]byte("doc")), 1001, types.NativeMint)
	if err := v.Verify(key.Address(), tampered[:], sig); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected tampered price rejected, got %v", err)
	}
	if err := v.Verify(key.Address(), digest[:], sig[:64]); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected short signature rejected, got %v", err)
	}
	bad := append([]byte(nil), sig...)
	bad[64] = 27
	if err := v.Verify(key.Address(), digest[:], bad); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected legacy recovery id rejected, got %v", err)
	}
}

func TestSignMessageNilKey(t *testing.T) {
	if _, err := SignMessage(nil, []byte("x")); err == nil {
		t.Fatalf("expected nil key rejected")
	}
}
