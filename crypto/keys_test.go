package crypto

import (
	"path/filepath"
	"testing"

	"marketledger/core/types"
)

func TestBech32RoundTrip(t *testing.T) {
	addr := types.Address{0xde, 0xad, 0xbe, 0xef}
	encoded, err := EncodeAddress(addr)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != addr {
		t.Fatalf("round trip mismatch")
	}
	parsed, err := ParseAddress(addr.Hex())
	if err != nil || parsed != addr {
		t.Fatalf("hex parse mismatch: %v", err)
	}
	if _, err := ParseAddress("nope"); err == nil {
		t.Fatalf("expected garbage rejected")
	}
}

func TestKeystoreRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	path := filepath.Join(t.TempDir(), "keys", "operator.keystore")
	if err := SaveToKeystore(path, key, "pw"); err != nil {
		t.Fatalf("save: %v", err)
	}
	addr, err := KeystoreAddress(path)
	if err != nil || addr != key.Address() {
		t.Fatalf("keystore address mismatch: %v", err)
	}
	loaded, err := LoadFromKeystore(path, "pw")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Address() != key.Address() {
		t.Fatalf("loaded key differs")
	}
	if _, err := LoadFromKeystore(path, "wrong"); err == nil {
		t.Fatalf("expected wrong passphrase rejected")
	}
}
