package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestFindAddressDeterministic(t *testing.T) {
	a1, b1, err := FindAddress("listing", []byte("seller"), []byte("seed"))
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	a2, b2, err := FindAddress("listing", []byte("seller"), []byte("seed"))
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if a1 != a2 || b1 != b2 {
		t.Fatalf("derivation not deterministic")
	}
	if !VerifyAddress(a1, "listing", b1, []byte("seller"), []byte("seed")) {
		t.Fatalf("derived address does not verify")
	}
	if VerifyAddress(a1, "listing", b1-1, []byte("seller"), []byte("seed")) {
		t.Fatalf("wrong bump verified")
	}
}

func TestDerivationSeparatesDomainsAndTuples(t *testing.T) {
	base, _, _ := FindAddress("order", []byte("ab"), []byte("c"))
	otherTag, _, _ := FindAddress("listing", []byte("ab"), []byte("c"))
	regrouped, _, _ := FindAddress("order", []byte("a"), []byte("bc"))
	if base == otherTag {
		t.Fatalf("domain tags collide")
	}
	if base == regrouped {
		t.Fatalf("seed boundaries collide")
	}
}

func TestCreateAddressRejectsBadInput(t *testing.T) {
	if _, err := CreateAddress("", 255); !errors.Is(err, ErrEmptyDomainTag) {
		t.Fatalf("expected empty tag rejected, got %v", err)
	}
	if _, err := CreateAddress("x", 255, bytes.Repeat([]byte{1}, MaxSeedLength+1)); !errors.Is(err, ErrSeedTooLong) {
		t.Fatalf("expected long seed rejected, got %v", err)
	}
	seeds := make([][]byte, MaxSeeds+1)
	if _, err := CreateAddress("x", 255, seeds...); !errors.Is(err, ErrTooManySeeds) {
		t.Fatalf("expected too many seeds rejected, got %v", err)
	}
}

func TestDerivedAddressIsNotReserved(t *testing.T) {
	addr, _ := MustFindAddress("treasury_vault")
	if addr.IsZero() || addr.IsNative() {
		t.Fatalf("derived a reserved address")
	}
}
