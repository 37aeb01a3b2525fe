package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLength is the byte length of every ledger identity and derived record
// address.
const AddressLength = 20

// Address identifies a signer, a record, a vault or a token mint.
type Address [AddressLength]byte

// NativeMint is the reserved currency identity selecting the native balance
// path. It never names a real token mint.
var NativeMint = Address{
	0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee,
	0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee,
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool { return a == Address{} }

// IsNative reports whether the address is the native currency sentinel.
func (a Address) IsNative() bool { return a == NativeMint }

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte { return append([]byte(nil), a[:]...) }

// Hex returns the 0x-prefixed lowercase hex encoding.
func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

func (a Address) String() string { return a.Hex() }

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) { return []byte(a.Hex()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseHexAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// BytesToAddress copies b into an address. Longer inputs keep their trailing
// bytes, matching the derivation of addresses from 32-byte digests.
func BytesToAddress(b []byte) Address {
	var addr Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(addr[AddressLength-len(b):], b)
	return addr
}

// ParseHexAddress decodes a 0x-prefixed (or bare) 40 character hex string.
func ParseHexAddress(s string) (Address, error) {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		trimmed = trimmed[2:]
	}
	if len(trimmed) != AddressLength*2 {
		return Address{}, fmt.Errorf("address must be %d bytes (got %d hex chars)", AddressLength, len(trimmed))
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return Address{}, fmt.Errorf("decode address: %w", err)
	}
	return BytesToAddress(decoded), nil
}

// Hash is a 32-byte digest used for seeds and off-chain payload hashes.
type Hash [32]byte

// Hex returns the 0x-prefixed lowercase hex encoding.
func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

func (h Hash) String() string { return h.Hex() }

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) { return []byte(h.Hex()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHash decodes a 0x-prefixed (or bare) 64 character hex string.
func ParseHash(s string) (Hash, error) {
	var h Hash
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		trimmed = trimmed[2:]
	}
	if len(trimmed) != len(h)*2 {
		return h, fmt.Errorf("hash must be 32 bytes (got %d hex chars)", len(trimmed))
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return h, fmt.Errorf("decode hash: %w", err)
	}
	copy(h[:], decoded)
	return h, nil
}
