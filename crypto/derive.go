package crypto

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"marketledger/core/types"
)

const (
	// MaxSeeds bounds the number of seed parts accepted by a derivation.
	MaxSeeds = 16
	// MaxSeedLength bounds the byte length of a single seed part.
	MaxSeedLength = 32
)

var (
	ErrTooManySeeds   = errors.New("crypto: too many derivation seeds")
	ErrSeedTooLong    = errors.New("crypto: derivation seed too long")
	ErrEmptyDomainTag = errors.New("crypto: derivation domain tag required")
	ErrNoViableBump   = errors.New("crypto: unable to find a viable derivation bump")
)

// derivationMarker separates derived addresses from key-controlled ones; no
// secp256k1 identity hashes a preimage starting with it.
var derivationMarker = []byte("marketledger/derived-address")

// CreateAddress derives the record address for a domain tag, seed tuple and
// bump. Every part is length-prefixed so distinct tuples never share a
// preimage.
func CreateAddress(tag string, bump uint8, seeds ...[]byte) (types.Address, error) {
	if tag == "" {
		return types.Address{}, ErrEmptyDomainTag
	}
	if len(tag) > 255 {
		return types.Address{}, fmt.Errorf("crypto: domain tag too long (%d bytes)", len(tag))
	}
	if len(seeds) > MaxSeeds {
		return types.Address{}, ErrTooManySeeds
	}
	size := len(derivationMarker) + 1 + len(tag) + 1 + 1
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return types.Address{}, ErrSeedTooLong
		}
		size += 1 + len(seed)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, derivationMarker...)
	buf = append(buf, byte(len(tag)))
	buf = append(buf, tag...)
	buf = append(buf, byte(len(seeds)))
	for _, seed := range seeds {
		buf = append(buf, byte(len(seed)))
		buf = append(buf, seed...)
	}
	buf = append(buf, bump)
	return types.BytesToAddress(ethcrypto.Keccak256(buf)), nil
}

// FindAddress searches bumps from 255 downwards and returns the first address
// that does not collide with a reserved identity (the zero address or the
// native currency sentinel).
func FindAddress(tag string, seeds ...[]byte) (types.Address, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		addr, err := CreateAddress(tag, uint8(bump), seeds...)
		if err != nil {
			return types.Address{}, 0, err
		}
		if addr.IsZero() || addr.IsNative() {
			continue
		}
		return addr, uint8(bump), nil
	}
	return types.Address{}, 0, ErrNoViableBump
}

// MustFindAddress is FindAddress for static domain tags and seeds known to be
// valid. It panics on malformed input.
func MustFindAddress(tag string, seeds ...[]byte) (types.Address, uint8) {
	addr, bump, err := FindAddress(tag, seeds...)
	if err != nil {
		panic(err)
	}
	return addr, bump
}

// VerifyAddress re-derives the address for the stored seeds and bump and
// reports whether it matches addr.
func VerifyAddress(addr types.Address, tag string, bump uint8, seeds ...[]byte) bool {
	expected, err := CreateAddress(tag, bump, seeds...)
	if err != nil {
		return false
	}
	return expected == addr
}
