package market

import (
	"fmt"
	"strings"

	"marketledger/core/types"
	"marketledger/crypto"
	"marketledger/native/token"
)

// Domain tags for every derived record address.
const (
	TagConfig    = "config"
	TagListing   = "listing"
	TagOrder     = "order"
	TagPlan      = "sub_plan"
	TagInstance  = "sub_instance"
	TagContest   = "contest"
	TagEntry     = "contest_entry"
	TagTreasury  = "treasury_vault"
	TagReward    = "reward_vault"
	TagWhitelist = "token_whitelist"
)

// Derivation pairs a derived address with the bump that produced it.
type Derivation struct {
	Address types.Address `json:"address"`
	Bump    uint8         `json:"bump"`
}

func derive(tag string, seeds ...[]byte) (Derivation, error) {
	addr, bump, err := crypto.FindAddress(tag, seeds...)
	if err != nil {
		return Derivation{}, err
	}
	return Derivation{Address: addr, Bump: bump}, nil
}

// verifyDerivation rejects a record whose address is not the one its stored
// seeds and bump derive to.
func verifyDerivation(addr types.Address, tag string, bump uint8, seeds ...[]byte) error {
	if !crypto.VerifyAddress(addr, tag, bump, seeds...) {
		return fmt.Errorf("%w: %s is not a %s address", ErrAddressMismatch, addr.Hex(), tag)
	}
	return nil
}

// ConfigAddress returns the marketplace config singleton address.
func ConfigAddress() (Derivation, error) { return derive(TagConfig) }

// TreasuryVaultAddress returns the treasury vault address.
func TreasuryVaultAddress() (Derivation, error) { return derive(TagTreasury) }

// RewardVaultAddress returns the reward vault address.
func RewardVaultAddress() (Derivation, error) { return derive(TagReward) }

// WhitelistAddress returns the token whitelist singleton address.
func WhitelistAddress() (Derivation, error) { return derive(TagWhitelist) }

// ListingAddress returns the listing address for a seller and listing seed.
func ListingAddress(seller types.Address, seed types.Hash) (Derivation, error) {
	return derive(TagListing, seller[:], seed[:])
}

// OrderAddress returns the order address for a listing and buyer. A listing
// bought by the same buyer twice maps to the same order.
func OrderAddress(listing, buyer types.Address) (Derivation, error) {
	return derive(TagOrder, listing[:], buyer[:])
}

// PlanAddress returns the subscription plan address for a creator and seed.
func PlanAddress(creator types.Address, seed types.Hash) (Derivation, error) {
	return derive(TagPlan, creator[:], seed[:])
}

// InstanceAddress returns the subscription instance address for a subscriber
// and instance seed.
func InstanceAddress(subscriber types.Address, seed types.Hash) (Derivation, error) {
	return derive(TagInstance, subscriber[:], seed[:])
}

// ContestAddress returns the contest address for a creator and seed.
func ContestAddress(creator types.Address, seed types.Hash) (Derivation, error) {
	return derive(TagContest, creator[:], seed[:])
}

// EntryAddress returns the contest entry address for a contest and entry seed.
func EntryAddress(contest types.Address, seed types.Hash) (Derivation, error) {
	return derive(TagEntry, contest[:], seed[:])
}

// DeriveArgs carries the seeds a record kind derives from. Fields a kind does
// not use are ignored. Owner is the seller, buyer, creator, subscriber or mint
// authority depending on the kind.
type DeriveArgs struct {
	Owner   types.Address `json:"owner"`
	Seed    types.Hash    `json:"seed"`
	Listing types.Address `json:"listing"`
	Contest types.Address `json:"contest"`
	Mint    types.Address `json:"mint"`
}

// DeriveRecord derives the address of a record kind by name.
func DeriveRecord(kind string, args DeriveArgs) (Derivation, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "config":
		return ConfigAddress()
	case "treasury":
		return TreasuryVaultAddress()
	case "reward":
		return RewardVaultAddress()
	case "whitelist":
		return WhitelistAddress()
	case "listing":
		return ListingAddress(args.Owner, args.Seed)
	case "order":
		return OrderAddress(args.Listing, args.Owner)
	case "plan":
		return PlanAddress(args.Owner, args.Seed)
	case "instance":
		return InstanceAddress(args.Owner, args.Seed)
	case "contest":
		return ContestAddress(args.Owner, args.Seed)
	case "entry":
		return EntryAddress(args.Contest, args.Seed)
	case "mint":
		addr, bump, err := token.MintAddress(args.Owner, args.Seed)
		return Derivation{Address: addr, Bump: bump}, err
	case "token_account":
		addr, bump, err := token.AccountAddress(args.Owner, args.Mint)
		return Derivation{Address: addr, Bump: bump}, err
	default:
		return Derivation{}, fmt.Errorf("unknown record kind %q", kind)
	}
}
