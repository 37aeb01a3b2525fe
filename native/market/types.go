package market

import (
	"marketledger/core/types"
)

// Record kinds double as the discriminator written ahead of every persisted
// record.
const (
	KindConfig    = "marketplace_config"
	KindWhitelist = "token_whitelist"
	KindVault     = "vault"
	KindListing   = "listing"
	KindOrder     = "order"
	KindPlan      = "subscription_plan"
	KindInstance  = "subscription_instance"
	KindContest   = "contest"
	KindEntry     = "contest_entry"
)

// Storage footprints, discriminator included. They size the deposit a payer
// locks into each record.
const (
	ConfigSize    = 8 + 32 + 32 + 2 + 32 + 32 + 1
	WhitelistSize = 8 + 32 + 4 + MaxWhitelistMints*32 + 1
	VaultSize     = 8 + 1
	ListingSize   = 8 + 32 + 32 + 8 + 32 + 32 + 1 + 1
	OrderSize     = 8 + 32 + 32 + 32 + 32 + 8 + 1 + 1
	PlanSize      = 8 + 32 + 32 + 8 + 8 + 32 + 32 + 1 + 1
	InstanceSize  = 8 + 32 + 32 + 32 + 8 + 1
	ContestSize   = 8 + 32 + 32 + 8 + 32 + 32 + 8 + 1 + 1
	EntrySize     = 8 + 32 + 32 + 32 + 32 + 8 + 1
)

// MaxWhitelistMints bounds the token whitelist.
const MaxWhitelistMints = 32

// Config is the marketplace-wide configuration singleton.
type Config struct {
	Address     types.Address `json:"address"`
	Authority   types.Address `json:"authority"`
	Treasury    types.Address `json:"treasury"`
	FeeBps      uint16        `json:"feeBps"`
	RewardVault types.Address `json:"rewardVault"`
	Whitelist   types.Address `json:"whitelist"`
	Bump        uint8         `json:"bump"`
}

// Whitelist lists the token mints listings and plans may be priced in.
type Whitelist struct {
	Address      types.Address   `json:"address"`
	Authority    types.Address   `json:"authority"`
	AllowedMints []types.Address `json:"allowedMints"`
	Bump         uint8           `json:"bump"`
}

// Contains reports whether mint is whitelisted.
func (w *Whitelist) Contains(mint types.Address) bool {
	if w == nil {
		return false
	}
	for _, allowed := range w.AllowedMints {
		if allowed == mint {
			return true
		}
	}
	return false
}

// Vault is an engine-owned balance holder. Only its bump is persisted; the
// balance lives on the ledger account at the same address.
type Vault struct {
	Address types.Address `json:"address"`
	Bump    uint8         `json:"bump"`
}

// Listing is an item offered for sale.
type Listing struct {
	Address     types.Address `json:"address"`
	Seller      types.Address `json:"seller"`
	Currency    types.Address `json:"currency"`
	Price       uint64        `json:"price"`
	Seed        types.Hash    `json:"seed"`
	PayloadHash types.Hash    `json:"payloadHash"`
	Active      bool          `json:"active"`
	Bump        uint8         `json:"bump"`
}

// Order is a purchase whose funds sit in escrow at the order's own address
// until settlement.
type Order struct {
	Address    types.Address `json:"address"`
	Buyer      types.Address `json:"buyer"`
	Seller     types.Address `json:"seller"`
	Listing    types.Address `json:"listing"`
	Currency   types.Address `json:"currency"`
	AmountPaid uint64        `json:"amountPaid"`
	Settled    bool          `json:"settled"`
	Bump       uint8         `json:"bump"`
}

// Plan is a creator's recurring subscription offer.
type Plan struct {
	Address        types.Address `json:"address"`
	Creator        types.Address `json:"creator"`
	Currency       types.Address `json:"currency"`
	PricePerPeriod uint64        `json:"pricePerPeriod"`
	PeriodSeconds  int64         `json:"periodSeconds"`
	Seed           types.Hash    `json:"seed"`
	PayloadHash    types.Hash    `json:"payloadHash"`
	Active         bool          `json:"active"`
	Bump           uint8         `json:"bump"`
}

// Instance tracks one subscriber's payments against a plan.
type Instance struct {
	Address       types.Address `json:"address"`
	Subscriber    types.Address `json:"subscriber"`
	Plan          types.Address `json:"plan"`
	Seed          types.Hash    `json:"seed"`
	LastPaymentAt int64         `json:"lastPaymentAt"`
	Bump          uint8         `json:"bump"`
}

// Contest holds a prize pool released to a single winner after the deadline.
type Contest struct {
	Address     types.Address `json:"address"`
	Creator     types.Address `json:"creator"`
	RewardPool  types.Address `json:"rewardPool"`
	Deadline    int64         `json:"deadline"`
	Seed        types.Hash    `json:"seed"`
	PayloadHash types.Hash    `json:"payloadHash"`
	Prize       uint64        `json:"prize"`
	Settled     bool          `json:"settled"`
	Bump        uint8         `json:"bump"`
}

// Entry is a contestant's submission.
type Entry struct {
	Address     types.Address `json:"address"`
	Contestant  types.Address `json:"contestant"`
	Contest     types.Address `json:"contest"`
	Seed        types.Hash    `json:"seed"`
	PayloadHash types.Hash    `json:"payloadHash"`
	Score       uint64        `json:"score"`
	Bump        uint8         `json:"bump"`
}

// The stored* layouts fix the persisted field order. Signed timestamps are
// carried as their two's-complement uint64 image.

type storedConfig struct {
	Authority   types.Address
	Treasury    types.Address
	FeeBps      uint16
	RewardVault types.Address
	Whitelist   types.Address
	Bump        uint8
}

type storedWhitelist struct {
	Authority    types.Address
	AllowedMints []types.Address
	Bump         uint8
}

type storedVault struct {
	Bump uint8
}

type storedListing struct {
	Seller      types.Address
	Mint        types.Address
	Price       uint64
	Seed        types.Hash
	PayloadHash types.Hash
	Active      bool
	Bump        uint8
}

type storedOrder struct {
	Buyer      types.Address
	Seller     types.Address
	Listing    types.Address
	Mint       types.Address
	AmountPaid uint64
	Settled    bool
	Bump       uint8
}

type storedPlan struct {
	Creator        types.Address
	Mint           types.Address
	PricePerPeriod uint64
	PeriodSeconds  uint64
	Seed           types.Hash
	PayloadHash    types.Hash
	Active         bool
	Bump           uint8
}

type storedInstance struct {
	Subscriber    types.Address
	Plan          types.Address
	Seed          types.Hash
	LastPaymentAt uint64
	Bump          uint8
}

type storedContest struct {
	Creator     types.Address
	RewardPool  types.Address
	Deadline    uint64
	Seed        types.Hash
	PayloadHash types.Hash
	Prize       uint64
	Settled     bool
	Bump        uint8
}

type storedEntry struct {
	Contestant  types.Address
	Contest     types.Address
	Seed        types.Hash
	PayloadHash types.Hash
	Score       uint64
	Bump        uint8
}
