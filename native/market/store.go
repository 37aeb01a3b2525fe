package market

import (
	"fmt"

	"marketledger/core/types"
	"marketledger/native/token"
	"marketledger/native/vault"
)

// State is the ledger surface every marketplace operation runs against. The
// core/state overlay satisfies it.
type State interface {
	token.State
	RecordClosed(addr types.Address) (bool, error)
}

func getRecord(st State, addr types.Address, kind string, out interface{}, closedErr error) error {
	ok, err := st.RecordGet(addr, kind, out)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if closedErr != nil {
		closed, err := st.RecordClosed(addr)
		if err != nil {
			return err
		}
		if closed {
			return fmt.Errorf("%w: %s", closedErr, addr.Hex())
		}
	}
	return fmt.Errorf("%w: %s %s", ErrRecordNotFound, kind, addr.Hex())
}

// terminalErrors names the error reported when a record of the kind is
// created over its own tombstone.
var terminalErrors = map[string]error{
	KindListing: ErrListingNotActive,
	KindOrder:   ErrOrderAlreadySettled,
	KindContest: ErrContestResolved,
}

// createRecord charges payer the deposit for a new record and writes it.
// Closed addresses stay closed: a record is never revived at the address of
// one that was destroyed.
func createRecord(st State, payer, addr types.Address, kind string, size int, value interface{}) error {
	exists, err := st.RecordExists(addr)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s %s", ErrRecordExists, kind, addr.Hex())
	}
	closed, err := st.RecordClosed(addr)
	if err != nil {
		return err
	}
	if closed {
		if terminal, ok := terminalErrors[kind]; ok {
			return fmt.Errorf("%w: %s %s was closed", terminal, kind, addr.Hex())
		}
		return fmt.Errorf("%w: %s %s was closed", ErrRecordExists, kind, addr.Hex())
	}
	if _, err := vault.FundRecord(st, payer, addr, size); err != nil {
		return err
	}
	return st.RecordPut(addr, kind, value)
}

func loadConfig(st State) (Config, error) {
	d, err := ConfigAddress()
	if err != nil {
		return Config{}, err
	}
	var stored storedConfig
	ok, err := st.RecordGet(d.Address, KindConfig, &stored)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Config{}, ErrConfigNotInitialized
	}
	if err := verifyDerivation(d.Address, TagConfig, stored.Bump); err != nil {
		return Config{}, err
	}
	return Config{
		Address:     d.Address,
		Authority:   stored.Authority,
		Treasury:    stored.Treasury,
		FeeBps:      stored.FeeBps,
		RewardVault: stored.RewardVault,
		Whitelist:   stored.Whitelist,
		Bump:        stored.Bump,
	}, nil
}

func storeConfig(st State, cfg Config) error {
	return st.RecordPut(cfg.Address, KindConfig, storedConfig{
		Authority:   cfg.Authority,
		Treasury:    cfg.Treasury,
		FeeBps:      cfg.FeeBps,
		RewardVault: cfg.RewardVault,
		Whitelist:   cfg.Whitelist,
		Bump:        cfg.Bump,
	})
}

func loadWhitelist(st State, cfg Config) (*Whitelist, error) {
	var stored storedWhitelist
	if err := getRecord(st, cfg.Whitelist, KindWhitelist, &stored, nil); err != nil {
		return nil, err
	}
	if err := verifyDerivation(cfg.Whitelist, TagWhitelist, stored.Bump); err != nil {
		return nil, err
	}
	return &Whitelist{
		Address:      cfg.Whitelist,
		Authority:    stored.Authority,
		AllowedMints: append([]types.Address(nil), stored.AllowedMints...),
		Bump:         stored.Bump,
	}, nil
}

func storeWhitelist(st State, wl *Whitelist) error {
	return st.RecordPut(wl.Address, KindWhitelist, storedWhitelist{
		Authority:    wl.Authority,
		AllowedMints: wl.AllowedMints,
		Bump:         wl.Bump,
	})
}

// loadVault loads the vault record at addr and checks it is the vault derived
// from tag.
func loadVault(st State, addr types.Address, tag string) (*Vault, error) {
	var stored storedVault
	if err := getRecord(st, addr, KindVault, &stored, nil); err != nil {
		return nil, err
	}
	if err := verifyDerivation(addr, tag, stored.Bump); err != nil {
		return nil, err
	}
	return &Vault{Address: addr, Bump: stored.Bump}, nil
}

func loadListing(st State, addr types.Address) (*Listing, error) {
	var stored storedListing
	if err := getRecord(st, addr, KindListing, &stored, ErrListingNotActive); err != nil {
		return nil, err
	}
	if err := verifyDerivation(addr, TagListing, stored.Bump, stored.Seller[:], stored.Seed[:]); err != nil {
		return nil, err
	}
	return &Listing{
		Address:     addr,
		Seller:      stored.Seller,
		Currency:    stored.Mint,
		Price:       stored.Price,
		Seed:        stored.Seed,
		PayloadHash: stored.PayloadHash,
		Active:      stored.Active,
		Bump:        stored.Bump,
	}, nil
}

func storeListing(st State, l *Listing) error {
	return st.RecordPut(l.Address, KindListing, listingLayout(l))
}

func listingLayout(l *Listing) storedListing {
	return storedListing{
		Seller:      l.Seller,
		Mint:        l.Currency,
		Price:       l.Price,
		Seed:        l.Seed,
		PayloadHash: l.PayloadHash,
		Active:      l.Active,
		Bump:        l.Bump,
	}
}

func loadOrder(st State, addr types.Address) (*Order, error) {
	var stored storedOrder
	if err := getRecord(st, addr, KindOrder, &stored, ErrOrderAlreadySettled); err != nil {
		return nil, err
	}
	if err := verifyDerivation(addr, TagOrder, stored.Bump, stored.Listing[:], stored.Buyer[:]); err != nil {
		return nil, err
	}
	return &Order{
		Address:    addr,
		Buyer:      stored.Buyer,
		Seller:     stored.Seller,
		Listing:    stored.Listing,
		Currency:   stored.Mint,
		AmountPaid: stored.AmountPaid,
		Settled:    stored.Settled,
		Bump:       stored.Bump,
	}, nil
}

func orderLayout(o *Order) storedOrder {
	return storedOrder{
		Buyer:      o.Buyer,
		Seller:     o.Seller,
		Listing:    o.Listing,
		Mint:       o.Currency,
		AmountPaid: o.AmountPaid,
		Settled:    o.Settled,
		Bump:       o.Bump,
	}
}

func loadPlan(st State, addr types.Address) (*Plan, error) {
	var stored storedPlan
	if err := getRecord(st, addr, KindPlan, &stored, nil); err != nil {
		return nil, err
	}
	if err := verifyDerivation(addr, TagPlan, stored.Bump, stored.Creator[:], stored.Seed[:]); err != nil {
		return nil, err
	}
	return &Plan{
		Address:        addr,
		Creator:        stored.Creator,
		Currency:       stored.Mint,
		PricePerPeriod: stored.PricePerPeriod,
		PeriodSeconds:  int64(stored.PeriodSeconds),
		Seed:           stored.Seed,
		PayloadHash:    stored.PayloadHash,
		Active:         stored.Active,
		Bump:           stored.Bump,
	}, nil
}

func planLayout(p *Plan) storedPlan {
	return storedPlan{
		Creator:        p.Creator,
		Mint:           p.Currency,
		PricePerPeriod: p.PricePerPeriod,
		PeriodSeconds:  uint64(p.PeriodSeconds),
		Seed:           p.Seed,
		PayloadHash:    p.PayloadHash,
		Active:         p.Active,
		Bump:           p.Bump,
	}
}

// loadInstance returns the instance at addr, or nil if none exists yet.
func loadInstance(st State, addr types.Address) (*Instance, error) {
	var stored storedInstance
	ok, err := st.RecordGet(addr, KindInstance, &stored)
	if err != nil || !ok {
		return nil, err
	}
	if err := verifyDerivation(addr, TagInstance, stored.Bump, stored.Subscriber[:], stored.Seed[:]); err != nil {
		return nil, err
	}
	return &Instance{
		Address:       addr,
		Subscriber:    stored.Subscriber,
		Plan:          stored.Plan,
		Seed:          stored.Seed,
		LastPaymentAt: int64(stored.LastPaymentAt),
		Bump:          stored.Bump,
	}, nil
}

func instanceLayout(i *Instance) storedInstance {
	return storedInstance{
		Subscriber:    i.Subscriber,
		Plan:          i.Plan,
		Seed:          i.Seed,
		LastPaymentAt: uint64(i.LastPaymentAt),
		Bump:          i.Bump,
	}
}

func loadContest(st State, addr types.Address) (*Contest, error) {
	var stored storedContest
	if err := getRecord(st, addr, KindContest, &stored, ErrContestResolved); err != nil {
		return nil, err
	}
	if err := verifyDerivation(addr, TagContest, stored.Bump, stored.Creator[:], stored.Seed[:]); err != nil {
		return nil, err
	}
	return &Contest{
		Address:     addr,
		Creator:     stored.Creator,
		RewardPool:  stored.RewardPool,
		Deadline:    int64(stored.Deadline),
		Seed:        stored.Seed,
		PayloadHash: stored.PayloadHash,
		Prize:       stored.Prize,
		Settled:     stored.Settled,
		Bump:        stored.Bump,
	}, nil
}

func contestLayout(c *Contest) storedContest {
	return storedContest{
		Creator:     c.Creator,
		RewardPool:  c.RewardPool,
		Deadline:    uint64(c.Deadline),
		Seed:        c.Seed,
		PayloadHash: c.PayloadHash,
		Prize:       c.Prize,
		Settled:     c.Settled,
		Bump:        c.Bump,
	}
}

func loadEntry(st State, addr types.Address) (*Entry, error) {
	var stored storedEntry
	if err := getRecord(st, addr, KindEntry, &stored, nil); err != nil {
		return nil, err
	}
	if err := verifyDerivation(addr, TagEntry, stored.Bump, stored.Contest[:], stored.Seed[:]); err != nil {
		return nil, err
	}
	return &Entry{
		Address:     addr,
		Contestant:  stored.Contestant,
		Contest:     stored.Contest,
		Seed:        stored.Seed,
		PayloadHash: stored.PayloadHash,
		Score:       stored.Score,
		Bump:        stored.Bump,
	}, nil
}

func entryLayout(e *Entry) storedEntry {
	return storedEntry{
		Contestant:  e.Contestant,
		Contest:     e.Contest,
		Seed:        e.Seed,
		PayloadHash: e.PayloadHash,
		Score:       e.Score,
		Bump:        e.Bump,
	}
}
