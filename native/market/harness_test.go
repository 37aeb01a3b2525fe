package market

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"testing"

	"marketledger/core/events"
	"marketledger/core/state"
	"marketledger/core/types"
	"marketledger/crypto"
	"marketledger/storage"
)

const genesisBalance = 1_000_000_000_000

type harness struct {
	t        *testing.T
	engine   *Engine
	manager  *state.Manager
	recorder *events.Recorder
	now      int64

	cfg       *Config
	sellerKey *crypto.PrivateKey
	authority types.Address
	seller    types.Address
	buyer     types.Address
	creator   types.Address
	other     types.Address
}

func newTestAddress(fill byte) types.Address {
	var addr types.Address
	copy(addr[:], bytes.Repeat([]byte{fill}, types.AddressLength))
	return addr
}

func newHarness(t *testing.T, feeBps uint16) *harness {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	h := &harness{
		t:         t,
		manager:   state.NewManager(storage.NewMemDB(), state.DefaultRent()),
		recorder:  &events.Recorder{},
		now:       1_700_000_000,
		sellerKey: key,
		authority: newTestAddress(0xA1),
		seller:    key.Address(),
		buyer:     newTestAddress(0xB1),
		creator:   newTestAddress(0xC1),
		other:     newTestAddress(0xD1),
	}
	var genesis []state.GenesisAccount
	for _, addr := range []types.Address{h.authority, h.seller, h.buyer, h.creator, h.other} {
		genesis = append(genesis, state.GenesisAccount{Address: addr, Balance: genesisBalance})
	}
	if _, err := h.manager.ApplyGenesis(genesis); err != nil {
		t.Fatalf("genesis: %v", err)
	}
	h.engine = NewEngine(h.manager)
	h.engine.SetEmitter(h.recorder)
	h.engine.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.engine.SetNowFunc(func() int64 { return h.now })
	cfg, err := h.engine.InitializeConfig(h.authority, feeBps)
	if err != nil {
		t.Fatalf("initialize config: %v", err)
	}
	h.cfg = cfg
	h.recorder.Events = nil
	return h
}

func (h *harness) balance(addr types.Address) uint64 {
	h.t.Helper()
	bal, err := h.engine.Balance(addr)
	if err != nil {
		h.t.Fatalf("balance %s: %v", addr.Hex(), err)
	}
	return bal
}

func (h *harness) total(addrs ...types.Address) uint64 {
	h.t.Helper()
	var sum uint64
	for _, addr := range addrs {
		sum += h.balance(addr)
	}
	return sum
}

func (h *harness) listingParams(seed byte, price uint64, currency types.Address) CreateListingParams {
	h.t.Helper()
	p := CreateListingParams{
		Seller:      h.seller,
		Seed:        types.Hash{seed},
		PayloadHash: crypto.PayloadHash([]byte("listing payload")),
		Price:       price,
		Currency:    currency,
	}
	sig, err := crypto.SignMessage(h.sellerKey, ListingAuthorizationMessage(p.Seed, p.PayloadHash, p.Price, p.Currency))
	if err != nil {
		h.t.Fatalf("sign listing: %v", err)
	}
	p.SellerSignature = sig
	return p
}

func (h *harness) createListing(seed byte, price uint64, currency types.Address) *Listing {
	h.t.Helper()
	listing, err := h.engine.CreateListing(h.authority, h.listingParams(seed, price, currency))
	if err != nil {
		h.t.Fatalf("create listing: %v", err)
	}
	return listing
}

func (h *harness) fundRewardVault(amount uint64) {
	h.t.Helper()
	if err := h.engine.TransferNative(h.authority, h.cfg.RewardVault, amount); err != nil {
		h.t.Fatalf("fund reward vault: %v", err)
	}
}

func expectErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}
