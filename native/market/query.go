package market

import (
	"marketledger/core/types"
	"marketledger/native/token"
	"marketledger/native/vault"
)

// Config returns the marketplace configuration.
func (e *Engine) Config() (*Config, error) {
	var out Config
	err := e.view(func(st State) error {
		cfg, err := loadConfig(st)
		out = cfg
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Whitelist returns the token whitelist.
func (e *Engine) Whitelist() (*Whitelist, error) {
	var out *Whitelist
	err := e.view(func(st State) error {
		cfg, err := loadConfig(st)
		if err != nil {
			return err
		}
		out, err = loadWhitelist(st, cfg)
		return err
	})
	return out, err
}

// Listing loads the listing at addr.
func (e *Engine) Listing(addr types.Address) (*Listing, error) {
	var out *Listing
	err := e.view(func(st State) (err error) {
		out, err = loadListing(st, addr)
		return err
	})
	return out, err
}

// Order loads the order at addr. Settled orders no longer exist and report
// ErrOrderAlreadySettled.
func (e *Engine) Order(addr types.Address) (*Order, error) {
	var out *Order
	err := e.view(func(st State) (err error) {
		out, err = loadOrder(st, addr)
		return err
	})
	return out, err
}

// Plan loads the subscription plan at addr.
func (e *Engine) Plan(addr types.Address) (*Plan, error) {
	var out *Plan
	err := e.view(func(st State) (err error) {
		out, err = loadPlan(st, addr)
		return err
	})
	return out, err
}

// Instance loads the subscription instance at addr.
func (e *Engine) Instance(addr types.Address) (*Instance, error) {
	var out *Instance
	err := e.view(func(st State) (err error) {
		out, err = loadInstance(st, addr)
		if err == nil && out == nil {
			err = ErrRecordNotFound
		}
		return err
	})
	return out, err
}

// Contest loads the contest at addr.
func (e *Engine) Contest(addr types.Address) (*Contest, error) {
	var out *Contest
	err := e.view(func(st State) (err error) {
		out, err = loadContest(st, addr)
		return err
	})
	return out, err
}

// Entry loads the contest entry at addr.
func (e *Engine) Entry(addr types.Address) (*Entry, error) {
	var out *Entry
	err := e.view(func(st State) (err error) {
		out, err = loadEntry(st, addr)
		return err
	})
	return out, err
}

// Balance returns the native balance at addr.
func (e *Engine) Balance(addr types.Address) (uint64, error) {
	var out uint64
	err := e.view(func(st State) (err error) {
		out, err = vault.Balance(st, addr)
		return err
	})
	return out, err
}

// TokenAccount loads the token account at addr.
func (e *Engine) TokenAccount(addr types.Address) (*token.Account, error) {
	var out *token.Account
	err := e.view(func(st State) (err error) {
		out, err = token.GetAccount(st, addr)
		return err
	})
	return out, err
}

// Mint loads the token mint at addr.
func (e *Engine) Mint(addr types.Address) (*token.Mint, error) {
	var out *token.Mint
	err := e.view(func(st State) (err error) {
		out, err = token.GetMint(st, addr)
		return err
	})
	return out, err
}

// RentExemptMinimum returns the deposit a record of size bytes locks.
func (e *Engine) RentExemptMinimum(size int) uint64 {
	if e == nil || e.state == nil {
		return 0
	}
	return e.state.Rent().MinimumBalance(size)
}
