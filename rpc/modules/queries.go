package modules

import (
	"encoding/json"

	"marketledger/core/types"
	"marketledger/native/market"
)

type deriveParams struct {
	Kind string `json:"kind"`
	market.DeriveArgs
}

type rentParams struct {
	Size int `json:"size"`
}

type balanceResult struct {
	Address types.Address `json:"address"`
	Balance uint64        `json:"balance"`
}

// Config returns the marketplace config singleton.
func (m *MarketModule) Config(_ types.Address, _ json.RawMessage) (interface{}, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	return m.currentConfig()
}

// Whitelist returns the token whitelist.
func (m *MarketModule) Whitelist(_ types.Address, _ json.RawMessage) (interface{}, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	wl, err := m.engine.Whitelist()
	if err != nil {
		return nil, FromMarketError(err)
	}
	return wl, nil
}

func (m *MarketModule) lookup(raw json.RawMessage, load func(types.Address) (interface{}, error)) (interface{}, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	var params addressParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	out, err := load(params.Address)
	if err != nil {
		return nil, FromMarketError(err)
	}
	return out, nil
}

// Listing loads a listing record.
func (m *MarketModule) Listing(_ types.Address, raw json.RawMessage) (interface{}, *ModuleError) {
	return m.lookup(raw, func(addr types.Address) (interface{}, error) { return m.engine.Listing(addr) })
}

// Order loads an order record.
func (m *MarketModule) Order(_ types.Address, raw json.RawMessage) (interface{}, *ModuleError) {
	return m.lookup(raw, func(addr types.Address) (interface{}, error) { return m.engine.Order(addr) })
}

// Plan loads a subscription plan.
func (m *MarketModule) Plan(_ types.Address, raw json.RawMessage) (interface{}, *ModuleError) {
	return m.lookup(raw, func(addr types.Address) (interface{}, error) { return m.engine.Plan(addr) })
}

// Instance loads a subscription instance.
func (m *MarketModule) Instance(_ types.Address, raw json.RawMessage) (interface{}, *ModuleError) {
	return m.lookup(raw, func(addr types.Address) (interface{}, error) { return m.engine.Instance(addr) })
}

// Contest loads a contest record.
func (m *MarketModule) Contest(_ types.Address, raw json.RawMessage) (interface{}, *ModuleError) {
	return m.lookup(raw, func(addr types.Address) (interface{}, error) { return m.engine.Contest(addr) })
}

// Entry loads a contest entry.
func (m *MarketModule) Entry(_ types.Address, raw json.RawMessage) (interface{}, *ModuleError) {
	return m.lookup(raw, func(addr types.Address) (interface{}, error) { return m.engine.Entry(addr) })
}

// Balance returns the native balance of an address.
func (m *MarketModule) Balance(_ types.Address, raw json.RawMessage) (interface{}, *ModuleError) {
	return m.lookup(raw, func(addr types.Address) (interface{}, error) {
		bal, err := m.engine.Balance(addr)
		if err != nil {
			return nil, err
		}
		return balanceResult{Address: addr, Balance: bal}, nil
	})
}

// TokenAccount loads a token account.
func (m *MarketModule) TokenAccount(_ types.Address, raw json.RawMessage) (interface{}, *ModuleError) {
	return m.lookup(raw, func(addr types.Address) (interface{}, error) { return m.engine.TokenAccount(addr) })
}

// Mint loads a token mint.
func (m *MarketModule) Mint(_ types.Address, raw json.RawMessage) (interface{}, *ModuleError) {
	return m.lookup(raw, func(addr types.Address) (interface{}, error) { return m.engine.Mint(addr) })
}

// RentExemptMinimum reports the deposit a record of the given size locks.
func (m *MarketModule) RentExemptMinimum(_ types.Address, raw json.RawMessage) (interface{}, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	var params rentParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	if params.Size < 0 {
		return nil, invalidParams("size must not be negative", params.Size)
	}
	return m.engine.RentExemptMinimum(params.Size), nil
}

// Now reports the ledger clock.
func (m *MarketModule) Now(_ types.Address, _ json.RawMessage) (interface{}, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	return m.engine.Now(), nil
}

// DeriveAddress computes a record address without touching state.
func (m *MarketModule) DeriveAddress(_ types.Address, raw json.RawMessage) (interface{}, *ModuleError) {
	var params deriveParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	d, err := market.DeriveRecord(params.Kind, params.DeriveArgs)
	if err != nil {
		return nil, invalidParams(err.Error(), params.Kind)
	}
	return d, nil
}
