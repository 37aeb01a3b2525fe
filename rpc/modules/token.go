package modules

import (
	"encoding/json"

	"marketledger/core/types"
)

type nativeTransferParams struct {
	To     types.Address `json:"to"`
	Amount uint64        `json:"amount"`
}

type createMintParams struct {
	Seed     types.Hash `json:"seed"`
	Decimals uint8      `json:"decimals"`
}

type createTokenAccountParams struct {
	Owner types.Address `json:"owner"`
	Mint  types.Address `json:"mint"`
}

type mintToParams struct {
	Account types.Address `json:"account"`
	Amount  uint64        `json:"amount"`
}

type tokenTransferParams struct {
	From   types.Address `json:"from"`
	To     types.Address `json:"to"`
	Amount uint64        `json:"amount"`
}

type closeAccountParams struct {
	Account     types.Address `json:"account"`
	Destination types.Address `json:"destination"`
}

// TransferNative moves native balance from the caller.
func (m *MarketModule) TransferNative(caller types.Address, raw json.RawMessage) (interface{}, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	var params nativeTransferParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	if err := m.engine.TransferNative(caller, params.To, params.Amount); err != nil {
		return nil, FromMarketError(err)
	}
	return true, nil
}

// CreateMint registers a mint controlled by the caller.
func (m *MarketModule) CreateMint(caller types.Address, raw json.RawMessage) (interface{}, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	var params createMintParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	mint, err := m.engine.CreateMint(caller, params.Seed, params.Decimals)
	if err != nil {
		return nil, FromMarketError(err)
	}
	return mint, nil
}

// CreateTokenAccount opens a token account paid for by the caller.
func (m *MarketModule) CreateTokenAccount(caller types.Address, raw json.RawMessage) (interface{}, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	var params createTokenAccountParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	acct, err := m.engine.CreateTokenAccount(caller, params.Owner, params.Mint)
	if err != nil {
		return nil, FromMarketError(err)
	}
	return acct, nil
}

// MintTokens issues new supply; the caller must be the mint authority.
func (m *MarketModule) MintTokens(caller types.Address, raw json.RawMessage) (interface{}, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	var params mintToParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	if err := m.engine.MintTokens(caller, params.Account, params.Amount); err != nil {
		return nil, FromMarketError(err)
	}
	return true, nil
}

// TransferTokens moves tokens out of an account the caller owns.
func (m *MarketModule) TransferTokens(caller types.Address, raw json.RawMessage) (interface{}, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	var params tokenTransferParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	if err := m.engine.TransferTokens(caller, params.From, params.To, params.Amount); err != nil {
		return nil, FromMarketError(err)
	}
	return true, nil
}

// CloseTokenAccount closes an empty account the caller owns.
func (m *MarketModule) CloseTokenAccount(caller types.Address, raw json.RawMessage) (interface{}, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	var params closeAccountParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	if err := m.engine.CloseTokenAccount(caller, params.Account, params.Destination); err != nil {
		return nil, FromMarketError(err)
	}
	return true, nil
}
