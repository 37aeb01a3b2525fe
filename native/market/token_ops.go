package market

import (
	"fmt"
	"strconv"

	"marketledger/core/types"
	"marketledger/native/token"
	"marketledger/native/vault"
)

// requireIdentity rejects signers that are engine-owned records. Records only
// ever sign through their derivation.
func requireIdentity(st State, signer types.Address) error {
	exists, err := st.RecordExists(signer)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s is a ledger record", ErrInvalidAuthority, signer.Hex())
	}
	return nil
}

// TransferNative moves native balance between two identities.
func (e *Engine) TransferNative(from, to types.Address, amount uint64) error {
	return e.execute("transfer_native", func(st State, ctx *opContext) error {
		if amount == 0 {
			return ErrAmountMustBePositive
		}
		if err := requireIdentity(st, from); err != nil {
			return err
		}
		if err := vault.Transfer(st, from, to, amount); err != nil {
			return err
		}
		ctx.emit(newNativeTransferEvent(from, to, amount))
		return nil
	})
}

// CreateMint registers a token mint controlled by authority.
func (e *Engine) CreateMint(authority types.Address, seed types.Hash, decimals uint8) (*token.Mint, error) {
	var out *token.Mint
	err := e.execute("create_mint", func(st State, ctx *opContext) error {
		mint, err := token.CreateMint(st, authority, authority, seed, decimals)
		if err != nil {
			return err
		}
		out = mint
		ctx.emit(newEvent(EventTypeMintCreated, map[string]string{
			"mint":      mint.Address.Hex(),
			"authority": mint.Authority.Hex(),
			"decimals":  strconv.Itoa(int(mint.Decimals)),
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTokenAccount opens the canonical token account for owner and mint.
// Owner may be a record address that does not exist yet, such as an order
// about to be purchased.
func (e *Engine) CreateTokenAccount(payer, owner, mint types.Address) (*token.Account, error) {
	var out *token.Account
	err := e.execute("create_token_account", func(st State, ctx *opContext) error {
		acc, err := token.CreateAccount(st, payer, owner, mint)
		if err != nil {
			return err
		}
		out = acc
		ctx.emit(newEvent(EventTypeTokenAccountCreated, map[string]string{
			"account": acc.Address.Hex(),
			"owner":   acc.Owner.Hex(),
			"mint":    acc.Mint.Hex(),
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MintTokens issues new tokens into account.
func (e *Engine) MintTokens(authority, account types.Address, amount uint64) error {
	return e.execute("mint_to", func(st State, ctx *opContext) error {
		if amount == 0 {
			return ErrAmountMustBePositive
		}
		if err := token.MintTo(st, token.SignerAuthority(authority), account, amount); err != nil {
			return err
		}
		ctx.emit(newEvent(EventTypeTokensMinted, map[string]string{
			"account": account.Hex(),
			"amount":  u64(amount),
		}))
		return nil
	})
}

// TransferTokens moves tokens between two accounts owned by owner and any
// holder respectively.
func (e *Engine) TransferTokens(owner, from, to types.Address, amount uint64) error {
	return e.execute("transfer_tokens", func(st State, ctx *opContext) error {
		if amount == 0 {
			return ErrAmountMustBePositive
		}
		if err := requireIdentity(st, owner); err != nil {
			return err
		}
		if err := token.Transfer(st, from, to, token.SignerAuthority(owner), amount); err != nil {
			return err
		}
		ctx.emit(newEvent(EventTypeTokensTransferred, map[string]string{
			"from":   from.Hex(),
			"to":     to.Hex(),
			"amount": u64(amount),
		}))
		return nil
	})
}

// CloseTokenAccount destroys an empty token account owned by owner.
func (e *Engine) CloseTokenAccount(owner, account, destination types.Address) error {
	return e.execute("close_token_account", func(st State, ctx *opContext) error {
		if err := requireIdentity(st, owner); err != nil {
			return err
		}
		refunded, err := token.CloseAccount(st, account, destination, token.SignerAuthority(owner))
		if err != nil {
			return err
		}
		ctx.emit(newEvent(EventTypeTokenAccountClosed, map[string]string{
			"account":     account.Hex(),
			"destination": destination.Hex(),
			"refunded":    u64(refunded),
		}))
		return nil
	})
}
