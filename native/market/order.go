package market

import (
	"fmt"

	"marketledger/core/types"
	"marketledger/native/fees"
	"marketledger/native/token"
	"marketledger/native/vault"
)

// PurchaseListing buys an active listing at exactly expectedPrice. The price
// moves from the buyer into escrow held by the new order, and the listing is
// deactivated but kept for provenance. Token-priced listings require tokens.
func (e *Engine) PurchaseListing(buyer, listingAddr types.Address, expectedPrice uint64, tokens *PurchaseTokenAccounts) (*Order, error) {
	var out *Order
	err := e.execute("purchase_listing", func(st State, ctx *opContext) error {
		cfg, err := loadConfig(st)
		if err != nil {
			return err
		}
		listing, err := loadListing(st, listingAddr)
		if err != nil {
			return err
		}
		if !listing.Active {
			return fmt.Errorf("%w: %s", ErrListingNotActive, listingAddr.Hex())
		}
		if listing.Price != expectedPrice {
			return fmt.Errorf("%w: listing price %d, expected %d", ErrPriceMismatch, listing.Price, expectedPrice)
		}
		d, err := OrderAddress(listing.Address, buyer)
		if err != nil {
			return err
		}
		order := &Order{
			Address:    d.Address,
			Buyer:      buyer,
			Seller:     listing.Seller,
			Listing:    listing.Address,
			Currency:   listing.Currency,
			AmountPaid: listing.Price,
			Bump:       d.Bump,
		}
		if err := createRecord(st, buyer, order.Address, KindOrder, OrderSize, orderLayout(order)); err != nil {
			return err
		}
		if listing.Currency.IsNative() {
			if err := vault.Transfer(st, buyer, order.Address, listing.Price); err != nil {
				return err
			}
		} else if err := purchaseWithTokens(st, cfg, listing, order, tokens); err != nil {
			return err
		}
		listing.Active = false
		if err := storeListing(st, listing); err != nil {
			return err
		}
		out = order
		ctx.emit(NewOrderCreatedEvent(order))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func purchaseWithTokens(st State, cfg Config, listing *Listing, order *Order, tokens *PurchaseTokenAccounts) error {
	if tokens == nil {
		return ErrMissingTokenAccounts
	}
	if err := checkSideTableMint(tokens.Mint, listing.Currency); err != nil {
		return err
	}
	_, err := validateTokenAccounts(st, listing.Currency, tokens.Program,
		expectedTokenAccount{role: "buyer", address: tokens.Buyer, owner: order.Buyer},
		expectedTokenAccount{role: "order", address: tokens.Order, owner: order.Address},
		expectedTokenAccount{role: "seller", address: tokens.Seller, owner: listing.Seller},
		expectedTokenAccount{role: "treasury", address: tokens.Treasury, owner: cfg.Treasury},
	)
	if err != nil {
		return err
	}
	return token.Transfer(st, tokens.Buyer, tokens.Order, token.SignerAuthority(order.Buyer), listing.Price)
}

// FinalizeOrder settles a funded order: the fee goes to the treasury, the
// remainder to the seller, and the order record is destroyed with its deposit
// returned to the buyer. Only the marketplace authority may settle.
func (e *Engine) FinalizeOrder(authority, orderAddr types.Address, tokens *FinalizeTokenAccounts) error {
	return e.execute("finalize_order", func(st State, ctx *opContext) error {
		cfg, err := loadConfig(st)
		if err != nil {
			return err
		}
		if err := requireAuthority(cfg, authority); err != nil {
			return err
		}
		order, err := loadOrder(st, orderAddr)
		if err != nil {
			return err
		}
		if order.Settled {
			return fmt.Errorf("%w: %s", ErrOrderAlreadySettled, orderAddr.Hex())
		}
		split, err := fees.Apply(fees.ApplyInput{Gross: order.AmountPaid, FeeBps: cfg.FeeBps})
		if err != nil {
			return err
		}
		if order.Currency.IsNative() {
			escrow, err := vault.Balance(st, order.Address)
			if err != nil {
				return err
			}
			if escrow < order.AmountPaid {
				return fmt.Errorf("%w: escrow holds %d, order paid %d", ErrEscrowBalanceTooLow, escrow, order.AmountPaid)
			}
			if err := vault.Transfer(st, order.Address, cfg.Treasury, split.Fee); err != nil {
				return err
			}
			if err := vault.Transfer(st, order.Address, order.Seller, split.Net); err != nil {
				return err
			}
		} else if err := finalizeWithTokens(st, cfg, order, split, tokens); err != nil {
			return err
		}
		order.Settled = true
		if _, err := vault.CloseRecord(st, order.Address, order.Buyer); err != nil {
			return err
		}
		ctx.emit(NewOrderSettledEvent(order, split.Net, split.Fee))
		e.metrics.RecordSettlement("order", assetPath(order.Currency), order.AmountPaid, split.Fee)
		return nil
	})
}

func finalizeWithTokens(st State, cfg Config, order *Order, split fees.ApplyResult, tokens *FinalizeTokenAccounts) error {
	if tokens == nil {
		return ErrMissingTokenAccounts
	}
	if err := checkSideTableMint(tokens.Mint, order.Currency); err != nil {
		return err
	}
	expected := []expectedTokenAccount{
		{role: "order", address: tokens.Order, owner: order.Address},
		{role: "seller", address: tokens.Seller, owner: order.Seller},
		{role: "treasury", address: tokens.Treasury, owner: cfg.Treasury},
	}
	if !tokens.Buyer.IsZero() {
		expected = append(expected, expectedTokenAccount{role: "buyer", address: tokens.Buyer, owner: order.Buyer})
	}
	accounts, err := validateTokenAccounts(st, order.Currency, tokens.Program, expected...)
	if err != nil {
		return err
	}
	required := split.Net + split.Fee
	if required < split.Net {
		return ErrMathOverflow
	}
	held := accounts["order"].Amount
	if held < required {
		return fmt.Errorf("%w: escrow token account holds %d, settlement needs %d", ErrEscrowBalanceTooLow, held, required)
	}
	surplus := held - required
	if surplus > 0 && tokens.Buyer.IsZero() {
		return fmt.Errorf("%w: escrow token account holds %d over the order amount and no buyer account was named",
			ErrTokenAccountNotEmpty, surplus)
	}
	signer := token.DerivedAuthority(TagOrder, order.Bump, order.Listing[:], order.Buyer[:])
	if split.Net > 0 {
		if err := token.Transfer(st, tokens.Order, tokens.Seller, signer, split.Net); err != nil {
			return err
		}
	}
	if split.Fee > 0 {
		if err := token.Transfer(st, tokens.Order, tokens.Treasury, signer, split.Fee); err != nil {
			return err
		}
	}
	if surplus > 0 {
		if err := token.Transfer(st, tokens.Order, tokens.Buyer, signer, surplus); err != nil {
			return err
		}
	}
	// The escrow account is closed last so every payout still has a source.
	_, err = token.CloseAccount(st, tokens.Order, order.Buyer, signer)
	return err
}
