package market

import (
	"fmt"

	"marketledger/core/types"
	"marketledger/crypto"
	"marketledger/native/vault"
)

// CreateListingParams describes a listing submitted by the marketplace
// authority on behalf of a seller.
type CreateListingParams struct {
	Seller          types.Address `json:"seller"`
	Seed            types.Hash    `json:"seed"`
	PayloadHash     types.Hash    `json:"payloadHash"`
	Price           uint64        `json:"price"`
	Currency        types.Address `json:"currency"`
	SellerSignature []byte        `json:"sellerSignature"`
}

// ListingAuthorizationMessage returns the bytes a seller signs to authorize a
// listing.
func ListingAuthorizationMessage(seed, payloadHash types.Hash, price uint64, currency types.Address) []byte {
	digest := crypto.ListingAuthorizationDigest(seed, payloadHash, price, currency)
	return digest[:]
}

// requireAllowedCurrency passes the native currency without consulting the
// whitelist and requires every other currency to be whitelisted.
func requireAllowedCurrency(st State, cfg Config, currency types.Address) error {
	if currency.IsNative() {
		return nil
	}
	wl, err := loadWhitelist(st, cfg)
	if err != nil {
		return err
	}
	if !wl.Contains(currency) {
		return fmt.Errorf("%w: %s", ErrTokenNotWhitelisted, currency.Hex())
	}
	return nil
}

// CreateListing records a seller-authorized listing. The authority submits it
// and pays the storage deposit.
func (e *Engine) CreateListing(authority types.Address, params CreateListingParams) (*Listing, error) {
	var out *Listing
	err := e.execute("create_listing", func(st State, ctx *opContext) error {
		cfg, err := loadConfig(st)
		if err != nil {
			return err
		}
		if err := requireAuthority(cfg, authority); err != nil {
			return err
		}
		if params.Price == 0 {
			return ErrAmountMustBePositive
		}
		message := ListingAuthorizationMessage(params.Seed, params.PayloadHash, params.Price, params.Currency)
		if err := e.verifier.Verify(params.Seller, message, params.SellerSignature); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidOffchainSignature, err)
		}
		if err := requireAllowedCurrency(st, cfg, params.Currency); err != nil {
			return err
		}
		d, err := ListingAddress(params.Seller, params.Seed)
		if err != nil {
			return err
		}
		listing := &Listing{
			Address:     d.Address,
			Seller:      params.Seller,
			Currency:    params.Currency,
			Price:       params.Price,
			Seed:        params.Seed,
			PayloadHash: params.PayloadHash,
			Active:      true,
			Bump:        d.Bump,
		}
		if err := createRecord(st, authority, listing.Address, KindListing, ListingSize, listingLayout(listing)); err != nil {
			return err
		}
		out = listing
		ctx.emit(NewListingCreatedEvent(listing))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CancelListing withdraws an active listing. The record is destroyed and its
// deposit goes to the treasury.
func (e *Engine) CancelListing(seller, listingAddr types.Address) error {
	return e.execute("cancel_listing", func(st State, ctx *opContext) error {
		cfg, err := loadConfig(st)
		if err != nil {
			return err
		}
		listing, err := loadListing(st, listingAddr)
		if err != nil {
			return err
		}
		if listing.Seller != seller {
			return fmt.Errorf("%w: %s is not the seller", ErrInvalidAuthority, seller.Hex())
		}
		if !listing.Active {
			return fmt.Errorf("%w: %s", ErrListingNotActive, listingAddr.Hex())
		}
		listing.Active = false
		refunded, err := vault.CloseRecord(st, listing.Address, cfg.Treasury)
		if err != nil {
			return err
		}
		ctx.emit(NewListingCancelledEvent(listing, refunded, cfg.Treasury))
		return nil
	})
}
