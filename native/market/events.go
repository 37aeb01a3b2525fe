package market

import (
	"strconv"

	"marketledger/core/types"
)

const (
	EventTypeConfigInitialized      = "market.config.initialized"
	EventTypeConfigUpdated          = "market.config.updated"
	EventTypeWhitelistUpdated       = "market.whitelist.updated"
	EventTypeVaultWithdrawn         = "market.vault.withdrawn"
	EventTypeListingCreated         = "market.listing.created"
	EventTypeListingCancelled       = "market.listing.cancelled"
	EventTypeOrderCreated           = "market.order.created"
	EventTypeOrderSettled           = "market.order.settled"
	EventTypeSubscriptionConfigured = "market.subscription.configured"
	EventTypeSubscriptionStatus     = "market.subscription.status"
	EventTypeSubscriptionPaid       = "market.subscription.paid"
	EventTypeContestCreated         = "market.contest.created"
	EventTypeContestEntrySubmitted  = "market.contest.entry_submitted"
	EventTypeContestResolved        = "market.contest.resolved"
	EventTypeMintCreated            = "token.mint.created"
	EventTypeTokenAccountCreated    = "token.account.created"
	EventTypeTokensMinted           = "token.minted"
	EventTypeTokensTransferred      = "token.transferred"
	EventTypeTokenAccountClosed     = "token.account.closed"
	EventTypeNativeTransferred      = "native.transferred"
)

func u64(v uint64) string { return strconv.FormatUint(v, 10) }
func i64(v int64) string  { return strconv.FormatInt(v, 10) }

func newEvent(eventType string, attrs map[string]string) *types.Event {
	return &types.Event{Type: eventType, Attributes: attrs}
}

// NewConfigInitializedEvent reports the marketplace singletons created at
// initialization.
func NewConfigInitializedEvent(cfg Config) *types.Event {
	return newEvent(EventTypeConfigInitialized, configAttrs(cfg))
}

// NewConfigUpdatedEvent reports an administrative config change.
func NewConfigUpdatedEvent(cfg Config) *types.Event {
	return newEvent(EventTypeConfigUpdated, configAttrs(cfg))
}

func configAttrs(cfg Config) map[string]string {
	return map[string]string{
		"config":      cfg.Address.Hex(),
		"authority":   cfg.Authority.Hex(),
		"treasury":    cfg.Treasury.Hex(),
		"rewardVault": cfg.RewardVault.Hex(),
		"whitelist":   cfg.Whitelist.Hex(),
		"feeBps":      strconv.Itoa(int(cfg.FeeBps)),
	}
}

// NewWhitelistUpdatedEvent reports a whitelist addition or removal.
func NewWhitelistUpdatedEvent(wl *Whitelist, mint types.Address, added bool) *types.Event {
	return newEvent(EventTypeWhitelistUpdated, map[string]string{
		"whitelist": wl.Address.Hex(),
		"mint":      mint.Hex(),
		"added":     strconv.FormatBool(added),
		"size":      strconv.Itoa(len(wl.AllowedMints)),
	})
}

// NewVaultWithdrawnEvent reports an administrator withdrawal.
func NewVaultWithdrawnEvent(vaultAddr, source, destination, currency types.Address, amount uint64) *types.Event {
	return newEvent(EventTypeVaultWithdrawn, map[string]string{
		"vault":       vaultAddr.Hex(),
		"source":      source.Hex(),
		"destination": destination.Hex(),
		"currency":    currency.Hex(),
		"amount":      u64(amount),
	})
}

// NewListingCreatedEvent returns the payload for a new listing.
func NewListingCreatedEvent(l *Listing) *types.Event {
	return newEvent(EventTypeListingCreated, listingAttrs(l))
}

// NewListingCancelledEvent returns the payload for a cancelled listing.
func NewListingCancelledEvent(l *Listing, refunded uint64, beneficiary types.Address) *types.Event {
	attrs := listingAttrs(l)
	attrs["refunded"] = u64(refunded)
	attrs["beneficiary"] = beneficiary.Hex()
	return newEvent(EventTypeListingCancelled, attrs)
}

func listingAttrs(l *Listing) map[string]string {
	return map[string]string{
		"listing":     l.Address.Hex(),
		"seller":      l.Seller.Hex(),
		"currency":    l.Currency.Hex(),
		"price":       u64(l.Price),
		"seed":        l.Seed.Hex(),
		"payloadHash": l.PayloadHash.Hex(),
		"active":      strconv.FormatBool(l.Active),
	}
}

// NewOrderCreatedEvent returns the payload for a funded order.
func NewOrderCreatedEvent(o *Order) *types.Event {
	return newEvent(EventTypeOrderCreated, orderAttrs(o))
}

// NewOrderSettledEvent returns the payload for a settled order and its split.
func NewOrderSettledEvent(o *Order, sellerAmount, fee uint64) *types.Event {
	attrs := orderAttrs(o)
	attrs["sellerAmount"] = u64(sellerAmount)
	attrs["fee"] = u64(fee)
	return newEvent(EventTypeOrderSettled, attrs)
}

func orderAttrs(o *Order) map[string]string {
	return map[string]string{
		"order":      o.Address.Hex(),
		"listing":    o.Listing.Hex(),
		"buyer":      o.Buyer.Hex(),
		"seller":     o.Seller.Hex(),
		"currency":   o.Currency.Hex(),
		"amountPaid": u64(o.AmountPaid),
		"settled":    strconv.FormatBool(o.Settled),
	}
}

// NewSubscriptionConfiguredEvent returns the payload for a new plan.
func NewSubscriptionConfiguredEvent(p *Plan) *types.Event {
	return newEvent(EventTypeSubscriptionConfigured, planAttrs(p))
}

// NewSubscriptionStatusEvent returns the payload for a plan activation change.
func NewSubscriptionStatusEvent(p *Plan) *types.Event {
	return newEvent(EventTypeSubscriptionStatus, planAttrs(p))
}

func planAttrs(p *Plan) map[string]string {
	return map[string]string{
		"plan":           p.Address.Hex(),
		"creator":        p.Creator.Hex(),
		"currency":       p.Currency.Hex(),
		"pricePerPeriod": u64(p.PricePerPeriod),
		"periodSeconds":  i64(p.PeriodSeconds),
		"active":         strconv.FormatBool(p.Active),
	}
}

// NewSubscriptionPaidEvent returns the payload for a processed payment.
func NewSubscriptionPaidEvent(p *Plan, inst *Instance, creatorAmount, fee uint64) *types.Event {
	return newEvent(EventTypeSubscriptionPaid, map[string]string{
		"plan":          p.Address.Hex(),
		"instance":      inst.Address.Hex(),
		"subscriber":    inst.Subscriber.Hex(),
		"creator":       p.Creator.Hex(),
		"currency":      p.Currency.Hex(),
		"creatorAmount": u64(creatorAmount),
		"fee":           u64(fee),
		"paidAt":        i64(inst.LastPaymentAt),
	})
}

// NewContestCreatedEvent returns the payload for a funded contest.
func NewContestCreatedEvent(c *Contest) *types.Event {
	return newEvent(EventTypeContestCreated, map[string]string{
		"contest":    c.Address.Hex(),
		"creator":    c.Creator.Hex(),
		"rewardPool": c.RewardPool.Hex(),
		"deadline":   i64(c.Deadline),
		"prize":      u64(c.Prize),
	})
}

// NewContestEntrySubmittedEvent returns the payload for a new entry.
func NewContestEntrySubmittedEvent(en *Entry) *types.Event {
	return newEvent(EventTypeContestEntrySubmitted, map[string]string{
		"contest":     en.Contest.Hex(),
		"entry":       en.Address.Hex(),
		"contestant":  en.Contestant.Hex(),
		"payloadHash": en.PayloadHash.Hex(),
	})
}

// NewContestResolvedEvent returns the payload for a resolved contest.
func NewContestResolvedEvent(c *Contest, en *Entry, prize uint64) *types.Event {
	return newEvent(EventTypeContestResolved, map[string]string{
		"contest": c.Address.Hex(),
		"entry":   en.Address.Hex(),
		"winner":  en.Contestant.Hex(),
		"score":   u64(en.Score),
		"prize":   u64(prize),
	})
}

func newNativeTransferEvent(from, to types.Address, amount uint64) *types.Event {
	return newEvent(EventTypeNativeTransferred, map[string]string{
		"from":   from.Hex(),
		"to":     to.Hex(),
		"amount": u64(amount),
	})
}
