package modules

import (
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"marketledger/core/types"
	"marketledger/native/market"
)

// MarketModule exposes the marketplace engine over JSON-RPC. Every mutating
// method acts on behalf of the authenticated caller.
type MarketModule struct {
	engine *market.Engine
}

// NewMarketModule constructs the marketplace RPC module.
func NewMarketModule(engine *market.Engine) *MarketModule {
	return &MarketModule{engine: engine}
}

var errMarketOffline = &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: "market module not initialised"}

func (m *MarketModule) ready() *ModuleError {
	if m == nil || m.engine == nil {
		return errMarketOffline
	}
	return nil
}

type initializeConfigParams struct {
	FeeBps uint16 `json:"feeBps"`
}

type updateWhitelistParams struct {
	Mint types.Address `json:"mint"`
	Add  bool          `json:"add"`
}

type withdrawNativeParams struct {
	Vault       market.VaultKind `json:"vault"`
	Destination types.Address    `json:"destination"`
	Amount      uint64           `json:"amount"`
}

type withdrawTokenParams struct {
	Vault market.VaultKind `json:"vault"`
	market.WithdrawTokenParams
}

type createListingParams struct {
	Seller          types.Address `json:"seller"`
	Seed            types.Hash    `json:"seed"`
	PayloadHash     types.Hash    `json:"payloadHash"`
	Price           uint64        `json:"price"`
	Currency        types.Address `json:"currency"`
	SellerSignature hexutil.Bytes `json:"sellerSignature"`
}

type addressParams struct {
	Address types.Address `json:"address"`
}

type cancelListingParams struct {
	Listing types.Address `json:"listing"`
}

type purchaseParams struct {
	Listing       types.Address                 `json:"listing"`
	ExpectedPrice uint64                        `json:"expectedPrice"`
	TokenAccounts *market.PurchaseTokenAccounts `json:"tokenAccounts,omitempty"`
}

type finalizeParams struct {
	Order         types.Address                 `json:"order"`
	TokenAccounts *market.FinalizeTokenAccounts `json:"tokenAccounts,omitempty"`
}

type subscriptionStatusParams struct {
	Plan   types.Address `json:"plan"`
	Active bool          `json:"active"`
}

type subscriptionPaymentParams struct {
	market.SubscriptionPaymentParams
	TokenAccounts *market.SubscriptionTokenAccounts `json:"tokenAccounts,omitempty"`
}

// InitializeConfig creates the marketplace singletons with the caller as
// authority.
func (m *MarketModule) InitializeConfig(caller types.Address, raw json.RawMessage) (interface{}, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	var params initializeConfigParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	cfg, err := m.engine.InitializeConfig(caller, params.FeeBps)
	if err != nil {
		return nil, FromMarketError(err)
	}
	return cfg, nil
}

// SetAdminConfig replaces the fee rate and vault addresses.
func (m *MarketModule) SetAdminConfig(caller types.Address, raw json.RawMessage) (interface{}, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	var params market.AdminConfigInput
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	if err := m.engine.SetAdminConfig(caller, params); err != nil {
		return nil, FromMarketError(err)
	}
	return m.currentConfig()
}

func (m *MarketModule) currentConfig() (interface{}, *ModuleError) {
	cfg, err := m.engine.Config()
	if err != nil {
		return nil, FromMarketError(err)
	}
	return cfg, nil
}

// UpdateWhitelist adds or removes a token mint.
func (m *MarketModule) UpdateWhitelist(caller types.Address, raw json.RawMessage) (interface{}, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	var params updateWhitelistParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	if err := m.engine.UpdateWhitelist(caller, params.Mint, params.Add); err != nil {
		return nil, FromMarketError(err)
	}
	wl, err := m.engine.Whitelist()
	if err != nil {
		return nil, FromMarketError(err)
	}
	return wl, nil
}

// WithdrawNative moves native balance out of the treasury or reward vault.
func (m *MarketModule) WithdrawNative(caller types.Address, raw json.RawMessage) (interface{}, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	var params withdrawNativeParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	if params.Vault != market.VaultTreasury && params.Vault != market.VaultReward {
		return nil, invalidParams("vault must be treasury or reward", params.Vault)
	}
	if err := m.engine.WithdrawNative(caller, params.Vault, params.Destination, params.Amount); err != nil {
		return nil, FromMarketError(err)
	}
	return true, nil
}

// WithdrawToken moves tokens out of a vault-owned token account.
func (m *MarketModule) WithdrawToken(caller types.Address, raw json.RawMessage) (interface{}, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	var params withdrawTokenParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	if params.Vault != market.VaultTreasury && params.Vault != market.VaultReward {
		return nil, invalidParams("vault must be treasury or reward", params.Vault)
	}
	if err := m.engine.WithdrawToken(caller, params.Vault, params.WithdrawTokenParams); err != nil {
		return nil, FromMarketError(err)
	}
	return true, nil
}

// CreateListing records a seller-signed listing submitted by the authority.
func (m *MarketModule) CreateListing(caller types.Address, raw json.RawMessage) (interface{}, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	var params createListingParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	listing, err := m.engine.CreateListing(caller, market.CreateListingParams{
		Seller:          params.Seller,
		Seed:            params.Seed,
		PayloadHash:     params.PayloadHash,
		Price:           params.Price,
		Currency:        params.Currency,
		SellerSignature: params.SellerSignature,
	})
	if err != nil {
		return nil, FromMarketError(err)
	}
	return listing, nil
}

// CancelListing withdraws one of the caller's active listings.
func (m *MarketModule) CancelListing(caller types.Address, raw json.RawMessage) (interface{}, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	var params cancelListingParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	if err := m.engine.CancelListing(caller, params.Listing); err != nil {
		return nil, FromMarketError(err)
	}
	return true, nil
}

// PurchaseListing buys a listing for the caller.
func (m *MarketModule) PurchaseListing(caller types.Address, raw json.RawMessage) (interface{}, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	var params purchaseParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	order, err := m.engine.PurchaseListing(caller, params.Listing, params.ExpectedPrice, params.TokenAccounts)
	if err != nil {
		return nil, FromMarketError(err)
	}
	return order, nil
}

// FinalizeOrder settles a funded order.
func (m *MarketModule) FinalizeOrder(caller types.Address, raw json.RawMessage) (interface{}, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	var params finalizeParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	if err := m.engine.FinalizeOrder(caller, params.Order, params.TokenAccounts); err != nil {
		return nil, FromMarketError(err)
	}
	return true, nil
}

// ConfigureSubscription creates a plan owned by the caller.
func (m *MarketModule) ConfigureSubscription(caller types.Address, raw json.RawMessage) (interface{}, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	var params market.ConfigureSubscriptionParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	plan, err := m.engine.ConfigureSubscription(caller, params)
	if err != nil {
		return nil, FromMarketError(err)
	}
	return plan, nil
}

// SetSubscriptionActive pauses or resumes one of the caller's plans.
func (m *MarketModule) SetSubscriptionActive(caller types.Address, raw json.RawMessage) (interface{}, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	var params subscriptionStatusParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	if err := m.engine.SetSubscriptionActive(caller, params.Plan, params.Active); err != nil {
		return nil, FromMarketError(err)
	}
	plan, err := m.engine.Plan(params.Plan)
	if err != nil {
		return nil, FromMarketError(err)
	}
	return plan, nil
}

// ProcessSubscriptionPayment charges the caller one period of a plan.
func (m *MarketModule) ProcessSubscriptionPayment(caller types.Address, raw json.RawMessage) (interface{}, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	var params subscriptionPaymentParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	inst, err := m.engine.ProcessSubscriptionPayment(caller, params.SubscriptionPaymentParams, params.TokenAccounts)
	if err != nil {
		return nil, FromMarketError(err)
	}
	return inst, nil
}

// CreateContest opens a contest created by the caller.
func (m *MarketModule) CreateContest(caller types.Address, raw json.RawMessage) (interface{}, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	var params market.CreateContestParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	contest, err := m.engine.CreateContest(caller, params)
	if err != nil {
		return nil, FromMarketError(err)
	}
	return contest, nil
}

// SubmitContestEntry enters the caller into a contest.
func (m *MarketModule) SubmitContestEntry(caller types.Address, raw json.RawMessage) (interface{}, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	var params market.SubmitEntryParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	entry, err := m.engine.SubmitContestEntry(caller, params)
	if err != nil {
		return nil, FromMarketError(err)
	}
	return entry, nil
}

// ResolveContest pays out a contest.
func (m *MarketModule) ResolveContest(caller types.Address, raw json.RawMessage) (interface{}, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	var params market.ResolveContestParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	if err := m.engine.ResolveContest(caller, params); err != nil {
		return nil, FromMarketError(err)
	}
	return true, nil
}
