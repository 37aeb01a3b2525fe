package rpc

import (
	"encoding/json"

	"marketledger/core/types"
	"marketledger/rpc/modules"
)

type handlerFunc func(caller types.Address, raw json.RawMessage) (interface{}, *modules.ModuleError)

type route struct {
	module  string
	handler handlerFunc
	auth    bool
}

func buildRoutes(market *modules.MarketModule, events *modules.EventsModule) map[string]route {
	write := func(fn handlerFunc) route { return route{module: "market", handler: fn, auth: true} }
	read := func(fn handlerFunc) route { return route{module: "market", handler: fn} }
	tokenWrite := func(fn handlerFunc) route { return route{module: "token", handler: fn, auth: true} }
	tokenRead := func(fn handlerFunc) route { return route{module: "token", handler: fn} }

	return map[string]route{
		"market_initializeConfig":           write(market.InitializeConfig),
		"market_setAdminConfig":             write(market.SetAdminConfig),
		"market_updateWhitelist":            write(market.UpdateWhitelist),
		"market_withdrawNative":             write(market.WithdrawNative),
		"market_withdrawToken":              write(market.WithdrawToken),
		"market_createListing":              write(market.CreateListing),
		"market_cancelListing":              write(market.CancelListing),
		"market_purchaseListing":            write(market.PurchaseListing),
		"market_finalizeOrder":              write(market.FinalizeOrder),
		"market_configureSubscription":      write(market.ConfigureSubscription),
		"market_setSubscriptionActive":      write(market.SetSubscriptionActive),
		"market_processSubscriptionPayment": write(market.ProcessSubscriptionPayment),
		"market_createContest":              write(market.CreateContest),
		"market_submitContestEntry":         write(market.SubmitContestEntry),
		"market_resolveContest":             write(market.ResolveContest),

		"market_getConfig":         read(market.Config),
		"market_getWhitelist":      read(market.Whitelist),
		"market_getListing":        read(market.Listing),
		"market_getOrder":          read(market.Order),
		"market_getPlan":           read(market.Plan),
		"market_getInstance":       read(market.Instance),
		"market_getContest":        read(market.Contest),
		"market_getEntry":          read(market.Entry),
		"market_getBalance":        read(market.Balance),
		"market_rentExemptMinimum": read(market.RentExemptMinimum),
		"market_deriveAddress":     read(market.DeriveAddress),
		"market_now":               read(market.Now),
		"market_listEvents":        read(events.ListEvents),

		"native_transfer":     tokenWrite(market.TransferNative),
		"token_createMint":    tokenWrite(market.CreateMint),
		"token_createAccount": tokenWrite(market.CreateTokenAccount),
		"token_mintTo":        tokenWrite(market.MintTokens),
		"token_transfer":      tokenWrite(market.TransferTokens),
		"token_closeAccount":  tokenWrite(market.CloseTokenAccount),
		"token_getAccount":    tokenRead(market.TokenAccount),
		"token_getMint":       tokenRead(market.Mint),
	}
}
