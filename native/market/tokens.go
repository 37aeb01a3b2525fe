package market

import (
	"fmt"

	"marketledger/core/types"
	"marketledger/native/token"
)

// PurchaseTokenAccounts names the token accounts a token-priced purchase moves
// value through.
type PurchaseTokenAccounts struct {
	Mint     types.Address `json:"mint"`
	Buyer    types.Address `json:"buyer"`
	Order    types.Address `json:"order"`
	Seller   types.Address `json:"seller"`
	Treasury types.Address `json:"treasury"`
	Program  types.Address `json:"program"`
}

// FinalizeTokenAccounts names the token accounts a token-priced settlement
// pays out of and into. Buyer receives anything the escrow holds beyond the
// order amount; it may be omitted when the escrow holds exactly that.
type FinalizeTokenAccounts struct {
	Mint     types.Address `json:"mint"`
	Order    types.Address `json:"order"`
	Seller   types.Address `json:"seller"`
	Treasury types.Address `json:"treasury"`
	Buyer    types.Address `json:"buyer,omitempty"`
	Program  types.Address `json:"program"`
}

// SubscriptionTokenAccounts names the token accounts a token-priced
// subscription payment moves value through.
type SubscriptionTokenAccounts struct {
	Subscriber types.Address `json:"subscriber"`
	Creator    types.Address `json:"creator"`
	Treasury   types.Address `json:"treasury"`
	Program    types.Address `json:"program"`
}

type expectedTokenAccount struct {
	role    string
	address types.Address
	owner   types.Address
}

// validateTokenAccounts checks, before any transfer, that the program is the
// token program and that every supplied account holds mint and belongs to the
// party that should own it.
func validateTokenAccounts(st State, mint, program types.Address, expected ...expectedTokenAccount) (map[string]*token.Account, error) {
	if program != token.ProgramID {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTokenProgram, program.Hex())
	}
	loaded := make(map[string]*token.Account, len(expected))
	for _, exp := range expected {
		acc, err := token.GetAccount(st, exp.address)
		if err != nil {
			return nil, fmt.Errorf("%s token account: %w", exp.role, err)
		}
		if acc.Mint != mint {
			return nil, fmt.Errorf("%w: %s token account %s holds %s, want %s",
				ErrTokenAccountMintMismatch, exp.role, exp.address.Hex(), acc.Mint.Hex(), mint.Hex())
		}
		if acc.Owner != exp.owner {
			return nil, fmt.Errorf("%w: %s token account %s owned by %s, want %s",
				ErrTokenAccountOwnerMismatch, exp.role, exp.address.Hex(), acc.Owner.Hex(), exp.owner.Hex())
		}
		loaded[exp.role] = acc
	}
	return loaded, nil
}

func checkSideTableMint(supplied, want types.Address) error {
	if supplied != want {
		return fmt.Errorf("%w: side table names %s, record uses %s", ErrTokenAccountMintMismatch, supplied.Hex(), want.Hex())
	}
	return nil
}
