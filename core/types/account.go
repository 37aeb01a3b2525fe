package types

// Account holds the native balance tracked for an address. Every address on the
// ledger, human identities and engine-owned records alike, carries one.
type Account struct {
	Balance uint64 `json:"balance"`
}

// Clone returns a copy of the account so callers can mutate it without
// affecting the stored instance.
func (a *Account) Clone() *Account {
	if a == nil {
		return &Account{}
	}
	clone := *a
	return &clone
}
