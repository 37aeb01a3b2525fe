package state

import (
	"fmt"

	"marketledger/core/types"
)

var genesisAppliedKey = []byte("state/genesis-applied")

// GenesisAccount seeds a native balance when the ledger is first created.
type GenesisAccount struct {
	Address types.Address
	Balance uint64
}

// ApplyGenesis credits the genesis allocations exactly once. Later calls are
// no-ops and report false.
func (m *Manager) ApplyGenesis(accounts []GenesisAccount) (bool, error) {
	applied := false
	err := m.Atomic(func(tx *Tx) error {
		ok, err := tx.KVGet(genesisAppliedKey, nil)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		for _, alloc := range accounts {
			acc, err := tx.GetAccount(alloc.Address)
			if err != nil {
				return err
			}
			if acc.Balance+alloc.Balance < acc.Balance {
				return fmt.Errorf("state: genesis balance overflow for %s", alloc.Address.Hex())
			}
			acc.Balance += alloc.Balance
			if err := tx.PutAccount(alloc.Address, acc); err != nil {
				return err
			}
		}
		applied = true
		return tx.KVPut(genesisAppliedKey, uint64(1))
	})
	return applied, err
}
