// Package vault moves native balance between ledger addresses and owns the
// storage-deposit lifecycle of records. Every helper either moves value
// between two addresses or fails without writing, so callers composing them
// inside one atomic operation cannot create or destroy value.
package vault

import (
	"errors"
	"fmt"

	"marketledger/core/types"
)

var (
	ErrInsufficientBalance    = errors.New("vault: insufficient balance")
	ErrRentExemptionViolation = errors.New("vault: balance would fall below the rent-exempt minimum")
	ErrBalanceOverflow        = errors.New("vault: balance overflow")
	ErrSelfTransfer           = errors.New("vault: source and destination are the same address")
)

// Ledger is the slice of ledger state the vault helpers operate on.
type Ledger interface {
	GetAccount(addr types.Address) (*types.Account, error)
	PutAccount(addr types.Address, acc *types.Account) error
	MinimumBalance(size int) uint64
	// RecordClose removes the record stored at addr and leaves a closed marker.
	RecordClose(addr types.Address) error
}

// Balance returns the native balance held at addr.
func Balance(l Ledger, addr types.Address) (uint64, error) {
	acc, err := l.GetAccount(addr)
	if err != nil {
		return 0, err
	}
	if acc == nil {
		return 0, nil
	}
	return acc.Balance, nil
}

func credit(l Ledger, addr types.Address, amount uint64) error {
	acc, err := l.GetAccount(addr)
	if err != nil {
		return err
	}
	acc = acc.Clone()
	sum := acc.Balance + amount
	if sum < acc.Balance {
		return ErrBalanceOverflow
	}
	acc.Balance = sum
	return l.PutAccount(addr, acc)
}

// Transfer debits amount from one address and credits it to another. A zero
// amount is a no-op.
func Transfer(l Ledger, from, to types.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if from == to {
		return ErrSelfTransfer
	}
	src, err := l.GetAccount(from)
	if err != nil {
		return err
	}
	src = src.Clone()
	if src.Balance < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientBalance, from.Hex(), src.Balance, amount)
	}
	dst, err := l.GetAccount(to)
	if err != nil {
		return err
	}
	dst = dst.Clone()
	if dst.Balance+amount < dst.Balance {
		return ErrBalanceOverflow
	}
	src.Balance -= amount
	dst.Balance += amount
	if err := l.PutAccount(from, src); err != nil {
		return err
	}
	return l.PutAccount(to, dst)
}

// TransferAboveFloor transfers out of an administrator-withdrawable vault and
// rejects the debit if the vault would be left below floor.
func TransferAboveFloor(l Ledger, vault, to types.Address, amount, floor uint64) error {
	balance, err := Balance(l, vault)
	if err != nil {
		return err
	}
	if balance < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientBalance, vault.Hex(), balance, amount)
	}
	if balance-amount < floor {
		return ErrRentExemptionViolation
	}
	return Transfer(l, vault, to, amount)
}

// FundRecord charges payer the storage deposit for a new record of size bytes
// and credits it to the record's own balance. It returns the deposit.
func FundRecord(l Ledger, payer, record types.Address, size int) (uint64, error) {
	deposit := l.MinimumBalance(size)
	if payer == record {
		return 0, ErrSelfTransfer
	}
	existing, err := Balance(l, record)
	if err != nil {
		return 0, err
	}
	// Balance already sitting at the address counts towards the deposit.
	if existing >= deposit {
		return 0, nil
	}
	owed := deposit - existing
	if err := Transfer(l, payer, record, owed); err != nil {
		return 0, err
	}
	return owed, nil
}

// CloseRecord destroys the record at addr and moves its entire native
// balance, storage deposit included, to beneficiary. Removal and the credit
// happen in the same operation.
func CloseRecord(l Ledger, record, beneficiary types.Address) (uint64, error) {
	if record == beneficiary {
		return 0, ErrSelfTransfer
	}
	balance, err := Balance(l, record)
	if err != nil {
		return 0, err
	}
	if err := Transfer(l, record, beneficiary, balance); err != nil {
		return 0, err
	}
	if err := l.RecordClose(record); err != nil {
		return 0, err
	}
	return balance, nil
}

// Credit adds externally minted balance to addr. Only genesis seeding uses it;
// operations must go through Transfer.
func Credit(l Ledger, addr types.Address, amount uint64) error {
	return credit(l, addr, amount)
}
