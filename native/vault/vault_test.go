package vault

import (
	"errors"
	"testing"

	"marketledger/core/types"
)

type memLedger struct {
	accounts map[types.Address]*types.Account
	closed   map[types.Address]bool
}

func newMemLedger() *memLedger {
	return &memLedger{accounts: make(map[types.Address]*types.Account), closed: make(map[types.Address]bool)}
}

func (m *memLedger) GetAccount(addr types.Address) (*types.Account, error) {
	if acc, ok := m.accounts[addr]; ok {
		return acc.Clone(), nil
	}
	return &types.Account{}, nil
}

func (m *memLedger) PutAccount(addr types.Address, acc *types.Account) error {
	m.accounts[addr] = acc.Clone()
	return nil
}

func (m *memLedger) MinimumBalance(size int) uint64 { return uint64(size) * 10 }

func (m *memLedger) RecordClose(addr types.Address) error {
	m.closed[addr] = true
	return nil
}

func (m *memLedger) total() uint64 {
	var sum uint64
	for _, acc := range m.accounts {
		sum += acc.Balance
	}
	return sum
}

func addr(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

func TestTransferMovesBalance(t *testing.T) {
	l := newMemLedger()
	if err := Credit(l, addr(1), 100); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := Transfer(l, addr(1), addr(2), 40); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if bal, _ := Balance(l, addr(1)); bal != 60 {
		t.Fatalf("expected source balance 60, got %d", bal)
	}
	if bal, _ := Balance(l, addr(2)); bal != 40 {
		t.Fatalf("expected destination balance 40, got %d", bal)
	}
	if l.total() != 100 {
		t.Fatalf("value not conserved: %d", l.total())
	}
}

func TestTransferInsufficientBalance(t *testing.T) {
	l := newMemLedger()
	_ = Credit(l, addr(1), 10)
	err := Transfer(l, addr(1), addr(2), 11)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if bal, _ := Balance(l, addr(2)); bal != 0 {
		t.Fatalf("destination credited on failure: %d", bal)
	}
}

func TestTransferZeroIsNoop(t *testing.T) {
	l := newMemLedger()
	if err := Transfer(l, addr(1), addr(1), 0); err != nil {
		t.Fatalf("zero transfer: %v", err)
	}
	if err := Transfer(l, addr(1), addr(1), 1); !errors.Is(err, ErrSelfTransfer) {
		t.Fatalf("expected self transfer error, got %v", err)
	}
}

func TestTransferAboveFloor(t *testing.T) {
	l := newMemLedger()
	_ = Credit(l, addr(1), 1000)
	if err := TransferAboveFloor(l, addr(1), addr(2), 950, 100); !errors.Is(err, ErrRentExemptionViolation) {
		t.Fatalf("expected rent exemption violation, got %v", err)
	}
	if err := TransferAboveFloor(l, addr(1), addr(2), 2000, 100); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if err := TransferAboveFloor(l, addr(1), addr(2), 900, 100); err != nil {
		t.Fatalf("withdraw to floor: %v", err)
	}
	if bal, _ := Balance(l, addr(1)); bal != 100 {
		t.Fatalf("expected vault at floor, got %d", bal)
	}
}

func TestFundAndCloseRecord(t *testing.T) {
	l := newMemLedger()
	_ = Credit(l, addr(1), 5000)
	deposit, err := FundRecord(l, addr(1), addr(9), 50)
	if err != nil {
		t.Fatalf("fund: %v", err)
	}
	if deposit != 500 {
		t.Fatalf("expected deposit 500, got %d", deposit)
	}
	_ = Transfer(l, addr(1), addr(9), 250)

	returned, err := CloseRecord(l, addr(9), addr(3))
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if returned != 750 {
		t.Fatalf("expected 750 returned, got %d", returned)
	}
	if bal, _ := Balance(l, addr(9)); bal != 0 {
		t.Fatalf("record still holds %d", bal)
	}
	if !l.closed[addr(9)] {
		t.Fatalf("record not marked closed")
	}
	if l.total() != 5000 {
		t.Fatalf("value not conserved: %d", l.total())
	}
}

func TestFundRecordCountsExistingBalance(t *testing.T) {
	l := newMemLedger()
	_ = Credit(l, addr(1), 5000)
	_ = Credit(l, addr(9), 200)
	deposit, err := FundRecord(l, addr(1), addr(9), 50)
	if err != nil {
		t.Fatalf("fund: %v", err)
	}
	if deposit != 300 {
		t.Fatalf("expected top-up of 300, got %d", deposit)
	}
}

func TestCreditOverflow(t *testing.T) {
	l := newMemLedger()
	_ = Credit(l, addr(1), ^uint64(0))
	if err := Credit(l, addr(1), 1); !errors.Is(err, ErrBalanceOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}
