package token

import (
	"errors"
	"testing"

	"marketledger/core/state"
	"marketledger/core/types"
	"marketledger/native/vault"
	"marketledger/storage"
)

func addr(b byte) types.Address {
	var a types.Address
	a[0] = b
	return a
}

type fixture struct {
	t       *testing.T
	manager *state.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	m := state.NewManager(storage.NewMemDB(), state.DefaultRent())
	if _, err := m.ApplyGenesis([]state.GenesisAccount{
		{Address: addr(1), Balance: 1_000_000_000},
		{Address: addr(2), Balance: 1_000_000_000},
	}); err != nil {
		t.Fatalf("genesis: %v", err)
	}
	return &fixture{t: t, manager: m}
}

func (f *fixture) run(fn func(tx *state.Tx) error) error {
	return f.manager.Atomic(fn)
}

func (f *fixture) mustRun(fn func(tx *state.Tx) error) {
	f.t.Helper()
	if err := f.run(fn); err != nil {
		f.t.Fatalf("operation failed: %v", err)
	}
}

func (f *fixture) setupMint() (mint types.Address, holder types.Address) {
	f.t.Helper()
	f.mustRun(func(tx *state.Tx) error {
		m, err := CreateMint(tx, addr(1), addr(1), types.Hash{1}, 6)
		if err != nil {
			return err
		}
		mint = m.Address
		acc, err := CreateAccount(tx, addr(1), addr(1), mint)
		if err != nil {
			return err
		}
		holder = acc.Address
		return MintTo(tx, SignerAuthority(addr(1)), holder, 1_000)
	})
	return mint, holder
}

func TestCreateMintChargesDeposit(t *testing.T) {
	f := newFixture(t)
	mint, _ := f.setupMint()
	_ = f.manager.View(func(tx *state.Tx) error {
		bal, err := vault.Balance(tx, mint)
		if err != nil {
			t.Fatalf("balance: %v", err)
		}
		if bal != tx.MinimumBalance(MintSize) {
			t.Fatalf("expected mint deposit %d, got %d", tx.MinimumBalance(MintSize), bal)
		}
		m, err := GetMint(tx, mint)
		if err != nil {
			t.Fatalf("get mint: %v", err)
		}
		if m.Supply != 1_000 || m.Decimals != 6 {
			t.Fatalf("unexpected mint %+v", m)
		}
		return nil
	})
}

func TestCreateMintTwiceFails(t *testing.T) {
	f := newFixture(t)
	f.setupMint()
	err := f.run(func(tx *state.Tx) error {
		_, err := CreateMint(tx, addr(1), addr(1), types.Hash{1}, 6)
		return err
	})
	if !errors.Is(err, ErrMintExists) {
		t.Fatalf("expected mint exists, got %v", err)
	}
}

func TestTransferRequiresOwner(t *testing.T) {
	f := newFixture(t)
	mint, holder := f.setupMint()
	var dest types.Address
	f.mustRun(func(tx *state.Tx) error {
		acc, err := CreateAccount(tx, addr(2), addr(2), mint)
		if err != nil {
			return err
		}
		dest = acc.Address
		return nil
	})
	err := f.run(func(tx *state.Tx) error {
		return Transfer(tx, holder, dest, SignerAuthority(addr(2)), 10)
	})
	if !errors.Is(err, ErrOwnerMismatch) {
		t.Fatalf("expected owner mismatch, got %v", err)
	}
	err = f.run(func(tx *state.Tx) error {
		return Transfer(tx, holder, dest, SignerAuthority(addr(1)), 1_001)
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	f.mustRun(func(tx *state.Tx) error {
		return Transfer(tx, holder, dest, SignerAuthority(addr(1)), 400)
	})
	_ = f.manager.View(func(tx *state.Tx) error {
		src, _ := GetAccount(tx, holder)
		dst, _ := GetAccount(tx, dest)
		if src.Amount != 600 || dst.Amount != 400 {
			t.Fatalf("unexpected balances src=%d dst=%d", src.Amount, dst.Amount)
		}
		return nil
	})
}

func TestTransferMintMismatch(t *testing.T) {
	f := newFixture(t)
	_, holder := f.setupMint()
	var other types.Address
	f.mustRun(func(tx *state.Tx) error {
		m, err := CreateMint(tx, addr(2), addr(2), types.Hash{2}, 0)
		if err != nil {
			return err
		}
		acc, err := CreateAccount(tx, addr(2), addr(2), m.Address)
		if err != nil {
			return err
		}
		other = acc.Address
		return nil
	})
	err := f.run(func(tx *state.Tx) error {
		return Transfer(tx, holder, other, SignerAuthority(addr(1)), 1)
	})
	if !errors.Is(err, ErrMintMismatch) {
		t.Fatalf("expected mint mismatch, got %v", err)
	}
}

func TestDerivedAuthoritySignsForRecord(t *testing.T) {
	f := newFixture(t)
	mint, holder := f.setupMint()
	seed := []byte("escrow-seed")
	escrowOwner := DerivedAuthority("escrow", 7, seed)
	owner, err := escrowOwner.Address()
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	var escrowAcc types.Address
	f.mustRun(func(tx *state.Tx) error {
		acc, err := CreateAccount(tx, addr(1), owner, mint)
		if err != nil {
			return err
		}
		escrowAcc = acc.Address
		return Transfer(tx, holder, escrowAcc, SignerAuthority(addr(1)), 100)
	})
	err = f.run(func(tx *state.Tx) error {
		return Transfer(tx, escrowAcc, holder, DerivedAuthority("escrow", 8, seed), 100)
	})
	if !errors.Is(err, ErrOwnerMismatch) {
		t.Fatalf("expected wrong bump to be rejected, got %v", err)
	}
	f.mustRun(func(tx *state.Tx) error {
		return Transfer(tx, escrowAcc, holder, escrowOwner, 100)
	})
}

func TestCloseAccountReturnsDeposit(t *testing.T) {
	f := newFixture(t)
	mint, holder := f.setupMint()
	var acc types.Address
	f.mustRun(func(tx *state.Tx) error {
		created, err := CreateAccount(tx, addr(2), addr(2), mint)
		if err != nil {
			return err
		}
		acc = created.Address
		return Transfer(tx, holder, acc, SignerAuthority(addr(1)), 5)
	})
	err := f.run(func(tx *state.Tx) error {
		_, err := CloseAccount(tx, acc, addr(2), SignerAuthority(addr(2)))
		return err
	})
	if !errors.Is(err, ErrNonZeroBalance) {
		t.Fatalf("expected non-zero balance error, got %v", err)
	}
	var before uint64
	_ = f.manager.View(func(tx *state.Tx) error {
		before, _ = vault.Balance(tx, addr(2))
		return nil
	})
	f.mustRun(func(tx *state.Tx) error {
		if err := Transfer(tx, acc, holder, SignerAuthority(addr(2)), 5); err != nil {
			return err
		}
		_, err := CloseAccount(tx, acc, addr(2), SignerAuthority(addr(2)))
		return err
	})
	_ = f.manager.View(func(tx *state.Tx) error {
		after, _ := vault.Balance(tx, addr(2))
		if after-before != tx.MinimumBalance(AccountSize) {
			t.Fatalf("expected deposit refund, got %d", after-before)
		}
		if _, err := GetAccount(tx, acc); !errors.Is(err, ErrAccountNotFound) {
			t.Fatalf("expected closed account to be gone, got %v", err)
		}
		return nil
	})
}

func TestMintToRequiresAuthority(t *testing.T) {
	f := newFixture(t)
	_, holder := f.setupMint()
	err := f.run(func(tx *state.Tx) error {
		return MintTo(tx, SignerAuthority(addr(2)), holder, 1)
	})
	if !errors.Is(err, ErrMintAuthority) {
		t.Fatalf("expected mint authority error, got %v", err)
	}
}

func TestCreateAccountRejectsNativeSentinel(t *testing.T) {
	f := newFixture(t)
	err := f.run(func(tx *state.Tx) error {
		_, err := CreateAccount(tx, addr(1), addr(1), types.NativeMint)
		return err
	})
	if !errors.Is(err, ErrNativeMint) {
		t.Fatalf("expected native mint error, got %v", err)
	}
}
