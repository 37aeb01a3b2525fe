// Package token implements the fungible-token substrate the marketplace moves
// non-native balances through: mints, per-owner token accounts and the
// transfer, mint and close instructions that operate on them.
package token

import (
	"errors"
	"fmt"

	"marketledger/core/types"
	"marketledger/crypto"
	"marketledger/native/vault"
)

const (
	// MintKind and AccountKind are the record-kind discriminators for token
	// records.
	MintKind    = "token_mint"
	AccountKind = "token_account"

	// MintSize and AccountSize are the storage footprints charged as deposit.
	MintSize    = 82
	AccountSize = 165

	mintTag    = "token_mint"
	accountTag = "token_account"
	programTag = "token_program"
)

// ProgramID identifies the token program. Callers name it in token side-tables
// so the engine can reject substituted programs.
var ProgramID, _ = crypto.MustFindAddress(programTag)

var (
	ErrMintNotFound      = errors.New("token: mint not found")
	ErrMintExists        = errors.New("token: mint already exists")
	ErrAccountNotFound   = errors.New("token: account not found")
	ErrAccountExists     = errors.New("token: account already exists")
	ErrMintMismatch      = errors.New("token: account mint mismatch")
	ErrOwnerMismatch     = errors.New("token: account owner mismatch")
	ErrMintAuthority     = errors.New("token: signer is not the mint authority")
	ErrInsufficientFunds = errors.New("token: insufficient funds")
	ErrSupplyOverflow    = errors.New("token: supply overflow")
	ErrNonZeroBalance    = errors.New("token: cannot close account with non-zero balance")
	ErrInvalidAuthority  = errors.New("token: invalid derived authority")
	ErrNativeMint        = errors.New("token: native sentinel cannot be used as a mint")
)

// State is the ledger surface the token program reads and writes.
type State interface {
	vault.Ledger
	RecordGet(addr types.Address, kind string, out interface{}) (bool, error)
	RecordPut(addr types.Address, kind string, value interface{}) error
	RecordExists(addr types.Address) (bool, error)
}

// Mint describes a fungible token.
type Mint struct {
	Address   types.Address `json:"address"`
	Authority types.Address `json:"authority"`
	Supply    uint64        `json:"supply"`
	Decimals  uint8         `json:"decimals"`
	Seed      types.Hash    `json:"seed"`
	Bump      uint8         `json:"bump"`
}

// Account holds an owner's balance of a single mint.
type Account struct {
	Address types.Address `json:"address"`
	Mint    types.Address `json:"mint"`
	Owner   types.Address `json:"owner"`
	Amount  uint64        `json:"amount"`
	Bump    uint8         `json:"bump"`
}

type storedMint struct {
	Authority types.Address
	Supply    uint64
	Decimals  uint8
	Seed      types.Hash
	Bump      uint8
}

type storedAccount struct {
	Mint   types.Address
	Owner  types.Address
	Amount uint64
	Bump   uint8
}

// Authority names who signs a token instruction. Human identities sign
// directly; engine-owned records sign by presenting the seeds their address is
// derived from.
type Authority struct {
	addr types.Address
	err  error
}

// SignerAuthority wraps an identity whose signature was checked by the caller.
func SignerAuthority(addr types.Address) Authority {
	return Authority{addr: addr}
}

// DerivedAuthority authorizes as the record derived from tag, bump and seeds.
func DerivedAuthority(tag string, bump uint8, seeds ...[]byte) Authority {
	addr, err := crypto.CreateAddress(tag, bump, seeds...)
	if err != nil {
		return Authority{err: fmt.Errorf("%w: %v", ErrInvalidAuthority, err)}
	}
	return Authority{addr: addr}
}

// Address returns the identity the authority resolves to.
func (a Authority) Address() (types.Address, error) {
	if a.err != nil {
		return types.Address{}, a.err
	}
	return a.addr, nil
}

// MintAddress returns the derived address of the mint created by authority
// with seed.
func MintAddress(authority types.Address, seed types.Hash) (types.Address, uint8, error) {
	return crypto.FindAddress(mintTag, authority[:], seed[:])
}

// AccountAddress returns the canonical token account for owner and mint.
func AccountAddress(owner, mint types.Address) (types.Address, uint8, error) {
	return crypto.FindAddress(accountTag, owner[:], mint[:])
}

// GetMint loads the mint stored at addr.
func GetMint(st State, addr types.Address) (*Mint, error) {
	var stored storedMint
	ok, err := st.RecordGet(addr, MintKind, &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMintNotFound, addr.Hex())
	}
	return &Mint{
		Address:   addr,
		Authority: stored.Authority,
		Supply:    stored.Supply,
		Decimals:  stored.Decimals,
		Seed:      stored.Seed,
		Bump:      stored.Bump,
	}, nil
}

func putMint(st State, mint *Mint) error {
	return st.RecordPut(mint.Address, MintKind, storedMint{
		Authority: mint.Authority,
		Supply:    mint.Supply,
		Decimals:  mint.Decimals,
		Seed:      mint.Seed,
		Bump:      mint.Bump,
	})
}

// GetAccount loads the token account stored at addr.
func GetAccount(st State, addr types.Address) (*Account, error) {
	var stored storedAccount
	ok, err := st.RecordGet(addr, AccountKind, &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, addr.Hex())
	}
	return &Account{
		Address: addr,
		Mint:    stored.Mint,
		Owner:   stored.Owner,
		Amount:  stored.Amount,
		Bump:    stored.Bump,
	}, nil
}

func putAccount(st State, acc *Account) error {
	return st.RecordPut(acc.Address, AccountKind, storedAccount{
		Mint:   acc.Mint,
		Owner:  acc.Owner,
		Amount: acc.Amount,
		Bump:   acc.Bump,
	})
}

// CreateMint registers a new mint controlled by authority. The payer funds
// the storage deposit.
func CreateMint(st State, payer, authority types.Address, seed types.Hash, decimals uint8) (*Mint, error) {
	addr, bump, err := MintAddress(authority, seed)
	if err != nil {
		return nil, err
	}
	exists, err := st.RecordExists(addr)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrMintExists, addr.Hex())
	}
	if _, err := vault.FundRecord(st, payer, addr, MintSize); err != nil {
		return nil, err
	}
	mint := &Mint{Address: addr, Authority: authority, Decimals: decimals, Seed: seed, Bump: bump}
	if err := putMint(st, mint); err != nil {
		return nil, err
	}
	return mint, nil
}

// CreateAccount opens the canonical token account for owner and mint.
func CreateAccount(st State, payer, owner, mint types.Address) (*Account, error) {
	if mint.IsNative() {
		return nil, ErrNativeMint
	}
	if _, err := GetMint(st, mint); err != nil {
		return nil, err
	}
	addr, bump, err := AccountAddress(owner, mint)
	if err != nil {
		return nil, err
	}
	exists, err := st.RecordExists(addr)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrAccountExists, addr.Hex())
	}
	if _, err := vault.FundRecord(st, payer, addr, AccountSize); err != nil {
		return nil, err
	}
	acc := &Account{Address: addr, Mint: mint, Owner: owner, Bump: bump}
	if err := putAccount(st, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// MintTo issues amount new tokens into account.
func MintTo(st State, auth Authority, account types.Address, amount uint64) error {
	signer, err := auth.Address()
	if err != nil {
		return err
	}
	acc, err := GetAccount(st, account)
	if err != nil {
		return err
	}
	mint, err := GetMint(st, acc.Mint)
	if err != nil {
		return err
	}
	if mint.Authority != signer {
		return ErrMintAuthority
	}
	if mint.Supply+amount < mint.Supply || acc.Amount+amount < acc.Amount {
		return ErrSupplyOverflow
	}
	mint.Supply += amount
	acc.Amount += amount
	if err := putMint(st, mint); err != nil {
		return err
	}
	return putAccount(st, acc)
}

// Transfer moves amount tokens between two accounts of the same mint. The
// authority must own the source account.
func Transfer(st State, from, to types.Address, auth Authority, amount uint64) error {
	signer, err := auth.Address()
	if err != nil {
		return err
	}
	src, err := GetAccount(st, from)
	if err != nil {
		return err
	}
	dst, err := GetAccount(st, to)
	if err != nil {
		return err
	}
	if src.Mint != dst.Mint {
		return ErrMintMismatch
	}
	if src.Owner != signer {
		return fmt.Errorf("%w: %s does not own %s", ErrOwnerMismatch, signer.Hex(), from.Hex())
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientFunds, from.Hex(), src.Amount, amount)
	}
	if from == to || amount == 0 {
		return nil
	}
	if dst.Amount+amount < dst.Amount {
		return ErrSupplyOverflow
	}
	src.Amount -= amount
	dst.Amount += amount
	if err := putAccount(st, src); err != nil {
		return err
	}
	return putAccount(st, dst)
}

// CloseAccount destroys an empty token account and returns its storage
// deposit to destination.
func CloseAccount(st State, account, destination types.Address, auth Authority) (uint64, error) {
	signer, err := auth.Address()
	if err != nil {
		return 0, err
	}
	acc, err := GetAccount(st, account)
	if err != nil {
		return 0, err
	}
	if acc.Owner != signer {
		return 0, fmt.Errorf("%w: %s does not own %s", ErrOwnerMismatch, signer.Hex(), account.Hex())
	}
	if acc.Amount != 0 {
		return 0, ErrNonZeroBalance
	}
	return vault.CloseRecord(st, account, destination)
}
