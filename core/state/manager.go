package state

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"marketledger/core/types"
	"marketledger/storage"
)

var (
	// ErrRecordNotFound is returned when a record is expected at an address
	// that holds none.
	ErrRecordNotFound = errors.New("state: record not found")
	// ErrRecordKindMismatch is returned when the record stored at an address
	// carries a different kind discriminator than the caller asked for.
	ErrRecordKindMismatch = errors.New("state: record kind mismatch")

	errNilManager = errors.New("state: manager unavailable")
)

var (
	accountPrefix   = []byte("account:")
	recordPrefix    = []byte("record:")
	tombstonePrefix = []byte("tombstone:")
	kvPrefix        = []byte("kv:")
)

const discriminatorLength = 8

// Manager owns the persisted ledger and serialises every operation against
// it. Each operation runs over a private overlay that is committed as a single
// storage batch, or dropped entirely if the operation fails.
type Manager struct {
	db   storage.Database
	rent Rent
	mu   sync.Mutex
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database, rent Rent) *Manager {
	return &Manager{db: db, rent: rent}
}

// Rent returns the storage deposit schedule applied to new records.
func (m *Manager) Rent() Rent {
	if m == nil {
		return DefaultRent()
	}
	return m.rent
}

// Atomic runs fn over a fresh overlay and commits every write it made in one
// batch. Any error returned by fn discards the overlay.
func (m *Manager) Atomic(fn func(*Tx) error) error {
	if m == nil || m.db == nil {
		return errNilManager
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := newTx(m)
	if err := fn(tx); err != nil {
		return err
	}
	return m.db.Write(tx.batch())
}

// View runs fn over an overlay that is always discarded.
func (m *Manager) View(fn func(*Tx) error) error {
	if m == nil || m.db == nil {
		return errNilManager
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(newTx(m))
}

// Tx is the per-operation view of the ledger. Reads fall through to the
// committed database; writes stay in the overlay until the enclosing Atomic
// call commits.
type Tx struct {
	m      *Manager
	writes map[string][]byte
}

func newTx(m *Manager) *Tx {
	return &Tx{m: m, writes: make(map[string][]byte)}
}

func (tx *Tx) get(key []byte) ([]byte, error) {
	if value, ok := tx.writes[string(key)]; ok {
		return value, nil
	}
	value, err := tx.m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return value, err
}

func (tx *Tx) put(key, value []byte) {
	tx.writes[string(key)] = append([]byte{}, value...)
}

func (tx *Tx) del(key []byte) {
	tx.writes[string(key)] = nil
}

func (tx *Tx) batch() *storage.Batch {
	keys := make([]string, 0, len(tx.writes))
	for key := range tx.writes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	batch := new(storage.Batch)
	for _, key := range keys {
		value := tx.writes[key]
		if value == nil {
			batch.Delete([]byte(key))
			continue
		}
		batch.Put([]byte(key), value)
	}
	return batch
}

func hashedKey(prefix []byte, parts ...[]byte) []byte {
	buf := append([]byte{}, prefix...)
	for _, part := range parts {
		buf = append(buf, part...)
	}
	return ethcrypto.Keccak256(buf)
}

func accountKey(addr types.Address) []byte   { return hashedKey(accountPrefix, addr[:]) }
func recordKey(addr types.Address) []byte    { return hashedKey(recordPrefix, addr[:]) }
func tombstoneKey(addr types.Address) []byte { return hashedKey(tombstonePrefix, addr[:]) }

// Discriminator returns the 8-byte prefix stored ahead of every record of the
// given kind.
func Discriminator(kind string) [discriminatorLength]byte {
	var out [discriminatorLength]byte
	copy(out[:], ethcrypto.Keccak256([]byte("record:"+kind)))
	return out
}

type storedAccount struct {
	Balance uint64
}

// GetAccount returns the native account for addr. Unknown addresses hold an
// empty account.
func (tx *Tx) GetAccount(addr types.Address) (*types.Account, error) {
	data, err := tx.get(accountKey(addr))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return &types.Account{}, nil
	}
	var stored storedAccount
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, fmt.Errorf("state: decode account %s: %w", addr.Hex(), err)
	}
	return &types.Account{Balance: stored.Balance}, nil
}

// PutAccount stores the native account for addr. Empty accounts are pruned.
func (tx *Tx) PutAccount(addr types.Address, acc *types.Account) error {
	if acc == nil || acc.Balance == 0 {
		tx.del(accountKey(addr))
		return nil
	}
	encoded, err := rlp.EncodeToBytes(storedAccount{Balance: acc.Balance})
	if err != nil {
		return err
	}
	tx.put(accountKey(addr), encoded)
	return nil
}

// MinimumBalance returns the rent-exempt deposit for a record of size bytes.
func (tx *Tx) MinimumBalance(size int) uint64 {
	return tx.m.rent.MinimumBalance(size)
}

// RecordGet decodes the record stored at addr into out. It reports false when
// no live record exists and fails with ErrRecordKindMismatch when the stored
// record is of another kind.
func (tx *Tx) RecordGet(addr types.Address, kind string, out interface{}) (bool, error) {
	data, err := tx.get(recordKey(addr))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if len(data) < discriminatorLength {
		return false, fmt.Errorf("state: record %s truncated", addr.Hex())
	}
	want := Discriminator(kind)
	if string(data[:discriminatorLength]) != string(want[:]) {
		return false, fmt.Errorf("%w: %s is not a %s", ErrRecordKindMismatch, addr.Hex(), kind)
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data[discriminatorLength:], out); err != nil {
		return false, fmt.Errorf("state: decode %s %s: %w", kind, addr.Hex(), err)
	}
	return true, nil
}

// RecordPut writes value as a record of kind at addr, clearing any closed
// marker left by an earlier record at the same address.
func (tx *Tx) RecordPut(addr types.Address, kind string, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", kind, err)
	}
	disc := Discriminator(kind)
	buf := make([]byte, 0, discriminatorLength+len(encoded))
	buf = append(buf, disc[:]...)
	buf = append(buf, encoded...)
	tx.put(recordKey(addr), buf)
	tx.del(tombstoneKey(addr))
	return nil
}

// RecordExists reports whether a live record of any kind is stored at addr.
func (tx *Tx) RecordExists(addr types.Address) (bool, error) {
	data, err := tx.get(recordKey(addr))
	if err != nil {
		return false, err
	}
	return len(data) > 0, nil
}

// RecordClose removes the record at addr and leaves a closed marker behind.
func (tx *Tx) RecordClose(addr types.Address) error {
	exists, err := tx.RecordExists(addr)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, addr.Hex())
	}
	tx.del(recordKey(addr))
	tx.put(tombstoneKey(addr), []byte{1})
	return nil
}

// RecordClosed reports whether a record at addr was closed and not recreated.
func (tx *Tx) RecordClosed(addr types.Address) (bool, error) {
	data, err := tx.get(tombstoneKey(addr))
	if err != nil {
		return false, err
	}
	return len(data) > 0, nil
}

// KVPut stores value under key using RLP encoding.
func (tx *Tx) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	tx.put(hashedKey(kvPrefix, key), encoded)
	return nil
}

// KVGet decodes the value stored under key into out. The boolean reports
// whether the key existed.
func (tx *Tx) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := tx.get(hashedKey(kvPrefix, key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}
