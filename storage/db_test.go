package storage

import (
	"errors"
	"path/filepath"
	"testing"
)

func exerciseDatabase(t *testing.T, db Database) {
	t.Helper()
	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := db.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	batch := new(Batch)
	batch.Put([]byte("b"), []byte("2"))
	batch.Put([]byte("c"), []byte{})
	batch.Delete([]byte("a"))
	if err := db.Write(batch); err != nil {
		t.Fatalf("write: %v", err)
	}
	if ok, _ := db.Has([]byte("a")); ok {
		t.Fatalf("expected key a to be deleted by batch")
	}
	value, err := db.Get([]byte("b"))
	if err != nil || string(value) != "2" {
		t.Fatalf("unexpected value %q err %v", value, err)
	}
	value, err = db.Get([]byte("c"))
	if err != nil || len(value) != 0 {
		t.Fatalf("expected empty value for c, got %q err %v", value, err)
	}
	if err := db.Delete([]byte("b")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok, _ := db.Has([]byte("b")); ok {
		t.Fatalf("expected key b to be deleted")
	}
}

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestMemDBGetReturnsCopy(t *testing.T) {
	db := NewMemDB()
	_ = db.Put([]byte("k"), []byte("value"))
	got, _ := db.Get([]byte("k"))
	got[0] = 'X'
	again, _ := db.Get([]byte("k"))
	if string(again) != "value" {
		t.Fatalf("stored value mutated through returned slice: %q", again)
	}
}

func TestLevelDB(t *testing.T) {
	db, err := NewLevelDB(filepath.Join(t.TempDir(), "ledger"))
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	defer db.Close()
	exerciseDatabase(t, db)
}
