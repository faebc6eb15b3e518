package keystore

import (
	"os"
	"testing"

	"github.com/dbehnke/fne-peer/pkg/logger"
	"github.com/dbehnke/fne-peer/pkg/p25"
)

func TestOpen(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	dbPath := "/tmp/test_fne_peer_keys.db"
	defer func() { _ = os.Remove(dbPath) }()

	store, err := Open(Config{Path: dbPath}, log)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	if store.db == nil {
		t.Fatal("expected non-nil database connection")
	}
}

func TestOpen_DefaultPath(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	defer func() { _ = os.Remove("fne-peer-keys.db") }()

	store, err := Open(Config{}, log)
	if err != nil {
		t.Fatalf("Open with default path failed: %v", err)
	}
	defer func() { _ = store.Close() }()
}

func sampleKeyset() p25.KeysetItem {
	return p25.KeysetItem{
		KeysetID:    1,
		AlgorithmID: 0xAA,
		KeyLength:   5,
		Keys: []p25.KeyItem{
			{KeyFormat: 0x01, SLN: 100, KeyID: 1001, Key: [p25.KeyMaterialSize]byte{1, 2, 3, 4, 5}},
			{KeyFormat: 0x01, SLN: 101, KeyID: 1002, Key: [p25.KeyMaterialSize]byte{9, 8, 7, 6, 5}},
		},
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	dbPath := "/tmp/test_fne_peer_keys_roundtrip.db"
	defer func() { _ = os.Remove(dbPath) }()

	store, err := Open(Config{Path: dbPath}, log)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	ks := sampleKeyset()
	mi := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}
	if err := store.Put(ks, 42, mi); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok, err := store.Get(1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("expected keyset to be found")
	}
	if got.KeysetID != ks.KeysetID || got.AlgorithmID != ks.AlgorithmID || got.KeyLength != ks.KeyLength {
		t.Fatalf("keyset mismatch: got %+v, want %+v", got, ks)
	}
	if len(got.Keys) != len(ks.Keys) {
		t.Fatalf("expected %d keys, got %d", len(ks.Keys), len(got.Keys))
	}
	for i, k := range got.Keys {
		want := ks.Keys[i]
		if k.KeyID != want.KeyID || k.SLN != want.SLN {
			t.Fatalf("key %d mismatch: got %+v, want %+v", i, k, want)
		}
		if k.Key != want.Key {
			t.Fatalf("key %d material mismatch: got %v, want %v", i, k.Key, want.Key)
		}
	}
}

func TestGet_NotFound(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	dbPath := "/tmp/test_fne_peer_keys_notfound.db"
	defer func() { _ = os.Remove(dbPath) }()

	store, err := Open(Config{Path: dbPath}, log)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	_, ok, err := store.Get(99)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Fatal("expected keyset 99 to be absent")
	}
}

func TestPut_ReplacesExisting(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	dbPath := "/tmp/test_fne_peer_keys_replace.db"
	defer func() { _ = os.Remove(dbPath) }()

	store, err := Open(Config{Path: dbPath}, log)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	ks := sampleKeyset()
	if err := store.Put(ks, 1, nil); err != nil {
		t.Fatalf("first Put failed: %v", err)
	}

	ks.Keys[0].Key = [p25.KeyMaterialSize]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	if err := store.Put(ks, 2, nil); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	all, err := store.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected exactly one cached keyset after replace, got %d", len(all))
	}
	if all[0].Keys[0].Key != ks.Keys[0].Key {
		t.Fatalf("expected replaced key material, got %v", all[0].Keys[0].Key)
	}
}
