// Adapted from pkg/kvdb/adapter.go (KVAdapter wraps github.com/cometbft/cometbft-db
// to implement the teacher's ledger.KV). Here it implements effects.StorageEffects
// directly instead of the teacher's narrower KV interface, and adds prefix
// iteration since the journal/tree/keys namespaces (spec §6.4) need it.

package effects

import (
	"context"
	"fmt"

	dbm "github.com/cometbft/cometbft-db"
)

// KVStorage implements StorageEffects over a cometbft-db handle, the
// durable backing for the journal/tree/keys KV namespaces in spec §6.4.
type KVStorage struct {
	db dbm.DB
}

// NewKVStorage wraps an already-opened cometbft-db database.
func NewKVStorage(db dbm.DB) *KVStorage {
	return &KVStorage{db: db}
}

// OpenGoLevelDBStorage opens (or creates) a goleveldb-backed KVStorage at
// dir/name. cmd/aurad does not use it; it runs on the simulated bundle's
// in-memory store.
func OpenGoLevelDBStorage(name, dir string) (*KVStorage, error) {
	db, err := dbm.NewGoLevelDB(name, dir)
	if err != nil {
		return nil, fmt.Errorf("effects: open goleveldb %q: %w", name, err)
	}
	return NewKVStorage(db), nil
}

func (s *KVStorage) Get(ctx context.Context, key []byte) ([]byte, error) {
	v, err := s.db.Get(key)
	if err != nil {
		return nil, fmt.Errorf("effects: kv get: %w", err)
	}
	if v == nil {
		return nil, ErrNotFound
	}
	return v, nil
}

func (s *KVStorage) Set(ctx context.Context, key, value []byte) error {
	if err := s.db.SetSync(key, value); err != nil {
		return fmt.Errorf("effects: kv set: %w", err)
	}
	return nil
}

func (s *KVStorage) Delete(ctx context.Context, key []byte) error {
	if err := s.db.DeleteSync(key); err != nil {
		return fmt.Errorf("effects: kv delete: %w", err)
	}
	return nil
}

func (s *KVStorage) Iterate(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error {
	it, err := s.db.Iterator(prefix, dbm.PrefixEndBytes(prefix))
	if err != nil {
		return fmt.Errorf("effects: kv iterator: %w", err)
	}
	defer it.Close()
	for ; it.Valid(); it.Next() {
		if !fn(it.Key(), it.Value()) {
			break
		}
	}
	return it.Error()
}

func (s *KVStorage) Close() error { return s.db.Close() }
