// Package effects defines Aura's nondeterminism boundary (component C10).
//
// Every domain package accepts its effects as explicit parameters rather
// than reading a clock, RNG, disk, or network directly. This is the only
// seam through which nondeterminism enters the system, which is what lets
// the Simulated implementation in this package drive fully deterministic
// tests for every other package in the module.
package effects

import (
	"context"

	"github.com/hxrts/aura/pkg/ids"
)

// ClockEffects exposes the three time domains from spec §3, never mixed
// implicitly by callers.
type ClockEffects interface {
	Physical() ids.PhysicalTime
	Logical(dev ids.DeviceId) ids.LogicalTime
	Order() ids.OrderTime
}

// RandomEffects is the sole source of entropy; Simulated implementations
// are seeded so tests are reproducible.
type RandomEffects interface {
	Bytes(n int) ([]byte, error)
	Uint64() (uint64, error)
}

// StorageEffects is a key-value seam over the persisted namespaces in
// spec §6.4. Implementations include an in-memory map (tests), a
// cometbft-db backed KV (pkg/effects storage_kv.go), and a Postgres-backed
// KV (storage_sql.go).
type StorageEffects interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	Set(ctx context.Context, key, value []byte) error
	Delete(ctx context.Context, key []byte) error
	// Iterate calls fn for every key with the given prefix, in ascending
	// byte order, until fn returns false or all keys are exhausted.
	Iterate(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error
}

// ErrNotFound is returned by StorageEffects.Get when the key is absent.
var ErrNotFound = storageNotFound{}

type storageNotFound struct{}

func (storageNotFound) Error() string { return "effects: key not found" }

// NetworkEffects is send/broadcast/receive to peers, addressed by device.
type NetworkEffects interface {
	Send(ctx context.Context, to ids.DeviceId, payload []byte) error
	Broadcast(ctx context.Context, to []ids.DeviceId, payload []byte) error
	Receive(ctx context.Context) (from ids.DeviceId, payload []byte, err error)
}

// CryptoEffects binds §4.1 primitives to the randomness effect so callers
// never reach for crypto/rand directly.
type CryptoEffects interface {
	Hash(data []byte) [32]byte
	Rand() RandomEffects
}

// ConsoleEffects is a thin seam over human-facing output; the core never
// writes to stdout/stderr directly.
type ConsoleEffects interface {
	Printf(format string, args ...interface{})
}

// Effects bundles the full nondeterminism surface a domain function needs;
// most package-level functions take the specific sub-interfaces they use
// rather than this bundle, but composition roots (cmd/aurad) wire one of
// these per device.
type Effects struct {
	Clock   ClockEffects
	Random  RandomEffects
	Storage StorageEffects
	Network NetworkEffects
	Crypto  CryptoEffects
	Console ConsoleEffects
}
