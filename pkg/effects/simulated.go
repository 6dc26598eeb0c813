package effects

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/hxrts/aura/pkg/ids"
)

// Simulated is a fully deterministic effect bundle seeded from a single
// u64 (spec §6.3's "Simulation seed"). It backs the module's tests that
// need randomness, clocks or storage: same seed, same sequence of random bytes, same logical clock ticks, same
// physical-time progression.
type Simulated struct {
	mu        sync.Mutex
	rngState  uint64
	millis    int64
	vectors   map[ids.DeviceId]*ids.LogicalTime
	orderCtr  uint64
	kv        map[string][]byte
	console   []string
}

// NewSimulated constructs a Simulated effect bundle from the given seed.
func NewSimulated(seed uint64) *Simulated {
	if seed == 0 {
		seed = 0x9E3779B97F4A7C15 // avoid the degenerate all-zero xorshift state
	}
	return &Simulated{
		rngState: seed,
		millis:   1_700_000_000_000,
		vectors:  make(map[ids.DeviceId]*ids.LogicalTime),
		kv:       make(map[string][]byte),
	}
}

// nextRand advances an xorshift64* generator; deterministic, not
// cryptographically secure, and only ever used behind the Simulated seam.
func (s *Simulated) nextRand() uint64 {
	x := s.rngState
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	s.rngState = x
	return x * 2685821657736338717
}

func (s *Simulated) Bytes(n int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, 0, n)
	for len(out) < n {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], s.nextRand())
		out = append(out, buf[:]...)
	}
	return out[:n], nil
}

func (s *Simulated) Uint64() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRand(), nil
}

func (s *Simulated) Physical() ids.PhysicalTime {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.millis += 10
	return ids.PhysicalTime{UnixMillis: s.millis, UncertaintyMs: 0}
}

func (s *Simulated) Logical(dev ids.DeviceId) ids.LogicalTime {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.vectors[dev]
	if !ok {
		cur = &ids.LogicalTime{VectorClock: map[ids.DeviceId]uint64{}}
	}
	next := cur.Tick(dev)
	s.vectors[dev] = &next
	return next
}

func (s *Simulated) Order() ids.OrderTime {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orderCtr++
	var tok ids.OrderTime
	binary.LittleEndian.PutUint64(tok[:8], s.orderCtr)
	return tok
}

func (s *Simulated) Hash(data []byte) [32]byte {
	// Deterministic, order-sensitive, collision-irrelevant-for-tests mix;
	// production crypto (pkg/crypto) always uses SHA-256 regardless of effects.
	var out [32]byte
	h := uint64(0xcbf29ce484222325)
	for _, b := range data {
		h ^= uint64(b)
		h *= 0x100000001b3
	}
	binary.LittleEndian.PutUint64(out[:8], h)
	binary.LittleEndian.PutUint64(out[8:16], h^0xff)
	binary.LittleEndian.PutUint64(out[16:24], h^0xff00)
	binary.LittleEndian.PutUint64(out[24:32], h^0xff0000)
	return out
}

func (s *Simulated) Rand() RandomEffects { return s }

func (s *Simulated) Printf(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.console = append(s.console, fmt.Sprintf(format, args...))
}

// ConsoleLog returns every line emitted via Printf, for test assertions.
func (s *Simulated) ConsoleLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.console))
	copy(out, s.console)
	return out
}

// In-memory StorageEffects, namespace-agnostic.

func (s *Simulated) Get(ctx context.Context, key []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.kv[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *Simulated) Set(ctx context.Context, key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	s.kv[string(key)] = cp
	return nil
}

func (s *Simulated) Delete(ctx context.Context, key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.kv, string(key))
	return nil
}

func (s *Simulated) Iterate(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error {
	s.mu.Lock()
	type kv struct {
		k string
		v []byte
	}
	var matches []kv
	for k, v := range s.kv {
		if len(k) >= len(prefix) && k[:len(prefix)] == string(prefix) {
			matches = append(matches, kv{k, v})
		}
	}
	s.mu.Unlock()
	// ascending byte order, matching StorageEffects' documented contract
	for i := 0; i < len(matches); i++ {
		for j := i + 1; j < len(matches); j++ {
			if matches[j].k < matches[i].k {
				matches[i], matches[j] = matches[j], matches[i]
			}
		}
	}
	for _, m := range matches {
		if !fn([]byte(m.k), m.v) {
			break
		}
	}
	return nil
}

// Bundle returns a fully wired Effects struct backed by this Simulated instance.
func (s *Simulated) Bundle() Effects {
	return Effects{
		Clock:   s,
		Random:  s,
		Storage: s,
		Network: nil,
		Crypto:  simCrypto{s},
		Console: s,
	}
}

type simCrypto struct{ s *Simulated }

func (c simCrypto) Hash(data []byte) [32]byte { return c.s.Hash(data) }
func (c simCrypto) Rand() RandomEffects       { return c.s }
