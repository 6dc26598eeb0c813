package effects

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/hxrts/aura/pkg/ids"
)

// SystemClock reads the real wall clock and keeps an in-process vector
// clock per device for the logical-time domain.
type SystemClock struct {
	mu      sync.Mutex
	vectors map[ids.DeviceId]*ids.LogicalTime
}

func NewSystemClock() *SystemClock {
	return &SystemClock{vectors: make(map[ids.DeviceId]*ids.LogicalTime)}
}

func (c *SystemClock) Physical() ids.PhysicalTime {
	return ids.PhysicalTime{UnixMillis: time.Now().UnixMilli(), UncertaintyMs: 50}
}

func (c *SystemClock) Logical(dev ids.DeviceId) ids.LogicalTime {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.vectors[dev]
	if !ok {
		cur = &ids.LogicalTime{VectorClock: map[ids.DeviceId]uint64{}}
	}
	next := cur.Tick(dev)
	c.vectors[dev] = &next
	return next
}

func (c *SystemClock) Order() ids.OrderTime {
	var tok ids.OrderTime
	if _, err := rand.Read(tok[:]); err != nil {
		panic("effects: crypto/rand unavailable: " + err.Error())
	}
	return tok
}

// SystemRandom draws from crypto/rand, the CSPRNG path §4.1 requires for
// production use.
type SystemRandom struct{}

func (SystemRandom) Bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("effects: read random bytes: %w", err)
	}
	return b, nil
}

func (r SystemRandom) Uint64() (uint64, error) {
	b, err := r.Bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// SystemCrypto wires Hash to SHA-256 and Rand to SystemRandom.
type SystemCrypto struct {
	rand RandomEffects
}

func NewSystemCrypto() *SystemCrypto { return &SystemCrypto{rand: SystemRandom{}} }

func (c *SystemCrypto) Hash(data []byte) [32]byte { return sha256.Sum256(data) }
func (c *SystemCrypto) Rand() RandomEffects       { return c.rand }

// SystemConsole writes to the process's standard output via the standard
// library, matching the teacher's ambient log.Printf idiom.
type SystemConsole struct{}

func (SystemConsole) Printf(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
}
