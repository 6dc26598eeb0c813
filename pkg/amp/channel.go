// Package amp implements component C8: the account-messaging protocol, an
// epoch/generation-windowed AEAD transport envelope with flow-budget
// accounting (spec §4.8). A Channel binds one relationship-scoped
// ratchet-derived key schedule; Send/Recv are the only entry points, and
// every rejection is an observable, structured error that never advances
// channel state, per spec §7's "AMP window correctness" invariant.
package amp

import (
	"fmt"

	"github.com/hxrts/aura/pkg/crypto"
	"github.com/hxrts/aura/pkg/effects"
	"github.com/hxrts/aura/pkg/ids"
)

// Header is the cleartext portion of an AMP frame (spec §6.2): "Header is
// canonical-encoded {channel, chan_epoch, ratchet_gen, aad_hash}".
type Header struct {
	Channel    ids.ChannelId
	ChanEpoch  uint64
	RatchetGen uint64
	AADHash    [32]byte
}

// Window bounds the accepted ratchet generations relative to the channel's
// current generation (spec §6.3: "AMP window: lookbehind, lookahead").
type Window struct {
	Lookbehind uint64
	Lookahead  uint64
}

// DefaultWindow accepts two generations behind and two ahead, the same AMP
// window pkg/config uses by default.
func DefaultWindow() Window {
	return Window{Lookbehind: 2, Lookahead: 2}
}

// Receipt is returned by Send on success: the flow nonce charged and the
// total budget spent after this send (spec §4.8: "returning a receipt with
// (nonce, spent_after)").
type Receipt struct {
	Nonce      uint64
	SpentAfter uint32
}

// Channel holds one relationship-scoped AMP session's ratchet state and
// per-peer flow budget. Zero value is not usable; construct with NewChannel.
type Channel struct {
	id     ids.ChannelId
	suite  crypto.CipherSuite
	window Window

	epoch         uint64
	generation    uint64
	rootSecret    []byte
	budgetCeiling uint32
	spent         uint32
	sendNonce     uint64
}

// NewChannel opens a channel at generation 0 of the given epoch, deriving
// its ratchet root from rootSecret (itself the output of the relationship's
// key-agreement step, out of scope here per spec §4.1/§4.3).
func NewChannel(id ids.ChannelId, suite crypto.CipherSuite, epoch uint64, rootSecret []byte, window Window, budgetCeiling uint32) *Channel {
	return &Channel{
		id:            id,
		suite:         suite,
		window:        window,
		epoch:         epoch,
		rootSecret:    rootSecret,
		budgetCeiling: budgetCeiling,
	}
}

// Advance ratchets the channel to the next generation, deriving a fresh key
// and resetting nothing else — flow budget and epoch are independent axes.
func (c *Channel) Advance() {
	c.generation++
}

// Rekey moves the channel to a new epoch at generation 0, the transition a
// ratchet-tree commit (component C3) drives.
func (c *Channel) Rekey(epoch uint64, rootSecret []byte) {
	c.epoch = epoch
	c.generation = 0
	c.rootSecret = rootSecret
}

func (c *Channel) generationKey(generation uint64) ([]byte, error) {
	info := crypto.DomainHash(crypto.DomainAMPHeader, c.id[:], uint64Bytes(c.epoch), uint64Bytes(generation))
	key, err := crypto.HKDFDerive(c.rootSecret, nil, info[:], 32)
	if err != nil {
		return nil, fmt.Errorf("amp: derive generation key: %w", err)
	}
	return key, nil
}

// Send seals payload under the channel's current generation key, charging
// cost against the flow budget. aad is application-supplied associated
// data (e.g. a session/context binding) that is authenticated but not
// encrypted; only its hash travels in the cleartext header. Returns the
// wire frame and the receipt, or an error without transmitting and without
// charging budget (spec §4.8's cancel-safety: "a cancelled send charges no
// budget").
func (c *Channel) Send(rand effects.RandomEffects, payload, aad []byte, cost uint32) ([]byte, Receipt, error) {
	if c.spent+cost > c.budgetCeiling {
		return nil, Receipt{}, &ErrFlowBudgetExceeded{Ceiling: c.budgetCeiling, Spent: c.spent, Cost: cost}
	}

	key, err := c.generationKey(c.generation)
	if err != nil {
		return nil, Receipt{}, err
	}
	nonceSize, err := crypto.NonceSize(c.suite)
	if err != nil {
		return nil, Receipt{}, err
	}
	nonce, err := rand.Bytes(nonceSize)
	if err != nil {
		return nil, Receipt{}, fmt.Errorf("amp: draw nonce: %w", err)
	}

	header := Header{
		Channel:    c.id,
		ChanEpoch:  c.epoch,
		RatchetGen: c.generation,
		AADHash:    crypto.Hash(aad),
	}
	headerBytes := encodeHeader(header)

	ciphertext, err := crypto.Seal(c.suite, key, nonce, payload, headerBytes)
	if err != nil {
		return nil, Receipt{}, fmt.Errorf("amp: seal: %w", err)
	}

	frame := make([]byte, 0, len(headerBytes)+len(nonce)+len(ciphertext))
	frame = append(frame, headerBytes...)
	frame = append(frame, nonce...)
	frame = append(frame, ciphertext...)

	c.spent += cost
	c.sendNonce++
	return frame, Receipt{Nonce: c.sendNonce, SpentAfter: c.spent}, nil
}

// Recv opens a wire frame, enforcing the window policy before attempting
// decryption: out-of-window frames are rejected by header inspection alone,
// never touching the AEAD (spec §7: "a frame ... outside the accepted
// window is never decrypted"). aad must be the same associated data the
// sender bound the frame to.
func (c *Channel) Recv(frame, aad []byte) (Header, []byte, error) {
	header, rest, err := decodeHeader(frame)
	if err != nil {
		return Header{}, nil, fmt.Errorf("amp: decode header: %w", err)
	}

	if header.ChanEpoch != c.epoch {
		return header, nil, &ErrEpochMismatch{Expected: c.epoch, Got: header.ChanEpoch}
	}
	lo := saturatingSub(c.generation, c.window.Lookbehind)
	hi := c.generation + c.window.Lookahead
	if header.RatchetGen < lo || header.RatchetGen > hi {
		return header, nil, &ErrGenerationOutOfWindow{Min: lo, Max: hi, Got: header.RatchetGen}
	}
	wantAADHash := crypto.Hash(aad)
	if !crypto.ConstantTimeEqual(wantAADHash[:], header.AADHash[:]) {
		return header, nil, fmt.Errorf("amp: associated data mismatch")
	}

	key, err := c.generationKey(header.RatchetGen)
	if err != nil {
		return header, nil, err
	}
	nonceSize, err := crypto.NonceSize(c.suite)
	if err != nil {
		return header, nil, err
	}
	if len(rest) < nonceSize {
		return header, nil, fmt.Errorf("amp: frame too short for nonce")
	}
	nonce, ciphertext := rest[:nonceSize], rest[nonceSize:]

	plaintext, err := crypto.Open(c.suite, key, nonce, ciphertext, frame[:len(frame)-len(rest)])
	if err != nil {
		return header, nil, &ErrDecryptFailed{Cause: err}
	}
	return header, plaintext, nil
}

// BudgetRemaining reports the per-peer flow budget left on this channel.
func (c *Channel) BudgetRemaining() uint32 {
	if c.spent >= c.budgetCeiling {
		return 0
	}
	return c.budgetCeiling - c.spent
}

func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

func uint64Bytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}
