// Package keys implements component C4: per-authority threshold key
// lifecycle (generate, rotate with pending/commit/rollback, sign, verify,
// recover), and the guardian ceremony that drives social recovery.
// Grounded on the teacher's pkg/crypto/bls/key_manager.go epoch/rotation
// shape, generalized from a single BLS validator key to a (t,n) threshold
// package.
package keys

import (
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/hxrts/aura/pkg/crypto/threshold"
	"github.com/hxrts/aura/pkg/effects"
)

// Mode distinguishes an authority signing alone from one secured by a
// (t,n) threshold (spec §3: "mode ∈ {SingleSigner, Threshold}").
type Mode uint8

const (
	ModeSingleSigner Mode = iota
	ModeThreshold
)

// EpochKeyState is the key material active (or pending) at one epoch.
type EpochKeyState struct {
	Epoch     uint64
	Mode      Mode
	Threshold uint32
	Total     uint32
	Public    threshold.PublicKeyPackage
	Local     *threshold.KeyPackage // this holder's share; nil if not a holder at this epoch
}

var (
	ErrNoPendingEpoch   = fmt.Errorf("keys: no pending epoch to commit or roll back")
	ErrEpochMismatch    = fmt.Errorf("keys: epoch does not match the current pending epoch")
	ErrNotThresholdMode = fmt.Errorf("keys: operation requires threshold mode")
	ErrNotHolder        = fmt.Errorf("keys: this device does not hold a share at the requested epoch")
)

// Manager tracks one authority's active epoch and, during a rotation, a
// pending epoch awaiting commit or rollback (spec §3: "the previous epoch
// remains valid until an explicit commit; failure triggers rollback").
type Manager struct {
	mu           sync.Mutex
	holderIndex  uint32
	active       EpochKeyState
	pending      *EpochKeyState
}

// NewManager bootstraps a manager at epoch 0 in single-signer mode; call
// Rotate to move to threshold mode.
func NewManager(holderIndex uint32) *Manager {
	return &Manager{holderIndex: holderIndex, active: EpochKeyState{Epoch: 0, Mode: ModeSingleSigner}}
}

// Active returns the currently committed epoch's key state.
func (m *Manager) Active() EpochKeyState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Pending returns the epoch awaiting commit/rollback, if any.
func (m *Manager) Pending() (EpochKeyState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return EpochKeyState{}, false
	}
	return *m.pending, true
}

// Rotate runs dealer-based threshold generation for a new (t,n) and stakes
// out a pending epoch with the new group public key, per spec §4.4's
// `rotate(threshold_k, total_n, holder_ids) → new_epoch`. The full dealt
// set is returned so the caller can distribute each package to its
// holder out of band (e.g. sealed via pkg/crypto/aead and placed at
// keys/<account>/<epoch>/<holder> per spec §6.4); this manager retains
// only this device's own package.
func (m *Manager) Rotate(t, n uint32, rnd effects.RandomEffects) (newEpoch uint64, dealt []threshold.KeyPackage, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dealt, err = threshold.GenerateDealt(t, n, rnd)
	if err != nil {
		return 0, nil, fmt.Errorf("keys: rotate: %w", err)
	}

	next := m.active.Epoch + 1
	state := EpochKeyState{Epoch: next, Mode: ModeThreshold, Threshold: t, Total: n, Public: dealt[0].Group}
	for i := range dealt {
		if dealt[i].Index == m.holderIndex {
			local := dealt[i]
			state.Local = &local
			break
		}
	}
	m.pending = &state
	return next, dealt, nil
}

// Commit promotes the pending epoch to active, per spec §4.4's lifecycle
// "Pending(new) coexists with Active(old) → Commit promotes new."
func (m *Manager) Commit(epoch uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return ErrNoPendingEpoch
	}
	if m.pending.Epoch != epoch {
		return ErrEpochMismatch
	}
	m.active = *m.pending
	m.pending = nil
	return nil
}

// Rollback discards the pending epoch, leaving the active epoch untouched.
func (m *Manager) Rollback(epoch uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return ErrNoPendingEpoch
	}
	if m.pending.Epoch != epoch {
		return ErrEpochMismatch
	}
	m.pending = nil
	return nil
}

// Verify checks a signature against the active epoch's group public key.
func (m *Manager) Verify(message []byte, sig *threshold.Signature) bool {
	m.mu.Lock()
	active := m.active
	m.mu.Unlock()
	return threshold.Verify(active.Public, message, sig)
}

// CoordinateThresholdSign runs threshold-BLS partial signing in-process
// across the supplied key packages and returns the aggregated signature.
// This models a single coordinator process holding every participant's
// package for test and single-process-simulation purposes; a real
// multi-device deployment instead runs share production as a suspending
// coordination-session operation (pkg/session) with only one participant's
// package ever resident on any one device.
func CoordinateThresholdSign(message []byte, packages []threshold.KeyPackage) (*threshold.Signature, error) {
	if len(packages) == 0 {
		return nil, fmt.Errorf("keys: coordinate sign: no participants")
	}
	participants := make([]uint32, len(packages))
	for i, kp := range packages {
		participants[i] = kp.Index
	}
	sp, err := threshold.NewSigningPackage(message, participants)
	if err != nil {
		return nil, fmt.Errorf("keys: coordinate sign: %w", err)
	}
	shares := make([]*threshold.SignatureShare, len(packages))
	for i, kp := range packages {
		s, err := threshold.SignShare(kp, sp)
		if err != nil {
			return nil, fmt.Errorf("keys: coordinate sign: sign share: %w", err)
		}
		shares[i] = s
	}
	return threshold.Aggregate(shares)
}

// Recover reconstructs new key material from a quorum of guardian-held
// shares, per spec §4.4's `recover(guardian_shares, recovery_policy) →
// new_key_material`. The guardian shares are treated as a dealt
// (k_recovery, n_recovery) sharing of a dedicated recovery secret, distinct
// from the authority's signing key; once at least recoveryPolicy.M
// guardians contribute, their shares interpolate to that recovery secret,
// whose bytes seed a freshly dealt (t, n) threshold key set for the
// recovered authority — social recovery authorizes minting new signing
// material rather than resurrecting the lost one bit-for-bit.
func Recover(guardianShares []threshold.KeyPackage, recoveryPolicy RecoveryPolicy, newT, newN uint32) ([]threshold.KeyPackage, error) {
	if uint32(len(guardianShares)) < recoveryPolicy.M {
		return nil, fmt.Errorf("keys: recover: have %d guardian shares, need %d", len(guardianShares), recoveryPolicy.M)
	}
	secret, err := threshold.ReconstructSecret(guardianShares[:recoveryPolicy.M])
	if err != nil {
		return nil, fmt.Errorf("keys: recover: %w", err)
	}
	seed := secret.Bytes()
	rnd := deterministicRand{seed: seed[:]}
	dealt, err := threshold.GenerateDealt(newT, newN, rnd)
	if err != nil {
		return nil, fmt.Errorf("keys: recover: redeal: %w", err)
	}
	return dealt, nil
}

// RecoveryPolicy is the guardian quorum required before Recover proceeds.
type RecoveryPolicy struct {
	M, N uint32
}

// deterministicRand is a RandomEffects adapter that stretches a fixed
// seed via repeated hashing, used only to make Recover's redeal
// reproducible from the same reconstructed secret in tests.
type deterministicRand struct {
	seed []byte
	ctr  uint64
}

func (d deterministicRand) Bytes(n int) ([]byte, error) {
	out := make([]byte, 0, n)
	ctr := d.ctr
	for len(out) < n {
		block := hashCounter(d.seed, ctr)
		out = append(out, block[:]...)
		ctr++
	}
	return out[:n], nil
}

func (d deterministicRand) Uint64() (uint64, error) {
	b, err := d.Bytes(8)
	if err != nil {
		return 0, err
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v, nil
}

func hashCounter(seed []byte, ctr uint64) [32]byte {
	buf := make([]byte, len(seed)+8)
	copy(buf, seed)
	for i := 0; i < 8; i++ {
		buf[len(seed)+i] = byte(ctr >> (8 * i))
	}
	return sha256.Sum256(buf)
}
