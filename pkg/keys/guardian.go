package keys

import (
	"fmt"
	"sync"

	"github.com/hxrts/aura/pkg/crypto/threshold"
	"github.com/hxrts/aura/pkg/effects"
	"github.com/hxrts/aura/pkg/fact"
	"github.com/hxrts/aura/pkg/ids"
)

// CeremonyStatus tracks a guardian ceremony's lifecycle (spec §4.4):
// "propose → keygen at pending epoch → dispatch invitations → collect k
// acceptances ... if threshold reached within the configured window,
// commit ... on timeout/decline/cancel, rollback."
type CeremonyStatus uint8

const (
	CeremonyProposed CeremonyStatus = iota
	CeremonyAwaitingAcceptances
	CeremonyCommitted
	CeremonyRolledBack
)

var (
	ErrCeremonyNotAwaiting = fmt.Errorf("keys: ceremony is not awaiting acceptances")
	ErrCeremonyExpired     = fmt.Errorf("keys: ceremony acceptance window has expired")
	ErrInsufficientAccepts = fmt.Errorf("keys: fewer than k guardians have accepted")
)

// Ceremony coordinates one guardian-set rotation: a proposal to change to
// a new (k, n) guardian set, the keygen run at a pending epoch, and the
// acceptance collection that gates commit.
type Ceremony struct {
	mu sync.Mutex

	Id           ids.CeremonyId
	AccountId    ids.AccountId
	K, N         uint32
	Guardians    []ids.AccountId
	PendingEpoch uint64
	Deadline     ids.PhysicalTime

	status      CeremonyStatus
	acceptances map[ids.AccountId]fact.GuardianBinding
	manager     *Manager
}

// ProposeGuardianCeremony starts a new ceremony: runs threshold keygen at
// a pending epoch on the account's key manager and opens the acceptance
// window. Returns the dealt key packages for out-of-band distribution to
// each guardian, exactly as Manager.Rotate does for ordinary rotation.
func ProposeGuardianCeremony(
	id ids.CeremonyId, account ids.AccountId, k, n uint32, guardians []ids.AccountId,
	deadline ids.PhysicalTime, manager *Manager, rnd effects.RandomEffects,
) (*Ceremony, []threshold.KeyPackage, error) {
	if uint32(len(guardians)) != n {
		return nil, nil, fmt.Errorf("keys: propose ceremony: guardian set has %d members, want n=%d", len(guardians), n)
	}
	epoch, dealt, err := manager.Rotate(k, n, rnd)
	if err != nil {
		return nil, nil, fmt.Errorf("keys: propose ceremony: %w", err)
	}
	c := &Ceremony{
		Id: id, AccountId: account, K: k, N: n, Guardians: guardians,
		PendingEpoch: epoch, Deadline: deadline,
		status:      CeremonyAwaitingAcceptances,
		acceptances: make(map[ids.AccountId]fact.GuardianBinding),
		manager:     manager,
	}
	return c, dealt, nil
}

// RecordAcceptance accepts one guardian's journaled GuardianBinding fact
// into the ceremony. Guardians not in the proposed set are rejected;
// acceptances recorded after the deadline are rejected with
// ErrCeremonyExpired so callers can roll back.
func (c *Ceremony) RecordAcceptance(binding fact.GuardianBinding, now ids.PhysicalTime) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != CeremonyAwaitingAcceptances {
		return ErrCeremonyNotAwaiting
	}
	if now.UnixMillis > c.Deadline.UnixMillis {
		return ErrCeremonyExpired
	}
	if binding.Epoch != c.PendingEpoch {
		return fmt.Errorf("keys: record acceptance: epoch %d does not match pending epoch %d", binding.Epoch, c.PendingEpoch)
	}
	if !isGuardian(c.Guardians, binding.GuardianId) {
		return fmt.Errorf("keys: record acceptance: %s is not a guardian in this ceremony", binding.GuardianId)
	}
	c.acceptances[binding.GuardianId] = binding
	return nil
}

// AcceptanceCount reports how many distinct guardians have accepted.
func (c *Ceremony) AcceptanceCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.acceptances)
}

// TryCommit commits the pending epoch once at least k guardians have
// accepted within the window; otherwise returns ErrInsufficientAccepts
// without changing ceremony state, so the caller can keep collecting
// acceptances or decide to roll back on timeout.
func (c *Ceremony) TryCommit(now ids.PhysicalTime) (fact.GuardianRotation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != CeremonyAwaitingAcceptances {
		return fact.GuardianRotation{}, ErrCeremonyNotAwaiting
	}
	if now.UnixMillis > c.Deadline.UnixMillis {
		return fact.GuardianRotation{}, ErrCeremonyExpired
	}
	if uint32(len(c.acceptances)) < c.K {
		return fact.GuardianRotation{}, ErrInsufficientAccepts
	}
	if err := c.manager.Commit(c.PendingEpoch); err != nil {
		return fact.GuardianRotation{}, fmt.Errorf("keys: try commit: %w", err)
	}
	c.status = CeremonyCommitted
	return fact.GuardianRotation{NewEpoch: c.PendingEpoch, K: c.K, N: c.N, NewGuardians: c.Guardians}, nil
}

// Rollback discards the pending epoch, used on timeout, decline, or
// explicit cancellation.
func (c *Ceremony) Rollback() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != CeremonyAwaitingAcceptances {
		return ErrCeremonyNotAwaiting
	}
	if err := c.manager.Rollback(c.PendingEpoch); err != nil {
		return fmt.Errorf("keys: rollback: %w", err)
	}
	c.status = CeremonyRolledBack
	return nil
}

// Status returns the ceremony's current lifecycle state.
func (c *Ceremony) Status() CeremonyStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func isGuardian(guardians []ids.AccountId, id ids.AccountId) bool {
	for _, g := range guardians {
		if g == id {
			return true
		}
	}
	return false
}
