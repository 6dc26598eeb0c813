package keys

import (
	"testing"

	"github.com/hxrts/aura/pkg/effects"
	"github.com/hxrts/aura/pkg/fact"
	"github.com/hxrts/aura/pkg/ids"
)

func TestGuardianCeremonyCommitsOnQuorum(t *testing.T) {
	sim := effects.NewSimulated(5)
	m := NewManager(1)
	guardians := []ids.AccountId{ids.RandomID256(), ids.RandomID256(), ids.RandomID256()}
	deadline := ids.PhysicalTime{UnixMillis: 10_000}

	c, dealt, err := ProposeGuardianCeremony(ids.RandomID128(), ids.RandomID256(), 2, 3, guardians, deadline, m, sim)
	if err != nil {
		t.Fatalf("propose ceremony: %v", err)
	}
	if len(dealt) != 3 {
		t.Fatalf("expected 3 dealt packages, got %d", len(dealt))
	}

	now := ids.PhysicalTime{UnixMillis: 1_000}
	if err := c.RecordAcceptance(fact.GuardianBinding{GuardianId: guardians[0], Epoch: c.PendingEpoch}, now); err != nil {
		t.Fatalf("record acceptance 1: %v", err)
	}
	if _, err := c.TryCommit(now); err != ErrInsufficientAccepts {
		t.Fatalf("expected ErrInsufficientAccepts with only 1 of 2 required acceptances, got %v", err)
	}

	if err := c.RecordAcceptance(fact.GuardianBinding{GuardianId: guardians[1], Epoch: c.PendingEpoch}, now); err != nil {
		t.Fatalf("record acceptance 2: %v", err)
	}
	rotation, err := c.TryCommit(now)
	if err != nil {
		t.Fatalf("try commit: %v", err)
	}
	if rotation.NewEpoch != c.PendingEpoch || rotation.K != 2 || rotation.N != 3 {
		t.Fatalf("unexpected rotation fact: %+v", rotation)
	}
	if c.Status() != CeremonyCommitted {
		t.Fatalf("expected ceremony to be committed")
	}
	if m.Active().Epoch != c.PendingEpoch {
		t.Fatalf("expected manager's active epoch to reflect the committed ceremony")
	}
}

func TestGuardianCeremonyExpiresAndRollsBack(t *testing.T) {
	sim := effects.NewSimulated(6)
	m := NewManager(1)
	guardians := []ids.AccountId{ids.RandomID256(), ids.RandomID256(), ids.RandomID256()}
	deadline := ids.PhysicalTime{UnixMillis: 1_000}

	c, _, err := ProposeGuardianCeremony(ids.RandomID128(), ids.RandomID256(), 2, 3, guardians, deadline, m, sim)
	if err != nil {
		t.Fatalf("propose ceremony: %v", err)
	}

	late := ids.PhysicalTime{UnixMillis: 5_000}
	if err := c.RecordAcceptance(fact.GuardianBinding{GuardianId: guardians[0], Epoch: c.PendingEpoch}, late); err != ErrCeremonyExpired {
		t.Fatalf("expected ErrCeremonyExpired, got %v", err)
	}

	if err := c.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if c.Status() != CeremonyRolledBack {
		t.Fatalf("expected ceremony to be rolled back")
	}
	if m.Active().Epoch != 0 {
		t.Fatalf("expected manager's active epoch to remain at genesis after rollback")
	}
	if _, pending := m.Pending(); pending {
		t.Fatalf("expected no pending epoch after rollback")
	}
}
