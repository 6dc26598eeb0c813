package keys

import (
	"testing"

	"github.com/hxrts/aura/pkg/crypto/threshold"
	"github.com/hxrts/aura/pkg/effects"
)

func TestRotateCommitPromotesPendingEpoch(t *testing.T) {
	sim := effects.NewSimulated(1)
	m := NewManager(1)

	epoch, dealt, err := m.Rotate(2, 3, sim)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if epoch != 1 {
		t.Fatalf("expected new epoch 1, got %d", epoch)
	}
	if len(dealt) != 3 {
		t.Fatalf("expected 3 dealt packages, got %d", len(dealt))
	}
	if m.Active().Epoch != 0 {
		t.Fatalf("active epoch must not change before commit")
	}

	if err := m.Commit(epoch); err != nil {
		t.Fatalf("commit: %v", err)
	}
	active := m.Active()
	if active.Epoch != 1 || active.Mode != ModeThreshold {
		t.Fatalf("unexpected active state after commit: %+v", active)
	}
	if active.Local == nil {
		t.Fatalf("expected holder 1 to retain its own key package")
	}
	if _, pending := m.Pending(); pending {
		t.Fatalf("pending epoch should be cleared after commit")
	}
}

func TestRotateRollbackLeavesActiveUnchanged(t *testing.T) {
	sim := effects.NewSimulated(2)
	m := NewManager(1)

	epoch, _, err := m.Rotate(2, 3, sim)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if err := m.Rollback(epoch); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if m.Active().Epoch != 0 {
		t.Fatalf("active epoch must remain at genesis after rollback")
	}
	if _, pending := m.Pending(); pending {
		t.Fatalf("pending epoch should be cleared after rollback")
	}
	if err := m.Commit(epoch); err == nil {
		t.Fatalf("expected commit of a rolled-back epoch to fail")
	}
}

func TestCoordinateThresholdSignVerifies(t *testing.T) {
	sim := effects.NewSimulated(3)
	m := NewManager(1)

	epoch, dealt, err := m.Rotate(2, 3, sim)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if err := m.Commit(epoch); err != nil {
		t.Fatalf("commit: %v", err)
	}

	message := []byte("transfer authority")
	sig, err := CoordinateThresholdSign(message, dealt[:2])
	if err != nil {
		t.Fatalf("coordinate sign: %v", err)
	}
	if !m.Verify(message, sig) {
		t.Fatalf("expected aggregated signature to verify against active group key")
	}
}

func TestRecoverProducesUsableKeySet(t *testing.T) {
	sim := effects.NewSimulated(4)
	guardianShares, err := threshold.GenerateDealt(2, 3, sim)
	if err != nil {
		t.Fatalf("generate guardian shares: %v", err)
	}

	newPackages, err := Recover(guardianShares[:2], RecoveryPolicy{M: 2, N: 3}, 2, 3)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if len(newPackages) != 3 {
		t.Fatalf("expected 3 recovered packages, got %d", len(newPackages))
	}

	message := []byte("recovered authority ping")
	sig, err := CoordinateThresholdSign(message, newPackages[:2])
	if err != nil {
		t.Fatalf("coordinate sign with recovered material: %v", err)
	}
	if !threshold.Verify(newPackages[0].Group, message, sig) {
		t.Fatalf("expected recovered key material to produce a verifiable signature")
	}
}
