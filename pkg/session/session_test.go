package session

import (
	"context"
	"testing"
	"time"

	"github.com/hxrts/aura/pkg/effects"
	"github.com/hxrts/aura/pkg/ids"
)

type constProtocol struct{ value any }

func (p constProtocol) Run(ctx context.Context, s *Session) (any, error) { return p.value, nil }

type blockingProtocol struct {
	unblock chan struct{}
	value   any
}

func (p *blockingProtocol) Run(ctx context.Context, s *Session) (any, error) {
	select {
	case <-p.unblock:
		return p.value, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestComputeContextIdDeterministic(t *testing.T) {
	a := ComputeContextId("rotate_guardians", []byte("account-1"))
	b := ComputeContextId("rotate_guardians", []byte("account-1"))
	c := ComputeContextId("rotate_guardians", []byte("account-2"))
	if a != b {
		t.Fatalf("expected identical inputs to produce identical context ids")
	}
	if a == c {
		t.Fatalf("expected different inputs to produce different context ids")
	}
}

// TestRunCollisionLotteryWinnerRunsLoserAwaits covers spec §8 scenario 6:
// two devices call Run with identical context_id; the lexicographically
// least device wins the lottery and runs the protocol; the other awaits
// and receives the same result without ever creating its own session.
func TestRunCollisionLotteryWinnerRunsLoserAwaits(t *testing.T) {
	reg := NewRegistry()
	sim := effects.NewSimulated(1)

	var deviceA, deviceB ids.DeviceId
	deviceA[0], deviceB[0] = 0x01, 0x02
	proposers := []ids.DeviceId{deviceA, deviceB}

	proto := constProtocol{value: "agreed-outcome"}

	ctxA, resultA, errA := Run(context.Background(), reg, deviceA, proposers, "rotate_guardians", [][]byte{[]byte("acct")}, proposers, sim, proto)
	if errA != nil {
		t.Fatalf("device A run: %v", errA)
	}

	ctxB, resultB, errB := Run(context.Background(), reg, deviceB, proposers, "rotate_guardians", [][]byte{[]byte("acct")}, proposers, sim, proto)
	if errB != nil {
		t.Fatalf("device B run: %v", errB)
	}

	if ctxA != ctxB {
		t.Fatalf("expected both devices to compute the same context id")
	}
	if resultA != resultB {
		t.Fatalf("expected both devices to observe the same result, got %v and %v", resultA, resultB)
	}

	s, ok := reg.Lookup(ctxA)
	if !ok {
		t.Fatalf("expected exactly one session registered for the shared context")
	}
	if s.State() != StateCompleted {
		t.Fatalf("expected the winning session to be Completed, got %s", s.State())
	}
}

func TestRunAbortsOnProtocolError(t *testing.T) {
	reg := NewRegistry()
	sim := effects.NewSimulated(2)
	var device ids.DeviceId
	device[0] = 0x01

	failing := failingProtocol{}
	ctxID, _, err := Run(context.Background(), reg, device, []ids.DeviceId{device}, "op", nil, []ids.DeviceId{device}, sim, failing)
	if err == nil {
		t.Fatalf("expected protocol error to propagate")
	}
	s, ok := reg.Lookup(ctxID)
	if !ok {
		t.Fatalf("expected a session to be registered even on failure")
	}
	if s.State() != StateAborted {
		t.Fatalf("expected Aborted state after a protocol error, got %s", s.State())
	}
}

type failingProtocol struct{}

func (failingProtocol) Run(ctx context.Context, s *Session) (any, error) {
	return nil, &Error{Kind: KindOther, Err: context.DeadlineExceeded}
}

func TestRunPropagatesCancellationAsAborted(t *testing.T) {
	reg := NewRegistry()
	sim := effects.NewSimulated(3)
	var device ids.DeviceId
	device[0] = 0x01

	ctx, cancel := context.WithCancel(context.Background())
	unblock := make(chan struct{})
	proto := &blockingProtocol{unblock: unblock, value: "never"}

	done := make(chan struct{})
	var runErr error
	var sessionID ids.ContextId
	go func() {
		sessionID, _, runErr = Run(ctx, reg, device, []ids.DeviceId{device}, "op", nil, []ids.DeviceId{device}, sim, proto)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancellation")
	}

	if runErr == nil {
		t.Fatalf("expected cancellation to surface as an error")
	}
	s, ok := reg.Lookup(sessionID)
	if !ok {
		t.Fatalf("expected a session to be registered")
	}
	if s.State() != StateAborted {
		t.Fatalf("expected Aborted state after cancellation, got %s", s.State())
	}
}
