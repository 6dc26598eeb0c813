package amp

import (
	"testing"

	"github.com/hxrts/aura/pkg/crypto"
	"github.com/hxrts/aura/pkg/effects"
	"github.com/hxrts/aura/pkg/ids"
)

func testChannels() (*Channel, *Channel) {
	id := ids.RandomID128()
	root := make([]byte, 32)
	for i := range root {
		root[i] = byte(i)
	}
	a := NewChannel(id, crypto.SuiteChaCha20Poly1305, 1, root, DefaultWindow(), 1000)
	b := NewChannel(id, crypto.SuiteChaCha20Poly1305, 1, root, DefaultWindow(), 1000)
	return a, b
}

func TestSendRecvRoundTrip(t *testing.T) {
	alice, bob := testChannels()
	rand := effects.NewSimulated(1)
	aad := []byte("ctx-binding")

	frame, receipt, err := alice.Send(rand, []byte("hello bob"), aad, 10)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if receipt.SpentAfter != 10 {
		t.Fatalf("expected spent_after=10, got %d", receipt.SpentAfter)
	}

	_, plaintext, err := bob.Recv(frame, aad)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if string(plaintext) != "hello bob" {
		t.Fatalf("expected round-tripped plaintext, got %q", plaintext)
	}
}

func TestRecvRejectsEpochMismatch(t *testing.T) {
	alice, bob := testChannels()
	rand := effects.NewSimulated(2)
	aad := []byte("ctx")

	frame, _, err := alice.Send(rand, []byte("msg"), aad, 1)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	bob.Rekey(2, bob.rootSecret)

	if _, _, err := bob.Recv(frame, aad); err == nil {
		t.Fatalf("expected epoch mismatch rejection")
	} else if _, ok := err.(*ErrEpochMismatch); !ok {
		t.Fatalf("expected *ErrEpochMismatch, got %T: %v", err, err)
	}
}

func TestRecvRejectsGenerationOutOfWindow(t *testing.T) {
	alice, bob := testChannels()
	rand := effects.NewSimulated(3)
	aad := []byte("ctx")

	// Advance alice far past bob's window (lookahead=2).
	for i := 0; i < 5; i++ {
		alice.Advance()
	}
	frame, _, err := alice.Send(rand, []byte("msg"), aad, 1)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if _, _, err := bob.Recv(frame, aad); err == nil {
		t.Fatalf("expected generation-out-of-window rejection")
	} else if _, ok := err.(*ErrGenerationOutOfWindow); !ok {
		t.Fatalf("expected *ErrGenerationOutOfWindow, got %T: %v", err, err)
	}
}

func TestRecvAcceptsWithinWindowAfterAdvance(t *testing.T) {
	alice, bob := testChannels()
	rand := effects.NewSimulated(4)
	aad := []byte("ctx")

	alice.Advance()
	alice.Advance()
	frame, _, err := alice.Send(rand, []byte("msg"), aad, 1)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	// bob is still at generation 0; lookahead=2 means generation 2 is in window.
	if _, plaintext, err := bob.Recv(frame, aad); err != nil {
		t.Fatalf("expected in-window frame to decrypt, got %v", err)
	} else if string(plaintext) != "msg" {
		t.Fatalf("unexpected plaintext %q", plaintext)
	}
}

func TestSendRejectsOverBudget(t *testing.T) {
	alice, _ := testChannels()
	rand := effects.NewSimulated(5)

	if _, _, err := alice.Send(rand, []byte("x"), nil, 1001); err == nil {
		t.Fatalf("expected flow budget rejection")
	} else if _, ok := err.(*ErrFlowBudgetExceeded); !ok {
		t.Fatalf("expected *ErrFlowBudgetExceeded, got %T: %v", err, err)
	}
	if alice.BudgetRemaining() != 1000 {
		t.Fatalf("a rejected send must not charge budget, remaining=%d", alice.BudgetRemaining())
	}
}

func TestRecvRejectsWrongAAD(t *testing.T) {
	alice, bob := testChannels()
	rand := effects.NewSimulated(6)

	frame, _, err := alice.Send(rand, []byte("msg"), []byte("ctx-a"), 1)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, _, err := bob.Recv(frame, []byte("ctx-b")); err == nil {
		t.Fatalf("expected associated-data mismatch rejection")
	}
}
