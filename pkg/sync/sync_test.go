package sync

import (
	"context"
	"testing"

	"github.com/hxrts/aura/pkg/effects"
	"github.com/hxrts/aura/pkg/fact"
	"github.com/hxrts/aura/pkg/ids"
	"github.com/hxrts/aura/pkg/journal"
)

type allowVerifier struct{}

func (allowVerifier) Verify(fact.Fact) (bool, error) { return true, nil }

func newJournal(seed uint64, account ids.AccountId) *journal.Journal {
	sim := effects.NewSimulated(seed)
	reducer := journal.NewMapReducer(func(f fact.Fact) (string, bool) { return "", false })
	return journal.New(account, sim, allowVerifier{}, nil, reducer)
}

// journalPeer adapts a Journal to the Peer interface for in-process tests,
// standing in for the AMP transport a real peer would use.
type journalPeer struct{ j *journal.Journal }

func (p journalPeer) Inventory(ctx context.Context, since *ids.ID256) (Inventory, error) {
	facts, err := p.j.IterSince(ctx, since)
	if err != nil {
		return Inventory{}, err
	}
	ids := make([]ids.ID256, len(facts))
	for i, f := range facts {
		ids[i] = f.FactId
	}
	return Inventory{Root: merkleRoot(ids), FactIds: ids}, nil
}

func (p journalPeer) Fetch(ctx context.Context, factIDs []ids.ID256) ([]fact.Fact, error) {
	out := make([]fact.Fact, 0, len(factIDs))
	for _, id := range factIDs {
		f, err := p.j.Lookup(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func TestSyncWithAppliesMissingFacts(t *testing.T) {
	ctx := context.Background()
	account := ids.RandomID256()
	dev := ids.RandomID256()

	remote := newJournal(1, account)
	var parent *ids.ID256
	for i := uint64(1); i <= 3; i++ {
		f := fact.Fact{FactId: ids.RandomID256(), AuthorDevice: dev, ParentHash: parent, Nonce: i, Payload: fact.ContactRemoved{ContactId: ids.RandomID256()}}
		if err := remote.Append(ctx, f); err != nil {
			t.Fatalf("seed remote fact %d: %v", i, err)
		}
		id := f.FactId
		parent = &id
	}

	local := newJournal(2, account)
	syncer := New(local, DefaultConfig())

	newCursor, report, err := syncer.SyncWith(ctx, journalPeer{j: remote}, nil)
	if err != nil {
		t.Fatalf("SyncWith: %v", err)
	}
	if report.Converged {
		t.Fatalf("expected divergence to be detected, not pre-converged")
	}
	total := 0
	for _, b := range report.Batches {
		total += b.Applied
	}
	if total != 3 {
		t.Fatalf("expected 3 facts applied, got %d (report=%+v)", total, report)
	}
	if newCursor == nil {
		t.Fatalf("expected a non-nil cursor after applying facts")
	}

	// A second round against the same peer should now observe convergence.
	_, report2, err := syncer.SyncWith(ctx, journalPeer{j: remote}, nil)
	if err != nil {
		t.Fatalf("second SyncWith: %v", err)
	}
	if !report2.Converged {
		t.Fatalf("expected convergence once both journals hold the same facts, got %+v", report2)
	}
}

func TestSyncWithRejectsSuspectAuthors(t *testing.T) {
	ctx := context.Background()
	account := ids.RandomID256()
	dev := ids.RandomID256()

	remote := newJournal(3, account)
	genesis := fact.Fact{FactId: ids.RandomID256(), AuthorDevice: dev, Nonce: 1, Payload: fact.ContactRemoved{ContactId: ids.RandomID256()}}
	if err := remote.Append(ctx, genesis); err != nil {
		t.Fatalf("seed genesis: %v", err)
	}

	local := newJournal(4, account)
	// Forge local's view of dev into suspect status directly, simulating a
	// prior equivocation detected from a different peer.
	forked := fact.Fact{FactId: ids.RandomID256(), AuthorDevice: dev, Nonce: 1, Payload: fact.ContactRemoved{ContactId: ids.RandomID256()}}
	otherFork := fact.Fact{FactId: ids.RandomID256(), AuthorDevice: dev, Nonce: 1, Payload: fact.ContactRemoved{ContactId: ids.RandomID256()}}
	if _, err := local.Merge(ctx, []fact.Fact{forked, otherFork}); err != nil {
		t.Fatalf("seed local equivocation: %v", err)
	}
	if !local.IsSuspect(dev) {
		t.Fatalf("expected dev to be suspect after seeding equivocating forks")
	}

	syncer := New(local, DefaultConfig())
	_, report, err := syncer.SyncWith(ctx, journalPeer{j: remote}, nil)
	if err != nil {
		t.Fatalf("SyncWith: %v", err)
	}
	for _, b := range report.Batches {
		if b.Applied != 0 {
			t.Fatalf("expected facts from a suspect author to be filtered before merge, got %+v", b)
		}
	}
}
