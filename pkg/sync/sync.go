// Package sync implements component C7: anti-entropy reconciliation between
// two authorized journal replicas (spec §4.7). The inventory-exchange step
// is grounded on the teacher's pkg/merkle (Merkle-rooted set summaries
// rather than the spec's alternative bloom-filter option, since no bloom
// filter library appears anywhere in the retrieved pack); the batched
// fetch/retry loop follows the teacher's pkg/batch timing-and-retry idiom
// but uses github.com/cenkalti/backoff/v4 (present elsewhere in the
// retrieved pack) rather than the teacher's own hand-rolled ticker, since
// this is a request/response retry rather than an on-cadence timer.
package sync

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/hxrts/aura/pkg/fact"
	"github.com/hxrts/aura/pkg/ids"
	"github.com/hxrts/aura/pkg/journal"
	"github.com/hxrts/aura/pkg/merkle"
)

// Peer is a remote replica this device can reconcile against: another
// device's journal over AMP, or a durable off-device mirror (see
// RemoteMirror in remote_firestore.go).
type Peer interface {
	// Inventory returns a compact summary of facts the peer holds after
	// since, the since fact itself excluded (nil means "from the beginning").
	Inventory(ctx context.Context, since *ids.ID256) (Inventory, error)
	// Fetch retrieves the full facts for the given ids from the peer.
	Fetch(ctx context.Context, factIDs []ids.ID256) ([]fact.Fact, error)
}

// Inventory is the compact, compressed-set-based summary spec §4.7 calls
// for: a Merkle root over the held fact ids (for a cheap equality check)
// plus the ids themselves, which are already far smaller than the facts
// they identify.
type Inventory struct {
	Root    []byte
	FactIds []ids.ID256
}

// Config governs batching and retry for one Syncer.
type Config struct {
	BatchSize      int
	MaxAttempts    uint64
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig matches spec §6.3's suggested defaults for sync tuning.
func DefaultConfig() Config {
	return Config{
		BatchSize:      64,
		MaxAttempts:    5,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
	}
}

// BatchOutcome records one batch's fetch-and-merge result, the
// per-batch granularity spec §4.7's report requires.
type BatchOutcome struct {
	Requested int
	Applied   int
	Rejected  []journal.RejectedFact
	Err       error
}

// Report summarizes one sync_with call (spec §4.7's `report`).
type Report struct {
	Converged    bool
	Batches      []BatchOutcome
	Equivocators []ids.DeviceId
}

// Syncer drives anti-entropy reconciliation for one local journal.
type Syncer struct {
	journal *journal.Journal
	cfg     Config
}

func New(j *journal.Journal, cfg Config) *Syncer {
	return &Syncer{journal: j, cfg: cfg}
}

// LocalInventory computes this device's compact summary of facts recorded
// since cursor, for a peer to diff against.
func (s *Syncer) LocalInventory(ctx context.Context, cursor *ids.ID256) (Inventory, error) {
	facts, err := s.journal.IterSince(ctx, cursor)
	if err != nil {
		return Inventory{}, fmt.Errorf("sync: local inventory: %w", err)
	}
	ids := make([]ids.ID256, len(facts))
	for i, f := range facts {
		ids[i] = f.FactId
	}
	return Inventory{Root: merkleRoot(ids), FactIds: ids}, nil
}

// SyncWith runs one full sync_with(peer, cursor) round (spec §4.7):
// inventory exchange, then batched fetch-and-merge with retry, returning
// the narrowed cursor and a report of what happened.
func (s *Syncer) SyncWith(ctx context.Context, peer Peer, cursor *ids.ID256) (*ids.ID256, Report, error) {
	local, err := s.LocalInventory(ctx, cursor)
	if err != nil {
		return cursor, Report{}, err
	}
	remote, err := peer.Inventory(ctx, cursor)
	if err != nil {
		return cursor, Report{}, fmt.Errorf("sync: peer inventory: %w", err)
	}

	if bytes.Equal(local.Root, remote.Root) {
		return cursor, Report{Converged: true}, nil
	}

	missing := missingFrom(remote.FactIds, local.FactIds)
	report := Report{Converged: len(missing) == 0}
	newCursor := cursor

	batchSize := s.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}
	for i := 0; i < len(missing); i += batchSize {
		end := i + batchSize
		if end > len(missing) {
			end = len(missing)
		}
		batchIDs := missing[i:end]

		facts, err := s.fetchWithRetry(ctx, peer, batchIDs)
		if err != nil {
			report.Batches = append(report.Batches, BatchOutcome{Requested: len(batchIDs), Err: err})
			continue // persistent failure: batched into the report, sync continues (spec §4.7)
		}

		var accepted []fact.Fact
		for _, f := range facts {
			if s.journal.IsSuspect(f.AuthorDevice) {
				continue
			}
			accepted = append(accepted, f)
		}
		// Facts arrive in fact-id order; merge each author's chain in nonce
		// order so a later fact is not mistaken for a fork of an earlier one.
		sort.SliceStable(accepted, func(a, b int) bool { return accepted[a].Nonce < accepted[b].Nonce })

		mergeReport, err := s.journal.Merge(ctx, accepted)
		if err != nil {
			report.Batches = append(report.Batches, BatchOutcome{Requested: len(batchIDs), Err: err})
			continue
		}
		report.Batches = append(report.Batches, BatchOutcome{
			Requested: len(batchIDs),
			Applied:   len(mergeReport.Applied),
			Rejected:  mergeReport.Rejected,
		})
		report.Equivocators = append(report.Equivocators, mergeReport.Equivocators...)
		if len(mergeReport.Applied) > 0 {
			last := mergeReport.Applied[len(mergeReport.Applied)-1]
			newCursor = &last
		}
	}

	return newCursor, report, nil
}

func (s *Syncer) fetchWithRetry(ctx context.Context, peer Peer, batchIDs []ids.ID256) ([]fact.Fact, error) {
	var result []fact.Fact
	attempt := func() error {
		facts, err := peer.Fetch(ctx, batchIDs)
		if err != nil {
			return err
		}
		result = facts
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.cfg.InitialBackoff
	eb.MaxInterval = s.cfg.MaxBackoff
	bounded := backoff.WithMaxRetries(eb, s.cfg.MaxAttempts)

	if err := backoff.Retry(attempt, backoff.WithContext(bounded, ctx)); err != nil {
		return nil, &ErrPersistentFailure{BatchSize: len(batchIDs), Cause: err}
	}
	return result, nil
}

// missingFrom returns the ids present in remoteIDs but absent from
// localIDs — the delta this device still needs to fetch.
func missingFrom(remoteIDs, localIDs []ids.ID256) []ids.ID256 {
	local := make(map[ids.ID256]bool, len(localIDs))
	for _, id := range localIDs {
		local[id] = true
	}
	var out []ids.ID256
	for _, id := range remoteIDs {
		if !local[id] {
			out = append(out, id)
		}
	}
	return out
}

// merkleRoot builds a deterministic root over a fact-id set: sorted so two
// replicas holding the same facts compute the same root regardless of
// insertion order, satisfying the convergence property spec §7 requires.
func merkleRoot(factIDs []ids.ID256) []byte {
	if len(factIDs) == 0 {
		return nil
	}
	sorted := append([]ids.ID256(nil), factIDs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	leaves := make([][]byte, len(sorted))
	for i, id := range sorted {
		leaf := id
		leaves[i] = leaf[:]
	}
	tree, err := merkle.BuildTree(leaves)
	if err != nil {
		return nil
	}
	return tree.Root()
}
