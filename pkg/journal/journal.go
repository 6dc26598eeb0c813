// Package journal implements component C2: a per-account append-only log
// of signed facts with agreement metadata and a CRDT delta reducer. The KV
// layout is adapted from pkg/ledger/store.go's key-builder style, scoped
// to the journal/<account>/... namespaces in spec §6.4.
package journal

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hxrts/aura/pkg/effects"
	"github.com/hxrts/aura/pkg/fact"
	"github.com/hxrts/aura/pkg/ids"
)

// ====== KV Key Layout (spec §6.4) ======

func factKey(account ids.AccountId, factID ids.ID256) []byte {
	k := append([]byte("journal/"), account[:]...)
	k = append(k, '/')
	return append(k, factID[:]...)
}

func headKey(account ids.AccountId, device ids.DeviceId) []byte {
	k := append([]byte("journal/"), account[:]...)
	k = append(k, []byte("/head/")...)
	return append(k, device[:]...)
}

func factPrefix(account ids.AccountId) []byte {
	return append([]byte("journal/"), account[:]...)
}

// AuthorVerifier checks a fact's Authorization against the author's key
// material valid at EpochAtWrite; wired from pkg/keys by composition
// roots so the journal itself stays free of key-lifecycle concerns.
type AuthorVerifier interface {
	Verify(f fact.Fact) (bool, error)
}

// Journal is the per-account append-only log. It assumes single-writer
// access on the append path, the same concurrency contract
// pkg/ledger.LedgerStore documents for its commit thread, with snapshot
// reads permitted concurrently (spec §5).
type Journal struct {
	account  ids.AccountId
	storage  effects.StorageEffects
	verifier AuthorVerifier
	capCheck fact.CapabilityChecker
	reducer  Reducer

	// heads, nonces, suspects and children live in memory only: New starts
	// them empty and nothing rebuilds them from storage.
	heads    map[ids.DeviceId]ids.ID256
	nonces   map[ids.DeviceId]uint64
	suspects map[ids.DeviceId]bool
	children map[ids.ID256][]ids.ID256 // parent_hash -> children fact ids, for equivocation detection
}

// New constructs a Journal for account, backed by storage, using verifier
// to check incoming fact signatures and capCheck to gate payload kinds per
// author (spec §7's InsufficientPermissions).
func New(account ids.AccountId, storage effects.StorageEffects, verifier AuthorVerifier, capCheck fact.CapabilityChecker, reducer Reducer) *Journal {
	if capCheck == nil {
		capCheck = fact.AllowAllCapabilities{}
	}
	return &Journal{
		account:  account,
		storage:  storage,
		verifier: verifier,
		capCheck: capCheck,
		reducer:  reducer,
		heads:    make(map[ids.DeviceId]ids.ID256),
		nonces:   make(map[ids.DeviceId]uint64),
		suspects: make(map[ids.DeviceId]bool),
		children: make(map[ids.ID256][]ids.ID256),
	}
}

// Append verifies, validates, and persists a locally authored fact. This
// is the single-writer path: callers must serialize Append calls per
// account (spec §5: "the journal's append path requires exclusive access").
func (j *Journal) Append(ctx context.Context, f fact.Fact) error {
	if !j.capCheck.Allows(f.AuthorDevice, f.Payload.Kind()) {
		return fmt.Errorf("journal: append %s: %w", f.FactId, ErrCapabilityDenied)
	}
	if j.verifier != nil {
		ok, err := j.verifier.Verify(f)
		if err != nil {
			return fmt.Errorf("journal: append %s: verify: %w", f.FactId, err)
		}
		if !ok {
			return fmt.Errorf("journal: append %s: %w", f.FactId, ErrSignatureInvalid)
		}
	}

	if err := j.checkNonceAndParent(f, true); err != nil {
		return err
	}

	if err := j.persist(ctx, f); err != nil {
		return err
	}
	j.reducer.Apply(f)
	return nil
}

// Merge accepts a batch of remote facts (spec §4.2's merge semantics):
// each is signature-checked, nonce-checked for equivocation, and applied
// to the reducer if accepted. Equivocating facts are still stored (both
// forks retained) but flag their author as suspect.
func (j *Journal) Merge(ctx context.Context, remote []fact.Fact) (MergeReport, error) {
	report := MergeReport{}
	for _, f := range remote {
		if j.IsSuspect(f.AuthorDevice) {
			report.Rejected = append(report.Rejected, RejectedFact{FactId: f.FactId, Reason: "author is suspect pending reconciliation"})
			continue
		}
		if j.verifier != nil {
			ok, err := j.verifier.Verify(f)
			if err != nil || !ok {
				report.Rejected = append(report.Rejected, RejectedFact{FactId: f.FactId, Reason: "signature verification failed"})
				continue
			}
		}

		equivocated, err := j.checkNonceAndParentMerge(f)
		if err != nil {
			report.Rejected = append(report.Rejected, RejectedFact{FactId: f.FactId, Reason: err.Error()})
			continue
		}

		if err := j.persist(ctx, f); err != nil {
			report.Rejected = append(report.Rejected, RejectedFact{FactId: f.FactId, Reason: err.Error()})
			continue
		}
		if equivocated {
			j.suspects[f.AuthorDevice] = true
			report.Equivocators = append(report.Equivocators, f.AuthorDevice)
		}
		j.reducer.Apply(f)
		report.Applied = append(report.Applied, f.FactId)
	}
	return report, nil
}

// checkNonceAndParent enforces the local-append invariants: strictly
// monotone nonce, parent_hash links to this author's current head.
func (j *Journal) checkNonceAndParent(f fact.Fact, isLocal bool) error {
	lastNonce, seen := j.nonces[f.AuthorDevice]
	if seen && f.Nonce <= lastNonce {
		return fmt.Errorf("journal: append %s: nonce %d <= last %d: %w", f.FactId, f.Nonce, lastNonce, ErrNonceRegression)
	}
	if head, ok := j.heads[f.AuthorDevice]; ok {
		if f.ParentHash == nil || *f.ParentHash != head {
			return fmt.Errorf("journal: append %s: parent_hash does not match author head: %w", f.FactId, ErrUnknownParent)
		}
	} else if f.ParentHash != nil {
		return fmt.Errorf("journal: append %s: non-genesis fact but author has no known head: %w", f.FactId, ErrUnknownParent)
	}
	return nil
}

// checkNonceAndParentMerge is the merge-path variant of the invariant
// check: equivocation (two distinct children of the same parent) is
// detected and reported rather than rejected outright, per §4.2: "both
// forks retained but are marked suspect."
func (j *Journal) checkNonceAndParentMerge(f fact.Fact) (equivocated bool, err error) {
	lastNonce, seen := j.nonces[f.AuthorDevice]
	if seen && f.Nonce <= lastNonce {
		equivocated = true
	}
	if f.ParentHash != nil {
		if existing := j.children[*f.ParentHash]; len(existing) > 0 {
			equivocated = true
		}
		j.children[*f.ParentHash] = append(j.children[*f.ParentHash], f.FactId)
	}
	return equivocated, nil
}

func (j *Journal) persist(ctx context.Context, f fact.Fact) error {
	encoded := fact.EncodeFact(f)
	if err := j.storage.Set(ctx, factKey(j.account, f.FactId), encoded); err != nil {
		return fmt.Errorf("journal: persist %s: %w", f.FactId, err)
	}
	if err := j.storage.Set(ctx, headKey(j.account, f.AuthorDevice), f.FactId[:]); err != nil {
		return fmt.Errorf("journal: persist head for %s: %w", f.AuthorDevice, err)
	}
	j.heads[f.AuthorDevice] = f.FactId
	j.nonces[f.AuthorDevice] = f.Nonce
	return nil
}

// Lookup retrieves a fact by id, or ErrFactNotFound.
func (j *Journal) Lookup(ctx context.Context, factID ids.ID256) (fact.Fact, error) {
	raw, err := j.storage.Get(ctx, factKey(j.account, factID))
	if errors.Is(err, effects.ErrNotFound) {
		return fact.Fact{}, ErrFactNotFound
	}
	if err != nil {
		return fact.Fact{}, fmt.Errorf("journal: lookup %s: %w", factID, err)
	}
	f, err := fact.DecodeFact(raw)
	if err != nil {
		return fact.Fact{}, fmt.Errorf("journal: lookup %s: %w", factID, ErrCorrupt)
	}
	return f, nil
}

// IterSince returns every fact in this account's journal that follows the
// fact whose id is marker, in storage (ascending key) order; the marker's
// own fact is not included, and an unknown marker yields no facts.
// marker==nil iterates from the beginning.
func (j *Journal) IterSince(ctx context.Context, marker *ids.ID256) ([]fact.Fact, error) {
	var out []fact.Fact
	started := marker == nil
	err := j.storage.Iterate(ctx, factPrefix(j.account), func(key, value []byte) bool {
		if len(key) >= len("journal//head/") && containsHeadSegment(key) {
			return true // skip head pointers, they live under the same prefix
		}
		f, decErr := fact.DecodeFact(value)
		if decErr != nil {
			return true
		}
		if !started {
			if marker != nil && f.FactId == *marker {
				started = true
			}
			return true
		}
		out = append(out, f)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("journal: iter_since: %w", err)
	}
	return out, nil
}

func containsHeadSegment(key []byte) bool {
	const seg = "/head/"
	if len(key) < len(seg) {
		return false
	}
	for i := 0; i+len(seg) <= len(key); i++ {
		if string(key[i:i+len(seg)]) == seg {
			return true
		}
	}
	return false
}

// DeriveState returns the reducer's current derived view.
func (j *Journal) DeriveState() interface{} {
	return j.reducer.View()
}

// IsSuspect reports whether dev has an unresolved equivocation flag
// (supplemented feature: equivocation-aware peer admission, grounded on
// original_source/crates/aura-transport/src/peers/tests.rs).
func (j *Journal) IsSuspect(dev ids.DeviceId) bool {
	return j.suspects[dev]
}

// Reconcile clears dev's suspect flag once a Category-C ceremony has
// resolved the conflicting forks out of band (spec §4.2).
func (j *Journal) Reconcile(dev ids.DeviceId) {
	delete(j.suspects, dev)
}

// MergeReport describes per-fact merge outcomes (spec §4.7's batched
// fetch "each batch is verified... on verification failure the offending
// fact is rejected and sync continues").
type MergeReport struct {
	Applied      []ids.ID256
	Rejected     []RejectedFact
	Equivocators []ids.DeviceId
}

type RejectedFact struct {
	FactId ids.ID256
	Reason string
}

// headMarker packs a uint64 ordering token; retained for future
// cursor-based pagination over large journals.
func headMarker(n uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, n)
	return b
}
