package sync

import (
	"context"
	"fmt"
	"sort"

	"github.com/hxrts/aura/pkg/fact"
	"github.com/hxrts/aura/pkg/firestore"
	"github.com/hxrts/aura/pkg/ids"
)

// RemoteMirror is a durable off-device journal backup reachable as a third
// anti-entropy replication peer, grounded on pkg/firestore.Client's
// enabled-gated wrapper: when disabled (the common case in tests and local
// development) every operation is a no-op, matching the teacher's own
// "Firestore disabled - skipping ..." pattern rather than erroring out.
//
// Facts are stored one document per fact under
// accounts/{accountID}/facts/{factID}, keyed by the fact's own hex id so
// mirrors for independent accounts never collide.
type RemoteMirror struct {
	client    *firestore.Client
	accountID ids.AccountId
}

func NewRemoteMirror(client *firestore.Client, accountID ids.AccountId) *RemoteMirror {
	return &RemoteMirror{client: client, accountID: accountID}
}

func (m *RemoteMirror) collectionPath() string {
	return fmt.Sprintf("accounts/%s/facts", m.accountID)
}

// Mirror persists f to the remote backup, a no-op if the client is
// disabled.
func (m *RemoteMirror) Mirror(ctx context.Context, f fact.Fact) error {
	if !m.client.IsEnabled() {
		return nil
	}
	coll := m.client.Collection(m.collectionPath())
	if coll == nil {
		return fmt.Errorf("sync: remote mirror: collection unavailable")
	}
	_, err := coll.Doc(f.FactId.String()).Set(ctx, map[string]interface{}{
		"encoded": fact.EncodeFact(f),
	})
	if err != nil {
		return fmt.Errorf("sync: remote mirror: write %s: %w", f.FactId, err)
	}
	return nil
}

// Inventory implements Peer: the full set of mirrored fact ids for this
// account. since is ignored beyond filtering the client-side diff — the
// mirror keeps no per-device cursor of its own, matching its role as a
// flat backup rather than a participant in the collision-lottery session
// protocol.
func (m *RemoteMirror) Inventory(ctx context.Context, since *ids.ID256) (Inventory, error) {
	if !m.client.IsEnabled() {
		return Inventory{}, nil
	}
	coll := m.client.Collection(m.collectionPath())
	if coll == nil {
		return Inventory{}, fmt.Errorf("sync: remote mirror: collection unavailable")
	}
	docs, err := coll.Documents(ctx).GetAll()
	if err != nil {
		return Inventory{}, fmt.Errorf("sync: remote mirror: list: %w", err)
	}
	out := make([]ids.ID256, 0, len(docs))
	for _, doc := range docs {
		id, err := ids.ID256FromHex(doc.Ref.ID)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return Inventory{Root: merkleRoot(out), FactIds: out}, nil
}

// Fetch implements Peer: retrieve mirrored facts by id.
func (m *RemoteMirror) Fetch(ctx context.Context, factIDs []ids.ID256) ([]fact.Fact, error) {
	if !m.client.IsEnabled() {
		return nil, nil
	}
	coll := m.client.Collection(m.collectionPath())
	if coll == nil {
		return nil, fmt.Errorf("sync: remote mirror: collection unavailable")
	}
	out := make([]fact.Fact, 0, len(factIDs))
	for _, id := range factIDs {
		snap, err := coll.Doc(id.String()).Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("sync: remote mirror: fetch %s: %w", id, err)
		}
		raw, ok := snap.Data()["encoded"].([]byte)
		if !ok {
			return nil, fmt.Errorf("sync: remote mirror: fetch %s: malformed document", id)
		}
		f, err := fact.DecodeFact(raw)
		if err != nil {
			return nil, fmt.Errorf("sync: remote mirror: decode %s: %w", id, err)
		}
		out = append(out, f)
	}
	return out, nil
}
