package fact

import "github.com/hxrts/aura/pkg/ids"

// VisibilityManifest scopes which fact kinds are visible across a
// relationship/channel (supplemented from
// original_source/crates/aura-transport/src/privacy/relationship_scope.rs
// and manifest_manager.rs — the distilled spec only gestures at
// "relationship-scoped channels" in §1 without specifying the gating
// structure).
type VisibilityManifest struct {
	ContextId    ids.ContextId
	AllowedKinds map[PayloadKind]bool
}

// NewOpenManifest permits every payload kind for the context, the default
// for a freshly established relationship before any scoping is negotiated.
func NewOpenManifest(ctx ids.ContextId) VisibilityManifest {
	return VisibilityManifest{ContextId: ctx, AllowedKinds: nil}
}

// Allows reports whether kind may be shared within this manifest's
// context; a nil AllowedKinds set means "allow everything."
func (m VisibilityManifest) Allows(kind PayloadKind) bool {
	if m.AllowedKinds == nil {
		return true
	}
	return m.AllowedKinds[kind]
}

// Restrict returns a copy of m permitting only the given kinds.
func (m VisibilityManifest) Restrict(kinds ...PayloadKind) VisibilityManifest {
	allowed := make(map[PayloadKind]bool, len(kinds))
	for _, k := range kinds {
		allowed[k] = true
	}
	return VisibilityManifest{ContextId: m.ContextId, AllowedKinds: allowed}
}
