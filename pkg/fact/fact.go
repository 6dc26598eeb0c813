// Package fact implements the unit of replicated state (component C2's
// data model): a signed, immutable record appended to a per-account
// journal, plus its canonical wire encoding (spec §6.1).
package fact

import (
	"github.com/hxrts/aura/pkg/ids"
)

// AgreementLevel is a fact's replication-confidence tier (spec §3, §4.2).
type AgreementLevel uint8

const (
	AgreementProvisional AgreementLevel = iota
	AgreementSoftSafe
	AgreementFinalized
)

func (l AgreementLevel) String() string {
	switch l {
	case AgreementProvisional:
		return "provisional"
	case AgreementSoftSafe:
		return "soft-safe"
	case AgreementFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// Agreement carries a fact's replication state and, once finalized, the
// consensus instance that finalized it.
type Agreement struct {
	Level       AgreementLevel
	ConsensusId *ids.ID128 // non-nil iff Level == AgreementFinalized
}

// AuthorizationKind distinguishes a single-device Ed25519 signature from a
// threshold group signature over the fact.
type AuthorizationKind uint8

const (
	AuthDeviceCert AuthorizationKind = iota
	AuthThreshold
)

// Authorization is the fact's signature, either an Ed25519 device
// certificate signature or a FROST-like threshold aggregate.
type Authorization struct {
	Kind      AuthorizationKind
	Signature []byte
}

// Fact is the unit of replicated state (spec §3's "Fact").
type Fact struct {
	FactId        ids.ID256
	AccountId     ids.AccountId
	AuthorDevice  ids.DeviceId
	ParentHash    *ids.ID256 // nil for an author's first fact
	EpochAtWrite  uint64
	Nonce         uint64 // strictly increasing per author
	Physical      ids.PhysicalTime
	Logical       ids.LogicalTime
	Payload       Payload
	Authorization Authorization
	Agreement     Agreement
	Acknowledgment map[ids.AuthorityId]ids.PhysicalTime
}

// CapabilityChecker gates which device may submit which fact kind
// (supplemented from original_source/crates/aura-protocol's capability
// authorization; spec §7's InsufficientPermissions error kind).
type CapabilityChecker interface {
	Allows(author ids.DeviceId, kind PayloadKind) bool
}

// AllowAllCapabilities is the default CapabilityChecker for single-device
// test setups and the demo node, where every device may submit any kind.
type AllowAllCapabilities struct{}

func (AllowAllCapabilities) Allows(ids.DeviceId, PayloadKind) bool { return true }
