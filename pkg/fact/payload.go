package fact

import (
	"encoding/binary"
	"fmt"

	"github.com/hxrts/aura/pkg/ids"
)

// PayloadKind tags the fact payload union from spec §6.1.
type PayloadKind uint16

const (
	KindMessage PayloadKind = iota + 1
	KindContactAdded
	KindContactRemoved
	KindChannelMode
	KindGuardianBinding
	KindGuardianRotation
	KindTreeOp
	KindSessionStarted
	KindSessionCompleted
	KindSessionAborted
	KindConsensusCommit
	KindFlowCharge
	KindTransportObserved
	KindTombstone
)

// SchemaVersion is (major.minor.patch); spec §6.1's compatibility rule: a
// fact decodes iff its major matches the reader's, minor bumps add only
// optional fields.
type SchemaVersion struct {
	Major, Minor, Patch uint16
}

// CurrentSchemaVersion is this build's schema major/minor/patch.
var CurrentSchemaVersion = SchemaVersion{Major: 1, Minor: 0, Patch: 0}

// Payload is the tagged union; each payload kind below implements it.
type Payload interface {
	Kind() PayloadKind
	encodeBody(*encoder)
}

type Message struct {
	ChannelId    ids.ContextId
	SenderDevice ids.DeviceId
	Ciphertext   []byte
	AAD          []byte
}

func (Message) Kind() PayloadKind { return KindMessage }
func (m Message) encodeBody(e *encoder) {
	e.bytes(m.ChannelId[:])
	e.bytes(m.SenderDevice[:])
	e.blob(m.Ciphertext)
	e.blob(m.AAD)
}

type ContactAdded struct {
	ContactId    ids.AccountId
	Petname      string
	PublicKeyPkg []byte
}

func (ContactAdded) Kind() PayloadKind { return KindContactAdded }
func (c ContactAdded) encodeBody(e *encoder) {
	e.bytes(c.ContactId[:])
	e.str(c.Petname)
	e.blob(c.PublicKeyPkg)
}

type ContactRemoved struct{ ContactId ids.AccountId }

func (ContactRemoved) Kind() PayloadKind { return KindContactRemoved }
func (c ContactRemoved) encodeBody(e *encoder) { e.bytes(c.ContactId[:]) }

type ChannelMode struct {
	ChannelId ids.ContextId
	Flags     uint32
}

func (ChannelMode) Kind() PayloadKind { return KindChannelMode }
func (c ChannelMode) encodeBody(e *encoder) {
	e.bytes(c.ChannelId[:])
	e.u32(c.Flags)
}

type GuardianBinding struct {
	GuardianId    ids.AccountId
	Epoch         uint64
	AcceptanceSig []byte
}

func (GuardianBinding) Kind() PayloadKind { return KindGuardianBinding }
func (g GuardianBinding) encodeBody(e *encoder) {
	e.bytes(g.GuardianId[:])
	e.u64(g.Epoch)
	e.blob(g.AcceptanceSig)
}

type GuardianRotation struct {
	NewEpoch      uint64
	K, N          uint32
	NewGuardians  []ids.AccountId
}

func (GuardianRotation) Kind() PayloadKind { return KindGuardianRotation }
func (g GuardianRotation) encodeBody(e *encoder) {
	e.u64(g.NewEpoch)
	e.u32(g.K)
	e.u32(g.N)
	e.u32(uint32(len(g.NewGuardians)))
	for _, id := range g.NewGuardians {
		e.bytes(id[:])
	}
}

// TreeOp is the attested tree operation fact: the op's authorization is
// the aggregate threshold signature itself, carried in Fact.Authorization.
type TreeOp struct {
	OpKind           uint8
	ParentEpoch      uint64
	ParentCommitment [32]byte
	OpBody           []byte
	AggregateSig     []byte
}

func (TreeOp) Kind() PayloadKind { return KindTreeOp }
func (t TreeOp) encodeBody(e *encoder) {
	e.u8(t.OpKind)
	e.u64(t.ParentEpoch)
	e.bytes(t.ParentCommitment[:])
	e.blob(t.OpBody)
	e.blob(t.AggregateSig)
}

type SessionStarted struct {
	SessionId ids.SessionId
	ContextId ids.ContextId
}

func (SessionStarted) Kind() PayloadKind { return KindSessionStarted }
func (s SessionStarted) encodeBody(e *encoder) {
	e.bytes(s.SessionId[:])
	e.bytes(s.ContextId[:])
}

type SessionCompleted struct {
	SessionId  ids.SessionId
	ContextId  ids.ContextId
	ResultHash [32]byte
}

func (SessionCompleted) Kind() PayloadKind { return KindSessionCompleted }
func (s SessionCompleted) encodeBody(e *encoder) {
	e.bytes(s.SessionId[:])
	e.bytes(s.ContextId[:])
	e.bytes(s.ResultHash[:])
}

type SessionAborted struct {
	SessionId ids.SessionId
	ContextId ids.ContextId
	Reason    string
}

func (SessionAborted) Kind() PayloadKind { return KindSessionAborted }
func (s SessionAborted) encodeBody(e *encoder) {
	e.bytes(s.SessionId[:])
	e.bytes(s.ContextId[:])
	e.str(s.Reason)
}

type ConsensusCommit struct {
	ConsensusId  ids.ID128
	ResultId     ids.ID128
	AggregateSig []byte
	PrestateHash [32]byte
}

func (ConsensusCommit) Kind() PayloadKind { return KindConsensusCommit }
func (c ConsensusCommit) encodeBody(e *encoder) {
	e.bytes(c.ConsensusId[:])
	e.bytes(c.ResultId[:])
	e.blob(c.AggregateSig)
	e.bytes(c.PrestateHash[:])
}

type FlowCharge struct {
	Peer       ids.DeviceId
	Amount     uint64
	SpentAfter uint64
}

func (FlowCharge) Kind() PayloadKind { return KindFlowCharge }
func (f FlowCharge) encodeBody(e *encoder) {
	e.bytes(f.Peer[:])
	e.u64(f.Amount)
	e.u64(f.SpentAfter)
}

type TransportEvent uint8

const (
	TransportEstablished TransportEvent = iota
	TransportClosed
	TransportFailed
)

type TransportObserved struct {
	SessionId ids.SessionId
	ContextId ids.ContextId
	Protocol  string
	Event     TransportEvent
	Timestamp ids.PhysicalTime
}

func (TransportObserved) Kind() PayloadKind { return KindTransportObserved }
func (t TransportObserved) encodeBody(e *encoder) {
	e.bytes(t.SessionId[:])
	e.bytes(t.ContextId[:])
	e.str(t.Protocol)
	e.u8(uint8(t.Event))
	e.u64(uint64(t.Timestamp.UnixMillis))
}

type Tombstone struct {
	TargetFactId ids.ID256
	Reason       string
}

func (Tombstone) Kind() PayloadKind { return KindTombstone }
func (t Tombstone) encodeBody(e *encoder) {
	e.bytes(t.TargetFactId[:])
	e.str(t.Reason)
}

// encoder builds the little-endian, length-prefixed canonical encoding
// spec §6.1 requires.
type encoder struct {
	buf []byte
}

func (e *encoder) u8(v uint8)   { e.buf = append(e.buf, v) }
func (e *encoder) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}
func (e *encoder) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
}
func (e *encoder) bytes(b []byte) { e.buf = append(e.buf, b...) }
func (e *encoder) blob(b []byte) {
	e.u32(uint32(len(b)))
	e.buf = append(e.buf, b...)
}
func (e *encoder) str(s string) { e.blob([]byte(s)) }

// EncodePayload produces the canonical schema envelope + body bytes for a
// payload: type_id, schema_version, (empty metadata map for now), body.
func EncodePayload(p Payload) []byte {
	e := &encoder{}
	e.u32(uint32(p.Kind()))
	e.u32(uint32(CurrentSchemaVersion.Major))
	e.u32(uint32(CurrentSchemaVersion.Minor))
	e.u32(uint32(CurrentSchemaVersion.Patch))
	e.u32(0) // metadata map entry count
	p.encodeBody(e)
	return e.buf
}

// decoder reads the little-endian, length-prefixed canonical encoding.
type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) u8() (uint8, error) {
	if d.pos+1 > len(d.buf) {
		return 0, fmt.Errorf("fact: decode: truncated u8")
	}
	v := d.buf[d.pos]
	d.pos++
	return v, nil
}

func (d *decoder) u32() (uint32, error) {
	if d.pos+4 > len(d.buf) {
		return 0, fmt.Errorf("fact: decode: truncated u32")
	}
	v := binary.LittleEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *decoder) u64() (uint64, error) {
	if d.pos+8 > len(d.buf) {
		return 0, fmt.Errorf("fact: decode: truncated u64")
	}
	v := binary.LittleEndian.Uint64(d.buf[d.pos:])
	d.pos += 8
	return v, nil
}

func (d *decoder) fixed(n int) ([]byte, error) {
	if d.pos+n > len(d.buf) {
		return nil, fmt.Errorf("fact: decode: truncated fixed(%d)", n)
	}
	v := d.buf[d.pos : d.pos+n]
	d.pos += n
	return v, nil
}

func (d *decoder) blob() ([]byte, error) {
	n, err := d.u32()
	if err != nil {
		return nil, err
	}
	return d.fixed(int(n))
}

func (d *decoder) str() (string, error) {
	b, err := d.blob()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodePayload reads the schema envelope, enforces the major-version
// compatibility rule, and dispatches on type_id.
func DecodePayload(data []byte) (Payload, error) {
	d := &decoder{buf: data}
	kindRaw, err := d.u32()
	if err != nil {
		return nil, fmt.Errorf("fact: decode payload: %w", err)
	}
	major, err := d.u32()
	if err != nil {
		return nil, err
	}
	if _, err := d.u32(); err != nil { // minor
		return nil, err
	}
	if _, err := d.u32(); err != nil { // patch
		return nil, err
	}
	metaCount, err := d.u32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < metaCount; i++ {
		if _, err := d.blob(); err != nil { // key
			return nil, err
		}
		if _, err := d.blob(); err != nil { // value
			return nil, err
		}
	}
	if uint16(major) != CurrentSchemaVersion.Major {
		return nil, fmt.Errorf("fact: decode payload: major version %d incompatible with reader %d", major, CurrentSchemaVersion.Major)
	}

	kind := PayloadKind(kindRaw)
	switch kind {
	case KindMessage:
		var chID ids.ContextId
		chb, err := d.fixed(16)
		if err != nil {
			return nil, err
		}
		copy(chID[:], chb)
		var sender ids.DeviceId
		sb, err := d.fixed(32)
		if err != nil {
			return nil, err
		}
		copy(sender[:], sb)
		ct, err := d.blob()
		if err != nil {
			return nil, err
		}
		aad, err := d.blob()
		if err != nil {
			return nil, err
		}
		return Message{ChannelId: chID, SenderDevice: sender, Ciphertext: ct, AAD: aad}, nil
	case KindContactRemoved:
		var cID ids.AccountId
		cb, err := d.fixed(32)
		if err != nil {
			return nil, err
		}
		copy(cID[:], cb)
		return ContactRemoved{ContactId: cID}, nil
	case KindTombstone:
		var fID ids.ID256
		fb, err := d.fixed(32)
		if err != nil {
			return nil, err
		}
		copy(fID[:], fb)
		reason, err := d.str()
		if err != nil {
			return nil, err
		}
		return Tombstone{TargetFactId: fID, Reason: reason}, nil
	default:
		// Every other kind round-trips through the same encoder shape;
		// the full decode matrix lives in payload_decode.go to keep this
		// dispatch readable.
		return decodePayloadExtended(kind, d)
	}
}
