package fact

import (
	"fmt"
	"sort"

	"github.com/hxrts/aura/pkg/ids"
)

// EncodeFact produces the canonical persisted byte form spec §4.2 requires
// ("Facts are persisted in canonical byte form").
func EncodeFact(f Fact) []byte {
	e := &encoder{}
	e.bytes(f.FactId[:])
	e.bytes(f.AccountId[:])
	e.bytes(f.AuthorDevice[:])
	if f.ParentHash != nil {
		e.u8(1)
		e.bytes(f.ParentHash[:])
	} else {
		e.u8(0)
	}
	e.u64(f.EpochAtWrite)
	e.u64(f.Nonce)
	e.u64(uint64(f.Physical.UnixMillis))
	e.u64(uint64(f.Physical.UncertaintyMs))
	e.u64(f.Logical.Lamport)
	e.u32(uint32(len(f.Logical.VectorClock)))
	devs := make([]ids.DeviceId, 0, len(f.Logical.VectorClock))
	for dev := range f.Logical.VectorClock {
		devs = append(devs, dev)
	}
	sort.Slice(devs, func(a, b int) bool { return devs[a].Less(devs[b]) })
	for _, dev := range devs {
		e.bytes(dev[:])
		e.u64(f.Logical.VectorClock[dev])
	}
	e.blob(EncodePayload(f.Payload))
	e.u8(uint8(f.Authorization.Kind))
	e.blob(f.Authorization.Signature)
	e.u8(uint8(f.Agreement.Level))
	if f.Agreement.ConsensusId != nil {
		e.u8(1)
		e.bytes(f.Agreement.ConsensusId[:])
	} else {
		e.u8(0)
	}
	return e.buf
}

// DecodeFact is EncodeFact's inverse.
func DecodeFact(data []byte) (Fact, error) {
	d := &decoder{buf: data}
	var f Fact

	fb, err := d.fixed(32)
	if err != nil {
		return f, fmt.Errorf("fact: decode fact: %w", err)
	}
	copy(f.FactId[:], fb)

	ab, err := d.fixed(32)
	if err != nil {
		return f, err
	}
	copy(f.AccountId[:], ab)

	devb, err := d.fixed(32)
	if err != nil {
		return f, err
	}
	copy(f.AuthorDevice[:], devb)

	hasParent, err := d.u8()
	if err != nil {
		return f, err
	}
	if hasParent == 1 {
		var parent ids.ID256
		pb, err := d.fixed(32)
		if err != nil {
			return f, err
		}
		copy(parent[:], pb)
		f.ParentHash = &parent
	}

	f.EpochAtWrite, err = d.u64()
	if err != nil {
		return f, err
	}
	f.Nonce, err = d.u64()
	if err != nil {
		return f, err
	}
	millis, err := d.u64()
	if err != nil {
		return f, err
	}
	uncertainty, err := d.u64()
	if err != nil {
		return f, err
	}
	f.Physical = ids.PhysicalTime{UnixMillis: int64(millis), UncertaintyMs: int64(uncertainty)}

	lamport, err := d.u64()
	if err != nil {
		return f, err
	}
	vcCount, err := d.u32()
	if err != nil {
		return f, err
	}
	vc := make(map[ids.DeviceId]uint64, vcCount)
	for i := uint32(0); i < vcCount; i++ {
		devb, err := d.fixed(32)
		if err != nil {
			return f, err
		}
		var dev ids.DeviceId
		copy(dev[:], devb)
		v, err := d.u64()
		if err != nil {
			return f, err
		}
		vc[dev] = v
	}
	f.Logical = ids.LogicalTime{VectorClock: vc, Lamport: lamport}

	payloadBytes, err := d.blob()
	if err != nil {
		return f, err
	}
	f.Payload, err = DecodePayload(payloadBytes)
	if err != nil {
		return f, fmt.Errorf("fact: decode fact: payload: %w", err)
	}

	authKind, err := d.u8()
	if err != nil {
		return f, err
	}
	sig, err := d.blob()
	if err != nil {
		return f, err
	}
	f.Authorization = Authorization{Kind: AuthorizationKind(authKind), Signature: sig}

	level, err := d.u8()
	if err != nil {
		return f, err
	}
	hasConsensus, err := d.u8()
	if err != nil {
		return f, err
	}
	agreement := Agreement{Level: AgreementLevel(level)}
	if hasConsensus == 1 {
		var cid ids.ID128
		cb, err := d.fixed(16)
		if err != nil {
			return f, err
		}
		copy(cid[:], cb)
		agreement.ConsensusId = &cid
	}
	f.Agreement = agreement

	return f, nil
}
