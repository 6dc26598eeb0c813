package fact

import (
	"fmt"

	"github.com/hxrts/aura/pkg/ids"
)

func decodePayloadExtended(kind PayloadKind, d *decoder) (Payload, error) {
	switch kind {
	case KindContactAdded:
		var id ids.AccountId
		b, err := d.fixed(32)
		if err != nil {
			return nil, err
		}
		copy(id[:], b)
		petname, err := d.str()
		if err != nil {
			return nil, err
		}
		pkgb, err := d.blob()
		if err != nil {
			return nil, err
		}
		return ContactAdded{ContactId: id, Petname: petname, PublicKeyPkg: pkgb}, nil

	case KindChannelMode:
		var ch ids.ContextId
		b, err := d.fixed(16)
		if err != nil {
			return nil, err
		}
		copy(ch[:], b)
		flags, err := d.u32()
		if err != nil {
			return nil, err
		}
		return ChannelMode{ChannelId: ch, Flags: flags}, nil

	case KindGuardianBinding:
		var g ids.AccountId
		b, err := d.fixed(32)
		if err != nil {
			return nil, err
		}
		copy(g[:], b)
		epoch, err := d.u64()
		if err != nil {
			return nil, err
		}
		sig, err := d.blob()
		if err != nil {
			return nil, err
		}
		return GuardianBinding{GuardianId: g, Epoch: epoch, AcceptanceSig: sig}, nil

	case KindGuardianRotation:
		epoch, err := d.u64()
		if err != nil {
			return nil, err
		}
		k, err := d.u32()
		if err != nil {
			return nil, err
		}
		n, err := d.u32()
		if err != nil {
			return nil, err
		}
		count, err := d.u32()
		if err != nil {
			return nil, err
		}
		guardians := make([]ids.AccountId, 0, count)
		for i := uint32(0); i < count; i++ {
			b, err := d.fixed(32)
			if err != nil {
				return nil, err
			}
			var g ids.AccountId
			copy(g[:], b)
			guardians = append(guardians, g)
		}
		return GuardianRotation{NewEpoch: epoch, K: k, N: n, NewGuardians: guardians}, nil

	case KindTreeOp:
		opKind, err := d.u8()
		if err != nil {
			return nil, err
		}
		parentEpoch, err := d.u64()
		if err != nil {
			return nil, err
		}
		var commitment [32]byte
		cb, err := d.fixed(32)
		if err != nil {
			return nil, err
		}
		copy(commitment[:], cb)
		body, err := d.blob()
		if err != nil {
			return nil, err
		}
		sig, err := d.blob()
		if err != nil {
			return nil, err
		}
		return TreeOp{OpKind: opKind, ParentEpoch: parentEpoch, ParentCommitment: commitment, OpBody: body, AggregateSig: sig}, nil

	case KindSessionStarted:
		var sid ids.SessionId
		sb, err := d.fixed(16)
		if err != nil {
			return nil, err
		}
		copy(sid[:], sb)
		var cid ids.ContextId
		cb, err := d.fixed(16)
		if err != nil {
			return nil, err
		}
		copy(cid[:], cb)
		return SessionStarted{SessionId: sid, ContextId: cid}, nil

	case KindSessionCompleted:
		var sid ids.SessionId
		sb, err := d.fixed(16)
		if err != nil {
			return nil, err
		}
		copy(sid[:], sb)
		var cid ids.ContextId
		cb, err := d.fixed(16)
		if err != nil {
			return nil, err
		}
		copy(cid[:], cb)
		var rh [32]byte
		rb, err := d.fixed(32)
		if err != nil {
			return nil, err
		}
		copy(rh[:], rb)
		return SessionCompleted{SessionId: sid, ContextId: cid, ResultHash: rh}, nil

	case KindSessionAborted:
		var sid ids.SessionId
		sb, err := d.fixed(16)
		if err != nil {
			return nil, err
		}
		copy(sid[:], sb)
		var cid ids.ContextId
		cb, err := d.fixed(16)
		if err != nil {
			return nil, err
		}
		copy(cid[:], cb)
		reason, err := d.str()
		if err != nil {
			return nil, err
		}
		return SessionAborted{SessionId: sid, ContextId: cid, Reason: reason}, nil

	case KindConsensusCommit:
		var consID ids.ID128
		cb, err := d.fixed(16)
		if err != nil {
			return nil, err
		}
		copy(consID[:], cb)
		var resID ids.ID128
		rb, err := d.fixed(16)
		if err != nil {
			return nil, err
		}
		copy(resID[:], rb)
		sig, err := d.blob()
		if err != nil {
			return nil, err
		}
		var prestate [32]byte
		pb, err := d.fixed(32)
		if err != nil {
			return nil, err
		}
		copy(prestate[:], pb)
		return ConsensusCommit{ConsensusId: consID, ResultId: resID, AggregateSig: sig, PrestateHash: prestate}, nil

	case KindFlowCharge:
		var peer ids.DeviceId
		pb, err := d.fixed(32)
		if err != nil {
			return nil, err
		}
		copy(peer[:], pb)
		amount, err := d.u64()
		if err != nil {
			return nil, err
		}
		spentAfter, err := d.u64()
		if err != nil {
			return nil, err
		}
		return FlowCharge{Peer: peer, Amount: amount, SpentAfter: spentAfter}, nil

	case KindTransportObserved:
		var sid ids.SessionId
		sb, err := d.fixed(16)
		if err != nil {
			return nil, err
		}
		copy(sid[:], sb)
		var cid ids.ContextId
		cb, err := d.fixed(16)
		if err != nil {
			return nil, err
		}
		copy(cid[:], cb)
		proto, err := d.str()
		if err != nil {
			return nil, err
		}
		ev, err := d.u8()
		if err != nil {
			return nil, err
		}
		ts, err := d.u64()
		if err != nil {
			return nil, err
		}
		return TransportObserved{
			SessionId: sid, ContextId: cid, Protocol: proto,
			Event:     TransportEvent(ev),
			Timestamp: ids.PhysicalTime{UnixMillis: int64(ts)},
		}, nil

	default:
		return nil, fmt.Errorf("fact: decode payload: unknown kind %d", kind)
	}
}
