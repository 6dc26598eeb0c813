package amp

import (
	"fmt"

	"github.com/hxrts/aura/pkg/crypto"
)

// TransportKind enumerates the direct-connection transports a device may
// offer during rendezvous (spec §D.2, grounded on
// original_source/crates/aura-transport/src/messages/rendezvous.rs).
type TransportKind uint8

const (
	TransportQuic TransportKind = iota
	TransportWebSocket
	TransportWebRTC
	TransportTor
	TransportBLE
)

// TransportDescriptor advertises one candidate transport with its
// connection-specific addressing; most fields are transport-kind specific
// and left empty for kinds that don't use them.
type TransportDescriptor struct {
	Kind       TransportKind
	Addresses  []string // local + reflexive candidates (Quic, WebSocket)
	Onion      string   // Tor
	ServiceUID string   // BLE
}

// MessageKind distinguishes a rendezvous authentication payload's role.
type MessageKind uint8

const (
	KindOffer MessageKind = iota
	KindAnswer
)

// AuthPayload is the rendezvous authentication envelope spec §6.2 defines:
// "{kind, version, device_cert, channel_binding = H(PSK ∥ device_static_pub),
// expires, counter, inner_sig}".
type AuthPayload struct {
	Kind           MessageKind
	Version        uint8
	DeviceCert     []byte
	ChannelBinding [32]byte
	Expires        uint64
	Counter        uint32
	InnerSig       []byte
}

// ComputeChannelBinding derives the PSK-bound channel binding both sides of
// a rendezvous must agree on before trusting an Offer/Answer.
func ComputeChannelBinding(psk [32]byte, deviceStaticPub []byte) [32]byte {
	return crypto.Hash(psk[:], deviceStaticPub)
}

// TransportPayload is the connection-negotiation half of a rendezvous
// message (spec §6.2): "{transports[], selected_index?, required_permissions,
// capability_proof?, punch_nonce?}".
type TransportPayload struct {
	Transports          []TransportDescriptor
	SelectedIndex       *uint8 // nil in an Offer, set in an Answer
	RequiredPermissions []string
	CapabilityProof     []byte // e.g. a capability_authorization token
	PunchNonce          *[32]byte
}

// Message is the complete rendezvous Offer or Answer.
type Message struct {
	Auth      AuthPayload
	Transport TransportPayload
}

const rendezvousProtocolVersion = 1

// NewOffer builds a rendezvous Offer: a device publishes its available
// transports and the permissions it requires of the peer.
func NewOffer(deviceCert []byte, channelBinding [32]byte, expires uint64, counter uint32, transports []TransportDescriptor, requiredPermissions []string) Message {
	return Message{
		Auth: AuthPayload{
			Kind:           KindOffer,
			Version:        rendezvousProtocolVersion,
			DeviceCert:     deviceCert,
			ChannelBinding: channelBinding,
			Expires:        expires,
			Counter:        counter,
		},
		Transport: TransportPayload{
			Transports:          transports,
			RequiredPermissions: requiredPermissions,
		},
	}
}

// NewAnswer builds a rendezvous Answer selecting one of the offered
// transports by index, optionally attaching a capability proof.
func NewAnswer(deviceCert []byte, channelBinding [32]byte, expires uint64, counter uint32, offered []TransportDescriptor, selectedIndex uint8, capabilityProof []byte) (Message, error) {
	if int(selectedIndex) >= len(offered) {
		return Message{}, fmt.Errorf("amp: rendezvous answer: selected index %d out of range (%d offered)", selectedIndex, len(offered))
	}
	return Message{
		Auth: AuthPayload{
			Kind:           KindAnswer,
			Version:        rendezvousProtocolVersion,
			DeviceCert:     deviceCert,
			ChannelBinding: channelBinding,
			Expires:        expires,
			Counter:        counter,
		},
		Transport: TransportPayload{
			Transports:      offered,
			SelectedIndex:   &selectedIndex,
			CapabilityProof: capabilityProof,
		},
	}, nil
}

// VerifyChannelBinding checks that m's channel binding matches the one both
// sides should have derived from their shared PSK, rejecting spoofed offers
// before any inner signature check runs.
func VerifyChannelBinding(m Message, psk [32]byte, peerDeviceStaticPub []byte) bool {
	want := ComputeChannelBinding(psk, peerDeviceStaticPub)
	return crypto.ConstantTimeEqual(want[:], m.Auth.ChannelBinding[:])
}

// SelectedTransport returns the transport descriptor an Answer selected,
// or an error if m is not an Answer or the index is out of range.
func (m Message) SelectedTransport() (TransportDescriptor, error) {
	if m.Auth.Kind != KindAnswer {
		return TransportDescriptor{}, fmt.Errorf("amp: rendezvous: not an answer")
	}
	if m.Transport.SelectedIndex == nil {
		return TransportDescriptor{}, fmt.Errorf("amp: rendezvous: answer has no selected transport")
	}
	idx := *m.Transport.SelectedIndex
	if int(idx) >= len(m.Transport.Transports) {
		return TransportDescriptor{}, fmt.Errorf("amp: rendezvous: selected index %d out of range", idx)
	}
	return m.Transport.Transports[idx], nil
}
