package amp

import "testing"

func TestRendezvousOfferAnswerSelection(t *testing.T) {
	psk := [32]byte{1, 2, 3}
	staticPub := []byte("device-static-pub")
	binding := ComputeChannelBinding(psk, staticPub)

	offer := NewOffer(
		[]byte("device-cert-a"),
		binding,
		1_700_000_100,
		1,
		[]TransportDescriptor{
			{Kind: TransportQuic, Addresses: []string{"10.0.0.1:4433"}},
			{Kind: TransportTor, Onion: "exampleonionaddress.onion"},
		},
		[]string{"send_message"},
	)

	if !VerifyChannelBinding(offer, psk, staticPub) {
		t.Fatalf("expected channel binding to verify against the shared psk")
	}

	answer, err := NewAnswer([]byte("device-cert-b"), binding, 1_700_000_200, 1, offer.Transport.Transports, 1, nil)
	if err != nil {
		t.Fatalf("NewAnswer: %v", err)
	}

	selected, err := answer.SelectedTransport()
	if err != nil {
		t.Fatalf("SelectedTransport: %v", err)
	}
	if selected.Kind != TransportTor {
		t.Fatalf("expected selected transport Tor, got %v", selected.Kind)
	}
}

func TestNewAnswerRejectsOutOfRangeIndex(t *testing.T) {
	binding := ComputeChannelBinding([32]byte{}, nil)
	offered := []TransportDescriptor{{Kind: TransportQuic, Addresses: []string{"a"}}}
	if _, err := NewAnswer(nil, binding, 0, 1, offered, 5, nil); err == nil {
		t.Fatalf("expected out-of-range selected index to error")
	}
}

func TestSelectedTransportRejectsOffer(t *testing.T) {
	offer := NewOffer(nil, [32]byte{}, 0, 1, []TransportDescriptor{{Kind: TransportQuic}}, nil)
	if _, err := offer.SelectedTransport(); err == nil {
		t.Fatalf("expected SelectedTransport on an Offer to error")
	}
}
