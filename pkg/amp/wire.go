package amp

import "fmt"

// encodeHeader produces the canonical cleartext header bytes spec §6.2
// requires: {channel, chan_epoch, ratchet_gen, aad_hash}. Every field is
// fixed-width, so they are written back to back with no length prefixes
// rather than through a generic serialization library.
func encodeHeader(h Header) []byte {
	buf := make([]byte, 0, 16+8+8+32)
	buf = append(buf, h.Channel[:]...)
	buf = append(buf, uint64Bytes(h.ChanEpoch)...)
	buf = append(buf, uint64Bytes(h.RatchetGen)...)
	buf = append(buf, h.AADHash[:]...)
	return buf
}

const headerLen = 16 + 8 + 8 + 32

// decodeHeader parses the cleartext header and returns it along with the
// remaining frame bytes (nonce ∥ ciphertext).
func decodeHeader(frame []byte) (Header, []byte, error) {
	if len(frame) < headerLen {
		return Header{}, nil, fmt.Errorf("amp: frame too short for header (%d < %d)", len(frame), headerLen)
	}
	var h Header
	copy(h.Channel[:], frame[0:16])
	h.ChanEpoch = bytesUint64(frame[16:24])
	h.RatchetGen = bytesUint64(frame[24:32])
	copy(h.AADHash[:], frame[32:64])
	return h, frame[headerLen:], nil
}

func bytesUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8 && i < len(b); i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
