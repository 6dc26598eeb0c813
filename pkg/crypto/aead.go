package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// CipherSuite selects the AEAD algorithm an AMP channel uses; spec §4.1
// requires both ChaCha20-Poly1305 and AES-GCM to be available.
type CipherSuite uint8

const (
	SuiteChaCha20Poly1305 CipherSuite = iota
	SuiteAESGCM
)

// Seal encrypts plaintext with associated data under the given 32-byte key
// and the caller-supplied nonce, which must be exactly the suite's required
// length. It returns the ciphertext only; the nonce is not prepended, so the
// caller carries it separately (pkg/amp puts it in the frame after the header).
func Seal(suite CipherSuite, key, nonce, plaintext, aad []byte) ([]byte, error) {
	aead, err := newAEAD(suite, key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("crypto: seal: nonce must be %d bytes, got %d", aead.NonceSize(), len(nonce))
	}
	return aead.Seal(nil, nonce, plaintext, aad), nil
}

// Open decrypts and authenticates ciphertext produced by Seal.
func Open(suite CipherSuite, key, nonce, ciphertext, aad []byte) ([]byte, error) {
	aead, err := newAEAD(suite, key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("crypto: open: nonce must be %d bytes, got %d", aead.NonceSize(), len(nonce))
	}
	pt, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("crypto: aead verification failed: %w", err)
	}
	return pt, nil
}

// NonceSize reports the suite's required nonce length.
func NonceSize(suite CipherSuite) (int, error) {
	aead, err := newAEAD(suite, make([]byte, 32))
	if err != nil {
		return 0, err
	}
	return aead.NonceSize(), nil
}

func newAEAD(suite CipherSuite, key []byte) (cipher.AEAD, error) {
	switch suite {
	case SuiteChaCha20Poly1305:
		return chacha20poly1305.New(key)
	case SuiteAESGCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("crypto: aes-gcm: new cipher: %w", err)
		}
		return cipher.NewGCM(block)
	default:
		return nil, fmt.Errorf("crypto: unknown cipher suite %d", suite)
	}
}
