package crypto

import (
	stded25519 "crypto/ed25519"
	"fmt"

	"github.com/hxrts/aura/pkg/effects"
)

// Ed25519PrivateKey is the SingleSigner mode device key (spec §4.4:
// `generate(mode, t, n)` with `mode=SingleSigner, (t,n)=(1,1)` produces an
// Ed25519 keypair).
type Ed25519PrivateKey struct {
	key stded25519.PrivateKey
}

type Ed25519PublicKey struct {
	key stded25519.PublicKey
}

// GenerateEd25519 draws a device keypair through the randomness effect,
// never directly from crypto/rand, per §4.10's effect-boundary rule.
func GenerateEd25519(rnd effects.RandomEffects) (*Ed25519PrivateKey, *Ed25519PublicKey, error) {
	seed, err := rnd.Bytes(stded25519.SeedSize)
	if err != nil {
		return nil, nil, fmt.Errorf("crypto: ed25519 seed: %w", err)
	}
	priv := stded25519.NewKeyFromSeed(seed)
	pub := priv.Public().(stded25519.PublicKey)
	return &Ed25519PrivateKey{key: priv}, &Ed25519PublicKey{key: pub}, nil
}

func Ed25519PrivateKeyFromBytes(data []byte) (*Ed25519PrivateKey, error) {
	if len(data) != stded25519.PrivateKeySize {
		return nil, fmt.Errorf("crypto: ed25519 private key must be %d bytes, got %d", stded25519.PrivateKeySize, len(data))
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return &Ed25519PrivateKey{key: stded25519.PrivateKey(cp)}, nil
}

func Ed25519PublicKeyFromBytes(data []byte) (*Ed25519PublicKey, error) {
	if len(data) != stded25519.PublicKeySize {
		return nil, fmt.Errorf("crypto: ed25519 public key must be %d bytes, got %d", stded25519.PublicKeySize, len(data))
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return &Ed25519PublicKey{key: stded25519.PublicKey(cp)}, nil
}

func (k *Ed25519PrivateKey) Bytes() []byte { return append([]byte(nil), k.key...) }
func (k *Ed25519PublicKey) Bytes() []byte  { return append([]byte(nil), k.key...) }

func (k *Ed25519PrivateKey) PublicKey() *Ed25519PublicKey {
	return &Ed25519PublicKey{key: k.key.Public().(stded25519.PublicKey)}
}

// Sign signs message directly; SingleSigner mode never needs the
// threshold signing flow of pkg/crypto/threshold.
func (k *Ed25519PrivateKey) Sign(message []byte) []byte {
	return stded25519.Sign(k.key, message)
}

func (k *Ed25519PublicKey) Verify(message, sig []byte) bool {
	return stded25519.Verify(k.key, message, sig)
}

func (k *Ed25519PublicKey) Equal(other *Ed25519PublicKey) bool {
	return ConstantTimeEqual(k.key, other.key)
}
