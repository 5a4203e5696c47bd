package solana

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// PublicKey is the fixed-size form of an address, used inside account and
// instruction layouts where a key must encode as exactly 32 bytes.
type PublicKey [ed25519.PublicKeySize]byte

// PublicKeyFromBytes converts a variable length key into a PublicKey.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pub PublicKey
	if len(b) != ed25519.PublicKeySize {
		return pub, errors.Errorf("invalid public key length: %d", len(b))
	}

	copy(pub[:], b)
	return pub, nil
}

// MustPublicKey is like PublicKeyFromBytes, but panics on an invalid length.
func MustPublicKey(b []byte) PublicKey {
	pub, err := PublicKeyFromBytes(b)
	if err != nil {
		panic(err)
	}
	return pub
}

// PublicKeyFromBase58 decodes a base58 encoded address.
func PublicKeyFromBase58(s string) (PublicKey, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return PublicKey{}, errors.Wrap(err, "error decoding string as base58")
	}
	return PublicKeyFromBytes(b)
}

func (k PublicKey) ToBytes() ed25519.PublicKey {
	b := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(b, k[:])
	return b
}

func (k PublicKey) Equals(other ed25519.PublicKey) bool {
	return bytes.Equal(k[:], other)
}

func (k PublicKey) IsZero() bool {
	return k == PublicKey{}
}

func (k PublicKey) String() string {
	return base58.Encode(k[:])
}

// KeypairFromIndex derives a deterministic keypair for test actors. The same
// index always produces the same key, so scenarios can refer to actors by
// number instead of loading keypair files.
func KeypairFromIndex(index uint64) ed25519.PrivateKey {
	var seed [8]byte
	for i := 0; i < 8; i++ {
		seed[i] = byte(index >> (8 * i))
	}

	digest := sha256.Sum256(append([]byte("poc-ledger keypair"), seed[:]...))
	return ed25519.NewKeyFromSeed(digest[:])
}
