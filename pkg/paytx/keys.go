package paytx

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

// SchemeEd25519 is the signature scheme flag of Ed25519 keys.
const SchemeEd25519 byte = 0x00

// A Keypair holds an Ed25519 private key able to sign envelopes.
type Keypair struct {
	private ed25519.PrivateKey
}

// KeypairFromSeed returns the keypair derived from a 32 bytes seed.
func KeypairFromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, errors.Errorf("seed must be %d bytes", ed25519.SeedSize)
	}
	return &Keypair{private: ed25519.NewKeyFromSeed(seed)}, nil
}

// ParseKeypair parses a base64 encoded seed as exported by Keypair.Export.
func ParseKeypair(s string) (*Keypair, error) {
	seed, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, errors.Wrap(err, "invalid keypair encoding")
	}
	return KeypairFromSeed(seed)
}

// Export returns the base64 encoded seed of the keypair.
func (k *Keypair) Export() string {
	return base64.StdEncoding.EncodeToString(k.private.Seed())
}

// PublicKey returns the public key.
func (k *Keypair) PublicKey() ed25519.PublicKey {
	return k.private.Public().(ed25519.PublicKey)
}

// Address returns the ledger address controlled by the keypair.
func (k *Keypair) Address() string {
	return Address(k.PublicKey())
}

// Sign signs the exact envelope bytes.
func (k *Keypair) Sign(txBytes []byte) Signature {
	sig := ed25519.Sign(k.private, SigningMessage(txBytes))
	return NewSignature(sig, k.PublicKey())
}

// Address returns the address of the given public key: blake2b-256(flag || public key).
func Address(public ed25519.PublicKey) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte{SchemeEd25519})
	h.Write(public)
	return "0x" + hex.EncodeToString(h.Sum(nil))
}
