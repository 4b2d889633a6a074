package paytx

import (
	"crypto/ed25519"
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

// SignatureSize is the size of a serialized signature: flag || signature || public key.
const SignatureSize = 1 + ed25519.SignatureSize + ed25519.PublicKeySize

var (
	// ErrMalformedSignature is returned when a signature cannot be parsed.
	ErrMalformedSignature = errors.New("malformed signature")
	// ErrInvalidSignature is returned when a signature does not match the signed bytes.
	ErrInvalidSignature = errors.New("invalid signature")
)

// intent prefix of transaction data (scope, version, application).
var intent = [3]byte{0, 0, 0}

// A Signature is a serialized Ed25519 signature carrying its public key.
type Signature []byte

// NewSignature serializes a raw signature with its public key.
func NewSignature(sig []byte, public ed25519.PublicKey) Signature {
	s := make(Signature, 0, SignatureSize)
	s = append(s, SchemeEd25519)
	s = append(s, sig...)
	s = append(s, public...)
	return s
}

// ParseSignature parses a base64 serialized signature.
func ParseSignature(str string) (Signature, error) {
	b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(str))
	if err != nil {
		return nil, ErrMalformedSignature
	}

	s := Signature(b)
	return s, s.check()
}

// ParseSignatureWithKey parses a signature as sent by wallets.
// The signature is either serialized with its public key, or a raw Ed25519 signature completed by publicKey.
// When both carry a public key they must be the same.
func ParseSignatureWithKey(signature, publicKey string) (Signature, error) {
	if publicKey == "" {
		return ParseSignature(signature)
	}

	b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return nil, ErrMalformedSignature
	}

	var public []byte
	if publicKey != "" {
		public, err = base64.StdEncoding.DecodeString(strings.TrimSpace(publicKey))
		if err != nil || len(public) != ed25519.PublicKeySize {
			return nil, ErrMalformedSignature
		}
	}

	switch len(b) {
	case ed25519.SignatureSize:
		if public == nil {
			return nil, ErrMalformedSignature
		}
		return NewSignature(b, public), nil
	case SignatureSize:
		s := Signature(b)
		if err = s.check(); err != nil {
			return nil, err
		}
		if public != nil && !s.PublicKey().Equal(ed25519.PublicKey(public)) {
			return nil, ErrMalformedSignature
		}
		return s, nil
	default:
		return nil, ErrMalformedSignature
	}
}

func (s Signature) check() error {
	if len(s) != SignatureSize || s[0] != SchemeEd25519 {
		return ErrMalformedSignature
	}
	return nil
}

// String returns the base64 serialization.
func (s Signature) String() string {
	return base64.StdEncoding.EncodeToString(s)
}

// PublicKey returns the public key embedded in the signature.
func (s Signature) PublicKey() ed25519.PublicKey {
	return ed25519.PublicKey(s[1+ed25519.SignatureSize:])
}

// Signer returns the address of the signer.
func (s Signature) Signer() string {
	return Address(s.PublicKey())
}

// SigningMessage returns the message actually signed for envelope bytes: blake2b-256(intent || bytes).
func SigningMessage(txBytes []byte) []byte {
	h, _ := blake2b.New256(nil)
	h.Write(intent[:])
	h.Write(txBytes)
	return h.Sum(nil)
}

// Verify checks the signature against the exact envelope bytes and returns the signer address.
func Verify(txBytes []byte, s Signature) (string, error) {
	if err := s.check(); err != nil {
		return "", err
	}

	sig := s[1 : 1+ed25519.SignatureSize]
	if !ed25519.Verify(s.PublicKey(), SigningMessage(txBytes), sig) {
		return "", ErrInvalidSignature
	}
	return s.Signer(), nil
}
