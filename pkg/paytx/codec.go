package paytx

import (
	"github.com/mdouchement/paygate/pkg/stormcbor"
	"github.com/pkg/errors"
)

// ErrNonCanonical is returned when bytes do not match the canonical encoding of what they decode to.
var ErrNonCanonical = stormcbor.ErrNonCanonical

// Encode serializes the envelope to its canonical bytes.
// These bytes are the ones signed by every party and addressed by the digest.
func Encode(e *Envelope) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid envelope")
	}

	b, err := stormcbor.Codec.Marshal(e)
	return b, errors.Wrap(err, "could not encode envelope")
}

// Decode parses envelope bytes.
// Bytes that would not be produced by Encode are rejected so that a digest always designates one envelope.
func Decode(b []byte) (*Envelope, error) {
	var e Envelope
	if err := stormcbor.Codec.UnmarshalCanonical(b, &e); err != nil {
		if err == stormcbor.ErrNonCanonical {
			return nil, err
		}
		return nil, errors.Wrap(err, "could not decode envelope")
	}

	return &e, errors.Wrap(e.Validate(), "invalid envelope")
}
