package stormcbor

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/ugorji/go/codec"
)

const name = "cbor"

// ErrNonCanonical is returned when bytes are not the canonical encoding of what they decode to.
var ErrNonCanonical = errors.New("non-canonical cbor encoding")

// Codec that encodes to and decodes from canonical CBOR (Concise Binary Object Representation).
// Map keys are sorted so that a value always has the same encoding, which makes it suitable for signed payloads.
// It can also be used as a Storm codec.
// http://cbor.io/
// https://tools.ietf.org/html/rfc7049
var Codec = new(cborCodec)

// Handles are safe for concurrent use once configured.
var handle = func() *codec.CborHandle {
	h := &codec.CborHandle{}
	h.Canonical = true
	return h
}()

type cborCodec int

func (c cborCodec) Marshal(v any) ([]byte, error) {
	var b bytes.Buffer
	enc := codec.NewEncoder(&b, handle)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (c cborCodec) Unmarshal(b []byte, v any) error {
	return codec.NewDecoderBytes(b, handle).Decode(v)
}

// UnmarshalCanonical decodes b into v and rejects b if re-encoding v does not give back b.
func (c cborCodec) UnmarshalCanonical(b []byte, v any) error {
	if err := c.Unmarshal(b, v); err != nil {
		return err
	}

	canonical, err := c.Marshal(v)
	if err != nil {
		return err
	}
	if !bytes.Equal(canonical, b) {
		return ErrNonCanonical
	}
	return nil
}

func (c cborCodec) Name() string {
	return name
}
