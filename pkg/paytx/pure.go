package paytx

import (
	"github.com/mdouchement/paygate/pkg/stormcbor"
	"github.com/pkg/errors"
)

// PureU64 returns an input holding an unsigned integer.
func PureU64(v uint64) (CallArg, error) {
	b, err := stormcbor.Codec.Marshal(v)
	if err != nil {
		return CallArg{}, errors.Wrap(err, "could not encode u64")
	}
	return CallArg{Kind: InputPure, Pure: b}, nil
}

// PureString returns an input holding a UTF-8 string.
func PureString(s string) (CallArg, error) {
	b, err := stormcbor.Codec.Marshal(s)
	if err != nil {
		return CallArg{}, errors.Wrap(err, "could not encode string")
	}
	return CallArg{Kind: InputPure, Pure: b}, nil
}

// AsU64 decodes a pure input as an unsigned integer.
func (a CallArg) AsU64() (uint64, error) {
	if a.Kind != InputPure {
		return 0, errors.New("not a pure input")
	}

	var v uint64
	err := stormcbor.Codec.Unmarshal(a.Pure, &v)
	return v, errors.Wrap(err, "could not decode u64")
}

// AsString decodes a pure input as a string.
func (a CallArg) AsString() (string, error) {
	if a.Kind != InputPure {
		return "", errors.New("not a pure input")
	}

	var v string
	err := stormcbor.Codec.Unmarshal(a.Pure, &v)
	return v, errors.Wrap(err, "could not decode string")
}
