package paytx_test

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/mdouchement/paygate/pkg/paytx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeypair(t *testing.T) {
	seed := make([]byte, 32)
	_, err := rand.Read(seed)
	require.NoError(t, err)
	k, err := paytx.KeypairFromSeed(seed)
	require.NoError(t, err)

	assert.True(t, paytx.IsAddress(k.Address()))

	parsed, err := paytx.ParseKeypair(k.Export())
	assert.NoError(t, err)
	assert.Equal(t, k.Address(), parsed.Address())

	_, err = paytx.ParseKeypair("c2hvcnQ=")
	assert.Error(t, err)
}

func TestSignVerify(t *testing.T) {
	buyer := keypair(t, 1)
	b, err := paytx.Encode(purchase(t, buyer.Address()))
	require.NoError(t, err)

	sig := buyer.Sign(b)
	assert.Len(t, sig, paytx.SignatureSize)

	signer, err := paytx.Verify(b, sig)
	assert.NoError(t, err)
	assert.Equal(t, buyer.Address(), signer)
}

func TestVerify_BytesExact(t *testing.T) {
	buyer := keypair(t, 1)
	e := purchase(t, buyer.Address())
	b, err := paytx.Encode(e)
	require.NoError(t, err)
	sig := buyer.Sign(b)

	// Same operations, inputs listed in another order.
	e.Inputs[1], e.Inputs[2] = e.Inputs[2], e.Inputs[1]
	e.Commands[1] = paytx.MoveCall(paytx.FunctionPurchase, paytx.Input(2), paytx.NestedResult(0, 0), paytx.Input(1))
	equivalent, err := paytx.Encode(e)
	require.NoError(t, err)
	require.NotEqual(t, b, equivalent)

	_, err = paytx.Verify(equivalent, sig)
	assert.Equal(t, paytx.ErrInvalidSignature, err)

	mutated := append([]byte{}, b...)
	mutated[len(mutated)-1] ^= 0xff
	_, err = paytx.Verify(mutated, sig)
	assert.Equal(t, paytx.ErrInvalidSignature, err)
}

func TestParseSignature(t *testing.T) {
	buyer := keypair(t, 1)
	sig := buyer.Sign([]byte("payload"))

	parsed, err := paytx.ParseSignature(sig.String())
	assert.NoError(t, err)
	assert.Equal(t, sig, parsed)
	assert.Equal(t, buyer.Address(), parsed.Signer())

	_, err = paytx.ParseSignature("%%%")
	assert.Equal(t, paytx.ErrMalformedSignature, err)

	_, err = paytx.ParseSignature(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Equal(t, paytx.ErrMalformedSignature, err)
}

func TestParseSignatureWithKey(t *testing.T) {
	buyer := keypair(t, 1)
	other := keypair(t, 2)
	sig := buyer.Sign([]byte("payload"))
	public := base64.StdEncoding.EncodeToString(buyer.PublicKey())
	raw := base64.StdEncoding.EncodeToString(sig[1:65])

	parsed, err := paytx.ParseSignatureWithKey(sig.String(), public)
	assert.NoError(t, err)
	assert.Equal(t, sig, parsed)

	parsed, err = paytx.ParseSignatureWithKey(sig.String(), "")
	assert.NoError(t, err)
	assert.Equal(t, sig, parsed)

	parsed, err = paytx.ParseSignatureWithKey(raw, public)
	assert.NoError(t, err)
	assert.Equal(t, sig, parsed)

	_, err = paytx.ParseSignatureWithKey(raw, "")
	assert.Equal(t, paytx.ErrMalformedSignature, err)

	_, err = paytx.ParseSignatureWithKey(sig.String(), base64.StdEncoding.EncodeToString(other.PublicKey()))
	assert.Equal(t, paytx.ErrMalformedSignature, err)
}
