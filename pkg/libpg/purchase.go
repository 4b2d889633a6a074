package libpg

import (
	"encoding/base64"

	"github.com/mdouchement/paygate/pkg/paytx"
	"github.com/pkg/errors"
)

// A Signer signs transaction bytes on behalf of an address.
type Signer interface {
	Address() string
	Sign(txBytes []byte) paytx.Signature
}

// Purchase unlocks a content for the signer.
// It requests the content, signs the offered purchase transaction and executes it.
// The execution is nil when the signer already owned an access receipt.
func Purchase(c Client, id string, signer Signer) (*Content, *Execution, error) {
	content, err := c.Content(id, signer.Address())
	if err == nil {
		return content, nil, nil
	}

	required, ok := IsPaymentRequired(err)
	if !ok || required.Payment.TransactionBytes == "" {
		return nil, nil, err
	}

	b, err := base64.StdEncoding.DecodeString(required.Payment.TransactionBytes)
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not decode transaction bytes")
	}

	envelope, err := paytx.Decode(b)
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not decode transaction")
	}
	if envelope.Sender != signer.Address() {
		return nil, nil, errors.Errorf("transaction is sent by %s, not by %s", envelope.Sender, signer.Address())
	}

	execution, err := c.Execute(id, b, signer.Sign(b))
	if err != nil {
		return nil, nil, err
	}
	if !execution.Succeeded() {
		return nil, execution, &Error{
			StatusCode: required.StatusCode(),
			Tag:        execution.Effects.ErrorTag,
			Message:    execution.Effects.Error,
		}
	}

	content, err = c.Content(id, signer.Address())
	return content, execution, err
}
