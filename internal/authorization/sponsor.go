package authorization

import (
	"context"
	"fmt"

	"github.com/mdouchement/paygate/internal/pgerror"
	"github.com/mdouchement/paygate/pkg/paytx"
)

type (
	// A Sponsor co-signs envelopes to pay their fees.
	// Co-signing is stateless, concurrent calls are independent.
	Sponsor interface {
		// Address returns the address paying the fees.
		Address() string
		// Cosign signs the given envelope bytes as gas owner, or refuses to.
		Cosign(ctx context.Context, txBytes []byte) (paytx.Signature, error)
	}

	// A KeySponsor co-signs with a local key the envelopes its policy accepts.
	KeySponsor struct {
		key       *paytx.Keypair
		maxBudget uint64
	}
)

// NewKeySponsor returns a sponsor paying up to maxBudget per envelope.
func NewKeySponsor(key *paytx.Keypair, maxBudget uint64) *KeySponsor {
	return &KeySponsor{
		key:       key,
		maxBudget: maxBudget,
	}
}

// Address implements Sponsor.
func (s *KeySponsor) Address() string {
	return s.key.Address()
}

// Cosign implements Sponsor.
// It refuses envelopes not designating the sponsor as gas owner, over budget,
// or spending the gas coin in their commands.
func (s *KeySponsor) Cosign(ctx context.Context, txBytes []byte) (paytx.Signature, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e, err := paytx.Decode(txBytes)
	if err != nil {
		return nil, pgerror.EncodingError("Invalid transaction bytes.").WithCause(err)
	}

	switch {
	case e.GasOwner() != s.key.Address():
		return nil, pgerror.SignatureRejected("Sponsor refuses: not the gas owner of the envelope.")
	case e.Gas.Budget > s.maxBudget:
		return nil, pgerror.SignatureRejected(fmt.Sprintf("Sponsor refuses: gas budget %d exceeds %d.", e.Gas.Budget, s.maxBudget))
	case e.UsesGasCoin():
		return nil, pgerror.SignatureRejected("Sponsor refuses: the gas coin is spent by the envelope.")
	}

	return s.key.Sign(txBytes), nil
}
