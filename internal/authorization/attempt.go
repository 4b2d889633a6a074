package authorization

import (
	"fmt"

	"github.com/mdouchement/paygate/internal/model"
	"github.com/mdouchement/paygate/internal/pgerror"
	"github.com/mdouchement/paygate/pkg/paytx"
	"github.com/pkg/errors"
)

// A State is a step of a purchase attempt.
type State int

// States of an attempt, in order.
const (
	Built State = iota
	BuyerSigned
	SponsorCosigned
	Submitted
	Confirmed
	Failed
)

func (s State) String() string {
	switch s {
	case Built:
		return "BUILT"
	case BuyerSigned:
		return "BUYER_SIGNED"
	case SponsorCosigned:
		return "SPONSOR_COSIGNED"
	case Submitted:
		return "SUBMITTED"
	case Confirmed:
		return "CONFIRMED"
	case Failed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal returns true for the states an attempt never leaves.
func (s State) Terminal() bool {
	return s == Confirmed || s == Failed
}

// An Attempt follows one envelope from its bytes to its terminal outcome.
// The bytes are fixed at creation: every signature is checked against them.
type Attempt struct {
	state    State
	bytes    []byte
	digest   string
	envelope *paytx.Envelope
	buyer    paytx.Signature
	sponsor  paytx.Signature
	tx       *model.Transaction
	err      error
}

// NewAttempt returns a BUILT attempt for the given envelope bytes.
func NewAttempt(txBytes []byte) (*Attempt, error) {
	e, err := paytx.Decode(txBytes)
	if err != nil {
		return nil, pgerror.EncodingError("Invalid transaction bytes.").WithCause(err)
	}

	digest, err := paytx.Digest(txBytes)
	if err != nil {
		return nil, pgerror.EncodingError("Could not digest transaction bytes.").WithCause(err)
	}

	return &Attempt{
		state:    Built,
		bytes:    txBytes,
		digest:   digest,
		envelope: e,
	}, nil
}

// State returns the current state.
func (a *Attempt) State() State {
	return a.state
}

// Bytes returns the envelope bytes every party signs.
func (a *Attempt) Bytes() []byte {
	return a.bytes
}

// Digest returns the digest of the envelope bytes.
func (a *Attempt) Digest() string {
	return a.digest
}

// Envelope returns the decoded envelope.
func (a *Attempt) Envelope() *paytx.Envelope {
	return a.envelope
}

// Transaction returns the recorded transaction once terminal, if the ledger executed it.
func (a *Attempt) Transaction() *model.Transaction {
	return a.tx
}

// Err returns the reason of a FAILED attempt rejected before execution.
func (a *Attempt) Err() error {
	return a.err
}

// Signatures returns the signatures collected so far.
func (a *Attempt) Signatures() []paytx.Signature {
	signatures := make([]paytx.Signature, 0, 2)
	if a.buyer != nil {
		signatures = append(signatures, a.buyer)
	}
	if a.sponsor != nil {
		signatures = append(signatures, a.sponsor)
	}
	return signatures
}

// AddBuyerSignature moves a BUILT attempt to BUYER_SIGNED.
func (a *Attempt) AddBuyerSignature(sig paytx.Signature) error {
	if err := a.expect(Built); err != nil {
		return err
	}

	if err := a.verify(sig, a.envelope.Sender); err != nil {
		return err
	}

	a.buyer = sig
	a.state = BuyerSigned
	return nil
}

// AddSponsorSignature moves a BUYER_SIGNED sponsored attempt to SPONSOR_COSIGNED.
func (a *Attempt) AddSponsorSignature(sig paytx.Signature) error {
	if err := a.expect(BuyerSigned); err != nil {
		return err
	}
	if !a.envelope.Sponsored() {
		return pgerror.EnvelopeMismatch("Envelope does not designate a sponsor.")
	}

	if err := a.verify(sig, a.envelope.Gas.Owner); err != nil {
		return err
	}

	a.sponsor = sig
	a.state = SponsorCosigned
	return nil
}

// Ready returns true when the attempt carries every required signature.
func (a *Attempt) Ready() bool {
	if a.envelope.Sponsored() {
		return a.state == SponsorCosigned
	}
	return a.state == BuyerSigned
}

func (a *Attempt) submitted() error {
	if !a.Ready() {
		return errors.Errorf("attempt %s cannot be submitted in state %s", a.digest, a.state)
	}

	a.state = Submitted
	return nil
}

func (a *Attempt) resolve(tx *model.Transaction) {
	a.tx = tx
	a.state = Failed
	if tx.Effects.Succeeded() {
		a.state = Confirmed
	}
}

func (a *Attempt) fail(err error) {
	a.err = err
	a.state = Failed
}

func (a *Attempt) expect(s State) error {
	if a.state != s {
		return errors.Errorf("attempt %s is %s, expecting %s", a.digest, a.state, s)
	}
	return nil
}

func (a *Attempt) verify(sig paytx.Signature, signer string) error {
	got, err := paytx.Verify(a.bytes, sig)
	if err != nil {
		return pgerror.SignatureRejected("Signature does not match the transaction bytes.").WithCause(err)
	}
	if got != signer {
		return pgerror.SignatureRejected(fmt.Sprintf("Signature of %s, expecting %s.", got, signer))
	}
	return nil
}
