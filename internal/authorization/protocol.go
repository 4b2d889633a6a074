package authorization

import (
	"context"

	"github.com/mdouchement/paygate/internal/model"
	"github.com/mdouchement/paygate/internal/pgerror"
	"github.com/mdouchement/paygate/pkg/paytx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type (
	// A Ledger accepts signed envelopes and reports their outcome.
	Ledger interface {
		// Submit submits the signed envelope bytes and returns their digest.
		Submit(ctx context.Context, txBytes []byte, signatures []paytx.Signature) (string, error)
		// Transaction returns the recorded transaction for the given digest.
		Transaction(ctx context.Context, digest string) (*model.Transaction, error)
	}

	// A Protocol co-signs, submits and confirms purchase attempts.
	Protocol struct {
		ledger  Ledger
		sponsor Sponsor
		poller  Poller
	}

	// An Option configures a Protocol.
	Option func(*Protocol)
)

// WithSponsor sets the sponsor paying the fees of sponsored envelopes.
func WithSponsor(s Sponsor) Option {
	return func(p *Protocol) {
		p.sponsor = s
	}
}

// WithPoller sets the confirmation poller.
func WithPoller(poller Poller) Option {
	return func(p *Protocol) {
		p.poller = poller
	}
}

// New returns a new Protocol.
func New(l Ledger, opts ...Option) *Protocol {
	p := &Protocol{
		ledger: l,
		poller: DefaultPoller(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Sponsor returns the configured sponsor, nil if none.
func (p *Protocol) Sponsor() Sponsor {
	return p.sponsor
}

// Execute drives a BUYER_SIGNED attempt to a terminal state.
// Sponsored envelopes are co-signed first.
//
// The returned transaction is the recorded outcome, the attempt is CONFIRMED or FAILED accordingly.
// An error means the attempt has been rejected before execution or its outcome is unknown (ConfirmationTimeout).
func (p *Protocol) Execute(ctx context.Context, a *Attempt) (*model.Transaction, error) {
	if a.State().Terminal() {
		if tx := a.Transaction(); tx != nil {
			return tx, nil
		}
		return nil, a.Err()
	}

	if a.Envelope().Sponsored() && a.State() == BuyerSigned {
		if p.sponsor == nil {
			return nil, pgerror.SponsorNotConfigured()
		}

		sig, err := p.sponsor.Cosign(ctx, a.Bytes())
		if err != nil {
			a.fail(err)
			return nil, err
		}
		if err = a.AddSponsorSignature(sig); err != nil {
			a.fail(err)
			return nil, err
		}
	}

	return p.submit(ctx, a)
}

// SponsorAndExecute executes an attempt whose fees are paid by the configured sponsor.
func (p *Protocol) SponsorAndExecute(ctx context.Context, a *Attempt) (*model.Transaction, error) {
	if p.sponsor == nil {
		return nil, pgerror.SponsorNotConfigured()
	}
	if a.Envelope().GasOwner() != p.sponsor.Address() {
		return nil, pgerror.EnvelopeMismatch("Envelope fees are not paid by the sponsor.")
	}

	return p.Execute(ctx, a)
}

// Confirm waits for the outcome of an already submitted digest.
func (p *Protocol) Confirm(ctx context.Context, digest string) (*model.Transaction, error) {
	return p.poller.Wait(ctx, p.ledger, digest)
}

func (p *Protocol) submit(ctx context.Context, a *Attempt) (*model.Transaction, error) {
	if err := a.submitted(); err != nil {
		return nil, err
	}

	log := logrus.WithFields(logrus.Fields{
		"digest": a.Digest(),
		"sender": a.Envelope().Sender,
	})
	log.Debug("attempt submitted")

	digest, err := p.ledger.Submit(ctx, a.Bytes(), a.Signatures())
	if err != nil {
		a.fail(err)
		log.WithError(err).Info("attempt rejected")
		return nil, err
	}
	if digest != a.Digest() {
		err = errors.Errorf("ledger recorded digest %s for attempt %s", digest, a.Digest())
		a.fail(err)
		return nil, err
	}

	tx, err := p.poller.Wait(ctx, p.ledger, digest)
	if err != nil {
		// Outcome unknown, the attempt stays SUBMITTED.
		log.WithError(err).Warn("attempt not confirmed")
		return nil, err
	}

	a.resolve(tx)
	log.WithField("state", a.State()).Info("attempt resolved")
	return tx, nil
}
