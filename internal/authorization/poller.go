package authorization

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mdouchement/paygate/internal/model"
	"github.com/mdouchement/paygate/internal/pgerror"
)

// Default confirmation polling.
const (
	DefaultPollInterval = time.Second
	DefaultPollTimeout  = 30 * time.Second
)

// A Poller waits for the outcome of a submitted transaction.
type Poller struct {
	Interval time.Duration
	Timeout  time.Duration
}

// DefaultPoller returns a Poller polling every second for 30 seconds.
func DefaultPoller() Poller {
	return Poller{
		Interval: DefaultPollInterval,
		Timeout:  DefaultPollTimeout,
	}
}

// Wait polls the ledger until the transaction is recorded.
// It fails with ConfirmationTimeout once the timeout elapses and stops as soon as ctx is done.
func (p Poller) Wait(ctx context.Context, l Ledger, digest string) (*model.Transaction, error) {
	pctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	var tx *model.Transaction
	operation := func() error {
		t, err := l.Transaction(pctx, digest)
		if err != nil {
			if pgerror.Is(err, pgerror.TagTransactionNotFound) {
				return err
			}
			return backoff.Permanent(err)
		}

		tx = t
		return nil
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(p.Interval), pctx)
	if err := backoff.Retry(operation, b); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if pctx.Err() != nil {
			return nil, pgerror.ConfirmationTimeout(digest)
		}
		return nil, err
	}

	return tx, nil
}
