package access

import (
	"context"

	"github.com/mdouchement/paygate/internal/model"
	"github.com/mdouchement/paygate/internal/pgerror"
	"github.com/mdouchement/paygate/pkg/paytx"
	"github.com/sirupsen/logrus"
)

// A Decision is the outcome of an access check.
type Decision int

// Access decisions. Unknown means the ledger could not be queried.
const (
	Unknown Decision = iota
	Granted
	Denied
)

func (d Decision) String() string {
	switch d {
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

type (
	// A Ledger lists the objects owned by an address.
	Ledger interface {
		OwnedObjects(ctx context.Context, owner, typ string) ([]*model.Object, error)
	}

	// A Cache remembers granted accesses.
	// Receipts are never destroyed so a granted access never expires.
	Cache interface {
		// Granted returns true if the access has been granted before.
		Granted(ctx context.Context, address, contentID string) (bool, error)
		// Grant remembers a granted access.
		Grant(ctx context.Context, address, contentID string) error
	}

	// A Resolver decides whether an address owns a receipt for a content.
	Resolver struct {
		ledger Ledger
		cache  Cache
	}
)

// NewResolver returns a new Resolver. The cache is optional.
func NewResolver(l Ledger, c Cache) *Resolver {
	return &Resolver{
		ledger: l,
		cache:  c,
	}
}

// Check returns Granted if address owns a receipt for contentID, Denied if it does not
// and Unknown with a QueryFailed error if the ledger cannot tell.
func (r *Resolver) Check(ctx context.Context, address, contentID string) (Decision, error) {
	if !paytx.IsAddress(address) {
		return Unknown, pgerror.InvalidParameters("Invalid address.")
	}

	log := logrus.WithFields(logrus.Fields{
		"address": address,
		"content": contentID,
	})

	if r.cache != nil {
		granted, err := r.cache.Granted(ctx, address, contentID)
		if err != nil {
			log.WithError(err).Warn("access cache unavailable")
		}
		if granted {
			return Granted, nil
		}
	}

	receipts, err := r.ListReceipts(ctx, address)
	if err != nil {
		return Unknown, err
	}

	for _, receipt := range receipts {
		if receipt.ContentID != contentID {
			continue
		}

		if r.cache != nil {
			if err = r.cache.Grant(ctx, address, contentID); err != nil {
				log.WithError(err).Warn("could not cache access")
			}
		}
		return Granted, nil
	}

	return Denied, nil
}

// HasAccess returns true if address owns a receipt for contentID.
// A failed lookup is returned as a QueryFailed error, never as false.
func (r *Resolver) HasAccess(ctx context.Context, address, contentID string) (bool, error) {
	d, err := r.Check(ctx, address, contentID)
	return d == Granted, err
}

// ListReceipts returns the access receipts owned by address.
func (r *Resolver) ListReceipts(ctx context.Context, address string) ([]*model.AccessReceipt, error) {
	objects, err := r.ledger.OwnedObjects(ctx, address, model.TypeAccessReceipt)
	if err != nil {
		return nil, pgerror.QueryFailed(err)
	}

	receipts := make([]*model.AccessReceipt, 0, len(objects))
	for _, o := range objects {
		var receipt model.AccessReceipt
		if err = o.Decode(&receipt); err != nil {
			return nil, pgerror.QueryFailed(err)
		}
		receipts = append(receipts, &receipt)
	}
	return receipts, nil
}
