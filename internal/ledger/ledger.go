package ledger

import (
	"context"
	"math/bits"
	"sort"
	"time"

	"github.com/gofrs/uuid"
	"github.com/mdouchement/paygate/internal/contract"
	"github.com/mdouchement/paygate/internal/database"
	"github.com/mdouchement/paygate/internal/model"
	"github.com/mdouchement/paygate/internal/pgerror"
	"github.com/mdouchement/paygate/pkg/paytx"
	"github.com/pkg/errors"
)

// GenesisDigest is the previous transaction of the objects created at genesis or minted.
const GenesisDigest = "genesis"

// SystemAddress is the sender of the genesis transaction.
const SystemAddress = "0x0000000000000000000000000000000000000000000000000000000000000000"

type (
	// A Ledger executes signed envelopes atomically over objects stored in database.
	Ledger struct {
		db       database.Client
		gasPrice uint64
		now      func() time.Time
	}

	// An Option configures a Ledger.
	Option func(*Ledger)

	// A Coin is a spendable coin of an address.
	Coin struct {
		Ref   paytx.ObjectRef
		Value uint64
	}
)

// WithGasPrice sets the reference gas price.
func WithGasPrice(price uint64) Option {
	return func(l *Ledger) {
		l.gasPrice = price
	}
}

// WithClock sets the time source used to stamp transactions.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// New returns a new Ledger backed by the given database.
func New(db database.Client, opts ...Option) *Ledger {
	l := &Ledger{
		db:       db,
		gasPrice: DefaultGasPrice,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// GasPrice returns the reference gas price.
func (l *Ledger) GasPrice() uint64 {
	return l.gasPrice
}

// Genesis creates the clock and the content registry owned by registryOwner.
// It returns the existing registry when the ledger is already initialized.
func (l *Ledger) Genesis(ctx context.Context, registryOwner string) (*model.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !paytx.IsAddress(registryOwner) {
		return nil, errors.Errorf("invalid registry owner address %q", registryOwner)
	}

	var registry *model.Object
	err := l.db.Atomic(func(s database.Store) error {
		if _, err := s.FindObject(paytx.ClockID); err == nil {
			registries, err := s.FindObjectsByType(model.TypeContentRegistry)
			if err != nil {
				return err
			}
			if len(registries) != 1 {
				return errors.Errorf("found %d content registries", len(registries))
			}
			registry = registries[0]
			return nil
		} else if !s.IsNotFound(err) {
			return err
		}

		clock, err := model.NewSharedObject(&model.Clock{
			ID:          paytx.ClockID,
			TimestampMs: uint64(l.now().UnixMilli()),
		})
		if err != nil {
			return err
		}
		clock.Version = 1
		clock.InitialSharedVersion = 1
		clock.PreviousTransaction = GenesisDigest
		if err = s.SaveObject(clock); err != nil {
			return err
		}

		rt := newRuntime(&paytx.Envelope{Sender: SystemAddress}, GenesisDigest, nil, 0)
		if _, err = contract.Bootstrap(rt, registryOwner); err != nil {
			return errors.Wrap(err, "could not bootstrap content registry")
		}
		if err = rt.save(s, 1); err != nil {
			return err
		}

		registry = rt.objects[rt.created[0]]
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "genesis")
	}

	return registry, nil
}

// Mint creates a new coin of the given value owned by owner.
func (l *Ledger) Mint(ctx context.Context, owner string, value uint64) (*model.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !paytx.IsAddress(owner) {
		return nil, errors.Errorf("invalid owner address %q", owner)
	}

	id := paytx.DeriveObjectID(uuid.Must(uuid.NewV4()).String(), 0)
	coin, err := model.NewOwnedObject(owner, &model.Coin{ID: id, Value: value})
	if err != nil {
		return nil, err
	}
	coin.Version = 1
	coin.PreviousTransaction = GenesisDigest

	return coin, errors.Wrap(l.db.SaveObject(coin), "could not mint coin")
}

// Object returns the object for the given id.
func (l *Ledger) Object(ctx context.Context, id string) (*model.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o, err := l.db.FindObject(id)
	if err != nil {
		if l.db.IsNotFound(err) {
			return nil, pgerror.ObjectNotFound(id)
		}
		return nil, errors.Wrap(err, "could not get object")
	}
	return o, nil
}

// OwnedObjects returns the objects of the given type owned by owner.
func (l *Ledger) OwnedObjects(ctx context.Context, owner, typ string) ([]*model.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	objects, err := l.db.FindOwnedObjects(owner, typ)
	return objects, errors.Wrap(err, "could not get owned objects")
}

// Registry returns the content registry created at genesis.
func (l *Ledger) Registry(ctx context.Context) (*model.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	registries, err := l.db.FindObjectsByType(model.TypeContentRegistry)
	if err != nil {
		return nil, errors.Wrap(err, "could not get registry")
	}
	if len(registries) == 0 {
		return nil, errors.New("ledger not initialized, run genesis first")
	}
	return registries[0], nil
}

// Clock returns the shared clock.
func (l *Ledger) Clock(ctx context.Context) (*model.Object, error) {
	return l.Object(ctx, paytx.ClockID)
}

// Content returns the content item for the given id.
func (l *Ledger) Content(ctx context.Context, id string) (*model.Object, *model.ContentItem, error) {
	if !paytx.IsObjectID(id) {
		return nil, nil, pgerror.InvalidContentReference(id)
	}

	o, err := l.Object(ctx, id)
	if err != nil {
		if pgerror.Is(err, pgerror.TagObjectNotFound) {
			return nil, nil, pgerror.ContentNotFound(id)
		}
		return nil, nil, err
	}
	if o.Type != model.TypeContentItem {
		return nil, nil, pgerror.InvalidContentReference(id)
	}

	var content model.ContentItem
	if err = o.Decode(&content); err != nil {
		return nil, nil, err
	}
	return o, &content, nil
}

// Contents returns all the published contents.
func (l *Ledger) Contents(ctx context.Context) ([]*model.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	objects, err := l.db.FindObjectsByType(model.TypeContentItem)
	if err != nil {
		return nil, errors.Wrap(err, "could not get contents")
	}

	contents := make([]*model.ContentItem, 0, len(objects))
	for _, o := range objects {
		var content model.ContentItem
		if err = o.Decode(&content); err != nil {
			return nil, err
		}
		contents = append(contents, &content)
	}
	return contents, nil
}

// Coins returns the coins owned by owner, largest first.
func (l *Ledger) Coins(ctx context.Context, owner string) ([]Coin, error) {
	objects, err := l.OwnedObjects(ctx, owner, model.TypeCoin)
	if err != nil {
		return nil, err
	}

	coins := make([]Coin, 0, len(objects))
	for _, o := range objects {
		var c model.Coin
		if err = o.Decode(&c); err != nil {
			return nil, err
		}
		coins = append(coins, Coin{Ref: o.Ref(), Value: c.Value})
	}

	sort.SliceStable(coins, func(i, j int) bool {
		if coins[i].Value == coins[j].Value {
			return coins[i].Ref.ID < coins[j].Ref.ID
		}
		return coins[i].Value > coins[j].Value
	})
	return coins, nil
}

// Balance returns the sum of the coins owned by owner.
func (l *Ledger) Balance(ctx context.Context, owner string) (uint64, error) {
	coins, err := l.Coins(ctx, owner)
	if err != nil {
		return 0, err
	}

	var balance, carry uint64
	for _, c := range coins {
		balance, carry = bits.Add64(balance, c.Value, 0)
		if carry != 0 {
			return 0, errors.Errorf("balance of %s overflows", owner)
		}
	}
	return balance, nil
}

// Transaction returns the transaction record for the given digest.
func (l *Ledger) Transaction(ctx context.Context, digest string) (*model.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t, err := l.db.FindTransaction(digest)
	if err != nil {
		if l.db.IsNotFound(err) {
			return nil, pgerror.TransactionNotFound(digest)
		}
		return nil, errors.Wrap(err, "could not get transaction")
	}
	return t, nil
}

// Transactions returns the transactions sent by the given address, latest first.
func (l *Ledger) Transactions(ctx context.Context, sender string) ([]*model.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	transactions, err := l.db.FindTransactionsBySender(sender)
	return transactions, errors.Wrap(err, "could not get transactions")
}
