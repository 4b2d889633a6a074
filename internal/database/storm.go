package database

import (
	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/codec/msgpack"
	"github.com/asdine/storm/v3/q"
	"github.com/mdouchement/paygate/internal/model"
	"github.com/pkg/errors"
)

const (
	metaBucket    = "ledger"
	checkpointKey = "checkpoint"
)

type strm struct {
	db   *storm.DB
	node storm.Node
}

// StormCodec is the format used to store data in the database.
var StormCodec = storm.Codec(msgpack.Codec)

// StormInit initializes Storm database.
func StormInit(database string) error {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	if err := db.Init(&model.Object{}); err != nil {
		return errors.Wrap(err, "could not init object index")
	}

	err = db.Init(&model.Transaction{})
	return errors.Wrap(err, "could not init transaction index")
}

// StormReIndex reindex Storm database.
func StormReIndex(database string) error {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	if err := db.ReIndex(&model.Object{}); err != nil {
		return errors.Wrap(err, "could not ReIndex objects")
	}

	err = db.ReIndex(&model.Transaction{})
	return errors.Wrap(err, "could not ReIndex transactions")
}

// StormOpen returns a new Storm database connection.
func StormOpen(database string) (Client, error) {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return nil, errors.Wrap(err, "could not get database connection")
	}

	return &strm{
		db:   db,
		node: db,
	}, nil
}

// Atomic runs fn in a single write transaction.
func (c *strm) Atomic(fn func(Store) error) error {
	tx, err := c.node.Begin(true)
	if err != nil {
		return errors.Wrap(err, "could not begin transaction")
	}
	defer tx.Rollback() // No-op once committed.

	if err = fn(&strm{db: c.db, node: tx}); err != nil {
		return err
	}

	return errors.Wrap(tx.Commit(), "could not commit transaction")
}

// Close the database.
func (c *strm) Close() error {
	return c.db.Close()
}

// IsNotFound returns true if err is nil or a not found error.
func (c *strm) IsNotFound(err error) bool {
	return errors.Cause(err) == storm.ErrNotFound
}

// SaveObject inserts or updates the given object.
func (c *strm) SaveObject(o *model.Object) error {
	return errors.Wrap(c.node.Save(o), "could not save the object")
}

// FindObject returns the object for the given id.
func (c *strm) FindObject(id string) (*model.Object, error) {
	var o model.Object
	if err := c.node.One("ID", id, &o); err != nil {
		return nil, errors.Wrap(err, "find object by id")
	}
	return &o, nil
}

// FindOwnedObjects returns the objects of the given type owned by owner.
func (c *strm) FindOwnedObjects(owner, typ string) ([]*model.Object, error) {
	objects := make([]*model.Object, 0)
	err := c.node.Select(q.Eq("Owner", owner), q.Eq("Type", typ)).Find(&objects)
	if err != nil && !c.IsNotFound(err) {
		return nil, errors.Wrap(err, "could not find owned objects")
	}
	return objects, nil
}

// FindObjectsByType returns all the objects of the given type.
func (c *strm) FindObjectsByType(typ string) ([]*model.Object, error) {
	objects := make([]*model.Object, 0)
	err := c.node.Find("Type", typ, &objects)
	if err != nil && !c.IsNotFound(err) {
		return nil, errors.Wrap(err, "could not find objects by type")
	}
	return objects, nil
}

// SaveTransaction inserts the given transaction record.
func (c *strm) SaveTransaction(t *model.Transaction) error {
	return errors.Wrap(c.node.Save(t), "could not save the transaction")
}

// FindTransaction returns the transaction for the given digest.
func (c *strm) FindTransaction(digest string) (*model.Transaction, error) {
	var t model.Transaction
	if err := c.node.One("Digest", digest, &t); err != nil {
		return nil, errors.Wrap(err, "find transaction by digest")
	}
	return &t, nil
}

// FindTransactionsBySender returns the transactions sent by the given address, latest first.
func (c *strm) FindTransactionsBySender(sender string) ([]*model.Transaction, error) {
	transactions := make([]*model.Transaction, 0)
	err := c.node.Select(q.Eq("Sender", sender)).OrderBy("Checkpoint").Reverse().Find(&transactions)
	if err != nil && !c.IsNotFound(err) {
		return nil, errors.Wrap(err, "could not find transactions by sender")
	}
	return transactions, nil
}

// NextCheckpoint increments and returns the ledger checkpoint sequence.
func (c *strm) NextCheckpoint() (uint64, error) {
	var n uint64
	err := c.node.Get(metaBucket, checkpointKey, &n)
	if err != nil && !c.IsNotFound(err) {
		return 0, errors.Wrap(err, "could not read checkpoint")
	}

	n++
	return n, errors.Wrap(c.node.Set(metaBucket, checkpointKey, n), "could not write checkpoint")
}
