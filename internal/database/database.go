package database

import (
	"github.com/mdouchement/paygate/internal/model"
)

type (
	// A Client can interacts with the database.
	Client interface {
		Store

		// Atomic runs fn in a single write transaction.
		// Nothing written through the given Store is persisted if fn returns an error.
		Atomic(fn func(Store) error) error
		// Close the database.
		Close() error
	}

	// A Store reads and writes ledger records.
	Store interface {
		// IsNotFound returns true if err is a not found error.
		IsNotFound(err error) bool

		ObjectInteraction
		TransactionInteraction
	}

	// An ObjectInteraction defines all the methods used to interact with ledger objects.
	ObjectInteraction interface {
		// SaveObject inserts or updates the given object.
		SaveObject(o *model.Object) error
		// FindObject returns the object for the given id.
		FindObject(id string) (*model.Object, error)
		// FindOwnedObjects returns the objects of the given type owned by owner.
		FindOwnedObjects(owner, typ string) ([]*model.Object, error)
		// FindObjectsByType returns all the objects of the given type.
		FindObjectsByType(typ string) ([]*model.Object, error)
	}

	// A TransactionInteraction defines all the methods used to interact with transaction records.
	TransactionInteraction interface {
		// SaveTransaction inserts the given transaction record.
		SaveTransaction(t *model.Transaction) error
		// FindTransaction returns the transaction for the given digest.
		FindTransaction(digest string) (*model.Transaction, error)
		// FindTransactionsBySender returns the transactions sent by the given address, latest first.
		FindTransactionsBySender(sender string) ([]*model.Transaction, error)
		// NextCheckpoint increments and returns the ledger checkpoint sequence.
		NextCheckpoint() (uint64, error)
	}
)
