package model

import "time"

// Transaction statuses.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Object change kinds.
const (
	ChangeCreated = "created"
	ChangeMutated = "mutated"
)

// Event types.
const (
	EventContentCreated   = "content::ContentCreated"
	EventContentPurchased = "content::ContentPurchased"
)

type (
	// A Transaction is the record of an executed envelope, keyed by its digest.
	Transaction struct {
		Digest     string    `json:"digest"     msgpack:"digest"     storm:"id"`
		Bytes      []byte    `json:"-"          msgpack:"bytes"`
		Signatures []string  `json:"signatures" msgpack:"signatures"`
		Sender     string    `json:"sender"     msgpack:"sender"     storm:"index"`
		GasOwner   string    `json:"gasOwner"   msgpack:"gas_owner"`
		Checkpoint uint64    `json:"checkpoint" msgpack:"checkpoint" storm:"index"`
		CreatedAt  time.Time `json:"createdAt"  msgpack:"created_at"`
		Effects    Effects   `json:"effects"    msgpack:"effects"`
		Events     []Event   `json:"events"     msgpack:"events"`
	}

	// Effects are the outcome of a transaction execution.
	Effects struct {
		Status   string         `json:"status"             msgpack:"status"`
		Error    string         `json:"error,omitempty"    msgpack:"error"`
		ErrorTag string         `json:"errorTag,omitempty" msgpack:"error_tag"`
		GasUsed  uint64         `json:"gasUsed,string"     msgpack:"gas_used"`
		Changes  []ObjectChange `json:"objectChanges"      msgpack:"changes"`
	}

	// An ObjectChange describes an object created or mutated by a transaction.
	ObjectChange struct {
		Kind    string `json:"kind"            msgpack:"kind"`
		ID      string `json:"objectId"        msgpack:"id"`
		Type    string `json:"type"            msgpack:"type"`
		Owner   string `json:"owner,omitempty" msgpack:"owner"`
		Version uint64 `json:"version,string"  msgpack:"version"`
	}

	// An Event is emitted by a successful transaction.
	// Exactly one of the typed fields is set according to Type.
	Event struct {
		Type             string            `json:"type"                       msgpack:"type"`
		ContentCreated   *ContentCreated   `json:"contentCreated,omitempty"   msgpack:"content_created,omitempty"`
		ContentPurchased *ContentPurchased `json:"contentPurchased,omitempty" msgpack:"content_purchased,omitempty"`
	}

	// ContentCreated is emitted when a content is published.
	ContentCreated struct {
		ContentID string `json:"contentId"    msgpack:"content_id"`
		Title     string `json:"title"        msgpack:"title"`
		Price     uint64 `json:"price,string" msgpack:"price"`
		Creator   string `json:"creator"      msgpack:"creator"`
	}

	// ContentPurchased is emitted when an access receipt is minted.
	ContentPurchased struct {
		ContentID string `json:"contentId"        msgpack:"content_id"`
		ReceiptID string `json:"receiptId"        msgpack:"receipt_id"`
		Purchaser string `json:"purchaser"        msgpack:"purchaser"`
		PricePaid uint64 `json:"pricePaid,string" msgpack:"price_paid"`
		Timestamp uint64 `json:"timestamp,string" msgpack:"timestamp"`
	}
)

// Succeeded returns true if the transaction has been applied.
func (e Effects) Succeeded() bool {
	return e.Status == StatusSuccess
}

// Created returns the objects created by the transaction.
func (e Effects) Created() []ObjectChange {
	return e.filter(ChangeCreated)
}

// Mutated returns the objects mutated by the transaction.
func (e Effects) Mutated() []ObjectChange {
	return e.filter(ChangeMutated)
}

func (e Effects) filter(kind string) []ObjectChange {
	changes := make([]ObjectChange, 0, len(e.Changes))
	for _, c := range e.Changes {
		if c.Kind == kind {
			changes = append(changes, c)
		}
	}
	return changes
}

// Purchase returns the purchase event of the transaction, if any.
func (t *Transaction) Purchase() (*ContentPurchased, bool) {
	for _, ev := range t.Events {
		if ev.Type == EventContentPurchased && ev.ContentPurchased != nil {
			return ev.ContentPurchased, true
		}
	}
	return nil, false
}
