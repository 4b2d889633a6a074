package serializer

import (
	"github.com/mdouchement/paygate/internal/model"
)

// Execution serializes the outcome of an executed purchase.
func Execution(m *model.Transaction) map[string]any {
	return map[string]any{
		"digest":  m.Digest,
		"status":  m.Effects.Status,
		"effects": m.Effects,
		"events":  m.Events,
	}
}

// Transaction serializes a recorded transaction.
func Transaction(m *model.Transaction) map[string]any {
	r := Execution(m)
	r["sender"] = m.Sender
	r["gasOwner"] = m.GasOwner
	r["checkpoint"] = m.Checkpoint
	r["signatures"] = m.Signatures
	r["createdAt"] = m.CreatedAt.UTC()
	return r
}

// Transactions serializes the given transactions.
func Transactions(transactions []*model.Transaction) []map[string]any {
	r := make([]map[string]any, 0, len(transactions))
	for _, transaction := range transactions {
		r = append(r, Transaction(transaction))
	}
	return r
}
