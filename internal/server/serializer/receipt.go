package serializer

import (
	"strconv"

	"github.com/mdouchement/paygate/internal/model"
)

// Receipt serializes an access receipt.
func Receipt(m *model.AccessReceipt) map[string]any {
	return map[string]any{
		"id":           m.ID,
		"contentId":    m.ContentID,
		"contentTitle": m.ContentTitle,
		"pricePaid":    strconv.FormatUint(m.PricePaid, 10),
		"purchaser":    m.Purchaser,
		"timestamp":    strconv.FormatUint(m.Timestamp, 10),
	}
}

// Receipts serializes the given access receipts.
func Receipts(receipts []*model.AccessReceipt) []map[string]any {
	r := make([]map[string]any, 0, len(receipts))
	for _, receipt := range receipts {
		r = append(r, Receipt(receipt))
	}
	return r
}
