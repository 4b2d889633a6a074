package serializer

import (
	"encoding/base64"
	"net/http"
	"strconv"

	"github.com/mdouchement/paygate/internal/model"
	"github.com/mdouchement/paygate/internal/txbuilder"
)

// PaymentRequired serializes the payment required to unlock a content.
// The unsigned envelope is omitted when it could not be built for the requester.
func PaymentRequired(m *model.ContentItem, unsigned *txbuilder.Unsigned, sponsor, message string) map[string]any {
	payment := map[string]any{
		"contentId":   m.ID,
		"amount":      strconv.FormatUint(m.Price, 10),
		"recipient":   m.Creator,
		"description": "Access to " + m.Title,
	}
	if unsigned != nil {
		payment["transactionBytes"] = base64.StdEncoding.EncodeToString(unsigned.Bytes)
		payment["digest"] = unsigned.Digest
	}
	if sponsor != "" {
		payment["sponsor"] = sponsor
	}

	return map[string]any{
		"statusCode":      http.StatusPaymentRequired,
		"message":         message,
		"paymentRequired": payment,
	}
}
