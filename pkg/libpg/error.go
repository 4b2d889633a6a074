package libpg

import (
	"io"
	"net/http"

	"github.com/pkg/errors"
	"github.com/valyala/fastjson"
)

// An Error reprensents an HTTP error returned by a paygate server.
type Error struct {
	StatusCode int
	Tag        string
	Message    string
}

// A PaymentRequired is returned when the requested content must be purchased first.
type PaymentRequired struct {
	Message string
	Payment Payment
}

// A Payment describes how to pay for a content.
type Payment struct {
	ContentID   string `json:"contentId"`
	Amount      string `json:"amount"`
	Recipient   string `json:"recipient"`
	Description string `json:"description"`
	// TransactionBytes is empty when the server could not build a transaction for the requester.
	TransactionBytes string `json:"transactionBytes"`
	Digest           string `json:"digest"`
	Sponsor          string `json:"sponsor"`
}

func parseError(r io.Reader, code int) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "could not read error")
	}

	v, err := fastjson.ParseBytes(b)
	if err != nil {
		return &Error{StatusCode: code, Message: string(b)}
	}

	if p := v.Get("paymentRequired"); p != nil {
		return &PaymentRequired{
			Message: string(v.GetStringBytes("message")),
			Payment: Payment{
				ContentID:        string(p.GetStringBytes("contentId")),
				Amount:           string(p.GetStringBytes("amount")),
				Recipient:        string(p.GetStringBytes("recipient")),
				Description:      string(p.GetStringBytes("description")),
				TransactionBytes: string(p.GetStringBytes("transactionBytes")),
				Digest:           string(p.GetStringBytes("digest")),
				Sponsor:          string(p.GetStringBytes("sponsor")),
			},
		}
	}

	return &Error{
		StatusCode: code,
		Tag:        string(v.GetStringBytes("error", "tag")),
		Message:    string(v.GetStringBytes("error", "message")),
	}
}

func (e *Error) Error() string {
	if e.Tag != "" {
		return e.Tag + ": " + e.Message
	}
	return e.Message
}

func (e *PaymentRequired) Error() string {
	return e.Message
}

// StatusCode returns the HTTP status code of a payment required response.
func (e *PaymentRequired) StatusCode() int {
	return http.StatusPaymentRequired
}

// IsPaymentRequired returns the payment details if err is a PaymentRequired.
func IsPaymentRequired(err error) (*PaymentRequired, bool) {
	var p *PaymentRequired
	ok := errors.As(err, &p)
	return p, ok
}
