package pgerror

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Tags of the errors a purchase attempt can end with.
const (
	TagInsufficientPayment     = "insufficient-payment"
	TagInsufficientBalance     = "insufficient-balance"
	TagContentNotFound         = "content-not-found"
	TagInvalidContentReference = "invalid-content-reference"
	TagEncodingError           = "encoding-error"
	TagEnvelopeMismatch        = "envelope-mismatch"
	TagSignatureRejected       = "signature-rejected"
	TagSponsorNotConfigured    = "sponsor-not-configured"
	TagStaleObjectVersion      = "stale-object-version"
	TagConfirmationTimeout     = "confirmation-timeout"
	TagQueryFailed             = "query-failed"
	TagInvalidParameters       = "invalid-parameters"
	TagObjectNotFound          = "object-not-found"
	TagInvalidObjectReference  = "invalid-object-reference"
	TagInsufficientGas         = "insufficient-gas"
	TagExecutionFailed         = "execution-failed"
	TagTransactionNotFound     = "transaction-not-found"
)

type (
	// An Error represents the error format that can be rendered by paygate server.
	Error struct {
		HTTPCode   int `json:"-"`
		FieldError err `json:"error"`
		cause      error
	}

	err struct {
		Tag     string `json:"tag,omitempty"`
		Message string `json:"message"`
	}
)

// StatusCode returns the HTTP status code.
func StatusCode(err error) int {
	var pgerr *Error
	if errors.As(err, &pgerr) {
		return pgerr.HTTPCode
	}
	return http.StatusInternalServerError
}

// Is returns true if err or one of the errors it wraps is an Error with the given tag.
func Is(err error, tag string) bool {
	var pgerr *Error
	if errors.As(err, &pgerr) {
		return pgerr.FieldError.Tag == tag
	}
	return false
}

// New returns a new Error with the given message.
func New(message string) *Error {
	return &Error{FieldError: err{Message: message}}
}

// NewWithTagCode returns a new Error with the given code, tag and message.
func NewWithTagCode(code int, tag, message string) *Error {
	return &Error{HTTPCode: code, FieldError: err{Tag: tag, Message: message}}
}

// Error implements error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.FieldError.Message, e.cause)
	}
	return e.FieldError.Message
}

// Tag returns the machine readable tag of the error.
func (e *Error) Tag() string {
	return e.FieldError.Tag
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// WithCause returns a copy of the error carrying the given cause.
// The cause is never rendered to HTTP clients.
func (e *Error) WithCause(cause error) *Error {
	c := *e
	c.cause = cause
	return &c
}

//
// Taxonomy
//

// InsufficientPayment is returned when the payment does not cover the content price.
func InsufficientPayment(paid, price uint64) *Error {
	return NewWithTagCode(http.StatusPaymentRequired, TagInsufficientPayment,
		fmt.Sprintf("Payment of %d is lower than the price %d.", paid, price))
}

// InsufficientBalance is returned when the payer does not own a coin able to pay.
func InsufficientBalance(address string, amount uint64) *Error {
	return NewWithTagCode(http.StatusBadRequest, TagInsufficientBalance,
		fmt.Sprintf("Address %s cannot pay %d.", address, amount))
}

// ContentNotFound is returned when a content reference does not resolve.
func ContentNotFound(id string) *Error {
	return NewWithTagCode(http.StatusNotFound, TagContentNotFound,
		fmt.Sprintf("Content %s not found.", id))
}

// InvalidContentReference is returned when a content reference cannot be used as a call argument.
func InvalidContentReference(id string) *Error {
	return NewWithTagCode(http.StatusBadRequest, TagInvalidContentReference,
		fmt.Sprintf("Invalid content reference %s.", id))
}

// EncodingError is returned when parameters cannot be serialized or parsed.
func EncodingError(message string) *Error {
	return NewWithTagCode(http.StatusBadRequest, TagEncodingError, message)
}

// EnvelopeMismatch is returned when an envelope is not the purchase it claims to be.
func EnvelopeMismatch(message string) *Error {
	return NewWithTagCode(http.StatusBadRequest, TagEnvelopeMismatch, message)
}

// SignatureRejected is returned when a signer declines or a signature is malformed or invalid.
func SignatureRejected(message string) *Error {
	return NewWithTagCode(http.StatusBadRequest, TagSignatureRejected, message)
}

// SponsorNotConfigured is returned when a sponsored path is requested without sponsor credential.
func SponsorNotConfigured() *Error {
	return NewWithTagCode(http.StatusNotImplemented, TagSponsorNotConfigured,
		"Fee sponsoring is not configured.")
}

// StaleObjectVersion is returned when an envelope references an object version that is no longer current.
func StaleObjectVersion(id string, expected, current uint64) *Error {
	return NewWithTagCode(http.StatusConflict, TagStaleObjectVersion,
		fmt.Sprintf("Object %s is at version %d, envelope references version %d. Rebuild the envelope.", id, current, expected))
}

// ConfirmationTimeout is returned when the outcome of a submitted transaction is unknown within the bound.
func ConfirmationTimeout(digest string) *Error {
	return NewWithTagCode(http.StatusGatewayTimeout, TagConfirmationTimeout,
		fmt.Sprintf("Transaction %s not confirmed yet. Query it by digest, do not resubmit.", digest))
}

// QueryFailed is returned when an ownership lookup fails.
func QueryFailed(cause error) *Error {
	return NewWithTagCode(http.StatusServiceUnavailable, TagQueryFailed,
		"Ledger query failed, retry later.").WithCause(cause)
}

// InvalidParameters is returned when a request cannot be understood.
func InvalidParameters(message string) *Error {
	return NewWithTagCode(http.StatusBadRequest, TagInvalidParameters, message)
}

//
// Ledger substrate
//

// ObjectNotFound is returned when an envelope references an unknown object.
func ObjectNotFound(id string) *Error {
	return NewWithTagCode(http.StatusNotFound, TagObjectNotFound,
		fmt.Sprintf("Object %s not found.", id))
}

// InvalidObjectReference is returned when an object cannot be used the way an envelope references it.
func InvalidObjectReference(id, reason string) *Error {
	return NewWithTagCode(http.StatusBadRequest, TagInvalidObjectReference,
		fmt.Sprintf("Invalid reference to object %s: %s.", id, reason))
}

// InsufficientGas is returned when the gas payment cannot cover the budget or the fees.
func InsufficientGas(message string) *Error {
	return NewWithTagCode(http.StatusBadRequest, TagInsufficientGas, message)
}

// TransactionNotFound is returned when no transaction has been recorded for a digest.
func TransactionNotFound(digest string) *Error {
	return NewWithTagCode(http.StatusNotFound, TagTransactionNotFound,
		fmt.Sprintf("Transaction %s not found.", digest))
}
