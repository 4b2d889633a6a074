package contract

import (
	"fmt"

	"github.com/mdouchement/paygate/internal/model"
	"github.com/mdouchement/paygate/internal/pgerror"
	"github.com/pkg/errors"
)

// Module is the name of the ledger module exposing content functions.
const Module = "content"

// Abort codes of the content module.
const (
	EInsufficientPayment uint64 = iota
)

type (
	// A Context is the execution environment of a ledger function.
	// Every object it creates or transfers is applied only if the whole transaction succeeds.
	Context interface {
		// Sender returns the address that signed the transaction as sender.
		Sender() string
		// NewID returns a fresh object identity.
		NewID() string
		// Transfer gives the object holding p to recipient.
		Transfer(p model.Payload, recipient string) error
		// Share publishes the object holding p as a shared object.
		Share(p model.Payload) error
		// Emit records an event.
		Emit(ev model.Event)
	}

	// An Abort is raised by a ledger function whose precondition does not hold.
	// The transaction it belongs to is reverted as a whole.
	Abort struct {
		Function string
		Code     uint64
		Tag      string
		Message  string
	}
)

func (a *Abort) Error() string {
	return fmt.Sprintf("%s::%s aborted with code %d: %s", Module, a.Function, a.Code, a.Message)
}

// Bootstrap creates the content registry. It is called once at genesis.
func Bootstrap(ctx Context, owner string) (*model.ContentRegistry, error) {
	registry := &model.ContentRegistry{
		ID:    ctx.NewID(),
		Owner: owner,
	}
	return registry, errors.Wrap(ctx.Share(registry), "could not share registry")
}

// CreateContent publishes a new content sold by the sender.
func CreateContent(ctx Context, registry *model.ContentRegistry, title, description string, price uint64, contentURL string) (*model.ContentItem, error) {
	if registry == nil {
		return nil, errors.New("missing content registry")
	}

	content := &model.ContentItem{
		ID:          ctx.NewID(),
		Title:       title,
		Description: description,
		Price:       price,
		ContentURL:  contentURL,
		Creator:     ctx.Sender(),
	}
	if err := ctx.Share(content); err != nil {
		return nil, errors.Wrap(err, "could not share content")
	}

	ctx.Emit(model.Event{
		Type: model.EventContentCreated,
		ContentCreated: &model.ContentCreated{
			ContentID: content.ID,
			Title:     content.Title,
			Price:     content.Price,
			Creator:   content.Creator,
		},
	})
	return content, nil
}

// PurchaseAndGrantAccess takes the whole payment for the content creator and mints
// an access receipt to the sender.
func PurchaseAndGrantAccess(ctx Context, content *model.ContentItem, payment *model.Coin, clock *model.Clock) error {
	if payment.Value < content.Price {
		perr := pgerror.InsufficientPayment(payment.Value, content.Price)
		return &Abort{
			Function: "purchase_and_grant_access",
			Code:     EInsufficientPayment,
			Tag:      perr.Tag(),
			Message:  perr.Error(),
		}
	}

	if err := ctx.Transfer(payment, content.Creator); err != nil {
		return errors.Wrap(err, "could not transfer payment")
	}

	receipt := &model.AccessReceipt{
		ID:           ctx.NewID(),
		ContentID:    content.ID,
		ContentTitle: content.Title,
		PricePaid:    content.Price,
		Purchaser:    ctx.Sender(),
		Timestamp:    clock.TimestampMs,
	}
	if err := ctx.Transfer(receipt, ctx.Sender()); err != nil {
		return errors.Wrap(err, "could not transfer receipt")
	}

	ctx.Emit(model.Event{
		Type: model.EventContentPurchased,
		ContentPurchased: &model.ContentPurchased{
			ContentID: content.ID,
			ReceiptID: receipt.ID,
			Purchaser: receipt.Purchaser,
			PricePaid: receipt.PricePaid,
			Timestamp: receipt.Timestamp,
		},
	})
	return nil
}
