package contract_test

import (
	"fmt"
	"testing"

	"github.com/mdouchement/paygate/internal/contract"
	"github.com/mdouchement/paygate/internal/model"
	"github.com/mdouchement/paygate/internal/pgerror"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeContext struct {
	sender   string
	n        int
	owned    map[string]string
	shared   map[string]model.Payload
	payloads map[string]model.Payload
	events   []model.Event
}

func newContext(sender string) *fakeContext {
	return &fakeContext{
		sender:   sender,
		owned:    map[string]string{},
		shared:   map[string]model.Payload{},
		payloads: map[string]model.Payload{},
	}
}

func (c *fakeContext) Sender() string { return c.sender }

func (c *fakeContext) NewID() string {
	c.n++
	return fmt.Sprintf("0x%064d", c.n)
}

func (c *fakeContext) Transfer(p model.Payload, recipient string) error {
	c.owned[p.ObjectID()] = recipient
	c.payloads[p.ObjectID()] = p
	return nil
}

func (c *fakeContext) Share(p model.Payload) error {
	c.shared[p.ObjectID()] = p
	return nil
}

func (c *fakeContext) Emit(ev model.Event) {
	c.events = append(c.events, ev)
}

const (
	creator = "0xc0"
	buyer   = "0xb0"
)

func TestBootstrap(t *testing.T) {
	ctx := newContext("0x00")

	registry, err := contract.Bootstrap(ctx, creator)
	assert.NoError(t, err)
	assert.Equal(t, creator, registry.Owner)
	assert.Contains(t, ctx.shared, registry.ID)
}

func TestCreateContent(t *testing.T) {
	ctx := newContext(creator)
	registry := &model.ContentRegistry{ID: "0xregistry", Owner: creator}

	content, err := contract.CreateContent(ctx, registry, "Title", "Description", 1_000_000_000, "https://example.com/asset")
	require.NoError(t, err)

	assert.Equal(t, creator, content.Creator)
	assert.Equal(t, uint64(1_000_000_000), content.Price)
	assert.Contains(t, ctx.shared, content.ID)
	require.Len(t, ctx.events, 1)
	assert.Equal(t, model.EventContentCreated, ctx.events[0].Type)
	assert.Equal(t, &model.ContentCreated{
		ContentID: content.ID,
		Title:     "Title",
		Price:     1_000_000_000,
		Creator:   creator,
	}, ctx.events[0].ContentCreated)

	_, err = contract.CreateContent(ctx, nil, "Title", "Description", 1, "url")
	assert.Error(t, err)
}

func TestPurchaseAndGrantAccess(t *testing.T) {
	content := &model.ContentItem{ID: "0xcontent", Title: "Title", Price: 1_000_000_000, Creator: creator}
	clock := &model.Clock{ID: "0x06", TimestampMs: 1700000000000}

	for _, paid := range []uint64{1_000_000_000, 1_500_000_000} {
		ctx := newContext(buyer)
		payment := &model.Coin{ID: "0xpayment", Value: paid}

		err := contract.PurchaseAndGrantAccess(ctx, content, payment, clock)
		require.NoError(t, err)

		assert.Equal(t, creator, ctx.owned[payment.ID], "whole payment goes to the creator")
		assert.Equal(t, paid, ctx.payloads[payment.ID].(*model.Coin).Value)

		require.Len(t, ctx.events, 1)
		ev := ctx.events[0].ContentPurchased
		require.NotNil(t, ev)

		receipt := ctx.payloads[ev.ReceiptID].(*model.AccessReceipt)
		assert.Equal(t, buyer, ctx.owned[receipt.ID])
		assert.Equal(t, &model.AccessReceipt{
			ID:           ev.ReceiptID,
			ContentID:    content.ID,
			ContentTitle: content.Title,
			PricePaid:    content.Price,
			Purchaser:    buyer,
			Timestamp:    clock.TimestampMs,
		}, receipt)
		assert.Equal(t, content.Price, ev.PricePaid)
	}
}

func TestPurchaseAndGrantAccess_InsufficientPayment(t *testing.T) {
	ctx := newContext(buyer)
	content := &model.ContentItem{ID: "0xcontent", Title: "Title", Price: 1_000_000_000, Creator: creator}
	payment := &model.Coin{ID: "0xpayment", Value: 500_000_000}

	err := contract.PurchaseAndGrantAccess(ctx, content, payment, &model.Clock{})

	var abort *contract.Abort
	require.True(t, errors.As(err, &abort))
	assert.Equal(t, contract.EInsufficientPayment, abort.Code)
	assert.Equal(t, pgerror.TagInsufficientPayment, abort.Tag)
	assert.Empty(t, ctx.owned)
	assert.Empty(t, ctx.events)
}
