package access_test

import (
	"context"
	"testing"

	"github.com/mdouchement/paygate/internal/access"
	"github.com/mdouchement/paygate/internal/model"
	"github.com/mdouchement/paygate/internal/pgerror"
	"github.com/mdouchement/paygate/pkg/paytx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ctx      = context.Background()
	buyer    = paytx.DeriveObjectID("buyer", 0)
	content  = paytx.DeriveObjectID("content", 0)
	other    = paytx.DeriveObjectID("content", 1)
	receipt1 = paytx.DeriveObjectID("receipt", 0)
)

type fakeLedger struct {
	objects []*model.Object
	err     error
	calls   int
}

func (l *fakeLedger) OwnedObjects(_ context.Context, owner, typ string) ([]*model.Object, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}

	objects := make([]*model.Object, 0)
	for _, o := range l.objects {
		if o.Owner == owner && o.Type == typ {
			objects = append(objects, o)
		}
	}
	return objects, nil
}

func (l *fakeLedger) mint(t *testing.T, owner, contentID string) {
	o, err := model.NewOwnedObject(owner, &model.AccessReceipt{
		ID:           paytx.DeriveObjectID("receipt", uint64(len(l.objects))),
		ContentID:    contentID,
		ContentTitle: "Title",
		PricePaid:    1_000_000_000,
		Purchaser:    owner,
		Timestamp:    1_700_000_000_000,
	})
	require.NoError(t, err)
	l.objects = append(l.objects, o)
}

func TestResolver(t *testing.T) {
	l := &fakeLedger{}
	r := access.NewResolver(l, nil)

	d, err := r.Check(ctx, buyer, content)
	assert.NoError(t, err)
	assert.Equal(t, access.Denied, d)

	l.mint(t, buyer, content)

	d, err = r.Check(ctx, buyer, content)
	assert.NoError(t, err)
	assert.Equal(t, access.Granted, d)

	ok, err := r.HasAccess(ctx, buyer, other)
	assert.NoError(t, err)
	assert.False(t, ok)

	receipts, err := r.ListReceipts(ctx, buyer)
	assert.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, receipt1, receipts[0].ID)
	assert.Equal(t, content, receipts[0].ContentID)

	_, err = r.Check(ctx, "alice", content)
	assert.True(t, pgerror.Is(err, pgerror.TagInvalidParameters))
}

func TestResolver_QueryFailed(t *testing.T) {
	l := &fakeLedger{err: errors.New("connection reset")}
	r := access.NewResolver(l, nil)

	d, err := r.Check(ctx, buyer, content)
	assert.Equal(t, access.Unknown, d, "a failure is not a denial")
	assert.True(t, pgerror.Is(err, pgerror.TagQueryFailed))

	ok, err := r.HasAccess(ctx, buyer, content)
	assert.False(t, ok)
	assert.True(t, pgerror.Is(err, pgerror.TagQueryFailed))

	_, err = r.ListReceipts(ctx, buyer)
	assert.True(t, pgerror.Is(err, pgerror.TagQueryFailed))
}

func TestResolver_Cache(t *testing.T) {
	l := &fakeLedger{}
	l.mint(t, buyer, content)
	cache, err := access.NewLRUCache(16)
	require.NoError(t, err)
	r := access.NewResolver(l, cache)

	ok, err := r.HasAccess(ctx, buyer, content)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, l.calls)

	// Granted accesses are served from the cache, even when the ledger is unreachable.
	l.err = errors.New("connection reset")
	ok, err = r.HasAccess(ctx, buyer, content)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, l.calls)

	// Denials are never cached.
	l.err = nil
	for i := 0; i < 2; i++ {
		ok, err = r.HasAccess(ctx, buyer, other)
		assert.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, 3, l.calls)
}

func TestResolver_UnreachableRedis(t *testing.T) {
	l := &fakeLedger{}
	l.mint(t, buyer, content)
	cache := access.NewRedisCache("127.0.0.1:1", "")

	_, err := cache.Granted(ctx, buyer, content)
	assert.Error(t, err)

	r := access.NewResolver(l, cache)
	ok, err := r.HasAccess(ctx, buyer, content)
	assert.NoError(t, err, "the cache is best effort")
	assert.True(t, ok)
}
