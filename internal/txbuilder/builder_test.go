package txbuilder_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/mdouchement/paygate/internal/database"
	"github.com/mdouchement/paygate/internal/ledger"
	"github.com/mdouchement/paygate/internal/model"
	"github.com/mdouchement/paygate/internal/pgerror"
	"github.com/mdouchement/paygate/internal/txbuilder"
	"github.com/mdouchement/paygate/pkg/paytx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

func keypair(t *testing.T, b byte) *paytx.Keypair {
	k, err := paytx.KeypairFromSeed(bytes.Repeat([]byte{b}, 32))
	require.NoError(t, err)
	return k
}

func setup(t *testing.T) (*ledger.Ledger, *paytx.Keypair) {
	filename := filepath.Join(t.TempDir(), "builder.db")
	require.NoError(t, database.StormInit(filename))
	db, err := database.StormOpen(filename)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	l := ledger.New(db)
	creator := keypair(t, 1)
	_, err = l.Genesis(ctx, creator.Address())
	require.NoError(t, err)
	return l, creator
}

func execute(t *testing.T, l *ledger.Ledger, u *txbuilder.Unsigned, signers ...*paytx.Keypair) *model.Transaction {
	signatures := make([]paytx.Signature, 0, len(signers))
	for _, k := range signers {
		signatures = append(signatures, k.Sign(u.Bytes))
	}

	tx, err := l.Execute(ctx, u.Bytes, signatures)
	require.NoError(t, err)
	require.True(t, tx.Effects.Succeeded(), tx.Effects.Error)
	return tx
}

func publish(t *testing.T, l *ledger.Ledger, creator *paytx.Keypair) string {
	_, err := l.Mint(ctx, creator.Address(), ledger.DefaultGasBudget)
	require.NoError(t, err)
	registry, err := l.Registry(ctx)
	require.NoError(t, err)

	u, err := txbuilder.New(l).BuildCreateContent(ctx, txbuilder.CreateContentParams{
		Registry:    registry.SharedRef(),
		Creator:     creator.Address(),
		Title:       "Title",
		Description: "Description",
		Price:       "1000000000",
		ContentURL:  "https://example.com/asset",
	})
	require.NoError(t, err)

	tx := execute(t, l, u, creator)
	require.Len(t, tx.Events, 1)
	return tx.Events[0].ContentCreated.ContentID
}

func TestBuildPurchase(t *testing.T) {
	l, creator := setup(t)
	buyer := keypair(t, 2)
	contentID := publish(t, l, creator)
	_, err := l.Mint(ctx, buyer.Address(), 2_000_000_000)
	require.NoError(t, err)

	b := txbuilder.New(l)
	params := txbuilder.PurchaseParams{
		ContentID: contentID,
		Price:     "1000000000",
		Buyer:     buyer.Address(),
	}

	u, err := b.BuildPurchase(ctx, params)
	require.NoError(t, err)
	assert.NotEmpty(t, u.Bytes)
	assert.Equal(t, buyer.Address(), u.Envelope.Sender)
	assert.False(t, u.Envelope.Sponsored())

	again, err := b.BuildPurchase(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, u.Bytes, again.Bytes, "deterministic")
	assert.Equal(t, u.Digest, again.Digest)

	p, err := txbuilder.ParsePurchase(u.Envelope)
	require.NoError(t, err)
	assert.Equal(t, contentID, p.Content.ID)
	assert.Equal(t, uint64(1_000_000_000), p.Amount)
	assert.Equal(t, paytx.ClockID, p.Clock.ID)
	assert.Empty(t, p.Sponsor)

	execute(t, l, u, buyer)

	// Versions moved, a new attempt needs a new envelope.
	next, err := b.BuildPurchase(ctx, params)
	require.NoError(t, err)
	assert.NotEqual(t, u.Bytes, next.Bytes)
}

func TestBuildPurchase_Sponsored(t *testing.T) {
	l, creator := setup(t)
	buyer := keypair(t, 2)
	sponsor := keypair(t, 3)
	contentID := publish(t, l, creator)
	_, err := l.Mint(ctx, buyer.Address(), 1_000_000_000)
	require.NoError(t, err)

	b := txbuilder.New(l, txbuilder.WithSponsor(sponsor.Address()))
	params := txbuilder.PurchaseParams{
		ContentID: contentID,
		Price:     "1000000000",
		Buyer:     buyer.Address(),
	}

	_, err = b.BuildPurchase(ctx, params)
	assert.True(t, pgerror.Is(err, pgerror.TagInsufficientBalance), "sponsor has no gas coin")

	_, err = l.Mint(ctx, sponsor.Address(), ledger.DefaultGasBudget)
	require.NoError(t, err)

	u, err := b.BuildPurchase(ctx, params)
	require.NoError(t, err)
	assert.True(t, u.Envelope.Sponsored())
	assert.Equal(t, sponsor.Address(), u.Envelope.GasOwner())
	assert.False(t, u.Envelope.UsesGasCoin())

	p, err := txbuilder.ParsePurchase(u.Envelope)
	require.NoError(t, err)
	assert.Equal(t, sponsor.Address(), p.Sponsor)

	execute(t, l, u, buyer, sponsor)

	balance, err := l.Balance(ctx, buyer.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), balance, "buyer pays no fee")
}

func TestBuildPurchase_Errors(t *testing.T) {
	l, creator := setup(t)
	buyer := keypair(t, 2)
	contentID := publish(t, l, creator)
	b := txbuilder.New(l)

	_, err := b.BuildPurchase(ctx, txbuilder.PurchaseParams{ContentID: contentID, Price: "ten", Buyer: buyer.Address()})
	assert.True(t, pgerror.Is(err, pgerror.TagEncodingError), "non-numeric price")

	_, err = b.BuildPurchase(ctx, txbuilder.PurchaseParams{ContentID: contentID, Price: "-1", Buyer: buyer.Address()})
	assert.True(t, pgerror.Is(err, pgerror.TagEncodingError), "negative price")

	_, err = b.BuildPurchase(ctx, txbuilder.PurchaseParams{ContentID: "0x06", Price: "1", Buyer: buyer.Address()})
	assert.True(t, pgerror.Is(err, pgerror.TagInvalidContentReference), "malformed id")

	_, err = b.BuildPurchase(ctx, txbuilder.PurchaseParams{ContentID: paytx.DeriveObjectID("nowhere", 0), Price: "1", Buyer: buyer.Address()})
	assert.True(t, pgerror.Is(err, pgerror.TagInvalidContentReference), "unknown content")

	_, err = b.BuildPurchase(ctx, txbuilder.PurchaseParams{ContentID: paytx.ClockID, Price: "1", Buyer: buyer.Address()})
	assert.True(t, pgerror.Is(err, pgerror.TagInvalidContentReference), "not a content")

	_, err = b.BuildPurchase(ctx, txbuilder.PurchaseParams{ContentID: contentID, Price: "1000000000", Buyer: buyer.Address()})
	assert.True(t, pgerror.Is(err, pgerror.TagInsufficientBalance), "no coin")
}

func TestParsePurchase_Mismatch(t *testing.T) {
	l, creator := setup(t)
	registry, err := l.Registry(ctx)
	require.NoError(t, err)
	_, err = l.Mint(ctx, creator.Address(), ledger.DefaultGasBudget)
	require.NoError(t, err)

	u, err := txbuilder.New(l).BuildCreateContent(ctx, txbuilder.CreateContentParams{
		Registry: registry.SharedRef(),
		Creator:  creator.Address(),
		Price:    "1",
	})
	require.NoError(t, err)

	_, err = txbuilder.ParsePurchase(u.Envelope)
	assert.True(t, pgerror.Is(err, pgerror.TagEnvelopeMismatch))
}

func TestBuildCreateContent(t *testing.T) {
	l, creator := setup(t)
	contentID := publish(t, l, creator)

	o, content, err := l.Content(ctx, contentID)
	require.NoError(t, err)
	assert.True(t, o.Shared)
	assert.Equal(t, "Title", content.Title)
	assert.Equal(t, "Description", content.Description)
	assert.Equal(t, uint64(1_000_000_000), content.Price)
	assert.Equal(t, "https://example.com/asset", content.ContentURL)
	assert.Equal(t, creator.Address(), content.Creator)

	registry, err := l.Registry(ctx)
	require.NoError(t, err)
	b := txbuilder.New(l)

	_, err = b.BuildCreateContent(ctx, txbuilder.CreateContentParams{Registry: registry.SharedRef(), Creator: creator.Address(), Price: "1.5"})
	assert.True(t, pgerror.Is(err, pgerror.TagEncodingError), "decimal price")

	_, err = b.BuildCreateContent(ctx, txbuilder.CreateContentParams{Registry: registry.SharedRef(), Creator: "creator", Price: "1"})
	assert.True(t, pgerror.Is(err, pgerror.TagEncodingError), "invalid creator")

	_, err = b.BuildCreateContent(ctx, txbuilder.CreateContentParams{Registry: registry.SharedRef(), Creator: keypair(t, 9).Address(), Price: "1"})
	assert.True(t, pgerror.Is(err, pgerror.TagInsufficientBalance), "no gas coin")
}
