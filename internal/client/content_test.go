package client_test

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/mdouchement/paygate/internal/access"
	"github.com/mdouchement/paygate/internal/authorization"
	"github.com/mdouchement/paygate/internal/client"
	"github.com/mdouchement/paygate/internal/database"
	"github.com/mdouchement/paygate/internal/ledger"
	"github.com/mdouchement/paygate/internal/server"
	"github.com/mdouchement/paygate/internal/txbuilder"
	"github.com/mdouchement/paygate/pkg/libpg"
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

func setup(t *testing.T) (libpg.Client, *ledger.Ledger, string) {
	filename := filepath.Join(t.TempDir(), "client.db")
	require.NoError(t, database.StormInit(filename))
	db, err := database.StormOpen(filename)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	l := ledger.New(db)
	ts := httptest.NewServer(server.EchoEngine(server.IOC{
		Version:  "test",
		Ledger:   l,
		Builder:  txbuilder.New(l),
		Protocol: authorization.New(l),
		Resolver: access.NewResolver(l, nil),
	}))
	t.Cleanup(ts.Close)

	creator := keypair(t, 1)
	registry, err := l.Genesis(ctx, creator.Address())
	require.NoError(t, err)
	_, err = l.Mint(ctx, creator.Address(), ledger.DefaultGasBudget)
	require.NoError(t, err)

	u, err := txbuilder.New(l).BuildCreateContent(ctx, txbuilder.CreateContentParams{
		Registry:   registry.SharedRef(),
		Creator:    creator.Address(),
		Title:      "Premium Article",
		Price:      "1000000000",
		ContentURL: "https://example.com/premium",
	})
	require.NoError(t, err)
	tx, err := l.Execute(ctx, u.Bytes, []paytx.Signature{creator.Sign(u.Bytes)})
	require.NoError(t, err)

	c, err := libpg.NewDefaultClient(ts.URL)
	require.NoError(t, err)
	return c, l, tx.Events[0].ContentCreated.ContentID
}

func TestPrintContents(t *testing.T) {
	c, _, id := setup(t)

	var out bytes.Buffer
	assert.NoError(t, client.PrintContents(&out, c))
	assert.Contains(t, out.String(), id)
	assert.Contains(t, out.String(), "Premium Article")
	assert.NotContains(t, out.String(), "https://example.com/premium")
}

func TestPurchase(t *testing.T) {
	c, l, id := setup(t)
	buyer := keypair(t, 2)

	var out bytes.Buffer
	err := client.Purchase(&out, c, id, buyer)
	assert.ErrorContains(t, err, "cannot pay")

	_, err = l.Mint(ctx, buyer.Address(), 2_000_000_000)
	require.NoError(t, err)

	out.Reset()
	assert.NoError(t, client.Purchase(&out, c, id, buyer))
	assert.Contains(t, out.String(), "Transaction: ")
	assert.Contains(t, out.String(), "URL: https://example.com/premium")

	out.Reset()
	assert.NoError(t, client.PrintReceipts(&out, c, buyer.Address()))
	assert.Contains(t, out.String(), id)
	assert.Contains(t, out.String(), "1000000000")

	out.Reset()
	assert.NoError(t, client.PrintTransactions(&out, c, buyer.Address()))
	assert.Contains(t, out.String(), "DIGEST")
	assert.Contains(t, out.String(), "success")
	assert.Contains(t, out.String(), "2000")
}
