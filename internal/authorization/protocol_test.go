package authorization_test

import (
	"bytes"
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mdouchement/paygate/internal/authorization"
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

type fixture struct {
	ledger    *ledger.Ledger
	creator   *paytx.Keypair
	buyer     *paytx.Keypair
	sponsor   *paytx.Keypair
	contentID string
}

func keypair(t *testing.T, b byte) *paytx.Keypair {
	k, err := paytx.KeypairFromSeed(bytes.Repeat([]byte{b}, 32))
	require.NoError(t, err)
	return k
}

func setup(t *testing.T) *fixture {
	filename := filepath.Join(t.TempDir(), "authorization.db")
	require.NoError(t, database.StormInit(filename))
	db, err := database.StormOpen(filename)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		ledger:  ledger.New(db),
		creator: keypair(t, 1),
		buyer:   keypair(t, 2),
		sponsor: keypair(t, 3),
	}

	registry, err := f.ledger.Genesis(ctx, f.creator.Address())
	require.NoError(t, err)
	f.mint(t, f.creator, ledger.DefaultGasBudget)

	u, err := txbuilder.New(f.ledger).BuildCreateContent(ctx, txbuilder.CreateContentParams{
		Registry: registry.SharedRef(),
		Creator:  f.creator.Address(),
		Title:    "Title",
		Price:    "1000000000",
	})
	require.NoError(t, err)
	tx, err := f.ledger.Execute(ctx, u.Bytes, []paytx.Signature{f.creator.Sign(u.Bytes)})
	require.NoError(t, err)
	f.contentID = tx.Events[0].ContentCreated.ContentID

	return f
}

func (f *fixture) mint(t *testing.T, owner *paytx.Keypair, value uint64) {
	_, err := f.ledger.Mint(ctx, owner.Address(), value)
	require.NoError(t, err)
}

func (f *fixture) attempt(t *testing.T, b *txbuilder.Builder, buyer *paytx.Keypair, amount string) *authorization.Attempt {
	u, err := b.BuildPurchase(ctx, txbuilder.PurchaseParams{
		ContentID: f.contentID,
		Price:     "1000000000",
		Buyer:     buyer.Address(),
		Amount:    amount,
	})
	require.NoError(t, err)

	a, err := authorization.NewAttempt(u.Bytes)
	require.NoError(t, err)
	assert.Equal(t, authorization.Built, a.State())
	assert.Equal(t, u.Digest, a.Digest())

	require.NoError(t, a.AddBuyerSignature(buyer.Sign(u.Bytes)))
	assert.Equal(t, authorization.BuyerSigned, a.State())
	return a
}

func fastPoller() authorization.Poller {
	return authorization.Poller{Interval: 5 * time.Millisecond, Timeout: 50 * time.Millisecond}
}

func TestAttempt(t *testing.T) {
	f := setup(t)
	f.mint(t, f.buyer, 2_000_000_000)

	_, err := authorization.NewAttempt([]byte("garbage"))
	assert.True(t, pgerror.Is(err, pgerror.TagEncodingError))

	u, err := txbuilder.New(f.ledger).BuildPurchase(ctx, txbuilder.PurchaseParams{
		ContentID: f.contentID,
		Price:     "1000000000",
		Buyer:     f.buyer.Address(),
	})
	require.NoError(t, err)

	a, err := authorization.NewAttempt(u.Bytes)
	require.NoError(t, err)
	assert.False(t, a.Ready())

	assert.Error(t, a.AddSponsorSignature(f.sponsor.Sign(u.Bytes)), "not buyer signed yet")

	err = a.AddBuyerSignature(f.creator.Sign(u.Bytes))
	assert.True(t, pgerror.Is(err, pgerror.TagSignatureRejected), "not the sender")

	err = a.AddBuyerSignature(f.buyer.Sign(append([]byte{}, u.Bytes[1:]...)))
	assert.True(t, pgerror.Is(err, pgerror.TagSignatureRejected), "other bytes")
	assert.Equal(t, authorization.Built, a.State())

	require.NoError(t, a.AddBuyerSignature(f.buyer.Sign(u.Bytes)))
	assert.True(t, a.Ready())
	assert.Len(t, a.Signatures(), 1)
	assert.Error(t, a.AddBuyerSignature(f.buyer.Sign(u.Bytes)), "already signed")

	err = a.AddSponsorSignature(f.sponsor.Sign(u.Bytes))
	assert.True(t, pgerror.Is(err, pgerror.TagEnvelopeMismatch), "unsponsored envelope")
}

func TestProtocol_Execute(t *testing.T) {
	f := setup(t)
	f.mint(t, f.buyer, 2_000_000_000)
	p := authorization.New(f.ledger, authorization.WithPoller(fastPoller()))

	a := f.attempt(t, txbuilder.New(f.ledger), f.buyer, "")
	tx, err := p.Execute(ctx, a)
	require.NoError(t, err)

	assert.Equal(t, authorization.Confirmed, a.State())
	assert.True(t, a.State().Terminal())
	assert.Equal(t, a.Digest(), tx.Digest)
	assert.Equal(t, tx, a.Transaction())
	_, ok := tx.Purchase()
	assert.True(t, ok)

	// A terminal attempt keeps its outcome.
	same, err := p.Execute(ctx, a)
	assert.NoError(t, err)
	assert.Equal(t, tx, same)

	// Resubmitting the same bytes is recognized by digest.
	again, err := authorization.NewAttempt(a.Bytes())
	require.NoError(t, err)
	require.NoError(t, again.AddBuyerSignature(f.buyer.Sign(a.Bytes())))
	tx2, err := p.Execute(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, tx.Digest, tx2.Digest)
	assert.Equal(t, tx.Effects, tx2.Effects)

	receipts, err := f.ledger.OwnedObjects(ctx, f.buyer.Address(), model.TypeAccessReceipt)
	require.NoError(t, err)
	assert.Len(t, receipts, 1)

	confirmed, err := p.Confirm(ctx, tx.Digest)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, confirmed.Effects.Status)
}

func TestProtocol_Execute_Failure(t *testing.T) {
	f := setup(t)
	f.mint(t, f.buyer, 2_000_000_000)
	p := authorization.New(f.ledger, authorization.WithPoller(fastPoller()))

	a := f.attempt(t, txbuilder.New(f.ledger), f.buyer, "500000000")
	tx, err := p.Execute(ctx, a)
	require.NoError(t, err)

	assert.Equal(t, authorization.Failed, a.State())
	assert.Equal(t, model.StatusFailure, tx.Effects.Status)
	assert.Equal(t, pgerror.TagInsufficientPayment, tx.Effects.ErrorTag)
}

func TestProtocol_Execute_Stale(t *testing.T) {
	f := setup(t)
	other := keypair(t, 4)
	f.mint(t, f.buyer, 2_000_000_000)
	f.mint(t, other, 2_000_000_000)
	p := authorization.New(f.ledger, authorization.WithPoller(fastPoller()))
	b := txbuilder.New(f.ledger)

	first := f.attempt(t, b, f.buyer, "")
	second := f.attempt(t, b, other, "")

	_, err := p.Execute(ctx, first)
	require.NoError(t, err)

	_, err = p.Execute(ctx, second)
	assert.True(t, pgerror.Is(err, pgerror.TagStaleObjectVersion))
	assert.Equal(t, authorization.Failed, second.State())
	assert.Equal(t, err, second.Err())

	// Rebuilding picks the new versions.
	retry := f.attempt(t, b, other, "")
	tx, err := p.Execute(ctx, retry)
	require.NoError(t, err)
	assert.True(t, tx.Effects.Succeeded())
}

func TestProtocol_Sponsored(t *testing.T) {
	f := setup(t)
	f.mint(t, f.buyer, 1_000_000_000)
	f.mint(t, f.sponsor, ledger.DefaultGasBudget)
	sponsor := authorization.NewKeySponsor(f.sponsor, ledger.DefaultGasBudget)
	b := txbuilder.New(f.ledger, txbuilder.WithSponsor(sponsor.Address()))

	_, err := authorization.New(f.ledger).SponsorAndExecute(ctx, f.attempt(t, b, f.buyer, ""))
	assert.True(t, pgerror.Is(err, pgerror.TagSponsorNotConfigured))

	_, err = authorization.New(f.ledger).Execute(ctx, f.attempt(t, b, f.buyer, ""))
	assert.True(t, pgerror.Is(err, pgerror.TagSponsorNotConfigured))

	p := authorization.New(f.ledger, authorization.WithSponsor(sponsor), authorization.WithPoller(fastPoller()))
	a := f.attempt(t, b, f.buyer, "")
	tx, err := p.SponsorAndExecute(ctx, a)
	require.NoError(t, err)

	assert.Equal(t, authorization.Confirmed, a.State())
	assert.Len(t, a.Signatures(), 2)
	assert.Equal(t, f.sponsor.Address(), tx.GasOwner)
	event, ok := tx.Purchase()
	require.True(t, ok)
	assert.Equal(t, f.buyer.Address(), event.Purchaser)

	// Unsponsored envelopes are not paid by the sponsor.
	f.mint(t, f.buyer, 2_000_000_000)
	_, err = p.SponsorAndExecute(ctx, f.attempt(t, txbuilder.New(f.ledger), f.buyer, ""))
	assert.True(t, pgerror.Is(err, pgerror.TagEnvelopeMismatch))
}

func TestKeySponsor_Policy(t *testing.T) {
	f := setup(t)
	f.mint(t, f.buyer, 2_000_000_000)
	f.mint(t, f.sponsor, ledger.DefaultGasBudget)
	sponsor := authorization.NewKeySponsor(f.sponsor, ledger.DefaultGasBudget)

	// Unsponsored envelope.
	u, err := txbuilder.New(f.ledger).BuildPurchase(ctx, txbuilder.PurchaseParams{
		ContentID: f.contentID,
		Price:     "1000000000",
		Buyer:     f.buyer.Address(),
	})
	require.NoError(t, err)
	_, err = sponsor.Cosign(ctx, u.Bytes)
	assert.True(t, pgerror.Is(err, pgerror.TagSignatureRejected), "not the gas owner")

	// Over budget.
	u, err = txbuilder.New(f.ledger, txbuilder.WithSponsor(sponsor.Address()), txbuilder.WithGasBudget(ledger.DefaultGasBudget/2)).
		BuildPurchase(ctx, txbuilder.PurchaseParams{
			ContentID: f.contentID,
			Price:     "1000000000",
			Buyer:     f.buyer.Address(),
		})
	require.NoError(t, err)
	_, err = authorization.NewKeySponsor(f.sponsor, ledger.DefaultGasBudget/4).Cosign(ctx, u.Bytes)
	assert.True(t, pgerror.Is(err, pgerror.TagSignatureRejected), "over budget")

	sig, err := sponsor.Cosign(ctx, u.Bytes)
	require.NoError(t, err)
	signer, err := paytx.Verify(u.Bytes, sig)
	assert.NoError(t, err)
	assert.Equal(t, f.sponsor.Address(), signer)

	// Spending the gas coin.
	e := *u.Envelope
	e.Commands = append([]paytx.Command{}, e.Commands...)
	e.Commands[0] = paytx.SplitCoins(paytx.GasCoin(), paytx.Input(0))
	b, err := paytx.Encode(&e)
	require.NoError(t, err)
	_, err = sponsor.Cosign(ctx, b)
	assert.True(t, pgerror.Is(err, pgerror.TagSignatureRejected), "uses gas coin")
}

type pendingLedger struct {
	polls int32
}

func (l *pendingLedger) Submit(_ context.Context, txBytes []byte, _ []paytx.Signature) (string, error) {
	return paytx.Digest(txBytes)
}

func (l *pendingLedger) Transaction(_ context.Context, digest string) (*model.Transaction, error) {
	atomic.AddInt32(&l.polls, 1)
	return nil, pgerror.TransactionNotFound(digest)
}

func TestPoller_Timeout(t *testing.T) {
	f := setup(t)
	f.mint(t, f.buyer, 2_000_000_000)
	l := &pendingLedger{}
	p := authorization.New(l, authorization.WithPoller(fastPoller()))

	a := f.attempt(t, txbuilder.New(f.ledger), f.buyer, "")
	_, err := p.Execute(ctx, a)
	assert.True(t, pgerror.Is(err, pgerror.TagConfirmationTimeout))
	assert.Equal(t, authorization.Submitted, a.State(), "outcome unknown")
	assert.Greater(t, atomic.LoadInt32(&l.polls), int32(1))
}

func TestPoller_Cancel(t *testing.T) {
	l := &pendingLedger{}
	poller := authorization.Poller{Interval: 10 * time.Millisecond, Timeout: time.Minute}

	cctx, cancel := context.WithCancel(ctx)
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := poller.Wait(cctx, l, "digest")
	assert.Equal(t, context.Canceled, err)
	assert.Less(t, time.Since(start), 10*time.Second)
}
