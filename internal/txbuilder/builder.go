package txbuilder

import (
	"context"
	"strconv"
	"strings"

	"github.com/mdouchement/paygate/internal/ledger"
	"github.com/mdouchement/paygate/internal/model"
	"github.com/mdouchement/paygate/internal/pgerror"
	"github.com/mdouchement/paygate/pkg/paytx"
	"github.com/pkg/errors"
)

type (
	// A Resolver resolves the ledger objects an envelope references.
	Resolver interface {
		// Object returns the current state of the object for the given id.
		Object(ctx context.Context, id string) (*model.Object, error)
		// Coins returns the coins owned by owner, largest first.
		Coins(ctx context.Context, owner string) ([]ledger.Coin, error)
		// GasPrice returns the reference gas price.
		GasPrice() uint64
	}

	// A Builder builds unsigned envelopes.
	Builder struct {
		resolver Resolver
		sponsor  string
		budget   uint64
	}

	// An Option configures a Builder.
	Option func(*Builder)

	// PurchaseParams are the parameters of a purchase.
	// Price and Amount are decimal unsigned integers.
	PurchaseParams struct {
		ContentID string
		Price     string
		Buyer     string
		// Clock defaults to the ledger clock.
		Clock paytx.ObjectRef
		// Amount paid, defaults to Price.
		Amount string
	}

	// CreateContentParams are the parameters of a content publication.
	CreateContentParams struct {
		Registry    paytx.ObjectRef
		Creator     string
		Title       string
		Description string
		Price       string
		ContentURL  string
	}

	// An Unsigned is a built envelope ready to be signed.
	Unsigned struct {
		Envelope *paytx.Envelope
		Bytes    []byte
		Digest   string
	}
)

// WithSponsor makes the given address pay the fees of the built purchases.
func WithSponsor(address string) Option {
	return func(b *Builder) {
		b.sponsor = address
	}
}

// WithGasBudget sets the gas budget of the built envelopes.
func WithGasBudget(budget uint64) Option {
	return func(b *Builder) {
		b.budget = budget
	}
}

// New returns a new Builder.
func New(r Resolver, opts ...Option) *Builder {
	b := &Builder{
		resolver: r,
		budget:   ledger.DefaultGasBudget,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Sponsor returns the address paying the fees, if any.
func (b *Builder) Sponsor() string {
	return b.sponsor
}

// BuildPurchase builds the envelope splitting the exact payment from the buyer's balance
// and invoking the purchase of the content with it.
// The envelope references the current version of the content so it must be built for each attempt.
func (b *Builder) BuildPurchase(ctx context.Context, p PurchaseParams) (*Unsigned, error) {
	price, err := parseU64("price", p.Price)
	if err != nil {
		return nil, err
	}
	amount := price
	if p.Amount != "" {
		if amount, err = parseU64("amount", p.Amount); err != nil {
			return nil, err
		}
	}
	if !paytx.IsAddress(p.Buyer) {
		return nil, pgerror.EncodingError("Invalid buyer address.")
	}

	content, err := b.content(ctx, p.ContentID)
	if err != nil {
		return nil, err
	}

	clock := p.Clock
	if clock.ID == "" {
		o, err := b.resolver.Object(ctx, paytx.ClockID)
		if err != nil {
			return nil, errors.Wrap(err, "could not resolve clock")
		}
		clock = o.SharedRef()
	}

	pamount, err := paytx.PureU64(amount)
	if err != nil {
		return nil, pgerror.EncodingError("Could not encode amount.").WithCause(err)
	}

	e := &paytx.Envelope{
		Version: paytx.EnvelopeVersion,
		Inputs: []paytx.CallArg{
			pamount,
			paytx.SharedObject(content.Ref(), true),
			paytx.SharedObject(clock, false),
		},
		Sender: p.Buyer,
		Gas: paytx.GasData{
			Price:  b.resolver.GasPrice(),
			Budget: b.budget,
		},
	}

	if b.sponsor == "" {
		gas, err := b.coin(ctx, p.Buyer, amount, b.budget)
		if err != nil {
			return nil, err
		}

		e.Gas.Payment = []paytx.ObjectRef{gas}
		e.Commands = []paytx.Command{
			paytx.SplitCoins(paytx.GasCoin(), paytx.Input(0)),
			paytx.MoveCall(paytx.FunctionPurchase, paytx.Input(1), paytx.NestedResult(0, 0), paytx.Input(2)),
		}
		return seal(e)
	}

	// The sponsor only pays the fees, the price comes from the buyer's own coin.
	payment, err := b.coin(ctx, p.Buyer, amount, 0)
	if err != nil {
		return nil, err
	}
	gas, err := b.coin(ctx, b.sponsor, 0, b.budget)
	if err != nil {
		return nil, err
	}

	e.Inputs = append(e.Inputs, paytx.OwnedObject(payment))
	e.Gas.Owner = b.sponsor
	e.Gas.Payment = []paytx.ObjectRef{gas}
	e.Commands = []paytx.Command{
		paytx.SplitCoins(paytx.Input(3), paytx.Input(0)),
		paytx.MoveCall(paytx.FunctionPurchase, paytx.Input(1), paytx.NestedResult(0, 0), paytx.Input(2)),
	}
	return seal(e)
}

// BuildCreateContent builds the envelope publishing a new content.
func (b *Builder) BuildCreateContent(ctx context.Context, p CreateContentParams) (*Unsigned, error) {
	price, err := parseU64("price", p.Price)
	if err != nil {
		return nil, err
	}
	if !paytx.IsAddress(p.Creator) {
		return nil, pgerror.EncodingError("Invalid creator address.")
	}
	if !paytx.IsObjectID(p.Registry.ID) {
		return nil, pgerror.InvalidObjectReference(p.Registry.ID, "invalid registry")
	}

	inputs := make([]paytx.CallArg, 0, 5)
	inputs = append(inputs, paytx.SharedObject(p.Registry, false))
	for _, s := range []string{p.Title, p.Description} {
		in, err := paytx.PureString(s)
		if err != nil {
			return nil, pgerror.EncodingError("Could not encode content.").WithCause(err)
		}
		inputs = append(inputs, in)
	}
	in, err := paytx.PureU64(price)
	if err != nil {
		return nil, pgerror.EncodingError("Could not encode price.").WithCause(err)
	}
	inputs = append(inputs, in)
	if in, err = paytx.PureString(p.ContentURL); err != nil {
		return nil, pgerror.EncodingError("Could not encode content URL.").WithCause(err)
	}
	inputs = append(inputs, in)

	gas, err := b.coin(ctx, p.Creator, 0, b.budget)
	if err != nil {
		return nil, err
	}

	return seal(&paytx.Envelope{
		Version: paytx.EnvelopeVersion,
		Inputs:  inputs,
		Commands: []paytx.Command{
			paytx.MoveCall(paytx.FunctionCreateContent, paytx.Input(0), paytx.Input(1), paytx.Input(2), paytx.Input(3), paytx.Input(4)),
		},
		Sender: p.Creator,
		Gas: paytx.GasData{
			Payment: []paytx.ObjectRef{gas},
			Price:   b.resolver.GasPrice(),
			Budget:  b.budget,
		},
	})
}

func (b *Builder) content(ctx context.Context, id string) (*model.Object, error) {
	if !paytx.IsObjectID(id) {
		return nil, pgerror.InvalidContentReference(id)
	}

	o, err := b.resolver.Object(ctx, id)
	if err != nil {
		if pgerror.Is(err, pgerror.TagObjectNotFound) {
			return nil, pgerror.InvalidContentReference(id).WithCause(err)
		}
		return nil, errors.Wrap(err, "could not resolve content")
	}
	if o.Type != model.TypeContentItem || !o.Shared {
		return nil, pgerror.InvalidContentReference(id)
	}
	return o, nil
}

// coin returns the largest coin of owner able to pay amount while keeping reserve.
func (b *Builder) coin(ctx context.Context, owner string, amount, reserve uint64) (paytx.ObjectRef, error) {
	coins, err := b.resolver.Coins(ctx, owner)
	if err != nil {
		return paytx.ObjectRef{}, errors.Wrap(err, "could not resolve coins")
	}

	if len(coins) == 0 || coins[0].Value < reserve || coins[0].Value-reserve < amount {
		return paytx.ObjectRef{}, pgerror.InsufficientBalance(owner, amount+reserve)
	}
	return coins[0].Ref, nil
}

func seal(e *paytx.Envelope) (*Unsigned, error) {
	b, err := paytx.Encode(e)
	if err != nil {
		return nil, pgerror.EncodingError("Could not encode envelope.").WithCause(err)
	}

	digest, err := paytx.Digest(b)
	if err != nil {
		return nil, pgerror.EncodingError("Could not digest envelope.").WithCause(err)
	}

	return &Unsigned{
		Envelope: e,
		Bytes:    b,
		Digest:   digest,
	}, nil
}

func parseU64(name, s string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, pgerror.EncodingError("Invalid " + name + ", expecting an unsigned integer.").WithCause(err)
	}
	return v, nil
}
