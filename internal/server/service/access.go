package service

import (
	"context"
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/mdouchement/paygate/internal/access"
	"github.com/mdouchement/paygate/internal/authorization"
	"github.com/mdouchement/paygate/internal/ledger"
	"github.com/mdouchement/paygate/internal/model"
	"github.com/mdouchement/paygate/internal/pgerror"
	"github.com/mdouchement/paygate/internal/server/serializer"
	"github.com/mdouchement/paygate/internal/txbuilder"
	"github.com/mdouchement/paygate/pkg/paytx"
	"github.com/sirupsen/logrus"
)

type (
	// An AccessService gates contents behind their purchase.
	AccessService struct {
		ledger   *ledger.Ledger
		builder  *txbuilder.Builder
		protocol *authorization.Protocol
		resolver *access.Resolver
	}

	// ContentParams are used to request a content.
	// ContentID is case insensitive.
	ContentParams struct {
		Params
		ContentID string
	}

	// ExecuteParams are used to execute a signed purchase.
	ExecuteParams struct {
		Params
		ContentID        string `json:"-"`
		TransactionBytes string `json:"transactionBytes"`
		Signature        string `json:"signature"`
		PublicKey        string `json:"publicKey"`
	}

	// TransactionParams are used to query a transaction.
	TransactionParams struct {
		Digest string
		// Wait polls the ledger until the transaction is recorded.
		Wait bool
	}

	// A Gate is the outcome of a content request.
	Gate struct {
		Granted bool
		Render  Render
		Content *model.ContentItem
		// Unsigned is the purchase envelope offered to the requester, nil if it could not be built.
		Unsigned *txbuilder.Unsigned
	}
)

// NewAccess returns a new AccessService.
func NewAccess(l *ledger.Ledger, b *txbuilder.Builder, p *authorization.Protocol, r *access.Resolver) *AccessService {
	return &AccessService{
		ledger:   l,
		builder:  b,
		protocol: p,
		resolver: r,
	}
}

// Contents lists the published contents without their locator.
func (s *AccessService) Contents(ctx context.Context) (Render, error) {
	contents, err := s.ledger.Contents(ctx)
	if err != nil {
		return nil, err
	}
	return serializer.Global(serializer.Contents(contents)), nil
}

// Content returns the content when the requester owns a receipt for it,
// otherwise the payment required to unlock it.
func (s *AccessService) Content(ctx context.Context, params ContentParams) (*Gate, error) {
	if err := params.Validate(false); err != nil {
		return nil, err
	}
	params.ContentID = normalizeID(params.ContentID)

	_, content, err := s.ledger.Content(ctx, params.ContentID)
	if err != nil {
		return nil, err
	}

	if params.Address != "" {
		granted, err := s.resolver.HasAccess(ctx, params.Address, content.ID)
		if err != nil {
			return nil, err
		}
		if granted {
			return &Gate{
				Granted: true,
				Render:  serializer.Content(content),
				Content: content,
			}, nil
		}
	}

	gate := &Gate{Content: content}
	if params.Address == "" {
		gate.Render = serializer.PaymentRequired(content, nil, s.builder.Sponsor(), "Payment required, provide your address to get a purchase transaction.")
		return gate, nil
	}

	gate.Unsigned, err = s.builder.BuildPurchase(ctx, txbuilder.PurchaseParams{
		ContentID: content.ID,
		Price:     strconv.FormatUint(content.Price, 10),
		Buyer:     params.Address,
	})
	if err != nil {
		if !pgerror.Is(err, pgerror.TagInsufficientBalance) {
			return nil, err
		}

		gate.Render = serializer.PaymentRequired(content, nil, s.builder.Sponsor(), err.Error())
		return gate, nil
	}

	gate.Render = serializer.PaymentRequired(content, gate.Unsigned, s.builder.Sponsor(), "Payment required, sign the transaction and execute it.")
	return gate, nil
}

// Execute submits a purchase signed by the buyer and waits for its outcome.
// An aborted purchase is rendered with a failure status, the buyer's payment is untouched.
func (s *AccessService) Execute(ctx context.Context, params ExecuteParams) (Render, error) {
	b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(params.TransactionBytes))
	if err != nil || len(b) == 0 {
		return nil, pgerror.EncodingError("Invalid transaction bytes.")
	}

	attempt, err := authorization.NewAttempt(b)
	if err != nil {
		return nil, err
	}

	purchase, err := txbuilder.ParsePurchase(attempt.Envelope())
	if err != nil {
		return nil, err
	}
	params.ContentID = normalizeID(params.ContentID)
	if purchase.Content.ID != params.ContentID {
		return nil, pgerror.EnvelopeMismatch("Transaction does not purchase the requested content.")
	}

	// A resubmitted purchase references a content version it has itself consumed.
	_, err = s.ledger.Transaction(ctx, attempt.Digest())
	switch {
	case pgerror.Is(err, pgerror.TagTransactionNotFound):
		o, _, err := s.ledger.Content(ctx, params.ContentID)
		if err != nil {
			return nil, err
		}
		if purchase.Content.Version != o.Version {
			return nil, pgerror.StaleObjectVersion(o.ID, purchase.Content.Version, o.Version)
		}
	case err != nil:
		return nil, err
	}

	sig, err := paytx.ParseSignatureWithKey(params.Signature, params.PublicKey)
	if err != nil {
		return nil, pgerror.SignatureRejected("Malformed signature.").WithCause(err)
	}
	if err = attempt.AddBuyerSignature(sig); err != nil {
		return nil, err
	}

	var tx *model.Transaction
	if purchase.Sponsor != "" {
		tx, err = s.protocol.SponsorAndExecute(ctx, attempt)
	} else {
		tx, err = s.protocol.Execute(ctx, attempt)
	}
	if err != nil {
		return nil, err
	}

	fields := logrus.Fields{
		"digest":  tx.Digest,
		"content": purchase.Content.ID,
		"buyer":   purchase.Buyer,
		"status":  tx.Effects.Status,
	}
	if event, ok := tx.Purchase(); ok {
		fields["receipt"] = event.ReceiptID
	}
	logrus.WithFields(fields).Info("purchase executed")

	return serializer.Execution(tx), nil
}

// Receipts lists the access receipts owned by the requester.
func (s *AccessService) Receipts(ctx context.Context, params Params) (Render, error) {
	if err := params.Validate(true); err != nil {
		return nil, err
	}

	receipts, err := s.resolver.ListReceipts(ctx, params.Address)
	if err != nil {
		return nil, err
	}
	return serializer.Receipts(receipts), nil
}

// Transactions lists the transactions sent by the requester, latest first.
func (s *AccessService) Transactions(ctx context.Context, params Params) (Render, error) {
	if err := params.Validate(true); err != nil {
		return nil, err
	}

	transactions, err := s.ledger.Transactions(ctx, params.Address)
	if err != nil {
		return nil, err
	}
	return serializer.Transactions(transactions), nil
}

// Transaction returns the recorded transaction for a digest.
// Querying the same digest always returns the same record.
func (s *AccessService) Transaction(ctx context.Context, params TransactionParams) (Render, error) {
	if _, err := paytx.ParseDigest(params.Digest); err != nil {
		return nil, pgerror.InvalidParameters("Invalid transaction digest.")
	}

	var tx *model.Transaction
	var err error
	if params.Wait {
		tx, err = s.protocol.Confirm(ctx, params.Digest)
	} else {
		tx, err = s.ledger.Transaction(ctx, params.Digest)
	}
	if err != nil {
		return nil, err
	}
	return serializer.Transaction(tx), nil
}
