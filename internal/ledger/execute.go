package ledger

import (
	"context"
	"fmt"

	"github.com/mdouchement/paygate/internal/contract"
	"github.com/mdouchement/paygate/internal/database"
	"github.com/mdouchement/paygate/internal/model"
	"github.com/mdouchement/paygate/internal/pgerror"
	"github.com/mdouchement/paygate/pkg/paytx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// An inputSet holds the objects referenced by an envelope as they were before execution.
type inputSet struct {
	objects       map[string]*model.Object
	gas           *model.Object
	mutable       []string // gas coin first
	mutableShared map[string]bool
	lamport       uint64
}

// Submit executes the signed envelope bytes and returns the transaction digest.
func (l *Ledger) Submit(ctx context.Context, txBytes []byte, signatures []paytx.Signature) (string, error) {
	t, err := l.Execute(ctx, txBytes, signatures)
	if err != nil {
		return "", err
	}
	return t.Digest, nil
}

// Execute verifies and executes the signed envelope bytes.
//
// An envelope that cannot be executed (malformed, badly signed, stale or unfunded) is rejected
// with an error and leaves no record. Otherwise its commands are applied all together or not at all,
// the gas is charged and the outcome is recorded under its digest.
// Executing an already recorded digest returns the recorded transaction.
func (l *Ledger) Execute(ctx context.Context, txBytes []byte, signatures []paytx.Signature) (*model.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	digest, err := paytx.Digest(txBytes)
	if err != nil {
		return nil, pgerror.EncodingError("Could not digest transaction bytes.").WithCause(err)
	}

	if t, err := l.db.FindTransaction(digest); err == nil {
		return t, nil
	} else if !l.db.IsNotFound(err) {
		return nil, errors.Wrap(err, "could not lookup transaction")
	}

	envelope, err := paytx.Decode(txBytes)
	if err != nil {
		return nil, pgerror.EncodingError("Invalid transaction bytes.").WithCause(err)
	}

	if err = verifySignatures(envelope, txBytes, signatures); err != nil {
		return nil, err
	}

	if envelope.Gas.Price < l.gasPrice {
		return nil, pgerror.InsufficientGas(fmt.Sprintf("Gas price %d is lower than the reference gas price %d.", envelope.Gas.Price, l.gasPrice))
	}
	fee := Fee(envelope.Gas.Price, len(envelope.Commands))
	if fee > envelope.Gas.Budget {
		return nil, pgerror.InsufficientGas(fmt.Sprintf("Gas budget %d cannot cover the fees %d.", envelope.Gas.Budget, fee))
	}

	var t *model.Transaction
	err = l.db.Atomic(func(s database.Store) error {
		if recorded, err := s.FindTransaction(digest); err == nil {
			t = recorded
			return nil
		}

		in, err := load(s, envelope)
		if err != nil {
			return err
		}

		t, err = l.apply(s, envelope, digest, txBytes, signatures, in, fee)
		return err
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"digest": t.Digest,
		"sender": t.Sender,
		"status": t.Effects.Status,
	}).Info("transaction executed")
	return t, nil
}

func (l *Ledger) apply(s database.Store, e *paytx.Envelope, digest string, txBytes []byte, signatures []paytx.Signature, in *inputSet, fee uint64) (*model.Transaction, error) {
	checkpoint, err := s.NextCheckpoint()
	if err != nil {
		return nil, err
	}

	now := l.now()
	t := &model.Transaction{
		Digest:     digest,
		Bytes:      txBytes,
		Signatures: make([]string, 0, len(signatures)),
		Sender:     e.Sender,
		GasOwner:   e.GasOwner(),
		Checkpoint: checkpoint,
		CreatedAt:  now.UTC(),
	}
	for _, sig := range signatures {
		t.Signatures = append(t.Signatures, sig.String())
	}

	rt := newRuntime(e, digest, in, uint64(now.UnixMilli()))
	if cause := rt.run(); cause != nil {
		// Nothing done by the commands is kept, only the gas is charged.
		t.Effects = model.Effects{
			Status:   model.StatusFailure,
			Error:    cause.Error(),
			ErrorTag: tagOf(cause),
		}
		t.Effects.Changes, err = in.charge(s, digest, fee)
	} else {
		t.Effects = model.Effects{Status: model.StatusSuccess}
		t.Effects.Changes, err = rt.commit(s, in, in.lamport, fee)
		t.Events = rt.events
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not apply effects")
	}
	t.Effects.GasUsed = fee

	return t, s.SaveTransaction(t)
}

// charge debits the fees from the gas coin and bumps the version of the mutable inputs.
func (in *inputSet) charge(s database.Store, digest string, fee uint64) ([]model.ObjectChange, error) {
	gas := clone(in.gas)
	if err := debit(gas, fee); err != nil {
		return nil, err
	}

	changes := make([]model.ObjectChange, 0, len(in.mutable))
	for _, id := range in.mutable {
		o := gas
		if id != gas.ID {
			o = clone(in.objects[id])
		}

		change, err := stamp(s, o, model.ChangeMutated, digest, in.lamport)
		if err != nil {
			return nil, err
		}
		changes = append(changes, change)
	}
	return changes, nil
}

// load fetches and checks the objects referenced by the envelope.
func load(s database.Store, e *paytx.Envelope) (*inputSet, error) {
	in := &inputSet{
		objects:       map[string]*model.Object{},
		mutableShared: map[string]bool{},
	}

	find := func(id string) (*model.Object, error) {
		if _, ok := in.objects[id]; ok {
			return nil, pgerror.InvalidObjectReference(id, "referenced more than once")
		}

		o, err := s.FindObject(id)
		if err != nil {
			if s.IsNotFound(err) {
				return nil, pgerror.ObjectNotFound(id)
			}
			return nil, err
		}

		in.objects[id] = o
		if o.Version > in.lamport {
			in.lamport = o.Version
		}
		return o, nil
	}

	if len(e.Gas.Payment) != 1 {
		return nil, pgerror.InsufficientGas("Exactly one gas coin must be provided.")
	}
	ref := e.Gas.Payment[0]
	gas, err := find(ref.ID)
	if err != nil {
		return nil, err
	}
	var coin model.Coin
	switch {
	case gas.Type != model.TypeCoin || gas.Shared:
		return nil, pgerror.InvalidObjectReference(gas.ID, "gas payment must be an owned coin")
	case gas.Owner != e.GasOwner():
		return nil, pgerror.InvalidObjectReference(gas.ID, "gas coin is not owned by the gas owner")
	case gas.Version != ref.Version:
		return nil, pgerror.StaleObjectVersion(gas.ID, ref.Version, gas.Version)
	}
	if err = gas.Decode(&coin); err != nil {
		return nil, err
	}
	if coin.Value < e.Gas.Budget {
		return nil, pgerror.InsufficientGas(fmt.Sprintf("Gas coin balance %d cannot cover the budget %d.", coin.Value, e.Gas.Budget))
	}
	in.gas = gas
	in.mutable = append(in.mutable, gas.ID)

	for _, arg := range e.Inputs {
		if !arg.IsObject() {
			continue
		}

		ref := arg.Object
		o, err := find(ref.ID)
		if err != nil {
			return nil, err
		}

		switch arg.Kind {
		case paytx.InputOwned:
			switch {
			case o.Shared:
				return nil, pgerror.InvalidObjectReference(o.ID, "shared object used as owned input")
			case o.Owner != e.Sender:
				return nil, pgerror.InvalidObjectReference(o.ID, "object is not owned by the sender")
			case o.Version != ref.Version:
				return nil, pgerror.StaleObjectVersion(o.ID, ref.Version, o.Version)
			}
			in.mutable = append(in.mutable, o.ID)
		case paytx.InputShared:
			switch {
			case !o.Shared:
				return nil, pgerror.InvalidObjectReference(o.ID, "owned object used as shared input")
			case !arg.Mutable && ref.Version != o.InitialSharedVersion:
				return nil, pgerror.InvalidObjectReference(o.ID, "initial shared version mismatch")
			case arg.Mutable && o.ID == paytx.ClockID:
				return nil, pgerror.InvalidObjectReference(o.ID, "clock is read-only")
			case arg.Mutable && o.Version != ref.Version:
				return nil, pgerror.StaleObjectVersion(o.ID, ref.Version, o.Version)
			}
			if arg.Mutable {
				in.mutable = append(in.mutable, o.ID)
				in.mutableShared[o.ID] = true
			}
		}
	}

	in.lamport++
	return in, nil
}

func verifySignatures(e *paytx.Envelope, txBytes []byte, signatures []paytx.Signature) error {
	signed := map[string]bool{}
	for _, sig := range signatures {
		signer, err := paytx.Verify(txBytes, sig)
		if err != nil {
			return pgerror.SignatureRejected("Signature does not match the transaction bytes.").WithCause(err)
		}
		signed[signer] = true
	}

	signers := e.Signers()
	for _, signer := range signers {
		if !signed[signer] {
			return pgerror.SignatureRejected(fmt.Sprintf("Missing signature of %s.", signer))
		}
	}
	if len(signed) != len(signers) {
		return pgerror.SignatureRejected("Unexpected signer.")
	}
	return nil
}

func tagOf(err error) string {
	var abort *contract.Abort
	if errors.As(err, &abort) {
		return abort.Tag
	}

	var pgerr *pgerror.Error
	if errors.As(err, &pgerr) {
		return pgerr.Tag()
	}
	return pgerror.TagExecutionFailed
}
