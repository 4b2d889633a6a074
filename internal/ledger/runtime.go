package ledger

import (
	"math/bits"

	"github.com/mdouchement/paygate/internal/contract"
	"github.com/mdouchement/paygate/internal/database"
	"github.com/mdouchement/paygate/internal/model"
	"github.com/mdouchement/paygate/internal/pgerror"
	"github.com/mdouchement/paygate/pkg/paytx"
	"github.com/pkg/errors"
)

// A runtime executes the commands of an envelope over working copies of its input objects.
// It implements contract.Context.
type runtime struct {
	envelope *paytx.Envelope
	digest   string
	now      uint64
	gasID    string
	budget   uint64

	objects       map[string]*model.Object
	mutableShared map[string]bool
	moved         map[string]bool
	created       []string
	results       [][]*model.Object
	events        []model.Event
	counter       uint64
}

var _ contract.Context = (*runtime)(nil)

func newRuntime(e *paytx.Envelope, digest string, in *inputSet, now uint64) *runtime {
	rt := &runtime{
		envelope:      e,
		digest:        digest,
		now:           now,
		objects:       map[string]*model.Object{},
		mutableShared: map[string]bool{},
		moved:         map[string]bool{},
	}

	if in != nil {
		for id, o := range in.objects {
			rt.objects[id] = clone(o)
		}
		rt.gasID = in.gas.ID
		rt.budget = e.Gas.Budget
		rt.mutableShared = in.mutableShared
	}
	return rt
}

func (rt *runtime) run() error {
	rt.results = make([][]*model.Object, 0, len(rt.envelope.Commands))

	for i, cmd := range rt.envelope.Commands {
		var results []*model.Object
		var err error

		switch cmd.Kind {
		case paytx.CommandSplitCoins:
			results, err = rt.splitCoins(cmd)
		case paytx.CommandMoveCall:
			results, err = rt.moveCall(cmd)
		case paytx.CommandTransferObjects:
			err = rt.transferObjects(cmd)
		default:
			err = errors.Errorf("unknown command kind %d", cmd.Kind)
		}
		if err != nil {
			return errors.Wrapf(err, "command %d", i)
		}

		rt.results = append(rt.results, results)
	}

	return nil
}

//
// Commands
//

func (rt *runtime) splitCoins(cmd paytx.Command) ([]*model.Object, error) {
	o, coin, err := rt.coin(cmd.Coin)
	if err != nil {
		return nil, err
	}

	available := coin.Value
	if o.ID == rt.gasID {
		// The budget stays on the gas coin until fees are charged.
		if available < rt.budget {
			return nil, pgerror.InsufficientGas("Gas coin cannot cover the budget.")
		}
		available -= rt.budget
	}

	amounts := make([]uint64, 0, len(cmd.Amounts))
	var total, carry uint64
	for _, arg := range cmd.Amounts {
		amount, err := rt.u64(arg)
		if err != nil {
			return nil, err
		}
		total, carry = bits.Add64(total, amount, 0)
		if carry != 0 {
			return nil, errors.New("split amounts overflow")
		}
		amounts = append(amounts, amount)
	}

	if total > available {
		return nil, pgerror.InsufficientBalance(o.Owner, total)
	}

	coin.Value -= total
	if err = o.Encode(coin); err != nil {
		return nil, err
	}

	results := make([]*model.Object, 0, len(amounts))
	for _, amount := range amounts {
		split, err := model.NewOwnedObject(rt.Sender(), &model.Coin{ID: rt.NewID(), Value: amount})
		if err != nil {
			return nil, err
		}
		rt.add(split)
		results = append(results, split)
	}
	return results, nil
}

func (rt *runtime) moveCall(cmd paytx.Command) ([]*model.Object, error) {
	switch cmd.Function {
	case paytx.FunctionCreateContent:
		return rt.createContent(cmd.Arguments)
	case paytx.FunctionPurchase:
		return nil, rt.purchase(cmd.Arguments)
	default:
		return nil, errors.Errorf("unknown function %s", cmd.Function)
	}
}

func (rt *runtime) createContent(args []paytx.Argument) ([]*model.Object, error) {
	if len(args) != 5 {
		return nil, errors.Errorf("%s expects 5 arguments, got %d", paytx.FunctionCreateContent, len(args))
	}

	o, err := rt.object(args[0])
	if err != nil {
		return nil, err
	}
	var registry model.ContentRegistry
	if err = o.Decode(&registry); err != nil {
		return nil, err
	}

	title, err := rt.str(args[1])
	if err != nil {
		return nil, err
	}
	description, err := rt.str(args[2])
	if err != nil {
		return nil, err
	}
	price, err := rt.u64(args[3])
	if err != nil {
		return nil, err
	}
	url, err := rt.str(args[4])
	if err != nil {
		return nil, err
	}

	_, err = contract.CreateContent(rt, &registry, title, description, price, url)
	return nil, err
}

func (rt *runtime) purchase(args []paytx.Argument) error {
	if len(args) != 3 {
		return errors.Errorf("%s expects 3 arguments, got %d", paytx.FunctionPurchase, len(args))
	}

	o, err := rt.object(args[0])
	if err != nil {
		return err
	}
	if !rt.mutableShared[o.ID] {
		return pgerror.InvalidObjectReference(o.ID, "content must be a mutable shared input")
	}
	var content model.ContentItem
	if err = o.Decode(&content); err != nil {
		return err
	}

	p, payment, err := rt.coin(args[1])
	if err != nil {
		return err
	}
	if p.ID == rt.gasID {
		return pgerror.InvalidObjectReference(p.ID, "gas coin cannot be used by value")
	}

	o, err = rt.object(args[2])
	if err != nil {
		return err
	}
	if o.ID != paytx.ClockID {
		return pgerror.InvalidObjectReference(o.ID, "not the ledger clock")
	}
	var clock model.Clock
	if err = o.Decode(&clock); err != nil {
		return err
	}
	clock.TimestampMs = rt.now

	return contract.PurchaseAndGrantAccess(rt, &content, payment, &clock)
}

func (rt *runtime) transferObjects(cmd paytx.Command) error {
	recipient, err := rt.str(cmd.Address)
	if err != nil {
		return err
	}
	if !paytx.IsAddress(recipient) {
		return errors.Errorf("invalid recipient address %q", recipient)
	}

	for _, arg := range cmd.Objects {
		o, err := rt.object(arg)
		if err != nil {
			return err
		}
		if o.ID == rt.gasID {
			return pgerror.InvalidObjectReference(o.ID, "gas coin cannot be transferred")
		}
		if o.Shared {
			return pgerror.InvalidObjectReference(o.ID, "shared object cannot be transferred")
		}
		if o.Type == model.TypeAccessReceipt {
			return pgerror.InvalidObjectReference(o.ID, "access receipt is bound to its purchaser")
		}

		o.Owner = recipient
		rt.moved[o.ID] = true
	}
	return nil
}

//
// Arguments
//

func (rt *runtime) object(arg paytx.Argument) (*model.Object, error) {
	var o *model.Object

	switch arg.Kind {
	case paytx.ArgGasCoin:
		o = rt.objects[rt.gasID]
	case paytx.ArgInput:
		in := rt.envelope.Inputs[arg.Index]
		if !in.IsObject() {
			return nil, errors.Errorf("input %d is not an object", arg.Index)
		}
		o = rt.objects[in.Object.ID]
	case paytx.ArgResult:
		results := rt.results[arg.Index]
		if len(results) != 1 {
			return nil, errors.Errorf("command %d has %d results", arg.Index, len(results))
		}
		o = results[0]
	case paytx.ArgNestedResult:
		results := rt.results[arg.Index]
		if int(arg.Nested) >= len(results) {
			return nil, errors.Errorf("command %d has no result %d", arg.Index, arg.Nested)
		}
		o = results[arg.Nested]
	}

	if o == nil {
		return nil, errors.New("argument does not reference an object")
	}
	if rt.moved[o.ID] {
		return nil, errors.Errorf("object %s has already been moved", o.ID)
	}
	return o, nil
}

func (rt *runtime) coin(arg paytx.Argument) (*model.Object, *model.Coin, error) {
	o, err := rt.object(arg)
	if err != nil {
		return nil, nil, err
	}

	var coin model.Coin
	if err = o.Decode(&coin); err != nil {
		return nil, nil, err
	}
	return o, &coin, nil
}

func (rt *runtime) pure(arg paytx.Argument) (paytx.CallArg, error) {
	if arg.Kind != paytx.ArgInput || rt.envelope.Inputs[arg.Index].Kind != paytx.InputPure {
		return paytx.CallArg{}, errors.New("argument is not a pure input")
	}
	return rt.envelope.Inputs[arg.Index], nil
}

func (rt *runtime) u64(arg paytx.Argument) (uint64, error) {
	in, err := rt.pure(arg)
	if err != nil {
		return 0, err
	}
	return in.AsU64()
}

func (rt *runtime) str(arg paytx.Argument) (string, error) {
	in, err := rt.pure(arg)
	if err != nil {
		return "", err
	}
	return in.AsString()
}

//
// contract.Context
//

func (rt *runtime) Sender() string {
	return rt.envelope.Sender
}

func (rt *runtime) NewID() string {
	id := paytx.DeriveObjectID(rt.digest, rt.counter)
	rt.counter++
	return id
}

func (rt *runtime) Transfer(p model.Payload, recipient string) error {
	if o, ok := rt.objects[p.ObjectID()]; ok {
		if o.Shared {
			return errors.Errorf("shared object %s cannot be transferred", o.ID)
		}
		if err := o.Encode(p); err != nil {
			return err
		}
		o.Owner = recipient
		rt.moved[o.ID] = true
		return nil
	}

	o, err := model.NewOwnedObject(recipient, p)
	if err != nil {
		return err
	}
	rt.add(o)
	return nil
}

func (rt *runtime) Share(p model.Payload) error {
	if _, ok := rt.objects[p.ObjectID()]; ok {
		return errors.Errorf("object %s already exists", p.ObjectID())
	}

	o, err := model.NewSharedObject(p)
	if err != nil {
		return err
	}
	rt.add(o)
	return nil
}

func (rt *runtime) Emit(ev model.Event) {
	rt.events = append(rt.events, ev)
}

func (rt *runtime) add(o *model.Object) {
	rt.objects[o.ID] = o
	rt.created = append(rt.created, o.ID)
}

//
// Persistence
//

// save persists the objects created by the runtime at the given version.
func (rt *runtime) save(s database.Store, version uint64) error {
	for _, id := range rt.created {
		if _, err := stamp(s, rt.objects[id], model.ChangeCreated, rt.digest, version); err != nil {
			return err
		}
	}
	return nil
}

// commit persists a successful execution: fees, mutated inputs and created objects.
func (rt *runtime) commit(s database.Store, in *inputSet, version, fee uint64) ([]model.ObjectChange, error) {
	if err := debit(rt.objects[rt.gasID], fee); err != nil {
		return nil, err
	}

	changes := make([]model.ObjectChange, 0, len(in.mutable)+len(rt.created))
	for _, id := range in.mutable {
		change, err := stamp(s, rt.objects[id], model.ChangeMutated, rt.digest, version)
		if err != nil {
			return nil, err
		}
		changes = append(changes, change)
	}
	for _, id := range rt.created {
		change, err := stamp(s, rt.objects[id], model.ChangeCreated, rt.digest, version)
		if err != nil {
			return nil, err
		}
		changes = append(changes, change)
	}
	return changes, nil
}

func stamp(s database.Store, o *model.Object, kind, digest string, version uint64) (model.ObjectChange, error) {
	o.Version = version
	o.PreviousTransaction = digest
	if kind == model.ChangeCreated && o.Shared {
		o.InitialSharedVersion = version
	}

	if err := s.SaveObject(o); err != nil {
		return model.ObjectChange{}, err
	}

	return model.ObjectChange{
		Kind:    kind,
		ID:      o.ID,
		Type:    o.Type,
		Owner:   o.Owner,
		Version: o.Version,
	}, nil
}

func debit(o *model.Object, fee uint64) error {
	var coin model.Coin
	if err := o.Decode(&coin); err != nil {
		return err
	}
	if coin.Value < fee {
		return pgerror.InsufficientGas("Gas coin cannot cover the fees.")
	}

	coin.Value -= fee
	return o.Encode(&coin)
}

func clone(o *model.Object) *model.Object {
	c := *o
	c.Contents = append([]byte(nil), o.Contents...)
	return &c
}
