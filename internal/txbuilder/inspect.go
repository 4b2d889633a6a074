package txbuilder

import (
	"github.com/mdouchement/paygate/internal/pgerror"
	"github.com/mdouchement/paygate/pkg/paytx"
)

// A Purchase is what a purchase envelope does, as read from its commands.
type Purchase struct {
	Content paytx.ObjectRef
	Clock   paytx.ObjectRef
	Amount  uint64
	Buyer   string
	// Sponsor is empty when the buyer pays the fees.
	Sponsor string
}

// ParsePurchase reads a purchase from an envelope built by BuildPurchase.
// The envelope must be valid, as returned by paytx.Decode. Any other shape is an EnvelopeMismatch.
func ParsePurchase(e *paytx.Envelope) (*Purchase, error) {
	mismatch := func(reason string) (*Purchase, error) {
		return nil, pgerror.EnvelopeMismatch("Not a purchase envelope: " + reason + ".")
	}

	if len(e.Commands) != 2 {
		return mismatch("expecting 2 commands")
	}
	split, call := e.Commands[0], e.Commands[1]

	if split.Kind != paytx.CommandSplitCoins || len(split.Amounts) != 1 || split.Amounts[0].Kind != paytx.ArgInput {
		return mismatch("first command must split one amount")
	}
	if call.Kind != paytx.CommandMoveCall || call.Function != paytx.FunctionPurchase || len(call.Arguments) != 3 {
		return mismatch("second command must call " + paytx.FunctionPurchase)
	}
	if call.Arguments[1] != paytx.NestedResult(0, 0) {
		return mismatch("payment must be the split coin")
	}

	amount, err := e.Inputs[split.Amounts[0].Index].AsU64()
	if err != nil {
		return mismatch("invalid amount")
	}

	content, ok := sharedInput(e, call.Arguments[0], true)
	if !ok {
		return mismatch("content must be a mutable shared input")
	}
	clock, ok := sharedInput(e, call.Arguments[2], false)
	if !ok || clock.ID != paytx.ClockID {
		return mismatch("clock must be an immutable shared input")
	}

	p := &Purchase{
		Content: content,
		Clock:   clock,
		Amount:  amount,
		Buyer:   e.Sender,
	}

	if e.Sponsored() {
		if split.Coin.Kind != paytx.ArgInput || e.Inputs[split.Coin.Index].Kind != paytx.InputOwned {
			return mismatch("sponsored payment must come from a coin of the buyer")
		}
		p.Sponsor = e.Gas.Owner
	}
	return p, nil
}

func sharedInput(e *paytx.Envelope, arg paytx.Argument, mutable bool) (paytx.ObjectRef, bool) {
	if arg.Kind != paytx.ArgInput {
		return paytx.ObjectRef{}, false
	}

	in := e.Inputs[arg.Index]
	if in.Kind != paytx.InputShared || in.Mutable != mutable {
		return paytx.ObjectRef{}, false
	}
	return in.Object, true
}
