package paytx

import (
	"fmt"

	"github.com/pkg/errors"
)

// EnvelopeVersion is the only envelope layout understood by the ledger.
const EnvelopeVersion uint8 = 1

// Functions exposed by the content module of the ledger.
const (
	FunctionCreateContent = "content::create_content"
	FunctionPurchase      = "content::purchase_and_grant_access"
)

type (
	// ArgumentKind tells where a command argument comes from.
	ArgumentKind uint8

	// An Argument references a value available to a command: the gas coin,
	// an envelope input or the result of a previous command.
	Argument struct {
		Kind   ArgumentKind `codec:"kind"`
		Index  uint16       `codec:"index"`
		Nested uint16       `codec:"nested"`
	}

	// InputKind is the kind of an envelope input.
	InputKind uint8

	// An ObjectRef pins a ledger object at a given version.
	ObjectRef struct {
		ID      string `codec:"id"      json:"objectId"`
		Version uint64 `codec:"version" json:"version"`
	}

	// A CallArg is an envelope input: either a pure value or an object reference.
	CallArg struct {
		Kind    InputKind `codec:"kind"`
		Pure    []byte    `codec:"pure"`
		Object  ObjectRef `codec:"object"`
		Mutable bool      `codec:"mutable"`
	}

	// CommandKind is the kind of a command.
	CommandKind uint8

	// A Command is one step of an envelope. Only the fields of its kind are set.
	Command struct {
		Kind CommandKind `codec:"kind"`
		// SplitCoins
		Coin    Argument   `codec:"coin"`
		Amounts []Argument `codec:"amounts"`
		// MoveCall
		Function  string     `codec:"function"`
		Arguments []Argument `codec:"arguments"`
		// TransferObjects
		Objects []Argument `codec:"objects"`
		Address Argument   `codec:"address"`
	}

	// GasData designates who pays the fees and with which coins.
	GasData struct {
		Payment []ObjectRef `codec:"payment"`
		Owner   string      `codec:"owner"`
		Price   uint64      `codec:"price"`
		Budget  uint64      `codec:"budget"`
	}

	// An Envelope is an ordered list of commands executed atomically on behalf of Sender.
	Envelope struct {
		Version  uint8     `codec:"version"`
		Inputs   []CallArg `codec:"inputs"`
		Commands []Command `codec:"commands"`
		Sender   string    `codec:"sender"`
		Gas      GasData   `codec:"gas"`
	}
)

// Argument kinds. The zero value is not a valid argument.
const (
	ArgGasCoin ArgumentKind = iota + 1
	ArgInput
	ArgResult
	ArgNestedResult
)

// Input kinds.
const (
	InputPure InputKind = iota
	InputOwned
	InputShared
)

// Command kinds.
const (
	CommandSplitCoins CommandKind = iota
	CommandMoveCall
	CommandTransferObjects
)

// GasCoin references the coin used to pay the fees.
func GasCoin() Argument {
	return Argument{Kind: ArgGasCoin}
}

// Input references the i-th envelope input.
func Input(i int) Argument {
	return Argument{Kind: ArgInput, Index: uint16(i)}
}

// Result references the single result of the i-th command.
func Result(i int) Argument {
	return Argument{Kind: ArgResult, Index: uint16(i)}
}

// NestedResult references the j-th result of the i-th command.
func NestedResult(i, j int) Argument {
	return Argument{Kind: ArgNestedResult, Index: uint16(i), Nested: uint16(j)}
}

// SplitCoins returns a command splitting amounts off coin.
func SplitCoins(coin Argument, amounts ...Argument) Command {
	return Command{Kind: CommandSplitCoins, Coin: coin, Amounts: amounts}
}

// MoveCall returns a command invoking a ledger function.
func MoveCall(function string, args ...Argument) Command {
	return Command{Kind: CommandMoveCall, Function: function, Arguments: args}
}

// TransferObjects returns a command transferring objects to address.
func TransferObjects(address Argument, objects ...Argument) Command {
	return Command{Kind: CommandTransferObjects, Objects: objects, Address: address}
}

// OwnedObject returns an input referencing an object owned by a single address.
func OwnedObject(ref ObjectRef) CallArg {
	return CallArg{Kind: InputOwned, Object: ref}
}

// SharedObject returns an input referencing a shared object.
func SharedObject(ref ObjectRef, mutable bool) CallArg {
	return CallArg{Kind: InputShared, Object: ref, Mutable: mutable}
}

// IsObject returns true if the input references an object.
func (a CallArg) IsObject() bool {
	return a.Kind == InputOwned || a.Kind == InputShared
}

// Sponsored returns true when the fees are paid by another party than the sender.
func (e *Envelope) Sponsored() bool {
	return e.Gas.Owner != "" && e.Gas.Owner != e.Sender
}

// GasOwner returns the address paying the fees.
func (e *Envelope) GasOwner() string {
	if e.Gas.Owner == "" {
		return e.Sender
	}
	return e.Gas.Owner
}

// Signers returns the addresses that must sign the envelope.
func (e *Envelope) Signers() []string {
	if e.Sponsored() {
		return []string{e.Sender, e.Gas.Owner}
	}
	return []string{e.Sender}
}

// UsesGasCoin returns true if a command consumes the gas coin.
func (e *Envelope) UsesGasCoin() bool {
	uses := func(args ...Argument) bool {
		for _, a := range args {
			if a.Kind == ArgGasCoin {
				return true
			}
		}
		return false
	}

	for _, cmd := range e.Commands {
		if uses(cmd.Coin) || uses(cmd.Arguments...) || uses(cmd.Objects...) {
			return true
		}
	}
	return false
}

// Validate checks the structural consistency of the envelope.
func (e *Envelope) Validate() error {
	if e.Version != EnvelopeVersion {
		return errors.Errorf("unsupported envelope version %d", e.Version)
	}
	if !IsAddress(e.Sender) {
		return errors.Errorf("invalid sender address %q", e.Sender)
	}
	if e.Gas.Owner != "" && !IsAddress(e.Gas.Owner) {
		return errors.Errorf("invalid gas owner address %q", e.Gas.Owner)
	}
	if len(e.Gas.Payment) == 0 {
		return errors.New("no gas payment")
	}
	if len(e.Commands) == 0 {
		return errors.New("no command")
	}

	for i, in := range e.Inputs {
		switch in.Kind {
		case InputPure:
			if len(in.Pure) == 0 {
				return errors.Errorf("input %d: empty pure value", i)
			}
		case InputOwned, InputShared:
			if !IsObjectID(in.Object.ID) {
				return errors.Errorf("input %d: invalid object id %q", i, in.Object.ID)
			}
		default:
			return errors.Errorf("input %d: unknown kind %d", i, in.Kind)
		}
	}

	for i, cmd := range e.Commands {
		var args []Argument
		switch cmd.Kind {
		case CommandSplitCoins:
			if len(cmd.Amounts) == 0 {
				return errors.Errorf("command %d: no amount", i)
			}
			args = append([]Argument{cmd.Coin}, cmd.Amounts...)
		case CommandMoveCall:
			if cmd.Function == "" {
				return errors.Errorf("command %d: no function", i)
			}
			args = cmd.Arguments
		case CommandTransferObjects:
			if len(cmd.Objects) == 0 {
				return errors.Errorf("command %d: no object", i)
			}
			args = append([]Argument{cmd.Address}, cmd.Objects...)
		default:
			return errors.Errorf("command %d: unknown kind %d", i, cmd.Kind)
		}

		for _, arg := range args {
			if err := e.checkArgument(i, arg); err != nil {
				return errors.Wrapf(err, "command %d", i)
			}
		}
	}

	return nil
}

func (e *Envelope) checkArgument(cmd int, arg Argument) error {
	switch arg.Kind {
	case ArgGasCoin:
		return nil
	case ArgInput:
		if int(arg.Index) >= len(e.Inputs) {
			return fmt.Errorf("input %d out of range", arg.Index)
		}
	case ArgResult, ArgNestedResult:
		if int(arg.Index) >= cmd {
			return fmt.Errorf("result %d is not available yet", arg.Index)
		}
	default:
		return fmt.Errorf("unknown argument kind %d", arg.Kind)
	}
	return nil
}
