package model

import (
	"github.com/mdouchement/paygate/pkg/paytx"
	"github.com/mdouchement/paygate/pkg/stormcbor"
	"github.com/pkg/errors"
)

// Object type tags.
const (
	TypeCoin            = "coin::Coin"
	TypeClock           = "clock::Clock"
	TypeContentRegistry = "content::ContentRegistry"
	TypeContentItem     = "content::ContentItem"
	TypeAccessReceipt   = "content::AccessReceipt"
)

type (
	// A Payload is the typed contents of a ledger object.
	Payload interface {
		// TypeTag returns the type of the object holding the payload.
		TypeTag() string
		// ObjectID returns the identity of the object.
		ObjectID() string
	}

	// An Object represents a ledger object stored in database.
	// Owned objects have an Owner, shared objects have an InitialSharedVersion.
	Object struct {
		ID                   string `json:"objectId"                       msgpack:"id"                     storm:"id"`
		Type                 string `json:"type"                           msgpack:"type"                   storm:"index"`
		Owner                string `json:"owner,omitempty"                msgpack:"owner"                  storm:"index"`
		Shared               bool   `json:"shared"                         msgpack:"shared"`
		InitialSharedVersion uint64 `json:"initialSharedVersion,omitempty" msgpack:"initial_shared_version"`
		Version              uint64 `json:"version"                        msgpack:"version"`
		PreviousTransaction  string `json:"previousTransaction"            msgpack:"previous_transaction"`
		Contents             []byte `json:"-"                              msgpack:"contents"`
	}
)

// NewOwnedObject returns a new object owned by the given address.
func NewOwnedObject(owner string, p Payload) (*Object, error) {
	o := &Object{
		ID:    p.ObjectID(),
		Type:  p.TypeTag(),
		Owner: owner,
	}
	return o, o.Encode(p)
}

// NewSharedObject returns a new shared object.
func NewSharedObject(p Payload) (*Object, error) {
	o := &Object{
		ID:     p.ObjectID(),
		Type:   p.TypeTag(),
		Shared: true,
	}
	return o, o.Encode(p)
}

// Encode replaces the contents of the object by the given payload.
func (o *Object) Encode(p Payload) error {
	if p.TypeTag() != o.Type {
		return errors.Errorf("object %s is a %s, not a %s", o.ID, o.Type, p.TypeTag())
	}

	b, err := stormcbor.Codec.Marshal(p)
	if err != nil {
		return errors.Wrapf(err, "could not encode %s", o.Type)
	}
	o.Contents = b
	return nil
}

// Decode decodes the contents of the object into the given payload.
func (o *Object) Decode(p Payload) error {
	if p.TypeTag() != o.Type {
		return errors.Errorf("object %s is a %s, not a %s", o.ID, o.Type, p.TypeTag())
	}

	err := stormcbor.Codec.Unmarshal(o.Contents, p)
	return errors.Wrapf(err, "could not decode %s", o.Type)
}

// Ref returns a reference to the current version of the object.
func (o *Object) Ref() paytx.ObjectRef {
	return paytx.ObjectRef{ID: o.ID, Version: o.Version}
}

// SharedRef returns the reference used to declare the object as a shared input.
func (o *Object) SharedRef() paytx.ObjectRef {
	return paytx.ObjectRef{ID: o.ID, Version: o.InitialSharedVersion}
}
