package stun

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrAttributeNotFound means that attribute with provided attribute
// type does not exist in message.
var ErrAttributeNotFound = errors.New("attribute not found")

// ErrAttrSizeInvalid means that decoded attribute size is invalid.
var ErrAttrSizeInvalid = errors.New("incorrect length for attribute")

// AttrLengthErr represents an invalid attribute length error.
type AttrLengthErr struct {
	Attr     AttrType
	Expected int
	Got      int
}

func (e *AttrLengthErr) Error() string {
	return fmt.Sprintf(
		"incorrect length of %s attribute: got %d, expected %d",
		e.Attr, e.Got, e.Expected,
	)
}

// IsAttrSizeInvalid reports whether err is ErrAttrSizeInvalid or an
// *AttrLengthErr, as returned by Check/GetFrom methods when a fixed-size
// attribute's value arrives with the wrong length.
func IsAttrSizeInvalid(err error) bool {
	var e *AttrLengthErr

	return errors.Is(err, ErrAttrSizeInvalid) || errors.As(err, &e)
}

// CheckOverflow returns an *AttrLengthErr if got is greater than expected,
// which would otherwise silently truncate when copying into a fixed-size
// destination (e.g. a 4- or 16-byte IP buffer).
func CheckOverflow(t AttrType, got, expected int) error {
	if got <= expected {
		return nil
	}

	return &AttrLengthErr{Attr: t, Expected: expected, Got: got}
}

// RawAttribute is a Type-Length-Value of a single STUN attribute as
// decoded from the wire, preceding interpretation into a typed value.
type RawAttribute struct {
	Type   AttrType
	Length uint16 // ignores padding
	Value  []byte
}

// AddTo adds a as-is to m, letting callers build messages out of
// attribute types this package has no typed wrapper for.
func (a RawAttribute) AddTo(m *Message) error {
	m.Add(a.Type, a.Value)

	return nil
}

// Equal returns true if a and b have the same type and value, ignoring
// how the value was padded on the wire.
func (a RawAttribute) Equal(b RawAttribute) bool {
	if a.Type != b.Type {
		return false
	}

	return bytes.Equal(a.Value, b.Value)
}

func (a RawAttribute) String() string {
	return fmt.Sprintf("%s: 0x%x", a.Type, a.Value)
}

// Attributes is a slice of RawAttribute in parse order, including
// duplicate occurrences of the same type (only the first of which is
// authoritative per RFC 5389 Section 7.3.1).
type Attributes []RawAttribute

// Get returns the first attribute of type t and true, or a zero
// RawAttribute and false if none is present.
func (a Attributes) Get(t AttrType) (RawAttribute, bool) {
	for _, candidate := range a {
		if candidate.Type == t {
			return candidate, true
		}
	}

	return RawAttribute{}, false
}

// GetAll returns every attribute of type t in parse order.
func (a Attributes) GetAll(t AttrType) []RawAttribute {
	var out []RawAttribute
	for _, candidate := range a {
		if candidate.Type == t {
			out = append(out, candidate)
		}
	}

	return out
}

// Get returns the value of the first attribute of type t, or
// ErrAttributeNotFound if m carries no such attribute.
func (m *Message) Get(t AttrType) ([]byte, error) {
	v, ok := m.Attributes.Get(t)
	if !ok {
		return nil, ErrAttributeNotFound
	}

	return v.Value, nil
}

// Contains reports whether m carries at least one attribute of type t.
func (m *Message) Contains(t AttrType) bool {
	_, ok := m.Attributes.Get(t)

	return ok
}
