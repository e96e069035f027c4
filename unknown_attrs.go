package stun

// UnknownAttributes represents UNKNOWN-ATTRIBUTES attribute.
//
// Each entry is a 16-bit attribute type that the sender of a 420 (Unknown
// Attribute) response did not understand. There is no cap on the number
// of entries; a message with many unrecognized comprehension-required
// attributes simply carries a longer list.
//
// RFC 5389 Section 15.9.
type UnknownAttributes []AttrType

func (a UnknownAttributes) String() string {
	s := make([]byte, 0, len(a)*len("0x0000,"))
	for i, t := range a {
		if i > 0 {
			s = append(s, ',')
		}
		s = append(s, t.String()...)
	}

	return string(s)
}

// AddTo adds UNKNOWN-ATTRIBUTES to m.
func (a UnknownAttributes) AddTo(m *Message) error {
	value := make([]byte, len(a)*2)
	for i, t := range a {
		bin.PutUint16(value[i*2:], t.Value())
	}
	m.Add(AttrUnknownAttributes, value)

	return nil
}

// GetFrom decodes UNKNOWN-ATTRIBUTES from m.
func (a *UnknownAttributes) GetFrom(m *Message) error {
	v, err := m.Get(AttrUnknownAttributes)
	if err != nil {
		return err
	}
	if len(v)%2 != 0 {
		return &AttrLengthErr{
			Attr:     AttrUnknownAttributes,
			Expected: len(v) + 1,
			Got:      len(v),
		}
	}
	types := make(UnknownAttributes, 0, len(v)/2)
	for i := 0; i+1 < len(v); i += 2 {
		types = append(types, AttrType(bin.Uint16(v[i:i+2])))
	}
	*a = types

	return nil
}
