package stun

// ICE connectivity-check attributes, RFC 8445 Section 7.1.1 (carried over
// the wire per RFC 8489 Section 18.2, the comprehension-required and
// comprehension-optional ranges reused from plain STUN).

// Priority represents the PRIORITY attribute, carrying a candidate pair's
// advertised priority on a Binding request.
type Priority uint32

// AddTo adds PRIORITY to m.
func (p Priority) AddTo(m *Message) error {
	v := make([]byte, 4)
	bin.PutUint32(v, uint32(p))
	m.Add(AttrPriority, v)

	return nil
}

// GetFrom decodes PRIORITY from m.
func (p *Priority) GetFrom(m *Message) error {
	v, err := m.Get(AttrPriority)
	if err != nil {
		return err
	}
	if err := CheckSize(AttrPriority, len(v), 4); err != nil {
		return err
	}
	*p = Priority(bin.Uint32(v))

	return nil
}

// UseCandidate represents the USE-CANDIDATE attribute: a zero-length flag
// set by a controlling agent to nominate the candidate pair a Binding
// request was sent on.
type UseCandidate struct{}

// AddTo adds USE-CANDIDATE to m.
func (UseCandidate) AddTo(m *Message) error {
	m.Add(AttrUseCandidate, nil)

	return nil
}

// GetFrom checks for USE-CANDIDATE in m, returning ErrAttributeNotFound if
// absent.
func (UseCandidate) GetFrom(m *Message) error {
	_, err := m.Get(AttrUseCandidate)

	return err
}

// tieBreaker attributes distinguish the controlling and controlled roles
// during an ICE role conflict (RFC 8445 Section 7.1.1, 7.3.1.1).
type tieBreaker uint64

func (t tieBreaker) addTo(m *Message, attr AttrType) error {
	v := make([]byte, 8)
	bin.PutUint64(v, uint64(t))
	m.Add(attr, v)

	return nil
}

func (t *tieBreaker) getFrom(m *Message, attr AttrType) error {
	v, err := m.Get(attr)
	if err != nil {
		return err
	}
	if err := CheckSize(attr, len(v), 8); err != nil {
		return err
	}
	*t = tieBreaker(bin.Uint64(v))

	return nil
}

// ICEControlling represents the ICE-CONTROLLING attribute, carrying the
// sending agent's tie-breaker value while it believes itself controlling.
type ICEControlling uint64

// AddTo adds ICE-CONTROLLING to m.
func (c ICEControlling) AddTo(m *Message) error {
	return tieBreaker(c).addTo(m, AttrICEControlling)
}

// GetFrom decodes ICE-CONTROLLING from m.
func (c *ICEControlling) GetFrom(m *Message) error {
	return (*tieBreaker)(c).getFrom(m, AttrICEControlling)
}

// ICEControlled represents the ICE-CONTROLLED attribute, carrying the
// sending agent's tie-breaker value while it believes itself controlled.
type ICEControlled uint64

// AddTo adds ICE-CONTROLLED to m.
func (c ICEControlled) AddTo(m *Message) error {
	return tieBreaker(c).addTo(m, AttrICEControlled)
}

// GetFrom decodes ICE-CONTROLLED from m.
func (c *ICEControlled) GetFrom(m *Message) error {
	return (*tieBreaker)(c).getFrom(m, AttrICEControlled)
}
