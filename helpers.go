package stun

// Setter sets *Message attribute.
type Setter interface {
	AddTo(m *Message) error
}

// Getter decodes *Message attribute.
type Getter interface {
	GetFrom(m *Message) error
}

// Checker checks *Message attribute.
type Checker interface {
	Check(m *Message) error
}

// Build applies setters to message.
func (m *Message) Build(setters ...Setter) error {
	m.Reset()
	m.WriteHeader()
	for _, s := range setters {
		if err := s.AddTo(m); err != nil {
			return err
		}
	}
	return nil
}

func (m *Message) Check(checkers ...Checker) error {
	for _, c := range checkers {
		if err := c.Check(m); err != nil {
			return err
		}
	}
	return nil
}

// Parse applies getters to message, populating each in turn. It returns
// the first error encountered, leaving later getters untouched.
func (m *Message) Parse(getters ...Getter) error {
	for _, g := range getters {
		if err := g.GetFrom(m); err != nil {
			return err
		}
	}
	return nil
}

// SetType sets m.Type to t.
func (m *Message) SetType(t MessageType) {
	m.Type = t
}

// ForEach calls f once per attribute of type t, in parse order, with m's
// Attributes temporarily narrowed to that single occurrence so f (often a
// Getter's GetFrom) can decode it in isolation. m.Attributes is restored
// before ForEach returns, whether or not f returned an error.
func (m *Message) ForEach(t AttrType, f func(m *Message) error) error {
	full := m.Attributes
	defer func() { m.Attributes = full }()

	for _, a := range full {
		if a.Type != t {
			continue
		}
		m.Attributes = Attributes{a}
		if err := f(m); err != nil {
			return err
		}
	}

	return nil
}

// Build wraps Message.Build method.
func Build(setters ...Setter) (*Message, error) {
	m := new(Message)
	return m, m.Build(setters...)
}

// MustBuild is Build that panics on error, for call sites that construct
// messages from compile-time-known setters.
func MustBuild(setters ...Setter) *Message {
	m, err := Build(setters...)
	if err != nil {
		panic(err)
	}

	return m
}

// BindingRequest is shorthand for the Binding request message type.
var BindingRequest = MessageType{Method: MethodBinding, Class: ClassRequest}

// BindingSuccess is shorthand for the Binding success response message type.
var BindingSuccess = MessageType{Method: MethodBinding, Class: ClassSuccessResponse}

// BindingError is shorthand for the Binding error response message type.
var BindingError = MessageType{Method: MethodBinding, Class: ClassErrorResponse}
