package stun

type transactionIDSetter bool

func (transactionIDSetter) AddTo(m *Message) error {
	return m.NewTransactionID()
}

// TransactionID is Setter for m.TransactionID.
var TransactionID Setter = transactionIDSetter(true)

// fixedTransactionIDSetter overwrites m.TransactionID with a caller-chosen
// value instead of drawing a fresh random one, for tests that need a
// deterministic transaction id.
type fixedTransactionIDSetter transactionID

func (s fixedTransactionIDSetter) AddTo(m *Message) error {
	m.TransactionID = [transactionIDSize]byte(s)

	return nil
}

// NewTransactionIDSetter returns a Setter that writes id into
// m.TransactionID verbatim.
func NewTransactionIDSetter(id transactionID) Setter {
	return fixedTransactionIDSetter(id)
}
