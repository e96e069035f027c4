package stun

import (
	"errors"
	"net"
	"sync"
	"time"
)

// Handler is called on transaction state change: a successful exchange,
// a stop, a timeout, or agent closure. It is also the type a Client
// installs on its Agent to receive events for transactions it tracks.
//
// Usage of Event is valid only during the call; callers that need to
// retain fields must copy them explicitly.
type Handler func(e Event)

// NoopHandler discards every Event it receives.
var NoopHandler Handler = func(Event) {}

// Event describes a transaction state change delivered to a Handler.
type Event struct {
	TransactionID [TransactionIDSize]byte
	RAddr         net.Addr
	LAddr         net.Addr
	Message       *Message
	Error         error
}

// Agent is a low-level abstraction over STUN transactions, tracking
// transaction deadlines and dispatching every event (response, stop,
// timeout, close) to a single Handler. It has no knowledge of how
// requests are written to the wire or retransmitted; Client builds on
// top of Agent to provide that.
type Agent struct {
	transactions map[[TransactionIDSize]byte]time.Time
	handler      Handler
	closed       bool
	mux          sync.Mutex // protects transactions, handler and closed
}

// NewAgent initializes and returns a new Agent with handler as its
// default Handler. handler may be nil.
func NewAgent(handler Handler) *Agent {
	return &Agent{
		transactions: make(map[[TransactionIDSize]byte]time.Time),
		handler:      handler,
	}
}

var (
	// ErrTransactionStopped indicates that transaction was manually stopped.
	ErrTransactionStopped = errors.New("transaction is stopped")
	// ErrTransactionNotExists indicates that agent failed to find transaction.
	ErrTransactionNotExists = errors.New("transaction not exists")
	// ErrTransactionExists indicates that transaction with same id is already
	// registered.
	ErrTransactionExists = errors.New("transaction exists with same id")
	// ErrAgentClosed indicates that agent is in closed state and is unable
	// to handle transactions.
	ErrAgentClosed = errors.New("agent is closed")
	// ErrTransactionTimeOut indicates that transaction has reached deadline.
	ErrTransactionTimeOut = errors.New("transaction is timed out")
)

// SetHandler sets the Handler that Agent calls for every event.
// Returns ErrAgentClosed if the agent is already closed.
func (a *Agent) SetHandler(h Handler) error {
	a.mux.Lock()
	defer a.mux.Unlock()
	if a.closed {
		return ErrAgentClosed
	}
	a.handler = h
	return nil
}

// Start registers a transaction with id, to be garbage collected once
// deadline passes. Could return ErrAgentClosed, ErrTransactionExists.
func (a *Agent) Start(id [TransactionIDSize]byte, deadline time.Time) error {
	a.mux.Lock()
	defer a.mux.Unlock()
	if a.closed {
		return ErrAgentClosed
	}
	if _, exists := a.transactions[id]; exists {
		return ErrTransactionExists
	}
	a.transactions[id] = deadline
	return nil
}

// Stop stops the transaction by id, calling the handler with
// ErrTransactionStopped. Returns ErrTransactionNotExists if id is not
// registered, or ErrAgentClosed if the agent is closed.
func (a *Agent) Stop(id [TransactionIDSize]byte) error {
	a.mux.Lock()
	if a.closed {
		a.mux.Unlock()
		return ErrAgentClosed
	}
	_, exists := a.transactions[id]
	delete(a.transactions, id)
	h := a.handler
	a.mux.Unlock()
	if !exists {
		return ErrTransactionNotExists
	}
	if h != nil {
		h(Event{TransactionID: id, Error: ErrTransactionStopped})
	}
	return nil
}

// agentCollectCap is the initial capacity for Collect's slice of timed
// out transactions, sufficient to make the common case zero-alloc.
const agentCollectCap = 100

// Collect terminates all transactions whose deadline is before gcTime,
// calling the handler with ErrTransactionTimeOut for each.
func (a *Agent) Collect(gcTime time.Time) error {
	toRemove := make([][TransactionIDSize]byte, 0, agentCollectCap)
	a.mux.Lock()
	if a.closed {
		a.mux.Unlock()
		return ErrAgentClosed
	}
	for id, deadline := range a.transactions {
		if deadline.Before(gcTime) {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		delete(a.transactions, id)
	}
	h := a.handler
	a.mux.Unlock()
	if h != nil {
		for _, id := range toRemove {
			h(Event{TransactionID: id, Error: ErrTransactionTimeOut})
		}
	}
	return nil
}

// Process dispatches m to the handler, whether or not its transaction ID
// is currently tracked. Blocks until the handler returns.
func (a *Agent) Process(m *Message) error {
	a.mux.Lock()
	if a.closed {
		a.mux.Unlock()
		return ErrAgentClosed
	}
	delete(a.transactions, m.TransactionID)
	h := a.handler
	a.mux.Unlock()
	if h != nil {
		h(Event{TransactionID: m.TransactionID, Message: m})
	}
	return nil
}

// Close terminates all pending transactions with ErrAgentClosed and
// renders the Agent unusable.
func (a *Agent) Close() error {
	a.mux.Lock()
	if a.closed {
		a.mux.Unlock()
		return ErrAgentClosed
	}
	ids := make([][TransactionIDSize]byte, 0, len(a.transactions))
	for id := range a.transactions {
		ids = append(ids, id)
	}
	a.transactions = nil
	a.closed = true
	h := a.handler
	a.mux.Unlock()
	if h != nil {
		for _, id := range ids {
			h(Event{TransactionID: id, Error: ErrAgentClosed})
		}
	}
	return nil
}

// transactionID is the named form of a STUN transaction ID, used where
// client-side bookkeeping benefits from a map key distinct from the raw
// [TransactionIDSize]byte wire representation.
type transactionID [transactionIDSize]byte
