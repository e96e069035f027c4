package stun

import (
	"container/heap"
	"errors"
	"io"
	"time"
)

// Handle names a transaction created by Machine.Create. It stays valid
// until the transaction produces a terminal Effect (TransactionOk or
// TransactionFailed).
type Handle uint64

// Effect is the single outcome Machine.Next ever returns: exactly one
// of SendData, TransactionOk, TransactionFailed, Sleep, or Idle. It is
// a closed sum type so a caller's type switch can be exhaustive.
type Effect interface {
	isEffect()
}

// SendData asks the caller to write Data to the network on behalf of
// Handle. Data is the transaction's own copy of the request bytes,
// the same slice for the first send and every retransmit; the caller
// must not modify it.
type SendData struct {
	Handle Handle
	Data   []byte
}

func (SendData) isEffect() {}

// TransactionOk reports a successful Binding exchange. RTT is nil when
// the response arrived after at least one retransmit, since Karn's
// algorithm forbids attributing it to any one of the ambiguous sends.
type TransactionOk struct {
	Handle   Handle
	Endpoint XORMappedAddress
	Response *Message
	RTT      *time.Duration
}

func (TransactionOk) isEffect() {}

// TransactionFailureReason is a closed sum type describing why a
// transaction produced TransactionFailed.
type TransactionFailureReason interface {
	isTransactionFailureReason()
}

// UnknownComprehensionRequired means the response carried a
// comprehension-required attribute this package does not recognize.
type UnknownComprehensionRequired struct{ Attrs []AttrType }

func (UnknownComprehensionRequired) isTransactionFailureReason() {}

// UnknownAttributeReported is the UNKNOWN-ATTRIBUTES list from a 420
// error response.
type UnknownAttributeReported struct{ Attrs []AttrType }

func (UnknownAttributeReported) isTransactionFailureReason() {}

// AlternateServerFailure is a 3xx response naming a different server
// to retry the request against.
type AlternateServerFailure struct{ Server AlternateServer }

func (AlternateServerFailure) isTransactionFailureReason() {}

// ServerErrorCode wraps a non-3xx-redirect error response.
type ServerErrorCode struct{ Code ErrorCodeAttribute }

func (ServerErrorCode) isTransactionFailureReason() {}

// TransactionError wraps an error encountered while processing the
// transaction itself rather than a protocol-level rejection.
type TransactionError struct{ Err error }

func (TransactionError) isTransactionFailureReason() {}

// Timeout means the retransmission budget was exhausted with no
// response ever arriving.
type Timeout struct{}

func (Timeout) isTransactionFailureReason() {}

// TransactionFailed reports that a transaction did not complete
// successfully, with Reason identifying why.
type TransactionFailed struct {
	Handle Handle
	Reason TransactionFailureReason
}

func (TransactionFailed) isEffect() {}

// Sleep means the caller has nothing to do until Wait has elapsed;
// calling Next before then will simply produce Sleep again (or Idle,
// if every pending transaction was cleaned up in the meantime).
type Sleep struct{ Wait time.Duration }

func (Sleep) isEffect() {}

// Idle means no transaction is pending; Next need not be called again
// until Create or Respond is.
type Idle struct{}

func (Idle) isEffect() {}

// Auth carries the short-term credential a transaction authenticates
// its request with, and the key its response is expected to be signed
// with in turn.
type Auth struct {
	Username  string
	Integrity MessageIntegrity
}

// Request describes a Binding transaction to create.
type Request struct {
	Path    Path
	Setters []Setter
	Auth    *Auth
}

var (
	// ErrTransactionIDCollision is returned by Create if it cannot find
	// a free transaction id after repeated attempts, which in practice
	// only happens when rand is degenerate (e.g. always zero).
	ErrTransactionIDCollision = errors.New("stun: could not allocate a unique transaction id")

	// ErrUnknownTransaction is returned by Respond for a transaction id
	// Machine has no record of — already completed, timed out, or never
	// created. Per RFC 5389 Section 7.3.1 a client silently drops such
	// responses; the caller decides whether to log it.
	ErrUnknownTransaction = errors.New("stun: unknown transaction")

	// ErrNoIntegrity is returned by Respond when a transaction was
	// created with Auth but the response carries no MESSAGE-INTEGRITY,
	// and is not an (allowed) unauthenticated alternate-server response.
	ErrNoIntegrity = errors.New("stun: response missing message integrity")

	// ErrDigestNotValid is returned by Respond when a transaction's
	// response carries a MESSAGE-INTEGRITY that does not verify against
	// the request's key.
	ErrDigestNotValid = errors.New("stun: response digest is not valid")
)

// MachineSettings configures a Machine.
type MachineSettings struct {
	// Retransmit configures the per-transaction retransmission budget
	// and timing (X).
	Retransmit RetransmitSettings

	// UseFingerprint appends FINGERPRINT to every created request.
	UseFingerprint bool

	// AllowUnauthenticatedAlternate permits a 3xx ALTERNATE-SERVER
	// response to lack MESSAGE-INTEGRITY even when the transaction was
	// authenticated, per RFC 5389 Section 11.
	AllowUnauthenticatedAlternate bool
}

// DefaultMachineSettings matches DefaultRetransmitSettings with
// FINGERPRINT and unauthenticated alternates both disabled.
var DefaultMachineSettings = MachineSettings{
	Retransmit: DefaultRetransmitSettings,
}

type machineTransaction struct {
	handle     Handle
	id         transactionID
	data       []byte
	path       Path
	createTime time.Time
	auth       *Auth
	retransmit *retransmitState
	rtxCount   uint
}

// timelineEntry is one (wakeup, handle) pair in Machine's timeline
// heap. Entries for a handle no longer present in Machine.transactions
// are stale and skipped on pop, rather than removed from the heap
// eagerly — cheaper than a heap.Fix on every retransmit or completion.
type timelineEntry struct {
	wakeup time.Time
	handle Handle
}

type timeline []timelineEntry

func (t timeline) Len() int { return len(t) }

func (t timeline) Less(i, j int) bool {
	if !t[i].wakeup.Equal(t[j].wakeup) {
		return t[i].wakeup.Before(t[j].wakeup)
	}
	return t[i].handle < t[j].handle
}

func (t timeline) Swap(i, j int) { t[i], t[j] = t[j], t[i] }

func (t *timeline) Push(x interface{}) {
	*t = append(*t, x.(timelineEntry))
}

func (t *timeline) Pop() interface{} {
	old := *t
	n := len(old)
	item := old[n-1]
	*t = old[:n-1]
	return item
}

// Machine is an I/O-less STUN Binding client: Create starts a
// transaction and produces the bytes to send, Respond feeds it
// received bytes, and Next drains retransmit timers and delivers one
// Effect at a time. Machine never reads the wall clock or touches the
// network itself — every operation takes `now` from the caller, so a
// test can replay an exact timeline deterministically. See Client for
// an ambient, goroutine-driven wrapper around a *net.Conn built on the
// same idea.
type Machine struct {
	settings MachineSettings
	rto      *RTOTable

	nextHandle   Handle
	tidToHandle  map[transactionID]Handle
	transactions map[Handle]*machineTransaction
	timeline     timeline
	pending      []Effect
}

// NewMachine returns a Machine with the given settings, using rto (an
// RTOTable shared across Machines when several track the same network
// paths, or a fresh one otherwise) to seed each transaction's initial
// retransmission timeout.
func NewMachine(settings MachineSettings, rto *RTOTable) *Machine {
	return &Machine{
		settings:     settings,
		rto:          rto,
		tidToHandle:  make(map[transactionID]Handle),
		transactions: make(map[Handle]*machineTransaction),
	}
}

// Create starts a new Binding transaction: it generates a transaction
// id not already in use (reading randomness from rand, retrying on
// collision), assembles and encodes the request per req, and schedules
// its first retransmission wakeup. The returned Handle names the
// transaction in every later Effect and in Respond.
func (m *Machine) Create(rand io.Reader, now time.Time, req Request) (Handle, error) {
	var id transactionID
	const maxAttempts = 64
	for attempt := 0; ; attempt++ {
		candidate, err := readTransactionID(rand)
		if err != nil {
			return 0, err
		}
		if _, exists := m.tidToHandle[candidate]; !exists {
			id = candidate
			break
		}
		if attempt >= maxAttempts {
			return 0, ErrTransactionIDCollision
		}
	}

	setters := append([]Setter{BindingRequest, NewTransactionIDSetter(id)}, req.Setters...)
	if req.Auth != nil {
		setters = append(setters, NewUsername(req.Auth.Username))
	}
	if req.Auth != nil {
		setters = append(setters, req.Auth.Integrity)
	}
	if m.settings.UseFingerprint {
		setters = append(setters, Fingerprint)
	}

	msg, err := Build(setters...)
	if err != nil {
		return 0, err
	}

	handle := m.allocateHandle()
	m.tidToHandle[id] = handle

	initialRTO := m.rto.RTO(req.Path)
	txn := &machineTransaction{
		handle:     handle,
		id:         id,
		data:       append([]byte(nil), msg.Raw...),
		path:       req.Path,
		createTime: now,
		auth:       req.Auth,
		retransmit: newRetransmitState(m.settings.Retransmit, initialRTO),
	}
	m.transactions[handle] = txn

	m.pending = append(m.pending, SendData{Handle: handle, Data: txn.data})
	wakeup := txn.retransmit.Init(now)
	heap.Push(&m.timeline, timelineEntry{wakeup: wakeup, handle: handle})

	return handle, nil
}

func readTransactionID(r io.Reader) (transactionID, error) {
	var id transactionID
	if _, err := io.ReadFull(r, id[:]); err != nil {
		return transactionID{}, err
	}
	return id, nil
}

func (m *Machine) allocateHandle() Handle {
	for {
		h := m.nextHandle
		m.nextHandle++
		if _, exists := m.transactions[h]; !exists {
			return h
		}
	}
}

// Respond feeds a received datagram to Machine. It looks up the
// transaction by the message's transaction id first, before spending
// any effort validating integrity, matching the reference client's
// behavior of not authenticating bytes for a transaction it does not
// know about. An unrecognized transaction id yields ErrUnknownTransaction
// and must be silently dropped by the caller, per RFC 5389 Section
// 7.3.1 — it is not a protocol error.
func (m *Machine) Respond(now time.Time, data []byte) error {
	resp := New()
	resp.Raw = append(resp.Raw[:0], data...)
	if err := resp.Decode(); err != nil {
		return ErrUnknownTransaction
	}

	handle, ok := m.tidToHandle[resp.TransactionID]
	if !ok {
		return ErrUnknownTransaction
	}
	txn, ok := m.transactions[handle]
	if !ok {
		return ErrUnknownTransaction
	}

	if err := m.checkResponseAuth(txn, resp); err != nil {
		return err
	}

	switch resp.Type.Class {
	case ClassSuccessResponse:
		m.handleSuccessResponse(now, txn, resp)
	case ClassErrorResponse:
		m.handleErrorResponse(now, txn, resp)
	default:
		return ErrUnknownTransaction
	}

	return nil
}

// checkResponseAuth verifies MESSAGE-INTEGRITY on an authenticated
// transaction's response. RFC 5389 Section 10.1.2 forbids checking the
// response's USERNAME (servers do not echo it), so only the integrity
// digest is verified here.
func (m *Machine) checkResponseAuth(txn *machineTransaction, resp *Message) error {
	if txn.auth == nil {
		return nil
	}
	if !resp.Contains(AttrMessageIntegrity) {
		if m.settings.AllowUnauthenticatedAlternate && isAlternateServerResponse(resp) {
			return nil
		}
		return ErrNoIntegrity
	}
	if err := txn.auth.Integrity.Check(resp); err != nil {
		return ErrDigestNotValid
	}
	return nil
}

func isAlternateServerResponse(resp *Message) bool {
	if resp.Type.Class != ClassErrorResponse {
		return false
	}
	var ec ErrorCodeAttribute
	if ec.GetFrom(resp) != nil {
		return false
	}
	return ec.Code == CodeTryAlternate
}

// handleSuccessResponse implements RFC 5389 Section 7.3.3.
func (m *Machine) handleSuccessResponse(now time.Time, txn *machineTransaction, resp *Message) {
	if unknown := unknownRequiredAttrs(resp); len(unknown) > 0 {
		m.complete(TransactionFailed{Handle: txn.handle, Reason: UnknownComprehensionRequired{Attrs: unknown}})
		return
	}

	var rtt *time.Duration
	if txn.rtxCount == 0 {
		sample := now.Sub(txn.createTime)
		rtt = &sample
		m.rto.NewRTT(now, txn.path, sample)
	} else {
		m.rto.Backoff(now, txn.path, txn.retransmit.LastTimeout())
	}

	var xorAddr XORMappedAddress
	if err := xorAddr.GetFrom(resp); err == nil {
		m.complete(TransactionOk{Handle: txn.handle, Endpoint: xorAddr, Response: resp, RTT: rtt})
		return
	}

	var mapped MappedAddress
	if err := mapped.GetFrom(resp); err == nil {
		m.complete(TransactionOk{
			Handle:   txn.handle,
			Endpoint: XORMappedAddress{IP: mapped.IP, Port: mapped.Port},
			Response: resp,
			RTT:      rtt,
		})
		return
	}

	m.complete(TransactionFailed{Handle: txn.handle, Reason: TransactionError{Err: errors.New("stun: response has no mapped address")}})
}

// handleErrorResponse implements RFC 5389 Section 7.3.4.
func (m *Machine) handleErrorResponse(now time.Time, txn *machineTransaction, resp *Message) {
	if unknown := unknownRequiredAttrs(resp); len(unknown) > 0 {
		m.complete(TransactionFailed{Handle: txn.handle, Reason: UnknownComprehensionRequired{Attrs: unknown}})
		return
	}

	var ec ErrorCodeAttribute
	if err := ec.GetFrom(resp); err != nil {
		m.complete(TransactionFailed{Handle: txn.handle, Reason: TransactionError{Err: errors.New("stun: error response has no ERROR-CODE")}})
		return
	}

	if ec.Code == CodeTryAlternate {
		var alt AlternateServer
		if err := alt.GetFrom(resp); err != nil {
			m.complete(TransactionFailed{Handle: txn.handle, Reason: TransactionError{Err: errors.New("stun: alternate-server response has no ALTERNATE-SERVER")}})
			return
		}
		m.complete(TransactionFailed{
			Handle: txn.handle,
			Reason: AlternateServerFailure{Server: alt},
		})
		return
	}

	switch int(ec.Code) / 100 {
	case 3:
		m.complete(TransactionFailed{Handle: txn.handle, Reason: ServerErrorCode{Code: ec}})
	case 4:
		if ec.Code == CodeUnknownAttribute {
			var unknown UnknownAttributes
			if err := unknown.GetFrom(resp); err == nil {
				m.complete(TransactionFailed{Handle: txn.handle, Reason: UnknownAttributeReported{Attrs: unknown}})
				return
			}
		}
		m.complete(TransactionFailed{Handle: txn.handle, Reason: ServerErrorCode{Code: ec}})
	case 5:
		wakeup, result := txn.retransmit.Process5xx(now)
		if result == retransmitScheduled {
			m.rescheduleOnTimeline(txn.handle, wakeup)
			return
		}
		m.complete(TransactionFailed{Handle: txn.handle, Reason: ServerErrorCode{Code: ec}})
	default:
		// Outside 3xx/4xx/5xx: not a protocol violation this package
		// has an opinion on, but also not success. Drop it; the
		// transaction's own timer will eventually fail it.
	}
}

// rescheduleOnTimeline pushes a fresh wakeup for handle. The stale
// entry already on the heap for its previous wakeup is left in place
// and skipped when popped, per the Design Notes' "stale entries are
// skipped on pop" rule.
func (m *Machine) rescheduleOnTimeline(handle Handle, wakeup time.Time) {
	heap.Push(&m.timeline, timelineEntry{wakeup: wakeup, handle: handle})
}

func (m *Machine) complete(effect Effect) {
	m.pending = append(m.pending, effect)
}

// Next drains every timeline entry that has fired as of now, turning
// each into a SendData (if the transaction can still retransmit) or a
// TransactionFailed{Timeout} (if its budget is exhausted), then
// returns exactly one pending Effect. If nothing is pending it returns
// Sleep{until the next wakeup} or Idle if no transaction remains.
func (m *Machine) Next(now time.Time) Effect {
	for len(m.timeline) > 0 && !m.timeline[0].wakeup.After(now) {
		entry := heap.Pop(&m.timeline).(timelineEntry)
		txn, ok := m.transactions[entry.handle]
		if !ok {
			continue // stale: transaction already completed.
		}
		// A transaction can have more than one live timeline entry
		// (ordinary retransmit schedule plus a Process5xx reschedule);
		// only the one matching the transaction's current nextWakeup
		// does anything.
		if txn.retransmit.hasNextWakeup && !txn.retransmit.nextWakeup.Equal(entry.wakeup) {
			continue
		}

		wakeup, ok := txn.retransmit.Next(now)
		if !ok {
			m.pending = append(m.pending, TransactionFailed{Handle: txn.handle, Reason: Timeout{}})
			continue
		}
		txn.rtxCount++
		heap.Push(&m.timeline, timelineEntry{wakeup: wakeup, handle: entry.handle})
		m.pending = append(m.pending, SendData{Handle: txn.handle, Data: txn.data})
	}

	if len(m.pending) > 0 {
		effect := m.pending[0]
		m.pending = m.pending[1:]
		switch e := effect.(type) {
		case TransactionFailed:
			m.cleanup(e.Handle)
		case TransactionOk:
			m.cleanup(e.Handle)
		}
		return effect
	}

	for len(m.timeline) > 0 {
		if _, ok := m.transactions[m.timeline[0].handle]; ok {
			break
		}
		heap.Pop(&m.timeline) // stale: transaction already completed.
	}
	if len(m.timeline) == 0 {
		return Idle{}
	}
	return Sleep{Wait: m.timeline[0].wakeup.Sub(now)}
}

func (m *Machine) cleanup(handle Handle) {
	if txn, ok := m.transactions[handle]; ok {
		delete(m.tidToHandle, txn.id)
		delete(m.transactions, handle)
	}
}
