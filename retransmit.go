package stun

import "time"

// RetransmitSettings configures the retransmit algorithm (X) for a
// single transaction: how many times a request is sent in total, how
// long the final wait is relative to the first timeout, and how far a
// run of 5xx server errors can extend the budget beyond RequestCount.
type RetransmitSettings struct {
	// RequestCount (Rc) is the total number of times a request is
	// transmitted, including the first send.
	RequestCount uint

	// RetransmissionMultiplier (Rm) scales InitialRTO for the final
	// wait after the last retransmission, per RFC 8489 Section 7.2.1:
	// "the client...SHOULD retransmit the request for Rc - 1 times...
	// The last request...SHOULD wait Rm times the RTO".
	RetransmissionMultiplier uint

	// MaxRTO, if non-zero, floors every computed timeout: a
	// configuration knob carried over unchanged from the reference
	// implementation, which uses it to guarantee a minimum spacing
	// between retransmits rather than a ceiling.
	MaxRTO time.Duration

	// ServerErrorTimeout, if non-zero, is the fixed wait scheduled by
	// Process5xx in response to a 5xx error, independent of the normal
	// doubling schedule.
	ServerErrorTimeout time.Duration

	// ServerErrorMaxRetransmits bounds how many times Process5xx may
	// schedule a retry before giving up.
	ServerErrorMaxRetransmits uint
}

// DefaultRetransmitSettings matches RFC 8489 Section 7.2.1's defaults.
var DefaultRetransmitSettings = RetransmitSettings{
	RequestCount:             7,
	RetransmissionMultiplier: 16,
}

// process5xxResult is the outcome of retransmitState.Process5xx.
type process5xxResult int

const (
	retransmitScheduled process5xxResult = iota
	retransmitFailed
)

// retransmitState tracks one transaction's retransmission schedule:
// the wakeup already scheduled (if any), the timeout that produced it,
// and how many ordinary and 5xx-triggered retransmits have happened so
// far. The zero value is not usable; construct with newRetransmitState.
type retransmitState struct {
	settings    RetransmitSettings
	initialRTO  time.Duration
	lastTimeout time.Duration
	rtxCount    uint
	fivexxCount uint

	nextWakeup   time.Time
	hasNextWakeup bool
}

// newRetransmitState creates a retransmitState for a transaction whose
// first retransmission timeout is initialRTO (normally RTOTable.RTO for
// the transaction's Path).
func newRetransmitState(settings RetransmitSettings, initialRTO time.Duration) *retransmitState {
	return &retransmitState{
		settings:   settings,
		initialRTO: initialRTO,
	}
}

// Init schedules the first wakeup, initial_rto after now, and returns
// it. Per RFC 8489 the first retransmission (the second transmission
// overall) happens after waiting the initial RTO.
func (r *retransmitState) Init(now time.Time) time.Time {
	r.lastTimeout = r.initialRTO
	r.nextWakeup = now.Add(r.initialRTO)
	r.hasNextWakeup = true
	return r.nextWakeup
}

// Next computes the next retransmission timeout assuming the current
// wakeup has just fired at now, schedules it, and returns it alongside
// whether the transaction may still retransmit. A false return means
// the retransmission budget (RequestCount, extended by any 5xx
// retransmits Process5xx has granted) is exhausted and the transaction
// must fail with TransactionFailed{Timeout}.
func (r *retransmitState) Next(now time.Time) (time.Time, bool) {
	if r.rtxCount+1 >= r.settings.RequestCount+r.fivexxCount {
		r.hasNextWakeup = false
		return time.Time{}, false
	}

	var timeout time.Duration
	if r.rtxCount+2 == r.settings.RequestCount {
		// Final retransmission: RFC 8489's Rm-scaled wait instead of
		// doubling again, giving a response already on the wire ample
		// time to arrive before the transaction is abandoned.
		timeout = r.initialRTO * time.Duration(r.settings.RetransmissionMultiplier)
	} else {
		timeout = r.lastTimeout * 2
	}
	if r.settings.MaxRTO > 0 && timeout < r.settings.MaxRTO {
		timeout = r.settings.MaxRTO
	}

	r.rtxCount++
	r.lastTimeout = timeout
	r.nextWakeup = now.Add(timeout)
	r.hasNextWakeup = true
	return r.nextWakeup, true
}

// Process5xx reacts to a server error response: if ServerErrorTimeout
// is configured and fewer than ServerErrorMaxRetransmits 5xx retries
// have been granted, it schedules one more retransmit at a fixed delay
// and extends the overall budget so Next does not treat it as having
// consumed one of the ordinary RequestCount attempts; otherwise the
// transaction must fail.
func (r *retransmitState) Process5xx(now time.Time) (time.Time, process5xxResult) {
	if r.settings.ServerErrorTimeout == 0 || r.fivexxCount >= r.settings.ServerErrorMaxRetransmits {
		r.hasNextWakeup = false
		return time.Time{}, retransmitFailed
	}
	r.fivexxCount++
	r.nextWakeup = now.Add(r.settings.ServerErrorTimeout)
	r.hasNextWakeup = true
	return r.nextWakeup, retransmitScheduled
}

// LastTimeout returns the timeout that produced the most recently
// scheduled wakeup, the value Karn's algorithm carries forward as the
// Path's back-off via RTOTable.Backoff.
func (r *retransmitState) LastTimeout() time.Duration {
	return r.lastTimeout
}
