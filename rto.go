package stun

import (
	"sync"
	"time"
)

// Path identifies a source/target pair that a retransmission timeout is
// tracked for. A Client with a single Connection has exactly one Path;
// a caller fanning out over several destinations (e.g. ICE connectivity
// checks against multiple candidate pairs) tracks one per pair.
type Path struct {
	Source string
	Target string
}

// rtoSmoothed holds the RFC 6298 SRTT/RTTVAR pair for a Path once at
// least one non-retransmitted RTT sample has been observed.
type rtoSmoothed struct {
	srtt   time.Duration
	rttvar time.Duration
}

type rtoEntry struct {
	lastUpdate time.Time
	smooth     *rtoSmoothed
	backoff    *time.Duration
}

// RTOTable computes the retransmission timeout for a Path using RFC
// 6298 SRTT/RTTVAR smoothing, falling back to a configured initial
// value until a sample is observed, and to Karn's algorithm (the last
// timeout used, never a timeout sampled from a retransmitted exchange)
// whenever a transaction on that Path has had to retransmit.
type RTOTable struct {
	initialRTO time.Duration

	mu      sync.Mutex
	byPath  map[Path]*rtoEntry
}

// rtoSmoothingK is the RFC 6298 constant multiplying RTTVAR in
// RTO = SRTT + K*RTTVAR.
const rtoSmoothingK = 4

// NewRTOTable returns an RTOTable that reports initialRTO for any Path
// it has not yet observed a sample or backoff for.
func NewRTOTable(initialRTO time.Duration) *RTOTable {
	return &RTOTable{
		initialRTO: initialRTO,
		byPath:     make(map[Path]*rtoEntry),
	}
}

// SetInitialRTO changes the value RTO reports for a Path it has not yet
// observed a sample or backoff for. It does not touch any Path already
// tracked.
func (t *RTOTable) SetInitialRTO(rto time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.initialRTO = rto
}

// RTO returns the current retransmission timeout for path: the Karn
// back-off if one is set, else the RFC 6298 smoothed estimate if one
// exists, else the table's configured initial RTO.
func (t *RTOTable) RTO(path Path) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.byPath[path]
	if !ok {
		return t.initialRTO
	}
	if e.backoff != nil {
		return *e.backoff
	}
	if e.smooth != nil {
		return e.smooth.srtt + rtoSmoothingK*e.smooth.rttvar
	}
	return t.initialRTO
}

// NewRTT records rtt as a fresh sample on path, measured from an
// exchange that was never retransmitted (Karn's algorithm forbids
// sampling RTT from a retransmitted request, since there is no way to
// tell which attempt the response answers). It clears any back-off in
// effect and updates SRTT/RTTVAR per RFC 6298 with alpha=1/8, beta=1/4.
func (t *RTOTable) NewRTT(now time.Time, path Path, rtt time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.byPath[path]
	if !ok {
		e = &rtoEntry{}
		t.byPath[path] = e
	}
	e.lastUpdate = now
	e.backoff = nil

	if e.smooth == nil {
		// SRTT <- R, RTTVAR <- R/2
		e.smooth = &rtoSmoothed{srtt: rtt, rttvar: rtt / 2}
		return
	}

	delta := e.smooth.srtt - rtt
	if delta < 0 {
		delta = -delta
	}
	// RTTVAR <- (1-beta)*RTTVAR + beta*|SRTT-R'|, beta = 1/4
	e.smooth.rttvar = (3*e.smooth.rttvar + delta) / 4
	// SRTT <- (1-alpha)*SRTT + alpha*R', alpha = 1/8
	e.smooth.srtt = (7*e.smooth.srtt + rtt) / 8
}

// Backoff records duration as the Karn back-off for path: the timeout
// used for a retransmitted request, carried forward so the next
// transaction on the same path does not start from a stale RTT
// estimate that the retransmit has no way to confirm or refute.
func (t *RTOTable) Backoff(now time.Time, path Path, duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.byPath[path]
	if !ok {
		e = &rtoEntry{}
		t.byPath[path] = e
	}
	e.lastUpdate = now
	e.backoff = &duration
}
