package stun

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Dial connects to the address on the named network and then
// initializes Client on that connection, returning error if any.
func Dial(network, address string) (*Client, error) {
	conn, err := net.Dial(network, address)
	if err != nil {
		return nil, err
	}
	return NewClient(conn)
}

const (
	defaultTimeoutRate = time.Millisecond * 100
	defaultRTO         = time.Millisecond * 500
	defaultMaxAttempts = 7
)

// DialConfig configures DialURI. A zero DialConfig dials with the
// system's net.Dial and no Client options.
type DialConfig struct {
	// Dialer overrides how the network connection is established. If
	// nil, net.Dial is used.
	Dialer func(network, address string) (net.Conn, error)

	// Options are passed through to NewClient.
	Options []ClientOption
}

func (cfg DialConfig) dial(network, address string) (net.Conn, error) {
	if cfg.Dialer != nil {
		return cfg.Dialer(network, address)
	}
	return net.Dial(network, address)
}

// DialURI connects to the server named by uri and initializes a Client
// on the resulting connection. uri.Network selects udp or tcp per the
// stun:/stuns: scheme; cfg may be nil to use the defaults.
func DialURI(uri *URI, cfg *DialConfig) (*Client, error) {
	if cfg == nil {
		cfg = &DialConfig{}
	}
	conn, err := cfg.dial(uri.Network(), uri.Addr())
	if err != nil {
		return nil, err
	}
	return NewClient(conn, cfg.Options...)
}

// ErrNoConnection means that NewClient was called with a nil Connection.
var ErrNoConnection = errors.New("no connection provided")

// ClientOption configures a Client during construction.
type ClientOption func(c *Client) error

// WithAgent sets the ClientAgent used to track transactions. The
// default is an *Agent created with a nil Handler.
func WithAgent(a ClientAgent) ClientOption {
	return func(c *Client) error {
		c.a = a
		return nil
	}
}

// WithClock sets the source of time used for RTO deadlines. The default
// is the system clock.
func WithClock(clock Clock) ClientOption {
	return func(c *Client) error {
		c.clock = clock
		return nil
	}
}

// WithCollector sets the Collector responsible for periodically
// garbage-collecting timed out transactions. The default is a
// ticker-backed Collector running at WithTimeoutRate's rate.
func WithCollector(col Collector) ClientOption {
	return func(c *Client) error {
		c.collector = col
		return nil
	}
}

// WithRTO sets the initial retransmission timeout fed to new paths'
// RTO calculator entries, before any round-trip sample has been taken.
func WithRTO(rto time.Duration) ClientOption {
	return func(c *Client) error {
		c.rto = int64(rto)
		return nil
	}
}

// WithRetransmitSettings overrides the retransmission schedule (timeout
// doubling, the final Rm-multiplied wait, MaxRTO clamp, and the 5xx
// budget extension). The default matches DefaultRetransmitSettings.
func WithRetransmitSettings(settings RetransmitSettings) ClientOption {
	return func(c *Client) error {
		c.retransmit = settings
		return nil
	}
}

// WithTimeoutRate sets how often the Collector checks for timed out
// transactions. Defaults to 100ms.
func WithTimeoutRate(d time.Duration) ClientOption {
	return func(c *Client) error {
		c.gcRate = d
		return nil
	}
}

// WithHandler sets the Handler invoked for events that do not match any
// transaction started via Start or Do, e.g. late responses to requests
// already given up on.
func WithHandler(h Handler) ClientOption {
	return func(c *Client) error {
		c.handler = h
		return nil
	}
}

// WithNoConnClose prevents Close from closing the underlying Connection,
// for callers that manage the connection's lifetime themselves.
func WithNoConnClose(c *Client) error {
	c.closeConn = false
	return nil
}

// WithNoRetransmit disables retransmission entirely: a transaction that
// times out is reported to its handler immediately instead of being
// retried.
func WithNoRetransmit(c *Client) error {
	c.maxAttempts = -1
	return nil
}

// NewClient initializes a new Client on conn, applying opts in order,
// and starts its internal goroutines. Call Close to release resources.
func NewClient(conn Connection, opts ...ClientOption) (*Client, error) {
	c := &Client{
		close:       make(chan struct{}),
		c:           conn,
		clock:       systemClock,
		rto:         int64(defaultRTO),
		retransmit:  DefaultRetransmitSettings,
		t:           make(map[transactionID]*clientTransaction, 100),
		maxAttempts: defaultMaxAttempts,
		closeConn:   true,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.c == nil {
		return nil, ErrNoConnection
	}
	if c.rtoTable == nil {
		c.rtoTable = NewRTOTable(time.Duration(atomic.LoadInt64(&c.rto)))
	}
	if c.a == nil {
		c.a = NewAgent(nil)
	}
	if c.collector == nil {
		c.collector = new(tickerCollector)
	}
	if c.gcRate == 0 {
		c.gcRate = defaultTimeoutRate
	}
	if err := c.a.SetHandler(c.handleAgentCallback); err != nil {
		return nil, err
	}
	if err := c.collector.Start(c.gcRate, c.collect); err != nil {
		return nil, err
	}
	c.wg.Add(1)
	go c.readUntilClosed()
	runtime.SetFinalizer(c, clientFinalizer)
	return c, nil
}

func clientFinalizer(c *Client) {
	if c == nil {
		return
	}
	err := c.Close()
	if err == ErrClientClosed {
		return
	}
	if err == nil {
		log.Println("client: called finalizer on non-closed client")
		return
	}
	log.Println("client: called finalizer on non-closed client:", err)
}

// Connection wraps Reader, Writer and Closer interfaces.
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

// ClientAgent is the Agent implementation used by Client to process
// transactions. *Agent satisfies it.
type ClientAgent interface {
	Process(*Message) error
	Close() error
	Start(id [TransactionIDSize]byte, deadline time.Time) error
	Stop(id [TransactionIDSize]byte) error
	Collect(time.Time) error
	SetHandler(h Handler) error
}

// Collector periodically calls f to garbage-collect timed out
// transactions, until Close is called.
type Collector interface {
	Start(rate time.Duration, f func(now time.Time)) error
	Close() error
}

// tickerCollector is the default Collector, driven by a time.Ticker.
type tickerCollector struct {
	close chan struct{}
	wg    sync.WaitGroup
}

func (t *tickerCollector) Start(rate time.Duration, f func(now time.Time)) error {
	t.close = make(chan struct{})
	ticker := time.NewTicker(rate)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-t.close:
				return
			case now := <-ticker.C:
				f(now)
			}
		}
	}()
	return nil
}

func (t *tickerCollector) Close() error {
	close(t.close)
	t.wg.Wait()
	return nil
}

// Client simulates "connection" to STUN server.
type Client struct {
	a           ClientAgent
	c           Connection
	closeConn   bool
	close       chan struct{}
	collector   Collector
	gcRate      time.Duration
	rto         int64 // time.Duration, seeds rtoTable entries for paths never sampled
	rtoTable    *RTOTable
	retransmit  RetransmitSettings
	maxAttempts int32
	closed      bool
	closedMux   sync.RWMutex
	wg          sync.WaitGroup
	clock       Clock
	handler     Handler

	t    map[transactionID]*clientTransaction
	tMux sync.RWMutex
}

// path identifies the network path a Client's transactions run over,
// for the RTO calculator's per-path SRTT/RTTVAR bookkeeping. Connections
// that are not a net.Conn (so expose no addresses) all share the zero
// Path, which still works but shares one RTO estimate across them.
func (c *Client) path() Path {
	conn, ok := c.c.(net.Conn)
	if !ok {
		return Path{}
	}
	var source string
	if local := conn.LocalAddr(); local != nil {
		source = local.String()
	}
	return Path{Source: source, Target: conn.RemoteAddr().String()}
}

// clientTransaction represents transaction in progress.
// If transaction is succeed or failed, f will be called
// provided by event.
// Concurrent access is invalid.
type clientTransaction struct {
	id         transactionID
	attempt    int32
	h          Handler
	start      time.Time
	path       Path
	retransmit *retransmitState
	raw        []byte
}

var clientTransactionPool = &sync.Pool{
	New: func() interface{} {
		return &clientTransaction{
			raw: make([]byte, 1500),
		}
	},
}

func acquireClientTransaction() *clientTransaction {
	return clientTransactionPool.Get().(*clientTransaction)
}

func putClientTransaction(t *clientTransaction) {
	t.retransmit = nil
	clientTransactionPool.Put(t)
}

// nextTimeout schedules t's first wakeup (attempt 0) or its next
// retransmit wakeup, via the Retransmit algorithm's timeout-doubling,
// final Rm-multiplied wait, and MaxRTO clamp (R and X).
func (t *clientTransaction) nextTimeout(now time.Time) time.Time {
	if t.attempt == 0 {
		return t.retransmit.Init(now)
	}
	if d, ok := t.retransmit.Next(now); ok {
		return d
	}
	// The retransmit budget (RequestCount) agrees with maxAttempts by
	// default; if a caller configured them to disagree, fall back to
	// the last computed timeout rather than firing immediately.
	return now.Add(t.retransmit.LastTimeout())
}

// start registers transaction.
//
// Could return ErrClientClosed, ErrTransactionExists.
func (c *Client) start(t *clientTransaction) error {
	c.tMux.Lock()
	defer c.tMux.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	_, exists := c.t[t.id]
	if exists {
		return ErrTransactionExists
	}
	c.t[t.id] = t
	return nil
}

// Clock abstracts the source of current time.
type Clock interface {
	Now() time.Time
}

type systemClockService struct{}

func (systemClockService) Now() time.Time { return time.Now() }

var systemClock = systemClockService{}

// SetRTO sets the RTO value used to seed paths the RTO calculator has
// not yet sampled. It does not affect paths already tracked.
func (c *Client) SetRTO(rto time.Duration) {
	atomic.StoreInt64(&c.rto, int64(rto))
	c.rtoTable.SetInitialRTO(rto)
}

// StopErr occurs when Client fails to stop transaction while
// processing error.
type StopErr struct {
	Err   error // value returned by Stop()
	Cause error // error that caused Stop() call
}

func (e StopErr) Error() string {
	return fmt.Sprintf("error while stopping due to %s: %s",
		sprintErr(e.Cause), sprintErr(e.Err),
	)
}

// CloseErr indicates client close failure.
type CloseErr struct {
	AgentErr      error
	ConnectionErr error
}

func sprintErr(err error) string {
	if err == nil {
		return "<nil>"
	}
	return err.Error()
}

func (c CloseErr) Error() string {
	return fmt.Sprintf("failed to close: %s (connection), %s (agent)",
		sprintErr(c.ConnectionErr), sprintErr(c.AgentErr),
	)
}

func (c *Client) readUntilClosed() {
	defer c.wg.Done()
	m := new(Message)
	m.Raw = make([]byte, 1024)
	for {
		select {
		case <-c.close:
			return
		default:
		}
		_, err := m.ReadFrom(c.c)
		if err == nil {
			if pErr := c.a.Process(m); pErr == ErrAgentClosed {
				return
			}
		}
	}
}

func closedOrPanic(err error) {
	if err == nil || err == ErrAgentClosed {
		return
	}
	panic(err)
}

// collect is passed to the Collector as its periodic callback.
func (c *Client) collect(t time.Time) {
	closedOrPanic(c.a.Collect(t))
}

// ErrClientClosed indicates that client is closed.
var ErrClientClosed = errors.New("client is closed")

// Close stops internal connection, agent and collector, returning
// CloseErr on error. If the Collector fails to close, that error is
// returned directly instead of being wrapped in CloseErr, since it is
// unrelated to the agent/connection pair CloseErr describes.
func (c *Client) Close() error {
	if err := c.checkInit(); err != nil {
		return err
	}
	c.closedMux.Lock()
	if c.closed {
		c.closedMux.Unlock()
		return ErrClientClosed
	}
	c.closed = true
	c.closedMux.Unlock()

	if err := c.collector.Close(); err != nil {
		return err
	}

	agentErr := c.a.Close()
	var connErr error
	if c.closeConn {
		connErr = c.c.Close()
	}
	close(c.close)
	c.wg.Wait()

	if agentErr == nil && connErr == nil {
		return nil
	}
	return CloseErr{
		AgentErr:      agentErr,
		ConnectionErr: connErr,
	}
}

// Indicate sends indication m to server. Shorthand to Start call
// with zero deadline and callback.
func (c *Client) Indicate(m *Message) error {
	return c.Start(m, nil)
}

// callbackWaitHandler blocks on wait() call until callback is called.
type callbackWaitHandler struct {
	handler   Handler
	callback  func(event Event)
	cond      *sync.Cond
	processed bool
}

func (s *callbackWaitHandler) HandleEvent(e Event) {
	if s.callback == nil {
		panic("s.callback is nil")
	}
	s.callback(e)
	s.cond.L.Lock()
	s.processed = true
	s.cond.Broadcast()
	s.cond.L.Unlock()
}

func (s *callbackWaitHandler) wait() {
	s.cond.L.Lock()
	for !s.processed {
		s.cond.Wait()
	}
	s.cond.L.Unlock()
}

func (s *callbackWaitHandler) setCallback(f func(event Event)) {
	if f == nil {
		panic("f is nil")
	}
	s.callback = f
	if s.handler == nil {
		s.handler = s.HandleEvent
	}
}

func (s *callbackWaitHandler) reset() {
	s.processed = false
	s.callback = nil
}

var callbackWaitHandlerPool = sync.Pool{
	New: func() interface{} {
		return &callbackWaitHandler{
			cond: sync.NewCond(new(sync.Mutex)),
		}
	},
}

// ErrClientNotInitialized means that client connection or agent is nil.
var ErrClientNotInitialized = errors.New("client not initialized")

func (c *Client) checkInit() error {
	if c == nil || c.c == nil || c.a == nil || c.close == nil {
		return ErrClientNotInitialized
	}
	return nil
}

// Do is Start wrapper that waits until callback is called. If no callback
// provided, Indicate is called instead.
//
// Do has cpu overhead due to blocking, see BenchmarkClient_Do.
// Use Start method for less overhead.
func (c *Client) Do(m *Message, f func(Event)) error {
	if err := c.checkInit(); err != nil {
		return err
	}
	if f == nil {
		return c.Indicate(m)
	}
	h := callbackWaitHandlerPool.Get().(*callbackWaitHandler)
	h.setCallback(f)
	defer func() {
		h.reset()
		callbackWaitHandlerPool.Put(h)
	}()
	if err := c.Start(m, h.handler); err != nil {
		return err
	}
	h.wait()
	return nil
}

func (c *Client) delete(id transactionID) {
	c.tMux.Lock()
	if c.t != nil {
		t, ok := c.t[id]
		if ok {
			putClientTransaction(t)
		}
		delete(c.t, id)
	}
	c.tMux.Unlock()
}

func (c *Client) handleAgentCallback(e Event) {
	c.closedMux.RLock()
	closed := c.closed
	c.closedMux.RUnlock()
	if closed {
		return
	}
	c.tMux.Lock()
	if c.t == nil {
		c.tMux.Unlock()
		return
	}
	t, found := c.t[e.TransactionID]
	if found {
		delete(c.t, t.id)
	}
	c.tMux.Unlock()
	if !found {
		if c.handler != nil {
			c.handler(e)
		}
		// Ignoring.
		return
	}
	h := t.h

	if atomic.LoadInt32(&c.maxAttempts) < t.attempt || e.Error == nil {
		// Transaction completed. Feed the sample back into the RTO
		// calculator: a clean round trip (t.attempt == 0) updates the
		// SRTT/RTTVAR smoothing, while one that needed a retransmit
		// can only record a Karn backoff, since a response at this
		// point cannot be attributed to any single send.
		now := c.clock.Now()
		if e.Error == nil {
			if t.attempt == 0 {
				c.rtoTable.NewRTT(now, t.path, now.Sub(t.start))
			} else {
				c.rtoTable.Backoff(now, t.path, t.retransmit.LastTimeout())
			}
		}
		putClientTransaction(t)
		h(e)
		return
	}

	// Doing re-transmission.
	t.attempt++
	if err := c.start(t); err != nil {
		putClientTransaction(t)
		e.Error = err
		h(e)
		return
	}

	// Starting transaction in agent.
	now := c.clock.Now()
	c.closedMux.RLock()
	closed = c.closed
	c.closedMux.RUnlock()
	if closed {
		c.delete(t.id)
		e.Error = ErrClientClosed
		h(e)
		return
	}
	d := t.nextTimeout(now)
	if err := c.a.Start(t.id, d); err != nil {
		c.delete(t.id)
		e.Error = err
		h(e)
		return
	}

	// Writing message to connection again.
	_, err := c.c.Write(t.raw)
	if err != nil {
		c.delete(t.id)
		e.Error = err

		// Stopping transaction instead of waiting until deadline.
		if stopErr := c.a.Stop(t.id); stopErr != nil {
			e.Error = StopErr{
				Err:   stopErr,
				Cause: err,
			}
		}
		h(e)
		return
	}
}

// Start starts transaction (if h set) and writes message to server, handler
// is called asynchronously.
func (c *Client) Start(m *Message, h Handler) error {
	if err := c.checkInit(); err != nil {
		return err
	}
	c.closedMux.RLock()
	closed := c.closed
	c.closedMux.RUnlock()
	if closed {
		return ErrClientClosed
	}
	if h != nil {
		// Starting transaction only if h is set. Useful for indications.
		t := acquireClientTransaction()
		t.id = m.TransactionID
		t.start = c.clock.Now()
		t.h = h
		t.path = c.path()
		t.retransmit = newRetransmitState(c.retransmit, c.rtoTable.RTO(t.path))
		t.attempt = 0
		t.raw = append(t.raw[:0], m.Raw...)
		d := t.nextTimeout(t.start)
		if err := c.start(t); err != nil {
			return err
		}
		if err := c.a.Start(m.TransactionID, d); err != nil {
			return err
		}
	}
	_, err := m.WriteTo(c.c)
	if err != nil && h != nil {
		c.delete(m.TransactionID)
		// Stopping transaction instead of waiting until deadline.
		if stopErr := c.a.Stop(m.TransactionID); stopErr != nil {
			return StopErr{
				Err:   stopErr,
				Cause: err,
			}
		}
	}
	return err
}
