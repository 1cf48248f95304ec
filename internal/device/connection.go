package device

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hollowgate/irfleet-core/internal/gcprotocol"
)

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// State is a Connection's position in the lifecycle state machine of
// §4.3: Disconnected, Connecting, Ready, Draining, Faulted.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateReady
	StateDraining
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateDraining:
		return "draining"
	case StateFaulted:
		return "faulted"
	default:
		return "disconnected"
	}
}

const (
	initialBackoff        = 1 * time.Second
	maxBackoff            = 60 * time.Second
	backoffJitterFraction = 0.2

	defaultConnectTimeout = 5 * time.Second
	defaultQueryTimeout   = 5 * time.Second
	defaultQueueSize      = 16

	consecutiveTimeoutsToFault = 3

	drainDeadline = 5 * time.Second
)

// Config configures one Device Connection: a single TCP socket to one
// (DeviceEndpoint, module, port) logical address.
type Config struct {
	Host           string
	TCPPort        int // default 4998
	Module         int
	Port           int
	ConnectTimeout time.Duration // default 5s
	QueueSize      int           // default 16
	Logger         *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.TCPPort == 0 {
		c.TCPPort = 4998
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

func (c Config) address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.TCPPort)
}

// Result is the outcome of one submitted command.
type Result struct {
	Frame gcprotocol.Frame
	Err   error
}

type outboundCmd struct {
	line     string
	id       int // 0 for id-less queries (getdevices, get_IRL, getversion)
	deadline time.Time
	resultCh chan Result
}

// Connection is one logical device connection: it owns a TCP socket,
// serializes outbound commands through a FIFO queue, correlates
// responses by request id, tracks health, and reconnects with backoff
// on link loss. Safe for concurrent use.
type Connection struct {
	cfg   Config
	idGen *gcprotocol.IDCounter
	queue chan outboundCmd
	done  *closeOnce
	wg    sync.WaitGroup

	stateMu sync.RWMutex
	state   State

	connMu sync.Mutex
	conn   net.Conn

	pendingMu    sync.Mutex
	pending      map[int]chan Result
	pendingQuery []chan Result

	model atomic.Int32 // Model

	lastOKAt            atomic.Int64 // unix nanos
	consecutiveFailures atomic.Int32
	consecutiveTimeouts atomic.Int32
	lastErr             atomic.Value // *error
}

// NewConnection builds a Connection in the Disconnected state. Call
// Open to start dialing.
func NewConnection(cfg Config) *Connection {
	cfg = cfg.withDefaults()
	c := &Connection{
		cfg:          cfg,
		idGen:        gcprotocol.NewIDCounter(),
		queue:        make(chan outboundCmd, cfg.QueueSize),
		done:         newCloseOnce(),
		pending:      make(map[int]chan Result),
		pendingQuery: make([]chan Result, 0, 4),
	}
	c.model.Store(int32(ModelITach))
	return c
}

// Open starts the connect-and-serve supervisor loop in the background
// and blocks until the first connection attempt resolves (Ready or a
// single Faulted outcome); subsequent reconnects happen silently.
func (c *Connection) Open(ctx context.Context) error {
	first := make(chan error, 1)
	c.wg.Add(1)
	go c.supervise(ctx, first)
	select {
	case err := <-first:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Connection) supervise(ctx context.Context, first chan<- error) {
	defer c.wg.Done()

	backoff := initialBackoff
	reportedFirst := false
	reportFirst := func(err error) {
		if !reportedFirst {
			reportedFirst = true
			first <- err
		}
	}

	for {
		if c.isClosed() {
			return
		}

		c.setState(StateConnecting)
		conn, err := c.dial(ctx)
		if err != nil {
			c.setState(StateFaulted)
			c.recordError(err)
			reportFirst(err)

			if !c.sleepBackoff(backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}

		backoff = initialBackoff
		c.setState(StateReady)
		reportFirst(nil)

		c.runSession(conn)

		if c.isClosed() {
			return
		}
		// session ended due to link loss or a fault; wait out the
		// connection's own backoff window before redialing.
		if !c.sleepBackoff(backoff) {
			return
		}
	}
}

func (c *Connection) dial(ctx context.Context) (net.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(dialCtx, "tcp", c.cfg.address())
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrLinkLost, c.cfg.address(), err)
	}
	return conn, nil
}

func nextBackoff(cur time.Duration) time.Duration {
	next := cur * 2
	if next > maxBackoff {
		next = maxBackoff
	}
	return next
}

func jittered(d time.Duration) time.Duration {
	jitter := float64(d) * backoffJitterFraction
	delta := (rand.Float64()*2 - 1) * jitter
	return time.Duration(float64(d) + delta)
}

func (c *Connection) sleepBackoff(d time.Duration) bool {
	select {
	case <-time.After(jittered(d)):
		return true
	case <-c.done.Done():
		return false
	}
}

// runSession owns one TCP socket generation: a writer goroutine drains
// the outbound queue and a reader goroutine parses inbound lines. It
// blocks until the socket fails, the connection is closed, or draining
// completes.
func (c *Connection) runSession(conn net.Conn) {
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	sessionDone := make(chan struct{})
	readErr := make(chan error, 1)

	go c.readLoop(conn, readErr, sessionDone)
	c.writeLoop(conn, readErr, sessionDone)

	close(sessionDone)
	conn.Close()

	c.connMu.Lock()
	c.conn = nil
	c.connMu.Unlock()
}

func (c *Connection) writeLoop(conn net.Conn, readErr <-chan error, sessionDone <-chan struct{}) {
	for {
		select {
		case <-c.done.Done():
			c.drainQueue(ErrClosed)
			return
		case err := <-readErr:
			c.handleSessionFailure(err)
			return
		case cmd := <-c.queue:
			c.serve(conn, cmd, readErr)
			if c.consecutiveTimeouts.Load() >= consecutiveTimeoutsToFault {
				c.handleSessionFailure(fmt.Errorf("%w: %d consecutive timeouts", ErrTimeout, consecutiveTimeoutsToFault))
				return
			}
		}
	}
}

func (c *Connection) serve(conn net.Conn, cmd outboundCmd, readErr <-chan error) {
	notify := make(chan Result, 1)
	if cmd.id != 0 {
		c.registerPending(cmd.id, notify)
	} else {
		c.registerQuery(notify)
	}

	if err := conn.SetWriteDeadline(time.Now().Add(defaultConnectTimeout)); err != nil {
		c.unregister(cmd.id)
		cmd.resultCh <- Result{Err: fmt.Errorf("%w: %w", ErrLinkLost, err)}
		return
	}
	if _, err := conn.Write([]byte(cmd.line)); err != nil {
		c.unregister(cmd.id)
		cmd.resultCh <- Result{Err: fmt.Errorf("%w: %w", ErrLinkLost, err)}
		return
	}

	timer := time.NewTimer(time.Until(cmd.deadline))
	defer timer.Stop()

	select {
	case res := <-notify:
		if res.Err != nil {
			c.consecutiveTimeouts.Store(0)
			c.consecutiveFailures.Add(1)
		} else {
			c.consecutiveTimeouts.Store(0)
			c.consecutiveFailures.Store(0)
			c.lastOKAt.Store(time.Now().UnixNano())
		}
		cmd.resultCh <- res
	case <-timer.C:
		c.unregister(cmd.id)
		c.consecutiveTimeouts.Add(1)
		c.consecutiveFailures.Add(1)
		c.recordError(ErrTimeout)
		cmd.resultCh <- Result{Err: ErrTimeout}
	case <-readErr:
		c.unregister(cmd.id)
		cmd.resultCh <- Result{Err: ErrLinkLost}
	case <-c.done.Done():
		c.unregister(cmd.id)
		cmd.resultCh <- Result{Err: ErrClosed}
	}
}

func (c *Connection) readLoop(conn net.Conn, readErr chan<- error, sessionDone <-chan struct{}) {
	scanner := bufio.NewScanner(conn)
	scanner.Split(scanLinesCR)

	for scanner.Scan() {
		line := scanner.Text()
		frame, err := gcprotocol.ParseLine(line)
		if err != nil {
			c.cfg.Logger.Warn("malformed frame from device", "line", line, "error", err)
			continue
		}
		c.dispatchFrame(frame)
	}

	err := scanner.Err()
	if err == nil {
		err = fmt.Errorf("%w: connection closed by peer", ErrLinkLost)
	}
	select {
	case readErr <- err:
	case <-sessionDone:
	}
}

// scanLinesCR splits on the Global Caché \r line terminator instead of
// bufio.ScanLines' \n.
func scanLinesCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, b := range data {
		if b == '\r' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func (c *Connection) dispatchFrame(frame gcprotocol.Frame) {
	switch frame.Kind {
	case gcprotocol.FrameCompleteIR:
		c.completePending(frame.ID, Result{Frame: frame})
	case gcprotocol.FrameBusyIR:
		// Informational: the prior id is still in flight. The writer's
		// deadline already accounts for full playback duration, so we
		// simply let it keep waiting.
		c.cfg.Logger.Debug("device busy", "module", frame.Module, "port", frame.Port, "id", frame.ID)
	case gcprotocol.FrameError:
		devErr := &gcprotocol.DeviceError{Code: frame.Code}
		if frame.ID != 0 {
			c.completePending(frame.ID, Result{Err: devErr})
		} else {
			c.completeOldestQuery(Result{Err: devErr})
		}
	default:
		// getversion replies (and anything else with no fixed shape)
		// classify as FrameUnknown; sniff the raw text for a model hint.
		if frame.Kind == gcprotocol.FrameUnknown {
			if m := detectModel(frame.Raw); m != ModelUnknown {
				c.model.Store(int32(m))
			}
		}
		c.completeOldestQuery(Result{Frame: frame})
	}
}

func (c *Connection) registerPending(id int, notify chan Result) {
	c.pendingMu.Lock()
	c.pending[id] = notify
	c.pendingMu.Unlock()
}

func (c *Connection) registerQuery(notify chan Result) {
	c.pendingMu.Lock()
	c.pendingQuery = append(c.pendingQuery, notify)
	c.pendingMu.Unlock()
}

func (c *Connection) unregister(id int) {
	if id == 0 {
		return
	}
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

func (c *Connection) completePending(id int, res Result) {
	c.pendingMu.Lock()
	notify, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()
	if ok {
		notify <- res
	}
}

func (c *Connection) completeOldestQuery(res Result) {
	c.pendingMu.Lock()
	var notify chan Result
	if len(c.pendingQuery) > 0 {
		notify = c.pendingQuery[0]
		c.pendingQuery = c.pendingQuery[1:]
	}
	c.pendingMu.Unlock()
	if notify != nil {
		notify <- res
	}
}

// handleSessionFailure cancels every outstanding request with LinkLost
// and ends the current session so the supervisor redials.
func (c *Connection) handleSessionFailure(err error) {
	c.setState(StateFaulted)
	c.recordError(err)

	c.pendingMu.Lock()
	pending := c.pending
	c.pending = make(map[int]chan Result)
	queries := c.pendingQuery
	c.pendingQuery = nil
	c.pendingMu.Unlock()

	for _, notify := range pending {
		notify <- Result{Err: ErrLinkLost}
	}
	for _, notify := range queries {
		notify <- Result{Err: ErrLinkLost}
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.connMu.Unlock()
}

func (c *Connection) drainQueue(err error) {
	for {
		select {
		case cmd := <-c.queue:
			cmd.resultCh <- Result{Err: err}
		default:
			return
		}
	}
}

// SendIR submits a sendir command and waits for completion or deadline.
func (c *Connection) SendIR(ctx context.Context, s gcprotocol.SendIR) (gcprotocol.Frame, error) {
	return c.SendIRWithID(ctx, c.idGen.Next(), s)
}

// NextID allocates a request id without sending anything. Used by the
// continuous-burst fallback so every burst in one logical hold shares
// a single id, matching the device's expectation that a continuous-IR
// sequence is literally identical commands repeated.
func (c *Connection) NextID() int {
	return c.idGen.Next()
}

// SendIRWithID submits a sendir command under a caller-supplied id and
// waits for completion or deadline.
func (c *Connection) SendIRWithID(ctx context.Context, id int, s gcprotocol.SendIR) (gcprotocol.Frame, error) {
	s.ID = id
	line := gcprotocol.BuildSendIR(s)
	return c.submitAndWait(ctx, line, id, sendIRDeadline(s))
}

// SendIRAsync submits a sendir command without waiting for completion;
// used by the continuous-burst fallback for every burst except the
// final, awaited one. The caller may discard the returned channel.
func (c *Connection) SendIRAsync(id int, s gcprotocol.SendIR, deadline time.Time) (chan Result, error) {
	s.ID = id
	line := gcprotocol.BuildSendIR(s)
	return c.submit(line, id, deadline)
}

func sendIRDeadline(s gcprotocol.SendIR) time.Time {
	baseMs := 0.0
	for _, d := range s.Durations {
		baseMs += float64(d)
	}
	baseMs = baseMs / s.FreqHz * 1000
	total := time.Duration(baseMs*float64(s.Repeat)) * time.Millisecond
	return time.Now().Add(total + 2*time.Second)
}

// StopIR issues stopir, cancelling any ongoing repeat on this port.
func (c *Connection) StopIR(ctx context.Context) error {
	line := gcprotocol.BuildStopIR(c.cfg.Module, c.cfg.Port)
	_, err := c.submitAndWait(ctx, line, 0, time.Now().Add(defaultQueryTimeout))
	return err
}

// Query issues an id-less informational command (getdevices, get_IRL,
// getversion,0) and returns its matching response frame.
func (c *Connection) Query(ctx context.Context, line string) (gcprotocol.Frame, error) {
	return c.submitAndWait(ctx, line, 0, time.Now().Add(defaultQueryTimeout))
}

// HealthCheck issues getversion,0 and expects a response within 2s.
func (c *Connection) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	_, err := c.Query(ctx, gcprotocol.BuildGetVersion())
	return err
}

func (c *Connection) submitAndWait(ctx context.Context, line string, id int, deadline time.Time) (gcprotocol.Frame, error) {
	resultCh, err := c.submit(line, id, deadline)
	if err != nil {
		return gcprotocol.Frame{}, err
	}
	select {
	case res := <-resultCh:
		return res.Frame, res.Err
	case <-ctx.Done():
		// Abandon the wait; complete the pending entry so the writer
		// stops waiting on it and a late response for this id is dropped.
		c.completePending(id, Result{Err: ctx.Err()})
		if id != 0 {
			c.bestEffortStopIR()
		}
		return gcprotocol.Frame{}, ctx.Err()
	}
}

// bestEffortStopIR writes stopir directly to the socket, bypassing the
// outbound queue, when a caller abandons an in-flight sendir. Errors
// are ignored: this is a courtesy to the device, not a guarantee.
func (c *Connection) bestEffortStopIR() {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
	_, _ = conn.Write([]byte(gcprotocol.BuildStopIR(c.cfg.Module, c.cfg.Port)))
}

func (c *Connection) submit(line string, id int, deadline time.Time) (chan Result, error) {
	if c.State() != StateReady {
		return nil, ErrNotReady
	}
	resultCh := make(chan Result, 1)
	cmd := outboundCmd{line: line, id: id, deadline: deadline, resultCh: resultCh}
	select {
	case c.queue <- cmd:
		return resultCh, nil
	default:
		return nil, ErrDeviceBusy
	}
}

// Close transitions the connection through Draining and releases the
// socket. Safe to call multiple times.
func (c *Connection) Close(_ context.Context) error {
	c.setState(StateDraining)

	deadline := time.Now().Add(drainDeadline)
	for len(c.queue) > 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}

	c.done.Close()
	c.wg.Wait()
	c.setState(StateDisconnected)
	return nil
}

func (c *Connection) isClosed() bool {
	select {
	case <-c.done.Done():
		return true
	default:
		return false
	}
}

func (c *Connection) setState(s State) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

func (c *Connection) recordError(err error) {
	// Boxed so every Store uses the same concrete type, whatever the
	// dynamic type of err.
	c.lastErr.Store(&err)
}

// Model returns the detected Global Caché hardware model.
func (c *Connection) Model() Model {
	return Model(c.model.Load())
}

// Health returns a snapshot of the connection's operational status.
func (c *Connection) Health() HealthRecord {
	var lastErr error
	if v, ok := c.lastErr.Load().(*error); ok {
		lastErr = *v
	}
	return HealthRecord{
		State:            c.State(),
		LastOKAt:         time.Unix(0, c.lastOKAt.Load()),
		ConsecutiveFails: int(c.consecutiveFailures.Load()),
		LastErrorKind:    lastErr,
		Model:            c.Model(),
	}
}
