// Package xrpl implements the resilient WebSocket client used to talk to an
// XRP Ledger node. The Supervisor owns a single long-lived connection,
// reconnects with capped exponential backoff, replays tracked subscribe
// requests after every reconnect, and fans inbound frames out to registered
// callbacks. The Tracker layered on top keeps the logical set of desired
// subscriptions and issues subscribe/unsubscribe requests idempotently.
package xrpl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotConnected is returned by Send and Request when no transport is open.
// Callers decide whether to retry; nothing is queued.
var ErrNotConnected = errors.New("not connected to XRPL node")

// ConnectionState describes the supervisor's connection lifecycle.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// StateFrameType is the type tag of the synthetic frames the supervisor
// dispatches on every state transition. It cannot collide with protocol
// frames, which use camelCase tags like "ledgerClosed".
const StateFrameType = "connection_state"

// Request is a loosely typed outbound request envelope. The wire protocol
// distinguishes requests by a "command" field.
type Request map[string]any

// Response is a correlated reply to a Request.
type Response struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	Type         string          `json:"type"`
	Result       json.RawMessage `json:"result"`
	Error        string          `json:"error"`
	ErrorMessage string          `json:"error_message"`
}

// MessageCallback receives every inbound frame, including synthetic
// connection state frames. Callbacks run sequentially on the read loop
// goroutine in registration order.
type MessageCallback func(frame []byte)

// SleepFunc suspends for the given duration or until the context is
// cancelled. Injectable so backoff behavior is testable without real delays.
type SleepFunc func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

const (
	// DefaultInitialReconnectDelay is the backoff after the first failure.
	DefaultInitialReconnectDelay = 1 * time.Second
	// DefaultMaxReconnectDelay caps the exponential backoff.
	DefaultMaxReconnectDelay = 30 * time.Second
)

// SupervisorConfig configures a Supervisor. Zero values select defaults.
type SupervisorConfig struct {
	URL                   string
	InitialReconnectDelay time.Duration
	MaxReconnectDelay     time.Duration

	// Dial and Sleep may be overridden in tests.
	Dial  Dialer
	Sleep SleepFunc
}

// Supervisor owns a single WebSocket connection to an XRPL node and keeps it
// alive. All state transitions are announced to registered callbacks as
// synthetic frames, so consumers never need to poll connectivity.
type Supervisor struct {
	url   string
	dial  Dialer
	sleep SleepFunc

	initialDelay time.Duration
	maxDelay     time.Duration

	mu      sync.Mutex // guards conn, state, delay, replay, pending
	conn    Transport
	state   ConnectionState
	delay   time.Duration // next reconnect delay, explicit backoff state
	replay  []Request
	pending map[string]chan *Response

	cbMu      sync.RWMutex
	callbacks []MessageCallback

	stopOnce sync.Once
	stop     chan struct{}
}

// NewSupervisor creates a supervisor for the given node. It does not connect;
// call Run to start the supervision loop.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	if cfg.InitialReconnectDelay <= 0 {
		cfg.InitialReconnectDelay = DefaultInitialReconnectDelay
	}
	if cfg.MaxReconnectDelay <= 0 {
		cfg.MaxReconnectDelay = DefaultMaxReconnectDelay
	}
	if cfg.Dial == nil {
		cfg.Dial = DialWebsocket
	}
	if cfg.Sleep == nil {
		cfg.Sleep = defaultSleep
	}

	return &Supervisor{
		url:          cfg.URL,
		dial:         cfg.Dial,
		sleep:        cfg.Sleep,
		initialDelay: cfg.InitialReconnectDelay,
		maxDelay:     cfg.MaxReconnectDelay,
		state:        StateDisconnected,
		delay:        cfg.InitialReconnectDelay,
		pending:      make(map[string]chan *Response),
		stop:         make(chan struct{}),
	}
}

// State returns the current connection state.
func (s *Supervisor) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OnMessage registers a callback for inbound frames. Frames are delivered to
// all callbacks in registration order; a panicking callback is logged and
// does not prevent delivery to the rest.
func (s *Supervisor) OnMessage(cb MessageCallback) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.callbacks = append(s.callbacks, cb)
}

// Run drives the connect/read/reconnect loop until Stop is called or the
// context is cancelled. Connectivity failures are absorbed here; they surface
// only as state change frames.
func (s *Supervisor) Run(ctx context.Context) error {
	s.resetBackoff()

	for {
		if s.stopped(ctx) {
			break
		}

		err := s.connectOnce(ctx)
		if s.stopped(ctx) {
			break
		}
		if err != nil {
			log.Printf("xrpl: connection lost: %v", err)
		}

		s.setState(StateReconnecting)
		if s.sleep(ctx, s.nextDelay()) != nil {
			break
		}
	}

	s.setState(StateDisconnected)
	return nil
}

// Stop shuts the supervisor down. It is idempotent and unblocks an in-flight
// read by closing the live transport.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (s *Supervisor) stopped(ctx context.Context) bool {
	return s.stopRequested() || ctx.Err() != nil
}

func (s *Supervisor) stopRequested() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// connectOnce establishes a single connection and reads frames until the
// transport fails or the supervisor is stopped.
func (s *Supervisor) connectOnce(ctx context.Context) error {
	s.setState(StateConnecting)

	conn, err := s.dial(ctx, s.url)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.state = StateConnected
	s.delay = s.initialDelay // successful connection resets backoff
	replay := make([]Request, len(s.replay))
	copy(replay, s.replay)
	s.mu.Unlock()

	s.dispatch(stateFrame(StateConnected))
	s.replayRequests(conn, replay)

	readErr := s.readLoop(conn)

	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	waiters := s.pending
	s.pending = make(map[string]chan *Response)
	s.mu.Unlock()

	conn.Close()

	// Outstanding requesters must not hang on a dead transport.
	for _, ch := range waiters {
		close(ch)
	}

	return readErr
}

// replayRequests reissues the tracked subscribe requests verbatim on a fresh
// connection. The remote node has no memory of the prior session.
func (s *Supervisor) replayRequests(conn Transport, replay []Request) {
	for _, req := range replay {
		if err := conn.WriteJSON(req); err != nil {
			log.Printf("xrpl: subscription replay failed: %v", err)
			return
		}
	}
}

func (s *Supervisor) readLoop(conn Transport) error {
	for {
		frame, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if s.stopRequested() {
			return nil
		}
		if !s.deliverResponse(frame) {
			s.dispatch(frame)
		}
	}
}

// deliverResponse routes a frame carrying a known request id to its waiter.
// It reports whether the frame was consumed.
func (s *Supervisor) deliverResponse(frame []byte) bool {
	var resp Response
	if err := json.Unmarshal(frame, &resp); err != nil || resp.ID == "" {
		return false
	}

	s.mu.Lock()
	ch, ok := s.pending[resp.ID]
	if ok {
		delete(s.pending, resp.ID)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	ch <- &resp
	return true
}

// Send delivers a fire-and-forget request. When trackReplay is set, the
// request is remembered and reissued verbatim after every future reconnect.
// Fails immediately with ErrNotConnected when no transport is open.
func (s *Supervisor) Send(req Request, trackReplay bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || s.state != StateConnected {
		return ErrNotConnected
	}
	if trackReplay {
		s.replay = append(s.replay, req)
	}
	return s.conn.WriteJSON(req)
}

// Request performs a correlated request/response exchange. The request is
// assigned a fresh id; the matching response frame is routed back to the
// caller instead of the message callbacks. Fails immediately with
// ErrNotConnected when no transport is open.
func (s *Supervisor) Request(ctx context.Context, req Request) (*Response, error) {
	id := uuid.NewString()

	wire := make(Request, len(req)+1)
	for k, v := range req {
		wire[k] = v
	}
	wire["id"] = id

	ch := make(chan *Response, 1)

	s.mu.Lock()
	if s.conn == nil || s.state != StateConnected {
		s.mu.Unlock()
		return nil, ErrNotConnected
	}
	s.pending[id] = ch
	err := s.conn.WriteJSON(wire)
	if err != nil {
		delete(s.pending, id)
	}
	s.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			// Transport dropped before the response arrived.
			return nil, ErrNotConnected
		}
		if resp.Status == "error" {
			return resp, fmt.Errorf("request failed: %s (%s)", resp.Error, resp.ErrorMessage)
		}
		return resp, nil
	case <-ctx.Done():
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		return nil, ctx.Err()
	}
}

// ClearReplay drops all replay-tracked requests. Used by the subscription
// tracker when everything is unsubscribed.
func (s *Supervisor) ClearReplay() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replay = nil
}

// ReplayCount returns the number of replay-tracked requests.
func (s *Supervisor) ReplayCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replay)
}

func (s *Supervisor) setState(next ConnectionState) {
	s.mu.Lock()
	if s.state == next {
		s.mu.Unlock()
		return
	}
	s.state = next
	s.mu.Unlock()

	s.dispatch(stateFrame(next))
}

func stateFrame(state ConnectionState) []byte {
	frame, _ := json.Marshal(map[string]string{
		"type":  StateFrameType,
		"state": state.String(),
	})
	return frame
}

// nextDelay returns the current backoff delay and doubles it for the next
// consecutive failure, capped at the configured maximum.
func (s *Supervisor) nextDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.delay
	s.delay *= 2
	if s.delay > s.maxDelay {
		s.delay = s.maxDelay
	}
	return d
}

func (s *Supervisor) resetBackoff() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = s.initialDelay
}

// dispatch delivers a frame to every registered callback in order. Callback
// panics are isolated so one misbehaving consumer cannot starve the rest or
// abort the read loop.
func (s *Supervisor) dispatch(frame []byte) {
	s.cbMu.RLock()
	callbacks := make([]MessageCallback, len(s.callbacks))
	copy(callbacks, s.callbacks)
	s.cbMu.RUnlock()

	for _, cb := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("xrpl: message callback panicked: %v", r)
				}
			}()
			cb(frame)
		}()
	}
}
