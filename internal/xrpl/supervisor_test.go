// Package xrpl tests exercise the connection supervisor and subscription
// tracker against scripted in-memory transports: reconnect backoff, replay
// of tracked subscriptions, dispatch ordering, and correlated requests.
package xrpl

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeTransport is a scripted in-memory Transport. Frames pushed via push
// are returned from ReadMessage; Close unblocks a pending read.
type fakeTransport struct {
	mu        sync.Mutex
	writes    []Request
	onWrite   func(req Request)
	inbound   chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbound: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (f *fakeTransport) ReadMessage() ([]byte, error) {
	select {
	case frame := <-f.inbound:
		return frame, nil
	case <-f.closed:
		return nil, errors.New("transport closed")
	}
}

func (f *fakeTransport) WriteJSON(v any) error {
	select {
	case <-f.closed:
		return errors.New("transport closed")
	default:
	}

	// Round-trip through JSON so recorded requests match the wire shape.
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return err
	}

	f.mu.Lock()
	f.writes = append(f.writes, req)
	onWrite := f.onWrite
	f.mu.Unlock()

	if onWrite != nil {
		onWrite(req)
	}
	return nil
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) push(frame []byte) {
	f.inbound <- frame
}

func (f *fakeTransport) requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Request, len(f.writes))
	copy(out, f.writes)
	return out
}

// fakeDialer fails the first failures dials, then hands out fresh fake
// transports, announcing each on the conns channel.
type fakeDialer struct {
	mu       sync.Mutex
	failures int
	conns    chan *fakeTransport
}

func newFakeDialer(failures int) *fakeDialer {
	return &fakeDialer{failures: failures, conns: make(chan *fakeTransport, 8)}
}

func (d *fakeDialer) dial(_ context.Context, _ string) (Transport, error) {
	d.mu.Lock()
	if d.failures > 0 {
		d.failures--
		d.mu.Unlock()
		return nil, errors.New("connection refused")
	}
	d.mu.Unlock()

	t := newFakeTransport()
	d.conns <- t
	return t, nil
}

// recordingSleeper hands each backoff delay to the test instead of sleeping.
type recordingSleeper struct {
	delays chan time.Duration
}

func newRecordingSleeper() *recordingSleeper {
	return &recordingSleeper{delays: make(chan time.Duration)}
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	select {
	case r.delays <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func instantSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func waitForState(t *testing.T, sup *Supervisor, want ConnectionState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sup.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("supervisor never reached state %v (still %v)", want, sup.State())
}

func waitForConn(t *testing.T, d *fakeDialer) *fakeTransport {
	t.Helper()
	select {
	case conn := <-d.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("no connection established")
		return nil
	}
}

func nextDelayRecorded(t *testing.T, s *recordingSleeper) time.Duration {
	t.Helper()
	select {
	case d := <-s.delays:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("no backoff sleep observed")
		return 0
	}
}

func TestBackoffSequenceCapped(t *testing.T) {
	dialer := newFakeDialer(100) // never succeeds
	sleeper := newRecordingSleeper()

	sup := NewSupervisor(SupervisorConfig{
		URL:                   "ws://test",
		InitialReconnectDelay: 1 * time.Second,
		MaxReconnectDelay:     30 * time.Second,
		Dial:                  dialer.dial,
		Sleep:                 sleeper.sleep,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(done)
	}()

	want := []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 30 * time.Second, 30 * time.Second, 30 * time.Second,
	}
	for i, w := range want {
		if got := nextDelayRecorded(t, sleeper); got != w {
			t.Errorf("delay[%d] = %v, want %v", i, got, w)
		}
	}

	cancel()
	<-done
}

func TestBackoffResetsOnSuccess(t *testing.T) {
	dialer := newFakeDialer(2)
	sleeper := newRecordingSleeper()

	sup := NewSupervisor(SupervisorConfig{
		URL:   "ws://test",
		Dial:  dialer.dial,
		Sleep: sleeper.sleep,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	if got := nextDelayRecorded(t, sleeper); got != 1*time.Second {
		t.Errorf("first delay = %v, want 1s", got)
	}
	if got := nextDelayRecorded(t, sleeper); got != 2*time.Second {
		t.Errorf("second delay = %v, want 2s", got)
	}

	// Third dial succeeds, which must reset the backoff.
	conn := waitForConn(t, dialer)
	waitForState(t, sup, StateConnected)
	conn.Close()

	if got := nextDelayRecorded(t, sleeper); got != 1*time.Second {
		t.Errorf("delay after successful connection = %v, want 1s", got)
	}
}

func TestSendAndRequestFailFastWhenDisconnected(t *testing.T) {
	sup := NewSupervisor(SupervisorConfig{URL: "ws://test"})

	if err := sup.Send(Request{"command": "ping"}, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send while disconnected = %v, want ErrNotConnected", err)
	}

	start := time.Now()
	_, err := sup.Request(context.Background(), Request{"command": "ping"})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Request while disconnected = %v, want ErrNotConnected", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Request blocked for %v instead of failing fast", elapsed)
	}
}

func TestDispatchOrderAndPanicIsolation(t *testing.T) {
	dialer := newFakeDialer(0)
	sup := NewSupervisor(SupervisorConfig{
		URL:   "ws://test",
		Dial:  dialer.dial,
		Sleep: instantSleep,
	})

	var mu sync.Mutex
	var first, second []string

	record := func(dst *[]string) MessageCallback {
		return func(frame []byte) {
			var env struct {
				Type string `json:"type"`
				Tag  string `json:"tag"`
			}
			if json.Unmarshal(frame, &env) != nil || env.Type != "test" {
				return
			}
			mu.Lock()
			*dst = append(*dst, env.Tag)
			mu.Unlock()
		}
	}

	sup.OnMessage(record(&first))
	sup.OnMessage(func(frame []byte) {
		panic("consumer bug")
	})
	sup.OnMessage(record(&second))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	conn := waitForConn(t, dialer)
	waitForState(t, sup, StateConnected)

	conn.push([]byte(`{"type":"test","tag":"a"}`))
	conn.push([]byte(`{"type":"test","tag":"b"}`))
	conn.push([]byte(`{"type":"test","tag":"c"}`))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(second)
		mu.Unlock()
		if n == 3 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, got := range [][]string{first, second} {
		if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
			t.Errorf("callback saw %v, want [a b c]", got)
		}
	}
}

func TestRequestCorrelation(t *testing.T) {
	dialer := newFakeDialer(0)
	sup := NewSupervisor(SupervisorConfig{
		URL:   "ws://test",
		Dial:  dialer.dial,
		Sleep: instantSleep,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	conn := waitForConn(t, dialer)
	waitForState(t, sup, StateConnected)

	conn.mu.Lock()
	conn.onWrite = func(req Request) {
		if req["command"] != "ping" {
			return
		}
		frame, _ := json.Marshal(map[string]any{
			"id":     req["id"],
			"status": "success",
			"type":   "response",
			"result": map[string]any{"role": "ping"},
		})
		conn.push(frame)
	}
	conn.mu.Unlock()

	resp, err := sup.Request(context.Background(), Request{"command": "ping"})
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.Status != "success" {
		t.Errorf("response status = %q, want success", resp.Status)
	}
	var result struct {
		Role string `json:"role"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil || result.Role != "ping" {
		t.Errorf("unexpected result payload: %s", resp.Result)
	}
}

func TestRequestFailsWhenTransportDrops(t *testing.T) {
	dialer := newFakeDialer(0)
	sup := NewSupervisor(SupervisorConfig{
		URL:   "ws://test",
		Dial:  dialer.dial,
		Sleep: instantSleep,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	conn := waitForConn(t, dialer)
	waitForState(t, sup, StateConnected)

	errCh := make(chan error, 1)
	go func() {
		_, err := sup.Request(context.Background(), Request{"command": "ledger"})
		errCh <- err
	}()

	// Give the request a moment to register its waiter, then kill the
	// transport. The waiter must be failed, not left hanging.
	time.Sleep(10 * time.Millisecond)
	conn.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrNotConnected) {
			t.Errorf("Request after transport drop = %v, want ErrNotConnected", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Request still blocked after transport drop")
	}
}

func TestSubscriptionsReplayedAfterReconnect(t *testing.T) {
	dialer := newFakeDialer(0)
	sup := NewSupervisor(SupervisorConfig{
		URL:   "ws://test",
		Dial:  dialer.dial,
		Sleep: instantSleep,
	})
	tracker := NewTracker(sup)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	first := waitForConn(t, dialer)
	waitForState(t, sup, StateConnected)

	if err := tracker.SubscribeStream(StreamLedger); err != nil {
		t.Fatalf("SubscribeStream failed: %v", err)
	}
	if err := tracker.SubscribeAccounts([]string{"rABC"}); err != nil {
		t.Fatalf("SubscribeAccounts failed: %v", err)
	}
	if n := len(first.requests()); n != 2 {
		t.Fatalf("expected 2 subscribe requests on first connection, got %d", n)
	}

	// Drop the connection. The supervisor must reissue both subscriptions
	// on the replacement transport with no caller involvement.
	first.Close()
	second := waitForConn(t, dialer)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(second.requests()) < 2 {
		time.Sleep(time.Millisecond)
	}

	var gotStream, gotAccount bool
	for _, req := range second.requests() {
		if req["command"] != "subscribe" {
			continue
		}
		if containsString(req["streams"], string(StreamLedger)) {
			gotStream = true
		}
		if containsString(req["accounts"], "rABC") {
			gotAccount = true
		}
	}
	if !gotStream || !gotAccount {
		t.Errorf("replayed requests missing subscriptions (stream=%v account=%v): %v",
			gotStream, gotAccount, second.requests())
	}
}

func TestStopIsIdempotent(t *testing.T) {
	dialer := newFakeDialer(0)
	sup := NewSupervisor(SupervisorConfig{
		URL:   "ws://test",
		Dial:  dialer.dial,
		Sleep: instantSleep,
	})

	done := make(chan struct{})
	go func() {
		sup.Run(context.Background())
		close(done)
	}()

	waitForConn(t, dialer)
	waitForState(t, sup, StateConnected)

	sup.Stop()
	sup.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
	if got := sup.State(); got != StateDisconnected {
		t.Errorf("state after Stop = %v, want disconnected", got)
	}
}

// containsString reports whether a decoded JSON array contains the value.
func containsString(raw any, want string) bool {
	items, ok := raw.([]any)
	if !ok {
		return false
	}
	for _, item := range items {
		if s, ok := item.(string); ok && s == want {
			return true
		}
	}
	return false
}
