package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/streamchat/internal/adapter/llm"
	"github.com/xiaot623/gogo/streamchat/internal/domain"
	"github.com/xiaot623/gogo/streamchat/internal/retry"
)

// stepClient hands every exchange to the test, which drives it event by
// event.
type stepClient struct {
	calls chan *stepCall
}

type stepCall struct {
	req    *domain.ChatRequest
	events chan stepEvent
	result chan error
}

type stepEvent struct {
	event *domain.StreamEvent
	ack   chan struct{}
}

func newStepClient() *stepClient {
	return &stepClient{calls: make(chan *stepCall, 4)}
}

func (c *stepClient) StreamChat(ctx context.Context, req *domain.ChatRequest, callback llm.StreamCallback) error {
	call := &stepCall{req: req, events: make(chan stepEvent), result: make(chan error, 1)}
	select {
	case c.calls <- call:
	case <-ctx.Done():
		return ctx.Err()
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-call.events:
			err := callback(ev.event)
			close(ev.ack)
			if err != nil {
				return err
			}
		case err := <-call.result:
			return err
		}
	}
}

func (c *stepClient) next(t *testing.T) *stepCall {
	t.Helper()
	select {
	case call := <-c.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for exchange")
		return nil
	}
}

// send delivers one event and returns after the session handled it.
func (c *stepCall) send(t *testing.T, event *domain.StreamEvent) {
	t.Helper()
	ack := make(chan struct{})
	select {
	case c.events <- stepEvent{event: event, ack: ack}:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out delivering event")
	}
	<-ack
}

func (c *stepCall) text(t *testing.T, delta string) {
	t.Helper()
	c.send(t, &domain.StreamEvent{Type: domain.StreamEventTextDelta, Delta: delta})
}

func (c *stepCall) end(err error) {
	c.result <- err
}

// scriptClient fails or succeeds according to a fixed script, one entry per
// call. Calls beyond the script succeed.
type scriptClient struct {
	mu       sync.Mutex
	script   []error
	reply    string
	requests []*domain.ChatRequest
}

func (c *scriptClient) StreamChat(ctx context.Context, req *domain.ChatRequest, callback llm.StreamCallback) error {
	c.mu.Lock()
	n := len(c.requests)
	c.requests = append(c.requests, req)
	var err error
	if n < len(c.script) {
		err = c.script[n]
	}
	c.mu.Unlock()

	if err != nil {
		return err
	}
	for _, word := range strings.SplitAfter(c.reply, " ") {
		if word == "" {
			continue
		}
		if err := callback(&domain.StreamEvent{Type: domain.StreamEventTextDelta, Delta: word}); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (c *scriptClient) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func (c *scriptClient) request(i int) *domain.ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests[i]
}

type recordingSink struct {
	mu     sync.Mutex
	events []domain.TelemetryEvent
	fields []map[string]any
}

func (r *recordingSink) Emit(event domain.TelemetryEvent, fields map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.fields = append(r.fields, fields)
}

func (r *recordingSink) count(event domain.TelemetryEvent) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("msg-%d", n.Add(1))
	}
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, Base: time.Millisecond}
}

func newTestSession(t *testing.T, client llm.Client, opts ...func(*Config)) (*Session, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	cfg := Config{
		Client:    client,
		Policy:    fastPolicy(),
		Telemetry: sink,
		Model:     "m1",
		NewID:     sequentialIDs(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := New(cfg)
	t.Cleanup(s.Close)
	return s, sink
}

func lastMessage(t *testing.T, snap Snapshot) domain.Message {
	t.Helper()
	require.NotEmpty(t, snap.Messages)
	return snap.Messages[len(snap.Messages)-1]
}

func countRole(msgs []domain.Message, role domain.Role) int {
	n := 0
	for _, m := range msgs {
		if m.Role == role {
			n++
		}
	}
	return n
}
