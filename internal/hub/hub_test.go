package hub

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapq/capture-coordinator/pkg/schema"
)

type recordingDispatcher struct {
	mu      sync.Mutex
	signals []schema.Envelope
	tabIDs  []string
	notify  chan struct{}
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{notify: make(chan struct{}, 16)}
}

func (d *recordingDispatcher) Dispatch(tabID string, env schema.Envelope) {
	d.mu.Lock()
	d.signals = append(d.signals, env)
	d.tabIDs = append(d.tabIDs, tabID)
	d.mu.Unlock()
	d.notify <- struct{}{}
}

func (d *recordingDispatcher) wait(t *testing.T) (string, schema.Envelope) {
	t.Helper()
	select {
	case <-d.notify:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatched signal")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tabIDs[len(d.tabIDs)-1], d.signals[len(d.signals)-1]
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dialUI(t *testing.T, srv *httptest.Server, tabID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?tab=" + tabID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestServeWSGreetsWithUIReady(t *testing.T) {
	dispatcher := newRecordingDispatcher()
	h := New(dispatcher, testLogger())
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	dialUI(t, srv, "tab-1")

	tabID, env := dispatcher.wait(t)
	assert.Equal(t, "tab-1", tabID)
	assert.Equal(t, schema.MsgUIReady, env.Type)
}

func TestInboundFramesReachDispatcher(t *testing.T) {
	dispatcher := newRecordingDispatcher()
	h := New(dispatcher, testLogger())
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	conn := dialUI(t, srv, "tab-1")
	dispatcher.wait(t) // greeting

	require.NoError(t, conn.WriteJSON(schema.Envelope{
		Type: schema.MsgSaveSelection,
		Rect: &schema.Rect{X: 1, Y: 2, W: 30, H: 40},
	}))

	tabID, env := dispatcher.wait(t)
	assert.Equal(t, "tab-1", tabID)
	assert.Equal(t, schema.MsgSaveSelection, env.Type)
	require.NotNil(t, env.Rect)
	assert.Equal(t, 30, env.Rect.W)
}

func TestDeliverSucceedsWhenUIAcks(t *testing.T) {
	dispatcher := newRecordingDispatcher()
	h := New(dispatcher, testLogger())
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	conn := dialUI(t, srv, "tab-1")
	dispatcher.wait(t)

	// Echo acks like the real UI does.
	go func() {
		for {
			var env schema.Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			if env.Seq != 0 {
				_ = conn.WriteJSON(schema.Envelope{Type: schema.MsgAck, Seq: env.Seq})
			}
		}
	}()

	m := NewMessenger(h, testLogger())
	assert.True(t, m.Deliver(context.Background(), "tab-1", schema.BeginSelection()))
}

func TestDeliverWithoutListenerExhaustsAttempts(t *testing.T) {
	sent := 0
	m := &Messenger{
		transport: transportFunc(func(context.Context, string, schema.Envelope, time.Duration) error {
			sent++
			return ErrNoListener
		}),
		logger:      testLogger(),
		maxAttempts: 4,
		backoff:     5 * time.Millisecond,
	}

	start := time.Now()
	ok := m.Deliver(context.Background(), "tab-1", schema.BeginSelection())
	elapsed := time.Since(start)

	assert.False(t, ok)
	assert.Equal(t, 4, sent, "expected exactly maxAttempts sends")
	// Three pauses between four attempts.
	assert.GreaterOrEqual(t, elapsed, 15*time.Millisecond)
}

func TestDeliverStopsRetryingOnSuccess(t *testing.T) {
	sent := 0
	m := &Messenger{
		transport: transportFunc(func(context.Context, string, schema.Envelope, time.Duration) error {
			sent++
			if sent < 3 {
				return ErrNoListener
			}
			return nil
		}),
		logger:      testLogger(),
		maxAttempts: 10,
		backoff:     time.Millisecond,
	}

	assert.True(t, m.Deliver(context.Background(), "tab-1", schema.BeginSelection()))
	assert.Equal(t, 3, sent)
}

func TestNotifySwallowsFailure(t *testing.T) {
	var gotAckWait time.Duration
	m := &Messenger{
		transport: transportFunc(func(_ context.Context, _ string, _ schema.Envelope, ackWait time.Duration) error {
			gotAckWait = ackWait
			return errors.New("gone")
		}),
		logger:      testLogger(),
		maxAttempts: 10,
		backoff:     time.Millisecond,
	}

	m.Notify("tab-1", schema.StatusUpdate("idle", "done"))
	assert.Equal(t, time.Duration(0), gotAckWait, "notify must not wait for acks")
}

type transportFunc func(ctx context.Context, tabID string, env schema.Envelope, ackWait time.Duration) error

func (f transportFunc) send(ctx context.Context, tabID string, env schema.Envelope, ackWait time.Duration) error {
	return f(ctx, tabID, env, ackWait)
}
