// internal/hub/hub.go
package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/snapq/capture-coordinator/pkg/schema"
)

// WebSocket timeout constants following Gorilla best practices.
const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024
)

// ErrNoListener is returned when no UI connection is registered for a tab.
var ErrNoListener = errors.New("no listener registered for tab")

// Dispatcher consumes inbound UI signals. Implemented by the orchestrator.
type Dispatcher interface {
	Dispatch(tabID string, env schema.Envelope)
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(tabID string, env schema.Envelope)

func (f DispatcherFunc) Dispatch(tabID string, env schema.Envelope) { f(tabID, env) }

// Hub owns the WebSocket connections of in-page selection UIs, one per tab.
// Outbound frames carry a sequence number; the UI echoes it back in an ack
// frame, which is how delivery success is observed.
type Hub struct {
	logger     *slog.Logger
	dispatcher Dispatcher
	upgrader   websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client

	ackMu sync.Mutex
	acks  map[uint64]chan struct{}
	seq   atomic.Uint64
}

// New builds a Hub routing inbound signals to dispatcher.
func New(dispatcher Dispatcher, logger *slog.Logger) *Hub {
	return &Hub{
		logger:     logger,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The UI is injected into arbitrary capture targets, so the
			// Origin header is not a useful gate here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[string]*client),
		acks:    make(map[uint64]chan struct{}),
	}
}

// ServeWS upgrades the request and registers the connection under the tab id
// given in the "tab" query parameter (or a generated one). A ui-ready signal
// is dispatched so a reconnecting UI is re-synced without any extra frame.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	tabID := r.URL.Query().Get("tab")
	if tabID == "" {
		tabID = uuid.NewString()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err, "tab_id", tabID)
		return
	}

	c := &client{
		hub:   h,
		conn:  conn,
		send:  make(chan schema.Envelope, 16),
		tabID: tabID,
	}

	h.mu.Lock()
	if prev, ok := h.clients[tabID]; ok {
		prev.close()
	}
	h.clients[tabID] = c
	h.mu.Unlock()

	h.logger.Info("ui connected", "tab_id", tabID)

	go c.writePump()
	go c.readPump()

	h.dispatcher.Dispatch(tabID, schema.Envelope{Type: schema.MsgUIReady})
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if h.clients[c.tabID] == c {
		delete(h.clients, c.tabID)
	}
	h.mu.Unlock()
	h.logger.Info("ui disconnected", "tab_id", c.tabID)
}

// send writes env to the tab's connection. With ackWait > 0 it assigns a
// sequence number and blocks until the UI acknowledges it or the wait
// elapses; with ackWait <= 0 it is fire-and-forget.
func (h *Hub) send(ctx context.Context, tabID string, env schema.Envelope, ackWait time.Duration) error {
	h.mu.RLock()
	c, ok := h.clients[tabID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoListener, tabID)
	}

	if ackWait <= 0 {
		return c.enqueue(env)
	}

	seq := h.seq.Add(1)
	env.Seq = seq

	ackCh := make(chan struct{}, 1)
	h.ackMu.Lock()
	h.acks[seq] = ackCh
	h.ackMu.Unlock()
	defer func() {
		h.ackMu.Lock()
		delete(h.acks, seq)
		h.ackMu.Unlock()
	}()

	if err := c.enqueue(env); err != nil {
		return err
	}

	wait := time.NewTimer(ackWait)
	defer wait.Stop()
	select {
	case <-ackCh:
		return nil
	case <-wait.C:
		return fmt.Errorf("no acknowledgement for %s within %s", env.Type, ackWait)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) handleAck(seq uint64) {
	h.ackMu.Lock()
	ch, ok := h.acks[seq]
	h.ackMu.Unlock()
	if ok {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
