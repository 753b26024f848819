// internal/hub/messenger.go
package hub

import (
	"context"
	"log/slog"
	"time"

	"github.com/snapq/capture-coordinator/pkg/schema"
)

const (
	// DeliverMaxAttempts bounds how often a control message is retried when
	// the UI has no listener yet (page still loading) or does not ack.
	DeliverMaxAttempts = 10
	// DeliverBackoff is the fixed pause between delivery attempts and the
	// per-attempt acknowledgement wait.
	DeliverBackoff = 200 * time.Millisecond
)

// transport is the slice of the hub the messenger needs.
type transport interface {
	send(ctx context.Context, tabID string, env schema.Envelope, ackWait time.Duration) error
}

// Messenger delivers control messages to a tab's UI with bounded retry, and
// fires progress notifications best-effort. It never returns an error:
// delivery failure is a soft condition the caller decides about.
type Messenger struct {
	transport   transport
	logger      *slog.Logger
	maxAttempts int
	backoff     time.Duration
}

// NewMessenger wraps h with the default retry policy.
func NewMessenger(h *Hub, logger *slog.Logger) *Messenger {
	return &Messenger{
		transport:   h,
		logger:      logger,
		maxAttempts: DeliverMaxAttempts,
		backoff:     DeliverBackoff,
	}
}

// Deliver sends env to the tab and waits for an acknowledgement, retrying up
// to maxAttempts with a fixed backoff. Returns false after exhaustion.
func (m *Messenger) Deliver(ctx context.Context, tabID string, env schema.Envelope) bool {
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		err := m.transport.send(ctx, tabID, env, m.backoff)
		if err == nil {
			return true
		}
		if attempt == m.maxAttempts {
			break
		}

		pause := time.NewTimer(m.backoff)
		select {
		case <-pause.C:
		case <-ctx.Done():
			pause.Stop()
			m.logger.Warn("message delivery cancelled",
				"type", env.Type, "tab_id", tabID, "attempts", attempt)
			return false
		}
	}

	m.logger.Warn("message delivery exhausted",
		"type", env.Type, "tab_id", tabID, "attempts", m.maxAttempts)
	return false
}

// Notify sends a status/progress frame once, without waiting for an ack.
// Failures are logged and swallowed; progress pings never block the workflow.
func (m *Messenger) Notify(tabID string, env schema.Envelope) {
	if err := m.transport.send(context.Background(), tabID, env, 0); err != nil {
		m.logger.Debug("notification dropped", "type", env.Type, "tab_id", tabID, "err", err)
	}
}
