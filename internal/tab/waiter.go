// internal/tab/waiter.go
package tab

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNavigationTimeout is returned when a page does not report load-complete
// within the waiter's bound.
var ErrNavigationTimeout = errors.New("navigation timed out")

const (
	// DefaultNavTimeout bounds how long a page may take to finish loading.
	DefaultNavTimeout = 60 * time.Second
	// DefaultSettleDelay gives in-page scripts a moment to attach after load.
	DefaultSettleDelay = 250 * time.Millisecond
)

// Waiter drives a tab to a URL and resolves only once the page load completes
// or the timeout elapses. Exactly one outcome is delivered and the load
// subscription is detached on every path.
type Waiter struct {
	driver  Driver
	timeout time.Duration
	settle  time.Duration
}

// NewWaiter builds a Waiter over driver. Zero durations fall back to the
// defaults.
func NewWaiter(driver Driver, timeout, settle time.Duration) *Waiter {
	if timeout <= 0 {
		timeout = DefaultNavTimeout
	}
	if settle <= 0 {
		settle = DefaultSettleDelay
	}
	return &Waiter{driver: driver, timeout: timeout, settle: settle}
}

// Navigate issues the navigation and blocks until load-complete plus the
// settle delay, the timeout, or ctx cancellation.
func (w *Waiter) Navigate(ctx context.Context, tabID, url string) error {
	loaded, detach, err := w.driver.LoadEvents(tabID)
	if err != nil {
		return fmt.Errorf("subscribe load events: %w", err)
	}
	defer detach()

	if err := w.driver.StartNavigation(ctx, tabID, url); err != nil {
		return fmt.Errorf("start navigation: %w", err)
	}

	deadline := time.NewTimer(w.timeout)
	defer deadline.Stop()

	select {
	case <-loaded:
	case <-deadline.C:
		return fmt.Errorf("%w after %s: %s", ErrNavigationTimeout, w.timeout, url)
	case <-ctx.Done():
		return ctx.Err()
	}

	settle := time.NewTimer(w.settle)
	defer settle.Stop()
	select {
	case <-settle.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
