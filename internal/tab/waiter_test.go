package tab

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeDriver simulates a tab whose load events are fired by the test.
type fakeDriver struct {
	mu        sync.Mutex
	sub       chan struct{}
	detached  bool
	navErr    error
	navigated []string
}

func (d *fakeDriver) StartNavigation(ctx context.Context, tabID, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.navigated = append(d.navigated, url)
	return d.navErr
}

func (d *fakeDriver) LoadEvents(tabID string) (<-chan struct{}, func(), error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sub = make(chan struct{}, 1)
	d.detached = false
	ch := d.sub
	return ch, func() {
		d.mu.Lock()
		d.detached = true
		d.mu.Unlock()
	}, nil
}

func (d *fakeDriver) CaptureVisible(ctx context.Context, tabID string) ([]byte, error) {
	return nil, errors.New("not implemented")
}

// fireLoad delivers a load event unless the subscriber already detached,
// matching the driver contract.
func (d *fakeDriver) fireLoad() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.detached || d.sub == nil {
		return false
	}
	select {
	case d.sub <- struct{}{}:
	default:
	}
	return true
}

func (d *fakeDriver) isDetached() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.detached
}

func TestNavigateResolvesAfterLoad(t *testing.T) {
	driver := &fakeDriver{}
	waiter := NewWaiter(driver, time.Second, time.Millisecond)

	done := make(chan error, 1)
	go func() {
		done <- waiter.Navigate(context.Background(), "tab-1", "https://a.test")
	}()

	// Navigate must still be pending before the load event fires.
	select {
	case err := <-done:
		t.Fatalf("Navigate resolved before load-complete: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	if !driver.fireLoad() {
		t.Fatal("load listener was detached before any outcome")
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Navigate returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Navigate did not resolve after load-complete")
	}

	if !driver.isDetached() {
		t.Fatal("load listener not detached after success")
	}
	if len(driver.navigated) != 1 || driver.navigated[0] != "https://a.test" {
		t.Fatalf("unexpected navigations: %v", driver.navigated)
	}
}

func TestNavigateTimesOut(t *testing.T) {
	driver := &fakeDriver{}
	waiter := NewWaiter(driver, 30*time.Millisecond, time.Millisecond)

	err := waiter.Navigate(context.Background(), "tab-1", "https://slow.test")
	if !errors.Is(err, ErrNavigationTimeout) {
		t.Fatalf("expected ErrNavigationTimeout, got %v", err)
	}
	if !driver.isDetached() {
		t.Fatal("load listener not detached after timeout")
	}
	// A late load event must find no listener.
	if driver.fireLoad() {
		t.Fatal("load event delivered after timeout outcome")
	}
}

func TestNavigateStartFailureDetaches(t *testing.T) {
	driver := &fakeDriver{navErr: errors.New("tab gone")}
	waiter := NewWaiter(driver, time.Second, time.Millisecond)

	if err := waiter.Navigate(context.Background(), "tab-1", "https://a.test"); err == nil {
		t.Fatal("expected error from failed navigation start")
	}
	if !driver.isDetached() {
		t.Fatal("load listener not detached after start failure")
	}
}

func TestNavigateContextCancelled(t *testing.T) {
	driver := &fakeDriver{}
	waiter := NewWaiter(driver, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := waiter.Navigate(ctx, "tab-1", "https://a.test"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !driver.isDetached() {
		t.Fatal("load listener not detached after cancellation")
	}
}
