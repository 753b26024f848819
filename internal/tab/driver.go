// internal/tab/driver.go
package tab

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
)

// Driver abstracts the browser the coordinator steers: it starts navigations,
// exposes load-complete events per tab, and captures the visible viewport.
type Driver interface {
	StartNavigation(ctx context.Context, tabID, url string) error
	// LoadEvents subscribes to the tab's load-complete events. The returned
	// detach func must be called on every path; after detach the channel
	// receives nothing.
	LoadEvents(tabID string) (<-chan struct{}, func(), error)
	// CaptureVisible returns the current viewport as an inline-encoded PNG
	// (data URL bytes).
	CaptureVisible(ctx context.Context, tabID string) ([]byte, error)
}

// Options configures the launched browser.
type Options struct {
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
}

const (
	defaultViewportWidth  = 1280
	defaultViewportHeight = 720
)

// Browser drives a real Chromium instance via Playwright and implements
// Driver. Tabs are identified by generated ids so the rest of the system
// never touches Playwright types.
type Browser struct {
	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
	bctx    playwright.BrowserContext
	tabs    map[string]*pageTab
}

type pageTab struct {
	page playwright.Page

	mu       sync.Mutex
	loadSubs map[int]chan struct{}
	nextSub  int
}

// Launch installs (if needed) and starts Playwright, launches Chromium, and
// prepares a browser context.
func Launch(opts Options) (*Browser, error) {
	if opts.ViewportWidth == 0 {
		opts.ViewportWidth = defaultViewportWidth
	}
	if opts.ViewportHeight == 0 {
		opts.ViewportHeight = defaultViewportHeight
	}

	runOpts := &playwright.RunOptions{Verbose: false, Stdout: io.Discard, Stderr: io.Discard}
	if err := playwright.Install(runOpts); err != nil {
		return nil, fmt.Errorf("install playwright: %w", err)
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: opts.ViewportWidth, Height: opts.ViewportHeight},
	})
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("create browser context: %w", err)
	}

	return &Browser{pw: pw, browser: browser, bctx: bctx, tabs: make(map[string]*pageTab)}, nil
}

// OpenTab creates a new page and returns its tab id.
func (b *Browser) OpenTab() (string, error) {
	page, err := b.bctx.NewPage()
	if err != nil {
		return "", fmt.Errorf("create page: %w", err)
	}

	t := &pageTab{page: page, loadSubs: make(map[int]chan struct{})}
	page.OnLoad(func(playwright.Page) {
		t.broadcastLoad()
	})

	id := uuid.NewString()
	b.mu.Lock()
	b.tabs[id] = t
	b.mu.Unlock()
	return id, nil
}

// Close tears down all pages and the Playwright runtime.
func (b *Browser) Close() {
	b.mu.Lock()
	for id, t := range b.tabs {
		_ = t.page.Close()
		delete(b.tabs, id)
	}
	b.mu.Unlock()

	_ = b.bctx.Close()
	_ = b.browser.Close()
	_ = b.pw.Stop()
}

func (b *Browser) tab(tabID string) (*pageTab, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tabs[tabID]
	if !ok {
		return nil, fmt.Errorf("tab %q not found", tabID)
	}
	return t, nil
}

// StartNavigation issues the navigation command without waiting for the page
// to finish loading; load completion is observed through LoadEvents.
func (b *Browser) StartNavigation(ctx context.Context, tabID, url string) error {
	t, err := b.tab(tabID)
	if err != nil {
		return err
	}

	waitUntil := playwright.WaitUntilStateCommit
	if _, err := t.page.Goto(url, playwright.PageGotoOptions{WaitUntil: waitUntil}); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// LoadEvents implements Driver.
func (b *Browser) LoadEvents(tabID string) (<-chan struct{}, func(), error) {
	t, err := b.tab(tabID)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan struct{}, 1)
	t.mu.Lock()
	sub := t.nextSub
	t.nextSub++
	t.loadSubs[sub] = ch
	t.mu.Unlock()

	detach := func() {
		t.mu.Lock()
		delete(t.loadSubs, sub)
		t.mu.Unlock()
	}
	return ch, detach, nil
}

func (t *pageTab) broadcastLoad() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ch := range t.loadSubs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// CaptureVisible screenshots the viewport and returns it as a PNG data URL,
// the same inline-encoded form a tab capture API hands out.
func (b *Browser) CaptureVisible(ctx context.Context, tabID string) ([]byte, error) {
	t, err := b.tab(tabID)
	if err != nil {
		return nil, err
	}

	png, err := t.page.Screenshot()
	if err != nil {
		return nil, fmt.Errorf("capture tab: %w", err)
	}
	return []byte("data:image/png;base64," + base64.StdEncoding.EncodeToString(png)), nil
}
