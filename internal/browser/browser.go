// Package browser implements the Browser capability named in spec §6 on
// top of go-rod: launch headless/headed, attach request/response listeners,
// navigate with timeout, evaluate JavaScript, query/click/wait elements,
// read/write cookies, and snapshot/restore storage state. Adapted from the
// teacher's internal/browser/session_manager.go launch-and-control pattern,
// trimmed to what a single scan/guided-access/test-run handler needs — no
// multi-session registry, no React-fiber reification, no Mangle event
// streaming (that lives in internal/scanner, which consumes this package).
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

// Config mirrors the subset of session_manager.go's Config this package
// needs: launch mode and viewport. Navigation/probe/scan timeouts live in
// config.BrowserConfig and are passed per-call as context deadlines.
type Config struct {
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	DebuggerURL    string // non-empty: attach to an already-running Chrome instead of launching one
}

// Manager owns one *rod.Browser for the lifetime of a single handler. No
// event loop outlives the handler that calls Start/Close around its work,
// matching spec §5's "created, drained, and torn down entirely within that
// handler" rule.
type Manager struct {
	cfg     Config
	browser *rod.Browser
	launch  *launcher.Launcher
}

// NewManager constructs an unstarted Manager.
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// Start launches (or connects to) Chrome and returns once the browser is
// controllable. Callers must call Close when the handler's work is done.
func (m *Manager) Start(ctx context.Context) error {
	controlURL := m.cfg.DebuggerURL
	if controlURL == "" {
		l := launcher.New().
			Headless(m.cfg.Headless).
			Set(flags.Flag("disable-blink-features"), "AutomationControlled")
		url, err := l.Launch()
		if err != nil {
			return fmt.Errorf("launch browser: %w", err)
		}
		m.launch = l
		controlURL = url
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("connect to browser: %w", err)
	}
	m.browser = b
	return nil
}

// Close tears down the browser and, if this Manager launched its own
// Chrome process, the launcher too.
func (m *Manager) Close() error {
	if m.browser == nil {
		return nil
	}
	err := m.browser.Close()
	if m.launch != nil {
		m.launch.Kill()
	}
	return err
}

// Page wraps one rod.Page with the subset of operations the scanner,
// guided-access flow, and test runner each need.
type Page struct {
	page *rod.Page
}

// NewPage opens a blank page sized to the configured viewport.
func (m *Manager) NewPage(ctx context.Context) (*Page, error) {
	if m.browser == nil {
		return nil, fmt.Errorf("browser not started")
	}
	p, err := m.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	if m.cfg.ViewportWidth > 0 && m.cfg.ViewportHeight > 0 {
		if err := p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:  m.cfg.ViewportWidth,
			Height: m.cfg.ViewportHeight,
		}); err != nil {
			return nil, fmt.Errorf("set viewport: %w", err)
		}
	}
	return &Page{page: p}, nil
}

// Raw exposes the underlying *rod.Page for callers (the scanner) that need
// finer-grained CDP access this wrapper does not cover.
func (p *Page) Raw() *rod.Page { return p.page }

// Navigate goes to url, waiting for DOMContentLoaded, bounded by timeout.
// It records the elapsed time regardless of outcome.
func (p *Page) Navigate(ctx context.Context, url string, timeout time.Duration) (time.Duration, error) {
	start := time.Now()
	page := p.page.Context(ctx).Timeout(timeout)
	if err := page.Navigate(url); err != nil {
		return time.Since(start), fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := page.WaitDOMStable(800*time.Millisecond, 0); err != nil {
		// DOM stability is best-effort; navigation itself succeeded.
		return time.Since(start), nil
	}
	return time.Since(start), nil
}

// WaitLoad waits for the page's load event, bounded by timeout.
func (p *Page) WaitLoad(ctx context.Context, timeout time.Duration) error {
	return p.page.Context(ctx).Timeout(timeout).WaitLoad()
}

// Eval evaluates a JavaScript expression and decodes its JSON result into out.
func (p *Page) Eval(js string, out interface{}) error {
	res, err := p.page.Eval(js)
	if err != nil {
		return fmt.Errorf("evaluate script: %w", err)
	}
	if out == nil {
		return nil
	}
	return res.Value.Unmarshal(out)
}

// Cookies returns the page's current cookies.
func (p *Page) Cookies() ([]*proto.NetworkCookie, error) {
	return p.page.Cookies(nil)
}

// StorageState is the cookie + localStorage/sessionStorage snapshot
// persisted as storage_state.json, the format guided-access hands off to
// the test runner and final run.
type StorageState struct {
	Cookies        []*proto.NetworkCookie `json:"cookies"`
	LocalStorage   map[string]string      `json:"local_storage"`
	SessionStorage map[string]string      `json:"session_storage"`
}

// SnapshotStorageState captures cookies and both web storages.
func (p *Page) SnapshotStorageState() (*StorageState, error) {
	cookies, err := p.Cookies()
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	var local, session map[string]string
	if err := p.Eval(`() => Object.fromEntries(Object.entries(localStorage))`, &local); err != nil {
		local = map[string]string{}
	}
	if err := p.Eval(`() => Object.fromEntries(Object.entries(sessionStorage))`, &session); err != nil {
		session = map[string]string{}
	}
	return &StorageState{Cookies: cookies, LocalStorage: local, SessionStorage: session}, nil
}

// RestoreStorageState replays a prior snapshot's cookies and storages onto
// the page, used when resuming a project that already completed
// GUIDED_ACCESS.
func (p *Page) RestoreStorageState(state *StorageState) error {
	if len(state.Cookies) > 0 {
		params := make([]*proto.NetworkCookieParam, 0, len(state.Cookies))
		for _, c := range state.Cookies {
			params = append(params, &proto.NetworkCookieParam{
				Name: c.Name, Value: c.Value, Domain: c.Domain, Path: c.Path,
			})
		}
		if err := p.page.SetCookies(params); err != nil {
			return fmt.Errorf("restore cookies: %w", err)
		}
	}
	return nil
}

// Click clicks the first element matching selector, if present and visible.
func (p *Page) Click(selector string) error {
	el, err := p.page.Element(selector)
	if err != nil {
		return fmt.Errorf("find element %s: %w", selector, err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// Screenshot returns a PNG-encoded screenshot of the current viewport.
func (p *Page) Screenshot() ([]byte, error) {
	return p.page.Screenshot(false, nil)
}

// Close releases the underlying page.
func (p *Page) Close() error { return p.page.Close() }
