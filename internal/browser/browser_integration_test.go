//go:build integration

package browser_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"scrapeforge/internal/browser"
)

// These tests launch a real headless Chromium via go-rod and are excluded
// from the default test run; run with `go test -tags integration ./...`
// on a machine with Chrome/Chromium available.

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>fixture page</title></head><body>
			<script>localStorage.setItem("k", "v")</script>
			<div class="item">one</div>
		</body></html>`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestManagerStartNavigateAndEval(t *testing.T) {
	mgr := browser.NewManager(browser.Config{Headless: true, ViewportWidth: 1280, ViewportHeight: 720})
	ctx := context.Background()
	require.NoError(t, mgr.Start(ctx))
	defer mgr.Close()

	page, err := mgr.NewPage(ctx)
	require.NoError(t, err)
	defer page.Close()

	srv := testServer(t)
	_, err = page.Navigate(ctx, srv.URL, 10*time.Second)
	require.NoError(t, err)

	var title string
	require.NoError(t, page.Eval(`() => document.title`, &title))
	require.Equal(t, "fixture page", title)
}

func TestPageSnapshotStorageStateCapturesLocalStorage(t *testing.T) {
	mgr := browser.NewManager(browser.Config{Headless: true})
	ctx := context.Background()
	require.NoError(t, mgr.Start(ctx))
	defer mgr.Close()

	page, err := mgr.NewPage(ctx)
	require.NoError(t, err)
	defer page.Close()

	srv := testServer(t)
	_, err = page.Navigate(ctx, srv.URL, 10*time.Second)
	require.NoError(t, err)

	state, err := page.SnapshotStorageState()
	require.NoError(t, err)
	require.Equal(t, "v", state.LocalStorage["k"])
}

func TestNewPageBeforeStartErrors(t *testing.T) {
	mgr := browser.NewManager(browser.Config{Headless: true})
	_, err := mgr.NewPage(context.Background())
	require.Error(t, err)
}
