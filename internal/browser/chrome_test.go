// internal/browser/chrome_test.go
package browser_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pmensalt/primefaces/internal/browser"
	"github.com/pmensalt/primefaces/internal/browser/dom"
)

const testPage = `<!DOCTYPE html>
<html><body>
<button id="save" class="ui-button">Save</button>
<button id="locked" class="ui-button ui-state-disabled">Locked</button>
<span id="out"></span>
<script>
document.getElementById('save').addEventListener('click', function () {
	fetch('/api/save').then(function (r) { return r.text(); }).then(function (t) {
		document.getElementById('out').textContent = t;
	});
});
</script>
</body></html>`

func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "abc", Path: "/"})
		fmt.Fprint(w, testPage)
	})
	mux.HandleFunc("/api/save", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(150 * time.Millisecond)
		fmt.Fprint(w, "saved")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// Runs against a real Chrome. Enable with PFGO_BROWSER_TESTS=1.
func TestChromePool_EndToEnd(t *testing.T) {
	if os.Getenv("PFGO_BROWSER_TESTS") != "1" {
		t.Skip("set PFGO_BROWSER_TESTS=1 to run against a local Chrome")
	}
	srv := newTestSite(t)

	cfg := testConfig()
	cfg.Browser.Headless = true
	cfg.Browser.ScrollIntoView = "center"
	cfg.Guard.AjaxTimeout = 5 * time.Second
	cfg.Guard.HTTPTimeout = 10 * time.Second
	cfg.Deployment.BaseURL = srv.URL

	logger := zaptest.NewLogger(t)
	factory := browser.NewChromeFactory(cfg.Browser, logger)
	pool := browser.NewPool(browser.NewCreator(factory, cfg, logger, nil), logger, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	defer pool.ShutdownAll(ctx, "e2e")

	s, err := pool.Acquire(ctx, "e2e")
	require.NoError(t, err)

	target, err := s.URL("/")
	require.NoError(t, err)
	require.NoError(t, s.Guard().HTTP(ctx, func(ctx context.Context) error {
		return s.Navigate(ctx, target)
	}))

	clickable, err := dom.IsClickable(ctx, s, "#save")
	require.NoError(t, err)
	assert.True(t, clickable)

	locked, err := dom.IsEnabled(ctx, s, "#locked")
	require.NoError(t, err)
	assert.False(t, locked, "the disabled marker wins over native state")

	present, err := dom.IsPresent(ctx, s, "#nope")
	require.NoError(t, err)
	assert.False(t, present)

	require.NoError(t, s.Guard().Ajax(ctx, func(ctx context.Context) error {
		return s.Click(ctx, "#save")
	}))
	// The fetch settles when headers arrive; the body lands a moment later.
	assert.Eventually(t, func() bool {
		var out string
		err := s.RunScript(ctx, "return document.getElementById('out').textContent;", &out)
		return err == nil && out == "saved"
	}, 2*time.Second, 50*time.Millisecond)

	cookies, err := s.Cookies(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, cookies)

	pool.Release(ctx, "e2e")
	cookies, err = s.Cookies(ctx)
	require.NoError(t, err)
	assert.Empty(t, cookies)

	again, err := pool.Acquire(ctx, "e2e")
	require.NoError(t, err)
	assert.Same(t, s, again)
}
