// File: cmd/main_test.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/pmensalt/primefaces/internal/browser"
	"github.com/pmensalt/primefaces/internal/browser/dom"
	"github.com/pmensalt/primefaces/internal/config"
	"github.com/pmensalt/primefaces/internal/observability"
)

// resetForTest provides the single source of truth for resetting test state.
func resetForTest(t *testing.T) {
	t.Helper()

	cfgFile = ""
	osExit = os.Exit
	observability.ResetForTest()
	t.Setenv("PFGO_LOGGER_LEVEL", "error")

	origFactory := newFactory
	t.Cleanup(func() { newFactory = origFactory })

	rootCmd = newRootCmd()
}

// pageElement is a static element on the fake page.
type pageElement struct {
	displayed bool
	class     string
}

func (e pageElement) IsDisplayed(context.Context) (bool, error) { return e.displayed, nil }
func (e pageElement) IsEnabled(context.Context) (bool, error)   { return true, nil }
func (e pageElement) Attribute(_ context.Context, name string) (string, error) {
	if name == "class" {
		return e.class, nil
	}
	return "", nil
}

// pageDriver serves one fixed page. Every navigation is a new document and
// a click on an element in ajaxTargets completes one request.
type pageDriver struct {
	mu        sync.Mutex
	url       string
	loads     int64
	completed int64
	quits     int
}

var fixturePage = map[string]pageElement{
	"body":    {displayed: true},
	"#save":   {displayed: true, class: "ui-button"},
	"#locked": {displayed: true, class: "ui-button ui-state-disabled"},
}

var ajaxTargets = map[string]bool{"#save": true}

func (d *pageDriver) RunScript(_ context.Context, script string, res any, _ ...any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case strings.Contains(script, "performance.timeOrigin"):
		*res.(*int64) = d.loads
	case strings.HasSuffix(script, "return window.pfgo.completed;"):
		*res.(*int64) = d.completed
	}
	return nil
}

func (d *pageDriver) FindElement(_ context.Context, selector string) (dom.Element, error) {
	el, ok := fixturePage[selector]
	if !ok {
		return nil, fmt.Errorf("%w: %s", dom.ErrNoSuchElement, selector)
	}
	return el, nil
}

// redirects maps a requested URL to the one the server sends the browser to.
var redirects = map[string]string{
	"http://app.test:8080/showcase/login.xhtml": "http://app.test:8080/showcase/sso/expired.xhtml",
}

func (d *pageDriver) Navigate(_ context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if to, ok := redirects[url]; ok {
		url = to
	}
	d.url = url
	d.loads++
	return nil
}

func (d *pageDriver) CurrentURL(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url, nil
}

func (d *pageDriver) Click(_ context.Context, selector string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ajaxTargets[selector] {
		d.completed++
	}
	return nil
}

func (d *pageDriver) SetWindowSize(context.Context, int64, int64) error    { return nil }
func (d *pageDriver) AddScriptOnNewDocument(context.Context, string) error { return nil }
func (d *pageDriver) Cookies(context.Context) ([]browser.Cookie, error)    { return nil, nil }
func (d *pageDriver) DeleteAllCookies(context.Context) error               { return nil }

func (d *pageDriver) Quit(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.quits++
	return nil
}

type pageFactory struct {
	calls atomic.Int32

	mu      sync.Mutex
	drivers []*pageDriver
}

func (f *pageFactory) CreateDriver(context.Context) (browser.Driver, error) {
	f.calls.Add(1)
	d := &pageDriver{}
	f.mu.Lock()
	f.drivers = append(f.drivers, d)
	f.mu.Unlock()
	return d, nil
}

func (f *pageFactory) urls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, d := range f.drivers {
		d.mu.Lock()
		out = append(out, d.url)
		d.mu.Unlock()
	}
	return out
}

func (f *pageFactory) allQuit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.drivers {
		d.mu.Lock()
		q := d.quits
		d.mu.Unlock()
		if q != 1 {
			return false
		}
	}
	return true
}

// useFactory routes the smoke command to f.
func useFactory(f browser.Factory) {
	newFactory = func(config.BrowserConfig, *zap.Logger) browser.Factory { return f }
}
