// internal/browser/browser_helper_test.go
package browser_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pmensalt/primefaces/internal/browser"
	"github.com/pmensalt/primefaces/internal/browser/dom"
	"github.com/pmensalt/primefaces/internal/config"
	"github.com/pmensalt/primefaces/internal/metrics"
)

// fakeDriver is an in-memory browser. Navigating sets a session cookie the
// way a server would, and a click on "#ajax" completes one XHR.
type fakeDriver struct {
	id int

	mu             sync.Mutex
	url            string
	cookies        []browser.Cookie
	scripts        []string
	consoleClears  int
	quits          int
	width, height  int64
	newDocScripts  []string
	readyAfter     int // readyState polls answered "loading" before "complete"
	deleteErr      error
	quitErr        error
	xhrCompleted   int64
	hiddenInputs   map[string]string
	clickedTargets []string
}

func newFakeDriver(id int) *fakeDriver {
	return &fakeDriver{id: id, hiddenInputs: map[string]string{}}
}

func (d *fakeDriver) RunScript(_ context.Context, script string, res any, args ...any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scripts = append(d.scripts, script)

	switch {
	case strings.HasSuffix(script, "return window.pfgo.completed;"):
		*res.(*int64) = d.xhrCompleted
	case script == "console.clear();":
		d.consoleClears++
	case script == "return document.readyState;":
		state := "complete"
		if d.readyAfter > 0 {
			d.readyAfter--
			state = "loading"
		}
		*res.(*string) = state
	case strings.Contains(script, "el.value = arguments[1]"):
		selector := args[0].(string)
		found := selector == "#hidden"
		if found {
			d.hiddenInputs[selector] = args[1].(string)
		}
		*res.(*bool) = found
	}
	return nil
}

func (d *fakeDriver) FindElement(_ context.Context, selector string) (dom.Element, error) {
	return nil, fmt.Errorf("%w: %s", dom.ErrNoSuchElement, selector)
}

func (d *fakeDriver) Navigate(_ context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = url
	d.cookies = append(d.cookies, browser.Cookie{Name: "JSESSIONID", Value: fmt.Sprintf("s%d", d.id), Path: "/"})
	return nil
}

func (d *fakeDriver) CurrentURL(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url, nil
}

func (d *fakeDriver) Click(_ context.Context, selector string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clickedTargets = append(d.clickedTargets, selector)
	if selector == "#ajax" {
		d.xhrCompleted++
	}
	return nil
}

func (d *fakeDriver) SetWindowSize(_ context.Context, width, height int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.width, d.height = width, height
	return nil
}

func (d *fakeDriver) AddScriptOnNewDocument(_ context.Context, source string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.newDocScripts = append(d.newDocScripts, source)
	return nil
}

func (d *fakeDriver) Cookies(context.Context) ([]browser.Cookie, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]browser.Cookie(nil), d.cookies...), nil
}

func (d *fakeDriver) DeleteAllCookies(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.deleteErr != nil {
		return d.deleteErr
	}
	d.cookies = nil
	return nil
}

func (d *fakeDriver) Quit(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.quits++
	return d.quitErr
}

func (d *fakeDriver) quitCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.quits
}

func (d *fakeDriver) consoleClearCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.consoleClears
}

// fakeFactory hands out fakeDrivers and counts creations. The first failFirst
// calls fail.
type fakeFactory struct {
	calls     atomic.Int32
	failFirst int32
	delay     time.Duration
	configure func(*fakeDriver)

	mu      sync.Mutex
	drivers []*fakeDriver
}

func (f *fakeFactory) CreateDriver(ctx context.Context) (browser.Driver, error) {
	n := f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if n <= f.failFirst {
		return nil, errors.New("session not created: chrome failed to start")
	}
	d := newFakeDriver(int(n))
	if f.configure != nil {
		f.configure(d)
	}
	f.mu.Lock()
	f.drivers = append(f.drivers, d)
	f.mu.Unlock()
	return d, nil
}

func (f *fakeFactory) created() []*fakeDriver {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeDriver(nil), f.drivers...)
}

func testConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Guard.AjaxTimeout = time.Second
	cfg.Guard.HTTPTimeout = time.Second
	cfg.Guard.PollInterval = 10 * time.Millisecond
	cfg.Guard.DocumentLoadTimeout = time.Second
	cfg.Guard.GUITimeout = time.Second
	cfg.Deployment.BaseURL = "http://app.test:8080/showcase"
	return cfg
}

type poolFixture struct {
	pool     *browser.Pool
	factory  *fakeFactory
	registry *prometheus.Registry
}

func newPoolFixture(t *testing.T, factory *fakeFactory) *poolFixture {
	t.Helper()
	if factory == nil {
		factory = &fakeFactory{}
	}
	logger := zaptest.NewLogger(t)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	creator := browser.NewCreator(factory, testConfig(), logger, m)
	return &poolFixture{
		pool:     browser.NewPool(creator, logger, m),
		factory:  factory,
		registry: reg,
	}
}

// metricValue returns the value of an unlabelled counter or gauge.
func metricValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		m := mf.GetMetric()[0]
		if c := m.GetCounter(); c != nil {
			return c.GetValue()
		}
		return m.GetGauge().GetValue()
	}
	t.Fatalf("metric %s not found", name)
	return 0
}
