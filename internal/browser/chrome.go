// internal/browser/chrome.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	cdpdom "github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/pmensalt/primefaces/internal/browser/dom"
	"github.com/pmensalt/primefaces/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ChromeFactory launches one Chrome process per driver through chromedp.
type ChromeFactory struct {
	cfg    config.BrowserConfig
	logger *zap.Logger
}

// NewChromeFactory returns a factory for the given browser configuration.
func NewChromeFactory(cfg config.BrowserConfig, logger *zap.Logger) *ChromeFactory {
	return &ChromeFactory{cfg: cfg, logger: logger.Named("chrome")}
}

// CreateDriver starts a browser and opens its first tab. The browser outlives
// ctx; only the startup handshake is bounded by it.
func (f *ChromeFactory) CreateDriver(ctx context.Context) (Driver, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(detach(ctx), f.allocatorOptions()...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithErrorf(f.logger.Sugar().Debugf))

	d := &chromeDriver{
		ctx:         tabCtx,
		cancelTab:   tabCancel,
		cancelAlloc: allocCancel,
		logger:      f.logger,
	}

	// The first Run allocates the browser and must use the tab context itself,
	// otherwise the browser would die with the startup deadline.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(tabCtx) }()

	timeout := f.cfg.StartupTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var err error
	select {
	case err = <-started:
	case <-timer.C:
		err = fmt.Errorf("browser did not start within %s", timeout)
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err == nil {
		err = d.run(ctx, chromedp.Navigate("about:blank"))
	}
	if err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	f.logger.Debug("Chrome driver started.", zap.Bool("headless", f.cfg.Headless))
	return d, nil
}

func (f *ChromeFactory) allocatorOptions() []chromedp.ExecAllocatorOption {
	// DefaultExecAllocatorOptions turns headless on; later flags win, and a
	// false boolean flag is left off the command line.
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", f.cfg.Headless),
		chromedp.Flag("ignore-certificate-errors", f.cfg.IgnoreTLSErrors),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", f.cfg.Headless),
	)
	if f.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(f.cfg.ExecPath))
	}

	// Custom arguments from config.yaml, "--name=value" or "--name".
	for _, arg := range f.cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if len(parts) == 2 {
			opts = append(opts, chromedp.Flag(name, parts[1]))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}

	// Containers (Docker on Linux) need these.
	if runtime.GOOS == "linux" {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
	}
	return opts
}

// chromeDriver is a single chromedp tab in its own browser process.
type chromeDriver struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	logger      *zap.Logger

	quitOnce sync.Once
	quitErr  error
}

var (
	_ Driver     = (*chromeDriver)(nil)
	_ WebStorage = (*chromeDriver)(nil)
)

// run executes actions against the tab, bounded by both the tab lifetime and ctx.
func (d *chromeDriver) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := combineContext(d.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

func (d *chromeDriver) RunScript(ctx context.Context, script string, res any, args ...any) error {
	if args == nil {
		args = []any{}
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encoding script arguments: %w", err)
	}
	expr := fmt.Sprintf("(function(){\n%s\n}).apply(window, %s)", script, encoded)
	return d.run(ctx, chromedp.Evaluate(expr, res))
}

func (d *chromeDriver) Navigate(ctx context.Context, url string) error {
	return d.run(ctx, chromedp.Navigate(url))
}

func (d *chromeDriver) CurrentURL(ctx context.Context) (string, error) {
	var url string
	err := d.run(ctx, chromedp.Location(&url))
	return url, err
}

func (d *chromeDriver) Click(ctx context.Context, selector string) error {
	return d.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

func (d *chromeDriver) SetWindowSize(ctx context.Context, width, height int64) error {
	return d.run(ctx, chromedp.EmulateViewport(width, height))
}

func (d *chromeDriver) AddScriptOnNewDocument(ctx context.Context, source string) error {
	return d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(source).Do(ctx)
		return err
	}))
}

func (d *chromeDriver) Cookies(ctx context.Context) ([]Cookie, error) {
	var raw []*network.Cookie
	err := d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	cookies := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		cookie := Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		// Session cookies report -1.
		if c.Expires > 0 {
			cookie.Expires = time.Unix(int64(c.Expires), 0)
		}
		cookies = append(cookies, cookie)
	}
	return cookies, nil
}

func (d *chromeDriver) DeleteAllCookies(ctx context.Context) error {
	return d.run(ctx, network.ClearBrowserCookies())
}

const storageScript = `
var items = {};
try {
	var s = window[arguments[0]];
	if (s) {
		for (var i = 0; i < s.length; i++) {
			var k = s.key(i);
			if (k !== null) { items[k] = s.getItem(k); }
		}
	}
} catch (e) {}
return items;`

func (d *chromeDriver) LocalStorage(ctx context.Context) (map[string]string, error) {
	items := map[string]string{}
	err := d.RunScript(ctx, storageScript, &items, "localStorage")
	return items, err
}

func (d *chromeDriver) SessionStorage(ctx context.Context) (map[string]string, error) {
	items := map[string]string{}
	err := d.RunScript(ctx, storageScript, &items, "sessionStorage")
	return items, err
}

func (d *chromeDriver) ClearStorage(ctx context.Context) error {
	return d.RunScript(ctx, `try { localStorage.clear(); sessionStorage.clear(); } catch (e) {}`, nil)
}

// Quit closes the browser. Later calls return the first call's result.
func (d *chromeDriver) Quit(ctx context.Context) error {
	d.quitOnce.Do(func() {
		// chromedp.Cancel closes the browser gracefully and waits for it.
		if err := chromedp.Cancel(d.ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.quitErr = err
		}
		d.cancelTab()
		d.cancelAlloc()
	})
	return d.quitErr
}

func (d *chromeDriver) FindElement(ctx context.Context, selector string) (dom.Element, error) {
	var nodes []*cdp.Node
	if err := d.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQuery, chromedp.AtLeast(0))); err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %s", dom.ErrNoSuchElement, selector)
	}
	return &chromeElement{driver: d, backendID: nodes[0].BackendNodeID, selector: selector}, nil
}

// chromeElement refers to a node by its backend id, which stays valid for
// the node's lifetime regardless of DOM agent state.
type chromeElement struct {
	driver    *chromeDriver
	backendID cdp.BackendNodeID
	selector  string
}

// elementResult is what every element probe function returns.
type elementResult struct {
	Stale bool   `json:"stale"`
	OK    bool   `json:"ok"`
	Value string `json:"value"`
}

const (
	displayedFn = `function() {
	if (!this.isConnected) { return {stale: true}; }
	var style = window.getComputedStyle(this);
	var rect = this.getBoundingClientRect();
	return {ok: style.display !== 'none' && style.visibility !== 'hidden' &&
		style.opacity !== '0' && (rect.width > 0 || rect.height > 0)};
}`
	enabledFn = `function() {
	if (!this.isConnected) { return {stale: true}; }
	return {ok: !(this.matches && this.matches(':disabled'))};
}`
	attributeFn = `function(name) {
	if (!this.isConnected) { return {stale: true}; }
	return {ok: this.hasAttribute(name), value: this.getAttribute(name) || ''};
}`
)

func (e *chromeElement) call(ctx context.Context, fn string, args ...any) (elementResult, error) {
	var res elementResult
	err := e.driver.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := cdpdom.ResolveNode().WithBackendNodeID(e.backendID).Do(ctx)
		if err != nil {
			// The node was garbage collected or its document is gone.
			return fmt.Errorf("%w: %s: %v", dom.ErrStaleElement, e.selector, err)
		}
		defer func() { _ = cdpruntime.ReleaseObject(obj.ObjectID).Do(ctx) }()
		return chromedp.CallFunctionOn(fn, &res,
			func(p *cdpruntime.CallFunctionOnParams) *cdpruntime.CallFunctionOnParams {
				return p.WithObjectID(obj.ObjectID)
			},
			args...,
		).Do(ctx)
	}))
	if err != nil {
		return res, err
	}
	if res.Stale {
		return res, fmt.Errorf("%w: %s", dom.ErrStaleElement, e.selector)
	}
	return res, nil
}

func (e *chromeElement) IsDisplayed(ctx context.Context) (bool, error) {
	res, err := e.call(ctx, displayedFn)
	return res.OK, err
}

func (e *chromeElement) IsEnabled(ctx context.Context) (bool, error) {
	res, err := e.call(ctx, enabledFn)
	return res.OK, err
}

func (e *chromeElement) Attribute(ctx context.Context, name string) (string, error) {
	res, err := e.call(ctx, attributeFn, name)
	return res.Value, err
}
