// internal/browser/events.go
package browser

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Listener is registered with an EventDriver. It opts into events by also
// implementing one or more of Attacher, BeforeClickListener and
// AfterNavigateListener.
type Listener interface {
	Name() string
}

// Attacher is notified once, when the listener is registered.
type Attacher interface {
	Attach(ctx context.Context, d Driver) error
}

type BeforeClickListener interface {
	BeforeClick(ctx context.Context, d Driver, selector string) error
}

type AfterNavigateListener interface {
	AfterNavigate(ctx context.Context, d Driver, url string) error
}

// EventDriver wraps a Driver and fires listener hooks around navigation and
// clicks. Hook failures are logged and never fail the wrapped command.
type EventDriver struct {
	Driver
	logger    *zap.Logger
	listeners []Listener
}

// NewEventDriver wraps d. Listeners must be registered before the driver is
// shared with other goroutines.
func NewEventDriver(d Driver, logger *zap.Logger) *EventDriver {
	return &EventDriver{Driver: d, logger: logger}
}

// Register adds l and attaches it if it implements Attacher. An attach error
// is returned and the listener is not registered.
func (e *EventDriver) Register(ctx context.Context, l Listener) error {
	if a, ok := l.(Attacher); ok {
		if err := a.Attach(ctx, e.Driver); err != nil {
			return fmt.Errorf("attaching listener %s: %w", l.Name(), err)
		}
	}
	e.listeners = append(e.listeners, l)
	return nil
}

// Unwrap returns the underlying driver.
func (e *EventDriver) Unwrap() Driver {
	return e.Driver
}

func (e *EventDriver) Navigate(ctx context.Context, url string) error {
	if err := e.Driver.Navigate(ctx, url); err != nil {
		return err
	}
	for _, l := range e.listeners {
		if h, ok := l.(AfterNavigateListener); ok {
			if err := h.AfterNavigate(ctx, e.Driver, url); err != nil {
				e.logger.Warn("After-navigate hook failed.", zap.String("listener", l.Name()), zap.Error(err))
			}
		}
	}
	return nil
}

func (e *EventDriver) Click(ctx context.Context, selector string) error {
	for _, l := range e.listeners {
		if h, ok := l.(BeforeClickListener); ok {
			if err := h.BeforeClick(ctx, e.Driver, selector); err != nil {
				e.logger.Debug("Before-click hook failed.", zap.String("listener", l.Name()), zap.Error(err))
			}
		}
	}
	return e.Driver.Click(ctx, selector)
}

// OnloadScriptsListener makes a fixed list of scripts run in every document.
// Drivers that cannot register new-document scripts (AddScriptOnNewDocument
// returns errors.ErrUnsupported) get them evaluated after each navigation
// instead.
type OnloadScriptsListener struct {
	scripts  []string
	afterNav bool
}

func NewOnloadScriptsListener(scripts ...string) *OnloadScriptsListener {
	return &OnloadScriptsListener{scripts: scripts}
}

func (l *OnloadScriptsListener) Name() string { return "onload_scripts" }

func (l *OnloadScriptsListener) Attach(ctx context.Context, d Driver) error {
	for i, script := range l.scripts {
		err := d.AddScriptOnNewDocument(ctx, script)
		if errors.Is(err, errors.ErrUnsupported) {
			l.afterNav = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("registering onload script %d: %w", i, err)
		}
	}
	return nil
}

func (l *OnloadScriptsListener) AfterNavigate(ctx context.Context, d Driver, _ string) error {
	if !l.afterNav {
		return nil
	}
	for i, script := range l.scripts {
		if err := d.RunScript(ctx, script, nil); err != nil {
			return fmt.Errorf("running onload script %d: %w", i, err)
		}
	}
	return nil
}

// ScrollIntoViewListener scrolls the click target into view first, so
// clicks on elements under sticky headers or below the fold land.
type ScrollIntoViewListener struct {
	block string
}

func NewScrollIntoViewListener(block string) *ScrollIntoViewListener {
	return &ScrollIntoViewListener{block: block}
}

func (l *ScrollIntoViewListener) Name() string { return "scroll_into_view" }

func (l *ScrollIntoViewListener) BeforeClick(ctx context.Context, d Driver, selector string) error {
	const script = `var el = document.querySelector(arguments[0]);
if (el) { el.scrollIntoView({block: arguments[1], inline: 'nearest'}); }`
	return d.RunScript(ctx, script, nil, selector, l.block)
}
