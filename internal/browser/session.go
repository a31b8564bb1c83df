// internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pmensalt/primefaces/internal/browser/dom"
	"github.com/pmensalt/primefaces/internal/config"
	"github.com/pmensalt/primefaces/internal/guard"
)

// State is where a session sits in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateActive
	StateResetting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateResetting:
		return "resetting"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// WorkerID identifies a test worker. Sessions are tied to the worker that
// acquired them until released.
type WorkerID string

// ErrSessionClosed is returned by commands issued after a session was quit.
var ErrSessionClosed = errors.New("browser session is closed")

// Session is a pooled browser driver together with its lifecycle state.
// Commands are meant to be issued by the single worker that holds it.
type Session struct {
	id        string
	driver    Driver
	storage   WebStorage
	guard     *guard.Guard
	cfg       *config.Config
	logger    *zap.Logger
	createdAt time.Time

	mu    sync.Mutex
	state State
	owner WorkerID

	closeOnce sync.Once
	closeErr  error
}

func newSession(d Driver, storage WebStorage, cfg *config.Config, logger *zap.Logger) *Session {
	id := uuid.New().String()
	s := &Session{
		id:        id,
		driver:    d,
		storage:   storage,
		cfg:       cfg,
		logger:    logger.With(zap.String("session_id", id)),
		createdAt: time.Now(),
		state:     StateIdle,
	}
	return s
}

// ID returns the unique identifier for the session.
func (s *Session) ID() string { return s.id }

// CreatedAt reports when the driver finished starting.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Owner returns the worker holding the session, or "" when none does.
func (s *Session) Owner() WorkerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

// Driver returns the event-firing driver behind the session.
func (s *Session) Driver() Driver { return s.driver }

// Guard returns the completion guard bound to this session's page.
func (s *Session) Guard() *guard.Guard { return s.guard }

// WebStorage returns the driver's storage capability, or nil if it has none.
func (s *Session) WebStorage() WebStorage { return s.storage }

// activate hands the session to worker. It fails only for closed sessions.
func (s *Session) activate(worker WorkerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return false
	}
	s.state = StateActive
	s.owner = worker
	return true
}

// transition moves the session to next unless it is closed.
func (s *Session) transition(next State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return false
	}
	s.state = next
	if next == StateIdle {
		s.owner = ""
	}
	return true
}

// reset clears per-test browser state before the session is reused.
func (s *Session) reset(ctx context.Context) error {
	var errs []error
	if err := s.driver.DeleteAllCookies(ctx); err != nil {
		errs = append(errs, fmt.Errorf("deleting cookies: %w", err))
	}
	if err := s.ClearConsole(ctx); err != nil {
		errs = append(errs, fmt.Errorf("clearing console: %w", err))
	}
	return errors.Join(errs...)
}

// close quits the driver once and marks the session closed. first reports
// whether this call did the closing.
func (s *Session) close(ctx context.Context) (first bool, err error) {
	s.closeOnce.Do(func() {
		first = true
		s.mu.Lock()
		s.state = StateClosed
		s.owner = ""
		s.mu.Unlock()
		s.closeErr = s.driver.Quit(ctx)
		s.logger.Debug("Browser session closed.", zap.Error(s.closeErr))
	})
	return first, s.closeErr
}

func (s *Session) checkOpen() error {
	if s.State() == StateClosed {
		return ErrSessionClosed
	}
	return nil
}

// RunScript evaluates script in the current page. See Driver.RunScript.
func (s *Session) RunScript(ctx context.Context, script string, res any, args ...any) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.driver.RunScript(ctx, script, res, args...)
}

func (s *Session) FindElement(ctx context.Context, selector string) (dom.Element, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.driver.FindElement(ctx, selector)
}

func (s *Session) Navigate(ctx context.Context, target string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := s.driver.Navigate(ctx, target); err != nil {
		return fmt.Errorf("navigating to %s: %w", target, err)
	}
	return nil
}

func (s *Session) Click(ctx context.Context, selector string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.driver.Click(ctx, selector)
}

// CurrentURL returns the address of the page the session is showing.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	return s.driver.CurrentURL(ctx)
}

// URL resolves path against the deployment base URL. Absolute URLs are
// returned unchanged.
func (s *Session) URL(path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parsing path %q: %w", path, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	base, err := url.Parse(s.cfg.Deployment.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base url %q: %w", s.cfg.Deployment.BaseURL, err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	return base.ResolveReference(&url.URL{Path: strings.TrimPrefix(ref.Path, "/"), RawQuery: ref.RawQuery, Fragment: ref.Fragment}).String(), nil
}

// guiPollInterval matches how often a user-facing wait rechecks the page.
const guiPollInterval = 100 * time.Millisecond

// WaitDocumentLoad polls until document.readyState is "complete" or the
// configured document load timeout elapses.
func (s *Session) WaitDocumentLoad(ctx context.Context) error {
	return s.poll(ctx, s.cfg.Guard.DocumentLoadTimeout, "document did not finish loading", func(ctx context.Context) (bool, error) {
		var state string
		err := s.RunScript(ctx, "return document.readyState;", &state)
		if errors.Is(err, ErrSessionClosed) {
			return false, err
		}
		return err == nil && state == "complete", nil
	})
}

// WaitGUI polls cond until it reports true or the configured GUI timeout
// elapses. Missing and stale elements count as "not yet"; any other error
// from cond ends the wait.
func (s *Session) WaitGUI(ctx context.Context, cond func(context.Context) (bool, error)) error {
	return s.poll(ctx, s.cfg.Guard.GUITimeout, "gui condition not met", func(ctx context.Context) (bool, error) {
		ok, err := cond(ctx)
		if errors.Is(err, dom.ErrNoSuchElement) || errors.Is(err, dom.ErrStaleElement) {
			return false, nil
		}
		return ok, err
	})
}

func (s *Session) poll(ctx context.Context, timeout time.Duration, what string, check func(context.Context) (bool, error)) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(guiPollInterval)
	defer ticker.Stop()
	for {
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", what, ctx.Err())
		case <-ticker.C:
		}
	}
}

// DisableAnimations turns off widget and jQuery animations on the page.
func (s *Session) DisableAnimations(ctx context.Context) error {
	return s.RunScript(ctx, "if (window.PrimeFaces) { $(function() { PrimeFaces.utils.disableAnimations(); }); }", nil)
}

// EnableAnimations undoes DisableAnimations.
func (s *Session) EnableAnimations(ctx context.Context) error {
	return s.RunScript(ctx, "if (window.PrimeFaces) { $(function() { PrimeFaces.utils.enableAnimations(); }); }", nil)
}

// SetHiddenInput assigns value to the first input matching selector, even
// when it is hidden and cannot be typed into.
func (s *Session) SetHiddenInput(ctx context.Context, selector, value string) error {
	var found bool
	err := s.RunScript(ctx, `var el = document.querySelector(arguments[0]);
if (!el) { return false; }
el.value = arguments[1];
return true;`, &found, selector, value)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", dom.ErrNoSuchElement, selector)
	}
	return nil
}

func (s *Session) ClearConsole(ctx context.Context) error {
	return s.RunScript(ctx, "console.clear();", nil)
}

func (s *Session) Cookies(ctx context.Context) ([]Cookie, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.driver.Cookies(ctx)
}
