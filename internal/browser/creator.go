// internal/browser/creator.go
package browser

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pmensalt/primefaces/internal/config"
	"github.com/pmensalt/primefaces/internal/guard"
	"github.com/pmensalt/primefaces/internal/metrics"
)

// DefaultCreateRetries is the number of driver creation attempts made before
// giving up.
const DefaultCreateRetries = 3

// CreationError is returned when no usable session could be produced.
type CreationError struct {
	Attempts int
	Err      error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("could not create browser session after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *CreationError) Unwrap() error { return e.Err }

// Creator turns a Factory into ready-to-use sessions: it retries failed
// creations and applies the window size and event hooks every session needs.
type Creator struct {
	factory Factory
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewCreator returns a Creator. m may be nil.
func NewCreator(factory Factory, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) *Creator {
	return &Creator{
		factory: factory,
		cfg:     cfg,
		logger:  logger.Named("session_creator"),
		metrics: m,
	}
}

func (c *Creator) retries() int {
	if c.cfg.Pool.CreateRetries > 0 {
		return c.cfg.Pool.CreateRetries
	}
	return DefaultCreateRetries
}

// Create makes up to the configured number of attempts, back to back, and
// returns the first session whose setup succeeds.
func (c *Creator) Create(ctx context.Context) (*Session, error) {
	attempts := c.retries()
	var lastErr error
	for i := 1; i <= attempts; i++ {
		if err := ctx.Err(); err != nil {
			c.metrics.CreationFailed()
			return nil, &CreationError{Attempts: i - 1, Err: err}
		}
		c.metrics.CreationAttempt()

		d, err := c.factory.CreateDriver(ctx)
		if err != nil {
			lastErr = err
			c.logger.Warn("Driver creation failed.",
				zap.Int("attempt", i), zap.Int("max_attempts", attempts), zap.Error(err))
			continue
		}

		s, err := c.setup(ctx, d)
		if err != nil {
			if qerr := d.Quit(detach(ctx)); qerr != nil {
				c.logger.Debug("Quitting driver after failed setup also failed.", zap.Error(qerr))
			}
			c.metrics.CreationFailed()
			return nil, &CreationError{Attempts: i, Err: err}
		}

		c.metrics.SessionCreated()
		s.logger.Info("Browser session created.", zap.Int("attempt", i))
		return s, nil
	}

	c.metrics.CreationFailed()
	c.logger.Error("Giving up on driver creation.", zap.Int("attempts", attempts), zap.Error(lastErr))
	return nil, &CreationError{Attempts: attempts, Err: lastErr}
}

func (c *Creator) setup(ctx context.Context, d Driver) (*Session, error) {
	vp := c.cfg.Browser.Viewport()
	if err := d.SetWindowSize(ctx, vp.Width, vp.Height); err != nil {
		return nil, fmt.Errorf("setting window size %dx%d: %w", vp.Width, vp.Height, err)
	}

	// Storage support is a property of the concrete driver, so ask before wrapping.
	storage, _ := d.(WebStorage)

	ed := NewEventDriver(d, c.logger)
	scripts := append([]string{guard.CounterScript}, c.cfg.Browser.OnloadScripts...)
	if err := ed.Register(ctx, NewOnloadScriptsListener(scripts...)); err != nil {
		return nil, err
	}
	if block := c.cfg.Browser.ScrollIntoView; block != "" {
		if err := ed.Register(ctx, NewScrollIntoViewListener(block)); err != nil {
			return nil, err
		}
	}

	s := newSession(ed, storage, c.cfg, c.logger)
	s.guard = guard.New(s, c.cfg.Guard, s.logger, c.metrics)
	return s, nil
}
