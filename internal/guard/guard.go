// File: internal/guard/guard.go
package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pmensalt/primefaces/internal/config"
	"github.com/pmensalt/primefaces/internal/metrics"
)

// Kind selects which completion signal a guarded action waits on.
type Kind int

const (
	// FullPageLoad waits for a new document to finish loading.
	FullPageLoad Kind = iota
	// PartialUpdate waits for an XHR or fetch round trip to settle.
	PartialUpdate
)

func (k Kind) String() string {
	switch k {
	case FullPageLoad:
		return "http"
	case PartialUpdate:
		return "ajax"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ErrTimeout matches every *TimeoutError via errors.Is.
var ErrTimeout = errors.New("guard: completion signal did not advance")

// TimeoutError reports a guarded action whose network activity never completed.
type TimeoutError struct {
	Kind    Kind
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("guard: %s request did not complete within %s", e.Kind, e.Elapsed.Round(time.Millisecond))
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// Guard blocks a caller until the network activity triggered by an action has
// completed. One Guard serves one browser session; it is safe for concurrent
// use but the page it observes is not, so callers usually keep it per worker.
type Guard struct {
	runner  ScriptRunner
	cfg     config.GuardConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New builds a Guard that reads the completion signal through runner.
// m may be nil.
func New(runner ScriptRunner, cfg config.GuardConfig, logger *zap.Logger, m *metrics.Metrics) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{
		runner:  runner,
		cfg:     cfg,
		logger:  logger.Named("guard"),
		metrics: m,
	}
}

type options struct {
	delay   time.Duration
	timeout time.Duration
	poll    time.Duration
}

// Option adjusts a single guarded call.
type Option func(*options)

// WithDelay sleeps after the action before polling starts. Only partial
// updates honour it; some widgets fire their request from a timer.
func WithDelay(d time.Duration) Option {
	return func(o *options) { o.delay = d }
}

// WithTimeout overrides the configured timeout for the kind.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithPollInterval overrides the configured poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.poll = d }
}

func (g *Guard) resolve(kind Kind, opts []Option) options {
	o := options{timeout: g.cfg.AjaxTimeout, poll: g.cfg.PollInterval}
	if kind == FullPageLoad {
		o.timeout = g.cfg.HTTPTimeout
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.poll <= 0 {
		o.poll = 100 * time.Millisecond
	}
	return o
}

// Run snapshots the completion signal for kind, runs action, and then blocks
// until the signal strictly exceeds the snapshot. An action error is returned
// immediately without waiting.
func Run[T any](ctx context.Context, g *Guard, kind Kind, action func(context.Context) (T, error), opts ...Option) (T, error) {
	var zero T
	o := g.resolve(kind, opts)

	baseline, err := readBaseline(ctx, g.runner, kind)
	if err != nil {
		return zero, err
	}

	result, err := action(ctx)
	if err != nil {
		return zero, err
	}

	if kind == PartialUpdate && o.delay > 0 {
		if err := sleep(ctx, o.delay); err != nil {
			return zero, err
		}
	}

	if err := g.await(ctx, kind, baseline, o); err != nil {
		return zero, err
	}
	return result, nil
}

func (g *Guard) await(ctx context.Context, kind Kind, baseline int64, o options) error {
	start := time.Now()
	deadline := time.NewTimer(o.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(o.poll)
	defer ticker.Stop()

	for {
		current, err := readSignal(ctx, g.runner, kind)
		switch {
		case err == nil && current > baseline:
			elapsed := time.Since(start)
			g.metrics.GuardWait(kind.String(), elapsed, false)
			g.logger.Debug("Completion signal advanced.",
				zap.Stringer("kind", kind), zap.Duration("elapsed", elapsed))
			return nil
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			// The page is usually mid-navigation here; the next tick will tell.
			g.logger.Debug("Completion signal unreadable, retrying.", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			elapsed := time.Since(start)
			g.metrics.GuardWait(kind.String(), elapsed, true)
			g.logger.Warn("Guarded action timed out.",
				zap.Stringer("kind", kind), zap.Duration("elapsed", elapsed), zap.Int64("baseline", baseline))
			return &TimeoutError{Kind: kind, Elapsed: elapsed}
		case <-ticker.C:
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// HTTP runs action and waits for the next full page load.
func (g *Guard) HTTP(ctx context.Context, action func(context.Context) error, opts ...Option) error {
	_, err := Run(ctx, g, FullPageLoad, discard(action), opts...)
	return err
}

// Ajax runs action and waits for the next XHR or fetch to settle.
func (g *Guard) Ajax(ctx context.Context, action func(context.Context) error, opts ...Option) error {
	_, err := Run(ctx, g, PartialUpdate, discard(action), opts...)
	return err
}

// Script evaluates script under the guard and returns its decoded result.
func Script[T any](ctx context.Context, g *Guard, kind Kind, script string, args ...any) (T, error) {
	return Run(ctx, g, kind, func(ctx context.Context) (T, error) {
		var res T
		err := g.runner.RunScript(ctx, script, &res, args...)
		return res, err
	})
}

// ExecuteScript evaluates script, guarded as a partial update when ajaxified
// is set and unguarded otherwise. res may be nil.
func (g *Guard) ExecuteScript(ctx context.Context, ajaxified bool, script string, res any, args ...any) error {
	if !ajaxified {
		return g.runner.RunScript(ctx, script, res, args...)
	}
	return g.Ajax(ctx, func(ctx context.Context) error {
		return g.runner.RunScript(ctx, script, res, args...)
	})
}

func discard(action func(context.Context) error) func(context.Context) (struct{}, error) {
	return func(ctx context.Context) (struct{}, error) {
		return struct{}{}, action(ctx)
	}
}
