// File: cmd/smoke.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/pmensalt/primefaces/internal/browser"
	"github.com/pmensalt/primefaces/internal/browser/dom"
	"github.com/pmensalt/primefaces/internal/config"
	"github.com/pmensalt/primefaces/internal/metrics"
	"github.com/pmensalt/primefaces/internal/observability"
)

type smokeOptions struct {
	URL         string
	Selector    string
	Click       string
	Workers     int
	Rounds      int
	Rate        float64
	MetricsAddr string
}

// newFactory builds the driver factory used by smoke. Tests swap it out.
var newFactory = func(cfg config.BrowserConfig, logger *zap.Logger) browser.Factory {
	return browser.NewChromeFactory(cfg, logger)
}

func newSmokeCmd() *cobra.Command {
	opts := smokeOptions{}

	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Load a page from several pooled sessions and check a selector",
		Long: `Starts a session pool, lets each worker load the page under the
full-page guard a number of times, and checks that the selector is present.
With --click the element is clicked under the Ajax guard after every load.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Workers < 1 || opts.Rounds < 1 {
				return errors.New("--workers and --rounds must be at least 1")
			}
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}
			logger := observability.GetLogger().Named("smoke")

			reg := prometheus.NewRegistry()
			m := metrics.New(reg)
			if opts.MetricsAddr != "" {
				_, stop, err := serveMetrics(opts.MetricsAddr, reg, logger)
				if err != nil {
					return err
				}
				defer stop()
			}

			return runSmoke(cmd.Context(), cfg, newFactory(cfg.Browser, logger), opts, logger, m, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "", "page to load; relative paths resolve against deployment.base_url")
	cmd.Flags().StringVar(&opts.Selector, "selector", "body", "CSS selector that must be present after the load")
	cmd.Flags().StringVar(&opts.Click, "click", "", "CSS selector to click under the Ajax guard after each load")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 2, "number of concurrent workers")
	cmd.Flags().IntVarP(&opts.Rounds, "rounds", "r", 1, "page loads per worker")
	cmd.Flags().Float64Var(&opts.Rate, "rate", 0, "page loads per second across all workers (0 is unlimited)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")

	return cmd
}

func runSmoke(ctx context.Context, cfg *config.Config, factory browser.Factory, opts smokeOptions, logger *zap.Logger, m *metrics.Metrics, out io.Writer) error {
	pool := browser.NewPool(browser.NewCreator(factory, cfg, logger, m), logger, m)
	defer pool.ShutdownAll(context.WithoutCancel(ctx), "")

	var limiter *rate.Limiter
	if opts.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), 1)
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < opts.Workers; i++ {
		worker := browser.WorkerID(fmt.Sprintf("smoke-%d", i))
		g.Go(func() error {
			for round := 0; round < opts.Rounds; round++ {
				if err := smokeRound(gctx, pool, limiter, worker, opts); err != nil {
					return fmt.Errorf("%s round %d: %w", worker, round+1, err)
				}
			}
			return nil
		})
	}
	err := g.Wait()

	stats := pool.Stats()
	logger.Info("Smoke run finished.",
		zap.Duration("elapsed", time.Since(start)),
		zap.Stringer("pool", stats),
		zap.Error(err))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "ok: %d worker(s) x %d round(s); %s\n", opts.Workers, opts.Rounds, stats)
	return nil
}

func smokeRound(ctx context.Context, pool *browser.Pool, limiter *rate.Limiter, worker browser.WorkerID, opts smokeOptions) error {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	}

	s, err := pool.Acquire(ctx, worker)
	if err != nil {
		return err
	}
	defer pool.Release(context.WithoutCancel(ctx), worker)

	target, err := s.URL(opts.URL)
	if err != nil {
		return err
	}
	if err := s.Guard().HTTP(ctx, func(ctx context.Context) error {
		return s.Navigate(ctx, target)
	}); err != nil {
		return fmt.Errorf("loading %s: %w", target, err)
	}

	present, err := dom.IsPresent(ctx, s, opts.Selector)
	if err != nil {
		return err
	}
	if !present {
		// Report where the browser ended up; redirects make it differ from target.
		at, err := s.CurrentURL(ctx)
		if err != nil || at == "" {
			at = target
		}
		return fmt.Errorf("selector %q not found on %s", opts.Selector, at)
	}

	if opts.Click == "" {
		return nil
	}
	clickable, err := dom.IsClickable(ctx, s, opts.Click)
	if err != nil {
		return err
	}
	if !clickable {
		return fmt.Errorf("%q is not clickable", opts.Click)
	}
	return s.Guard().Ajax(ctx, func(ctx context.Context) error {
		return s.Click(ctx, opts.Click)
	})
}

// serveMetrics exposes reg on addr until the returned func is called. It
// returns the address actually bound.
func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) (string, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("listening for metrics on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Metrics server stopped.", zap.Error(err))
		}
	}()
	logger.Info("Serving metrics.", zap.String("addr", ln.Addr().String()))

	return ln.Addr().String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
