// Package app wires configuration into a running service: the HTTP API and
// the aligned daily scheduler, supervised together.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"karli/internal/config"
	"karli/internal/logger"
	"karli/internal/pipeline"
	"karli/internal/policy"
	"karli/internal/scheduler"
	"karli/internal/store/runlog"
	httpapi "karli/internal/transport/http"
)

// App owns the built pipeline and its entry points.
type App struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	server   *httpapi.Server
	policy   *policy.ONNXPolicy
	runs     *runlog.Store
}

// New builds the application from configuration without starting it.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildApp(cfg)
}

// Run starts the HTTP API and the daily scheduler, blocking until ctx is
// canceled or either exits with an error.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.close()

	interval, ok := scheduler.ParseIntervalDuration(a.cfg.Pipeline.Interval)
	if !ok {
		return fmt.Errorf("invalid pipeline interval %q", a.cfg.Pipeline.Interval)
	}

	logger.InfoBlock(fmt.Sprintf(
		"karli starting\n- env: %s\n- tickers: %s\n- interval: %s (offset %ds)\n- sizing: %s\n- http: %s",
		a.cfg.App.Env,
		strings.Join(a.cfg.Pipeline.Tickers, ", "),
		a.cfg.Pipeline.Interval,
		a.cfg.Pipeline.OffsetSeconds,
		a.cfg.Sizing.Strategy,
		a.server.Addr(),
	))

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Infof("http api listening on %s", a.server.Addr())
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		sched := scheduler.NewAlignedScheduler(ctx, interval,
			time.Duration(a.cfg.Pipeline.OffsetSeconds)*time.Second)
		sched.RunImmediately = a.cfg.Pipeline.RunImmediately
		sched.Start(func() {
			if _, err := a.pipeline.RunDaily(ctx); err != nil {
				logger.Errorf("scheduled run: %v", err)
			}
		})
		return nil
	})

	return group.Wait()
}

func (a *App) close() {
	if a.policy != nil {
		a.policy.Close()
	}
	if a.runs != nil {
		if err := a.runs.Close(); err != nil {
			logger.Warnf("closing run log: %v", err)
		}
	}
}
