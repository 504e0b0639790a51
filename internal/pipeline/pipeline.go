// Package pipeline runs the daily decision cycle end to end: observe the
// ticker universe, consult the policy once, fan the shared action map out to
// every registered user, and record a run report.
package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"karli/internal/decision"
	"karli/internal/execution"
	"karli/internal/logger"
	"karli/internal/observation"
	"karli/internal/policy"
	"karli/internal/report"
	"karli/internal/users"
)

// ErrRunInProgress is returned when a run is requested while one is still
// underway. Overlapping runs are skipped, never queued.
var ErrRunInProgress = errors.New("a pipeline run is already in progress")

// Sink persists finished run reports.
type Sink interface {
	SaveRun(ctx context.Context, r *report.RunReport) error
}

// Pipeline wires the stages of one daily run together.
type Pipeline struct {
	tickers   []string
	assembler *observation.Assembler
	policy    policy.Policy
	driver    *execution.Driver
	roster    users.Store
	sink      Sink

	running atomic.Bool
}

func New(tickers []string, assembler *observation.Assembler, pol policy.Policy, driver *execution.Driver, roster users.Store, sink Sink) *Pipeline {
	return &Pipeline{
		tickers:   tickers,
		assembler: assembler,
		policy:    pol,
		driver:    driver,
		roster:    roster,
		sink:      sink,
	}
}

// Running reports whether a run is in flight.
func (p *Pipeline) Running() bool { return p.running.Load() }

// RunDaily executes one full pipeline run and returns its report. At most one
// run is in flight at a time; a second caller gets ErrRunInProgress.
//
// Decisions are made once per run and shared across users; only order sizing
// and execution differ per account. The run aborts before any order is placed
// when the policy call fails, but a failing ticker or user never stops the
// rest.
func (p *Pipeline) RunDaily(ctx context.Context) (*report.RunReport, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer p.running.Store(false)

	rpt := &report.RunReport{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	logger.Infof("pipeline run %s started, %d tickers", rpt.ID, len(p.tickers))

	// tickers with no trained model never enter the batch
	modeled := make([]string, 0, len(p.tickers))
	for _, ticker := range p.tickers {
		if !p.policy.HasModel(ticker) {
			logger.Warnf("no model for %s, skipping", ticker)
			rpt.Skips = append(rpt.Skips, report.TickerSkip{Ticker: ticker, Reason: report.ReasonNoModel})
			continue
		}
		modeled = append(modeled, ticker)
	}

	observations, skips := p.assembler.Assemble(ctx, modeled)
	rpt.Skips = append(rpt.Skips, skips...)
	if len(observations) == 0 {
		logger.Warnf("run %s: no usable observations, nothing to decide", rpt.ID)
		return p.finish(ctx, rpt, report.RunStatusCompleted, "")
	}

	batch := make([]policy.Input, len(observations))
	volatility := make(map[string]float64, len(observations))
	for i, obs := range observations {
		batch[i] = policy.Input{Ticker: obs.Ticker, Vector: obs.Vector}
		volatility[obs.Ticker] = obs.Volatility
	}

	decisions, err := p.policy.Infer(ctx, batch)
	if err != nil {
		// a failed policy call aborts the run before any order is placed
		logger.Errorf("run %s aborted: %v", rpt.ID, err)
		aborted, _ := p.finish(ctx, rpt, report.RunStatusAborted, report.ReasonPolicyUnavailable)
		return aborted, err
	}

	actions := decision.Aggregate(decisions)
	rpt.Actions = map[string][]string{
		decision.ActionSell.String(): actions.Sell,
		decision.ActionHold.String(): actions.Hold,
		decision.ActionBuy.String():  actions.Buy,
	}
	logger.Infof("run %s decisions: sell=%d hold=%d buy=%d",
		rpt.ID, len(actions.Sell), len(actions.Hold), len(actions.Buy))

	roster, err := p.roster.ListUsersWithCredentials(ctx)
	if err != nil {
		logger.Errorf("run %s aborted: listing users: %v", rpt.ID, err)
		aborted, _ := p.finish(ctx, rpt, report.RunStatusAborted, err.Error())
		return aborted, err
	}

	rpt.Users = p.driver.RunAll(ctx, roster, actions, volatility)
	return p.finish(ctx, rpt, report.RunStatusCompleted, "")
}

func (p *Pipeline) finish(ctx context.Context, rpt *report.RunReport, status, abortReason string) (*report.RunReport, error) {
	rpt.Finalize(status, abortReason, time.Now().UTC())
	if p.sink != nil {
		if err := p.sink.SaveRun(ctx, rpt); err != nil {
			// the run already happened; a persistence failure is logged,
			// not propagated
			logger.Errorf("run %s: persisting report: %v", rpt.ID, err)
		}
	}
	logger.Infof("run %s finished: %s", rpt.ID, rpt.Status)
	return rpt, nil
}
