// Package observation batches feature observations for the ticker universe.
// Tickers fail independently; the join point before the policy call is a hard
// barrier so every observation in the batch is from the same pass.
package observation

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"karli/internal/features"
	"karli/internal/logger"
	"karli/internal/report"
)

// Assembler fans observation fetches out over a bounded worker pool and joins
// the results back into input order.
type Assembler struct {
	provider      features.Provider
	concurrency   int
	expectedWidth int
}

func NewAssembler(provider features.Provider, concurrency, expectedWidth int) *Assembler {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Assembler{
		provider:      provider,
		concurrency:   concurrency,
		expectedWidth: expectedWidth,
	}
}

// Assemble fetches one observation per ticker. A failing ticker is dropped
// with a recorded skip reason and never aborts the batch. Results come back
// in input order so repeated runs produce identical policy batches.
func (a *Assembler) Assemble(ctx context.Context, tickers []string) ([]features.Observation, []report.TickerSkip) {
	results := make([]*features.Observation, len(tickers))

	var mu sync.Mutex
	var skips []report.TickerSkip
	recordSkip := func(ticker, reason string) {
		mu.Lock()
		skips = append(skips, report.TickerSkip{Ticker: ticker, Reason: reason})
		mu.Unlock()
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(a.concurrency)
	for i, ticker := range tickers {
		i, ticker := i, ticker
		group.Go(func() error {
			obs, err := a.provider.FetchObservation(groupCtx, ticker)
			if err != nil {
				reason := skipReasonFor(err)
				logger.Warnf("observation skipped for %s (%s): %v", ticker, reason, err)
				recordSkip(ticker, reason)
				return nil
			}
			if a.expectedWidth > 0 && len(obs.Vector) != a.expectedWidth {
				logger.Warnf("observation for %s has width %d, policy expects %d; dropping",
					ticker, len(obs.Vector), a.expectedWidth)
				recordSkip(ticker, report.ReasonWidthMismatch)
				return nil
			}
			results[i] = &obs
			return nil
		})
	}
	// join barrier: no observation leaves this function until every ticker
	// has either landed or been skipped
	_ = group.Wait()

	out := make([]features.Observation, 0, len(tickers))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, skips
}

func skipReasonFor(err error) string {
	switch {
	case errors.Is(err, features.ErrInsufficientHistory):
		return report.ReasonInsufficientHistory
	case errors.Is(err, features.ErrMissingStats):
		return report.ReasonMissingStats
	default:
		return report.ReasonUpstreamFetchError
	}
}
