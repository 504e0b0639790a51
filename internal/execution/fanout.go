package execution

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"karli/internal/decision"
	"karli/internal/logger"
	"karli/internal/report"
	"karli/internal/users"
)

// Driver fans one action map out across every user in the roster. Users
// never affect each other: a failed or panicking turn is recorded and the
// rest continue.
type Driver struct {
	coordinator *Coordinator
	concurrency int
}

func NewDriver(coordinator *Coordinator, concurrency int) *Driver {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Driver{coordinator: coordinator, concurrency: concurrency}
}

// RunAll executes one turn per user and returns outcomes in roster order.
func (d *Driver) RunAll(ctx context.Context, roster []users.User, actions decision.ActionMap, volatility map[string]float64) []report.UserOutcome {
	outcomes := make([]report.UserOutcome, len(roster))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, user := range roster {
		i, user := i, user
		g.Go(func() error {
			outcomes[i] = d.runOne(gctx, user, actions, volatility)
			return nil
		})
	}
	// turns never return errors; failures live in the outcomes
	_ = g.Wait()

	return outcomes
}

func (d *Driver) runOne(ctx context.Context, user users.User, actions decision.ActionMap, volatility map[string]float64) (outcome report.UserOutcome) {
	// cheap precheck so users without keys never reach the broker
	if user.Credentials().Empty() {
		logger.Warnf("skipping %s: no brokerage credentials", user.Username)
		return report.UserOutcome{
			Username: user.Username,
			Status:   report.UserStatusSkipped,
			Reason:   report.ReasonMissingCredentials,
		}
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("user turn panicked for %s: %v", user.Username, r)
			outcome = report.UserOutcome{
				Username: user.Username,
				Status:   report.UserStatusFailed,
				Reason:   fmt.Sprintf("panic: %v", r),
			}
		}
	}()

	return d.coordinator.Execute(ctx, user, actions, volatility)
}
