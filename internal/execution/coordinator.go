// Package execution turns one run's action map into brokerage orders, one
// user at a time. Each user turn owns its account snapshot and orders
// exclusively; nothing is shared across turns and nothing is cached across
// runs.
package execution

import (
	"context"
	"time"

	"karli/internal/config"
	"karli/internal/decision"
	"karli/internal/gateway/broker"
	"karli/internal/logger"
	"karli/internal/report"
	"karli/internal/sizing"
	"karli/internal/users"
)

// Coordinator executes one user's turn:
// fetch snapshot -> sells -> settle wait -> holds -> buys.
type Coordinator struct {
	dialer     broker.Dialer
	sizingCfg  config.SizingConfig
	settleWait time.Duration
}

func NewCoordinator(dialer broker.Dialer, sizingCfg config.SizingConfig, settleWait time.Duration) *Coordinator {
	return &Coordinator{
		dialer:     dialer,
		sizingCfg:  sizingCfg,
		settleWait: settleWait,
	}
}

// Execute runs the full state machine for one user. Order submissions are
// never retried; a failed symbol is recorded and its siblings proceed. Only
// a snapshot fetch failure fails the whole turn.
func (c *Coordinator) Execute(ctx context.Context, user users.User, actions decision.ActionMap, volatility map[string]float64) report.UserOutcome {
	outcome := report.UserOutcome{Username: user.Username}

	creds := user.Credentials()
	if creds.Empty() {
		outcome.Status = report.UserStatusFailed
		outcome.Reason = report.ReasonMissingCredentials
		return outcome
	}
	client := c.dialer.Dial(creds)

	// FETCH_SNAPSHOT
	snap, err := c.fetchSnapshot(ctx, client)
	if err != nil {
		logger.Errorf("snapshot fetch failed for %s: %v", user.Username, err)
		outcome.Status = report.UserStatusFailed
		outcome.Reason = err.Error()
		return outcome
	}
	if snap.Blocked {
		outcome.Status = report.UserStatusFailed
		outcome.Reason = report.ReasonAccountBlocked
		return outcome
	}

	// PROCESS_SELLS
	soldAny := c.processSells(ctx, client, snap, actions.Sell, &outcome)

	// SETTLE_WAIT: sell proceeds must land in available cash before buy
	// sizing reads it. Cancellable, not a bare sleep.
	if soldAny && len(actions.Buy) > 0 {
		if !c.settle(ctx) {
			outcome.Reason = "canceled during settle wait"
			outcome.Status = outcome.Summarize()
			return outcome
		}
	}

	// PROCESS_HOLDS: informational only
	for _, ticker := range actions.Hold {
		logger.Infof("[%s] HOLD %s", user.Username, ticker)
	}

	// PROCESS_BUYS
	c.processBuys(ctx, client, actions.Buy, volatility, user.RiskTier, &outcome)

	outcome.Status = outcome.Summarize()
	return outcome
}

func (c *Coordinator) fetchSnapshot(ctx context.Context, client broker.Client) (sizing.AccountSnapshot, error) {
	acct, err := client.GetAccount(ctx)
	if err != nil {
		return sizing.AccountSnapshot{}, err
	}
	positions, err := client.GetOpenPositions(ctx)
	if err != nil {
		return sizing.AccountSnapshot{}, err
	}
	lots := make(map[string]sizing.PositionLot, len(positions))
	for _, p := range positions {
		lots[p.Symbol] = sizing.PositionLot{Qty: p.Qty, CostBasis: p.AvgEntryPrice}
	}
	return sizing.AccountSnapshot{
		Cash:           acct.Cash,
		PortfolioValue: acct.Equity,
		Positions:      lots,
		Blocked:        acct.AccountBlocked || acct.TradingBlocked,
	}, nil
}

func (c *Coordinator) processSells(ctx context.Context, client broker.Client, snap sizing.AccountSnapshot, sells []string, outcome *report.UserOutcome) bool {
	soldAny := false
	for _, ticker := range sells {
		if ctx.Err() != nil {
			return soldAny
		}
		qty := snap.Positions[ticker].Qty
		if qty <= 0 {
			logger.Infof("[%s] no position to sell for %s", outcome.Username, ticker)
			outcome.Orders = append(outcome.Orders, report.OrderResult{
				Ticker: ticker,
				Side:   string(broker.SideSell),
				Status: report.OrderStatusSkipped,
				Reason: report.ReasonNoPositionToSell,
			})
			continue
		}
		order, err := client.SubmitOrder(ctx, broker.OrderRequest{
			Symbol: ticker,
			Qty:    qty,
			Side:   broker.SideSell,
		})
		if err != nil {
			logger.Errorf("[%s] sell failed for %s: %v", outcome.Username, ticker, err)
			outcome.Orders = append(outcome.Orders, report.OrderResult{
				Ticker:   ticker,
				Side:     string(broker.SideSell),
				Quantity: qty,
				Status:   report.OrderStatusFailed,
				Reason:   report.ReasonOrderRejected,
			})
			continue
		}
		soldAny = true
		logger.Infof("[%s] SELL %s qty=%d", outcome.Username, ticker, qty)
		outcome.Orders = append(outcome.Orders, report.OrderResult{
			Ticker:   ticker,
			Side:     string(broker.SideSell),
			Quantity: qty,
			Status:   report.OrderStatusSubmitted,
			OrderID:  order.ID,
		})
	}
	return soldAny
}

// settle waits out the configured settlement delay. Returns false when the
// run was canceled first.
func (c *Coordinator) settle(ctx context.Context) bool {
	if c.settleWait <= 0 {
		return true
	}
	timer := time.NewTimer(c.settleWait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (c *Coordinator) processBuys(ctx context.Context, client broker.Client, buys []string, volatility map[string]float64, riskTier string, outcome *report.UserOutcome) {
	if len(buys) == 0 {
		return
	}
	failAll := func(reason string) {
		for _, ticker := range buys {
			outcome.Orders = append(outcome.Orders, report.OrderResult{
				Ticker: ticker,
				Side:   string(broker.SideBuy),
				Status: report.OrderStatusFailed,
				Reason: reason,
			})
		}
	}

	// cash and positions are read once at stage entry, after sells settled
	snap, err := c.fetchSnapshot(ctx, client)
	if err != nil {
		logger.Errorf("[%s] post-sell snapshot failed: %v", outcome.Username, err)
		failAll(err.Error())
		return
	}

	strategy := sizing.ForTier(riskTier, c.sizingCfg)
	for _, ticker := range buys {
		if ctx.Err() != nil {
			outcome.Reason = "canceled during buys"
			return
		}
		price, err := client.GetLatestTradePrice(ctx, ticker)
		if err != nil {
			logger.Warnf("[%s] quote unavailable for %s: %v", outcome.Username, ticker, err)
			outcome.Orders = append(outcome.Orders, report.OrderResult{
				Ticker: ticker,
				Side:   string(broker.SideBuy),
				Status: report.OrderStatusSkipped,
				Reason: report.ReasonQuoteUnavailable,
			})
			continue
		}
		qty := sizing.Size(strategy, decision.ActionBuy, ticker, sizing.BuyInputs{
			Ticker:     ticker,
			Snapshot:   snap,
			BuyCount:   len(buys),
			Price:      price,
			Volatility: volatility[ticker],
		})
		if qty <= 0 {
			logger.Infof("[%s] insufficient funds for %s (price=%.2f)", outcome.Username, ticker, price)
			outcome.Orders = append(outcome.Orders, report.OrderResult{
				Ticker: ticker,
				Side:   string(broker.SideBuy),
				Status: report.OrderStatusSkipped,
				Reason: report.ReasonInsufficientFunds,
			})
			continue
		}
		order, err := client.SubmitOrder(ctx, broker.OrderRequest{
			Symbol: ticker,
			Qty:    qty,
			Side:   broker.SideBuy,
		})
		if err != nil {
			logger.Errorf("[%s] buy failed for %s: %v", outcome.Username, ticker, err)
			outcome.Orders = append(outcome.Orders, report.OrderResult{
				Ticker:   ticker,
				Side:     string(broker.SideBuy),
				Quantity: qty,
				Status:   report.OrderStatusFailed,
				Reason:   report.ReasonOrderRejected,
			})
			continue
		}
		logger.Infof("[%s] BUY %s qty=%d", outcome.Username, ticker, qty)
		outcome.Orders = append(outcome.Orders, report.OrderResult{
			Ticker:   ticker,
			Side:     string(broker.SideBuy),
			Quantity: qty,
			Status:   report.OrderStatusSubmitted,
			OrderID:  order.ID,
		})
	}
}
