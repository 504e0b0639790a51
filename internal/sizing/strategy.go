// Package sizing converts a BUY/SELL decision into a share quantity. All
// strategies are pure functions of the account snapshot handed to them; the
// snapshot is fetched fresh by the caller every turn and never cached.
package sizing

import (
	"github.com/shopspring/decimal"

	"karli/internal/config"
	"karli/internal/decision"
)

// PositionLot is one open holding inside an account snapshot.
type PositionLot struct {
	Qty       int64
	CostBasis float64
}

// AccountSnapshot is the point-in-time account state one user's turn runs
// against. Cash is the value read once at buy-stage entry, after sells settle.
type AccountSnapshot struct {
	Cash           float64
	PortfolioValue float64
	Positions      map[string]PositionLot
	Blocked        bool
}

// HasOpenPositions reports whether any holding is open.
func (s AccountSnapshot) HasOpenPositions() bool {
	for _, lot := range s.Positions {
		if lot.Qty > 0 {
			return true
		}
	}
	return false
}

// BuyInputs carries everything a strategy may consult when sizing one BUY.
type BuyInputs struct {
	Ticker     string
	Snapshot   AccountSnapshot
	BuyCount   int     // tickers in the BUY bucket this run
	Price      float64 // latest trade price
	Volatility float64 // annualized, 0 when unknown
}

// Strategy sizes a single BUY order. SELL and HOLD sizing is fixed by Size
// and not strategy-dependent.
type Strategy interface {
	Name() string
	BuyQuantity(in BuyInputs) int64
}

// Size computes the share quantity for one (action, ticker) pair.
// SELL liquidates the full held quantity, HOLD is always zero, BUY delegates
// to the strategy. The result is never negative.
func Size(strategy Strategy, action decision.Action, ticker string, in BuyInputs) int64 {
	switch action {
	case decision.ActionSell:
		return in.Snapshot.Positions[ticker].Qty
	case decision.ActionHold:
		return 0
	case decision.ActionBuy:
		qty := strategy.BuyQuantity(in)
		if qty < 0 {
			return 0
		}
		return qty
	default:
		return 0
	}
}

// EqualWeight splits available cash evenly across the run's BUY tickers.
// When the account holds no open positions, only FreshCashFraction of total
// cash is allocated to the run so a reserve is left for the following day.
// OverflowBuffer shares are shaved off to absorb price movement between the
// quote and the fill.
type EqualWeight struct {
	OverflowBuffer    int64
	FreshCashFraction float64
}

func NewEqualWeight(cfg config.SizingConfig) *EqualWeight {
	return &EqualWeight{
		OverflowBuffer:    cfg.OverflowBuffer,
		FreshCashFraction: cfg.FreshCashFraction,
	}
}

func (e *EqualWeight) Name() string { return "equal_weight" }

func (e *EqualWeight) BuyQuantity(in BuyInputs) int64 {
	if in.BuyCount <= 0 || in.Price <= 0 {
		return 0
	}
	cash := decimal.NewFromFloat(in.Snapshot.Cash)
	if !in.Snapshot.HasOpenPositions() {
		cash = cash.Mul(decimal.NewFromFloat(e.FreshCashFraction))
	}
	perStock := cash.Div(decimal.NewFromInt(int64(in.BuyCount)))
	qty := perStock.Div(decimal.NewFromFloat(in.Price)).Floor().IntPart()
	return qty - e.OverflowBuffer
}

// RiskBased sizes inversely to the ticker's annualized volatility, capped at
// MaxPositionPct of portfolio value.
type RiskBased struct {
	MaxPositionPct float64
}

func NewRiskBased(cfg config.SizingConfig) *RiskBased {
	return &RiskBased{MaxPositionPct: cfg.MaxPositionPct}
}

func (r *RiskBased) Name() string { return "risk_based" }

func (r *RiskBased) BuyQuantity(in BuyInputs) int64 {
	if in.Price <= 0 || in.Volatility <= 0 {
		return 0
	}
	portfolio := decimal.NewFromFloat(in.Snapshot.PortfolioValue)
	maxPct := decimal.NewFromFloat(r.MaxPositionPct)
	riskFactor := decimal.NewFromInt(1).Div(decimal.NewFromFloat(in.Volatility))
	target := portfolio.Mul(riskFactor).Mul(maxPct)
	price := decimal.NewFromFloat(in.Price)
	qty := target.Div(price).Floor().IntPart()
	maxShares := portfolio.Mul(maxPct).Div(price).Floor().IntPart()
	if qty > maxShares {
		qty = maxShares
	}
	return qty
}

// Kelly sizes by the Kelly fraction for an even-payoff bet: w - (1 - w).
// A negative fraction floors to zero shares.
type Kelly struct {
	WinRate float64
}

func NewKelly(cfg config.SizingConfig) *Kelly {
	return &Kelly{WinRate: cfg.WinRate}
}

func (k *Kelly) Name() string { return "kelly" }

func (k *Kelly) BuyQuantity(in BuyInputs) int64 {
	if in.Price <= 0 {
		return 0
	}
	fraction := k.WinRate - (1 - k.WinRate)
	if fraction <= 0 {
		return 0
	}
	target := decimal.NewFromFloat(in.Snapshot.PortfolioValue).
		Mul(decimal.NewFromFloat(fraction))
	return target.Div(decimal.NewFromFloat(in.Price)).Floor().IntPart()
}

// ForName returns the configured strategy by name, falling back to equal
// weight for anything unrecognized.
func ForName(name string, cfg config.SizingConfig) Strategy {
	switch name {
	case "risk_based":
		return NewRiskBased(cfg)
	case "kelly":
		return NewKelly(cfg)
	default:
		return NewEqualWeight(cfg)
	}
}

// ForTier maps a user's risk tier to a sizing strategy. Unknown tiers get the
// globally configured default.
func ForTier(tier string, cfg config.SizingConfig) Strategy {
	switch tier {
	case "conservative", "low":
		return NewEqualWeight(cfg)
	case "moderate", "medium":
		return NewRiskBased(cfg)
	case "aggressive", "high":
		return NewKelly(cfg)
	default:
		return ForName(cfg.Strategy, cfg)
	}
}
