// Package features produces the normalized observation vector the policy
// consumes, one row per ticker per trading day.
package features

import (
	"context"
	"errors"
)

var (
	// ErrInsufficientHistory means the upstream returned too few candles to
	// warm up the indicator set.
	ErrInsufficientHistory = errors.New("insufficient candle history")
	// ErrMissingStats means no normalization stats exist for the ticker.
	ErrMissingStats = errors.New("missing normalization stats")
)

// Observation is one ticker's feature row for one date.
type Observation struct {
	Ticker string
	Vector []float32
	// Volatility is the annualized volatility of daily returns over the
	// fetched window, for risk-based sizing. Zero when not computable.
	Volatility float64
}

// Provider produces a normalized observation for one ticker.
type Provider interface {
	FetchObservation(ctx context.Context, ticker string) (Observation, error)
}
