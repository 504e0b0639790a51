package observation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"karli/internal/features"
	"karli/internal/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	failWith map[string]error
	inFlight int
	maxSeen  int
}

func (f *fakeProvider) FetchObservation(ctx context.Context, ticker string) (features.Observation, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if err, ok := f.failWith[ticker]; ok {
		return features.Observation{}, err
	}
	vec, ok := f.vectors[ticker]
	if !ok {
		return features.Observation{}, fmt.Errorf("no fixture for %s", ticker)
	}
	return features.Observation{Ticker: ticker, Vector: vec, Volatility: 0.3}, nil
}

func vec(width int) []float32 { return make([]float32, width) }

func TestAssemblePreservesInputOrder(t *testing.T) {
	p := &fakeProvider{vectors: map[string][]float32{
		"AAPL": vec(3), "TSLA": vec(3), "MSFT": vec(3),
	}}
	a := NewAssembler(p, 4, 3)

	obs, skips := a.Assemble(context.Background(), []string{"TSLA", "AAPL", "MSFT"})
	require.Empty(t, skips)
	require.Len(t, obs, 3)
	assert.Equal(t, "TSLA", obs[0].Ticker)
	assert.Equal(t, "AAPL", obs[1].Ticker)
	assert.Equal(t, "MSFT", obs[2].Ticker)
}

func TestAssembleSkipsFailingTickerOnly(t *testing.T) {
	p := &fakeProvider{
		vectors:  map[string][]float32{"AAPL": vec(3), "MSFT": vec(3)},
		failWith: map[string]error{"TSLA": fmt.Errorf("wrap: %w", features.ErrInsufficientHistory)},
	}
	a := NewAssembler(p, 2, 3)

	obs, skips := a.Assemble(context.Background(), []string{"AAPL", "TSLA", "MSFT"})
	require.Len(t, obs, 2)
	assert.Equal(t, "AAPL", obs[0].Ticker)
	assert.Equal(t, "MSFT", obs[1].Ticker)
	require.Len(t, skips, 1)
	assert.Equal(t, "TSLA", skips[0].Ticker)
	assert.Equal(t, report.ReasonInsufficientHistory, skips[0].Reason)
}

func TestAssembleSkipReasons(t *testing.T) {
	p := &fakeProvider{
		vectors: map[string][]float32{},
		failWith: map[string]error{
			"A": features.ErrInsufficientHistory,
			"B": features.ErrMissingStats,
			"C": errors.New("connection reset"),
		},
	}
	a := NewAssembler(p, 1, 3)

	obs, skips := a.Assemble(context.Background(), []string{"A", "B", "C"})
	assert.Empty(t, obs)
	require.Len(t, skips, 3)
	reasons := map[string]string{}
	for _, s := range skips {
		reasons[s.Ticker] = s.Reason
	}
	assert.Equal(t, report.ReasonInsufficientHistory, reasons["A"])
	assert.Equal(t, report.ReasonMissingStats, reasons["B"])
	assert.Equal(t, report.ReasonUpstreamFetchError, reasons["C"])
}

func TestAssembleDropsWidthMismatch(t *testing.T) {
	p := &fakeProvider{vectors: map[string][]float32{
		"AAPL": vec(3),
		"TSLA": vec(5),
	}}
	a := NewAssembler(p, 2, 3)

	obs, skips := a.Assemble(context.Background(), []string{"AAPL", "TSLA"})
	require.Len(t, obs, 1)
	assert.Equal(t, "AAPL", obs[0].Ticker)
	require.Len(t, skips, 1)
	assert.Equal(t, report.ReasonWidthMismatch, skips[0].Reason)
}

func TestAssembleBoundsConcurrency(t *testing.T) {
	vectors := map[string][]float32{}
	tickers := make([]string, 20)
	for i := range tickers {
		tickers[i] = fmt.Sprintf("T%02d", i)
		vectors[tickers[i]] = vec(3)
	}
	p := &fakeProvider{vectors: vectors}
	a := NewAssembler(p, 3, 3)

	obs, skips := a.Assemble(context.Background(), tickers)
	assert.Len(t, obs, 20)
	assert.Empty(t, skips)
	assert.LessOrEqual(t, p.maxSeen, 3)
}
