package features

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"karli/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCandleSource struct {
	candles []Candle
	err     error
}

func (f *fakeCandleSource) DailyHistory(ctx context.Context, ticker string, days int) ([]Candle, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.candles, nil
}

// syntheticCandles builds a gently oscillating series long enough to warm up
// every indicator.
func syntheticCandles(n int) []Candle {
	out := make([]Candle, n)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		px := 100 + 10*math.Sin(float64(i)/7) + 0.05*float64(i)
		out[i] = Candle{
			Date:   base.AddDate(0, 0, i),
			Open:   px - 0.5,
			High:   px + 1,
			Low:    px - 1,
			Close:  px,
			Volume: 1_000_000 + 5000*float64(i%13),
		}
	}
	return out
}

func fullStats() Stats {
	st := map[string]MeanStd{}
	for _, name := range FeatureColumns {
		st[name] = MeanStd{Mean: 0, Std: 50}
	}
	return Stats{"AAPL": st}
}

func TestFetchObservationVectorShape(t *testing.T) {
	src := &fakeCandleSource{candles: syntheticCandles(200)}
	p := NewTAProvider(src, fullStats(), 120, 1, nil)

	obs, err := p.FetchObservation(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", obs.Ticker)
	assert.Len(t, obs.Vector, p.Width())
	assert.Equal(t, len(FeatureColumns)+1, p.Width())

	// normalized features stay in [-1, 1]; the account flag is appended last
	for i, v := range obs.Vector[:len(obs.Vector)-1] {
		assert.GreaterOrEqual(t, float64(v), -1.0, "feature %d", i)
		assert.LessOrEqual(t, float64(v), 1.0, "feature %d", i)
	}
	assert.Equal(t, float32(1), obs.Vector[len(obs.Vector)-1])
	assert.Greater(t, obs.Volatility, 0.0)
}

func TestFetchObservationDeterministic(t *testing.T) {
	src := &fakeCandleSource{candles: syntheticCandles(200)}
	p := NewTAProvider(src, fullStats(), 120, 1, nil)

	a, err := p.FetchObservation(context.Background(), "AAPL")
	require.NoError(t, err)
	b, err := p.FetchObservation(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, a.Vector, b.Vector)
}

func TestFetchObservationInsufficientHistory(t *testing.T) {
	src := &fakeCandleSource{candles: syntheticCandles(30)}
	p := NewTAProvider(src, fullStats(), 120, 1, nil)

	_, err := p.FetchObservation(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestFetchObservationMissingStats(t *testing.T) {
	src := &fakeCandleSource{candles: syntheticCandles(200)}
	p := NewTAProvider(src, Stats{}, 120, 1, nil)

	_, err := p.FetchObservation(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrMissingStats)
}

func TestFetchObservationUpstreamError(t *testing.T) {
	upstream := errors.New("feed down")
	src := &fakeCandleSource{err: upstream}
	p := NewTAProvider(src, fullStats(), 120, 1, nil)

	_, err := p.FetchObservation(context.Background(), "AAPL")
	assert.ErrorIs(t, err, upstream)
}

type fakeScorer struct {
	score float64
	err   error
}

func (f *fakeScorer) Score(ctx context.Context, ticker string) (float64, error) {
	return f.score, f.err
}

func TestSentimentFeatureAppended(t *testing.T) {
	src := &fakeCandleSource{candles: syntheticCandles(200)}
	p := NewTAProvider(src, fullStats(), 120, 1, &fakeScorer{score: 0.4})

	obs, err := p.FetchObservation(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Len(t, obs.Vector, len(FeatureColumns)+2)
	// sentiment sits between the indicators and the account flag
	assert.InDelta(t, 0.4, float64(obs.Vector[len(obs.Vector)-2]), 1e-6)
}

func TestSentimentErrorDegradesToNeutral(t *testing.T) {
	src := &fakeCandleSource{candles: syntheticCandles(200)}
	p := NewTAProvider(src, fullStats(), 120, 1, &fakeScorer{err: errors.New("rate limited")})

	obs, err := p.FetchObservation(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, float32(0), obs.Vector[len(obs.Vector)-2])
}

func TestNormalizeClipsToUnitRange(t *testing.T) {
	pair := MeanStd{Mean: 50, Std: 10}
	assert.InDelta(t, 0.1, pair.Normalize(51), 1e-9)
	assert.Equal(t, 1.0, pair.Normalize(1000))
	assert.Equal(t, -1.0, pair.Normalize(-1000))
	assert.Equal(t, 0.0, MeanStd{Mean: 50, Std: 0}.Normalize(51))
}

func TestAnnualizedVolatility(t *testing.T) {
	flat := make([]Candle, 50)
	for i := range flat {
		flat[i] = Candle{Close: 100}
	}
	assert.Equal(t, 0.0, annualizedVolatility(flat))

	assert.Greater(t, annualizedVolatility(syntheticCandles(120)), 0.0)
	assert.Equal(t, 0.0, annualizedVolatility(nil))
}

func TestSentimentClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sentiment", r.URL.Path)
		w.Write([]byte(`{"ticker":"AAPL","sentiment_score":0.73}`))
	}))
	defer srv.Close()

	c := NewSentimentClient(config.SentimentConfig{APIURL: srv.URL, TimeoutSeconds: 5})
	score, err := c.Score(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.InDelta(t, 0.73, score, 1e-9)
}

func TestSentimentClientClampsScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"sentiment_score":3.2}`))
	}))
	defer srv.Close()

	c := NewSentimentClient(config.SentimentConfig{APIURL: srv.URL, TimeoutSeconds: 5})
	score, err := c.Score(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}
