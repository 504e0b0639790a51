package features

import (
	"context"
	"fmt"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"

	"karli/internal/pkg/circuit"
)

// Candle is one daily OHLCV bar.
type Candle struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// CandleSource fetches daily history for one ticker.
type CandleSource interface {
	DailyHistory(ctx context.Context, ticker string, days int) ([]Candle, error)
}

// YahooSource fetches daily candles from Yahoo Finance. A circuit breaker
// trips after consecutive upstream failures so one dead feed does not burn a
// slow timeout per ticker across the whole universe.
type YahooSource struct {
	breaker *circuit.CircuitBreaker
	nowFn   func() time.Time
}

func NewYahooSource() *YahooSource {
	return &YahooSource{
		breaker: circuit.NewCircuitBreaker("yahoo", 5, 2*time.Minute),
		nowFn:   time.Now,
	}
}

func (y *YahooSource) DailyHistory(ctx context.Context, ticker string, days int) ([]Candle, error) {
	if !y.breaker.Allow() {
		return nil, fmt.Errorf("market data circuit open for %s", ticker)
	}
	end := y.nowFn()
	start := end.AddDate(0, 0, -days)
	params := &chart.Params{
		Symbol:   ticker,
		Interval: datetime.OneDay,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
	}
	params.Context = &ctx

	iter := chart.Get(params)
	var out []Candle
	for iter.Next() {
		bar := iter.Bar()
		closePx, _ := bar.Close.Float64()
		openPx, _ := bar.Open.Float64()
		highPx, _ := bar.High.Float64()
		lowPx, _ := bar.Low.Float64()
		out = append(out, Candle{
			Date:   time.Unix(int64(bar.Timestamp), 0).UTC(),
			Open:   openPx,
			High:   highPx,
			Low:    lowPx,
			Close:  closePx,
			Volume: float64(bar.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		y.breaker.RecordFailure()
		return nil, fmt.Errorf("fetching candles for %s: %w", ticker, err)
	}
	if len(out) == 0 {
		y.breaker.RecordFailure()
		return nil, fmt.Errorf("no candles returned for %s", ticker)
	}
	y.breaker.RecordSuccess()
	return out, nil
}
