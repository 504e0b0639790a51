package features

import (
	"context"
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"

	"karli/internal/logger"
)

// FeatureColumns is the indicator row layout, in vector order. The
// normalization stats file keys features by these names; changing the order
// or the set invalidates every trained model.
var FeatureColumns = []string{
	"rsi", "stoch_k", "roc", "cci", "trix",
	"mfi", "bb_percent", "adx", "willr", "natr",
}

// minCandles is the warmup the slowest indicator needs before the last row
// is meaningful.
const minCandles = 90

const tradingDaysPerYear = 252

// SentimentScorer is the optional auxiliary feature provider. A score is in
// [-1, 1]; errors degrade to neutral, they never skip the ticker.
type SentimentScorer interface {
	Score(ctx context.Context, ticker string) (float64, error)
}

// TAProvider assembles one normalized feature row per ticker from daily
// candles and technical indicators.
type TAProvider struct {
	source      CandleSource
	stats       Stats
	historyDays int
	accountFlag float64
	sentiment   SentimentScorer // nil when disabled
}

func NewTAProvider(source CandleSource, stats Stats, historyDays int, accountFlag float64, sentiment SentimentScorer) *TAProvider {
	return &TAProvider{
		source:      source,
		stats:       stats,
		historyDays: historyDays,
		accountFlag: accountFlag,
		sentiment:   sentiment,
	}
}

// Width returns the observation vector length this provider produces.
func (p *TAProvider) Width() int {
	w := len(FeatureColumns) + 1 // +1 account-context flag
	if p.sentiment != nil {
		w++
	}
	return w
}

func (p *TAProvider) FetchObservation(ctx context.Context, ticker string) (Observation, error) {
	tickerStats, err := p.stats.ForTicker(ticker)
	if err != nil {
		return Observation{}, err
	}

	candles, err := p.source.DailyHistory(ctx, ticker, p.historyDays)
	if err != nil {
		return Observation{}, err
	}
	if len(candles) < minCandles {
		return Observation{}, fmt.Errorf("%w: %s has %d candles, need %d",
			ErrInsufficientHistory, ticker, len(candles), minCandles)
	}

	row := latestIndicatorRow(candles)
	vector := make([]float32, 0, p.Width())
	for _, name := range FeatureColumns {
		raw, ok := row[name]
		if !ok || math.IsNaN(raw) {
			return Observation{}, fmt.Errorf("%w: %s indicator %s not computable",
				ErrInsufficientHistory, ticker, name)
		}
		pair, ok := tickerStats[name]
		if !ok {
			return Observation{}, fmt.Errorf("%w: %s lacks stats for %s", ErrMissingStats, ticker, name)
		}
		vector = append(vector, float32(pair.Normalize(raw)))
	}

	if p.sentiment != nil {
		score, err := p.sentiment.Score(ctx, ticker)
		if err != nil {
			logger.Warnf("sentiment score failed for %s, using neutral: %v", ticker, err)
			score = 0
		}
		vector = append(vector, float32(score))
	}
	vector = append(vector, float32(p.accountFlag))

	return Observation{
		Ticker:     ticker,
		Vector:     vector,
		Volatility: annualizedVolatility(candles),
	}, nil
}

func latestIndicatorRow(candles []Candle) map[string]float64 {
	n := len(candles)
	high := make([]float64, n)
	low := make([]float64, n)
	closePx := make([]float64, n)
	volume := make([]float64, n)
	for i, c := range candles {
		high[i] = c.High
		low[i] = c.Low
		closePx[i] = c.Close
		volume[i] = c.Volume
	}

	stochK, _ := talib.Stoch(high, low, closePx, 14, 3, talib.SMA, 3, talib.SMA)
	upper, _, lower := talib.BBands(closePx, 20, 2, 2, talib.SMA)

	last := n - 1
	bbPercent := math.NaN()
	if band := upper[last] - lower[last]; band > 0 {
		bbPercent = (closePx[last] - lower[last]) / band
	}

	return map[string]float64{
		"rsi":        talib.Rsi(closePx, 14)[last],
		"stoch_k":    stochK[last],
		"roc":        talib.Roc(closePx, 12)[last],
		"cci":        talib.Cci(high, low, closePx, 20)[last],
		"trix":       talib.Trix(closePx, 15)[last],
		"mfi":        talib.Mfi(high, low, closePx, volume, 14)[last],
		"bb_percent": bbPercent,
		"adx":        talib.Adx(high, low, closePx, 14)[last],
		"willr":      talib.WillR(high, low, closePx, 14)[last],
		"natr":       talib.Natr(high, low, closePx, 14)[last],
	}
}

// annualizedVolatility is the stddev of daily log returns scaled to a
// trading year.
func annualizedVolatility(candles []Candle) float64 {
	if len(candles) < 3 {
		return 0
	}
	var returns []float64
	for i := 1; i < len(candles); i++ {
		prev, cur := candles[i-1].Close, candles[i].Close
		if prev <= 0 || cur <= 0 {
			continue
		}
		returns = append(returns, math.Log(cur/prev))
	}
	if len(returns) < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))
	var ss float64
	for _, r := range returns {
		d := r - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(len(returns)-1))
	return std * math.Sqrt(tradingDaysPerYear)
}
