package decision

import "karli/internal/logger"

// ActionMap groups tickers by decided action. Order within each bucket is the
// order the decisions were produced in.
type ActionMap struct {
	Sell []string
	Hold []string
	Buy  []string
}

// Bucket returns the tickers decided for the given action.
func (m *ActionMap) Bucket(a Action) []string {
	switch a {
	case ActionSell:
		return m.Sell
	case ActionHold:
		return m.Hold
	case ActionBuy:
		return m.Buy
	default:
		return nil
	}
}

// Total returns the number of tickers across all buckets.
func (m *ActionMap) Total() int {
	return len(m.Sell) + len(m.Hold) + len(m.Buy)
}

// Aggregate groups per-ticker decisions into an ActionMap. Each ticker lands
// in exactly one bucket. A duplicate ticker in the input is not expected; if
// one appears the later entry wins and a warning is logged.
func Aggregate(results []TickerAction) ActionMap {
	var m ActionMap
	seen := make(map[string]Action, len(results))
	for _, r := range results {
		if prev, dup := seen[r.Ticker]; dup {
			logger.Warnf("aggregate: duplicate decision for %s (%s then %s), keeping the later one",
				r.Ticker, prev, r.Action)
			m.remove(prev, r.Ticker)
		}
		seen[r.Ticker] = r.Action
		switch r.Action {
		case ActionSell:
			m.Sell = append(m.Sell, r.Ticker)
		case ActionHold:
			m.Hold = append(m.Hold, r.Ticker)
		case ActionBuy:
			m.Buy = append(m.Buy, r.Ticker)
		}
	}
	return m
}

func (m *ActionMap) remove(a Action, ticker string) {
	prune := func(bucket []string) []string {
		out := bucket[:0]
		for _, t := range bucket {
			if t != ticker {
				out = append(out, t)
			}
		}
		return out
	}
	switch a {
	case ActionSell:
		m.Sell = prune(m.Sell)
	case ActionHold:
		m.Hold = prune(m.Hold)
	case ActionBuy:
		m.Buy = prune(m.Buy)
	}
}
