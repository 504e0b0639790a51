package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionIndexMapping(t *testing.T) {
	// The policy head order is fixed; changing it silently would flip live
	// trading decisions, so the whole table is pinned here.
	assert.Equal(t, 0, ActionSell.Index())
	assert.Equal(t, 1, ActionHold.Index())
	assert.Equal(t, 2, ActionBuy.Index())

	for i, want := range []Action{ActionSell, ActionHold, ActionBuy} {
		got, err := ActionFromIndex(i)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ActionFromIndex(3)
	assert.Error(t, err)
	_, err = ActionFromIndex(-1)
	assert.Error(t, err)
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "SELL", ActionSell.String())
	assert.Equal(t, "HOLD", ActionHold.String())
	assert.Equal(t, "BUY", ActionBuy.String())
}

func TestAggregateGroupsByAction(t *testing.T) {
	m := Aggregate([]TickerAction{
		{Ticker: "AAPL", Action: ActionBuy},
		{Ticker: "TSLA", Action: ActionSell},
		{Ticker: "MSFT", Action: ActionHold},
		{Ticker: "NVDA", Action: ActionBuy},
	})

	assert.Equal(t, []string{"TSLA"}, m.Sell)
	assert.Equal(t, []string{"MSFT"}, m.Hold)
	assert.Equal(t, []string{"AAPL", "NVDA"}, m.Buy)
	assert.Equal(t, 4, m.Total())
}

func TestAggregatePreservesFirstSeenOrder(t *testing.T) {
	in := []TickerAction{
		{Ticker: "C", Action: ActionBuy},
		{Ticker: "A", Action: ActionBuy},
		{Ticker: "B", Action: ActionBuy},
	}
	m := Aggregate(in)
	assert.Equal(t, []string{"C", "A", "B"}, m.Buy)
}

func TestAggregateDuplicateLaterWins(t *testing.T) {
	m := Aggregate([]TickerAction{
		{Ticker: "AAPL", Action: ActionBuy},
		{Ticker: "TSLA", Action: ActionHold},
		{Ticker: "AAPL", Action: ActionSell},
	})

	assert.Equal(t, []string{"AAPL"}, m.Sell)
	assert.Empty(t, m.Buy)
	assert.Equal(t, []string{"TSLA"}, m.Hold)
	// each ticker in exactly one bucket
	assert.Equal(t, 2, m.Total())
}

func TestBucket(t *testing.T) {
	m := Aggregate([]TickerAction{{Ticker: "AAPL", Action: ActionBuy}})
	assert.Equal(t, []string{"AAPL"}, m.Bucket(ActionBuy))
	assert.Empty(t, m.Bucket(ActionSell))
	assert.Empty(t, m.Bucket(ActionHold))
}
