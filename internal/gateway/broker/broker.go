// Package broker abstracts the brokerage API the execution layer trades
// through. Positions and cash live at the broker; nothing here is cached
// across runs.
package broker

import (
	"context"
	"fmt"
	"time"
)

// Side of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// All orders this system submits are market/day.
const (
	OrderTypeMarket = "market"
	TimeInForceDay  = "day"
)

// Credentials identify one user's brokerage account.
type Credentials struct {
	APIKey    string
	APISecret string
}

// Empty reports whether either key half is missing.
func (c Credentials) Empty() bool {
	return c.APIKey == "" || c.APISecret == ""
}

// Account is a point-in-time snapshot of one brokerage account.
type Account struct {
	Cash           float64
	Equity         float64
	Currency       string
	Status         string
	AccountBlocked bool
	TradingBlocked bool
}

// Position is one open holding.
type Position struct {
	Symbol        string
	Qty           int64
	AvgEntryPrice float64
	MarketValue   float64
}

// OrderRequest describes an order to submit.
type OrderRequest struct {
	Symbol      string
	Qty         int64
	Side        Side
	Type        string
	TimeInForce string
}

// Order is the broker's acknowledgement of a submitted order.
type Order struct {
	ID          string
	Symbol      string
	Qty         int64
	Side        Side
	Status      string
	SubmittedAt time.Time
}

// Client is the per-account brokerage API surface the pipeline consumes.
type Client interface {
	GetAccount(ctx context.Context) (Account, error)
	GetOpenPositions(ctx context.Context) ([]Position, error)
	GetLatestTradePrice(ctx context.Context, symbol string) (float64, error)
	SubmitOrder(ctx context.Context, req OrderRequest) (Order, error)
}

// Dialer builds a Client bound to one user's credentials. The execution
// coordinator dials a fresh client per user turn.
type Dialer interface {
	Dial(creds Credentials) Client
}

// APIError is a non-2xx response from the brokerage API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("broker api error (status %d): %s", e.StatusCode, e.Message)
}
