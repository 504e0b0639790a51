package broker

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"karli/internal/config"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// RESTClient talks to an Alpaca-compatible brokerage REST API. Trading calls
// are never retried; idempotent reads (account, positions, quotes) get a
// bounded retry with backoff on a separate client.
type RESTClient struct {
	trade *resty.Client
	read  *resty.Client
	data  *resty.Client
}

// RESTDialer builds per-user REST clients from broker configuration.
type RESTDialer struct {
	cfg config.BrokerConfig
}

func NewRESTDialer(cfg config.BrokerConfig) *RESTDialer {
	return &RESTDialer{cfg: cfg}
}

func (d *RESTDialer) Dial(creds Credentials) Client {
	return NewRESTClient(d.cfg, creds)
}

// NewRESTClient constructs a client bound to one account's credentials.
func NewRESTClient(cfg config.BrokerConfig, creds Credentials) *RESTClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	newClient := func(baseURL string, retries int) *resty.Client {
		c := resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout).
			SetHeader("APCA-API-KEY-ID", creds.APIKey).
			SetHeader("APCA-API-SECRET-KEY", creds.APISecret)
		if retries > 0 {
			c.SetRetryCount(retries).
				SetRetryWaitTime(500 * time.Millisecond).
				SetRetryMaxWaitTime(3 * time.Second)
		}
		return c
	}
	return &RESTClient{
		trade: newClient(cfg.BaseURL, 0),
		read:  newClient(cfg.BaseURL, cfg.RetryReads),
		data:  newClient(cfg.DataBaseURL, cfg.RetryReads),
	}
}

func apiErr(resp *resty.Response) error {
	msg := gjson.GetBytes(resp.Body(), "message").String()
	if msg == "" {
		msg = strings.TrimSpace(string(resp.Body()))
	}
	return &APIError{StatusCode: resp.StatusCode(), Message: msg}
}

func (c *RESTClient) GetAccount(ctx context.Context) (Account, error) {
	resp, err := c.read.R().SetContext(ctx).Get("/account")
	if err != nil {
		return Account{}, fmt.Errorf("fetching account: %w", err)
	}
	if resp.IsError() {
		return Account{}, apiErr(resp)
	}
	body := resp.Body()
	return Account{
		Cash:           gjson.GetBytes(body, "cash").Float(),
		Equity:         gjson.GetBytes(body, "equity").Float(),
		Currency:       gjson.GetBytes(body, "currency").String(),
		Status:         gjson.GetBytes(body, "status").String(),
		AccountBlocked: gjson.GetBytes(body, "account_blocked").Bool(),
		TradingBlocked: gjson.GetBytes(body, "trading_blocked").Bool(),
	}, nil
}

func (c *RESTClient) GetOpenPositions(ctx context.Context) ([]Position, error) {
	resp, err := c.read.R().SetContext(ctx).Get("/positions")
	if err != nil {
		return nil, fmt.Errorf("fetching positions: %w", err)
	}
	if resp.IsError() {
		return nil, apiErr(resp)
	}
	var out []Position
	gjson.ParseBytes(resp.Body()).ForEach(func(_, item gjson.Result) bool {
		out = append(out, Position{
			Symbol:        item.Get("symbol").String(),
			Qty:           int64(math.Floor(item.Get("qty").Float())),
			AvgEntryPrice: item.Get("avg_entry_price").Float(),
			MarketValue:   item.Get("market_value").Float(),
		})
		return true
	})
	return out, nil
}

func (c *RESTClient) GetLatestTradePrice(ctx context.Context, symbol string) (float64, error) {
	resp, err := c.data.R().SetContext(ctx).Get("/stocks/" + symbol + "/trades/latest")
	if err != nil {
		return 0, fmt.Errorf("fetching latest trade for %s: %w", symbol, err)
	}
	if resp.IsError() {
		return 0, apiErr(resp)
	}
	price := gjson.GetBytes(resp.Body(), "trade.p").Float()
	if price <= 0 {
		return 0, fmt.Errorf("no trade price for %s", symbol)
	}
	return price, nil
}

func (c *RESTClient) SubmitOrder(ctx context.Context, req OrderRequest) (Order, error) {
	if req.Type == "" {
		req.Type = OrderTypeMarket
	}
	if req.TimeInForce == "" {
		req.TimeInForce = TimeInForceDay
	}
	payload := map[string]any{
		"symbol":        req.Symbol,
		"qty":           fmt.Sprintf("%d", req.Qty),
		"side":          string(req.Side),
		"type":          req.Type,
		"time_in_force": req.TimeInForce,
	}
	resp, err := c.trade.R().SetContext(ctx).SetBody(payload).Post("/orders")
	if err != nil {
		return Order{}, fmt.Errorf("submitting %s %s: %w", req.Side, req.Symbol, err)
	}
	if resp.IsError() {
		return Order{}, apiErr(resp)
	}
	body := resp.Body()
	return Order{
		ID:          gjson.GetBytes(body, "id").String(),
		Symbol:      req.Symbol,
		Qty:         req.Qty,
		Side:        req.Side,
		Status:      gjson.GetBytes(body, "status").String(),
		SubmittedAt: time.Now(),
	}, nil
}
