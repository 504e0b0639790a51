package features

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"karli/internal/config"
)

// SentimentClient queries the external sentiment scoring service for one
// ticker. Scores come back in [-1, 1].
type SentimentClient struct {
	http *resty.Client
}

func NewSentimentClient(cfg config.SentimentConfig) *SentimentClient {
	return &SentimentClient{
		http: resty.New().
			SetBaseURL(cfg.APIURL).
			SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second),
	}
}

func (c *SentimentClient) Score(ctx context.Context, ticker string) (float64, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"ticker": ticker}).
		Post("/sentiment")
	if err != nil {
		return 0, fmt.Errorf("sentiment request for %s: %w", ticker, err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("sentiment service returned %d for %s", resp.StatusCode(), ticker)
	}
	score := gjson.GetBytes(resp.Body(), "sentiment_score")
	if !score.Exists() {
		return 0, fmt.Errorf("sentiment response missing score for %s", ticker)
	}
	v := score.Float()
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return v, nil
}
