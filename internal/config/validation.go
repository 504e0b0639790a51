package config

import (
	"fmt"
	"strings"
)

func validate(c *Config) error {
	if err := c.Pipeline.validate(); err != nil {
		return err
	}
	if err := c.Sentiment.validate(); err != nil {
		return err
	}
	if err := c.Sizing.validate(); err != nil {
		return err
	}
	if err := c.Broker.validate(); err != nil {
		return err
	}
	return nil
}

func (p *PipelineConfig) validate() error {
	if len(p.Tickers) == 0 {
		return fmt.Errorf("pipeline.tickers requires at least one ticker")
	}
	seen := make(map[string]struct{}, len(p.Tickers))
	for i, t := range p.Tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			return fmt.Errorf("pipeline.tickers contains an empty symbol")
		}
		if _, dup := seen[t]; dup {
			return fmt.Errorf("pipeline.tickers contains duplicate symbol: %s", t)
		}
		seen[t] = struct{}{}
		p.Tickers[i] = t
	}
	return nil
}

func (s *SentimentConfig) validate() error {
	if s.Enabled && strings.TrimSpace(s.APIURL) == "" {
		return fmt.Errorf("sentiment.api_url required when sentiment.enabled")
	}
	return nil
}

func (s *SizingConfig) validate() error {
	switch s.Strategy {
	case "equal_weight", "risk_based", "kelly":
		return nil
	default:
		return fmt.Errorf("sizing.strategy must be one of equal_weight|risk_based|kelly, got %q", s.Strategy)
	}
}

func (b *BrokerConfig) validate() error {
	if strings.TrimSpace(b.BaseURL) == "" {
		return fmt.Errorf("broker.base_url cannot be empty")
	}
	return nil
}
