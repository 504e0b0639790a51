package app

import (
	"fmt"
	"time"

	"karli/internal/config"
	"karli/internal/execution"
	"karli/internal/features"
	"karli/internal/gateway/broker"
	"karli/internal/observation"
	"karli/internal/pipeline"
	"karli/internal/policy"
	"karli/internal/store/runlog"
	httpapi "karli/internal/transport/http"
	"karli/internal/users"
)

// buildApp wires each stage of the pipeline from configuration.
func buildApp(cfg *config.Config) (*App, error) {
	stats, err := features.LoadStats(cfg.Features.StatsPath)
	if err != nil {
		return nil, fmt.Errorf("loading normalization stats: %w", err)
	}

	var sentiment features.SentimentScorer
	if cfg.Sentiment.Enabled {
		sentiment = features.NewSentimentClient(cfg.Sentiment)
	}
	provider := features.NewTAProvider(
		features.NewYahooSource(),
		stats,
		cfg.Features.HistoryDays,
		cfg.Features.AccountFlag,
		sentiment,
	)

	pol, err := policy.NewONNXPolicy(cfg.Policy)
	if err != nil {
		return nil, fmt.Errorf("loading policy models: %w", err)
	}

	assembler := observation.NewAssembler(provider, cfg.Pipeline.FetchConcurrency, pol.InputWidth())

	roster, err := users.NewFileStore(cfg.Users.RosterPath, cfg.Users.WatchRoster)
	if err != nil {
		pol.Close()
		return nil, fmt.Errorf("loading user roster: %w", err)
	}

	runs, err := runlog.New(cfg.Store.RunLogPath)
	if err != nil {
		pol.Close()
		return nil, fmt.Errorf("opening run log: %w", err)
	}

	dialer := broker.NewRESTDialer(cfg.Broker)
	coordinator := execution.NewCoordinator(dialer, cfg.Sizing,
		time.Duration(cfg.Execution.SettleWaitSeconds)*time.Second)
	driver := execution.NewDriver(coordinator, cfg.Execution.UserConcurrency)

	pipe := pipeline.New(cfg.Pipeline.Tickers, assembler, pol, driver, roster, runs)

	server, err := httpapi.NewServer(httpapi.ServerConfig{
		Addr:     cfg.App.HTTPAddr,
		Runner:   pipe,
		Runs:     runs,
		Accounts: execution.NewAccountService(roster, dialer),
	})
	if err != nil {
		pol.Close()
		runs.Close()
		return nil, err
	}

	return &App{
		cfg:      cfg,
		pipeline: pipe,
		server:   server,
		policy:   pol,
		runs:     runs,
	}, nil
}
