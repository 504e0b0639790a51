package config

const (
	defaultAppEnv            = "dev"
	defaultAppLogLevel       = "info"
	defaultAppHTTPAddr       = ":9991"
	defaultPipelineInterval  = "1d"
	defaultPipelineOffset    = 30
	defaultFetchConcurrency  = 4
	defaultHistoryDays       = 120
	defaultSentimentTimeout  = 15
	defaultBrokerBaseURL     = "https://paper-api.alpaca.markets/v2"
	defaultBrokerDataBaseURL = "https://data.alpaca.markets/v2"
	defaultBrokerTimeout     = 15
	defaultBrokerRetryReads  = 2
	defaultSizingStrategy    = "equal_weight"
	defaultOverflowBuffer    = 1
	defaultFreshCashFrac     = 2.0 / 3.0
	defaultMaxPositionPct    = 0.1
	defaultWinRate           = 0.55
	defaultSettleWait        = 2
	defaultUserConcurrency   = 1
	defaultRosterPath        = "configs/users.yaml"
	defaultRunLogPath        = "data/runlog.db"
	defaultStatsPath         = "configs/feature_stats.yaml"
	defaultModelDir          = "models"
)

func (c *Config) applyDefaults() {
	c.App.applyDefaults()
	c.Pipeline.applyDefaults()
	c.Features.applyDefaults()
	c.Sentiment.applyDefaults()
	c.Policy.applyDefaults()
	c.Broker.applyDefaults()
	c.Sizing.applyDefaults()
	c.Execution.applyDefaults()
	c.Users.applyDefaults()
	c.Store.applyDefaults()
}

func (a *AppConfig) applyDefaults() {
	if a.Env == "" {
		a.Env = defaultAppEnv
	}
	if a.LogLevel == "" {
		a.LogLevel = defaultAppLogLevel
	}
	if a.HTTPAddr == "" {
		a.HTTPAddr = defaultAppHTTPAddr
	}
}

func (p *PipelineConfig) applyDefaults() {
	if p.Interval == "" {
		p.Interval = defaultPipelineInterval
	}
	if p.OffsetSeconds <= 0 {
		p.OffsetSeconds = defaultPipelineOffset
	}
	if p.FetchConcurrency <= 0 {
		p.FetchConcurrency = defaultFetchConcurrency
	}
}

func (f *FeaturesConfig) applyDefaults() {
	if f.StatsPath == "" {
		f.StatsPath = defaultStatsPath
	}
	if f.HistoryDays <= 0 {
		f.HistoryDays = defaultHistoryDays
	}
}

func (s *SentimentConfig) applyDefaults() {
	if s.TimeoutSeconds <= 0 {
		s.TimeoutSeconds = defaultSentimentTimeout
	}
}

func (p *PolicyConfig) applyDefaults() {
	if p.ModelDir == "" {
		p.ModelDir = defaultModelDir
	}
}

func (b *BrokerConfig) applyDefaults() {
	if b.BaseURL == "" {
		b.BaseURL = defaultBrokerBaseURL
	}
	if b.DataBaseURL == "" {
		b.DataBaseURL = defaultBrokerDataBaseURL
	}
	if b.TimeoutSeconds <= 0 {
		b.TimeoutSeconds = defaultBrokerTimeout
	}
	if b.RetryReads <= 0 {
		b.RetryReads = defaultBrokerRetryReads
	}
}

func (s *SizingConfig) applyDefaults() {
	if s.Strategy == "" {
		s.Strategy = defaultSizingStrategy
	}
	if s.OverflowBuffer <= 0 {
		s.OverflowBuffer = defaultOverflowBuffer
	}
	if s.FreshCashFraction <= 0 || s.FreshCashFraction > 1 {
		s.FreshCashFraction = defaultFreshCashFrac
	}
	if s.MaxPositionPct <= 0 || s.MaxPositionPct > 1 {
		s.MaxPositionPct = defaultMaxPositionPct
	}
	if s.WinRate <= 0 || s.WinRate >= 1 {
		s.WinRate = defaultWinRate
	}
}

func (e *ExecutionConfig) applyDefaults() {
	if e.SettleWaitSeconds <= 0 {
		e.SettleWaitSeconds = defaultSettleWait
	}
	if e.UserConcurrency <= 0 {
		e.UserConcurrency = defaultUserConcurrency
	}
}

func (u *UsersConfig) applyDefaults() {
	if u.RosterPath == "" {
		u.RosterPath = defaultRosterPath
	}
}

func (s *StoreConfig) applyDefaults() {
	if s.RunLogPath == "" {
		s.RunLogPath = defaultRunLogPath
	}
}
