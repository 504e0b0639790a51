package config

// Config is the top-level configuration for the trading pipeline.
type Config struct {
	App       AppConfig       `toml:"app"`
	Pipeline  PipelineConfig  `toml:"pipeline"`
	Features  FeaturesConfig  `toml:"features"`
	Sentiment SentimentConfig `toml:"sentiment"`
	Policy    PolicyConfig    `toml:"policy"`
	Broker    BrokerConfig    `toml:"broker"`
	Sizing    SizingConfig    `toml:"sizing"`
	Execution ExecutionConfig `toml:"execution"`
	Users     UsersConfig     `toml:"users"`
	Store     StoreConfig     `toml:"store"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// PipelineConfig controls the daily run cadence and the ticker universe.
type PipelineConfig struct {
	Tickers          []string `toml:"tickers"`
	Interval         string   `toml:"interval"`       // "1d" in production, "5m"/"1m" for testing
	OffsetSeconds    int      `toml:"offset_seconds"` // delay after interval boundary
	RunImmediately   bool     `toml:"run_immediately"`
	FetchConcurrency int      `toml:"fetch_concurrency"`
}

type FeaturesConfig struct {
	StatsPath   string  `toml:"stats_path"`   // per-ticker normalization stats (yaml)
	HistoryDays int     `toml:"history_days"` // candle lookback for indicator warmup
	AccountFlag float64 `toml:"account_flag"` // account-context feature appended to each row
}

type SentimentConfig struct {
	Enabled        bool   `toml:"enabled"`
	APIURL         string `toml:"api_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type PolicyConfig struct {
	ModelDir    string `toml:"model_dir"`    // directory of <TICKER>_best_model.onnx files
	LibraryPath string `toml:"library_path"` // onnxruntime shared library
	InputWidth  int    `toml:"input_width"`  // expected observation width, features+1
}

type BrokerConfig struct {
	BaseURL        string `toml:"base_url"`
	DataBaseURL    string `toml:"data_base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryReads     int    `toml:"retry_reads"` // bounded retries for idempotent reads only
}

// SizingConfig holds the knobs shared by the position sizing strategies.
type SizingConfig struct {
	Strategy          string  `toml:"strategy"` // equal_weight | risk_based | kelly
	OverflowBuffer    int64   `toml:"overflow_buffer_shares"`
	FreshCashFraction float64 `toml:"fresh_cash_fraction"`
	MaxPositionPct    float64 `toml:"max_position_pct"`
	WinRate           float64 `toml:"win_rate"`
}

type ExecutionConfig struct {
	SettleWaitSeconds int `toml:"settle_wait_seconds"`
	UserConcurrency   int `toml:"user_concurrency"`
}

type UsersConfig struct {
	RosterPath  string `toml:"roster_path"`
	WatchRoster bool   `toml:"watch_roster"`
}

type StoreConfig struct {
	RunLogPath string `toml:"run_log_path"`
}
