package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// TradingConfig is the per-run trading policy. It is loaded once and passed
// by value, never mutated after Validate.
type TradingConfig struct {
	CapitalPerSymbol       float64 `yaml:"capital_per_symbol"`
	Leverage               int     `yaml:"leverage"`
	StopLossPercent        float64 `yaml:"stop_loss_percent"`
	TakeProfitPercent      float64 `yaml:"take_profit_percent"`
	EnableShort            bool    `yaml:"enable_short"`
	EnableAutoTrade        bool    `yaml:"enable_auto_trade"`
	MinimumRequiredCapital float64 `yaml:"minimum_required_capital"`
}

// ExecutionConfig tunes the controller, pacing and fallbacks.
type ExecutionConfig struct {
	PacingInterval    time.Duration `yaml:"pacing_interval"`
	MaxAttempts       int           `yaml:"max_attempts"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	ShiftBasePercent  float64       `yaml:"shift_base_percent"`
	ShiftStepPercent  float64       `yaml:"shift_step_percent"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	Concurrency       int           `yaml:"concurrency"`
	MarginMode        string        `yaml:"margin_mode"`
	Testnet           bool          `yaml:"testnet"`

	// Used when a symbol is absent from exchange metadata. Eight decimals is
	// the finest step Binance lists, so a quantity formatted with it is never
	// coarser than what the venue would accept.
	DefaultQuantityPrecision int `yaml:"default_quantity_precision"`
	DefaultPricePrecision    int `yaml:"default_price_precision"`
}

// RankingConfig drives basket selection in rank mode.
type RankingConfig struct {
	TopN               int      `yaml:"top_n"`
	QuoteAsset         string   `yaml:"quote_asset"`
	ExcludePrefixes    []string `yaml:"exclude_prefixes"`
	DefaultMaxLeverage int      `yaml:"default_max_leverage"` // when leverage brackets are unavailable (no keys)
	PairsDir           string   `yaml:"pairs_dir"`
}

type StorageConfig struct {
	PairsFile       string `yaml:"pairs_file"`
	JournalPath     string `yaml:"journal_path"`
	ReportCSV       string `yaml:"report_csv"`
	MetricsTextfile string `yaml:"metrics_textfile"`
}

type Config struct {
	Trading   TradingConfig   `yaml:"trading"`
	Execution ExecutionConfig `yaml:"execution"`
	Ranking   RankingConfig   `yaml:"ranking"`
	Storage   StorageConfig   `yaml:"storage"`
}

// Default is the stock configuration used when no file is given.
func Default() Config {
	return Config{
		Trading: TradingConfig{
			CapitalPerSymbol:       20,
			Leverage:               10,
			StopLossPercent:        5,
			TakeProfitPercent:      1,
			EnableShort:            true,
			EnableAutoTrade:        true,
			MinimumRequiredCapital: 1000,
		},
		Execution: ExecutionConfig{
			PacingInterval:           500 * time.Millisecond,
			MaxAttempts:              3,
			RetryDelay:               time.Second,
			ShiftBasePercent:         0.5,
			ShiftStepPercent:         0.5,
			RequestsPerSecond:        10,
			Burst:                    5,
			Concurrency:              1,
			MarginMode:               "CROSSED",
			DefaultQuantityPrecision: 8,
			DefaultPricePrecision:    8,
		},
		Ranking: RankingConfig{
			TopN:               50,
			QuoteAsset:         "USDT",
			ExcludePrefixes:    []string{"BTC", "USDC"},
			DefaultMaxLeverage: 20,
			PairsDir:           "trading_pairs",
		},
		Storage: StorageConfig{
			PairsFile:       "trading_pairs/latest_pairs.json",
			JournalPath:     "data/runs.db",
			ReportCSV:       "data/outcomes.csv",
			MetricsTextfile: "data/shortbot.prom",
		},
	}
}

// Load reads path on top of Default, applies SHORTBOT_* overrides and
// validates. An empty path yields the defaults plus overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := overrideWithEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	t := c.Trading
	if t.CapitalPerSymbol <= 0 {
		errs = append(errs, fmt.Errorf("capital_per_symbol must be positive, got %v", t.CapitalPerSymbol))
	}
	if t.Leverage < 1 || t.Leverage > 125 {
		errs = append(errs, fmt.Errorf("leverage must be within 1..125, got %d", t.Leverage))
	}
	if t.StopLossPercent <= 0 {
		errs = append(errs, fmt.Errorf("stop_loss_percent must be positive, got %v", t.StopLossPercent))
	}
	if t.TakeProfitPercent <= 0 || t.TakeProfitPercent >= 100 {
		errs = append(errs, fmt.Errorf("take_profit_percent must be within (0, 100), got %v", t.TakeProfitPercent))
	}
	if t.MinimumRequiredCapital < 0 {
		errs = append(errs, fmt.Errorf("minimum_required_capital must not be negative"))
	}

	e := c.Execution
	if e.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max_attempts must be at least 1"))
	}
	if e.PacingInterval < 0 || e.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("pacing_interval and retry_delay must not be negative"))
	}
	if e.RequestsPerSecond <= 0 || e.Burst < 1 {
		errs = append(errs, fmt.Errorf("requests_per_second and burst must be positive"))
	}
	if e.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1"))
	}
	if e.MarginMode != "CROSSED" && e.MarginMode != "ISOLATED" {
		errs = append(errs, fmt.Errorf("margin_mode must be CROSSED or ISOLATED, got %q", e.MarginMode))
	}
	if e.DefaultQuantityPrecision < 0 || e.DefaultPricePrecision < 0 {
		errs = append(errs, fmt.Errorf("default precisions must not be negative"))
	}

	if c.Ranking.TopN < 1 {
		errs = append(errs, fmt.Errorf("top_n must be at least 1"))
	}
	return errors.Join(errs...)
}

// overrideWithEnv lets the environment win over the file.
func overrideWithEnv(cfg *Config) error {
	floats := map[string]*float64{
		"SHORTBOT_CAPITAL_PER_SYMBOL":       &cfg.Trading.CapitalPerSymbol,
		"SHORTBOT_STOP_LOSS_PERCENT":        &cfg.Trading.StopLossPercent,
		"SHORTBOT_TAKE_PROFIT_PERCENT":      &cfg.Trading.TakeProfitPercent,
		"SHORTBOT_MINIMUM_REQUIRED_CAPITAL": &cfg.Trading.MinimumRequiredCapital,
	}
	for key, dst := range floats {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = f
		}
	}

	if v := strings.TrimSpace(os.Getenv("SHORTBOT_LEVERAGE")); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SHORTBOT_LEVERAGE: %w", err)
		}
		cfg.Trading.Leverage = i
	}

	bools := map[string]*bool{
		"SHORTBOT_ENABLE_SHORT":      &cfg.Trading.EnableShort,
		"SHORTBOT_ENABLE_AUTO_TRADE": &cfg.Trading.EnableAutoTrade,
		"SHORTBOT_TESTNET":           &cfg.Execution.Testnet,
	}
	for key, dst := range bools {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = b
		}
	}

	if v := strings.TrimSpace(os.Getenv("SHORTBOT_PAIRS_FILE")); v != "" {
		cfg.Storage.PairsFile = v
	}
	return nil
}

type Credentials struct {
	APIKey    string
	APISecret string
}

func (c Credentials) Complete() bool {
	return c.APIKey != "" && c.APISecret != ""
}

// LoadCredentials reads BINANCE_API_KEY/SECRET after loading .env files.
// A missing .env is not an error; the process environment may carry the keys.
func LoadCredentials(files ...string) Credentials {
	_ = godotenv.Load(files...)
	return Credentials{
		APIKey:    os.Getenv("BINANCE_API_KEY"),
		APISecret: os.Getenv("BINANCE_API_SECRET"),
	}
}
