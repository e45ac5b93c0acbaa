package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all pipeline configuration. Every stage receives it explicitly.
type Config struct {
	Fetch struct {
		Provider     string        `yaml:"provider"` // yahoo | rest | mock
		Tickers      []string      `yaml:"tickers"`
		LookbackDays int           `yaml:"lookback_days"`
		Concurrency  int           `yaml:"concurrency"`
		Timeout      time.Duration `yaml:"timeout"`
		BaseURL      string        `yaml:"base_url"`
		APIKey       string        `yaml:"api_key"`
		// SymbolMap renames tickers for the provider, e.g. SPX -> ^GSPC for Yahoo.
		SymbolMap map[string]string `yaml:"symbol_map"`
	} `yaml:"fetch"`
	Normalizer struct {
		Aliases                 map[string][]string `yaml:"aliases"`
		DateLayouts             []string            `yaml:"date_layouts"`
		AdjCloseFallbackToClose bool                `yaml:"adj_close_fallback_to_close"`
	} `yaml:"normalizer"`
	Paths struct {
		RawFile        string `yaml:"raw_file"`
		ReportsDir     string `yaml:"reports_dir"`
		SummaryFile    string `yaml:"summary_file"`
		VolatilityFile string `yaml:"volatility_file"`
		ChartFile      string `yaml:"chart_file"`
	} `yaml:"paths"`
	Database DatabaseConfig `yaml:"database"`
	Analysis struct {
		Window              int `yaml:"window"`
		AnnualizationFactor int `yaml:"annualization_factor"`
	} `yaml:"analysis"`
	Schedule struct {
		Cron       string `yaml:"cron"`
		RunOnStart bool   `yaml:"run_on_start"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Logging LoggingConfig `yaml:"logging"`
	Proxy   string        `yaml:"proxy"`
}

// DatabaseConfig selects and configures the price store.
type DatabaseConfig struct {
	Driver     string `yaml:"driver"` // sqlite | postgres
	SQLitePath string `yaml:"sqlite_path"`
	URL        string `yaml:"url"`
	MaxConns   int    `yaml:"max_conns"`
	MinConns   int    `yaml:"min_conns"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // console | json
	Output     string `yaml:"output"` // stdout | stderr | <file path>
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Load reads config from a YAML file, then applies .env and environment variable overrides.
// A missing file is not an error; defaults fill whatever is left unset.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// .env is optional; real environment variables take precedence over it.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	applyEnv(cfg)
	cfg.applyDefaults()

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("MARKETETL_TICKERS"); v != "" {
		cfg.Fetch.Tickers = splitList(v)
	}
	if v := os.Getenv("MARKETETL_PROVIDER"); v != "" {
		cfg.Fetch.Provider = v
	}
	if v := os.Getenv("VSTRADER_BASE_URL"); v != "" {
		cfg.Fetch.BaseURL = v
	}
	if v := os.Getenv("VSTRADER_API_KEY"); v != "" {
		cfg.Fetch.APIKey = v
	}
	if v := os.Getenv("MARKETETL_LOOKBACK_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Fetch.LookbackDays = n
		}
	}
	if v := os.Getenv("MARKETETL_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CRON_SCHEDULE"); v != "" {
		cfg.Schedule.Cron = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if len(c.Fetch.Tickers) == 0 {
		return fmt.Errorf("fetch.tickers must not be empty")
	}
	switch c.Fetch.Provider {
	case ProviderYahoo, ProviderMock:
	case ProviderREST:
		if c.Fetch.BaseURL == "" {
			return fmt.Errorf("fetch.base_url is required for provider %q", ProviderREST)
		}
	default:
		return fmt.Errorf("unknown fetch.provider %q", c.Fetch.Provider)
	}
	if c.Fetch.LookbackDays <= 0 {
		return fmt.Errorf("fetch.lookback_days must be positive")
	}
	if c.Fetch.Concurrency <= 0 {
		return fmt.Errorf("fetch.concurrency must be positive")
	}
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("database.sqlite_path is required for sqlite")
		}
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for postgres")
		}
		if c.Database.MinConns > c.Database.MaxConns {
			return fmt.Errorf("database.min_conns (%d) exceeds max_conns (%d)", c.Database.MinConns, c.Database.MaxConns)
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	if c.Analysis.Window < 2 {
		return fmt.Errorf("analysis.window must be at least 2")
	}
	if c.Analysis.AnnualizationFactor <= 0 {
		return fmt.Errorf("analysis.annualization_factor must be positive")
	}
	for field := range c.Normalizer.Aliases {
		if !isCanonicalField(field) {
			return fmt.Errorf("normalizer.aliases: unknown field %q", field)
		}
	}
	return nil
}

// TelegramEnabled reports whether run summaries should be sent.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

func isCanonicalField(name string) bool {
	switch name {
	case "date", "symbol", "open", "high", "low", "close", "adj_close", "volume":
		return true
	}
	return false
}
