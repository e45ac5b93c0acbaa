package config

import (
	"path/filepath"
	"time"
)

const (
	ProviderYahoo = "yahoo"
	ProviderREST  = "rest"
	ProviderMock  = "mock"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Default values for optional configuration fields.
const (
	DefaultLookbackDays        = 365
	DefaultConcurrency         = 1
	DefaultFetchTimeout        = 30 * time.Second
	DefaultRawFile             = "data/prices_raw.csv"
	DefaultSQLitePath          = "db/marketdata.db"
	DefaultReportsDir          = "reports"
	DefaultWindow              = 20
	DefaultAnnualizationFactor = 252
	DefaultMaxConns            = 10
	DefaultMinConns            = 2
	DefaultCron                = "0 30 22 * * 1-5"
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "console"
	DefaultLogOutput           = "stdout"
	DefaultLogMaxSizeMB        = 100
	DefaultLogMaxAgeDays       = 30
)

// DefaultTickers is the symbol universe used when none is configured.
var DefaultTickers = []string{"AAPL", "MSFT", "GOOGL", "AMZN", "META", "JPM", "V", "PG", "XOM", "NVDA"}

func (c *Config) applyDefaults() {
	if c.Fetch.Provider == "" {
		c.Fetch.Provider = ProviderYahoo
		if c.Fetch.BaseURL != "" {
			c.Fetch.Provider = ProviderREST
		}
	}
	if len(c.Fetch.Tickers) == 0 {
		c.Fetch.Tickers = append([]string(nil), DefaultTickers...)
	}
	if c.Fetch.LookbackDays == 0 {
		c.Fetch.LookbackDays = DefaultLookbackDays
	}
	if c.Fetch.Concurrency == 0 {
		c.Fetch.Concurrency = DefaultConcurrency
	}
	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = DefaultFetchTimeout
	}

	if c.Paths.RawFile == "" {
		c.Paths.RawFile = DefaultRawFile
	}
	if c.Paths.ReportsDir == "" {
		c.Paths.ReportsDir = DefaultReportsDir
	}
	if c.Paths.SummaryFile == "" {
		c.Paths.SummaryFile = filepath.Join(c.Paths.ReportsDir, "summary.csv")
	}
	if c.Paths.VolatilityFile == "" {
		c.Paths.VolatilityFile = filepath.Join(c.Paths.ReportsDir, "volatility.csv")
	}
	if c.Paths.ChartFile == "" {
		c.Paths.ChartFile = filepath.Join(c.Paths.ReportsDir, "charts", "adj_close_example.png")
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
		if c.Database.URL != "" {
			c.Database.Driver = DriverPostgres
		}
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = DefaultSQLitePath
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	if c.Analysis.Window == 0 {
		c.Analysis.Window = DefaultWindow
	}
	if c.Analysis.AnnualizationFactor == 0 {
		c.Analysis.AnnualizationFactor = DefaultAnnualizationFactor
	}

	if c.Schedule.Cron == "" {
		c.Schedule.Cron = DefaultCron
	}

	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Logging.Output == "" {
		c.Logging.Output = DefaultLogOutput
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = DefaultLogMaxAgeDays
	}
}
