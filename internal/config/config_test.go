package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
fetch:
  provider: yahoo
  tickers: [AAPL, MSFT]
  lookback_days: 30
  concurrency: 4
  timeout: 10s
normalizer:
  aliases:
    adj_close: ["Adjusted Close*"]
  adj_close_fallback_to_close: true
database:
  driver: sqlite
  sqlite_path: /tmp/test.db
analysis:
  window: 10
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.Fetch.Tickers) != 2 || cfg.Fetch.Tickers[1] != "MSFT" {
		t.Errorf("Fetch.Tickers = %v, want [AAPL MSFT]", cfg.Fetch.Tickers)
	}
	if cfg.Fetch.LookbackDays != 30 {
		t.Errorf("Fetch.LookbackDays = %d, want 30", cfg.Fetch.LookbackDays)
	}
	if cfg.Fetch.Timeout != 10*time.Second {
		t.Errorf("Fetch.Timeout = %v, want 10s", cfg.Fetch.Timeout)
	}
	if got := cfg.Normalizer.Aliases["adj_close"]; len(got) != 1 || got[0] != "Adjusted Close*" {
		t.Errorf("Normalizer.Aliases[adj_close] = %v", got)
	}
	if !cfg.Normalizer.AdjCloseFallbackToClose {
		t.Error("AdjCloseFallbackToClose = false, want true")
	}
	if cfg.Analysis.Window != 10 {
		t.Errorf("Analysis.Window = %d, want 10", cfg.Analysis.Window)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	t.Setenv("MARKETETL_TICKERS", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SQLITE_PATH", "")
	t.Setenv("MARKETETL_DB_DRIVER", "")
	t.Setenv("MARKETETL_PROVIDER", "")
	t.Setenv("MARKETETL_LOOKBACK_DAYS", "")
	t.Setenv("VSTRADER_BASE_URL", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.Fetch.Tickers) != len(DefaultTickers) {
		t.Errorf("Fetch.Tickers = %v, want defaults", cfg.Fetch.Tickers)
	}
	if cfg.Fetch.Provider != ProviderYahoo {
		t.Errorf("Fetch.Provider = %q, want %q", cfg.Fetch.Provider, ProviderYahoo)
	}
	if cfg.Fetch.LookbackDays != DefaultLookbackDays {
		t.Errorf("Fetch.LookbackDays = %d, want %d", cfg.Fetch.LookbackDays, DefaultLookbackDays)
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, DriverSQLite)
	}
	if cfg.Database.SQLitePath != DefaultSQLitePath {
		t.Errorf("Database.SQLitePath = %q, want %q", cfg.Database.SQLitePath, DefaultSQLitePath)
	}
	if cfg.Paths.SummaryFile != filepath.Join("reports", "summary.csv") {
		t.Errorf("Paths.SummaryFile = %q", cfg.Paths.SummaryFile)
	}
	if cfg.Paths.ChartFile != filepath.Join("reports", "charts", "adj_close_example.png") {
		t.Errorf("Paths.ChartFile = %q", cfg.Paths.ChartFile)
	}
	if cfg.Analysis.Window != 20 || cfg.Analysis.AnnualizationFactor != 252 {
		t.Errorf("Analysis = %+v, want window 20 / factor 252", cfg.Analysis)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed on defaults: %v", err)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("MARKETETL_TICKERS", " SPY, QQQ ,,IWM")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/prices")
	t.Setenv("MARKETETL_DB_DRIVER", "")

	cfg, err := Load(writeTempFile(t, "fetch:\n  tickers: [AAPL]\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := []string{"SPY", "QQQ", "IWM"}
	if len(cfg.Fetch.Tickers) != len(want) {
		t.Fatalf("Fetch.Tickers = %v, want %v", cfg.Fetch.Tickers, want)
	}
	for i := range want {
		if cfg.Fetch.Tickers[i] != want[i] {
			t.Errorf("Fetch.Tickers[%d] = %q, want %q", i, cfg.Fetch.Tickers[i], want[i])
		}
	}
	if cfg.Database.Driver != DriverPostgres {
		t.Errorf("Database.Driver = %q, want %q when DATABASE_URL is set", cfg.Database.Driver, DriverPostgres)
	}
}

func TestLoadSymbolMap(t *testing.T) {
	cfg, err := Load(writeTempFile(t, "fetch:\n  symbol_map:\n    SPX: \"^GSPC\"\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := cfg.Fetch.SymbolMap["SPX"]; got != "^GSPC" {
		t.Errorf("Fetch.SymbolMap[SPX] = %q, want ^GSPC", got)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	if _, err := Load(writeTempFile(t, "fetch: [unclosed")); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no tickers", func(c *Config) { c.Fetch.Tickers = nil }},
		{"unknown provider", func(c *Config) { c.Fetch.Provider = "bloomberg" }},
		{"rest without base url", func(c *Config) { c.Fetch.Provider = ProviderREST; c.Fetch.BaseURL = "" }},
		{"negative lookback", func(c *Config) { c.Fetch.LookbackDays = -1 }},
		{"zero concurrency", func(c *Config) { c.Fetch.Concurrency = 0 }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }},
		{"postgres without url", func(c *Config) { c.Database.Driver = DriverPostgres; c.Database.URL = "" }},
		{"window too small", func(c *Config) { c.Analysis.Window = 1 }},
		{"zero annualization", func(c *Config) { c.Analysis.AnnualizationFactor = -5 }},
		{"unknown alias field", func(c *Config) { c.Normalizer.Aliases = map[string][]string{"dividend": {"div"}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.applyDefaults()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error for %s", tt.name)
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}
