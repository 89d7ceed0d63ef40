package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kjstillabower/worldbank-dashboard/internal/models"
)

const minimalYAML = `
server:
  port: "8050"
worldbank:
  base_url: "https://api.worldbank.org/v2"
  timeout: "10s"
data:
  start_year: 2010
  end_year: 2022
snapshot:
  backend: "csv"
cache:
  backend: "in_memory"
  ttl: "1h"
`

// clearEnv neutralizes the env vars Load consults so tests stand alone.
// t.Setenv restores the originals at cleanup.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"ENV_NAME", "SNAPSHOT_BACKEND", "SNAPSHOT_PATH", "CACHE_BACKEND", "MEMCACHED_ADDRS"} {
		t.Setenv(k, "")
	}
}

func writeConfigFile(t *testing.T, dir, content string) {
	t.Helper()
	configDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "dev.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
}

// loadFrom runs Load against a throwaway project root holding the given YAML.
func loadFrom(t *testing.T, content string) (*Config, error) {
	t.Helper()
	clearEnv(t)
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	dir := t.TempDir()
	writeConfigFile(t, dir, content)
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	return Load()
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := loadFrom(t, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "8050" {
		t.Errorf("ServerPort = %q, want 8050", cfg.ServerPort)
	}
	if cfg.WorldBankBaseURL != "https://api.worldbank.org/v2" {
		t.Errorf("WorldBankBaseURL = %q, want World Bank v2 API", cfg.WorldBankBaseURL)
	}
	if cfg.WorldBankTimeout != 10*time.Second {
		t.Errorf("WorldBankTimeout = %v, want 10s", cfg.WorldBankTimeout)
	}
	if cfg.StartYear != 2010 || cfg.EndYear != 2022 {
		t.Errorf("years = %d..%d, want 2010..2022", cfg.StartYear, cfg.EndYear)
	}
	if len(cfg.Indicators) != len(models.DefaultIndicators()) {
		t.Errorf("Indicators = %d entries, want default set of %d", len(cfg.Indicators), len(models.DefaultIndicators()))
	}
	if cfg.SnapshotBackend != "csv" || cfg.SnapshotPath != "world_bank_data.csv" {
		t.Errorf("snapshot = %s/%s, want csv/world_bank_data.csv", cfg.SnapshotBackend, cfg.SnapshotPath)
	}
	if cfg.SnapshotMaxAge != 0 {
		t.Errorf("SnapshotMaxAge = %v, want 0 (never stale)", cfg.SnapshotMaxAge)
	}
	if cfg.RefreshRetryInitial != 1*time.Minute || cfg.RefreshRetryMax != 20*time.Minute {
		t.Errorf("refresh retry = %v/%v, want 1m/20m", cfg.RefreshRetryInitial, cfg.RefreshRetryMax)
	}
	if cfg.CacheBackend != "in_memory" || cfg.CacheTTL != time.Hour {
		t.Errorf("cache = %s ttl %v, want in_memory ttl 1h", cfg.CacheBackend, cfg.CacheTTL)
	}
	if !cfg.WarmCharts {
		t.Error("WarmCharts = false, want true by default")
	}
	if cfg.RetryAttempts != 3 || cfg.RetryBaseDelay != 200*time.Millisecond || cfg.RetryMaxDelay != 5*time.Second {
		t.Errorf("retry = %d/%v/%v, want 3/200ms/5s", cfg.RetryAttempts, cfg.RetryBaseDelay, cfg.RetryMaxDelay)
	}
	if cfg.RateLimitRPS != 50 || cfg.RateLimitBurst != 100 {
		t.Errorf("rate limit = %d/%d, want 50/100", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if cfg.DegradedErrorPct != 25 || cfg.OverloadThresholdPct != 80 {
		t.Errorf("health thresholds = %d/%d, want 25/80", cfg.DegradedErrorPct, cfg.OverloadThresholdPct)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV_NAME", "nonexistent")

	origWd, _ := os.Getwd()
	dir := t.TempDir()
	writeConfigFile(t, dir, minimalYAML) // dev.yaml, but ENV_NAME says nonexistent.yaml
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for missing config file, got nil")
	}
	if cfg != nil {
		t.Fatalf("Load() expected nil config on error, got %+v", cfg)
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("Load() error = %v, want message about config file not found", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	cfg, err := loadFrom(t, "not: valid: yaml: [[[")
	if err == nil {
		t.Fatal("Load() expected error for invalid YAML, got nil")
	}
	if cfg != nil {
		t.Fatalf("Load() expected nil config on error, got %+v", cfg)
	}
	if !strings.Contains(err.Error(), "parse") {
		t.Errorf("Load() error = %v, want parse error", err)
	}
}

func TestLoad_FullFile(t *testing.T) {
	fullYAML := `
server:
  port: "9000"
worldbank:
  base_url: "https://mirror.example.com/v2"
  timeout: "4s"
data:
  start_year: 2015
  end_year: 2020
  indicators:
    - code: "NY.GDP.PCAP.CD"
      name: "GDP per Capita"
    - code: "SP.POP.TOTL"
snapshot:
  backend: "sqlite"
  path: "data/wb.db"
  max_age: "72h"
  refresh_retry_initial: "30s"
  refresh_retry_max: "10m"
cache:
  backend: "memcached"
  ttl: "30m"
  warm_charts: false
  memcached:
    addrs: "cache1:11211,cache2:11211"
    timeout: "250ms"
    max_idle_conns: 8
reliability:
  retry_max_attempts: 5
  retry_base_delay: "100ms"
  retry_max_delay: "2s"
  rate_limit_rps: 10
  rate_limit_burst: 20
request:
  timeout: "6s"
shutdown:
  timeout: "15s"
  inflight_timeout: "5s"
  inflight_check_interval: "50ms"
health:
  degraded_window: "30s"
  degraded_error_pct: 10
  overload_window: "45s"
  overload_threshold_pct: 90
`
	cfg, err := loadFrom(t, fullYAML)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "9000" {
		t.Errorf("ServerPort = %q, want 9000", cfg.ServerPort)
	}
	if cfg.WorldBankBaseURL != "https://mirror.example.com/v2" || cfg.WorldBankTimeout != 4*time.Second {
		t.Errorf("worldbank = %q/%v", cfg.WorldBankBaseURL, cfg.WorldBankTimeout)
	}
	if cfg.StartYear != 2015 || cfg.EndYear != 2020 {
		t.Errorf("years = %d..%d, want 2015..2020", cfg.StartYear, cfg.EndYear)
	}
	if len(cfg.Indicators) != 2 {
		t.Fatalf("Indicators = %d entries, want 2", len(cfg.Indicators))
	}
	if cfg.Indicators[0].Name != "GDP per Capita" {
		t.Errorf("Indicators[0].Name = %q", cfg.Indicators[0].Name)
	}
	// A nameless indicator labels itself with its code.
	if cfg.Indicators[1].Name != "SP.POP.TOTL" {
		t.Errorf("Indicators[1].Name = %q, want code fallback", cfg.Indicators[1].Name)
	}
	if cfg.SnapshotBackend != "sqlite" || cfg.SnapshotPath != "data/wb.db" {
		t.Errorf("snapshot = %s/%s", cfg.SnapshotBackend, cfg.SnapshotPath)
	}
	if cfg.SnapshotMaxAge != 72*time.Hour {
		t.Errorf("SnapshotMaxAge = %v, want 72h", cfg.SnapshotMaxAge)
	}
	if cfg.RefreshRetryInitial != 30*time.Second || cfg.RefreshRetryMax != 10*time.Minute {
		t.Errorf("refresh retry = %v/%v, want 30s/10m", cfg.RefreshRetryInitial, cfg.RefreshRetryMax)
	}
	if cfg.CacheBackend != "memcached" || cfg.CacheTTL != 30*time.Minute {
		t.Errorf("cache = %s/%v", cfg.CacheBackend, cfg.CacheTTL)
	}
	if cfg.WarmCharts {
		t.Error("WarmCharts = true, want false when set false")
	}
	if cfg.MemcachedAddrs != "cache1:11211,cache2:11211" || cfg.MemcachedMaxIdleConns != 8 {
		t.Errorf("memcached = %q/%d", cfg.MemcachedAddrs, cfg.MemcachedMaxIdleConns)
	}
	if cfg.RetryAttempts != 5 {
		t.Errorf("RetryAttempts = %d, want 5", cfg.RetryAttempts)
	}
	if cfg.RequestTimeout != 6*time.Second {
		t.Errorf("RequestTimeout = %v, want 6s", cfg.RequestTimeout)
	}
	if cfg.ShutdownTimeout != 15*time.Second || cfg.ShutdownInFlightTimeout != 5*time.Second {
		t.Errorf("shutdown = %v/%v", cfg.ShutdownTimeout, cfg.ShutdownInFlightTimeout)
	}
	if cfg.DegradedWindow != 30*time.Second || cfg.DegradedErrorPct != 10 {
		t.Errorf("degraded = %v/%d", cfg.DegradedWindow, cfg.DegradedErrorPct)
	}
	if cfg.OverloadWindow != 45*time.Second || cfg.OverloadThresholdPct != 90 {
		t.Errorf("overload = %v/%d", cfg.OverloadWindow, cfg.OverloadThresholdPct)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	origWd, _ := os.Getwd()
	dir := t.TempDir()
	writeConfigFile(t, dir, minimalYAML)
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })

	t.Setenv("SNAPSHOT_BACKEND", "sqlite")
	t.Setenv("SNAPSHOT_PATH", "/var/lib/dashboard/wb.db")
	t.Setenv("CACHE_BACKEND", "memcached")
	t.Setenv("MEMCACHED_ADDRS", "memcached.internal:11211")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SnapshotBackend != "sqlite" {
		t.Errorf("SnapshotBackend = %q, want env override sqlite", cfg.SnapshotBackend)
	}
	if cfg.SnapshotPath != "/var/lib/dashboard/wb.db" {
		t.Errorf("SnapshotPath = %q, want env override", cfg.SnapshotPath)
	}
	if cfg.CacheBackend != "memcached" {
		t.Errorf("CacheBackend = %q, want env override memcached", cfg.CacheBackend)
	}
	if cfg.MemcachedAddrs != "memcached.internal:11211" {
		t.Errorf("MemcachedAddrs = %q, want env override", cfg.MemcachedAddrs)
	}
}

func TestLoad_InvalidSnapshotBackend(t *testing.T) {
	cfg, err := loadFrom(t, "snapshot:\n  backend: \"postgres\"\n")
	if err == nil {
		t.Fatalf("Load() expected error for unknown snapshot backend, got config %+v", cfg)
	}
	if !strings.Contains(err.Error(), "csv or sqlite") {
		t.Errorf("Load() error = %v, want message naming csv or sqlite", err)
	}
}

func TestLoad_InvalidCacheBackend(t *testing.T) {
	cfg, err := loadFrom(t, "cache:\n  backend: \"redis\"\n")
	if err == nil {
		t.Fatalf("Load() expected error for unknown cache backend, got config %+v", cfg)
	}
	if !strings.Contains(err.Error(), "in_memory or memcached") {
		t.Errorf("Load() error = %v, want message naming in_memory or memcached", err)
	}
}

func TestLoad_YearValidation(t *testing.T) {
	if _, err := loadFrom(t, "data:\n  start_year: 2022\n  end_year: 2010\n"); err == nil {
		t.Error("Load() accepted start_year after end_year")
	}
	if _, err := loadFrom(t, "data:\n  start_year: 1950\n  end_year: 2020\n"); err == nil {
		t.Error("Load() accepted start_year before 1960")
	}
}

func TestLoad_SQLiteDefaultPath(t *testing.T) {
	cfg, err := loadFrom(t, "snapshot:\n  backend: \"sqlite\"\n")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SnapshotPath != "world_bank_data.db" {
		t.Errorf("SnapshotPath = %q, want world_bank_data.db for sqlite backend", cfg.SnapshotPath)
	}
}

func TestLoad_InvalidDurationFallsBackToDefault(t *testing.T) {
	cfg, err := loadFrom(t, "cache:\n  ttl: \"invalid\"\nworldbank:\n  timeout: \"\"\n")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CacheTTL != time.Hour {
		t.Errorf("CacheTTL = %v, want 1h default for unparseable value", cfg.CacheTTL)
	}
	if cfg.WorldBankTimeout != 10*time.Second {
		t.Errorf("WorldBankTimeout = %v, want 10s default for empty value", cfg.WorldBankTimeout)
	}
}

func TestLoad_NegativeMaxAgeDisablesStaleness(t *testing.T) {
	cfg, err := loadFrom(t, "snapshot:\n  max_age: \"-5m\"\n")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SnapshotMaxAge != 0 {
		t.Errorf("SnapshotMaxAge = %v, want 0 for negative input", cfg.SnapshotMaxAge)
	}
}

func TestLoad_SkipsBlankIndicatorCodes(t *testing.T) {
	yaml := `
data:
  indicators:
    - code: "  "
      name: "Blank"
    - code: "SP.POP.TOTL"
      name: "Population"
`
	cfg, err := loadFrom(t, yaml)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Indicators) != 1 || cfg.Indicators[0].Code != "SP.POP.TOTL" {
		t.Errorf("Indicators = %+v, want blank code dropped", cfg.Indicators)
	}
}

// TestCoverageGaps_IntentionallyUntested documents paths reviewed but not
// tested. Run with -v to see skip reasons.
func TestCoverageGaps_IntentionallyUntested(t *testing.T) {
	t.Run("Load_read_config_error", func(t *testing.T) {
		t.Skip("ReadFile error path (permission denied, etc.) would require injecting an fs failure; not worth the portability cost")
	})
	t.Run("Load_getwd_error", func(t *testing.T) {
		t.Skip("Getwd only fails when the working directory is deleted mid-test; not reproducible portably")
	})
}
