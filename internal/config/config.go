package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/worldbank-dashboard/internal/models"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	WorldBankBaseURL string
	WorldBankTimeout time.Duration

	Indicators []models.Indicator
	StartYear  int
	EndYear    int

	SnapshotBackend     string        // "csv" or "sqlite"
	SnapshotPath        string
	SnapshotMaxAge      time.Duration // 0 = snapshot never goes stale
	RefreshRetryInitial time.Duration
	RefreshRetryMax     time.Duration

	CacheBackend          string // "in_memory" or "memcached"
	CacheTTL              time.Duration
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int
	WarmCharts            bool

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RateLimitRPS   int
	RateLimitBurst int

	RequestTimeout time.Duration

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration

	DegradedWindow       time.Duration
	DegradedErrorPct     int
	OverloadWindow       time.Duration
	OverloadThresholdPct int
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	WorldBank struct {
		BaseURL string `yaml:"base_url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"worldbank"`

	Data struct {
		StartYear  int `yaml:"start_year"`
		EndYear    int `yaml:"end_year"`
		Indicators []struct {
			Code string `yaml:"code"`
			Name string `yaml:"name"`
		} `yaml:"indicators"`
	} `yaml:"data"`

	Snapshot struct {
		Backend             string `yaml:"backend"`
		Path                string `yaml:"path"`
		MaxAge              string `yaml:"max_age"`
		RefreshRetryInitial string `yaml:"refresh_retry_initial"`
		RefreshRetryMax     string `yaml:"refresh_retry_max"`
	} `yaml:"snapshot"`

	Cache struct {
		Backend    string `yaml:"backend"`
		TTL        string `yaml:"ttl"`
		WarmCharts *bool  `yaml:"warm_charts"`
		Memcached  struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Reliability struct {
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryBaseDelay   string `yaml:"retry_base_delay"`
		RetryMaxDelay    string `yaml:"retry_max_delay"`
		RateLimitRPS     int    `yaml:"rate_limit_rps"`
		RateLimitBurst   int    `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"inflight_timeout"`
		InFlightCheckInterval string `yaml:"inflight_check_interval"`
	} `yaml:"shutdown"`

	Health struct {
		DegradedWindow       string `yaml:"degraded_window"`
		DegradedErrorPct     int    `yaml:"degraded_error_pct"`
		OverloadWindow       string `yaml:"overload_window"`
		OverloadThresholdPct int    `yaml:"overload_threshold_pct"`
	} `yaml:"health"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev).
// SNAPSHOT_BACKEND, SNAPSHOT_PATH, CACHE_BACKEND and MEMCACHED_ADDRS env vars
// override their file counterparts. Call from project root.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8050"
	}

	cfg.WorldBankBaseURL = fc.WorldBank.BaseURL
	if cfg.WorldBankBaseURL == "" {
		cfg.WorldBankBaseURL = "https://api.worldbank.org/v2"
	}
	cfg.WorldBankTimeout = parseDuration(fc.WorldBank.Timeout, 10*time.Second)

	cfg.StartYear = fc.Data.StartYear
	if cfg.StartYear == 0 {
		cfg.StartYear = 2010
	}
	cfg.EndYear = fc.Data.EndYear
	if cfg.EndYear == 0 {
		cfg.EndYear = 2022
	}
	for _, ind := range fc.Data.Indicators {
		code := strings.TrimSpace(ind.Code)
		if code == "" {
			continue
		}
		name := strings.TrimSpace(ind.Name)
		if name == "" {
			name = code
		}
		cfg.Indicators = append(cfg.Indicators, models.Indicator{Code: code, Name: name})
	}
	if len(cfg.Indicators) == 0 {
		cfg.Indicators = models.DefaultIndicators()
	}

	cfg.SnapshotBackend = strings.TrimSpace(strings.ToLower(os.Getenv("SNAPSHOT_BACKEND")))
	if cfg.SnapshotBackend == "" {
		cfg.SnapshotBackend = strings.TrimSpace(strings.ToLower(fc.Snapshot.Backend))
	}
	if cfg.SnapshotBackend == "" {
		cfg.SnapshotBackend = "csv"
	}
	cfg.SnapshotPath = strings.TrimSpace(os.Getenv("SNAPSHOT_PATH"))
	if cfg.SnapshotPath == "" {
		cfg.SnapshotPath = strings.TrimSpace(fc.Snapshot.Path)
	}
	if cfg.SnapshotPath == "" {
		cfg.SnapshotPath = defaultSnapshotPath(cfg.SnapshotBackend)
	}
	cfg.SnapshotMaxAge = parseDurationOrZero(fc.Snapshot.MaxAge, 0)
	if cfg.SnapshotMaxAge < 0 {
		cfg.SnapshotMaxAge = 0
	}
	cfg.RefreshRetryInitial = parseDuration(fc.Snapshot.RefreshRetryInitial, 1*time.Minute)
	cfg.RefreshRetryMax = parseDuration(fc.Snapshot.RefreshRetryMax, 20*time.Minute)

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, time.Hour)
	cfg.WarmCharts = true
	if fc.Cache.WarmCharts != nil {
		cfg.WarmCharts = *fc.Cache.WarmCharts
	}
	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 200*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 5*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 50
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 100
	}

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 10*time.Second)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	cfg.DegradedWindow = parseDuration(fc.Health.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Health.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 25
	}
	cfg.OverloadWindow = parseDuration(fc.Health.OverloadWindow, 60*time.Second)
	cfg.OverloadThresholdPct = fc.Health.OverloadThresholdPct
	if cfg.OverloadThresholdPct <= 0 {
		cfg.OverloadThresholdPct = 80
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaultSnapshotPath picks the on-disk default for the chosen backend.
func defaultSnapshotPath(backend string) string {
	if backend == "sqlite" {
		return "world_bank_data.db"
	}
	return "world_bank_data.csv"
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero and negative results are returned as-is; callers that treat zero as "disabled" rely on this.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
func validate(cfg *Config) error {
	switch cfg.SnapshotBackend {
	case "csv", "sqlite":
	default:
		return fmt.Errorf("snapshot.backend must be csv or sqlite, got %q", cfg.SnapshotBackend)
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	if cfg.StartYear > cfg.EndYear {
		return fmt.Errorf("data.start_year %d is after data.end_year %d", cfg.StartYear, cfg.EndYear)
	}
	if cfg.StartYear < 1960 {
		return fmt.Errorf("data.start_year %d predates World Bank coverage (1960)", cfg.StartYear)
	}
	if cfg.WorldBankTimeout <= 0 {
		return fmt.Errorf("worldbank.timeout must be positive")
	}
	return nil
}
