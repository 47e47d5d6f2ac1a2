package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to run the drift engine.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Clients  ClientsConfig  `yaml:"clients"`
	Detector DetectorConfig `yaml:"detector"`
	Trigger  TriggerConfig  `yaml:"trigger"`
	Schema   SchemaConfig   `yaml:"schema"`
	Baseline BaselineConfig `yaml:"baseline"`
	Reports  ReportsConfig  `yaml:"reports"`
	Cache    CacheConfig    `yaml:"cache"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig controls HTTP listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// ClientsConfig groups external data-source integrations.
type ClientsConfig struct {
	Features FeatureServiceConfig `yaml:"features"`
}

// FeatureServiceConfig configures access to the feature-engineering service that
// materialises baseline and windowed current samples.
type FeatureServiceConfig struct {
	BaseURL      string        `yaml:"baseURL"`
	BaselinePath string        `yaml:"baselinePath"`
	WindowPath   string        `yaml:"windowPath"`
	Timeout      time.Duration `yaml:"timeout"`
}

// DetectorConfig carries the statistical decision knobs. The defaults mirror the
// documented trade-offs: p < 0.1 flags a feature, one drifted feature flags the run.
type DetectorConfig struct {
	SignificanceThreshold float64 `yaml:"significanceThreshold"`
	MinSamplesPerFeature  int     `yaml:"minSamplesPerFeature"`
	MinDriftedFeatures    int     `yaml:"minDriftedFeatures"`
	Policy                string  `yaml:"policy"`
	MaxParallel           int     `yaml:"maxParallel"`
}

// TriggerConfig controls retrain-signal hysteresis.
type TriggerConfig struct {
	HysteresisWindow       int `yaml:"hysteresisWindow"`
	HysteresisRequiredHits int `yaml:"hysteresisRequiredHits"`
}

// SchemaConfig locates the feature schema pack.
type SchemaConfig struct {
	Path string `yaml:"path"`
}

// BaselineConfig identifies the reference dataset version and, for batch mode,
// local CSV extracts.
type BaselineConfig struct {
	Version    string        `yaml:"version"`
	CSVPath    string        `yaml:"csvPath"`
	CurrentCSV string        `yaml:"currentCSV"`
	WindowSpan time.Duration `yaml:"windowSpan"`
}

// ReportsConfig controls report persistence.
type ReportsConfig struct {
	Dir       string `yaml:"dir"`
	HistoryDB string `yaml:"historyDB"`
}

// CacheConfig controls Valkey-backed caching of baseline samples.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	TLS          bool          `yaml:"tls"`
	BaselineTTL  time.Duration `yaml:"baselineTTL"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("DRIFTWATCH_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8085",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Clients: ClientsConfig{
			Features: FeatureServiceConfig{
				BaselinePath: "/api/v1/features/baseline",
				WindowPath:   "/api/v1/features/window",
				Timeout:      10 * time.Second,
			},
		},
		Detector: DetectorConfig{
			SignificanceThreshold: 0.1,
			MinSamplesPerFeature:  2,
			MinDriftedFeatures:    1,
			Policy:                "min-count",
			MaxParallel:           4,
		},
		Trigger: TriggerConfig{
			HysteresisWindow:       1,
			HysteresisRequiredHits: 1,
		},
		Schema: SchemaConfig{Path: "configs/schema/fraud_tx_v1.yaml"},
		Baseline: BaselineConfig{
			Version:    "baseline-v1",
			WindowSpan: 24 * time.Hour,
		},
		Reports: ReportsConfig{Dir: "data/drift"},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			BaselineTTL:  time.Hour,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DRIFTWATCH_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("DRIFTWATCH_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("DRIFTWATCH_FEATURES_BASE_URL"); v != "" {
		cfg.Clients.Features.BaseURL = v
	}
	if v := os.Getenv("DRIFTWATCH_BASELINE_VERSION"); v != "" {
		cfg.Baseline.Version = v
	}
	if v := os.Getenv("DRIFTWATCH_BASELINE_CSV"); v != "" {
		cfg.Baseline.CSVPath = v
	}
	if v := os.Getenv("DRIFTWATCH_CURRENT_CSV"); v != "" {
		cfg.Baseline.CurrentCSV = v
	}
	if v := os.Getenv("DRIFTWATCH_SCHEMA_PATH"); v != "" {
		cfg.Schema.Path = v
	}
	if v := os.Getenv("DRIFTWATCH_REPORT_DIR"); v != "" {
		cfg.Reports.Dir = v
	}
	if v := os.Getenv("DRIFTWATCH_HISTORY_DB"); v != "" {
		cfg.Reports.HistoryDB = v
	}
	if v := os.Getenv("DRIFTWATCH_SIGNIFICANCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Detector.SignificanceThreshold = f
		}
	}
	if v := os.Getenv("DRIFTWATCH_MIN_SAMPLES_PER_FEATURE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Detector.MinSamplesPerFeature = n
		}
	}
	if v := os.Getenv("DRIFTWATCH_MIN_DRIFTED_FEATURES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Detector.MinDriftedFeatures = n
		}
	}
	if v := os.Getenv("DRIFTWATCH_POLICY"); v != "" {
		cfg.Detector.Policy = v
	}
	if v := os.Getenv("DRIFTWATCH_HYSTERESIS_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Trigger.HysteresisWindow = n
		}
	}
	if v := os.Getenv("DRIFTWATCH_HYSTERESIS_REQUIRED_HITS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Trigger.HysteresisRequiredHits = n
		}
	}
	if v := os.Getenv("DRIFTWATCH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DRIFTWATCH_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("DRIFTWATCH_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("DRIFTWATCH_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("DRIFTWATCH_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("DRIFTWATCH_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("DRIFTWATCH_CACHE_TLS"); strings.EqualFold(v, "true") || strings.EqualFold(v, "1") {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("DRIFTWATCH_CACHE_BASELINE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.BaselineTTL = d
		}
	}
}
