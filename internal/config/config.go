// Package config loads the pipeline configuration once at process start.
// There is no hot-reload: a missing or invalid required tunable is fatal.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Scraper   ScraperConfig   `yaml:"scraper" mapstructure:"scraper"`
	Scheduler SchedulerConfig `yaml:"scheduler" mapstructure:"scheduler"`
	Resolver  ResolverConfig  `yaml:"resolver" mapstructure:"resolver"`
	Engine    EngineConfig    `yaml:"engine" mapstructure:"engine"`
	Analyzer  AnalyzerConfig  `yaml:"analyzer" mapstructure:"analyzer"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the Postgres record store.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ScraperConfig configures the browser-automation executor.
type ScraperConfig struct {
	MaxAttempts         int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	BaseDelayMs         int     `yaml:"base_delay_ms" mapstructure:"base_delay_ms"`
	MaxDelayMs          int     `yaml:"max_delay_ms" mapstructure:"max_delay_ms"`
	TimeoutMultiplier   float64 `yaml:"timeout_multiplier" mapstructure:"timeout_multiplier"`
	Headless            bool    `yaml:"headless" mapstructure:"headless"`
	NavigationTimeoutMs int     `yaml:"navigation_timeout_ms" mapstructure:"navigation_timeout_ms"`
	MaxResultsPerZone   int     `yaml:"max_results_per_zone" mapstructure:"max_results_per_zone"`
	// CIModeOverride forces CI-profile selection: "on", "off", or "" for
	// auto-detection from the environment.
	CIModeOverride string `yaml:"ci_mode_override" mapstructure:"ci_mode_override"`
	UserAgent      string `yaml:"user_agent" mapstructure:"user_agent"`
}

// CIOverride translates the override string into the tri-state form the
// resilience profile selector expects.
func (c ScraperConfig) CIOverride() *bool {
	switch c.CIModeOverride {
	case "on":
		v := true
		return &v
	case "off":
		v := false
		return &v
	default:
		return nil
	}
}

// SchedulerConfig configures zone priority scoring and lease hygiene.
type SchedulerConfig struct {
	ScoreFloor          int `yaml:"score_floor" mapstructure:"score_floor"`
	ScoreIncrementBase  int `yaml:"score_increment_base" mapstructure:"score_increment_base"`
	ScoreIncrementCap   int `yaml:"score_increment_cap" mapstructure:"score_increment_cap"`
	EmptyDecay          int `yaml:"empty_decay" mapstructure:"empty_decay"`
	FailureDecay        int `yaml:"failure_decay" mapstructure:"failure_decay"`
	LeaseGraceMins      int `yaml:"lease_grace_mins" mapstructure:"lease_grace_mins"`
	EmptyQueueBackoffMs int `yaml:"empty_queue_backoff_ms" mapstructure:"empty_queue_backoff_ms"`
}

// ResolverConfig configures identity-resolution matching.
type ResolverConfig struct {
	// SimilarityThreshold is the minimum token-set similarity for a
	// name-based match. Empirical default, tunable.
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	// CitySearchLimit bounds the pairwise candidate scan per city.
	CitySearchLimit int `yaml:"city_search_limit" mapstructure:"city_search_limit"`
}

// EngineConfig configures the worker pool.
type EngineConfig struct {
	Workers            int     `yaml:"workers" mapstructure:"workers"`
	SourceQPS          float64 `yaml:"source_qps" mapstructure:"source_qps"`
	LaunchFailureLimit int     `yaml:"launch_failure_limit" mapstructure:"launch_failure_limit"`
	CooldownSecs       int     `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
}

// AnalyzerConfig configures the external page analyzer collaborator.
type AnalyzerConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
}

// MetricsConfig configures the optional Prometheus listener.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	ListenAddr string `yaml:"listen_addr" mapstructure:"listen_addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SNIPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("scraper.max_attempts", 3)
	v.SetDefault("scraper.base_delay_ms", 500)
	v.SetDefault("scraper.max_delay_ms", 30000)
	v.SetDefault("scraper.timeout_multiplier", 2.0)
	v.SetDefault("scraper.headless", true)
	v.SetDefault("scraper.navigation_timeout_ms", 20000)
	v.SetDefault("scraper.max_results_per_zone", 40)
	v.SetDefault("scraper.ci_mode_override", "")
	v.SetDefault("scraper.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("scheduler.score_floor", 5)
	v.SetDefault("scheduler.score_increment_base", 10)
	v.SetDefault("scheduler.score_increment_cap", 50)
	v.SetDefault("scheduler.empty_decay", 10)
	v.SetDefault("scheduler.failure_decay", 25)
	v.SetDefault("scheduler.lease_grace_mins", 15)
	v.SetDefault("scheduler.empty_queue_backoff_ms", 5000)
	v.SetDefault("resolver.similarity_threshold", 0.6)
	v.SetDefault("resolver.city_search_limit", 200)
	v.SetDefault("engine.workers", 4)
	v.SetDefault("engine.source_qps", 0.5)
	v.SetDefault("engine.launch_failure_limit", 3)
	v.SetDefault("engine.cooldown_secs", 60)
	v.SetDefault("analyzer.timeout_secs", 10)
	v.SetDefault("analyzer.enabled", false)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_addr", ":9090")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate fails fast on tunables that would leave retry/timeout behavior
// undefined.
func (c *Config) Validate() error {
	if c.Scraper.MaxAttempts < 1 {
		return eris.New("config: scraper.max_attempts must be >= 1")
	}
	if c.Scraper.BaseDelayMs <= 0 || c.Scraper.MaxDelayMs <= 0 {
		return eris.New("config: scraper delay tunables must be positive")
	}
	if c.Scraper.MaxDelayMs < c.Scraper.BaseDelayMs {
		return eris.New("config: scraper.max_delay_ms must be >= base_delay_ms")
	}
	if c.Scraper.TimeoutMultiplier < 1 {
		return eris.New("config: scraper.timeout_multiplier must be >= 1")
	}
	if c.Scraper.NavigationTimeoutMs <= 0 {
		return eris.New("config: scraper.navigation_timeout_ms must be positive")
	}
	if c.Scraper.MaxResultsPerZone <= 0 {
		return eris.New("config: scraper.max_results_per_zone must be positive")
	}
	switch c.Scraper.CIModeOverride {
	case "", "on", "off":
	default:
		return eris.Errorf("config: scraper.ci_mode_override must be on, off, or empty (got %q)", c.Scraper.CIModeOverride)
	}
	if c.Resolver.SimilarityThreshold <= 0 || c.Resolver.SimilarityThreshold > 1 {
		return eris.New("config: resolver.similarity_threshold must be in (0, 1]")
	}
	if c.Engine.Workers < 1 {
		return eris.New("config: engine.workers must be >= 1")
	}
	if c.Scheduler.FailureDecay < c.Scheduler.EmptyDecay {
		return eris.New("config: scheduler.failure_decay must be >= empty_decay")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
