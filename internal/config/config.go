package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/invoice-cli/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// PipelineConfig configures the recall/apply/decide/learn thresholds.
type PipelineConfig struct {
	MemoryConfidenceMin  float64 `yaml:"memory_confidence_min" mapstructure:"memory_confidence_min"`
	LearnConfidenceMin   float64 `yaml:"learn_confidence_min" mapstructure:"learn_confidence_min"`
	ApplyContributionCap float64 `yaml:"apply_contribution_cap" mapstructure:"apply_contribution_cap"`
	AutoApproveThreshold float64 `yaml:"auto_approve_threshold" mapstructure:"auto_approve_threshold"`
	StrongPOConfidence   float64 `yaml:"strong_po_confidence" mapstructure:"strong_po_confidence"`
	POMatchWindowDays    int     `yaml:"po_match_window_days" mapstructure:"po_match_window_days"`
	DuplicateWindowDays  int     `yaml:"duplicate_window_days" mapstructure:"duplicate_window_days"`
	PolicyFile           string  `yaml:"policy_file" mapstructure:"policy_file"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port      int     `yaml:"port" mapstructure:"port"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst int     `yaml:"rate_burst" mapstructure:"rate_burst"`
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
	v.SetEnvPrefix("INVOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "invoice.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_burst", 10)
	v.SetDefault("pipeline.memory_confidence_min", 0.6)
	v.SetDefault("pipeline.learn_confidence_min", 0.6)
	v.SetDefault("pipeline.apply_contribution_cap", 0.4)
	v.SetDefault("pipeline.auto_approve_threshold", 0.85)
	v.SetDefault("pipeline.strong_po_confidence", 0.75)
	v.SetDefault("pipeline.po_match_window_days", 30)
	v.SetDefault("pipeline.duplicate_window_days", 5)
	v.SetDefault("pipeline.policy_file", "")

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

	return &cfg, nil
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
