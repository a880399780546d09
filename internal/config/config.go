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
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Drift   DriftConfig   `yaml:"drift" mapstructure:"drift"`
	Retrain RetrainConfig `yaml:"retrain" mapstructure:"retrain"`
	Models  ModelsConfig  `yaml:"models" mapstructure:"models"`
	Catalog CatalogConfig `yaml:"catalog" mapstructure:"catalog"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	StaticDir   string   `yaml:"static_dir" mapstructure:"static_dir"`
}

// DriftConfig tunes forecast drift detection.
type DriftConfig struct {
	RMSEThreshold  float64 `yaml:"rmse_threshold" mapstructure:"rmse_threshold"`
	MinErrorPoints int     `yaml:"min_error_points" mapstructure:"min_error_points"`
	WindowWeeks    int     `yaml:"window_weeks" mapstructure:"window_weeks"`
}

// RetrainConfig configures the background retraining workers.
type RetrainConfig struct {
	QueueSize       int `yaml:"queue_size" mapstructure:"queue_size"`
	Workers         int `yaml:"workers" mapstructure:"workers"`
	MinIntervalSecs int `yaml:"min_interval_secs" mapstructure:"min_interval_secs"`
	MinTrainSamples int `yaml:"min_train_samples" mapstructure:"min_train_samples"`
}

// ModelsConfig locates persisted model artifacts.
type ModelsConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// CatalogConfig optionally overrides the built-in crop catalog.
type CatalogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
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
	v.SetEnvPrefix("AGROPROPHET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "agroprophet.db")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors_origins", []string{
		"*",
		"http://localhost",
		"http://localhost:3000",
		"http://localhost:3001",
		"http://localhost:4000",
	})
	v.SetDefault("server.static_dir", "static")
	v.SetDefault("drift.rmse_threshold", 10.0)
	v.SetDefault("drift.min_error_points", 10)
	v.SetDefault("drift.window_weeks", 13)
	v.SetDefault("retrain.queue_size", 64)
	v.SetDefault("retrain.workers", 2)
	v.SetDefault("retrain.min_interval_secs", 5)
	v.SetDefault("retrain.min_train_samples", 5)
	v.SetDefault("models.path", "models")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
