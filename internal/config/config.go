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
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Catalog CatalogConfig `yaml:"catalog" mapstructure:"catalog"`
	Notify  NotifyConfig  `yaml:"notify" mapstructure:"notify"`
	Engine  EngineConfig  `yaml:"engine" mapstructure:"engine"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int    `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int    `yaml:"min_conns" mapstructure:"min_conns"`
}

// CatalogConfig configures the catalog API client. The password is
// expected from the environment (INSIGHT_CATALOG_PASSWORD), never from
// the config file.
type CatalogConfig struct {
	RootDomain     string  `yaml:"root_domain" mapstructure:"root_domain"`
	Username       string  `yaml:"username" mapstructure:"username"`
	Password       string  `yaml:"password" mapstructure:"password"`
	TimeoutSeconds int     `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
}

// NotifyConfig configures the notification channels.
type NotifyConfig struct {
	Slack      SlackConfig      `yaml:"slack" mapstructure:"slack"`
	Moderation ModerationConfig `yaml:"moderation" mapstructure:"moderation"`
}

// SlackConfig holds the chat channel credentials.
type SlackConfig struct {
	Token   string `yaml:"token" mapstructure:"token"`
	Channel string `yaml:"channel" mapstructure:"channel"`
}

// ModerationConfig points at the image moderation service.
type ModerationConfig struct {
	ServiceURL string `yaml:"service_url" mapstructure:"service_url"`
}

// EngineConfig configures the insight processor.
type EngineConfig struct {
	BatchSize           int `yaml:"batch_size" mapstructure:"batch_size"`
	ProcessDelayMinutes int `yaml:"process_delay_minutes" mapstructure:"process_delay_minutes"`
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
	v.AddConfigPath("$HOME/.insight-cli")

	// Environment
	v.SetEnvPrefix("INSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "insights.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("catalog.root_domain", "pantrybase.org")
	v.SetDefault("catalog.username", "insight-bot")
	v.SetDefault("catalog.timeout_seconds", 30)
	v.SetDefault("catalog.rate_limit_rps", 2.0)
	v.SetDefault("notify.slack.channel", "#insight-alerts")
	v.SetDefault("engine.batch_size", 100)
	v.SetDefault("engine.process_delay_minutes", 10)

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

// Validate checks the settings every command needs before wiring.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url is required")
	}
	if c.Catalog.Username == "" {
		return eris.New("config: catalog.username is required")
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
