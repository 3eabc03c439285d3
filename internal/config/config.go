// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultQueries are submitted when a crawl trigger supplies none.
var DefaultQueries = []string{
	"utility municipalization",
	"public power initiative",
	"municipal utility",
	"franchise agreement utility",
}

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Crawl    CrawlConfig    `mapstructure:"crawl"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port      int    `mapstructure:"port"`
	StaticDir string `mapstructure:"static_dir"`
}

// AuthConfig defines API authentication toggles. Only write operations are
// gated; read endpoints stay open.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// StorageConfig selects and parameterizes the snapshot store backend.
type StorageConfig struct {
	Backend  string         `mapstructure:"backend"`
	DataDir  string         `mapstructure:"data_dir"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig controls access to the relational backend.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// CrawlConfig governs the search collaborator and ingestion defaults.
type CrawlConfig struct {
	Searcher           string   `mapstructure:"searcher"`
	Endpoint           string   `mapstructure:"endpoint"`
	UserAgent          string   `mapstructure:"user_agent"`
	TimeoutSeconds     int      `mapstructure:"timeout_seconds"`
	MaxBodyBytes       int      `mapstructure:"max_body_bytes"`
	MaxResultsPerQuery int      `mapstructure:"max_results_per_query"`
	DefaultQueries     []string `mapstructure:"default_queries"`
}

// Timeout converts the configured crawl timeout into a duration.
func (c CrawlConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ScheduleConfig enables periodic ingestion runs.
type ScheduleConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Spec    string `mapstructure:"spec"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MUNIWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.static_dir", "")
	v.SetDefault("storage.backend", "jsonfile")
	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("storage.postgres.max_conns", 4)
	v.SetDefault("storage.postgres.min_conns", 0)
	v.SetDefault("crawl.searcher", "web")
	v.SetDefault("crawl.endpoint", "https://searx.be/search")
	v.SetDefault("crawl.user_agent", "muniwatch-bot/0.1")
	v.SetDefault("crawl.timeout_seconds", 15)
	v.SetDefault("crawl.max_body_bytes", 1<<20)
	v.SetDefault("crawl.max_results_per_query", 10)
	v.SetDefault("crawl.default_queries", DefaultQueries)
	v.SetDefault("schedule.enabled", false)
	v.SetDefault("schedule.spec", "0 */6 * * *")
	v.SetDefault("pubsub.enabled", false)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	switch c.Storage.Backend {
	case "jsonfile":
		if c.Storage.DataDir == "" {
			return fmt.Errorf("storage.data_dir must be set for the jsonfile backend")
		}
	case "memory":
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn must be set for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Crawl.Searcher {
	case "web":
		if c.Crawl.Endpoint == "" {
			return fmt.Errorf("crawl.endpoint must be set for the web searcher")
		}
	case "static":
	default:
		return fmt.Errorf("unknown searcher %q", c.Crawl.Searcher)
	}
	if c.Crawl.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawl.timeout_seconds must be > 0")
	}
	if c.Crawl.MaxResultsPerQuery <= 0 {
		return fmt.Errorf("crawl.max_results_per_query must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Schedule.Enabled && c.Schedule.Spec == "" {
		return fmt.Errorf("schedule.spec must be set when the scheduler is enabled")
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub is enabled")
	}
	return nil
}
