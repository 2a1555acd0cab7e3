package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	MQTT         MQTTConfig         `mapstructure:"mqtt"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Log          LogConfig          `mapstructure:"log"`
	Queue        QueueConfig        `mapstructure:"queue"`
	Engine       EngineConfig       `mapstructure:"engine"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
	LLM          LLMConfig          `mapstructure:"llm"`
	Influx       InfluxConfig       `mapstructure:"influx"`
	MDNS         MDNSConfig         `mapstructure:"mdns"`
	RemoteAccess RemoteAccessConfig `mapstructure:"remote_access"`
}

type AppConfig struct {
	Port    int    `mapstructure:"port"`
	AgentID string `mapstructure:"agent_id"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // postgres or memory
	URL    string `mapstructure:"url"`
}

type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
}

// QueueConfig tunes pending-command views and long polling
type QueueConfig struct {
	Lookahead          time.Duration `mapstructure:"lookahead"`
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	DefaultPollTimeout time.Duration `mapstructure:"default_poll_timeout"`
	MaxPollTimeout     time.Duration `mapstructure:"max_poll_timeout"`
}

// EngineConfig tunes trigger evaluation retries
type EngineConfig struct {
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

type SchedulerConfig struct {
	PruneCron        string        `mapstructure:"prune_cron"`
	HistoryRetention time.Duration `mapstructure:"history_retention"` // 0 keeps history forever
}

type LLMConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type InfluxConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Token   string `mapstructure:"token"`
	Org     string `mapstructure:"org"`
	Bucket  string `mapstructure:"bucket"`
}

type MDNSConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	LocalName string `mapstructure:"local_name"`
}

type RemoteAccessConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	PublicWS       string        `mapstructure:"public_ws"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	ListenAddr     string        `mapstructure:"listen_addr"`     // remote_server only
	RequestTimeout time.Duration `mapstructure:"request_timeout"` // must outlast queue.max_poll_timeout
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", 5069)
	v.SetDefault("app.agent_id", "homelink")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.url", "")
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "homelink-backend")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.ttl", 24*time.Hour)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("queue.lookahead", time.Hour)
	v.SetDefault("queue.poll_interval", time.Second)
	v.SetDefault("queue.default_poll_timeout", 120*time.Second)
	v.SetDefault("queue.max_poll_timeout", 120*time.Second)
	v.SetDefault("engine.max_retries", 5)
	v.SetDefault("engine.retry_backoff", 20*time.Millisecond)
	v.SetDefault("scheduler.prune_cron", "@daily")
	v.SetDefault("scheduler.history_retention", 30*24*time.Hour)
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("influx.enabled", false)
	v.SetDefault("influx.url", "http://localhost:8086")
	v.SetDefault("influx.token", "")
	v.SetDefault("influx.org", "homelink")
	v.SetDefault("influx.bucket", "commands")
	v.SetDefault("mdns.enabled", false)
	v.SetDefault("mdns.local_name", "homelink.local")
	v.SetDefault("remote_access.enabled", false)
	v.SetDefault("remote_access.public_ws", "")
	v.SetDefault("remote_access.retry_delay", 2*time.Second)
	v.SetDefault("remote_access.listen_addr", ":5069")
	v.SetDefault("remote_access.request_timeout", 150*time.Second)
}

// LoadConfig reads configuration from config.yaml in dir, .env, and env vars.
// Env vars use underscores for nesting, e.g. DATABASE_URL or QUEUE_POLL_INTERVAL.
func LoadConfig(dir string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("config: database.url is required for the postgres driver")
		}
	case "memory":
	default:
		return fmt.Errorf("config: unknown database.driver %q", c.Database.Driver)
	}
	if c.JWT.Secret == "" {
		return errors.New("config: jwt.secret is required")
	}
	if c.Queue.PollInterval <= 0 {
		return errors.New("config: queue.poll_interval must be positive")
	}
	if c.Queue.MaxPollTimeout <= 0 || c.Queue.DefaultPollTimeout <= 0 {
		return errors.New("config: poll timeouts must be positive")
	}
	if c.Queue.DefaultPollTimeout > c.Queue.MaxPollTimeout {
		return errors.New("config: queue.default_poll_timeout exceeds queue.max_poll_timeout")
	}
	if c.Queue.Lookahead < 0 {
		return errors.New("config: queue.lookahead must not be negative")
	}
	if c.Engine.MaxRetries < 0 {
		return errors.New("config: engine.max_retries must not be negative")
	}
	return nil
}
