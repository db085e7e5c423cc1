package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Apex27   Apex27Config   `yaml:"apex27"`
	Vercel   VercelConfig   `yaml:"vercel"`
	Queue    QueueConfig    `yaml:"queue"`
	Builder  BuilderConfig  `yaml:"builder"`
	Sync     SyncConfig     `yaml:"sync"`
	HTTP     HTTPConfig     `yaml:"http"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// RabbitMQConfig is optional; an empty URL disables build event publishing.
type RabbitMQConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	QueueName  string `yaml:"queue_name"`
}

type DatabaseConfig struct {
	Host         string `yaml:"host" validate:"required"`
	Port         int    `yaml:"port" validate:"gt=0"`
	User         string `yaml:"user" validate:"required"`
	Password     string `yaml:"password"`
	DBName       string `yaml:"dbname" validate:"required"`
	SSLMode      string `yaml:"sslmode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

type Apex27Config struct {
	BaseURL  string        `yaml:"base_url" validate:"omitempty,url"`
	APIKey   string        `yaml:"api_key"`
	PageSize int           `yaml:"page_size" validate:"gt=0"`
	Timeout  time.Duration `yaml:"timeout"`
	Retry    RetryConfig   `yaml:"retry"`
}

type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" validate:"gt=0"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

type VercelConfig struct {
	APIURL        string        `yaml:"api_url" validate:"url"`
	Token         string        `yaml:"token"`
	TeamID        string        `yaml:"team_id"`
	ProjectID     string        `yaml:"project_id"`
	RepoID        string        `yaml:"repo_id"`
	DeployHookURL string        `yaml:"deploy_hook_url" validate:"omitempty,url"`
	BaseDomain    string        `yaml:"base_domain" validate:"required,hostname"`
	Timeout       time.Duration `yaml:"timeout"`
}

type QueueConfig struct {
	// DedupWindow is a best-effort heuristic, not a lock.
	DedupWindow        time.Duration `yaml:"dedup_window"`
	BroadcastChunkSize int           `yaml:"broadcast_chunk_size" validate:"gt=0"`
}

type BuilderConfig struct {
	Interval      time.Duration `yaml:"interval"`
	MaxConcurrent int           `yaml:"max_concurrent" validate:"gt=0"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	PollAttempts  int           `yaml:"poll_attempts" validate:"gt=0"`
	RunTimeout    time.Duration `yaml:"run_timeout"`
}

type SyncConfig struct {
	Interval        time.Duration `yaml:"interval"`
	RebuildOnChange bool          `yaml:"rebuild_on_change"`
}

type HTTPConfig struct {
	Addr          string        `yaml:"addr"`
	WebhookSecret string        `yaml:"webhook_secret"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level      string `yaml:"level" validate:"oneof=debug info warn error"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.RabbitMQ.URL != "" {
		if c.RabbitMQ.Exchange == "" {
			c.RabbitMQ.Exchange = "agent_sites"
		}
		if c.RabbitMQ.RoutingKey == "" {
			c.RabbitMQ.RoutingKey = "builds"
		}
		if c.RabbitMQ.QueueName == "" {
			c.RabbitMQ.QueueName = "build_notifications"
		}
	}
	if c.Apex27.BaseURL == "" {
		c.Apex27.BaseURL = "https://api.apex27.co.uk"
	}
	if c.Apex27.PageSize == 0 {
		c.Apex27.PageSize = 100
	}
	if c.Apex27.Timeout == 0 {
		c.Apex27.Timeout = 30 * time.Second
	}
	if c.Apex27.Retry.MaxAttempts == 0 {
		c.Apex27.Retry.MaxAttempts = 3
	}
	if c.Apex27.Retry.InitialBackoff == 0 {
		c.Apex27.Retry.InitialBackoff = 1 * time.Second
	}
	if c.Apex27.Retry.MaxBackoff == 0 {
		c.Apex27.Retry.MaxBackoff = 30 * time.Second
	}
	if c.Vercel.APIURL == "" {
		c.Vercel.APIURL = "https://api.vercel.com"
	}
	if c.Vercel.BaseDomain == "" {
		c.Vercel.BaseDomain = "nestassociates.co.uk"
	}
	if c.Vercel.Timeout == 0 {
		c.Vercel.Timeout = 30 * time.Second
	}
	if c.Queue.DedupWindow == 0 {
		c.Queue.DedupWindow = 5 * time.Minute
	}
	if c.Queue.BroadcastChunkSize == 0 {
		c.Queue.BroadcastChunkSize = 100
	}
	if c.Builder.Interval == 0 {
		c.Builder.Interval = 1 * time.Minute
	}
	if c.Builder.MaxConcurrent == 0 {
		c.Builder.MaxConcurrent = 20
	}
	if c.Builder.PollInterval == 0 {
		c.Builder.PollInterval = 5 * time.Second
	}
	if c.Builder.PollAttempts == 0 {
		c.Builder.PollAttempts = 60
	}
	if c.Builder.RunTimeout == 0 {
		c.Builder.RunTimeout = 10 * time.Minute
	}
	if c.Sync.Interval == 0 {
		c.Sync.Interval = 6 * time.Hour
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 15 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 30 * time.Second
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9090"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 100
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 5
	}
}
