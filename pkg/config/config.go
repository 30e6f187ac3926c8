package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the merged view of config file, environment and defaults.
// Environment variables use the NETPULSE_ prefix with underscores,
// e.g. NETPULSE_WORKER_SCHEDULER=least_load.

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Worker  WorkerConfig  `mapstructure:"worker"`
	Job     JobConfig     `mapstructure:"job"`
	Webhook WebhookConfig `mapstructure:"webhook"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Port      string  `mapstructure:"port"`
	APIKey    string  `mapstructure:"api_key"`
	RateLimit float64 `mapstructure:"rate_limit"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	DB        int    `mapstructure:"db"`
	Password  string `mapstructure:"password"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type WorkerConfig struct {
	Scheduler          string        `mapstructure:"scheduler"`
	BindRetries        int           `mapstructure:"bind_retries"`
	WeightPerturbation float64       `mapstructure:"weight_perturbation"`
	Capacity           int           `mapstructure:"capacity"`
	HeartbeatInterval  time.Duration `mapstructure:"heartbeat_interval"`
}

type JobConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	ResultTTL time.Duration `mapstructure:"result_ttl"`
}

type WebhookConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "9000")
	v.SetDefault("server.rate_limit", 100.0)
	v.SetDefault("server.api_key", "")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.key_prefix", "netpulse")

	v.SetDefault("worker.scheduler", "load_weighted_random")
	v.SetDefault("worker.bind_retries", 3)
	v.SetDefault("worker.weight_perturbation", 0.1)
	v.SetDefault("worker.capacity", 8)
	v.SetDefault("worker.heartbeat_interval", 5*time.Second)

	v.SetDefault("job.timeout", 300*time.Second)
	v.SetDefault("job.result_ttl", time.Hour)

	v.SetDefault("webhook.timeout", 5*time.Second)

	v.SetDefault("log.level", "INFO")
}

// Load reads the optional config file at path (YAML), overlays
// NETPULSE_* environment variables and validates. Malformed
// configuration is fatal at startup: callers should exit on error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("NETPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Worker.BindRetries < 0 {
		return fmt.Errorf("worker.bind_retries must be >= 0, got %d", c.Worker.BindRetries)
	}
	if c.Worker.WeightPerturbation < 0 || c.Worker.WeightPerturbation >= 1 {
		return fmt.Errorf("worker.weight_perturbation must be in [0, 1), got %g", c.Worker.WeightPerturbation)
	}
	if c.Worker.Capacity < 0 {
		return fmt.Errorf("worker.capacity must be >= 0, got %d", c.Worker.Capacity)
	}
	if c.Server.RateLimit <= 0 {
		return fmt.Errorf("server.rate_limit must be > 0, got %g", c.Server.RateLimit)
	}
	return nil
}

// HostQueueName builds a per-device queue key. Jobs are queued per
// node (see NodeQueueName), not under this key.
func (c *Config) HostQueueName(host string) string {
	return fmt.Sprintf("%s:queue:host:%s", c.Redis.KeyPrefix, host)
}

// NodeQueueName is the node's job queue: the manager enqueues bound
// jobs on it and the node's agent consumes it.
func (c *Config) NodeQueueName(node string) string {
	return fmt.Sprintf("%s:queue:node:%s", c.Redis.KeyPrefix, node)
}
