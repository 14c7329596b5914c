// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AIConfig struct {
	BaseURL        string        `yaml:"base_url"`
	DefaultModel   string        `yaml:"default_model"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	HealthTimeout  time.Duration `yaml:"health_timeout"`
}

type ChatConfig struct {
	MaxMessageLength      int           `yaml:"max_message_length"`
	MaxSystemPromptLength int           `yaml:"max_system_prompt_length"`
	SessionIDMinLength    int           `yaml:"session_id_min_length"`
	SessionIDMaxLength    int           `yaml:"session_id_max_length"`
	MaxHistoryMessages    int           `yaml:"max_history_messages"`
	CleanupDays           int           `yaml:"cleanup_days"`
	CleanupInterval       time.Duration `yaml:"cleanup_interval"` // 0 disables the sweeper
	CacheRetention        time.Duration `yaml:"cache_retention"`
}

type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

type WorkerConfig struct {
	Count int `yaml:"count"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	AI        AIConfig        `yaml:"ai"`
	Chat      ChatConfig      `yaml:"chat"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Worker    WorkerConfig    `yaml:"worker"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

// ApplyDefaults fills every unset option with its documented default.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.AI.BaseURL == "" {
		cfg.AI.BaseURL = "http://localhost:11434"
	}
	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "llama3.2"
	}
	if cfg.AI.RequestTimeout <= 0 {
		cfg.AI.RequestTimeout = 60 * time.Second
	}
	if cfg.AI.HealthTimeout <= 0 {
		cfg.AI.HealthTimeout = 10 * time.Second
	}
	if cfg.Chat.MaxMessageLength <= 0 {
		cfg.Chat.MaxMessageLength = 2000
	}
	if cfg.Chat.MaxSystemPromptLength <= 0 {
		cfg.Chat.MaxSystemPromptLength = 2000
	}
	if cfg.Chat.SessionIDMinLength <= 0 {
		cfg.Chat.SessionIDMinLength = 10
	}
	if cfg.Chat.SessionIDMaxLength <= 0 {
		cfg.Chat.SessionIDMaxLength = 50
	}
	if cfg.Chat.MaxHistoryMessages <= 0 {
		cfg.Chat.MaxHistoryMessages = 20
	}
	if cfg.Chat.CleanupDays <= 0 {
		cfg.Chat.CleanupDays = 7
	}
	if cfg.Chat.CacheRetention <= 0 {
		cfg.Chat.CacheRetention = 30 * 24 * time.Hour
	}
	if cfg.RateLimit.Requests <= 0 {
		cfg.RateLimit.Requests = 60
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if cfg.Worker.Count <= 0 {
		cfg.Worker.Count = 4
	}
}
