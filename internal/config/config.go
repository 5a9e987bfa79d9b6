package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"go.yaml.in/yaml/v3"

	"cnb-rate-service/internal/policy"
)

const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

type Config struct {
	LogLevel string          `yaml:"log_level"`
	Server   ServerConfig    `yaml:"server"`
	CNBAPI   CNBAPIConfig    `yaml:"cnb_api"`
	Cache    CacheConfig     `yaml:"cache"`
	Schedule policy.Schedule `yaml:"schedule"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type CNBAPIConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
	DNSRefresh    time.Duration `yaml:"dns_refresh"`
	HistoryDays   int           `yaml:"history_days"`
	HistoricalTTL time.Duration `yaml:"historical_ttl"`
}

type CacheConfig struct {
	Backend string        `yaml:"backend"` // "memory" or "redis"
	MaxSize int           `yaml:"max_size"`
	MaxTTL  time.Duration `yaml:"max_ttl"`
	Redis   RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

func defaults() *Config {
	return &Config{
		LogLevel: "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		CNBAPI: CNBAPIConfig{
			BaseURL:       "https://api.cnb.cz",
			Timeout:       10 * time.Second,
			DNSRefresh:    5 * time.Minute,
			HistoryDays:   90,
			HistoricalTTL: 24 * time.Hour,
		},
		Cache: CacheConfig{
			Backend: CacheBackendMemory,
			MaxSize: 1_000,
			MaxTTL:  48 * time.Hour,
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "cnb-rates:",
			},
		},
		Schedule: policy.DefaultSchedule(),
	}
}

// LoadConfig builds the configuration from defaults, then the YAML file
// named by CONFIG_FILE (if any), then individual environment variables.
func LoadConfig() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} patterns with environment variable values.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := string(match[2 : len(match)-1])
		if val, ok := os.LookupEnv(varName); ok {
			return []byte(val)
		}
		return match
	})
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(expandEnv(data), cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.LogLevel = getEnvString("LOG_LEVEL", cfg.LogLevel)

	cfg.Server.Port = getEnvInt("SERVER_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.ShutdownTimeout = getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	cfg.CNBAPI.BaseURL = getEnvString("CNB_API_BASE_URL", cfg.CNBAPI.BaseURL)
	cfg.CNBAPI.Timeout = getEnvDuration("CNB_API_TIMEOUT", cfg.CNBAPI.Timeout)
	cfg.CNBAPI.DNSRefresh = getEnvDuration("CNB_API_DNS_REFRESH", cfg.CNBAPI.DNSRefresh)
	cfg.CNBAPI.HistoryDays = getEnvInt("CNB_API_HISTORY_DAYS", cfg.CNBAPI.HistoryDays)
	cfg.CNBAPI.HistoricalTTL = getEnvDuration("CNB_API_HISTORICAL_TTL", cfg.CNBAPI.HistoricalTTL)

	cfg.Cache.Backend = getEnvString("CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.MaxSize = getEnvInt("CACHE_MAX_SIZE", cfg.Cache.MaxSize)
	cfg.Cache.MaxTTL = getEnvDuration("CACHE_MAX_TTL", cfg.Cache.MaxTTL)
	cfg.Cache.Redis.Addr = getEnvString("REDIS_ADDR", cfg.Cache.Redis.Addr)
	cfg.Cache.Redis.Password = getEnvString("REDIS_PASSWORD", cfg.Cache.Redis.Password)
	cfg.Cache.Redis.DB = getEnvInt("REDIS_DB", cfg.Cache.Redis.DB)
	cfg.Cache.Redis.KeyPrefix = getEnvString("REDIS_KEY_PREFIX", cfg.Cache.Redis.KeyPrefix)

	s := &cfg.Schedule
	s.Timezone = getEnvString("SCHEDULE_TIMEZONE", s.Timezone)
	s.PreWindowStart = getEnvClock("SCHEDULE_PRE_WINDOW_START", s.PreWindowStart)
	s.PublishWindowStart = getEnvClock("SCHEDULE_PUBLISH_WINDOW_START", s.PublishWindowStart)
	s.PublishWindowEnd = getEnvClock("SCHEDULE_PUBLISH_WINDOW_END", s.PublishWindowEnd)
	s.PreWindowTTL = getEnvDuration("SCHEDULE_PRE_WINDOW_TTL", s.PreWindowTTL)
	s.PublishWindowTTL = getEnvDuration("SCHEDULE_PUBLISH_WINDOW_TTL", s.PublishWindowTTL)
	s.StableTTL = getEnvDuration("SCHEDULE_STABLE_TTL", s.StableTTL)
	s.WeekendTTL = getEnvDuration("SCHEDULE_WEEKEND_TTL", s.WeekendTTL)
	s.FailSafeMaxDuration = getEnvDuration("SCHEDULE_FAIL_SAFE_MAX_DURATION", s.FailSafeMaxDuration)
}

// Validate checks settings that would otherwise fail late. The schedule's
// timezone is resolved by policy.NewCalculator, not here.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case CacheBackendMemory, CacheBackendRedis:
	default:
		return fmt.Errorf("invalid cache backend %q: must be %q or %q", c.Cache.Backend, CacheBackendMemory, CacheBackendRedis)
	}
	if c.Cache.MaxSize <= 0 {
		return fmt.Errorf("cache max_size must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if err := c.Schedule.Validate(); err != nil {
		return err
	}
	longest := max(c.Schedule.WeekendTTL, c.Schedule.StableTTL, c.Schedule.FailSafeMaxDuration, c.CNBAPI.HistoricalTTL)
	if c.Cache.MaxTTL < longest {
		return fmt.Errorf("cache max_ttl %s is shorter than the longest policy duration %s", c.Cache.MaxTTL, longest)
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		fmt.Printf("Warning: Invalid value for %s, using default: %d\n", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		fmt.Printf("Warning: Invalid duration for %s, using default: %s\n", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvClock(key string, defaultValue policy.ClockTime) policy.ClockTime {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := policy.ParseClockTime(valueStr)
	if err != nil {
		fmt.Printf("Warning: Invalid clock time for %s, using default: %s\n", key, defaultValue)
		return defaultValue
	}

	return value
}
