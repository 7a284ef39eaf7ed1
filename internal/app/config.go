package app

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultAPIURL         = "http://disqus.com/api/"
	defaultTimeoutSeconds = 5
	defaultStubAddr       = ":8085"
)

type Config struct {
	UserAPIKey     string `yaml:"user_api_key"`
	ForumAPIKey    string `yaml:"forum_api_key"`
	APIURL         string `yaml:"api_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	StubAddr       string `yaml:"stub_addr"`
	StubForumName  string `yaml:"stub_forum_name"`
	Environment    string `yaml:"environment"`
	LogLevel       string `yaml:"log_level"`
}

func DefaultConfig() Config {
	return Config{
		APIURL:         defaultAPIURL,
		TimeoutSeconds: defaultTimeoutSeconds,
		StubAddr:       defaultStubAddr,
		StubForumName:  "local",
		Environment:    "development",
		LogLevel:       "info",
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// StubAPIURL is the API base a client should use to reach a stub listening
// on StubAddr.
func (c Config) StubAPIURL() string {
	host := c.StubAddr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	base := url.URL{Scheme: "http", Host: host, Path: "/api/"}
	return base.String()
}

// LoadConfig applies, in order, defaults, the YAML file named by
// DISQUS_CONFIG (when set) and DISQUS_* environment variables.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if path := strings.TrimSpace(os.Getenv("DISQUS_CONFIG")); path != "" {
		fileCfg, err := LoadConfigFile(path)
		if err != nil {
			return cfg, err
		}
		cfg = fileCfg
	}
	return applyEnv(cfg), nil
}

func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = defaultTimeoutSeconds
	}
	if strings.TrimSpace(cfg.APIURL) == "" {
		cfg.APIURL = defaultAPIURL
	}
	return cfg, nil
}

func applyEnv(cfg Config) Config {
	cfg.UserAPIKey = envOrDefault("DISQUS_USER_API_KEY", cfg.UserAPIKey)
	cfg.ForumAPIKey = envOrDefault("DISQUS_FORUM_API_KEY", cfg.ForumAPIKey)
	cfg.APIURL = envOrDefault("DISQUS_API_URL", cfg.APIURL)
	cfg.TimeoutSeconds = envOrDefaultInt("DISQUS_TIMEOUT_SECONDS", cfg.TimeoutSeconds)
	cfg.StubAddr = envOrDefault("DISQUS_STUB_ADDR", cfg.StubAddr)
	cfg.StubForumName = envOrDefault("DISQUS_STUB_FORUM", cfg.StubForumName)
	cfg.Environment = envOrDefault("DISQUS_ENV", cfg.Environment)
	cfg.LogLevel = envOrDefault("DISQUS_LOG_LEVEL", cfg.LogLevel)
	return cfg
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
