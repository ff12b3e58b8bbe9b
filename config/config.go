// Package config loads afisha settings from an optional YAML file and AFISHA_* environment
// variables. Environment values win over the file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type Config struct {
	API     APIConfig     `yaml:"api"`
	Session SessionConfig `yaml:"session"`
	Storage StorageConfig `yaml:"storage"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
}

type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type SessionConfig struct {
	// RestoreTimeout bounds silent restoration; on expiry nobody is signed in.
	RestoreTimeout time.Duration `yaml:"restore_timeout"`
	LandingPath    string        `yaml:"landing_path"`
	LoginPath      string        `yaml:"login_path"`
}

// StorageConfig selects where durable session credentials live.
type StorageConfig struct {
	Driver          string `yaml:"driver"`
	FilePath        string `yaml:"file_path"`
	RedisURL        string `yaml:"redis_url"`
	MongoURI        string `yaml:"mongo_uri"`
	MongoDatabase   string `yaml:"mongo_database"`
	MongoCollection string `yaml:"mongo_collection"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
	// EntryPath is the synthetic entry the static-hosting shim sends deep links to.
	EntryPath string `yaml:"entry_path"`
	// ShimDeepLinks sends every page but EntryPath through the entry shim.
	ShimDeepLinks bool   `yaml:"shim_deep_links"`
	CookieSecret  string `yaml:"cookie_secret"`
	CookieDomain  bool   `yaml:"cookie_domain"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverRedis  = "redis"
	DriverMongo  = "mongo"
)

func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8081",
			Timeout: 15 * time.Second,
		},
		Session: SessionConfig{
			RestoreTimeout: 10 * time.Second,
			LandingPath:    "/",
			LoginPath:      "/login",
		},
		Storage: StorageConfig{
			Driver:          DriverFile,
			FilePath:        defaultFilePath(),
			MongoDatabase:   "afisha",
			MongoCollection: "sessions",
		},
		Server: ServerConfig{
			Addr:      ":8080",
			EntryPath: "/",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path, if set, over the defaults, applies the environment and validates.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var err error
	c.API.BaseURL = getEnv("AFISHA_API_BASE_URL", c.API.BaseURL)
	if c.API.Timeout, err = getEnvDuration("AFISHA_API_TIMEOUT", c.API.Timeout); err != nil {
		return err
	}

	if c.Session.RestoreTimeout, err = getEnvDuration("AFISHA_SESSION_RESTORE_TIMEOUT", c.Session.RestoreTimeout); err != nil {
		return err
	}
	c.Session.LandingPath = getEnv("AFISHA_SESSION_LANDING_PATH", c.Session.LandingPath)
	c.Session.LoginPath = getEnv("AFISHA_SESSION_LOGIN_PATH", c.Session.LoginPath)

	c.Storage.Driver = getEnv("AFISHA_STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.FilePath = getEnv("AFISHA_STORAGE_FILE_PATH", c.Storage.FilePath)
	c.Storage.RedisURL = getEnv("AFISHA_STORAGE_REDIS_URL", c.Storage.RedisURL)
	c.Storage.MongoURI = getEnv("AFISHA_STORAGE_MONGO_URI", c.Storage.MongoURI)
	c.Storage.MongoDatabase = getEnv("AFISHA_STORAGE_MONGO_DATABASE", c.Storage.MongoDatabase)
	c.Storage.MongoCollection = getEnv("AFISHA_STORAGE_MONGO_COLLECTION", c.Storage.MongoCollection)

	c.Server.Addr = getEnv("AFISHA_SERVER_ADDR", c.Server.Addr)
	c.Server.StaticDir = getEnv("AFISHA_SERVER_STATIC_DIR", c.Server.StaticDir)
	c.Server.EntryPath = getEnv("AFISHA_SERVER_ENTRY_PATH", c.Server.EntryPath)
	c.Server.ShimDeepLinks = getEnvBool("AFISHA_SERVER_SHIM_DEEP_LINKS", c.Server.ShimDeepLinks)
	c.Server.CookieSecret = getEnv("AFISHA_SERVER_COOKIE_SECRET", c.Server.CookieSecret)
	c.Server.CookieDomain = getEnvBool("AFISHA_SERVER_COOKIE_DOMAIN", c.Server.CookieDomain)

	c.Log.Level = getEnv("AFISHA_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("AFISHA_LOG_FORMAT", c.Log.Format)
	return nil
}

// Validate checks the settings every command needs. Server settings are checked by
// ValidateServer.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api base url %q must be an absolute URL", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return errors.New("api timeout must be positive")
	}
	if c.Session.RestoreTimeout <= 0 {
		return errors.New("session restore timeout must be positive")
	}
	if !strings.HasPrefix(c.Session.LandingPath, "/") {
		return fmt.Errorf("session landing path %q must start with /", c.Session.LandingPath)
	}
	if !strings.HasPrefix(c.Session.LoginPath, "/") {
		return fmt.Errorf("session login path %q must start with /", c.Session.LoginPath)
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverFile:
		if c.Storage.FilePath == "" {
			return errors.New("storage file path is required for file storage")
		}
	case DriverRedis:
		if c.Storage.RedisURL == "" {
			return errors.New("storage redis url is required for redis storage")
		}
	case DriverMongo:
		if c.Storage.MongoURI == "" || c.Storage.MongoDatabase == "" || c.Storage.MongoCollection == "" {
			return errors.New("storage mongo uri, database and collection are required for mongo storage")
		}
	default:
		return fmt.Errorf("invalid storage driver: %s (must be memory, file, redis, or mongo)", c.Storage.Driver)
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Log.Format)
	}
	return nil
}

// ValidateServer checks the settings used by the HTTP host.
func (c *Config) ValidateServer() error {
	if c.Server.Addr == "" {
		return errors.New("server addr is required")
	}
	if len(c.Server.CookieSecret) < 32 {
		return errors.New("server cookie secret must be at least 32 bytes")
	}
	if !strings.HasPrefix(c.Server.EntryPath, "/") {
		return fmt.Errorf("server entry path %q must start with /", c.Server.EntryPath)
	}
	return nil
}

// Logger builds a logrus logger from the log settings.
func (c *Config) Logger() *logrus.Logger {
	log := logrus.New()
	if level, err := logrus.ParseLevel(c.Log.Level); err == nil {
		log.SetLevel(level)
	}
	if c.Log.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log
}

func defaultFilePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".afisha-session.json"
	}
	return filepath.Join(dir, "afisha", "session.json")
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration in %s: %w", key, err)
	}
	return d, nil
}
