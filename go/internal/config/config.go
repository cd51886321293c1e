package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"github.com/mcdev12/queuetimer/go/internal/retry"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const envPrefix = "QUEUETIMER_"

type Config struct {
	API struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"api"`

	Session struct {
		File     string `yaml:"file"`
		Timezone string `yaml:"timezone"`
	} `yaml:"session"`

	Timer struct {
		TickInterval time.Duration `yaml:"tick_interval"`
		PollInterval time.Duration `yaml:"poll_interval"`
	} `yaml:"timer"`

	Retry struct {
		MaxAttempts int           `yaml:"max_attempts"`
		Step        time.Duration `yaml:"step"`
	} `yaml:"retry"`

	Relay struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"relay"`

	Events struct {
		NATSURL       string `yaml:"nats_url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"events"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	var c Config
	c.API.BaseURL = "http://127.0.0.1:8000/api"
	c.API.Timeout = 30 * time.Second
	c.Session.File = defaultSessionFile()
	c.Session.Timezone = "UTC"
	c.Timer.TickInterval = time.Second
	c.Timer.PollInterval = 2 * time.Second
	c.Retry.MaxAttempts = 3
	c.Retry.Step = time.Second
	c.Relay.Addr = "127.0.0.1:8787"
	c.Events.SubjectPrefix = "queuetimer"
	c.Log.Level = "info"
	c.Log.Format = "auto"
	return &c
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".queuetimer", "session.json")
	}
	return filepath.Join(dir, "queuetimer", "session.json")
}

// Load reads .env, then the optional YAML file at path, then QUEUETIMER_*
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.API.BaseURL = getEnv(envPrefix+"API_URL", c.API.BaseURL)
	c.Session.File = getEnv(envPrefix+"SESSION_FILE", c.Session.File)
	c.Session.Timezone = getEnv(envPrefix+"TIMEZONE", c.Session.Timezone)
	c.Relay.Addr = getEnv(envPrefix+"RELAY_ADDR", c.Relay.Addr)
	c.Events.NATSURL = getEnv(envPrefix+"NATS_URL", getEnv("NATS_URL", c.Events.NATSURL))
	c.Events.SubjectPrefix = getEnv(envPrefix+"NATS_SUBJECT_PREFIX", c.Events.SubjectPrefix)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv(envPrefix+"LOG_FORMAT", c.Log.Format)

	var err error
	if c.API.Timeout, err = getEnvAsDuration(envPrefix+"API_TIMEOUT", c.API.Timeout); err != nil {
		return err
	}
	if c.Timer.TickInterval, err = getEnvAsDuration(envPrefix+"TICK_INTERVAL", c.Timer.TickInterval); err != nil {
		return err
	}
	if c.Timer.PollInterval, err = getEnvAsDuration(envPrefix+"POLL_INTERVAL", c.Timer.PollInterval); err != nil {
		return err
	}
	if c.Retry.Step, err = getEnvAsDuration(envPrefix+"RETRY_STEP", c.Retry.Step); err != nil {
		return err
	}
	if c.Retry.MaxAttempts, err = getEnvAsInt(envPrefix+"RETRY_ATTEMPTS", c.Retry.MaxAttempts); err != nil {
		return err
	}
	if c.Relay.Enabled, err = getEnvAsBool(envPrefix+"RELAY_ENABLED", c.Relay.Enabled); err != nil {
		return err
	}
	return nil
}

// Validate rejects settings the client cannot run with
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api base_url %q", c.API.BaseURL)
	}
	if _, err := time.LoadLocation(c.Session.Timezone); err != nil {
		return fmt.Errorf("invalid session timezone %q: %w", c.Session.Timezone, err)
	}
	if c.Session.File == "" {
		return errors.New("session file is required")
	}
	if c.API.Timeout <= 0 || c.Timer.TickInterval <= 0 || c.Timer.PollInterval <= 0 {
		return errors.New("timeouts and intervals must be positive")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	return nil
}

// RetryPolicy builds the poller's retry policy from the retry section
func (c *Config) RetryPolicy(clock clockwork.Clock) retry.Policy {
	return retry.Policy{
		MaxAttempts: c.Retry.MaxAttempts,
		Backoff:     retry.Linear(c.Retry.Step),
		Clock:       clock,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return i, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
