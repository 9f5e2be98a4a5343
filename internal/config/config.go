package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	APIURL            string        `mapstructure:"api_url"`
	FaceAPIURL        string        `mapstructure:"face_api_url"`
	QuizAPIURL        string        `mapstructure:"quiz_api_url"`
	SessionCookieName string        `mapstructure:"session_cookie_name"`
	SessionCookie     string        `mapstructure:"session_cookie"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`

	Fallback FallbackConfig `mapstructure:"fallback"`
	Wizard   WizardConfig   `mapstructure:"wizard"`
	Quiz     QuizConfig     `mapstructure:"quiz"`
	Presence PresenceConfig `mapstructure:"presence"`
	Handoff  HandoffConfig  `mapstructure:"handoff"`
	Store    StoreConfig    `mapstructure:"store"`
	Log      LogConfig      `mapstructure:"log"`
}

// FallbackConfig controls the simulated CV score used when the analyzer is unreachable
type FallbackConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Delay   time.Duration `mapstructure:"delay"`
}

type WizardConfig struct {
	PhotoHold       time.Duration `mapstructure:"photo_hold"`
	MaxFaceAttempts int           `mapstructure:"max_face_attempts"` // 0 = unlimited
}

type QuizConfig struct {
	Duration     int    `mapstructure:"duration"` // seconds
	DefaultTopic string `mapstructure:"default_topic"`
	PassScore    int    `mapstructure:"pass_score"`
}

type PresenceConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	ConfidentAbove float64       `mapstructure:"confident_above"`
}

type HandoffConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type StoreConfig struct {
	Backend   string        `mapstructure:"backend"` // sqlite, redis
	RedisAddr string        `mapstructure:"redis_addr"`
	RedisTTL  time.Duration `mapstructure:"redis_ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var (
	AppConfig *Config
	v         *viper.Viper
	configDir string
)

// Initialize loads or creates the configuration file under ~/.jobportal
func Initialize() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	_, err = Load(filepath.Join(homeDir, ".jobportal"))
	return err
}

// Load reads dir/config.yaml, writing a default one first if it is missing.
// Values from a .env file in the working directory and JOBPORTAL_* variables
// override the file.
func Load(dir string) (*Config, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err := createDefaultConfig(configFile); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	nv := viper.New()
	nv.SetConfigFile(configFile)
	nv.SetConfigType("yaml")
	nv.SetEnvPrefix("JOBPORTAL")
	nv.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	nv.AutomaticEnv()
	setDefaults(nv)

	if err := nv.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := &Config{}
	if err := nv.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	v = nv
	configDir = dir
	AppConfig = cfg
	return cfg, nil
}

func setDefaults(nv *viper.Viper) {
	nv.SetDefault("api_url", "http://localhost:3001")
	nv.SetDefault("face_api_url", "http://localhost:5000")
	nv.SetDefault("quiz_api_url", "http://localhost:8000")
	nv.SetDefault("session_cookie_name", "session")
	nv.SetDefault("session_cookie", "")
	nv.SetDefault("request_timeout", "30s")
	nv.SetDefault("fallback.enabled", false)
	nv.SetDefault("fallback.delay", "1s")
	nv.SetDefault("wizard.photo_hold", "2s")
	nv.SetDefault("wizard.max_face_attempts", 0)
	nv.SetDefault("quiz.duration", 3600)
	nv.SetDefault("quiz.default_topic", "software engineering")
	nv.SetDefault("quiz.pass_score", 70)
	nv.SetDefault("presence.interval", "3s")
	nv.SetDefault("presence.confident_above", 0.7)
	nv.SetDefault("handoff.secret", "")
	nv.SetDefault("handoff.ttl", "15m")
	nv.SetDefault("store.backend", "sqlite")
	nv.SetDefault("store.redis_addr", "localhost:6379")
	nv.SetDefault("store.redis_ttl", "24h")
	nv.SetDefault("log.level", "info")
	nv.SetDefault("log.format", "console")
}

// Validate rejects configurations the client cannot run with
func (c *Config) Validate() error {
	var problems []string
	for key, val := range map[string]string{
		"api_url":      c.APIURL,
		"face_api_url": c.FaceAPIURL,
		"quiz_api_url": c.QuizAPIURL,
	} {
		if strings.TrimSpace(val) == "" {
			problems = append(problems, key+" is required")
		}
	}
	if c.RequestTimeout <= 0 {
		problems = append(problems, "request_timeout must be positive")
	}
	if c.Presence.Interval <= 0 {
		problems = append(problems, "presence.interval must be positive")
	}
	if c.Quiz.Duration <= 0 {
		problems = append(problems, "quiz.duration must be positive")
	}
	if c.Fallback.Delay < 0 || c.Wizard.PhotoHold < 0 {
		problems = append(problems, "fallback.delay and wizard.photo_hold cannot be negative")
	}
	switch c.Store.Backend {
	case "sqlite", "redis":
	default:
		problems = append(problems, fmt.Sprintf("unknown store.backend %q", c.Store.Backend))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// createDefaultConfig creates a default config file with a fresh handoff secret
func createDefaultConfig(path string) error {
	defaultConfig := fmt.Sprintf(`# Job portal client configuration
api_url: http://localhost:3001
face_api_url: http://localhost:5000
quiz_api_url: http://localhost:8000

# Session credential sent as a cookie (set with 'jobportal login')
session_cookie_name: session
session_cookie: ""
request_timeout: 30s

# Simulated CV score when the analyzer is unreachable. Demo use only.
fallback:
  enabled: false
  delay: 1s

wizard:
  photo_hold: 2s
  max_face_attempts: 0

quiz:
  duration: 3600
  default_topic: software engineering
  pass_score: 70

presence:
  interval: 3s
  confident_above: 0.7

# Keep this file secure!
handoff:
  secret: %q
  ttl: 15m

store:
  backend: sqlite
  redis_addr: localhost:6379
  redis_ttl: 24h

log:
  level: info
  format: console
`, uuid.NewString())
	return os.WriteFile(path, []byte(defaultConfig), 0600)
}

// Set updates a configuration value and writes the file
func Set(key, value string) error {
	if v == nil {
		return errors.New("config not initialized")
	}
	v.Set(key, value)
	if err := v.WriteConfig(); err != nil {
		return err
	}
	_, err := Load(configDir)
	return err
}

// Get retrieves a configuration value
func Get(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// Dir returns the directory holding the config file and local database
func Dir() string {
	if configDir != "" {
		return configDir
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".jobportal")
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	return filepath.Join(Dir(), "config.yaml")
}
