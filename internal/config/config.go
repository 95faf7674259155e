package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// PathEnvVar overrides the config file location.
const PathEnvVar = "CONFIG_PATH"

// DefaultPaths are searched in order when CONFIG_PATH is unset.
var DefaultPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/lokniti/config.yaml",
}

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	AI       AIConfig       `koanf:"ai"`
	SMS      SMSConfig      `koanf:"sms"`
	Logging  LoggingConfig  `koanf:"logging"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
	IdleTimeout    time.Duration `koanf:"idle_timeout"`
	AllowedOrigins []string      `koanf:"allowed_origins"`
}

type DatabaseConfig struct {
	Host            string        `koanf:"host"`
	Port            string        `koanf:"port"`
	User            string        `koanf:"user"`
	Password        string        `koanf:"password"`
	Name            string        `koanf:"name"`
	SSLMode         string        `koanf:"sslmode"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	LogLevel        string        `koanf:"log_level"`
}

// DSN renders the key/value connection string understood by the postgres driver.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode,
	)
}

type AuthConfig struct {
	JWTSecret  string        `koanf:"jwt_secret"`
	TokenTTL   time.Duration `koanf:"token_ttl"`
	BcryptCost int           `koanf:"bcrypt_cost"`
}

type AIConfig struct {
	APIKey           string        `koanf:"api_key"`
	Model            string        `koanf:"model"`
	BaseURL          string        `koanf:"base_url"`
	Timeout          time.Duration `koanf:"timeout"`
	FailureThreshold uint32        `koanf:"failure_threshold"`
	Cooldown         time.Duration `koanf:"cooldown"`
	RatePerMinute    int           `koanf:"rate_per_minute"`
	Burst            int           `koanf:"burst"`
}

// Enabled reports whether an AI backend is configured.
func (a AIConfig) Enabled() bool {
	return a.APIKey != ""
}

type SMSConfig struct {
	Enabled     bool   `koanf:"enabled"`
	AccountSID  string `koanf:"account_sid"`
	AuthToken   string `koanf:"auth_token"`
	FromNumber  string `koanf:"from_number"`
	Concurrency int    `koanf:"concurrency"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    time.Minute,
			AllowedOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            "5432",
			User:            "postgres",
			Name:            "lokniti",
			SSLMode:         "disable",
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
			LogLevel:        "warn",
		},
		Auth: AuthConfig{
			TokenTTL:   72 * time.Hour,
			BcryptCost: 10,
		},
		AI: AIConfig{
			Model:            "gpt-4o-mini",
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
			RatePerMinute:    10,
			Burst:            3,
		},
		SMS: SMSConfig{
			Concurrency: 4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// envKeys maps the environment variable names used in deployment to koanf paths.
var envKeys = map[string]string{
	"port":               "server.port",
	"allowed_origins":    "server.allowed_origins",
	"db_host":            "database.host",
	"db_port":            "database.port",
	"db_user":            "database.user",
	"db_password":        "database.password",
	"db_name":            "database.name",
	"db_sslmode":         "database.sslmode",
	"db_max_open_conns":  "database.max_open_conns",
	"db_log_level":       "database.log_level",
	"jwt_secret":         "auth.jwt_secret",
	"jwt_ttl":            "auth.token_ttl",
	"openai_api_key":     "ai.api_key",
	"openai_model":       "ai.model",
	"openai_base_url":    "ai.base_url",
	"ai_timeout":         "ai.timeout",
	"ai_rate_per_minute": "ai.rate_per_minute",
	"sms_enabled":        "sms.enabled",
	"twilio_account_sid": "sms.account_sid",
	"twilio_auth_token":  "sms.auth_token",
	"twilio_from_number": "sms.from_number",
	"log_level":          "logging.level",
	"log_format":         "logging.format",
}

func envKey(key string) string {
	return envKeys[strings.ToLower(key)]
}

// Load layers defaults, an optional YAML file and environment variables, in
// that order of precedence, and validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Comma separated env values arrive as a single string.
	if origins := k.String("server.allowed_origins"); origins != "" && strings.Contains(origins, ",") {
		parts := strings.Split(origins, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if err := k.Set("server.allowed_origins", parts); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if path := os.Getenv(PathEnvVar); path != "" {
		return path
	}
	for _, path := range DefaultPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func (c *Config) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret (JWT_SECRET) is required"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range", c.Server.Port))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.SMS.Enabled && (c.SMS.AccountSID == "" || c.SMS.AuthToken == "" || c.SMS.FromNumber == "") {
		errs = append(errs, errors.New("sms is enabled but twilio credentials are incomplete"))
	}
	return errors.Join(errs...)
}
