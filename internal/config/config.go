// Package config loads settings shared by both services. Values come from an
// optional YAML file, then from the environment (a .env file is loaded first
// when present), the environment winning.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Postgres struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DB       string `yaml:"db"`
	SSLMode  string `yaml:"sslmode"`
}

type Config struct {
	DBDriver           string        `yaml:"db_driver"`
	Postgres           Postgres      `yaml:"postgres"`
	SQLitePath         string        `yaml:"sqlite_path"`
	ServerPort         string        `yaml:"server_port"`
	ServerPortTasks    string        `yaml:"server_port_tasks"`
	JWTSecret          string        `yaml:"jwt_secret"`
	TokenTTL           time.Duration `yaml:"token_ttl"`
	TokenPruneInterval time.Duration `yaml:"token_prune_interval"`
	AllowedOrigins     []string      `yaml:"allowed_origins"`
	LogLevel           string        `yaml:"log_level"`
	LogFormat          string        `yaml:"log_format"`
}

func defaults() *Config {
	return &Config{
		DBDriver:           DriverPostgres,
		Postgres:           Postgres{Host: "localhost", Port: "5432", SSLMode: "disable"},
		SQLitePath:         "tasks.db",
		ServerPort:         "8080",
		ServerPortTasks:    "8081",
		TokenTTL:           24 * time.Hour,
		TokenPruneInterval: time.Hour,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

/*
Load builds the configuration. path may be empty; a missing .env file is not
an error, a missing YAML file named explicitly is.
*/
func Load(path string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := defaults()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"DB_DRIVER":         &c.DBDriver,
		"POSTGRES_HOST":     &c.Postgres.Host,
		"POSTGRES_PORT":     &c.Postgres.Port,
		"POSTGRES_USER":     &c.Postgres.User,
		"POSTGRES_PASSWORD": &c.Postgres.Password,
		"POSTGRES_DB":       &c.Postgres.DB,
		"POSTGRES_SSLMODE":  &c.Postgres.SSLMode,
		"SQLITE_PATH":       &c.SQLitePath,
		"SERVER_PORT":       &c.ServerPort,
		"SERVER_PORT_TASKS": &c.ServerPortTasks,
		"JWT_SECRET":        &c.JWTSecret,
		"LOG_LEVEL":         &c.LogLevel,
		"LOG_FORMAT":        &c.LogFormat,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"TOKEN_TTL":            &c.TokenTTL,
		"TOKEN_PRUNE_INTERVAL": &c.TokenPruneInterval,
	}
	for key, dst := range durations {
		v, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}

	if v, ok := os.LookupEnv("ALLOWED_ORIGINS"); ok {
		c.AllowedOrigins = splitList(v)
	}
	return nil
}

// parseDuration accepts Go durations ("90m") and bare seconds ("3600").
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the settings a service cannot start without. port is the
// listen port of the calling service.
func (c *Config) Validate(port string) error {
	var errs []error
	if port == "" {
		errs = append(errs, errors.New("server port must be set"))
	}
	if len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}

	switch c.DBDriver {
	case DriverPostgres:
		required := map[string]string{
			"POSTGRES_HOST":     c.Postgres.Host,
			"POSTGRES_PORT":     c.Postgres.Port,
			"POSTGRES_USER":     c.Postgres.User,
			"POSTGRES_PASSWORD": c.Postgres.Password,
			"POSTGRES_DB":       c.Postgres.DB,
		}
		for _, key := range []string{"POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB"} {
			if required[key] == "" {
				errs = append(errs, fmt.Errorf("environment variable %s must be set", key))
			}
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH must be set"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver))
	}
	return errors.Join(errs...)
}

// DSN returns the data source name for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == DriverSQLite {
		return "file:" + c.SQLitePath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	p := c.Postgres
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		p.Host, p.User, p.Password, p.DB, p.Port, p.SSLMode)
}
