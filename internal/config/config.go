package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v8"
	"github.com/go-sql-driver/mysql"
	"github.com/subosito/gotenv"
)

const (
	BackendMySQL  = "mysql"
	BackendMemory = "memory"
)

type Config struct {
	Port            string        `env:"APP_PORT" envDefault:"8080"`
	Env             string        `env:"APP_ENV" envDefault:"development"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"debug"`
	LogDir          string        `env:"LOG_DIR" envDefault:"./logging/logs"`
	Timezone        string        `env:"APP_TIMEZONE" envDefault:"UTC"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	StorageBackend  string        `env:"STORAGE_BACKEND" envDefault:"mysql"`
	CorsOrigins     []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	Database Database
	Token    Token
}

type Database struct {
	User    string `env:"DB_USER"`
	Pass    string `env:"DB_PASS"`
	Host    string `env:"DB_HOST"`
	Port    string `env:"DB_PORT" envDefault:"3306"`
	Name    string `env:"DB_NAME" envDefault:"expense_tracker"`
	FullDSN string `env:"FULL_DSN"`
}

type Token struct {
	Secret     string        `env:"JWT_SECRET"`
	AccessTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"5m"`
	RefreshTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"24h"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var problems []string

	c.StorageBackend = strings.ToLower(strings.TrimSpace(c.StorageBackend))
	if c.StorageBackend != BackendMySQL && c.StorageBackend != BackendMemory {
		problems = append(problems, fmt.Sprintf("invalid STORAGE_BACKEND %q: must be mysql or memory", c.StorageBackend))
	}
	if c.StorageBackend == BackendMySQL {
		if c.Token.Secret == "" {
			problems = append(problems, "JWT_SECRET is required for the mysql backend")
		}
		if c.Database.FullDSN == "" && (c.Database.User == "" || c.Database.Pass == "" || c.Database.Host == "") {
			problems = append(problems, "missing required DB environment variables (DB_USER, DB_PASS, DB_HOST) or FULL_DSN")
		}
	}
	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 {
		problems = append(problems, "token lifetimes must be positive")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		problems = append(problems, fmt.Sprintf("invalid APP_TIMEZONE %q", c.Timezone))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.ToLower(c.Env) == "production"
}

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DSN returns the data source name for the application database.
func (d Database) DSN() string {
	if d.FullDSN != "" {
		return d.FullDSN
	}
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Pass
	cfg.Net = "tcp"
	cfg.Addr = d.Host + ":" + d.Port
	cfg.DBName = d.Name
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN()
}
