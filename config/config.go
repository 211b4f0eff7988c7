// Package config loads runtime settings from the environment. A .env file in
// the working directory is read first when present.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Postgres struct {
	Host     string
	Port     string
	User     string
	Password string
	DB       string
	SSLMode  string
}

// DSN renders a pgx connection string.
func (p Postgres) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     p.Host + ":" + p.Port,
		Path:     "/" + p.DB,
		RawQuery: "sslmode=" + url.QueryEscape(p.SSLMode),
	}
	return u.String()
}

// Mongo is optional. Enabled when MONGO_HOST is set.
type Mongo struct {
	Enabled    bool
	Scheme     string
	User       string
	Password   string
	Host       string
	Port       string
	DB         string
	AuthSource string
}

// URI renders a mongodb connection string.
func (m Mongo) URI() string {
	u := url.URL{Scheme: m.Scheme, Host: m.Host, Path: "/" + m.DB}
	if m.Port != "" {
		u.Host += ":" + m.Port
	}
	if m.User != "" {
		u.User = url.UserPassword(m.User, m.Password)
	}
	if m.AuthSource != "" {
		u.RawQuery = "authSource=" + url.QueryEscape(m.AuthSource)
	}
	return u.String()
}

// S3 is optional. Enabled when AWS_BUCKET is set.
type S3 struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

type Config struct {
	Port        string
	StoreDriver string
	SQLitePath  string
	Postgres    Postgres
	Mongo       Mongo
	S3          S3

	ReminderSender   string
	ReminderEnabled  bool
	ReminderInterval time.Duration
	MailTimeout      time.Duration
	SendConcurrency  int

	LogLevel string
	Location *time.Location
}

// Load reads .env (if any) and the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads the environment only.
func FromEnv() (Config, error) {
	var errs []error

	cfg := Config{
		Port:        getenv("SERVER_PORT", "8080"),
		StoreDriver: strings.ToLower(getenv("STORE_DRIVER", DriverSQLite)),
		SQLitePath:  getenv("SQLITE_PATH", "./data/ledger.db"),
		Postgres: Postgres{
			Host:     getenv("PG_HOST", "127.0.0.1"),
			Port:     getenv("PG_PORT", "5432"),
			User:     getenv("PG_USER", "postgres"),
			Password: getenv("PG_PASSWORD", ""),
			DB:       getenv("PG_DB", "ledger"),
			SSLMode:  getenv("PG_SSLMODE", "disable"),
		},
		Mongo: Mongo{
			Enabled:    os.Getenv("MONGO_HOST") != "",
			Scheme:     getenv("MONGO_SCHEME", "mongodb"),
			User:       getenv("MONGO_USER", ""),
			Password:   getenv("MONGO_PASSWORD", ""),
			Host:       getenv("MONGO_HOST", "127.0.0.1"),
			Port:       getenv("MONGO_PORT", "27017"),
			DB:         getenv("MONGO_DB", "ledger"),
			AuthSource: getenv("MONGO_AUTH_SOURCE", ""),
		},
		S3: S3{
			Enabled:   os.Getenv("AWS_BUCKET") != "",
			Endpoint:  getenv("AWS_ENDPOINT", "localhost:9000"),
			AccessKey: getenv("AWS_ACCESS_KEY_ID", ""),
			SecretKey: getenv("AWS_SECRET_ACCESS_KEY", ""),
			Region:    getenv("AWS_DEFAULT_REGION", "us-east-1"),
			Bucket:    getenv("AWS_BUCKET", ""),
			Prefix:    getenv("AWS_PREFIX", ""),
			UseSSL:    getenv("AWS_USE_SSL", "false") == "true",
		},
		ReminderSender: getenv("REMINDER_SENDER_EMAIL", "billing@localhost"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
	}

	switch cfg.StoreDriver {
	case DriverSQLite, DriverPostgres, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER: unknown driver %q", cfg.StoreDriver))
	}

	var err error
	if cfg.ReminderEnabled, err = strconv.ParseBool(getenv("REMINDER_ENABLED", "true")); err != nil {
		errs = append(errs, fmt.Errorf("REMINDER_ENABLED: %w", err))
	}
	if cfg.ReminderInterval, err = time.ParseDuration(getenv("REMINDER_INTERVAL", "1h")); err != nil {
		errs = append(errs, fmt.Errorf("REMINDER_INTERVAL: %w", err))
	} else if cfg.ReminderInterval <= 0 {
		errs = append(errs, errors.New("REMINDER_INTERVAL: must be positive"))
	}
	if cfg.MailTimeout, err = time.ParseDuration(getenv("MAIL_TIMEOUT", "30s")); err != nil {
		errs = append(errs, fmt.Errorf("MAIL_TIMEOUT: %w", err))
	}
	if cfg.SendConcurrency, err = strconv.Atoi(getenv("SEND_CONCURRENCY", "4")); err != nil {
		errs = append(errs, fmt.Errorf("SEND_CONCURRENCY: %w", err))
	} else if cfg.SendConcurrency < 1 {
		errs = append(errs, errors.New("SEND_CONCURRENCY: must be at least 1"))
	}
	if cfg.Location, err = time.LoadLocation(getenv("TIMEZONE", "UTC")); err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE: %w", err))
	}

	return cfg, errors.Join(errs...)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
