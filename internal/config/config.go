package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type JWTConfig struct {
	SecretKey string
	Issuer    string
	Expiry    time.Duration
}

type Argon2Config struct {
	Time       uint32
	Memory     uint32
	Threads    uint8
	KeyLength  uint32
	SaltLength uint32
}

type LedgerConfig struct {
	// InitialBalance is credited to every new account, in minor units.
	InitialBalance int64
	// MinorUnits is the number of decimal places of the currency.
	MinorUnits  int32
	LockTimeout time.Duration
	MaxRetries  int
}

type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Host      string
	Port      string
	Password  string
	DB        int
	KeyPrefix string
}

type Config struct {
	Server         ServerConfig
	JWT            JWTConfig
	Argon2         Argon2Config
	Ledger         LedgerConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	StoreDriver    string
	SessionDriver  string
	CookieSecure   bool
	AllowedOrigins []string
	LogLevel       string
	LogDevelopment bool
}

// envBindings maps config keys to environment variables. Durations take a
// unit suffix ("750ms", "2s"); a bare number would be nanoseconds and is
// rejected by validate.
var envBindings = map[string]string{
	"server.port":             "PORT",
	"server.read_timeout":     "SERVER_READ_TIMEOUT",
	"server.write_timeout":    "SERVER_WRITE_TIMEOUT",
	"server.request_timeout":  "SERVER_REQUEST_TIMEOUT",
	"server.idle_timeout":     "SERVER_IDLE_TIMEOUT",
	"server.shutdown_timeout": "SERVER_SHUTDOWN_TIMEOUT",
	"jwt.secret_key":          "JWT_SECRET_KEY",
	"jwt.issuer":              "JWT_ISSUER",
	"jwt.expiry_minutes":      "JWT_EXPIRY_MINUTES",
	"argon2.time":             "ARGON2_TIME",
	"argon2.memory":           "ARGON2_MEMORY",
	"argon2.threads":          "ARGON2_THREADS",
	"argon2.key_length":       "ARGON2_KEY_LENGTH",
	"argon2.salt_length":      "ARGON2_SALT_LENGTH",
	"ledger.initial_balance":  "LEDGER_INITIAL_BALANCE",
	"ledger.minor_units":      "LEDGER_MINOR_UNITS",
	"ledger.lock_timeout":     "LEDGER_LOCK_TIMEOUT",
	"ledger.max_retries":      "LEDGER_MAX_RETRIES",
	"store.driver":            "STORE_DRIVER",
	"session.driver":          "SESSION_DRIVER",
	"database.driver":         "DATABASE_DRIVER",
	"database.host":           "DATABASE_HOST",
	"database.port":           "DATABASE_PORT",
	"database.user":           "DATABASE_USER",
	"database.password":       "DATABASE_PASSWORD",
	"database.name":           "DATABASE_NAME",
	"database.ssl_mode":       "DATABASE_SSL_MODE",
	"redis.host":              "REDIS_HOST",
	"redis.port":              "REDIS_PORT",
	"redis.password":          "REDIS_PASSWORD",
	"redis.db":                "REDIS_DB",
	"redis.key_prefix":        "REDIS_KEY_PREFIX",
	"cookie.secure":           "COOKIE_SECURE",
	"cors.allowed_origins":    "CORS_ALLOWED_ORIGINS",
	"cors.frontend_url":       "FRONTEND_URL",
	"log.level":               "LOG_LEVEL",
	"log.development":         "LOG_DEVELOPMENT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("jwt.issuer", "kodbank")
	v.SetDefault("jwt.expiry_minutes", 60)

	v.SetDefault("argon2.time", 1)
	v.SetDefault("argon2.memory", 64*1024)
	v.SetDefault("argon2.threads", 4)
	v.SetDefault("argon2.key_length", 32)
	v.SetDefault("argon2.salt_length", 16)

	v.SetDefault("ledger.initial_balance", 100000)
	v.SetDefault("ledger.minor_units", 2)
	v.SetDefault("ledger.lock_timeout", 2*time.Second)
	v.SetDefault("ledger.max_retries", 3)

	v.SetDefault("store.driver", "memory")
	v.SetDefault("session.driver", "memory")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.name", "kodbank")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "kodbank:")

	v.SetDefault("cookie.secure", false)
	v.SetDefault("cors.allowed_origins", "http://localhost:5173,https://kodbank.vercel.app")
	v.SetDefault("cors.frontend_url", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Load reads the .env file (if any) and the environment into a Config.
func Load() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            v.GetString("server.port"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			IdleTimeout:     v.GetDuration("server.idle_timeout"),
			RequestTimeout:  v.GetDuration("server.request_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		JWT: JWTConfig{
			SecretKey: v.GetString("jwt.secret_key"),
			Issuer:    v.GetString("jwt.issuer"),
			Expiry:    time.Duration(v.GetInt("jwt.expiry_minutes")) * time.Minute,
		},
		Argon2: Argon2Config{
			Time:       v.GetUint32("argon2.time"),
			Memory:     v.GetUint32("argon2.memory"),
			Threads:    uint8(v.GetUint("argon2.threads")),
			KeyLength:  v.GetUint32("argon2.key_length"),
			SaltLength: v.GetUint32("argon2.salt_length"),
		},
		Ledger: LedgerConfig{
			InitialBalance: v.GetInt64("ledger.initial_balance"),
			MinorUnits:     v.GetInt32("ledger.minor_units"),
			LockTimeout:    v.GetDuration("ledger.lock_timeout"),
			MaxRetries:     v.GetInt("ledger.max_retries"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetString("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			Name:            v.GetString("database.name"),
			SSLMode:         v.GetString("database.ssl_mode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			Host:      v.GetString("redis.host"),
			Port:      v.GetString("redis.port"),
			Password:  v.GetString("redis.password"),
			DB:        v.GetInt("redis.db"),
			KeyPrefix: v.GetString("redis.key_prefix"),
		},
		StoreDriver:    strings.ToLower(v.GetString("store.driver")),
		SessionDriver:  strings.ToLower(v.GetString("session.driver")),
		CookieSecure:   v.GetBool("cookie.secure"),
		AllowedOrigins: origins(v.GetString("cors.allowed_origins"), v.GetString("cors.frontend_url")),
		LogLevel:       v.GetString("log.level"),
		LogDevelopment: v.GetBool("log.development"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.JWT.SecretKey) == "" {
		return errors.New("JWT_SECRET_KEY is required")
	}
	if c.JWT.Expiry <= 0 {
		return errors.New("JWT_EXPIRY_MINUTES must be positive")
	}
	if c.Ledger.InitialBalance < 0 {
		return errors.New("LEDGER_INITIAL_BALANCE must not be negative")
	}
	if c.Ledger.MinorUnits < 0 || c.Ledger.MinorUnits > 8 {
		return errors.New("LEDGER_MINOR_UNITS must be between 0 and 8")
	}
	durations := []struct {
		env string
		d   time.Duration
	}{
		{"SERVER_READ_TIMEOUT", c.Server.ReadTimeout},
		{"SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout},
		{"SERVER_IDLE_TIMEOUT", c.Server.IdleTimeout},
		{"SERVER_REQUEST_TIMEOUT", c.Server.RequestTimeout},
		{"SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout},
		{"LEDGER_LOCK_TIMEOUT", c.Ledger.LockTimeout},
	}
	for _, d := range durations {
		if d.d < time.Millisecond {
			return fmt.Errorf("%s must be at least 1ms and carry a unit, e.g. \"2s\"", d.env)
		}
	}
	switch c.StoreDriver {
	case "memory", "postgres":
	default:
		return errors.New("STORE_DRIVER must be memory or postgres")
	}
	switch c.SessionDriver {
	case "memory", "redis":
	default:
		return errors.New("SESSION_DRIVER must be memory or redis")
	}
	switch c.Database.Driver {
	case "postgres", "pgx":
	default:
		return errors.New("DATABASE_DRIVER must be postgres or pgx")
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Server.Port
}

func origins(csv, frontend string) []string {
	var out []string
	for _, part := range strings.Split(csv+","+frontend, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
