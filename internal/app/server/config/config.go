package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPath  = ".env"
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"

	AuthModeSession = "session"
	AuthModeJWT     = "jwt"

	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	Env     string `toml:"env"`
	Storage string `toml:"storage"`
	DB      DB     `toml:"db"`
	Server  Server `toml:"server"`
	Logger  Logger `toml:"logger"`
	Auth    Auth   `toml:"auth"`
	Sync    Sync   `toml:"sync"`
}

type DB struct {
	DatabaseURI string `toml:"database_uri"`
	Migrations  string `toml:"migrations_path"`
	MaxConns    int32  `toml:"max_conns"`
	MinConns    int32  `toml:"min_conns"`
}

type Server struct {
	RunAddress  string   `toml:"run_address"`
	CORSOrigins []string `toml:"cors_origins"`
}

type Logger struct {
	LogLevel string `toml:"log_level"`
}

type Auth struct {
	Mode     string   `toml:"mode"`
	Secret   string   `toml:"secret"`
	TokenTTL Duration `toml:"token_ttl"`
}

type Sync struct {
	SessionTTL Duration `toml:"session_ttl"`
	GCInterval Duration `toml:"gc_interval"`
}

// Duration - time.Duration, читаемая из TOML строкой вида "30m"
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func defaults() *Config {
	return &Config{
		Env:     EnvLocal,
		Storage: StoragePostgres,
		DB: DB{
			Migrations: "migrations",
			MaxConns:   10,
			MinConns:   1,
		},
		Server: Server{RunAddress: ":8080"},
		Logger: Logger{LogLevel: "info"},
		Auth: Auth{
			Mode:     AuthModeSession,
			TokenTTL: Duration{24 * time.Hour},
		},
		Sync: Sync{
			SessionTTL: Duration{30 * time.Minute},
			GCInterval: Duration{time.Minute},
		},
	}
}

// Load собирает конфиг: значения по умолчанию, затем TOML-файл, затем переменные окружения
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()

	setString(v, "app_env", &cfg.Env)
	setString(v, "storage", &cfg.Storage)
	setString(v, "run_address", &cfg.Server.RunAddress)
	setString(v, "database_uri", &cfg.DB.DatabaseURI)
	setString(v, "migrations_path", &cfg.DB.Migrations)
	setString(v, "log_level", &cfg.Logger.LogLevel)
	setString(v, "auth_mode", &cfg.Auth.Mode)
	setString(v, "secret", &cfg.Auth.Secret)

	if v.IsSet("cors_origins") {
		cfg.Server.CORSOrigins = splitList(v.GetString("cors_origins"))
	}
	if v.IsSet("db_max_conns") {
		cfg.DB.MaxConns = v.GetInt32("db_max_conns")
	}
	if v.IsSet("db_min_conns") {
		cfg.DB.MinConns = v.GetInt32("db_min_conns")
	}

	for key, dst := range map[string]*Duration{
		"token_ttl":                &cfg.Auth.TokenTTL,
		"sync_session_ttl":         &cfg.Sync.SessionTTL,
		"sync_session_gc_interval": &cfg.Sync.GCInterval,
	} {
		if !v.IsSet(key) {
			continue
		}
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", strings.ToUpper(key), err)
		}
		dst.Duration = d
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad читает .env и конфиг, при ошибке завершает процесс
func MustLoad(path string) *Config {
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to load %s: %v", envPath, err)
	}

	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	return cfg
}

func (c *Config) validate() error {
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("unknown APP_ENV %q", c.Env)
	}

	switch c.Storage {
	case StoragePostgres:
		if c.DB.DatabaseURI == "" {
			return errors.New("DATABASE_URI is required for postgres storage")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown STORAGE %q", c.Storage)
	}

	switch c.Auth.Mode {
	case AuthModeSession:
	case AuthModeJWT:
		if c.Auth.Secret == "" {
			return errors.New("SECRET is required for jwt auth mode")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.Auth.Mode)
	}

	if c.DB.MinConns > c.DB.MaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DB.MinConns, c.DB.MaxConns)
	}
	return nil
}

func (c *Config) IsLocal() bool { return c.Env == EnvLocal }
func (c *Config) IsProd() bool  { return c.Env == EnvProd }

func setString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
