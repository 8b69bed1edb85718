package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerAddress = "localhost:8080"
	defaultLogLevel      = "info"
	defaultEnv           = "local"
	defaultConfigDir     = ".hammer"
	defaultWatchDebounce = 2 * time.Second
	defaultSyncInterval  = 5 * time.Minute
)

type Config struct {
	Env              string        `mapstructure:"app_env"`
	ServerAddress    string        `mapstructure:"server_address"`
	LogLevel         string        `mapstructure:"log_level"`
	ConfigDir        string        `mapstructure:"config_dir"`
	TokenPath        string        `mapstructure:"token_path"`
	DataPath         string        `mapstructure:"data_path"`
	LogPath          string        `mapstructure:"log_path"`
	UserID           int           `mapstructure:"user_id"`
	EnableTLS        bool          `mapstructure:"enable_tls"`
	AutoCloseSyncLog bool          `mapstructure:"auto_close_sync_log"`
	WatchDebounce    time.Duration `mapstructure:"watch_debounce"`
	SyncInterval     time.Duration `mapstructure:"sync_interval"`
}

// MustLoad загружает конфигурацию клиента, при ошибке паникует
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("Ошибка конфигурации: %v", err))
	}
	return cfg
}

// Load читает .env, конфиг-файл (если его подключил вызывающий) и переменные окружения
func Load() (*Config, error) {
	// .env ищем рядом с местом запуска или уровнем выше
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		envPath = "../.env"
	}
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			fmt.Printf("Ошибка загрузки .env файла: %v\n", err)
		}
	}

	viper.AutomaticEnv()

	viper.SetDefault("APP_ENV", defaultEnv)
	viper.SetDefault("SERVER_ADDRESS", defaultServerAddress)
	viper.SetDefault("LOG_LEVEL", defaultLogLevel)
	viper.SetDefault("CONFIG_DIR", defaultConfigDir)
	viper.SetDefault("ENABLE_TLS", false)
	viper.SetDefault("AUTO_CLOSE_SYNC_LOG", true)
	viper.SetDefault("WATCH_DEBOUNCE", defaultWatchDebounce)
	viper.SetDefault("SYNC_INTERVAL", defaultSyncInterval)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	configDir := viper.GetString("CONFIG_DIR")
	if configDir == defaultConfigDir {
		configDir = filepath.Join(homeDir, configDir)
	}
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("ошибка создания директории конфигурации: %w", err)
	}

	config := &Config{
		Env:              viper.GetString("APP_ENV"),
		ServerAddress:    viper.GetString("SERVER_ADDRESS"),
		LogLevel:         viper.GetString("LOG_LEVEL"),
		ConfigDir:        configDir,
		TokenPath:        pathOr(viper.GetString("TOKEN_PATH"), configDir, "token"),
		DataPath:         pathOr(viper.GetString("DATA_PATH"), configDir, "data.db"),
		LogPath:          pathOr(viper.GetString("LOG_PATH"), configDir, "hammer.log"),
		UserID:           viper.GetInt("USER_ID"),
		EnableTLS:        viper.GetBool("ENABLE_TLS"),
		AutoCloseSyncLog: viper.GetBool("AUTO_CLOSE_SYNC_LOG"),
		WatchDebounce:    viper.GetDuration("WATCH_DEBOUNCE"),
		SyncInterval:     viper.GetDuration("SYNC_INTERVAL"),
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func pathOr(value, dir, name string) string {
	if value != "" {
		return value
	}
	return filepath.Join(dir, name)
}

func (c *Config) validate() error {
	if c.ServerAddress == "" {
		return fmt.Errorf("server_address не может быть пустым")
	}
	if c.UserID < 0 {
		return fmt.Errorf("user_id не может быть отрицательным")
	}
	if c.WatchDebounce <= 0 {
		return fmt.Errorf("watch_debounce должен быть положительным")
	}
	return nil
}

// BaseURL возвращает адрес сервера со схемой
func (c *Config) BaseURL() string {
	scheme := "http://"
	if c.EnableTLS {
		scheme = "https://"
	}
	return scheme + c.ServerAddress
}

// IsProd проверяет, prod ли окружение
func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

// IsDev проверяет, dev ли окружение
func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// IsLocal проверяет, local ли окружение
func (c *Config) IsLocal() bool {
	return c.Env == "local" || c.Env == ""
}
