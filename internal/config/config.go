package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"

	"fleet-telematics-sync/pkg/utils"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Admin    AdminConfig
	Wialon   WialonConfig
	Cesar    CesarConfig
	Axenta   AxentaConfig
	Sync     SyncConfig
}

type ServerConfig struct {
	Port        string
	Host        string
	Environment string
}

type DatabaseConfig struct {
	Host     string `validate:"required"`
	Port     string `validate:"required"`
	User     string
	Password string
	DBName   string `validate:"required"`
	SSLMode  string
}

type AdminConfig struct {
	Username     string
	PasswordHash string
	JWTSecret    string
	TokenExpiry  time.Duration
}

type WialonConfig struct {
	BaseURL string `validate:"omitempty,url"`
	Token   string
	Enabled bool
}

type CesarConfig struct {
	BaseURL  string `validate:"omitempty,url"`
	Username string
	Password string
	Enabled  bool
}

type AxentaConfig struct {
	BaseURL  string `validate:"omitempty,url"`
	Username string
	Password string
	Enabled  bool
}

type SyncConfig struct {
	PollInterval   time.Duration
	IdleBackoff    time.Duration
	ErrorBackoff   time.Duration
	RequestTimeout time.Duration
	HistoryWindow  time.Duration
	ReconcileEvery int
	SessionRetries int
}

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AddConfigPath(".")
	if homeDir, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(homeDir)
	}
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		log.Printf("Warning: config file not found: %v. Falling back to environment variables only.", err)
	}

	config := &Config{
		Server: ServerConfig{
			Port:        viper.GetString("SERVER_PORT"),
			Host:        viper.GetString("SERVER_HOST"),
			Environment: viper.GetString("ENVIRONMENT"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			DBName:   viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
		},
		Admin: AdminConfig{
			Username:     viper.GetString("ADMIN_USERNAME"),
			PasswordHash: viper.GetString("ADMIN_PASSWORD_HASH"),
			JWTSecret:    viper.GetString("JWT_SECRET"),
			TokenExpiry:  viper.GetDuration("JWT_EXPIRY"),
		},
		Wialon: WialonConfig{
			BaseURL: viper.GetString("WIALON_HOST"),
			Token:   viper.GetString("WIALON_TOKEN"),
			Enabled: viper.GetBool("WIALON_ENABLED"),
		},
		Cesar: CesarConfig{
			BaseURL:  viper.GetString("CESAR_HOST"),
			Username: viper.GetString("CESAR_USERNAME"),
			Password: viper.GetString("CESAR_PASSWORD"),
			Enabled:  viper.GetBool("CESAR_ENABLED"),
		},
		Axenta: AxentaConfig{
			BaseURL:  viper.GetString("AXENTA_HOST"),
			Username: viper.GetString("AXENTA_USERNAME"),
			Password: viper.GetString("AXENTA_PASSWORD"),
			Enabled:  viper.GetBool("AXENTA_ENABLED"),
		},
		Sync: SyncConfig{
			PollInterval:   viper.GetDuration("SYNC_POLL_INTERVAL"),
			IdleBackoff:    viper.GetDuration("SYNC_IDLE_BACKOFF"),
			ErrorBackoff:   viper.GetDuration("SYNC_ERROR_BACKOFF"),
			RequestTimeout: viper.GetDuration("SYNC_REQUEST_TIMEOUT"),
			HistoryWindow:  viper.GetDuration("SYNC_HISTORY_WINDOW"),
			ReconcileEvery: viper.GetInt("SYNC_RECONCILE_EVERY"),
			SessionRetries: viper.GetInt("SYNC_SESSION_RETRIES"),
		},
	}

	if err := utils.ValidateStruct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func setDefaults() {
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("JWT_EXPIRY", "12h")
	viper.SetDefault("WIALON_ENABLED", true)
	viper.SetDefault("CESAR_ENABLED", true)
	viper.SetDefault("AXENTA_ENABLED", true)
	viper.SetDefault("SYNC_POLL_INTERVAL", "60s")
	viper.SetDefault("SYNC_IDLE_BACKOFF", "30s")
	viper.SetDefault("SYNC_ERROR_BACKOFF", "5m")
	viper.SetDefault("SYNC_REQUEST_TIMEOUT", "30s")
	viper.SetDefault("SYNC_HISTORY_WINDOW", "15m")
	viper.SetDefault("SYNC_RECONCILE_EVERY", 5)
	viper.SetDefault("SYNC_SESSION_RETRIES", 1)
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}
