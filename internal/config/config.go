package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPrefix              = "PICORA"
	defaultHTTPAddress     = "0.0.0.0:8080"
	defaultDatabasePath    = "picora.db"
	defaultLogLevel        = "info"
	defaultTimezone        = "Local"
	defaultPhotosDirectory = "photos"
	defaultExportDirectory = "exports"
	defaultTokenTTLMinutes = 720
	defaultAllowedOrigins  = "*"
)

// AppConfig captures runtime configuration for the booking desk.
type AppConfig struct {
	HTTPAddress     string
	DatabasePath    string
	LogLevel        string
	Location        *time.Location
	PhotosDirectory string
	ExportDirectory string
	ExportSchedule  string
	SigningSecret   string
	OperatorPIN     string
	TokenTTL        time.Duration
	AllowedOrigins  []string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.allowed_origins", defaultAllowedOrigins)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("timezone", defaultTimezone)
	configViper.SetDefault("photos.dir", defaultPhotosDirectory)
	configViper.SetDefault("export.dir", defaultExportDirectory)
	configViper.SetDefault("export.schedule", "")
	configViper.SetDefault("token.ttl_minutes", defaultTokenTTLMinutes)
}

// LoadEnvFiles reads KEY=VALUE pairs from the given dotenv files into the process
// environment without overriding variables that are already set. Missing files are ignored.
func LoadEnvFiles(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	timezone := strings.TrimSpace(configViper.GetString("timezone"))
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return AppConfig{}, fmt.Errorf("timezone %q: %w", timezone, err)
	}

	cfg := AppConfig{
		HTTPAddress:     configViper.GetString("http.address"),
		DatabasePath:    configViper.GetString("database.path"),
		LogLevel:        configViper.GetString("log.level"),
		Location:        location,
		PhotosDirectory: configViper.GetString("photos.dir"),
		ExportDirectory: configViper.GetString("export.dir"),
		ExportSchedule:  strings.TrimSpace(configViper.GetString("export.schedule")),
		SigningSecret:   configViper.GetString("auth.signing_secret"),
		OperatorPIN:     configViper.GetString("auth.operator_pin"),
		TokenTTL:        time.Duration(configViper.GetInt("token.ttl_minutes")) * time.Minute,
		AllowedOrigins:  splitList(configViper.GetString("http.allowed_origins")),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// LoadStorage parses only the settings needed by offline commands that touch the
// database, so they run without auth secrets.
func LoadStorage(configViper *viper.Viper) (AppConfig, error) {
	timezone := strings.TrimSpace(configViper.GetString("timezone"))
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return AppConfig{}, fmt.Errorf("timezone %q: %w", timezone, err)
	}
	cfg := AppConfig{
		DatabasePath:    configViper.GetString("database.path"),
		LogLevel:        configViper.GetString("log.level"),
		Location:        location,
		ExportDirectory: configViper.GetString("export.dir"),
	}
	if strings.TrimSpace(cfg.DatabasePath) == "" {
		return AppConfig{}, fmt.Errorf("database.path is required")
	}
	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.OperatorPIN) == "" {
		return fmt.Errorf("auth.operator_pin is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.PhotosDirectory) == "" {
		return fmt.Errorf("photos.dir is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token.ttl_minutes must be positive")
	}
	if c.ExportSchedule != "" && strings.TrimSpace(c.ExportDirectory) == "" {
		return fmt.Errorf("export.dir is required when export.schedule is set")
	}
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
