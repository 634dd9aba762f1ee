package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Import   ImportConfig   `mapstructure:"import"`
	Scoring  ScoringConfig  `mapstructure:"scoring"`
	Worker   WorkerConfig   `mapstructure:"worker"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type ImportConfig struct {
	// ProgressEvery controls how often the run registry is refreshed
	// while the importer walks a batch.
	ProgressEvery int `mapstructure:"progress_every"`
	// MaxReportErrors caps the error list in the batch report.
	MaxReportErrors int `mapstructure:"max_report_errors"`
	// RunTTL is how long finished runs stay pollable.
	RunTTL time.Duration `mapstructure:"run_ttl"`
}

type ScoringConfig struct {
	// ModelPath points at the JSON model artifact (feature contract,
	// encoders, coefficients, threshold).
	ModelPath string `mapstructure:"model_path"`
	// Threshold overrides the artifact's threshold when > 0.
	Threshold float64 `mapstructure:"threshold"`
	Enabled   bool    `mapstructure:"enabled"`
}

type WorkerConfig struct {
	// DropDir is the directory the import worker scans for source
	// file sets.
	DropDir string `mapstructure:"drop_dir"`
	// ScanInterval is how often the drop directory is scanned.
	ScanInterval time.Duration `mapstructure:"scan_interval"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Override with environment variables if present
	if host := os.Getenv("DB_HOST"); host != "" {
		config.Database.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		config.Database.Port, _ = strconv.Atoi(port)
	}
	if pass := os.Getenv("DB_PASSWORD"); pass != "" {
		config.Database.Password = pass
	}

	applyDefaults(&config)

	return &config, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Import.ProgressEvery <= 0 {
		cfg.Import.ProgressEvery = 50
	}
	if cfg.Import.MaxReportErrors <= 0 {
		cfg.Import.MaxReportErrors = 50
	}
	if cfg.Import.RunTTL <= 0 {
		cfg.Import.RunTTL = 24 * time.Hour
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		cfg.Server.MaxUploadBytes = 64 << 20
	}
	if cfg.Worker.DropDir == "" {
		cfg.Worker.DropDir = "./dropbox"
	}
	if cfg.Worker.ScanInterval <= 0 {
		cfg.Worker.ScanInterval = 30 * time.Second
	}
}
