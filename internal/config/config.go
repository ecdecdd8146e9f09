package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DataDirName is the folder created under the user's config directory
const DataDirName = "GradnjaStroski"

// ReportingFileName is the default mirror database file inside the data root
const ReportingFileName = "reporting.db"

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Data      DataConfig
	Logging   LoggingConfig
	Server    ServerConfig
	CORS      CORSConfig
	Security  SecurityConfig
	RateLimit RateLimitConfig
	Backup    BackupConfig
	Reporting ReportingConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Port        int
	// Locale is the BCP 47 tag used for name sorting (default "sl")
	Locale string
}

// DataConfig locates the data root holding data.json and uploads/
type DataConfig struct {
	Root string
}

type LoggingConfig struct {
	Level  string
	Format string
}

type ServerConfig struct {
	ReadTimeout     int
	WriteTimeout    int
	MaxUploadSizeMB int64
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	// AllowedOrigins is a list of allowed origins for CORS requests
	// Use "*" to allow all origins
	AllowedOrigins []string
	// AllowedMethods is a list of allowed HTTP methods
	AllowedMethods []string
	// AllowedHeaders is a list of allowed request headers
	AllowedHeaders []string
	// ExposedHeaders is a list of headers exposed to the client
	ExposedHeaders []string
	// AllowCredentials indicates whether credentials are allowed
	AllowCredentials bool
	// MaxAge is the max age (in seconds) for preflight cache
	MaxAge int
}

// SecurityConfig holds security header configuration
type SecurityConfig struct {
	// EnableHSTS enables HTTP Strict Transport Security header
	EnableHSTS bool
	// HSTSMaxAge is the max age for HSTS in seconds (default: 31536000 = 1 year)
	HSTSMaxAge int
	// HSTSIncludeSubdomains includes subdomains in HSTS
	HSTSIncludeSubdomains bool
	// ContentSecurityPolicy sets the Content-Security-Policy header
	ContentSecurityPolicy string
	// FrameOptions sets the X-Frame-Options header (DENY, SAMEORIGIN, or empty to disable)
	FrameOptions string
	// ContentTypeNosniff enables X-Content-Type-Options: nosniff
	ContentTypeNosniff bool
	// ReferrerPolicy sets the Referrer-Policy header
	ReferrerPolicy string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled bool
	// RequestsPerMinute is the rate limit per client IP
	RequestsPerMinute int
	// WhitelistIPs is a list of IPs that bypass rate limiting
	WhitelistIPs []string
	// WhitelistPaths is a list of paths that bypass rate limiting (e.g., /health)
	WhitelistPaths []string
}

// BackupConfig controls the scheduled backup job
type BackupConfig struct {
	Enabled bool
	// Cron uses the six-field format with seconds
	Cron string
	// Mode selects where backup copies go: "local" or "azure"
	Mode                  string
	LocalDir              string
	Retain                int
	CloudConnectionString string
	CloudContainer        string
}

// ReportingConfig controls the SQLite reporting mirror
type ReportingConfig struct {
	Enabled    bool
	SQLitePath string
	// SyncCron schedules the mirror refresh, six-field format
	SyncCron string
}

// ReadTimeoutDuration returns read timeout as duration
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns write timeout as duration
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables override config file
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Data.Root == "" {
		root, err := DefaultDataRoot()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve data root: %w", err)
		}
		cfg.Data.Root = root
	}

	if cfg.Backup.CloudConnectionString == "" {
		cfg.Backup.CloudConnectionString = v.GetString("AZURE_STORAGE_CONNECTION_STRING")
	}

	if cfg.Reporting.SQLitePath == "" {
		cfg.Reporting.SQLitePath = filepath.Join(cfg.Data.Root, ReportingFileName)
	}

	return &cfg, nil
}

// DefaultDataRoot returns the per-user data directory
func DefaultDataRoot() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, DataDirName), nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "Gradnja Stroski API")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.locale", "sl")

	v.SetDefault("data.root", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	// Server defaults
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 60)
	v.SetDefault("server.maxUploadSizeMB", 50)

	// CORS defaults - the desktop front-end runs on localhost
	v.SetDefault("cors.allowedOrigins", []string{"http://localhost:5173"})
	v.SetDefault("cors.allowedMethods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowedHeaders", []string{"Accept", "Content-Type", "X-Request-ID"})
	v.SetDefault("cors.exposedHeaders", []string{"Content-Disposition", "X-Request-ID", "X-Total-Count"})
	v.SetDefault("cors.allowCredentials", false)
	v.SetDefault("cors.maxAge", 300)

	// Security header defaults
	v.SetDefault("security.enableHSTS", false)
	v.SetDefault("security.hstsMaxAge", 31536000)
	v.SetDefault("security.hstsIncludeSubdomains", true)
	v.SetDefault("security.contentSecurityPolicy", "default-src 'self'")
	v.SetDefault("security.frameOptions", "DENY")
	v.SetDefault("security.contentTypeNosniff", true)
	v.SetDefault("security.referrerPolicy", "strict-origin-when-cross-origin")

	// Rate limiting defaults
	v.SetDefault("rateLimit.enabled", false)
	v.SetDefault("rateLimit.requestsPerMinute", 600)
	v.SetDefault("rateLimit.whitelistIPs", []string{"127.0.0.1", "::1"})
	v.SetDefault("rateLimit.whitelistPaths", []string{"/health", "/health/ready"})

	// Backup defaults - nightly at 02:30
	v.SetDefault("backup.enabled", false)
	v.SetDefault("backup.cron", "0 30 2 * * *")
	v.SetDefault("backup.mode", "local")
	v.SetDefault("backup.localDir", "")
	v.SetDefault("backup.retain", 14)
	v.SetDefault("backup.cloudContainer", "gradnja-backups")

	v.SetDefault("reporting.enabled", true)
	v.SetDefault("reporting.sqlitePath", "")
	v.SetDefault("reporting.syncCron", "0 */15 * * * *")
}
