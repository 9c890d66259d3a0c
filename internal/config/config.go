// Package config provides centralized configuration management for the application.
// Settings come from environment variables, an optional prechart2db.yaml file
// and bound command-line flags, with sensible defaults. Everything is
// validated on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"

	"github.com/JonMunkholm/PreChart2DB/internal/dbsync"
)

// Config holds all application configuration.
type Config struct {
	App           AppConfig
	Database      DatabaseConfig
	Server        ServerConfig
	Upload        UploadConfig
	Rate          RateLimitConfig
	Security      SecurityConfig
	Session       SessionConfig
	Visualization VisualizationConfig
	Logging       LoggingConfig
}

// AppConfig holds application metadata shown by the front-ends.
type AppConfig struct {
	Name        string `env:"APP_NAME" default:"PreChart2DB"`
	Title       string `env:"APP_TITLE" default:"Data preprocessing and DB loading"`
	Version     string `env:"APP_VERSION" default:"1.0.0"`
	Description string `env:"APP_DESCRIPTION" default:"Loads CSV/Excel files into a database and analyzes the data."`
}

// DatabaseConfig holds the target database connection settings.
type DatabaseConfig struct {
	// Driver is mysql, postgres or sqlite (default: mysql)
	Driver string `env:"DB_DRIVER" default:"mysql"`

	Host string `env:"DB_HOST" default:"127.0.0.1"`
	Port int    `env:"DB_PORT" default:"3306"`
	User string `env:"DB_USER" default:"root"`

	// Password falls back to the OS keyring (see StorePassword), then the default.
	Password string `env:"DB_PASSWORD" keyring:"true" default:"0000"`

	Name    string `env:"DB_NAME" envAlt:"DB_DATABASE" default:"soloDB"`
	Charset string `env:"DB_CHARSET" default:"utf8"`

	// DataDir holds database files for the sqlite driver (default: data)
	DataDir string `env:"DB_DATA_DIR" default:"data"`

	// IdentityColumn names the auto-increment key of created tables (default: id)
	IdentityColumn string `env:"DB_IDENTITY_COLUMN" default:"id"`

	// BatchSize is the number of rows per INSERT statement (default: 500)
	BatchSize int `env:"DB_BATCH_SIZE" default:"500"`

	// Timeout bounds a single overwrite or append (default: 10m)
	Timeout time.Duration `env:"DB_TIMEOUT" default:"10m"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8800)
	Port int `env:"SERVER_PORT" default:"8800"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 10m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"10m"`
}

// UploadConfig holds file loading and write scheduling settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 100MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"104857600"`

	// MaxConcurrent is the maximum number of database writes at once (default: 2)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"2"`

	// MaxWaitTime is how long a write waits for a free slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 300)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"300"`

	// UploadLimit is requests per minute for upload and write endpoints (default: 20)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// SessionConfig holds web session settings.
type SessionConfig struct {
	// IdleTimeout drops sessions unused for this long (default: 2h)
	IdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" default:"2h"`

	CookieName string `env:"SESSION_COOKIE_NAME" default:"prechart2db_session"`
}

// VisualizationConfig holds analysis display limits.
type VisualizationConfig struct {
	// TopN is the number of categories in value count charts (default: 20)
	TopN int `env:"VIS_TOP_N" default:"20"`

	// HeadRows is the number of preview rows (default: 5)
	HeadRows int `env:"VIS_HEAD_ROWS" default:"5"`

	// UniqueLimit caps the unique values listed for a column (default: 50)
	UniqueLimit int `env:"VIS_UNIQUE_LIMIT" default:"50"`

	HistogramBins int `env:"VIS_HISTOGRAM_BINS" default:"20"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Conn returns the database settings as a dbsync connection config.
func (c DatabaseConfig) Conn() dbsync.ConnConfig {
	return dbsync.ConnConfig{
		Driver:   c.Driver,
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		Database: c.Name,
		Charset:  c.Charset,
		DataDir:  c.DataDir,
	}
}

// ManagerOptions returns the dbsync options implied by the settings.
func (c DatabaseConfig) ManagerOptions() []dbsync.Option {
	return []dbsync.Option{
		dbsync.WithBatchSize(c.BatchSize),
		dbsync.WithIdentityColumn(c.IdentityColumn),
	}
}
