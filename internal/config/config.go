// Package config loads server configuration from flags, environment, a .env
// file, an optional YAML file and built-in defaults, in that order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. CURATOR_SERVER_PORT.
const EnvPrefix = "CURATOR"

// Config holds the application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logger   LoggerConfig   `mapstructure:"log"`
	Data     DataConfig     `mapstructure:"data"`
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	YouTube  YouTubeConfig  `mapstructure:"youtube"`
	Search   SearchConfig   `mapstructure:"search"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Database DatabaseConfig `mapstructure:"database"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
	MCP      MCPConfig      `mapstructure:"mcp"`
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string `mapstructure:"env"`
	Name        string `mapstructure:"name"`
}

// IsDevelopment reports whether the server runs in development mode.
func (a AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string `mapstructure:"level"`
}

// DataConfig holds local storage configuration.
type DataConfig struct {
	// BasePath holds the sqlite file, the analysis cache, the video index
	// and the auth key unless overridden.
	BasePath string `mapstructure:"path"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AuthConfig holds token configuration.
type AuthConfig struct {
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
	// KeyPath defaults to {data}/auth.key.
	KeyPath string `mapstructure:"key_path"`
	// AuthRPS limits login and register attempts per client IP.
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// YouTubeConfig holds search provider configuration.
type YouTubeConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	Endpoint string        `mapstructure:"endpoint"`
	RPS      float64       `mapstructure:"rps"`
	Burst    int           `mapstructure:"burst"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SearchConfig holds the reactive search windows and defaults.
type SearchConfig struct {
	CategoryDebounce  time.Duration `mapstructure:"category_debounce"`
	QueryDebounce     time.Duration `mapstructure:"query_debounce"`
	DefaultMaxResults int           `mapstructure:"default_max_results"`
}

// AnalysisConfig holds analysis cache configuration.
type AnalysisConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// DatabaseConfig selects the relational backend.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	URL    string `mapstructure:"url"`
}

// RealtimeConfig tunes the change feed hub and SSE stream.
type RealtimeConfig struct {
	SubscriberBuffer int           `mapstructure:"subscriber_buffer"`
	Heartbeat        time.Duration `mapstructure:"heartbeat"`
}

// MCPConfig holds the credentials the MCP server signs in with.
type MCPConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type option struct {
	key   string
	flag  string
	def   any
	usage string
}

var options = []option{
	{"app.env", "env", "development", "Environment (development, staging, production)"},
	{"app.name", "name", "Curator", "Server name"},
	{"log.level", "log-level", "info", "Log level (debug, info, warn, error)"},
	{"data.path", "data-path", "", "Base path for local data (default: ~/Curator)"},
	{"server.host", "host", "", "Listen host"},
	{"server.port", "port", 8080, "Listen port"},
	{"server.read_timeout", "read-timeout", 15 * time.Second, "HTTP read timeout"},
	{"server.write_timeout", "write-timeout", time.Duration(0), "HTTP write timeout (0 keeps SSE streams open)"},
	{"server.idle_timeout", "idle-timeout", 60 * time.Second, "HTTP idle timeout"},
	{"server.cors_origins", "cors-origins", []string{"*"}, "Allowed CORS origins"},
	{"auth.access_token_ttl", "access-token-ttl", 24 * time.Hour, "Access token lifetime"},
	{"auth.key_path", "auth-key-path", "", "Path to the token key file (default: {data}/auth.key)"},
	{"auth.rps", "auth-rps", 1.0, "Login/register requests per second per client"},
	{"auth.burst", "auth-burst", 5, "Login/register burst per client"},
	{"youtube.api_key", "youtube-api-key", "", "YouTube Data API key"},
	{"youtube.endpoint", "youtube-endpoint", "", "YouTube API endpoint override"},
	{"youtube.rps", "youtube-rps", 5.0, "YouTube requests per second per endpoint"},
	{"youtube.burst", "youtube-burst", 10, "YouTube request burst per endpoint"},
	{"youtube.timeout", "youtube-timeout", 10 * time.Second, "YouTube request timeout"},
	{"search.category_debounce", "category-debounce", 500 * time.Millisecond, "Refetch delay after a category change"},
	{"search.query_debounce", "query-debounce", 800 * time.Millisecond, "Search delay after a query change"},
	{"search.default_max_results", "default-max-results", 25, "Results per page"},
	{"analysis.ttl", "analysis-ttl", 7 * 24 * time.Hour, "Cached analysis lifetime"},
	{"database.driver", "db-driver", DriverSQLite, "Relational backend (sqlite, postgres)"},
	{"database.url", "db-url", "", "Postgres connection URL"},
	{"realtime.subscriber_buffer", "subscriber-buffer", 100, "Per-subscription change buffer"},
	{"realtime.heartbeat", "sse-heartbeat", 30 * time.Second, "SSE heartbeat interval"},
	{"mcp.email", "mcp-email", "", "Account email for the MCP server"},
	{"mcp.password", "mcp-password", "", "Account password for the MCP server"},
}

// NewFlagSet declares every configuration flag plus --config and --env-file.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "Path to a YAML config file")
	fs.String("env-file", ".env", "Path to .env file")
	for _, o := range options {
		switch d := o.def.(type) {
		case string:
			fs.String(o.flag, d, o.usage)
		case int:
			fs.Int(o.flag, d, o.usage)
		case float64:
			fs.Float64(o.flag, d, o.usage)
		case time.Duration:
			fs.Duration(o.flag, d, o.usage)
		case []string:
			fs.StringSlice(o.flag, d, o.usage)
		}
	}
	return fs
}

// Load parses args and builds the configuration.
func Load(args []string) (*Config, error) {
	fs := NewFlagSet("curator")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return LoadFlags(fs)
}

// LoadFlags builds the configuration from an already parsed flag set created
// by NewFlagSet.
func LoadFlags(fs *pflag.FlagSet) (*Config, error) {
	envFile, _ := fs.GetString("env-file")
	// A missing .env file is fine; variables already set win over it.
	_ = godotenv.Load(envFile)

	v := viper.New()
	for _, o := range options {
		v.SetDefault(o.key, o.def)
		if err := v.BindPFlag(o.key, fs.Lookup(o.flag)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", o.flag, err)
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, fs); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func readConfigFile(v *viper.Viper, fs *pflag.FlagSet) error {
	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
		return nil
	}

	v.SetConfigName("curator")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if dataPath := v.GetString("data.path"); dataPath != "" {
		v.AddConfigPath(dataPath)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config file: %w", err)
		}
	}
	return nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.BasePath == "" {
		return errors.New("data path cannot be empty after expansion")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return errors.New("access token ttl must be positive")
	}

	if c.YouTube.APIKey == "" && !c.App.IsDevelopment() {
		return errors.New("youtube api key is required outside development")
	}

	switch c.Database.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Database.URL == "" {
			return errors.New("database url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid database driver: %q (must be sqlite or postgres)", c.Database.Driver)
	}

	if c.Search.CategoryDebounce <= 0 || c.Search.QueryDebounce <= 0 {
		return errors.New("search debounce windows must be positive")
	}
	if c.Search.DefaultMaxResults < 1 || c.Search.DefaultMaxResults > 50 {
		return fmt.Errorf("default max results must be between 1 and 50, got %d", c.Search.DefaultMaxResults)
	}
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is returned unchanged.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}
	return filepath.Clean(path), nil
}

func (c *Config) expandPaths() error {
	defaultData := ""
	if c.Data.BasePath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		defaultData = filepath.Join(homeDir, "Curator")
	}

	var err error
	if c.Data.BasePath, err = expandPath(c.Data.BasePath, defaultData); err != nil {
		return fmt.Errorf("invalid data path: %w", err)
	}
	if c.Auth.KeyPath, err = expandPath(c.Auth.KeyPath, filepath.Join(c.Data.BasePath, "auth.key")); err != nil {
		return fmt.Errorf("invalid auth key path: %w", err)
	}
	return nil
}

// SQLitePath is the default relational database file.
func (c *Config) SQLitePath() string {
	return filepath.Join(c.Data.BasePath, "curator.db")
}

// AnalysisPath is the badger directory of the analysis cache.
func (c *Config) AnalysisPath() string {
	return filepath.Join(c.Data.BasePath, "analysis")
}

// IndexPath is the directory holding the video index.
func (c *Config) IndexPath() string {
	return filepath.Join(c.Data.BasePath, "index")
}
