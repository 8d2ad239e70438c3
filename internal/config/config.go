// Package config loads TaleForge configuration from command-line flags, environment
// variables and .env files.
package config

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Listing modes.
const (
	ListingModeClient = "client"
	ListingModeServer = "server"
)

// Config holds the application configuration.
type Config struct {
	App    AppConfig
	Logger LoggerConfig
	Client ClientConfig
	Server ServerConfig
	Auth   AuthConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ClientConfig holds settings for the client core and the CLI.
type ClientConfig struct {
	BaseURL         string // API root, e.g. http://localhost:8080
	CredentialsPath string // sqlite file holding the persisted token
	// RequestTimeout bounds each API call. Zero leaves the transport default in place.
	RequestTimeout time.Duration
	// RequestsPerSecond throttles outbound calls per host. Zero disables throttling.
	RequestsPerSecond float64
	// CountSelfViews controls whether an author opening their own story increments views.
	CountSelfViews bool
	ListingMode    string // client or server
	PageSize       int
	TopTags        int
}

// ServerConfig holds settings for the reference API server.
type ServerConfig struct {
	Port               string
	DataPath           string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	AllowedOrigins     []string
	LoginRatePerMinute int
	// Name identifies the server to clients browsing the local network.
	Name string
	// Advertise announces the server over mDNS.
	Advertise bool
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	// PASETO v4 symmetric key for access tokens (32 bytes), set by auth.LoadOrGenerateKey.
	AccessTokenKey      []byte
	AccessTokenDuration time.Duration
}

// Load builds the configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
//
// args excludes the program name. The positional arguments left after flag parsing are
// returned so CLI subcommands can consume them.
func Load(args []string) (*Config, []string, error) {
	fs := flag.NewFlagSet("taleforge", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	baseURL := fs.String("api-url", "", "API base URL (default: http://localhost:8080)")
	credentialsPath := fs.String("credentials", "", "Path to the credential database")
	requestTimeout := fs.String("request-timeout", "", "Per-request timeout, 0 for transport default")
	requestRate := fs.String("request-rate", "", "Max outbound requests per second, 0 for unlimited")
	countSelfViews := fs.String("count-self-views", "", "Count views of an author's own story (default: true)")
	listingMode := fs.String("listing-mode", "", "Listing mode: client or server (default: client)")
	pageSize := fs.String("page-size", "", "Default listing page size (default: 9)")
	topTags := fs.String("top-tags", "", "Number of popular tags to compute (default: 6)")

	port := fs.String("port", "", "Server port (default: 8080)")
	dataPath := fs.String("data-path", "", "Server data directory")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	origins := fs.String("allowed-origins", "", "Comma separated CORS origins")
	loginRate := fs.String("login-rate", "", "Login attempts per minute per IP (default: 20)")
	serverName := fs.String("server-name", "", "Name announced on the local network (default: TaleForge)")
	advertise := fs.String("mdns", "", "Announce the server over mDNS (default: false)")
	accessTokenDuration := fs.String("access-token-duration", "", "Access token lifetime (default: 24h)")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	// Missing .env files are fine; existing environment variables always win.
	_ = godotenv.Load(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Client: ClientConfig{
			BaseURL:         strings.TrimRight(getConfigValue(*baseURL, "API_URL", "http://localhost:8080"), "/"),
			CredentialsPath: getConfigValue(*credentialsPath, "CREDENTIALS_PATH", ""),
			CountSelfViews:  getBoolConfigValue(*countSelfViews, "COUNT_SELF_VIEWS", true),
			ListingMode:     getConfigValue(*listingMode, "LISTING_MODE", ListingModeClient),
			PageSize:        getIntConfigValue(*pageSize, "PAGE_SIZE", 9),
			TopTags:         getIntConfigValue(*topTags, "TOP_TAGS", 6),
		},
		Server: ServerConfig{
			Port:               getConfigValue(*port, "SERVER_PORT", "8080"),
			DataPath:           getConfigValue(*dataPath, "DATA_PATH", ""),
			AllowedOrigins:     splitList(getConfigValue(*origins, "ALLOWED_ORIGINS", "http://localhost:3000")),
			LoginRatePerMinute: getIntConfigValue(*loginRate, "LOGIN_RATE_PER_MINUTE", 20),
			Name:               getConfigValue(*serverName, "SERVER_NAME", "TaleForge"),
			Advertise:          getBoolConfigValue(*advertise, "MDNS_ADVERTISE", false),
		},
	}

	var err error
	if cfg.Client.RequestTimeout, err = parseDuration(*requestTimeout, "REQUEST_TIMEOUT", "0s"); err != nil {
		return nil, nil, err
	}
	if cfg.Server.ReadTimeout, err = parseDuration(*readTimeout, "SERVER_READ_TIMEOUT", "15s"); err != nil {
		return nil, nil, err
	}
	if cfg.Server.WriteTimeout, err = parseDuration(*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s"); err != nil {
		return nil, nil, err
	}
	if cfg.Server.IdleTimeout, err = parseDuration(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"); err != nil {
		return nil, nil, err
	}
	if cfg.Auth.AccessTokenDuration, err = parseDuration(*accessTokenDuration, "ACCESS_TOKEN_DURATION", "24h"); err != nil {
		return nil, nil, err
	}

	rateStr := getConfigValue(*requestRate, "REQUEST_RATE", "0")
	if cfg.Client.RequestsPerSecond, err = strconv.ParseFloat(rateStr, 64); err != nil {
		return nil, nil, fmt.Errorf("invalid request rate %q: %w", rateStr, err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, fs.Args(), nil
}

// Validate checks that all config values are present and valid.
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

	u, err := url.Parse(c.Client.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid API URL: %q", c.Client.BaseURL)
	}

	if c.Client.ListingMode != ListingModeClient && c.Client.ListingMode != ListingModeServer {
		return fmt.Errorf("invalid listing mode: %s (must be client or server)", c.Client.ListingMode)
	}
	if c.Client.PageSize < 1 || c.Client.PageSize > 100 {
		return fmt.Errorf("page size must be between 1 and 100, got %d", c.Client.PageSize)
	}
	if c.Client.TopTags < 0 {
		return errors.New("top tags cannot be negative")
	}
	if c.Client.RequestsPerSecond < 0 {
		return errors.New("request rate cannot be negative")
	}
	if c.Client.RequestTimeout < 0 {
		return errors.New("request timeout cannot be negative")
	}

	if c.Server.LoginRatePerMinute < 1 {
		return errors.New("login rate must be at least 1 per minute")
	}

	return nil
}

// expandPaths fills in and absolutizes the data and credential locations.
func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	base := filepath.Join(homeDir, ".taleforge")

	if c.Server.DataPath, err = expandPath(c.Server.DataPath, filepath.Join(base, "server")); err != nil {
		return fmt.Errorf("invalid data path: %w", err)
	}
	if c.Client.CredentialsPath, err = expandPath(c.Client.CredentialsPath, filepath.Join(base, "credentials.db")); err != nil {
		return fmt.Errorf("invalid credentials path: %w", err)
	}
	return nil
}

// expandPath expands ~ and makes the path absolute. Empty paths take defaultPath.
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

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue accepts "true", "1" and "yes" (case-insensitive) as true.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return v
}

func parseDuration(flagValue, envKey, defaultValue string) (time.Duration, error) {
	s := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", strings.ToLower(envKey), s, err)
	}
	return d, nil
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
