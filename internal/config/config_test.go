package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:    AppConfig{Environment: "development"},
		Logger: LoggerConfig{Level: "info"},
		Client: ClientConfig{
			BaseURL:     "http://localhost:8080",
			ListingMode: ListingModeClient,
			PageSize:    9,
			TopTags:     6,
		},
		Server: ServerConfig{LoginRatePerMinute: 20},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_AllEnvironments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_ClientSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative url", func(c *Config) { c.Client.BaseURL = "localhost:8080" }},
		{"ftp url", func(c *Config) { c.Client.BaseURL = "ftp://example.com" }},
		{"unknown listing mode", func(c *Config) { c.Client.ListingMode = "hybrid" }},
		{"zero page size", func(c *Config) { c.Client.PageSize = 0 }},
		{"huge page size", func(c *Config) { c.Client.PageSize = 101 }},
		{"negative top tags", func(c *Config) { c.Client.TopTags = -1 }},
		{"negative rate", func(c *Config) { c.Client.RequestsPerSecond = -2 }},
		{"bad log level", func(c *Config) { c.Logger.Level = "verbose" }},
		{"zero login rate", func(c *Config) { c.Server.LoginRatePerMinute = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, rest, err := Load([]string{"-env-file", filepath.Join(t.TempDir(), "missing.env"), "list", "--tag", "fantasy"})
	require.NoError(t, err)

	assert.Equal(t, []string{"list", "--tag", "fantasy"}, rest)
	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "http://localhost:8080", cfg.Client.BaseURL)
	assert.True(t, cfg.Client.CountSelfViews)
	assert.Equal(t, ListingModeClient, cfg.Client.ListingMode)
	assert.Equal(t, 9, cfg.Client.PageSize)
	assert.Equal(t, 6, cfg.Client.TopTags)
	assert.Zero(t, cfg.Client.RequestTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Auth.AccessTokenDuration)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "TaleForge", cfg.Server.Name)
	assert.False(t, cfg.Server.Advertise)
	assert.True(t, filepath.IsAbs(cfg.Client.CredentialsPath))
	assert.Equal(t, "credentials.db", filepath.Base(cfg.Client.CredentialsPath))
}

func TestLoad_Precedence(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("PAGE_SIZE=12\nLISTING_MODE=server\nTOP_TAGS=3\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("PAGE_SIZE")
		_ = os.Unsetenv("LISTING_MODE")
	})

	// Environment beats .env, flags beat environment.
	t.Setenv("TOP_TAGS", "4")
	t.Setenv("API_URL", "http://env.example:9000/")

	cfg, _, err := Load([]string{
		"-env-file", envFile,
		"-api-url", "https://flag.example",
		"-count-self-views", "no",
	})
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Client.PageSize)
	assert.Equal(t, ListingModeServer, cfg.Client.ListingMode)
	assert.Equal(t, 4, cfg.Client.TopTags)
	assert.Equal(t, "https://flag.example", cfg.Client.BaseURL)
	assert.False(t, cfg.Client.CountSelfViews)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, _, err := Load([]string{"-env-file", "", "-request-timeout", "soon"})
	assert.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("~/stories", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "stories"), got)

	got, err = expandPath("", "/default")
	require.NoError(t, err)
	assert.Equal(t, "/default", got)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b "))
	assert.Nil(t, splitList(""))
}
