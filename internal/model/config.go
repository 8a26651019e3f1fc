package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Account mode selects which gateway implementation talks to the mailbox.
const (
	AccountModeREST  = "rest"
	AccountModeGmail = "gmail"
	AccountModeIMAP  = "imap"
)

// AccountConfig holds the mailbox connection settings.
type AccountConfig struct {
	// Mode is one of rest, gmail, or imap.
	Mode string `mapstructure:"mode" yaml:"mode"`

	// BackendURL is the root URL of the mail backend (rest mode).
	BackendURL string `mapstructure:"backend_url" yaml:"backend_url"`

	// Email is the account address (gmail and imap modes).
	Email string `mapstructure:"email" yaml:"email"`

	// IMAPHost, IMAPPort, SMTPHost, and SMTPPort configure imap mode.
	// The IMAP/SMTP password is read from the system keyring, never
	// from this file.
	IMAPHost string `mapstructure:"imap_host" yaml:"imap_host"`
	IMAPPort string `mapstructure:"imap_port" yaml:"imap_port"`
	SMTPHost string `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort string `mapstructure:"smtp_port" yaml:"smtp_port"`
	IMAPTLS  bool   `mapstructure:"imap_tls" yaml:"imap_tls"`
}

// SyncConfig controls the background new-mail poll.
type SyncConfig struct {
	// PollIntervalSec is how often (in seconds) to check for new mail.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`

	// PageSize is the number of messages requested per list page.
	PageSize int `mapstructure:"page_size" yaml:"page_size"`
}

// AIConfig holds settings for the AI assistant integration.
type AIConfig struct {
	Model     string `mapstructure:"model" yaml:"model"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// CacheConfig controls the local read-through response cache.
type CacheConfig struct {
	// Path is the SQLite file location; empty keeps the cache in memory.
	Path string `mapstructure:"path" yaml:"path"`

	// ListTTLSec and DetailTTLSec bound how long cached list/search and
	// message-detail responses stay fresh.
	ListTTLSec   int `mapstructure:"list_ttl_sec" yaml:"list_ttl_sec"`
	DetailTTLSec int `mapstructure:"detail_ttl_sec" yaml:"detail_ttl_sec"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Account AccountConfig `mapstructure:"account" yaml:"account"`
	Sync    SyncConfig    `mapstructure:"sync" yaml:"sync"`
	AI      AIConfig      `mapstructure:"ai" yaml:"ai"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailflow/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailflow", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Account: AccountConfig{
			Mode:       AccountModeREST,
			BackendURL: "http://localhost:8000",
			IMAPPort:   "993",
			SMTPPort:   "587",
			IMAPTLS:    true,
		},
		Sync: SyncConfig{
			PollIntervalSec: 10,
			PageSize:        20,
		},
		AI: AIConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 4096,
		},
		Display: DisplayConfig{
			Theme: "default",
		},
		Cache: CacheConfig{
			ListTTLSec:   300,
			DetailTTLSec: 600,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("account.mode", AccountModeREST)
	v.SetDefault("account.backend_url", "http://localhost:8000")
	v.SetDefault("account.imap_port", "993")
	v.SetDefault("account.smtp_port", "587")
	v.SetDefault("account.imap_tls", true)
	v.SetDefault("sync.poll_interval_sec", 10)
	v.SetDefault("sync.page_size", 20)
	v.SetDefault("ai.model", "claude-sonnet-4-20250514")
	v.SetDefault("ai.max_tokens", 4096)
	v.SetDefault("display.theme", "default")
	v.SetDefault("cache.list_ttl_sec", 300)
	v.SetDefault("cache.detail_ttl_sec", 600)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("account", cfg.Account)
	v.Set("sync", cfg.Sync)
	v.Set("ai", cfg.AI)
	v.Set("display", cfg.Display)
	v.Set("cache", cfg.Cache)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
