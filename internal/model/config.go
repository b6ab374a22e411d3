package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// WorkspaceConfig identifies the case-management workspace that filed
// emails are uploaded to.
type WorkspaceConfig struct {
	// Host is the workspace host name (e.g., acme.casefiles.example.com).
	// The filing pipeline refuses to upload while this is unset.
	Host string `mapstructure:"host" yaml:"host"`

	// TenantPrefix is the gateway tenant segment in the public API path.
	TenantPrefix string `mapstructure:"tenant_prefix" yaml:"tenant_prefix"`

	// GatewayURL is the root URL of the API gateway.
	GatewayURL string `mapstructure:"gateway_url" yaml:"gateway_url"`
}

// MailboxConfig holds the IMAP connection settings for the mailbox whose
// sent mail is watched for send events.
type MailboxConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`

	// SentFolder is the mailbox that receives copies of outgoing mail.
	SentFolder string `mapstructure:"sent_folder" yaml:"sent_folder"`

	// PollIntervalSec is how often (in seconds) the sent folder is scanned
	// for newly sent messages.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
}

// FilingConfig holds tuning knobs for the send-time filing pipeline.
type FilingConfig struct {
	// StageTimeoutSec bounds each individual pipeline stage (storage reads,
	// host accessor calls, dedup lookup). Uploads are bounded separately.
	StageTimeoutSec int `mapstructure:"stage_timeout_sec" yaml:"stage_timeout_sec"`

	// UploadTimeoutSec bounds the create/version upload calls.
	UploadTimeoutSec int `mapstructure:"upload_timeout_sec" yaml:"upload_timeout_sec"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Workspace WorkspaceConfig `mapstructure:"workspace" yaml:"workspace"`
	Mailbox   MailboxConfig   `mapstructure:"mailbox" yaml:"mailbox"`
	Filing    FilingConfig    `mapstructure:"filing" yaml:"filing"`
	Display   DisplayConfig   `mapstructure:"display" yaml:"display"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailfiling/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailfiling", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Workspace: WorkspaceConfig{
			TenantPrefix: "t1",
			GatewayURL:   "https://gateway.casefiles.example.com",
		},
		Mailbox: MailboxConfig{
			Port:            "993",
			TLS:             true,
			SentFolder:      "Sent",
			PollIntervalSec: 30,
		},
		Filing: FilingConfig{
			StageTimeoutSec:  10,
			UploadTimeoutSec: 60,
		},
		Display: DisplayConfig{
			Theme: "default",
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
	v.SetDefault("workspace.tenant_prefix", "t1")
	v.SetDefault("workspace.gateway_url", "https://gateway.casefiles.example.com")
	v.SetDefault("mailbox.port", "993")
	v.SetDefault("mailbox.tls", true)
	v.SetDefault("mailbox.sent_folder", "Sent")
	v.SetDefault("mailbox.poll_interval_sec", 30)
	v.SetDefault("filing.stage_timeout_sec", 10)
	v.SetDefault("filing.upload_timeout_sec", 60)
	v.SetDefault("display.theme", "default")

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

	if cfg.Mailbox.PollIntervalSec <= 0 {
		cfg.Mailbox.PollIntervalSec = 30
	}
	if cfg.Filing.StageTimeoutSec <= 0 {
		cfg.Filing.StageTimeoutSec = 10
	}
	if cfg.Filing.UploadTimeoutSec <= 0 {
		cfg.Filing.UploadTimeoutSec = 60
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

	v.Set("workspace", cfg.Workspace)
	v.Set("mailbox", cfg.Mailbox)
	v.Set("filing", cfg.Filing)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
