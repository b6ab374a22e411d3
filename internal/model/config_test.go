package model

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "t1", cfg.Workspace.TenantPrefix)
	assert.Equal(t, "993", cfg.Mailbox.Port)
	assert.True(t, cfg.Mailbox.TLS)
	assert.Equal(t, "Sent", cfg.Mailbox.SentFolder)
	assert.Equal(t, 30, cfg.Mailbox.PollIntervalSec)
	assert.Equal(t, 10, cfg.Filing.StageTimeoutSec)
	assert.Equal(t, 60, cfg.Filing.UploadTimeoutSec)
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	saved := &AppConfig{
		Workspace: WorkspaceConfig{
			Host:         "acme.example.com",
			TenantPrefix: "t2",
			GatewayURL:   "https://gw.example.com",
		},
		Mailbox: MailboxConfig{
			Host:            "imap.example.com",
			Port:            "143",
			Username:        "ann@example.com",
			TLS:             false,
			SentFolder:      "Sent Items",
			PollIntervalSec: 60,
		},
		Filing: FilingConfig{
			StageTimeoutSec:  5,
			UploadTimeoutSec: 30,
		},
		Display: DisplayConfig{Theme: "default"},
	}

	require.NoError(t, SaveConfig(path, saved))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, saved.Workspace, loaded.Workspace)
	assert.Equal(t, "imap.example.com", loaded.Mailbox.Host)
	assert.Equal(t, "Sent Items", loaded.Mailbox.SentFolder)
	assert.Equal(t, 60, loaded.Mailbox.PollIntervalSec)
	assert.Equal(t, 5, loaded.Filing.StageTimeoutSec)
}

func TestLoadConfigRepairsInvalidIntervals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, SaveConfig(path, &AppConfig{
		Workspace: WorkspaceConfig{Host: "h"},
		Mailbox:   MailboxConfig{PollIntervalSec: -5},
		Filing:    FilingConfig{StageTimeoutSec: 0, UploadTimeoutSec: -1},
	}))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Mailbox.PollIntervalSec)
	assert.Equal(t, 10, cfg.Filing.StageTimeoutSec)
	assert.Equal(t, 60, cfg.Filing.UploadTimeoutSec)
}
