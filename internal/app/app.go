// Package app wires the filing agent together: configuration, storage,
// the sent-folder watcher, and the terminal UI.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/mail-filing/internal/auth"
	"github.com/nhle/mail-filing/internal/casedoc"
	"github.com/nhle/mail-filing/internal/credential"
	"github.com/nhle/mail-filing/internal/filedcache"
	"github.com/nhle/mail-filing/internal/filing"
	"github.com/nhle/mail-filing/internal/identity"
	"github.com/nhle/mail-filing/internal/intent"
	"github.com/nhle/mail-filing/internal/keys"
	"github.com/nhle/mail-filing/internal/kvstore"
	"github.com/nhle/mail-filing/internal/mailhost"
	"github.com/nhle/mail-filing/internal/model"
	"github.com/nhle/mail-filing/internal/store"
	"github.com/nhle/mail-filing/internal/ui"
	"github.com/nhle/mail-filing/internal/ui/setup"
	"github.com/nhle/mail-filing/internal/ui/status"
	"github.com/nhle/mail-filing/internal/unfiled"
	"github.com/nhle/mail-filing/internal/watch"
	"github.com/nhle/mail-filing/internal/workspace"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewSetup ViewState = iota
	ViewStatus
)

// Model is the root Bubble Tea model that manages view routing, layout,
// and the lifecycle of the sent-folder watcher.
type Model struct {
	currentView ViewState
	layout      ui.Layout
	keys        *keys.KeyMap

	cfg        *model.AppConfig
	configPath string

	store    *store.SQLiteStore
	fallback *kvstore.Fallback
	tokens   *auth.KeyringProvider

	watcher        *watch.Watcher
	unfiledCounter *unfiled.Counter
	statusView     status.Model
	setupView      setup.Model

	ready bool
}

// New builds the application: it loads configuration, opens the local
// store, and decides whether to start in setup or watching mode.
func New(configPath string) (*Model, error) {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	dataDir := filepath.Dir(configPath)

	s, err := store.NewSQLiteStore(filepath.Join(dataDir, "filings.db"))
	if err != nil {
		return nil, fmt.Errorf("opening local store: %w", err)
	}

	settings, err := kvstore.NewSettingsBackend(filepath.Join(dataDir, "state.yaml"))
	if err != nil {
		return nil, fmt.Errorf("opening settings store: %w", err)
	}

	tokens := auth.NewKeyringProvider()

	m := &Model{
		currentView: ViewStatus,
		keys:        keys.Default(),
		cfg:         cfg,
		configPath:  configPath,
		store:       s,
		fallback:    kvstore.NewFallback(s, settings),
		tokens:      tokens,
	}

	if m.needsSetup() {
		m.currentView = ViewSetup
		m.setupView = setup.New(cfg, configPath, tokens, 80, 24)
	} else {
		m.watcher = m.buildWatcher(cfg)
		m.statusView = status.New(s, m.watcher, 80, 24)
	}

	return m, nil
}

// Run starts the Bubble Tea program and blocks until it exits.
func (m *Model) Run() error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running UI: %w", err)
	}
	return nil
}

// Close releases the local store.
func (m *Model) Close() error {
	if m.watcher != nil {
		m.watcher.Stop()
	}
	return m.store.Close()
}

// needsSetup reports whether the agent lacks the settings required to
// watch and file mail.
func (m *Model) needsSetup() bool {
	if m.cfg.Workspace.Host == "" || m.cfg.Mailbox.Host == "" {
		return true
	}
	if _, err := m.tokens.Token(); err != nil {
		return true
	}
	if password, err := credential.Get(setup.MailboxPasswordKey); err != nil || password == "" {
		return true
	}
	return false
}

// buildWatcher assembles the filing pipeline and the sent-folder watcher
// from the current configuration.
func (m *Model) buildWatcher(cfg *model.AppConfig) *watch.Watcher {
	workspaceResolver := workspace.NewResolver(cfg.Workspace)
	cache := filedcache.New(m.fallback)

	orchestrator := filing.New(filing.Config{
		Keys:      identity.NewResolver(),
		Intents:   intent.NewRepository(m.fallback),
		Docs:      casedoc.NewRepository(m.tokens, workspaceResolver),
		Cache:     cache,
		History:   m.store,
		Tokens:    m.tokens,
		Workspace: workspaceResolver,
		Notifier:  filing.NewStoreNotifier(m.store),

		StageTimeout:  time.Duration(cfg.Filing.StageTimeoutSec) * time.Second,
		UploadTimeout: time.Duration(cfg.Filing.UploadTimeoutSec) * time.Second,
	})

	password, err := credential.Get(setup.MailboxPasswordKey)
	if err != nil {
		password = ""
	}
	mailbox := mailhost.NewIMAPMailbox(cfg.Mailbox, password)
	m.unfiledCounter = unfiled.NewCounter(mailbox, cache)

	return watch.New(
		mailbox,
		orchestrator,
		m.fallback,
		time.Duration(cfg.Mailbox.PollIntervalSec)*time.Second,
	)
}

// Init starts the active view, and the watcher when configured.
func (m *Model) Init() tea.Cmd {
	if m.currentView == ViewSetup {
		return m.setupView.Init()
	}
	return tea.Batch(m.statusView.Init(), m.watcher.Start(), m.loadUnfiledCounts())
}

// loadUnfiledCounts returns a command that recomputes the unfiled-mail
// counters over the last week of sent mail.
func (m *Model) loadUnfiledCounts() tea.Cmd {
	counter := m.unfiledCounter
	if counter == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		counts, err := counter.Count(ctx, 7*24*time.Hour, 50)
		if err != nil {
			return status.CountsMsg{}
		}
		return status.CountsMsg{Counts: counts, OK: true}
	}
}

// Update handles messages and dispatches to the active view.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.statusView.SetSize(msg.Width, m.layout.ContentHeight())
		m.setupView.SetSize(msg.Width, m.layout.ContentHeight())
		// Forward to the active view so huh forms can calculate layout.
		return m.updateActiveView(msg)

	case setup.DoneMsg:
		// Setup finished; rebuild the pipeline with the new settings and
		// start watching.
		m.cfg = msg.Config
		m.watcher = m.buildWatcher(m.cfg)
		m.statusView = status.New(m.store, m.watcher, m.layout.Width, m.layout.ContentHeight())
		m.currentView = ViewStatus
		return m, tea.Batch(m.statusView.Init(), m.watcher.Start(), m.loadUnfiledCounts())

	case watch.FilingResultMsg:
		var cmd tea.Cmd
		m.statusView, cmd = m.statusView.Update(msg)
		return m, tea.Batch(cmd, m.watcher.WaitForNextResult(), m.loadUnfiledCounts())

	case tea.KeyMsg:
		if m.currentView != ViewStatus {
			break
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.watcher.Stop()
			return m, tea.Quit

		case key.Matches(msg, m.keys.Refresh):
			return m, tea.Batch(m.watcher.Refresh(), m.loadUnfiledCounts())

		case key.Matches(msg, m.keys.Notifications):
			return m, m.statusView.MarkNotificationsRead()
		}
	}

	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
func (m *Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewSetup:
		m.setupView, cmd = m.setupView.Update(msg)
	case ViewStatus:
		m.statusView, cmd = m.statusView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m *Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	if m.currentView == ViewSetup {
		return m.setupView.View()
	}

	header := m.layout.RenderHeader("Mail Filing", m.statusView.StatusLabel())
	content := m.statusView.View()
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m *Model) keyHints() string {
	var parts []string
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " | ")
}
