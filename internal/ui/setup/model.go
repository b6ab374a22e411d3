package setup

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mail-filing/internal/auth"
	"github.com/nhle/mail-filing/internal/credential"
	"github.com/nhle/mail-filing/internal/model"
	"github.com/nhle/mail-filing/internal/theme"
)

// MailboxPasswordKey is the keyring entry holding the IMAP password for the
// watched mailbox.
const MailboxPasswordKey = "mailbox-password"

// setupMode represents the current state of the setup view.
type setupMode int

const (
	modeForm   setupMode = iota // Collecting settings
	modeSaving                  // Persisting config and credentials
	modeResult                  // Show save outcome
)

// DoneMsg signals that setup finished and the main view should take over.
type DoneMsg struct {
	Config *model.AppConfig
}

// savedMsg is sent after the configuration has been persisted.
type savedMsg struct {
	cfg *model.AppConfig
	err error
}

// Model is the Bubble Tea model for the first-run setup form.
type Model struct {
	mode       setupMode
	configPath string
	tokens     *auth.KeyringProvider

	form *huh.Form

	// Form field values (huh binds to these)
	formGatewayURL string
	formTenant     string
	formHost       string
	formToken      string

	formIMAPHost   string
	formIMAPPort   string
	formUsername   string
	formPassword   string
	formTLS        bool
	formSentFolder string

	saveErr  error
	savedCfg *model.AppConfig

	width, height int
}

// New creates a setup view pre-filled from the current configuration.
func New(cfg *model.AppConfig, configPath string, tokens *auth.KeyringProvider, width, height int) Model {
	m := Model{
		mode:       modeForm,
		configPath: configPath,
		tokens:     tokens,
		width:      width,
		height:     height,

		formGatewayURL: cfg.Workspace.GatewayURL,
		formTenant:     cfg.Workspace.TenantPrefix,
		formHost:       cfg.Workspace.Host,
		formIMAPHost:   cfg.Mailbox.Host,
		formIMAPPort:   cfg.Mailbox.Port,
		formUsername:   cfg.Mailbox.Username,
		formTLS:        cfg.Mailbox.TLS,
		formSentFolder: cfg.Mailbox.SentFolder,
	}
	m.form = m.buildForm()
	return m
}

// Init starts the form.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Update handles messages for the setup view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case savedMsg:
		m.saveErr = msg.err
		m.savedCfg = msg.cfg
		m.mode = modeResult
		return m, nil

	case tea.KeyMsg:
		if m.mode == modeResult {
			switch msg.String() {
			case "enter":
				if m.saveErr != nil {
					m.mode = modeForm
					m.form = m.buildForm()
					return m, m.form.Init()
				}
				cfg := m.savedCfg
				return m, func() tea.Msg { return DoneMsg{Config: cfg} }
			}
			return m, nil
		}
	}

	if m.mode != modeForm || m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.mode = modeSaving
		return m, m.save()
	}
	if m.form.State == huh.StateAborted {
		return m, tea.Quit
	}

	return m, cmd
}

// View renders the setup view.
func (m Model) View() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	switch m.mode {
	case modeSaving:
		return style.Render("Saving configuration...")

	case modeResult:
		if m.saveErr != nil {
			return style.Render(
				theme.ErrorStyle.Render("Setup failed") + "\n\n" +
					m.saveErr.Error() + "\n\n" +
					theme.DimmedStyle.Render("enter edit settings"),
			)
		}
		return style.Render(
			lipgloss.NewStyle().Bold(true).Foreground(theme.ColorGreen).
				Render("Configuration saved") + "\n\n" +
				theme.DimmedStyle.Render("enter start watching"),
		)

	default:
		if m.form == nil {
			return ""
		}
		title := lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorWhite).
			MarginBottom(1).
			Render("Mail Filing Setup")
		return style.Render(title + "\n" + m.form.View())
	}
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Gateway URL").
				Description("Root URL of the case-management API gateway").
				Placeholder("https://gateway.casefiles.example.com").
				Value(&m.formGatewayURL).
				Validate(validateURL),
			huh.NewInput().
				Title("Tenant Prefix").
				Description("Gateway tenant segment (usually t1)").
				Placeholder("t1").
				Value(&m.formTenant).
				Validate(validateRequired("Tenant prefix")),
			huh.NewInput().
				Title("Workspace Host").
				Description("Your case-management workspace host").
				Placeholder("acme.casefiles.example.com").
				Value(&m.formHost).
				Validate(validateRequired("Workspace host")),
			huh.NewInput().
				Title("API Token").
				Description("Case-management API token").
				EchoMode(huh.EchoModePassword).
				Value(&m.formToken).
				Validate(validateRequired("API token")),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("IMAP Host").
				Description("IMAP server of the mailbox to watch").
				Placeholder("imap.example.com").
				Value(&m.formIMAPHost).
				Validate(validateRequired("IMAP host")),
			huh.NewInput().
				Title("IMAP Port").
				Description("IMAP server port (e.g., 993)").
				Placeholder("993").
				Value(&m.formIMAPPort).
				Validate(validatePort),
			huh.NewInput().
				Title("Username").
				Description("Mailbox account username").
				Placeholder("user@example.com").
				Value(&m.formUsername).
				Validate(validateRequired("Username")),
			huh.NewInput().
				Title("Password").
				Description("Mailbox password or app password").
				EchoMode(huh.EchoModePassword).
				Value(&m.formPassword).
				Validate(validateRequired("Password")),
			huh.NewInput().
				Title("Sent Folder").
				Description("Folder that receives copies of outgoing mail").
				Placeholder("Sent").
				Value(&m.formSentFolder).
				Validate(validateRequired("Sent folder")),
			huh.NewConfirm().
				Title("Use TLS").
				Description("Connect to the IMAP server over TLS").
				Affirmative("Yes").
				Negative("No").
				Value(&m.formTLS),
		),
	).WithWidth(m.formWidth())
}

// save persists the configuration file and both keyring credentials.
func (m Model) save() tea.Cmd {
	cfg := &model.AppConfig{
		Workspace: model.WorkspaceConfig{
			Host:         strings.TrimSpace(m.formHost),
			TenantPrefix: strings.TrimSpace(m.formTenant),
			GatewayURL:   strings.TrimRight(strings.TrimSpace(m.formGatewayURL), "/"),
		},
		Mailbox: model.MailboxConfig{
			Host:            strings.TrimSpace(m.formIMAPHost),
			Port:            strings.TrimSpace(m.formIMAPPort),
			Username:        strings.TrimSpace(m.formUsername),
			TLS:             m.formTLS,
			SentFolder:      strings.TrimSpace(m.formSentFolder),
			PollIntervalSec: 30,
		},
		Filing: model.FilingConfig{
			StageTimeoutSec:  10,
			UploadTimeoutSec: 60,
		},
		Display: model.DisplayConfig{Theme: "default"},
	}

	path := m.configPath
	tokens := m.tokens
	token := m.formToken
	password := m.formPassword

	return func() tea.Msg {
		if err := tokens.SetToken(token); err != nil {
			return savedMsg{err: fmt.Errorf("storing API token: %w", err)}
		}
		if err := credential.Set(MailboxPasswordKey, password); err != nil {
			return savedMsg{err: fmt.Errorf("storing mailbox password: %w", err)}
		}
		if err := model.SaveConfig(path, cfg); err != nil {
			return savedMsg{err: err}
		}
		return savedMsg{cfg: cfg}
	}
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

// --- Validators ---

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("URL must include scheme and host (e.g., https://example.com)")
	}
	return nil
}

func validatePort(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("port is required")
	}
	if _, err := strconv.Atoi(s); err != nil {
		return fmt.Errorf("port must be a number")
	}
	return nil
}
