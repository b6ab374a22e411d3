package status

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mail-filing/internal/model"
	"github.com/nhle/mail-filing/internal/store"
	"github.com/nhle/mail-filing/internal/theme"
	"github.com/nhle/mail-filing/internal/unfiled"
	"github.com/nhle/mail-filing/internal/watch"
)

// CountsMsg carries refreshed unfiled-mail counters.
type CountsMsg struct {
	Counts unfiled.Counts
	OK     bool
}

// historyLimit is how many recent filings the view shows.
const historyLimit = 15

// filingsLoadedMsg carries the refreshed filing history.
type filingsLoadedMsg struct {
	filings []model.Filing
}

// notificationsLoadedMsg carries the current unread notifications.
type notificationsLoadedMsg struct {
	notifications []model.Notification
}

// Model is the agent status view: watcher state, recent filings, and
// unread notifications.
type Model struct {
	store   store.Store
	watcher *watch.Watcher
	spinner spinner.Model

	filings       []model.Filing
	notifications []model.Notification
	lastResult    *watch.FilingResultMsg
	counts        unfiled.Counts
	countsKnown   bool

	width  int
	height int
}

// New creates the status view.
func New(s store.Store, w *watch.Watcher, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorYellow)

	return Model{
		store:   s,
		watcher: w,
		spinner: sp,
		width:   width,
		height:  height,
	}
}

// Init loads the initial history and starts the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadFilings(), m.loadNotifications())
}

// Update handles messages for the status view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case filingsLoadedMsg:
		m.filings = msg.filings
		return m, nil

	case notificationsLoadedMsg:
		m.notifications = msg.notifications
		return m, nil

	case CountsMsg:
		if msg.OK {
			m.counts = msg.Counts
			m.countsKnown = true
		}
		return m, nil

	case watch.FilingResultMsg:
		m.lastResult = &msg
		return m, tea.Batch(m.loadFilings(), m.loadNotifications())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// MarkNotificationsRead marks all unread notifications read and reloads.
func (m Model) MarkNotificationsRead() tea.Cmd {
	notifications := m.notifications
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		for _, n := range notifications {
			_ = m.store.MarkNotificationRead(ctx, n.ID)
		}

		return m.loadNotifications()()
	}
}

// View renders the status view content area.
func (m Model) View() string {
	status := m.watcher.GetStatus()

	var lines []string
	lines = append(lines, m.renderWatcherLine(status))
	if m.countsKnown {
		lines = append(lines, theme.DimmedStyle.Render(fmt.Sprintf(
			"sent last 7 days: %d, filed %d, unfiled %d",
			m.counts.Total, m.counts.Filed, m.counts.Unfiled,
		)))
	}
	if m.lastResult != nil {
		lines = append(lines, m.renderLastResult(*m.lastResult))
	}
	lines = append(lines, "")

	if len(m.notifications) > 0 {
		lines = append(lines, theme.ErrorStyle.Render(
			fmt.Sprintf("%d unread notification(s):", len(m.notifications)),
		))
		for _, n := range m.notifications {
			lines = append(lines, "  "+n.Message)
		}
		lines = append(lines, "")
	}

	lines = append(lines, "Recent filings:")
	if len(m.filings) == 0 {
		lines = append(lines, theme.DimmedStyle.Render("  nothing filed yet"))
	}
	for _, f := range m.filings {
		lines = append(lines, fmt.Sprintf(
			"  %s %s %s %s",
			theme.DimmedStyle.Render(f.FiledAt.Local().Format("Jan 02 15:04")),
			theme.ActionStyle(string(f.Action)).Render(string(f.Action)),
			f.Subject,
			theme.DimmedStyle.Render("case "+f.CaseID),
		))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, lines...)

	return theme.PanelStyle.
		Width(m.width - 4).
		Height(m.height - 2).
		Render(content)
}

// StatusLabel returns the short watcher status for the header bar.
func (m Model) StatusLabel() string {
	switch m.watcher.GetStatus().State {
	case watch.StateScanning:
		return "scanning"
	case watch.StateError:
		return "error"
	default:
		return "idle"
	}
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// renderLastResult renders a one-line summary of the most recent send
// event.
func (m Model) renderLastResult(msg watch.FilingResultMsg) string {
	switch {
	case msg.Result.Err != nil:
		return theme.ErrorStyle.Render("last send: filing failed") +
			theme.DimmedStyle.Render("  "+msg.Subject)
	case msg.Result.Skipped:
		return theme.DimmedStyle.Render("last send: not marked for filing  " + msg.Subject)
	default:
		return "last send: filed to case " + msg.Result.CaseID +
			theme.DimmedStyle.Render("  "+msg.Subject)
	}
}

// renderWatcherLine renders the watcher state with a spinner while a scan
// is in flight.
func (m Model) renderWatcherLine(status watch.Status) string {
	switch status.State {
	case watch.StateScanning:
		return m.spinner.View() + " scanning sent folder"
	case watch.StateError:
		return theme.WatcherStyle("error").Render("watcher error: ") +
			theme.ErrorStyle.Render(fmt.Sprint(status.Error))
	default:
		line := theme.WatcherStyle("idle").Render("watching sent folder")
		if !status.LastScan.IsZero() {
			line += theme.DimmedStyle.Render(
				"  last scan " + status.LastScan.Local().Format("15:04:05"),
			)
		}
		return line
	}
}

// loadFilings returns a command that fetches the recent filing history.
func (m Model) loadFilings() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		filings, err := m.store.GetFilings(ctx, store.FilingFilter{Limit: historyLimit})
		if err != nil {
			return filingsLoadedMsg{}
		}
		return filingsLoadedMsg{filings: filings}
	}
}

// loadNotifications returns a command that fetches unread notifications.
func (m Model) loadNotifications() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		notifications, err := m.store.GetUnreadNotifications(ctx)
		if err != nil {
			return notificationsLoadedMsg{}
		}
		return notificationsLoadedMsg{notifications: notifications}
	}
}
