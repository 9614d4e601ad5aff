// Package ui provides the live blackboard watch view. The model polls
// the session profile on a fixed interval and renders the task board
// with status counts and recent feedback.
package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"swarm/internal/types"
)

// Loader fetches the current profile snapshot. Called on every poll
// tick, so it should be cheap; the blackboard read path is a single
// file load.
type Loader func() (*types.ProjectProfile, error)

type tickMsg time.Time

type profileMsg struct {
	profile *types.ProjectProfile
	err     error
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("8"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	statusStyles = map[types.TaskStatus]lipgloss.Style{
		types.StatusPending:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		types.StatusInProgress: lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		types.StatusCompleted:  lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		types.StatusFailed:     lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	}
)

// chromeLines is the screen rows used outside the scrolling board:
// title, summary, blank, column header, blank, footer.
const chromeLines = 6

// WatchModel is the tea.Model for `swarm watch`.
type WatchModel struct {
	load     Loader
	interval time.Duration
	session  string

	profile *types.ProjectProfile
	err     error
	width   int

	board viewport.Model
	ready bool
}

// NewWatchModel builds the watch view. A non-positive interval
// defaults to one second.
func NewWatchModel(load Loader, session string, interval time.Duration) WatchModel {
	if interval <= 0 {
		interval = time.Second
	}
	return WatchModel{load: load, session: session, interval: interval}
}

func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.poll(), m.schedule())
}

func (m WatchModel) poll() tea.Cmd {
	return func() tea.Msg {
		profile, err := m.load()
		return profileMsg{profile: profile, err: err}
	}
}

func (m WatchModel) schedule() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, m.poll()
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		height := msg.Height - chromeLines
		if height < 1 {
			height = 1
		}
		if !m.ready {
			m.board = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.board.Width = msg.Width
			m.board.Height = height
		}
		m.board.SetContent(m.renderBoard())
		return m, nil
	case tickMsg:
		return m, tea.Batch(m.poll(), m.schedule())
	case profileMsg:
		m.profile = msg.profile
		m.err = msg.err
		m.board.SetContent(m.renderBoard())
		return m, nil
	}

	var cmd tea.Cmd
	m.board, cmd = m.board.Update(msg)
	return m, cmd
}

func (m WatchModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("swarm blackboard: %s", m.session)))
	b.WriteString("\n")
	b.WriteString(m.summaryLine())
	b.WriteString("\n\n")
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-13s %-9s %-12s %s", "STATUS", "ID", "WORKER", "DESCRIPTION")))
	b.WriteString("\n")
	b.WriteString(m.board.View())
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("r refresh  j/k scroll  q quit"))
	return b.String()
}

func (m WatchModel) summaryLine() string {
	if m.err != nil {
		return errStyle.Render(fmt.Sprintf("load error: %v", m.err))
	}
	if m.profile == nil {
		return dimStyle.Render("loading...")
	}
	counts := map[types.TaskStatus]int{}
	for _, t := range m.profile.Tasks {
		counts[t.Status]++
	}
	return dimStyle.Render(fmt.Sprintf("%d tasks  %d pending  %d in progress  %d done  %d failed",
		len(m.profile.Tasks),
		counts[types.StatusPending],
		counts[types.StatusInProgress],
		counts[types.StatusCompleted],
		counts[types.StatusFailed]))
}

func (m WatchModel) renderBoard() string {
	if m.profile == nil {
		return ""
	}
	tasks := make([]*types.Task, 0, len(m.profile.Tasks))
	for _, t := range m.profile.Tasks {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })

	var b strings.Builder
	for _, t := range tasks {
		worker := t.Worker
		if worker == "" {
			worker = "-"
		}
		b.WriteString(fmt.Sprintf("%s %-9s %-12s %s\n",
			statusStyles[t.Status].Render(fmt.Sprintf("%-13s", t.Status)),
			t.ID[:8], worker, truncate(t.Description, m.descWidth())))
		if note := lastFeedback(t); note != "" {
			b.WriteString(dimStyle.Render("              " + truncate(note, m.descWidth())))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m WatchModel) descWidth() int {
	if m.width <= 40 {
		return 60
	}
	return m.width - 38
}

func lastFeedback(t *types.Task) string {
	if len(t.FeedbackLog) == 0 {
		return ""
	}
	note := t.FeedbackLog[len(t.FeedbackLog)-1]
	if i := strings.IndexByte(note, '\n'); i >= 0 {
		note = note[:i]
	}
	return note
}

func truncate(s string, n int) string {
	if n < 4 || len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
