// Package tui renders the opt-in progress monitor for a pipeline run. It
// only observes Tracker snapshots; it never influences scheduling.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/libratom/libratom/internal/pipeline"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	countStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	cancelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

const tickInterval = 120 * time.Millisecond

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Monitor is a bubbletea model polling the run's Tracker.
type Monitor struct {
	tracker *pipeline.Tracker
	done    <-chan struct{}
	cancel  context.CancelFunc

	spinner     spinner.Model
	bar         progress.Model
	snap        pipeline.Snapshot
	interrupted bool
	start       time.Time
}

// NewMonitor builds a monitor for one run. cancel is invoked when the user
// interrupts from the UI; done must be closed when the pipeline returns.
func NewMonitor(tracker *pipeline.Tracker, done <-chan struct{}, cancel context.CancelFunc) *Monitor {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return &Monitor{
		tracker: tracker,
		done:    done,
		cancel:  cancel,
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient()),
		start:   time.Now(),
	}
}

func (m *Monitor) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func (m *Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			// Cooperative: workers stop at their next message boundary and
			// everything already received is committed before exit.
			m.interrupted = true
			m.cancel()
		}
		return m, nil

	case tickMsg:
		m.snap = m.tracker.Snapshot()
		select {
		case <-m.done:
			return m, tea.Quit
		default:
		}
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.bar.Width = msg.Width - 8
		if m.bar.Width > 60 {
			m.bar.Width = 60
		}
		return m, nil
	}
	return m, nil
}

func (m *Monitor) View() string {
	s := m.snap
	ratio := 0.0
	if s.FilesTotal > 0 {
		ratio = float64(s.FilesDone()) / float64(s.FilesTotal)
	}

	header := titleStyle.Render("ratom")
	if m.interrupted {
		header += " " + cancelStyle.Render("cancelling, flushing committed work...")
	} else {
		header += " " + m.spinner.View() + "processing"
	}

	counts := countStyle.Render(fmt.Sprintf(
		"%d/%d files · %d messages · %d entities · %s elapsed",
		s.FilesDone(), s.FilesTotal, s.Messages, s.Entities,
		time.Since(m.start).Round(time.Second),
	))
	if s.FilesFailed > 0 {
		counts += " " + failStyle.Render(fmt.Sprintf("· %d failed", s.FilesFailed))
	}

	return fmt.Sprintf("%s\n%s\n%s\n", header, m.bar.ViewAs(ratio), counts)
}

// Run blocks until the pipeline finishes or the user quits the UI.
func Run(tracker *pipeline.Tracker, done <-chan struct{}, cancel context.CancelFunc) error {
	_, err := tea.NewProgram(NewMonitor(tracker, done, cancel)).Run()
	return err
}
