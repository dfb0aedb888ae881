// Package monitor is the live queue monitor TUI: per-category depths,
// connectivity, dead letters and the most recent queued items, refreshed on
// an interval.
package monitor

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/shopsync/internal/connectivity"
	"github.com/marcus/shopsync/internal/models"
	"github.com/marcus/shopsync/internal/queue"
	"github.com/marcus/shopsync/internal/replay"
)

// MinWidth is the minimum terminal width for proper display
const MinWidth = 40

// recentLimit caps the recent-items panel
const recentLimit = 10

// Model is the main Bubble Tea model for the monitor TUI
type Model struct {
	Queue  *queue.DB
	Prober *connectivity.Prober
	Engine *replay.Engine

	// Window dimensions
	Width  int
	Height int

	// Data
	Online      bool
	Counts      map[models.Category]int64
	DeadLetters int64
	Intents     []queue.Intent
	Recent      []models.QueuedItem

	// UI state
	Spinner     spinner.Model
	Draining    bool
	LastDrain   *replay.Summary
	LastRefresh time.Time
	Err         error

	RefreshInterval time.Duration
}

// TickMsg triggers a data refresh
type TickMsg time.Time

// RefreshMsg carries refreshed queue and connectivity data
type RefreshMsg struct {
	Online      bool
	Counts      map[models.Category]int64
	DeadLetters int64
	Intents     []queue.Intent
	Recent      []models.QueuedItem
	Timestamp   time.Time
	Err         error
}

// DrainMsg carries the outcome of a manual drain
type DrainMsg struct {
	Summary replay.Summary
	Err     error
}

// NewModel creates a new monitor model
func NewModel(q *queue.DB, prober *connectivity.Prober, engine *replay.Engine, interval time.Duration) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle
	return Model{
		Queue:           q,
		Prober:          prober,
		Engine:          engine,
		Spinner:         sp,
		RefreshInterval: interval,
	}
}

// Run starts the monitor program in the alternate screen.
func Run(q *queue.DB, prober *connectivity.Prober, engine *replay.Engine, interval time.Duration) error {
	m := NewModel(q, prober, engine, interval)
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.Spinner.Tick,
		m.fetchData(),
		m.scheduleTick(),
	)
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.fetchData()
		case "s":
			if m.Draining || !m.Online {
				return m, nil
			}
			m.Draining = true
			return m, m.drain()
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case TickMsg:
		return m, tea.Batch(m.fetchData(), m.scheduleTick())

	case RefreshMsg:
		m.Online = msg.Online
		m.Counts = msg.Counts
		m.DeadLetters = msg.DeadLetters
		m.Intents = msg.Intents
		m.Recent = msg.Recent
		m.LastRefresh = msg.Timestamp
		m.Err = msg.Err

	case DrainMsg:
		m.Draining = false
		m.Err = msg.Err
		if msg.Err == nil {
			s := msg.Summary
			m.LastDrain = &s
		}
		return m, m.fetchData()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) scheduleTick() tea.Cmd {
	return tea.Tick(m.RefreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
