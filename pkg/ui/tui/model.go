package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"rolesync/pkg/syncer"
)

const maxEvents = 8

// Event is one finished download shown in the recent list
type Event struct {
	Source string
	Name   string
	Size   int
	Err    error
}

// Counts tallies the downloads of one source
type Counts struct {
	Done   int
	Failed int
}

// Model is the bubbletea model of a running sync
type Model struct {
	spinner spinner.Model
	bar     progress.Model

	phases  []syncer.Phase
	source  string
	file    string
	index   int
	total   int
	counts  map[string]*Counts
	sources []string
	events  []Event

	report      *syncer.Report
	err         error
	finished    bool
	interrupted bool
	cancel      context.CancelFunc

	start time.Time
	now   func() time.Time
}

// NewModel creates a model. cancel is called when the user interrupts the
// display and may be nil.
func NewModel(cancel context.CancelFunc) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(accent)

	return &Model{
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		counts:  make(map[string]*Counts),
		cancel:  cancel,
		start:   time.Now(),
		now:     time.Now,
	}
}

// Init starts the spinner
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Phase returns the phase the run is in, or "" before the first one
func (m *Model) Phase() syncer.Phase {
	if len(m.phases) == 0 {
		return ""
	}
	return m.phases[len(m.phases)-1]
}

// Counts returns the tally for source
func (m *Model) Counts(source string) Counts {
	if c, ok := m.counts[source]; ok {
		return *c
	}
	return Counts{}
}

// Events returns the most recent downloads, oldest first
func (m *Model) Events() []Event {
	return m.events
}

// Finished reports whether the run has ended
func (m *Model) Finished() bool {
	return m.finished
}

// Interrupted reports whether the user stopped the run from the display
func (m *Model) Interrupted() bool {
	return m.interrupted
}

func (m *Model) percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.index) / float64(m.total)
}

func (m *Model) tally(source string) *Counts {
	c, ok := m.counts[source]
	if !ok {
		c = &Counts{}
		m.counts[source] = c
		m.sources = append(m.sources, source)
	}
	return c
}

func (m *Model) addEvent(e Event) {
	m.events = append(m.events, e)
	if len(m.events) > maxEvents {
		m.events = m.events[len(m.events)-maxEvents:]
	}
}
