package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"rolesync/internal/downloader"
	"rolesync/pkg/syncer"
)

// PhaseMsg is sent when the run enters a phase
type PhaseMsg struct {
	Phase syncer.Phase
}

// JobStartMsg is sent before a file is fetched
type JobStartMsg struct {
	Source string
	Job    downloader.Job
	Index  int
	Total  int
}

// JobDoneMsg is sent after a file was fetched or given up on
type JobDoneMsg struct {
	Source string
	Result downloader.Result
	Index  int
	Total  int
}

// FinishedMsg is sent once the run has returned
type FinishedMsg struct {
	Report *syncer.Report
	Err    error
}

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		width := msg.Width - 20
		if width > 60 {
			width = 60
		}
		if width > 10 {
			m.bar.Width = width
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case PhaseMsg:
		m.phases = append(m.phases, msg.Phase)
		m.file = ""
		m.index, m.total = 0, 0
		return m, nil

	case JobStartMsg:
		m.source = msg.Source
		m.file = msg.Job.Name
		m.index = msg.Index
		m.total = msg.Total
		m.tally(msg.Source)
		return m, nil

	case JobDoneMsg:
		c := m.tally(msg.Source)
		if msg.Result.Success {
			c.Done++
		} else {
			c.Failed++
		}
		m.index = msg.Index + 1
		m.total = msg.Total
		m.addEvent(Event{
			Source: msg.Source,
			Name:   msg.Result.Job.Name,
			Size:   msg.Result.Size,
			Err:    msg.Result.Error,
		})
		return m, nil

	case FinishedMsg:
		m.report = msg.Report
		m.err = msg.Err
		m.finished = true
		m.file = ""
		return m, tea.Quit
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.interrupted = true
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit
	}
	return m, nil
}
