// Package tui renders a live view of a sync run in the terminal.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"rolesync/internal/downloader"
	"rolesync/pkg/syncer"
)

// TUI represents the terminal user interface. It implements syncer.Observer
// so it can be handed to Syncer.WithObserver.
type TUI struct {
	program *tea.Program
	model   *Model
}

// New creates a TUI. cancel stops the sync when the user quits.
func New(cancel context.CancelFunc, opts ...tea.ProgramOption) *TUI {
	model := NewModel(cancel)
	return &TUI{
		program: tea.NewProgram(model, opts...),
		model:   model,
	}
}

// Run shows the display until the run finishes or the user quits
func (t *TUI) Run() error {
	_, err := t.program.Run()
	return err
}

// Model returns the underlying model. Read it only after Run returned.
func (t *TUI) Model() *Model {
	return t.model
}

// PhaseStarted implements syncer.Observer
func (t *TUI) PhaseStarted(p syncer.Phase) {
	t.program.Send(PhaseMsg{Phase: p})
}

// JobStarted implements downloader.Observer
func (t *TUI) JobStarted(source string, job downloader.Job, index, total int) {
	t.program.Send(JobStartMsg{Source: source, Job: job, Index: index, Total: total})
}

// JobFinished implements downloader.Observer
func (t *TUI) JobFinished(source string, result downloader.Result, index, total int) {
	t.program.Send(JobDoneMsg{Source: source, Result: result, Index: index, Total: total})
}

// Finish tells the display the run returned, which closes it
func (t *TUI) Finish(report *syncer.Report, err error) {
	t.program.Send(FinishedMsg{Report: report, Err: err})
}
