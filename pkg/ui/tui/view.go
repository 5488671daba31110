package tui

import (
	"fmt"
	"strings"
	"time"

	"rolesync/pkg/syncer"
)

var allPhases = []syncer.Phase{
	syncer.PhaseCheck,
	syncer.PhaseFetchMeta,
	syncer.PhaseSyncPrimary,
	syncer.PhaseSyncFallback,
	syncer.PhaseGenerate,
	syncer.PhaseSaveState,
	syncer.PhaseEnd,
}

// View renders the display
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("rolesync"))
	b.WriteString("  ")
	b.WriteString(m.renderPhases())
	b.WriteString("\n\n")

	if m.total > 0 && !m.finished {
		fmt.Fprintf(&b, "%s %s %s\n", m.spinner.View(), m.source, m.file)
		fmt.Fprintf(&b, "%s %d/%d\n", m.bar.ViewAs(m.percent()), m.index, m.total)
	} else if !m.finished {
		fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), phaseLabel(m.Phase()))
	}

	for _, source := range m.sources {
		c := m.counts[source]
		line := labelStyle.Render(source) + okStyle.Render(fmt.Sprintf("%d ok", c.Done))
		if c.Failed > 0 {
			line += "  " + failStyle.Render(fmt.Sprintf("%d failed", c.Failed))
		}
		b.WriteString(line + "\n")
	}

	if len(m.events) > 0 {
		b.WriteString("\n")
		for _, e := range m.events {
			b.WriteString(eventStyle.Render(renderEvent(e)) + "\n")
		}
	}

	switch {
	case m.interrupted:
		b.WriteString("\n" + warnStyle.Render("Interrupted, stopping after the current file") + "\n")
	case m.finished:
		b.WriteString("\n" + m.renderOutcome() + "\n")
	default:
		b.WriteString(helpStyle.Render("q to stop") + "\n")
	}
	return b.String()
}

func (m *Model) renderPhases() string {
	seen := make(map[syncer.Phase]bool, len(m.phases))
	for _, p := range m.phases {
		seen[p] = true
	}
	current := m.Phase()

	var parts []string
	for _, p := range allPhases {
		if !seen[p] {
			continue
		}
		if p == current && !m.finished {
			parts = append(parts, phaseActiveStyle.Render(string(p)))
		} else {
			parts = append(parts, phaseDoneStyle.Render(string(p)))
		}
	}
	return strings.Join(parts, phaseDoneStyle.Render(" › "))
}

func (m *Model) renderOutcome() string {
	elapsed := m.now().Sub(m.start).Round(time.Millisecond)
	switch {
	case m.err != nil:
		return failStyle.Render("Sync aborted: " + m.err.Error())
	case m.report == nil:
		return failStyle.Render("Sync ended without a report")
	case !m.report.Updated():
		return okStyle.Render("Mirror unchanged")
	case m.report.ExitCode != 0:
		return failStyle.Render(fmt.Sprintf("Finished with errors in %s", elapsed))
	case m.report.Failed() > 0:
		return warnStyle.Render(fmt.Sprintf("%d downloaded, %d failed in %s", m.report.Downloaded(), m.report.Failed(), elapsed))
	default:
		return okStyle.Render(fmt.Sprintf("%d downloaded in %s", m.report.Downloaded(), elapsed))
	}
}

func renderEvent(e Event) string {
	if e.Err != nil {
		return failStyle.Render("✗ ") + e.Name + " " + phaseDoneStyle.Render(e.Err.Error())
	}
	return okStyle.Render("✓ ") + e.Name + " " + phaseDoneStyle.Render(formatBytes(e.Size))
}

func phaseLabel(p syncer.Phase) string {
	switch p {
	case "", syncer.PhaseCheck:
		return "Checking the mirror"
	case syncer.PhaseFetchMeta:
		return "Fetching character data"
	case syncer.PhaseSyncPrimary:
		return "Listing portraits"
	case syncer.PhaseSyncFallback:
		return "Looking for missing portraits"
	case syncer.PhaseGenerate:
		return "Writing manifest"
	case syncer.PhaseSaveState:
		return "Saving state"
	default:
		return "Finishing"
	}
}

// formatBytes formats bytes to human readable format
func formatBytes(n int) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := unit, 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
