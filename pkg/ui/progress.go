package ui

import (
	"fmt"
	"strings"
	"time"

	"rolesync/pkg/mirror"
	"rolesync/pkg/syncer"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
	barWidth      = 20
)

// Bar renders done/total as a fixed-width bar
func Bar(done, total int) string {
	filled := 0
	if total > 0 {
		filled = done * barWidth / total
	}
	if filled > barWidth {
		filled = barWidth
	}
	return fmt.Sprintf("[%s%s] %d/%d",
		strings.Repeat(ProgressBar, filled),
		strings.Repeat(ProgressEmpty, barWidth-filled),
		done, total)
}

// Report prints the outcome of a sync run
func (p *Printer) Report(r *syncer.Report) {
	p.Info("Run", r.RunID)
	p.Info("Check", r.Check.Status.String())

	phases := make([]string, len(r.Phases))
	for i, ph := range r.Phases {
		phases[i] = string(ph)
	}
	fmt.Fprintln(p.w, p.paint(Dim, strings.Join(phases, " → ")))

	if !r.Updated() {
		if r.Check.Status == mirror.Fresh {
			p.Success("Mirror unchanged, nothing to do")
		}
		return
	}

	p.Info("Timestamp", r.Timestamp)
	p.Info("Characters", fmt.Sprintf("%d", r.Characters))

	prim := r.Primary
	if prim.ListingErr != nil {
		p.Error("Primary listing unavailable", prim.ListingErr)
	} else {
		p.Info("Primary", fmt.Sprintf("%s %d skipped (%s)",
			Bar(prim.Downloaded, prim.Downloaded+prim.Failed), prim.Skipped, prim.Source))
	}
	if fb := r.Fallback; fb != nil {
		p.Info("Fallback", fmt.Sprintf("%s %d without reference",
			Bar(fb.Downloaded, fb.Queued), fb.NoReference))
	}
	if r.ManifestErr != nil {
		p.Error("Manifest not written", r.ManifestErr)
	}
	if r.StateErr != nil {
		p.Error("State not saved", r.StateErr)
	}

	p.Info("Elapsed", r.Duration.Round(time.Millisecond).String())
	switch {
	case r.ExitCode != 0:
		p.Error("Sync finished with errors", nil)
	case r.Failed() > 0:
		p.Warning(fmt.Sprintf("%d images failed, they will be retried on the next run", r.Failed()))
	default:
		p.Success(fmt.Sprintf("Sync complete: %d images downloaded", r.Downloaded()))
	}
}
