package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rolesync/pkg/config"
	"rolesync/pkg/hakush"
	"rolesync/pkg/httpclient"
	"rolesync/pkg/imagesync"
	"rolesync/pkg/logger"
	"rolesync/pkg/manifest"
	"rolesync/pkg/metadata"
	"rolesync/pkg/mirror"
	"rolesync/pkg/state"
	"rolesync/pkg/storage"
)

// Phase names a step of a run
type Phase string

const (
	PhaseCheck        Phase = "CHECK"
	PhaseFetchMeta    Phase = "FETCH_META"
	PhaseSyncPrimary  Phase = "SYNC_PRIMARY"
	PhaseSyncFallback Phase = "SYNC_FALLBACK"
	PhaseGenerate     Phase = "GENERATE"
	PhaseSaveState    Phase = "SAVE_STATE"
	PhaseEnd          Phase = "END"
)

// checkFailedPrefix marks a last_updated value recorded after a failed
// update check; it never equals a real remote timestamp
const checkFailedPrefix = "error_"

// Report describes what a run did
type Report struct {
	RunID  string
	Phases []Phase
	Check  mirror.CheckResult
	// Timestamp is the remote timestamp the run synced against
	Timestamp  string
	Characters int
	Primary    imagesync.PrimaryResult
	// Fallback is nil when the fallback phase was skipped
	Fallback    *imagesync.FallbackResult
	ManifestErr error
	StateErr    error
	Duration    time.Duration
	ExitCode    int
}

// Downloaded is the number of portraits written by both sources
func (r *Report) Downloaded() int {
	n := r.Primary.Downloaded
	if r.Fallback != nil {
		n += r.Fallback.Downloaded
	}
	return n
}

// Failed is the number of portraits neither source could provide, plus one
// for an unreadable listing
func (r *Report) Failed() int {
	n := r.Primary.Failed
	if r.Fallback != nil {
		n += r.Fallback.Failed
	}
	return n
}

// Updated reports whether the run went past the update check
func (r *Report) Updated() bool {
	return len(r.Phases) > 2
}

// Components are the collaborators of a Syncer
type Components struct {
	Checker  UpdateChecker
	Fetcher  RosterFetcher
	Primary  PrimarySyncer
	Fallback FallbackSyncer
	Manifest ManifestWriter
	State    StateSaver
}

// Syncer sequences one refresh of the mirror
type Syncer struct {
	c            Components
	metadataFile string
	manifestFile string
	now          func() time.Time
	newRunID     func() string
	observer     Observer
	logger       logger.Logger
}

// NewWithComponents creates a Syncer over explicit collaborators
func NewWithComponents(c Components, paths config.PathsConfig, log logger.Logger) *Syncer {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Syncer{
		c:            c,
		metadataFile: paths.MetadataFile,
		manifestFile: paths.ManifestFile,
		now:          time.Now,
		newRunID:     func() string { return uuid.NewString() },
		logger:       log,
	}
}

// New wires the production collaborators from cfg
func New(cfg *config.Config, log logger.Logger) (*Syncer, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	client := httpclient.New(httpclient.Options{
		UserAgent: cfg.Download.UserAgent,
		Token:     cfg.Mirror.Token,
		TokenHost: httpclient.HostOf(cfg.Mirror.APIBaseURL),
		Logger:    log,
	})

	images, err := storage.NewManager(cfg.Paths.ImageDir)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare image directory: %w", err)
	}

	timeout := cfg.Download.ListingTimeout
	c := Components{
		Checker:  mirror.NewChecker(client, cfg.Mirror, timeout, log),
		Fetcher:  hakush.NewFetcher(client, cfg.Hakush, timeout, log),
		Primary:  imagesync.NewPrimary(mirror.NewLister(client, cfg.Mirror, timeout, log), client, images, cfg.Download, log),
		Fallback: imagesync.NewFallback(client, images, cfg, log),
		Manifest: manifest.NewGenerator(cfg.Paths.MetadataFile, images, cfg.Paths.ImageURLPrefix, log),
		State:    state.NewStore(cfg.Paths.StateFile, log),
	}
	return NewWithComponents(c, cfg.Paths, log), nil
}

// WithClock replaces the time source, for tests
func (s *Syncer) WithClock(now func() time.Time) *Syncer {
	s.now = now
	return s
}

// WithRunID replaces the run id generator, for tests
func (s *Syncer) WithRunID(gen func() string) *Syncer {
	s.newRunID = gen
	return s
}

// WithObserver reports phase changes to o and, for collaborators that
// support it, per-file download progress
func (s *Syncer) WithObserver(o Observer) *Syncer {
	s.observer = o
	for _, c := range []interface{}{s.c.Primary, s.c.Fallback} {
		if oc, ok := c.(observable); ok {
			oc.SetObserver(o)
		}
	}
	return s
}

func (s *Syncer) enter(r *Report, log logger.Logger, p Phase) {
	r.Phases = append(r.Phases, p)
	logger.LogPhase(log, string(p))
	if s.observer != nil {
		s.observer.PhaseStarted(p)
	}
}

// Run performs one refresh starting from prev. It returns the state that
// now describes the mirror (prev itself when nothing was persisted), a
// report, and an error only when the run was aborted.
func (s *Syncer) Run(ctx context.Context, prev state.State) (state.State, *Report, error) {
	start := s.now()
	report := &Report{RunID: s.newRunID()}
	log := s.logger.WithField("run_id", report.RunID)

	s.enter(report, log, PhaseCheck)
	report.Check = s.c.Checker.Check(ctx, prev.LastUpdatedValue())

	switch report.Check.Status {
	case mirror.Fresh:
		next := prev
		next.LastChecked = state.FormatTime(s.now())
		if err := s.c.State.Save(next); err != nil {
			log.WithError(err).Error("Failed to record check time")
			report.StateErr = err
			next = prev
		}
		report.Timestamp = report.Check.RemoteTimestamp
		s.enter(report, log, PhaseEnd)
		report.Duration = s.now().Sub(start)
		return next, report, nil
	case mirror.CheckFailed:
		report.Timestamp = checkFailedPrefix + state.FormatTime(s.now())
		log.WithError(report.Check.Err).WarnWithFields("Update check failed, syncing anyway", map[string]interface{}{
			"timestamp": report.Timestamp,
		})
	default:
		report.Timestamp = report.Check.RemoteTimestamp
	}

	if err := ctx.Err(); err != nil {
		return s.abort(log, prev, report, start, err)
	}

	s.enter(report, log, PhaseFetchMeta)
	roster, err := s.c.Fetcher.FetchRoster(ctx)
	if err != nil {
		return s.abort(log, prev, report, start, fmt.Errorf("failed to fetch character data: %w", err))
	}
	if err := metadata.Save(s.metadataFile, roster); err != nil {
		return s.abort(log, prev, report, start, err)
	}
	report.Characters = roster.Len()
	log.WithField("characters", roster.Len()).Info("Character data saved")

	s.enter(report, log, PhaseSyncPrimary)
	report.Primary, err = s.c.Primary.Sync(ctx)
	if err != nil {
		return s.abort(log, prev, report, start, err)
	}

	if imagesync.NeedsFallback(report.Primary) {
		s.enter(report, log, PhaseSyncFallback)
		fb, err := s.c.Fallback.Sync(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return s.abort(log, prev, report, start, ctx.Err())
			}
			log.WithError(err).Error("Fallback image sync failed")
		}
		report.Fallback = &fb
	}

	s.enter(report, log, PhaseGenerate)
	if _, err := s.c.Manifest.Generate(s.manifestFile); err != nil {
		report.ManifestErr = err
		log.WithError(err).Warn("Manifest generation failed, other results are kept")
	}

	s.enter(report, log, PhaseSaveState)
	now := state.FormatTime(s.now())
	next := prev
	if report.Primary.ListingErr == nil {
		next = next.WithLastUpdated(report.Timestamp)
	} else {
		log.Warn("No image listing was available, keeping the previous timestamp")
	}
	next.LastChecked = now
	next.LastSynced = now
	next.LastSyncStats = &state.SyncStats{
		ImagesDownloaded: report.Downloaded(),
		ImagesFailed:     report.Failed(),
		Timestamp:        report.Timestamp,
		RunID:            report.RunID,
	}
	if err := s.c.State.Save(next); err != nil {
		report.StateErr = err
		log.WithError(err).Error("Failed to save sync state")
		next = prev
	}

	if report.Primary.ListingErr != nil || report.StateErr != nil {
		report.ExitCode = 1
	}

	s.enter(report, log, PhaseEnd)
	report.Duration = s.now().Sub(start)
	logger.LogSyncStats(log, report.RunID, report.Downloaded(), report.Failed(), report.Duration)
	if f := report.Failed(); f > 0 {
		log.WithField("failed", f).Warn("Some images could not be downloaded, they will be retried on the next run")
	}
	return next, report, nil
}

func (s *Syncer) abort(log logger.Logger, prev state.State, report *Report, start time.Time, err error) (state.State, *Report, error) {
	log.WithError(err).Error("Sync aborted")
	report.ExitCode = 1
	report.Duration = s.now().Sub(start)
	return prev, report, err
}
