package imagesync

import (
	"context"
	"fmt"

	"rolesync/internal/downloader"
	"rolesync/pkg/config"
	"rolesync/pkg/hakush"
	"rolesync/pkg/imaging"
	"rolesync/pkg/logger"
	"rolesync/pkg/metadata"
	"rolesync/pkg/ratelimit"
	"rolesync/pkg/retry"
	"rolesync/pkg/storage"
)

// FallbackResult reports one fallback sync
type FallbackResult struct {
	Queued     int
	Downloaded int
	Failed     int
	// NoReference counts characters skipped for lack of an image reference
	NoReference int
}

// NeedsFallback reports whether the fallback source should run after a
// primary sync
func NeedsFallback(primary PrimaryResult) bool {
	return primary.Failed > 0 || primary.Downloaded == 0
}

// Fallback fetches portraits still missing after the primary sync from the
// hakush.in WebP assets and stores them as PNG
type Fallback struct {
	client       downloader.Getter
	store        *storage.Manager
	metadataFile string
	baseURL      string
	imageField   string
	cfg          config.DownloadConfig
	retry        *retry.Config
	sleep        ratelimit.SleepFunc
	observer     downloader.Observer
	logger       logger.Logger
}

// NewFallback creates a Fallback synchronizer
func NewFallback(client downloader.Getter, store *storage.Manager, cfg *config.Config, log logger.Logger) *Fallback {
	if log == nil {
		log = logger.GetLogger()
	}
	log = log.WithField("component", "fallback_sync")

	return &Fallback{
		client:       client,
		store:        store,
		metadataFile: cfg.Paths.MetadataFile,
		baseURL:      cfg.Hakush.BaseURL,
		imageField:   cfg.Hakush.ImageField,
		cfg:          cfg.Download,
		retry:        retry.FromSettings(cfg.Retry, log),
		sleep:        ratelimit.Sleep,
		logger:       log,
	}
}

// WithSleep replaces both the retry backoff wait and the pause between
// downloads, for tests
func (f *Fallback) WithSleep(sleep ratelimit.SleepFunc) *Fallback {
	f.sleep = sleep
	f.retry.Sleep = retry.SleepFunc(sleep)
	return f
}

// SetObserver reports per-file progress to o
func (f *Fallback) SetObserver(o downloader.Observer) {
	f.observer = o
}

// Plan returns a job for every character without a local portrait. A
// character without an image reference is skipped with a warning.
func (f *Fallback) Plan(roster *metadata.Roster) ([]downloader.Job, int) {
	var jobs []downloader.Job
	noRef := 0

	for _, c := range roster.Characters() {
		name := metadata.ImageFileName(c.ID)
		if err := storage.ValidateName(name); err != nil {
			f.logger.WithError(err).Warn("Skipping character with unusable id")
			continue
		}
		if f.store.Exists(name) {
			continue
		}

		ref := c.StringFold(f.imageField)
		if ref == "" {
			f.logger.WarnWithFields("Character has no image reference, skipping", map[string]interface{}{
				"id":    c.ID,
				"field": f.imageField,
			})
			noRef++
			continue
		}

		url, err := hakush.ImageURL(f.baseURL, ref)
		if err != nil {
			f.logger.WithError(err).WarnWithFields("Unusable image reference, skipping", map[string]interface{}{
				"id": c.ID,
			})
			noRef++
			continue
		}
		jobs = append(jobs, downloader.Job{Name: name, URL: url})
	}
	return jobs, noRef
}

// Sync reads the character file and downloads every missing portrait. It
// fails only when the character file cannot be read or ctx is cancelled.
func (f *Fallback) Sync(ctx context.Context) (FallbackResult, error) {
	roster, err := metadata.Load(f.metadataFile)
	if err != nil {
		return FallbackResult{}, fmt.Errorf("fallback needs the character file: %w", err)
	}

	jobs, noRef := f.Plan(roster)
	result := FallbackResult{Queued: len(jobs), NoReference: noRef}
	if len(jobs) == 0 {
		f.logger.Info("No missing images for the fallback source")
		return result, nil
	}
	f.logger.WithField("queued", len(jobs)).Info("Downloading missing images from fallback source")

	q := downloader.New(f.client, f.store, downloader.Options{
		Source:  "fallback",
		Timeout: f.cfg.ImageTimeout,
		Transform: func(data []byte) ([]byte, error) {
			out, _, err := imaging.ToPNG(data)
			return out, err
		},
		Retry: f.retry,
		Pause: ratelimit.ThresholdPause{
			Delay:     f.cfg.FallbackPause,
			Threshold: f.cfg.FallbackPauseMin,
			Sleep:     f.sleep,
		},
		Observer: f.observer,
		Logger:   f.logger,
	})

	summary, err := q.Run(ctx, jobs)
	result.Downloaded = summary.Succeeded
	result.Failed = summary.Failed
	return result, err
}
