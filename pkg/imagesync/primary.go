package imagesync

import (
	"context"
	"time"

	"rolesync/internal/downloader"
	"rolesync/pkg/config"
	"rolesync/pkg/logger"
	"rolesync/pkg/mirror"
	"rolesync/pkg/ratelimit"
	"rolesync/pkg/storage"
)

// Lister provides the mirror's image listing
type Lister interface {
	List(ctx context.Context) (*mirror.Listing, error)
}

// PrimaryResult reports one primary sync
type PrimaryResult struct {
	Source     string
	Listed     int
	Skipped    int
	Downloaded int
	// Failed counts failed downloads, plus one when no listing was available
	Failed int
	// ListingErr is set when neither listing source could be read
	ListingErr error
}

// Primary mirrors images from the GitHub static-asset repository, fetching
// only files whose local size differs from the listed one
type Primary struct {
	lister   Lister
	client   downloader.Getter
	store    *storage.Manager
	cfg      config.DownloadConfig
	sleep    ratelimit.SleepFunc
	observer downloader.Observer
	logger   logger.Logger
}

// NewPrimary creates a Primary synchronizer
func NewPrimary(lister Lister, client downloader.Getter, store *storage.Manager, cfg config.DownloadConfig, log logger.Logger) *Primary {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Primary{
		lister: lister,
		client: client,
		store:  store,
		cfg:    cfg,
		sleep:  ratelimit.Sleep,
		logger: log.WithField("component", "primary_sync"),
	}
}

// WithSleep replaces the pause implementation, for tests
func (p *Primary) WithSleep(sleep ratelimit.SleepFunc) *Primary {
	p.sleep = sleep
	return p
}

// SetObserver reports per-file progress to o
func (p *Primary) SetObserver(o downloader.Observer) {
	p.observer = o
}

// Plan returns the files that need downloading and how many were skipped
// because a local file of exactly the listed size exists
func (p *Primary) Plan(listing *mirror.Listing) ([]downloader.Job, int) {
	var jobs []downloader.Job
	skipped := 0

	for _, f := range listing.Files {
		if err := storage.ValidateName(f.Name); err != nil {
			p.logger.WithError(err).Warn("Ignoring listed file with unsafe name")
			continue
		}
		if f.SizeKnown {
			if size, ok := p.store.Size(f.Name); ok && size == f.Size {
				p.logger.DebugWithFields("Skipping unchanged file", map[string]interface{}{
					"file": f.Name,
					"size": size,
				})
				skipped++
				continue
			}
		}
		jobs = append(jobs, downloader.Job{Name: f.Name, URL: f.URL})
	}
	return jobs, skipped
}

// Sync lists, plans and downloads. The returned error is only set when ctx
// was cancelled; everything else is reported through the result.
func (p *Primary) Sync(ctx context.Context) (PrimaryResult, error) {
	listing, err := p.lister.List(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return PrimaryResult{}, ctx.Err()
		}
		p.logger.WithError(err).Error("No image listing available")
		return PrimaryResult{Failed: 1, ListingErr: err}, nil
	}

	jobs, skipped := p.Plan(listing)
	result := PrimaryResult{
		Source:  listing.Source,
		Listed:  len(listing.Files),
		Skipped: skipped,
	}
	p.logger.InfoWithFields("Primary image plan", map[string]interface{}{
		"source":  listing.Source,
		"listed":  result.Listed,
		"skipped": skipped,
		"queued":  len(jobs),
	})
	if len(jobs) == 0 {
		return result, nil
	}

	q := downloader.New(p.client, p.store, downloader.Options{
		Source:  "primary",
		Timeout: p.cfg.ImageTimeout,
		Pause: ratelimit.ThresholdPause{
			Delay:     p.cfg.PrimaryPause,
			Threshold: p.cfg.PrimaryPauseMin,
			Sleep:     p.sleep,
		},
		Observer: p.observer,
		Logger:   p.logger,
	})

	start := time.Now()
	summary, err := q.Run(ctx, jobs)
	result.Downloaded = summary.Succeeded
	result.Failed = summary.Failed

	p.logger.InfoWithFields("Primary image sync finished", map[string]interface{}{
		"downloaded": result.Downloaded,
		"failed":     result.Failed,
		"elapsed":    time.Since(start).Round(time.Millisecond).String(),
	})
	return result, err
}
