package mirror

import (
	"context"
	"time"

	"rolesync/pkg/config"
	"rolesync/pkg/httpclient"
	"rolesync/pkg/logger"
)

// CheckStatus is the outcome of an update check
type CheckStatus int

const (
	// Fresh means the remote timestamp equals the last synced one
	Fresh CheckStatus = iota
	// Stale means the mirror changed, or published no timestamp
	Stale
	// CheckFailed means the remote manifest could not be fetched or parsed
	CheckFailed
)

func (s CheckStatus) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	case CheckFailed:
		return "check_failed"
	default:
		return "unknown"
	}
}

// CheckResult is the tagged result of Checker.Check
type CheckResult struct {
	Status CheckStatus
	// RemoteTimestamp is the mirror's last_updated; for a manifest without
	// one it is the check time. Empty when the check failed.
	RemoteTimestamp string
	// MissingTimestamp is set when the manifest had no last_updated
	MissingTimestamp bool
	Err              error
}

// manifestDocument is role_pile.json
type manifestDocument struct {
	LastUpdated string          `json:"last_updated"`
	Files       []manifestEntry `json:"files"`
}

type manifestEntry struct {
	Name string `json:"name"`
	Size *int64 `json:"size"`
}

// Checker compares the mirror's manifest timestamp with the persisted one.
// It never retries; deciding what a failed check means is up to the caller.
type Checker struct {
	client  httpclient.Fetcher
	url     string
	timeout time.Duration
	now     func() time.Time
	logger  logger.Logger
}

// NewChecker creates a Checker for the mirror's role_pile.json
func NewChecker(client httpclient.Fetcher, cfg config.MirrorConfig, timeout time.Duration, log logger.Logger) *Checker {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Checker{
		client:  client,
		url:     cfg.ManifestURL(),
		timeout: timeout,
		now:     time.Now,
		logger:  log.WithField("component", "checker"),
	}
}

// WithClock replaces the time source
func (c *Checker) WithClock(now func() time.Time) *Checker {
	c.now = now
	return c
}

// Check fetches the remote manifest and compares its timestamp to lastUpdated
func (c *Checker) Check(ctx context.Context, lastUpdated string) CheckResult {
	var doc manifestDocument
	if err := c.client.GetJSON(ctx, c.url, c.timeout, &doc); err != nil {
		c.logger.WithError(err).Error("Update check failed")
		return CheckResult{Status: CheckFailed, Err: err}
	}

	if doc.LastUpdated == "" {
		ts := c.now().UTC().Format(time.RFC3339)
		c.logger.WarnWithFields("Remote manifest has no timestamp, syncing anyway", map[string]interface{}{
			"assumed_timestamp": ts,
		})
		return CheckResult{Status: Stale, RemoteTimestamp: ts, MissingTimestamp: true}
	}

	fields := map[string]interface{}{
		"remote": doc.LastUpdated,
		"local":  lastUpdated,
	}
	if doc.LastUpdated == lastUpdated {
		c.logger.InfoWithFields("No new update", fields)
		return CheckResult{Status: Fresh, RemoteTimestamp: doc.LastUpdated}
	}

	c.logger.InfoWithFields("Update found", fields)
	return CheckResult{Status: Stale, RemoteTimestamp: doc.LastUpdated}
}
