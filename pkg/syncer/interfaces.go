package syncer

import (
	"context"

	"rolesync/internal/downloader"
	"rolesync/pkg/imagesync"
	"rolesync/pkg/manifest"
	"rolesync/pkg/metadata"
	"rolesync/pkg/mirror"
	"rolesync/pkg/state"
)

// UpdateChecker compares the mirror's timestamp with the last synced one
type UpdateChecker interface {
	Check(ctx context.Context, lastUpdated string) mirror.CheckResult
}

// RosterFetcher builds the character list from the data API
type RosterFetcher interface {
	FetchRoster(ctx context.Context) (*metadata.Roster, error)
}

// PrimarySyncer mirrors portraits from the primary source
type PrimarySyncer interface {
	Sync(ctx context.Context) (imagesync.PrimaryResult, error)
}

// FallbackSyncer fills in portraits the primary source could not provide
type FallbackSyncer interface {
	Sync(ctx context.Context) (imagesync.FallbackResult, error)
}

// ManifestWriter regenerates the output manifest at path
type ManifestWriter interface {
	Generate(path string) (*manifest.Manifest, error)
}

// StateSaver persists the sync state
type StateSaver interface {
	Save(st state.State) error
}

// Observer follows a run as it happens, e.g. to drive a live display.
// Calls arrive on the goroutine running the sync.
type Observer interface {
	downloader.Observer
	PhaseStarted(p Phase)
}

type observable interface {
	SetObserver(o downloader.Observer)
}
