package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"rolesync/pkg/config"
	errs "rolesync/pkg/errors"
	"rolesync/pkg/httpclient"
	"rolesync/pkg/logger"
)

const (
	SourceManifest = "manifest"
	SourceContents = "contents_api"
)

// RemoteFile is one image offered by the mirror
type RemoteFile struct {
	Name string
	URL  string
	Size int64
	// SizeKnown is false when the listing gave no usable size; such files
	// are always downloaded
	SizeKnown bool
}

// Listing is the set of images the mirror currently offers
type Listing struct {
	Source      string
	LastUpdated string
	Files       []RemoteFile
}

type contentsItem struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"download_url"`
}

// Lister reads the mirror's image listing
type Lister struct {
	client      httpclient.Fetcher
	manifestURL string
	contentsURL string
	timeout     time.Duration
	logger      logger.Logger
}

// NewLister creates a Lister for the mirror described by cfg
func NewLister(client httpclient.Fetcher, cfg config.MirrorConfig, timeout time.Duration, log logger.Logger) *Lister {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Lister{
		client:      client,
		manifestURL: cfg.ManifestURL(),
		contentsURL: cfg.ContentsURL(),
		timeout:     timeout,
		logger:      log.WithField("component", "lister"),
	}
}

// List returns the manifest listing, or the contents API listing when the
// manifest cannot be fetched or parsed. An error means both sources failed.
func (l *Lister) List(ctx context.Context) (*Listing, error) {
	listing, err := l.FromManifest(ctx)
	if err == nil {
		return listing, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	l.logger.WithError(err).Warn("Manifest listing unavailable, falling back to contents API")
	listing, apiErr := l.FromContents(ctx)
	if apiErr != nil {
		return nil, fmt.Errorf("both listing sources failed: manifest: %v; contents API: %w", err, apiErr)
	}
	return listing, nil
}

// FromManifest reads role_pile.json. Entries without a name or size are
// skipped.
func (l *Lister) FromManifest(ctx context.Context) (*Listing, error) {
	var doc manifestDocument
	if err := l.client.GetJSON(ctx, l.manifestURL, l.timeout, &doc); err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(l.manifestURL, ".json")
	listing := &Listing{Source: SourceManifest, LastUpdated: doc.LastUpdated}
	for _, entry := range doc.Files {
		if entry.Name == "" || entry.Size == nil {
			continue
		}
		listing.Files = append(listing.Files, RemoteFile{
			Name:      entry.Name,
			URL:       base + "/" + url.PathEscape(entry.Name),
			Size:      *entry.Size,
			SizeKnown: true,
		})
	}

	l.logger.InfoWithFields("Image manifest fetched", map[string]interface{}{
		"files":        len(listing.Files),
		"last_updated": doc.LastUpdated,
	})
	return listing, nil
}

// FromContents reads the GitHub contents API listing of the image directory.
// Only files with a download URL are kept; a size of zero counts as unknown.
func (l *Lister) FromContents(ctx context.Context) (*Listing, error) {
	body, err := l.client.Get(ctx, l.contentsURL, l.timeout)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var apiErr struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(trimmed, &apiErr); err == nil && apiErr.Message != "" {
			return nil, errs.New(errs.ErrorTypeUnknown, 0, nil, "GitHub API error: %s", apiErr.Message)
		}
	}

	var items []contentsItem
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, errs.New(errs.ErrorTypeParsing, 0, err, "invalid contents listing from %s", l.contentsURL)
	}

	listing := &Listing{Source: SourceContents}
	for _, item := range items {
		if item.Type != "file" || item.DownloadURL == "" {
			continue
		}
		listing.Files = append(listing.Files, RemoteFile{
			Name:      item.Name,
			URL:       item.DownloadURL,
			Size:      item.Size,
			SizeKnown: item.Size > 0,
		})
	}

	l.logger.InfoWithFields("Contents API listing fetched", map[string]interface{}{
		"files": len(listing.Files),
	})
	return listing, nil
}
