package mirror

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rolesync/pkg/config"
	errs "rolesync/pkg/errors"
	"rolesync/pkg/httpclient"
	"rolesync/pkg/logger"
)

const (
	manifestPath = "/owner/assets/main/data/resource/role_pile.json"
	contentsPath = "/repos/owner/assets/contents/data/resource/role_pile"
)

type route struct {
	status int
	body   string
}

func newMirror(t *testing.T, routes map[string]route) (config.MirrorConfig, httpclient.Fetcher) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rt, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if rt.status != 0 {
			w.WriteHeader(rt.status)
		}
		_, _ = w.Write([]byte(rt.body))
	}))
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig().Mirror
	cfg.Repository = "owner/assets"
	cfg.RawBaseURL = srv.URL
	cfg.APIBaseURL = srv.URL
	return cfg, httpclient.New(httpclient.Options{Logger: logger.NewNopLogger()})
}

func TestCheck(t *testing.T) {
	cfg, client := newMirror(t, map[string]route{
		manifestPath: {body: `{"last_updated": "2024-05-01T00:00:00Z", "files": []}`},
	})
	c := NewChecker(client, cfg, time.Second, logger.NewNopLogger())

	fresh := c.Check(context.Background(), "2024-05-01T00:00:00Z")
	assert.Equal(t, Fresh, fresh.Status)
	assert.Equal(t, "2024-05-01T00:00:00Z", fresh.RemoteTimestamp)

	stale := c.Check(context.Background(), "2024-04-01T00:00:00Z")
	assert.Equal(t, Stale, stale.Status)
	assert.Equal(t, "2024-05-01T00:00:00Z", stale.RemoteTimestamp)

	first := c.Check(context.Background(), "")
	assert.Equal(t, Stale, first.Status)
}

func TestCheckWithoutTimestamp(t *testing.T) {
	cfg, client := newMirror(t, map[string]route{
		manifestPath: {body: `{"files": []}`},
	})
	now := time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)
	c := NewChecker(client, cfg, time.Second, logger.NewNopLogger()).WithClock(func() time.Time { return now })

	res := c.Check(context.Background(), "")
	assert.Equal(t, Stale, res.Status)
	assert.True(t, res.MissingTimestamp)
	assert.Equal(t, "2024-06-01T08:30:00Z", res.RemoteTimestamp)
}

func TestCheckFailures(t *testing.T) {
	tests := map[string]route{
		"server error": {status: http.StatusInternalServerError},
		"bad json":     {body: `<html>`},
	}
	for name, rt := range tests {
		t.Run(name, func(t *testing.T) {
			cfg, client := newMirror(t, map[string]route{manifestPath: rt})
			res := NewChecker(client, cfg, time.Second, logger.NewNopLogger()).Check(context.Background(), "x")

			assert.Equal(t, CheckFailed, res.Status)
			assert.Error(t, res.Err)
			assert.Empty(t, res.RemoteTimestamp)
		})
	}
}

func TestListFromManifest(t *testing.T) {
	cfg, client := newMirror(t, map[string]route{
		manifestPath: {body: `{
			"last_updated": "2024-05-01T00:00:00Z",
			"files": [
				{"name": "role_pile_1102.png", "size": 2048},
				{"name": "role_pile_0.png", "size": 0},
				{"name": "no_size.png"},
				{"size": 10}
			]}`},
	})
	l := NewLister(client, cfg, time.Second, logger.NewNopLogger())

	listing, err := l.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceManifest, listing.Source)
	require.Len(t, listing.Files, 2)

	assert.Equal(t, RemoteFile{
		Name:      "role_pile_1102.png",
		URL:       cfg.RawBaseURL + "/owner/assets/main/data/resource/role_pile/role_pile_1102.png",
		Size:      2048,
		SizeKnown: true,
	}, listing.Files[0])
	assert.True(t, listing.Files[1].SizeKnown, "a zero size from the manifest is still a size")
}

func TestListFallsBackToContentsAPI(t *testing.T) {
	for name, manifest := range map[string]route{
		"not found": {status: http.StatusNotFound},
		"bad json":  {body: `{"files": [`},
	} {
		t.Run(name, func(t *testing.T) {
			cfg, client := newMirror(t, map[string]route{
				manifestPath: manifest,
				contentsPath: {body: `[
					{"type": "file", "name": "role_pile_1.png", "size": 10, "download_url": "https://raw.example/role_pile_1.png"},
					{"type": "file", "name": "role_pile_2.png", "size": 0, "download_url": "https://raw.example/role_pile_2.png"},
					{"type": "dir", "name": "old", "download_url": null},
					{"type": "file", "name": "no_url.png", "size": 5, "download_url": null}
				]`},
			})
			tl := logger.NewTestLogger()
			l := NewLister(client, cfg, time.Second, tl)

			listing, err := l.List(context.Background())
			require.NoError(t, err)
			assert.Equal(t, SourceContents, listing.Source)
			require.Len(t, listing.Files, 2)
			assert.True(t, listing.Files[0].SizeKnown)
			assert.False(t, listing.Files[1].SizeKnown)
			assert.Equal(t, "https://raw.example/role_pile_2.png", listing.Files[1].URL)
			assert.Len(t, tl.GetMessagesByLevel("WARN"), 1)
		})
	}
}

func TestListBothSourcesFail(t *testing.T) {
	cfg, client := newMirror(t, map[string]route{
		manifestPath: {status: http.StatusBadGateway},
		contentsPath: {body: `{"message": "API rate limit exceeded"}`},
	})
	l := NewLister(client, cfg, time.Second, logger.NewNopLogger())

	_, err := l.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API rate limit exceeded")
}

func TestContentsAPIBadPayload(t *testing.T) {
	cfg, client := newMirror(t, map[string]route{
		contentsPath: {body: `"nope"`},
	})
	l := NewLister(client, cfg, time.Second, logger.NewNopLogger())

	_, err := l.FromContents(context.Background())
	assert.True(t, errs.Is(err, errs.ErrorTypeParsing))
}

func TestCheckStatusString(t *testing.T) {
	assert.Equal(t, "fresh", Fresh.String())
	assert.Equal(t, "stale", Stale.String())
	assert.Equal(t, "check_failed", CheckFailed.String())
}
