package hakush

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rolesync/pkg/config"
	errs "rolesync/pkg/errors"
	"rolesync/pkg/httpclient"
	"rolesync/pkg/logger"
	"rolesync/pkg/ratelimit"
)

type fakeAPI struct {
	mu     sync.Mutex
	routes map[string]string
	status map[string]int
	hits   []string
}

func (a *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	a.hits = append(a.hits, r.URL.Path)
	a.mu.Unlock()

	if code, ok := a.status[r.URL.Path]; ok {
		w.WriteHeader(code)
		return
	}
	body, ok := a.routes[r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	_, _ = w.Write([]byte(body))
}

func newFetcher(t *testing.T, api *fakeAPI, locales ...string) (*Fetcher, *logger.TestLogger) {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	tl := logger.NewTestLogger()
	cfg := config.DefaultConfig().Hakush
	cfg.BaseURL = srv.URL + "/ww"
	cfg.Locales = locales

	client := httpclient.New(httpclient.Options{Logger: logger.NewNopLogger()})
	f := NewFetcher(client, cfg, time.Second, tl).WithLimiter(ratelimit.Unlimited{})
	return f, tl
}

func TestFetchRosterMergesLocales(t *testing.T) {
	api := &fakeAPI{routes: map[string]string{
		"/ww/data/en/character.json":      `{"1205": "Changli", "1102": {"name": "Sanhua"}, "9": {"rarity": 5}}`,
		"/ww/data/zh-Hans/character.json": `{"1102": "散华", "1205": {"Name": "长离"}}`,
		"/ww/data/ja/character.json":      `{"1102": "散華"}`,
		"/ww/data/en/character/1102.json": `{"Background": "/Game/Aki/UI/RolePile/T_1102.T_1102", "rank": 4, "element": "Glacio"}`,
		"/ww/data/en/character/1205.json": `{"background": "/Game/Aki/UI/RolePile/T_1205.T_1205", "icon": null}`,
	}}
	f, tl := newFetcher(t, api, "en", "zh-Hans", "ja")

	roster, err := f.FetchRoster(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"1102", "1205"}, roster.IDs())

	sanhua, _ := roster.Get("1102")
	assert.Equal(t, "Sanhua", sanhua.String("en"))
	assert.Equal(t, "散华", sanhua.String("zh-Hans"))
	assert.Equal(t, "散華", sanhua.String("ja"))
	assert.Equal(t, "/Game/Aki/UI/RolePile/T_1102.T_1102", sanhua.String("background"))
	rank, ok := sanhua.Get("rank")
	require.True(t, ok)
	assert.Equal(t, "4", string(rank))

	changli, _ := roster.Get("1205")
	assert.Equal(t, "长离", changli.String("zh-Hans"))
	_, hasIcon := changli.Get("icon")
	assert.False(t, hasIcon, "null attributes are dropped")

	assert.Empty(t, tl.GetMessagesByLevel("WARN"))
}

func TestFirstLocaleNameWins(t *testing.T) {
	api := &fakeAPI{routes: map[string]string{
		"/ww/data/en/character.json":   `{"1": "Rover"}`,
		"/ww/data/en/character/1.json": `{"background": "/Game/Aki/a.b"}`,
	}}
	f, _ := newFetcher(t, api, "en", "en")

	roster, err := f.FetchRoster(context.Background())
	require.NoError(t, err)
	c, _ := roster.Get("1")
	assert.Len(t, c.Fields, 2)
}

func TestMissingDetailIsAWarning(t *testing.T) {
	api := &fakeAPI{routes: map[string]string{
		"/ww/data/en/character.json":   `{"1": "Rover", "2": "Yangyang"}`,
		"/ww/data/en/character/2.json": `{"icon": "/Game/Aki/icon.png"}`,
	}}
	f, tl := newFetcher(t, api, "en")

	roster, err := f.FetchRoster(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, roster.Len())

	assert.True(t, tl.HasMessage("No detail document for character"))
	assert.True(t, tl.HasMessage("Character has no image reference"))
}

func TestFetchRosterFailures(t *testing.T) {
	t.Run("list unavailable", func(t *testing.T) {
		api := &fakeAPI{status: map[string]int{"/ww/data/en/character.json": http.StatusBadGateway}}
		f, _ := newFetcher(t, api, "en")

		_, err := f.FetchRoster(context.Background())
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.ErrorTypeServerError))
	})

	t.Run("detail server error", func(t *testing.T) {
		api := &fakeAPI{
			routes: map[string]string{"/ww/data/en/character.json": `{"1": "Rover"}`},
			status: map[string]int{"/ww/data/en/character/1.json": http.StatusInternalServerError},
		}
		f, _ := newFetcher(t, api, "en")

		_, err := f.FetchRoster(context.Background())
		assert.Error(t, err)
	})

	t.Run("empty roster", func(t *testing.T) {
		api := &fakeAPI{routes: map[string]string{"/ww/data/en/character.json": `{}`}}
		f, _ := newFetcher(t, api, "en")

		_, err := f.FetchRoster(context.Background())
		assert.Error(t, err)
	})

	t.Run("malformed list", func(t *testing.T) {
		api := &fakeAPI{routes: map[string]string{"/ww/data/en/character.json": `["1"]`}}
		f, _ := newFetcher(t, api, "en")

		_, err := f.FetchRoster(context.Background())
		assert.True(t, errs.Is(err, errs.ErrorTypeParsing))
	})
}

func TestCallsArePaced(t *testing.T) {
	api := &fakeAPI{routes: map[string]string{
		"/ww/data/en/character.json":   `{"1": "Rover"}`,
		"/ww/data/en/character/1.json": `{"background": "/Game/Aki/a.b"}`,
	}}
	f, _ := newFetcher(t, api, "en")

	var waits int
	f.WithLimiter(countingLimiter{n: &waits})

	_, err := f.FetchRoster(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, waits)
	assert.Len(t, api.hits, 2)
}

type countingLimiter struct{ n *int }

func (c countingLimiter) Wait(ctx context.Context) error { *c.n++; return ctx.Err() }
func (c countingLimiter) Reset()                         {}

func TestImageURL(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{
			"/Game/Aki/UI/UIResources/Common/Image/RolePile/T_RolePile_1102.T_RolePile_1102",
			"https://api.hakush.in/ww/UI/UIResources/Common/Image/RolePile/T_RolePile_1102.webp",
		},
		{"UI/Pile/x.png", "https://api.hakush.in/ww/UI/Pile/x.webp"},
		{"/Other/Root/y", "https://api.hakush.in/ww/Other/Root/y.webp"},
	}
	for _, tt := range tests {
		got, err := ImageURL("https://api.hakush.in/ww/", tt.ref)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := ImageURL("https://api.hakush.in/ww", ".png")
	assert.True(t, errs.Is(err, errs.ErrorTypeMissingField))
}

func TestURLs(t *testing.T) {
	cfg := config.DefaultConfig().Hakush
	f := NewFetcher(nil, cfg, time.Second, logger.NewNopLogger())

	assert.Equal(t, "https://api.hakush.in/ww/data/zh-Hans/character.json", f.ListURL("zh-Hans"))
	assert.Equal(t, "https://api.hakush.in/ww/data/en/character/1102.json", f.DetailURL("1102"))
}
