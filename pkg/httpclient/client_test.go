package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "rolesync/pkg/errors"
	"rolesync/pkg/logger"
)

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestGetReturnsBody(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "rolesync-test", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("png-bytes"))
	})

	c := New(Options{UserAgent: "rolesync-test", Logger: logger.NewNopLogger()})
	body, err := c.Get(context.Background(), srv.URL+"/role_pile_1.png", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(body))
}

func TestGetStatusMapping(t *testing.T) {
	tests := []struct {
		status   int
		wantType errs.ErrorType
	}{
		{http.StatusNotFound, errs.ErrorTypeNotFound},
		{http.StatusForbidden, errs.ErrorTypeAuth},
		{http.StatusTooManyRequests, errs.ErrorTypeRateLimit},
		{http.StatusBadGateway, errs.ErrorTypeServerError},
		{http.StatusTeapot, errs.ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			c := New(Options{Logger: logger.NewNopLogger()})

			_, err := c.Get(context.Background(), srv.URL, time.Second)
			require.Error(t, err)
			assert.Equal(t, tt.wantType, errs.TypeOf(err))
			assert.Equal(t, tt.status, StatusCode(err))
		})
	}
}

func TestGetTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	c := New(Options{Logger: logger.NewNopLogger()})
	_, err := c.Get(context.Background(), srv.URL, 20*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeNetwork, errs.TypeOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, StatusCode(err))
}

func TestGetJSON(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			_, _ = w.Write([]byte("<html>"))
			return
		}
		_, _ = w.Write([]byte(`{"last_updated":"2024-05-01T00:00:00Z"}`))
	})
	c := New(Options{Logger: logger.NewNopLogger()})

	var out struct {
		LastUpdated string `json:"last_updated"`
	}
	require.NoError(t, c.GetJSON(context.Background(), srv.URL+"/ok", time.Second, &out))
	assert.Equal(t, "2024-05-01T00:00:00Z", out.LastUpdated)

	err := c.GetJSON(context.Background(), srv.URL+"/bad", time.Second, &out)
	assert.True(t, errs.Is(err, errs.ErrorTypeParsing))
}

func TestBearerTokenOnlyForTokenHost(t *testing.T) {
	var seen []string
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte("{}"))
	})
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	withHost := New(Options{Token: "ghp_secret", TokenHost: u.Host, Logger: logger.NewNopLogger()})
	otherHost := New(Options{Token: "ghp_secret", TokenHost: "api.github.com", Logger: logger.NewNopLogger()})

	_, err = withHost.Get(context.Background(), srv.URL, time.Second)
	require.NoError(t, err)
	_, err = otherHost.Get(context.Background(), srv.URL, time.Second)
	require.NoError(t, err)

	assert.Equal(t, []string{"Bearer ghp_secret", ""}, seen)
}

func TestRequestsAreLogged(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	tl := logger.NewTestLogger()
	c := New(Options{Logger: tl})

	_, _ = c.Get(context.Background(), srv.URL+"/missing", time.Second)

	warns := tl.GetMessagesByLevel("WARN")
	require.Len(t, warns, 1)
	assert.Equal(t, 404, warns[0].Fields["status_code"])
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "api.github.com", HostOf("https://api.github.com/repos/a/b"))
}
