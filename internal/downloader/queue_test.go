package downloader

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "rolesync/pkg/errors"
	"rolesync/pkg/logger"
	"rolesync/pkg/ratelimit"
	"rolesync/pkg/retry"
)

// MockClient serves canned bodies keyed by URL
type MockClient struct {
	mu        sync.Mutex
	bodies    map[string]string
	failFirst map[string]int
	calls     map[string]int
}

func NewMockClient(bodies map[string]string) *MockClient {
	return &MockClient{bodies: bodies, failFirst: map[string]int{}, calls: map[string]int{}}
}

func (m *MockClient) Get(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls[url]++
	if m.calls[url] <= m.failFirst[url] {
		return nil, errs.New(errs.ErrorTypeServerError, 503, nil, "busy")
	}
	body, ok := m.bodies[url]
	if !ok {
		return nil, errs.New(errs.ErrorTypeNotFound, 404, nil, "%s not found", url)
	}
	return []byte(body), nil
}

// MockStore keeps saved files in memory
type MockStore struct {
	files   map[string]string
	failFor string
}

func NewMockStore() *MockStore {
	return &MockStore{files: map[string]string{}}
}

func (s *MockStore) Save(name string, data []byte) error {
	if name == s.failFor {
		return errors.New("disk full")
	}
	s.files[name] = string(data)
	return nil
}

func TestQueueDownloadsInOrder(t *testing.T) {
	client := NewMockClient(map[string]string{
		"u/a": "A",
		"u/c": "C",
	})
	store := NewMockStore()
	q := New(client, store, Options{Source: "primary", Logger: logger.NewNopLogger()})

	summary, err := q.Run(context.Background(), []Job{
		{Name: "a.png", URL: "u/a"},
		{Name: "b.png", URL: "u/b"},
		{Name: "c.png", URL: "u/c"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Results, 3)
	assert.Equal(t, "b.png", summary.Results[1].Job.Name)
	assert.True(t, errs.Is(summary.Results[1].Error, errs.ErrorTypeNotFound))
	assert.Equal(t, map[string]string{"a.png": "A", "c.png": "C"}, store.files)
}

func TestQueueSaveFailureCounts(t *testing.T) {
	client := NewMockClient(map[string]string{"u/a": "A"})
	store := NewMockStore()
	store.failFor = "a.png"
	tl := logger.NewTestLogger()

	summary, err := New(client, store, Options{Logger: tl}).Run(context.Background(), []Job{{Name: "a.png", URL: "u/a"}})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.True(t, tl.HasMessage("Download failed"))
}

func TestQueueTransform(t *testing.T) {
	client := NewMockClient(map[string]string{"u/a": "webp"})
	store := NewMockStore()
	q := New(client, store, Options{
		Transform: func(b []byte) ([]byte, error) { return []byte(strings.ToUpper(string(b))), nil },
		Logger:    logger.NewNopLogger(),
	})

	summary, err := q.Run(context.Background(), []Job{{Name: "a.png", URL: "u/a"}})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, "WEBP", store.files["a.png"])
	assert.Equal(t, 4, summary.Results[0].Size)
}

func TestQueueRetries(t *testing.T) {
	client := NewMockClient(map[string]string{"u/a": "A"})
	client.failFirst["u/a"] = 2
	store := NewMockStore()

	var delays []time.Duration
	rc := &retry.Config{
		MaxAttempts: 4,
		Backoff:     retry.DefaultExponentialBackoff(),
		RetryIf:     retry.RetryAll,
		Sleep: func(_ context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		},
	}

	summary, err := New(client, store, Options{Retry: rc, Logger: logger.NewNopLogger()}).
		Run(context.Background(), []Job{{Name: "a.png", URL: "u/a"}, {Name: "x.png", URL: "u/missing"}})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 3, client.calls["u/a"])
	assert.Equal(t, 4, client.calls["u/missing"], "one try plus three retries")
	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second,
		time.Second, 2 * time.Second, 4 * time.Second,
	}, delays)
}

func TestQueuePausesOnlyForLargeBatches(t *testing.T) {
	bodies := map[string]string{}
	var jobs []Job
	for _, n := range []string{"1", "2", "3"} {
		bodies["u/"+n] = n
		jobs = append(jobs, Job{Name: n + ".png", URL: "u/" + n})
	}

	run := func(threshold int) int {
		pauses := 0
		q := New(NewMockClient(bodies), NewMockStore(), Options{
			Pause: ratelimit.ThresholdPause{
				Delay:     time.Millisecond,
				Threshold: threshold,
				Sleep: func(context.Context, time.Duration) error {
					pauses++
					return nil
				},
			},
			Logger: logger.NewNopLogger(),
		})
		_, err := q.Run(context.Background(), jobs)
		require.NoError(t, err)
		return pauses
	}

	assert.Equal(t, 0, run(3))
	assert.Equal(t, 3, run(2))
}

func TestQueueStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := New(NewMockClient(nil), NewMockStore(), Options{Logger: logger.NewNopLogger()}).
		Run(ctx, []Job{{Name: "a.png", URL: "u/a"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, summary.Results)
}

type recordingObserver struct {
	events []string
}

func (o *recordingObserver) JobStarted(source string, job Job, index, total int) {
	o.events = append(o.events, fmt.Sprintf("start %s %s %d/%d", source, job.Name, index, total))
}

func (o *recordingObserver) JobFinished(source string, result Result, index, total int) {
	o.events = append(o.events, fmt.Sprintf("done %s %s %d/%d %t", source, result.Job.Name, index, total, result.Success))
}

func TestQueueNotifiesObserver(t *testing.T) {
	obs := &recordingObserver{}
	q := New(NewMockClient(map[string]string{"u/a": "A"}), NewMockStore(), Options{
		Source:   "primary",
		Observer: obs,
		Logger:   logger.NewNopLogger(),
	})

	_, err := q.Run(context.Background(), []Job{{Name: "a.png", URL: "u/a"}, {Name: "b.png", URL: "u/b"}})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"start primary a.png 0/2",
		"done primary a.png 0/2 true",
		"start primary b.png 1/2",
		"done primary b.png 1/2 false",
	}, obs.events)
}
