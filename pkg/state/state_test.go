package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rolesync/pkg/logger"
)

func TestLoadMissingFile(t *testing.T) {
	tl := logger.NewTestLogger()
	s := NewStore(filepath.Join(t.TempDir(), "state.json"), tl)

	st := s.Load()
	assert.Nil(t, st.LastUpdated)
	assert.Equal(t, "", st.LastUpdatedValue())
	assert.Empty(t, tl.GetMessagesByLevel("WARN"), "a missing file is not worth a warning")
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	tl := logger.NewTestLogger()

	st := NewStore(path, tl).Load()
	assert.Nil(t, st.LastUpdated)
	assert.True(t, tl.HasMessage("State file is corrupt, starting fresh"))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".github", "asset_sync_state.json")
	s := NewStore(path, logger.NewNopLogger())

	st := State{
		LastChecked: "2024-05-01T10:00:00Z",
		LastSynced:  "2024-05-01T10:01:00Z",
		LastSyncStats: &SyncStats{
			ImagesDownloaded: 4,
			ImagesFailed:     1,
			Timestamp:        "2024-05-01T10:01:00Z",
			RunID:            "5c6e0d0c-1111-4e4e-9999-000000000000",
		},
	}.WithLastUpdated("2024-04-30T08:00:00Z")

	require.NoError(t, s.Save(st))
	loaded := s.Load()

	assert.Equal(t, "2024-04-30T08:00:00Z", loaded.LastUpdatedValue())
	assert.Equal(t, st.LastChecked, loaded.LastChecked)
	assert.Equal(t, *st.LastSyncStats, *loaded.LastSyncStats)
}

func TestFileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewStore(path, logger.NewNopLogger())

	require.NoError(t, s.Save(State{LastChecked: "2024-05-01T10:00:00Z"}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.JSONEq(t, `{"last_updated":null,"last_checked":"2024-05-01T10:00:00Z"}`, string(data))
}

func TestUnknownKeysSurvive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"last_updated":"a","custom":{"x":1}}`), 0o644))
	s := NewStore(path, logger.NewNopLogger())

	st := s.Load()
	st.LastChecked = "2024-05-01T10:00:00Z"
	require.NoError(t, s.Save(st))

	var raw map[string]interface{}
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, map[string]interface{}{"x": float64(1)}, raw["custom"])
	assert.Equal(t, "a", raw["last_updated"])
	assert.Equal(t, "2024-05-01T10:00:00Z", raw["last_checked"])
}

func TestWithLastUpdatedCopies(t *testing.T) {
	base := State{}.WithLastUpdated("one")
	next := base.WithLastUpdated("two")

	assert.Equal(t, "one", base.LastUpdatedValue())
	assert.Equal(t, "two", next.LastUpdatedValue())
}

func TestFormatTime(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CST", 8*3600))
	assert.Equal(t, "2024-05-01T04:00:00Z", FormatTime(ts))
}
