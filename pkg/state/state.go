package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"rolesync/pkg/logger"
	"rolesync/pkg/storage"
)

// SyncStats are the counters of the last completed run
type SyncStats struct {
	ImagesDownloaded int    `json:"images_downloaded"`
	ImagesFailed     int    `json:"images_failed"`
	Timestamp        string `json:"timestamp"`
	RunID            string `json:"run_id,omitempty"`
}

// State is the persisted record of what the last runs saw
type State struct {
	// LastUpdated is the remote manifest timestamp of the last sync, nil
	// before the first one
	LastUpdated   *string    `json:"last_updated"`
	LastChecked   string     `json:"last_checked,omitempty"`
	LastSynced    string     `json:"last_synced,omitempty"`
	LastSyncStats *SyncStats `json:"last_sync_stats,omitempty"`

	// keys written by other tools are carried through untouched
	extra map[string]json.RawMessage
}

var knownKeys = []string{"last_updated", "last_checked", "last_synced", "last_sync_stats"}

// LastUpdatedValue returns LastUpdated or "" when unset
func (s State) LastUpdatedValue() string {
	if s.LastUpdated == nil {
		return ""
	}
	return *s.LastUpdated
}

// WithLastUpdated returns a copy of s with LastUpdated set to ts
func (s State) WithLastUpdated(ts string) State {
	s.LastUpdated = &ts
	return s
}

func (s State) MarshalJSON() ([]byte, error) {
	type plain State
	known, err := json.Marshal(plain(s))
	if err != nil {
		return nil, err
	}
	if len(s.extra) == 0 {
		return known, nil
	}

	merged := make(map[string]json.RawMessage, len(s.extra)+len(knownKeys))
	for k, v := range s.extra {
		merged[k] = v
	}
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	return json.Marshal(merged)
}

func (s *State) UnmarshalJSON(data []byte) error {
	type plain State
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range knownKeys {
		delete(all, k)
	}
	if len(all) > 0 {
		p.extra = all
	}

	*s = State(p)
	return nil
}

// FormatTime renders t the way every timestamp in the state file is written
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Store reads and writes the state file
type Store struct {
	path   string
	logger logger.Logger
}

// NewStore returns a Store for path
func NewStore(path string, log logger.Logger) *Store {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Store{path: path, logger: log}
}

// Path returns the state file location
func (s *Store) Path() string {
	return s.path
}

// Load returns the persisted state. A missing file yields the zero State;
// an unreadable or corrupt one is logged and also yields the zero State, so
// the next run behaves like a first run.
func (s *Store) Load() State {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.WithError(err).WarnWithFields("Failed to read state file", map[string]interface{}{
				"path": s.path,
			})
		}
		return State{}
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		s.logger.WithError(err).WarnWithFields("State file is corrupt, starting fresh", map[string]interface{}{
			"path": s.path,
		})
		return State{}
	}
	return st
}

// Save persists st with atomic replace
func (s *Store) Save(st State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := storage.WriteFileAtomic(s.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}

	s.logger.DebugWithFields("State saved", map[string]interface{}{
		"path":         s.path,
		"last_updated": st.LastUpdatedValue(),
	})
	return nil
}
