package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"rolesync/pkg/logger"
	"rolesync/pkg/metadata"
	"rolesync/pkg/state"
	"rolesync/pkg/storage"
)

const (
	// Info is the fixed description carried by every manifest
	Info = "Wuthering Waves Role Data"
	// StatusOK is the status value of a generated manifest
	StatusOK = 200
)

// excluded are character fields that are not locale names
var excluded = map[string]bool{
	"icon":       true,
	"background": true,
	"rank":       true,
	"weapon":     true,
	"element":    true,
	"desc":       true,
}

// renamed maps locale codes to the short code used in the output
var renamed = map[string]string{
	"zh-Hans": "zh",
}

// Entry is one character in the manifest. Fields keep the order of the
// character file.
type Entry struct {
	ID string
	// URL is nil when no portrait exists on disk
	URL    *string
	Fields []metadata.Field
}

// MarshalJSON writes id, url, then the name fields in order
func (e Entry) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	id, err := json.Marshal(e.ID)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`"id":`)
	buf.Write(id)

	buf.WriteString(`,"url":`)
	if e.URL == nil {
		buf.WriteString("null")
	} else {
		u, err := json.Marshal(*e.URL)
		if err != nil {
			return nil, err
		}
		buf.Write(u)
	}

	for _, f := range e.Fields {
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(f.Value)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Manifest is the document written to role.json
type Manifest struct {
	Status    int     `json:"status"`
	Info      string  `json:"info"`
	Timestamp string  `json:"timestamp"`
	Data      []Entry `json:"data"`
}

// Images reports which portraits exist locally
type Images interface {
	Exists(name string) bool
}

// Generator joins the character file with the local portraits
type Generator struct {
	metadataFile string
	images       Images
	urlPrefix    string
	now          func() time.Time
	logger       logger.Logger
}

// NewGenerator creates a Generator. urlPrefix is prepended to the portrait
// file name, e.g. "src/role/".
func NewGenerator(metadataFile string, images Images, urlPrefix string, log logger.Logger) *Generator {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Generator{
		metadataFile: metadataFile,
		images:       images,
		urlPrefix:    urlPrefix,
		now:          time.Now,
		logger:       log.WithField("component", "manifest"),
	}
}

// WithClock replaces the time source, for tests
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Build reads the character file and assembles the manifest
func (g *Generator) Build() (*Manifest, error) {
	roster, err := metadata.Load(g.metadataFile)
	if err != nil {
		return nil, err
	}

	m := &Manifest{
		Status:    StatusOK,
		Info:      Info,
		Timestamp: state.FormatTime(g.now()),
		Data:      make([]Entry, 0, roster.Len()),
	}

	missing := 0
	for _, c := range roster.Characters() {
		entry := g.entry(c)
		if entry.URL == nil {
			missing++
		}
		m.Data = append(m.Data, entry)
	}

	g.logger.InfoWithFields("Manifest assembled", map[string]interface{}{
		"characters":     len(m.Data),
		"without_images": missing,
	})
	return m, nil
}

func (g *Generator) entry(c *metadata.Character) Entry {
	e := Entry{ID: c.ID}

	name := metadata.ImageFileName(c.ID)
	if storage.ValidateName(name) == nil && g.images.Exists(name) {
		u := g.urlPrefix + name
		e.URL = &u
	}

	seen := map[string]bool{"id": true, "url": true}
	for _, f := range c.Fields {
		if excluded[f.Key] {
			continue
		}
		key := f.Key
		if short, ok := renamed[key]; ok {
			key = short
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		e.Fields = append(e.Fields, metadata.Field{Key: key, Value: f.Value})
	}
	return e
}

// Encode renders the manifest as indented JSON with a trailing newline
func Encode(m *Manifest) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// Generate builds the manifest and atomically replaces path with it
func (g *Generator) Generate(path string) (*Manifest, error) {
	m, err := g.Build()
	if err != nil {
		return nil, err
	}

	data, err := Encode(m)
	if err != nil {
		return nil, err
	}
	if err := storage.WriteFileAtomic(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	g.logger.WithField("path", path).Info("Manifest written")
	return m, nil
}
