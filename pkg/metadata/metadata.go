package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	errs "rolesync/pkg/errors"
	"rolesync/pkg/storage"
)

// Field is one key of a character record. Values are kept as raw JSON so
// fields this tool does not interpret pass through unchanged.
type Field struct {
	Key   string
	Value json.RawMessage
}

// Character is one entry of the id2role file: locale names plus optional
// attributes such as the image reference, in insertion order
type Character struct {
	ID     string
	Fields []Field
}

// Get returns the raw value of key
func (c *Character) Get(key string) (json.RawMessage, bool) {
	for _, f := range c.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// String returns the value of key when it is a JSON string
func (c *Character) String(key string) string {
	raw, ok := c.Get(key)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// StringFold is String with a case-insensitive key match
func (c *Character) StringFold(key string) string {
	for _, f := range c.Fields {
		if strings.EqualFold(f.Key, key) {
			var s string
			if err := json.Unmarshal(f.Value, &s); err == nil {
				return s
			}
		}
	}
	return ""
}

// Set stores value under key, replacing an existing value in place
func (c *Character) Set(key string, value interface{}) error {
	raw, err := encode(value)
	if err != nil {
		return fmt.Errorf("encode %s for character %s: %w", key, c.ID, err)
	}
	for i := range c.Fields {
		if c.Fields[i].Key == key {
			c.Fields[i].Value = raw
			return nil
		}
	}
	c.Fields = append(c.Fields, Field{Key: key, Value: raw})
	return nil
}

// SetIfAbsent stores value only when key is not present yet, and reports
// whether it did
func (c *Character) SetIfAbsent(key string, value interface{}) (bool, error) {
	if _, ok := c.Get(key); ok {
		return false, nil
	}
	return true, c.Set(key, value)
}

// Roster is an ordered set of characters keyed by id
type Roster struct {
	chars []*Character
	index map[string]int
}

// NewRoster returns an empty roster
func NewRoster() *Roster {
	return &Roster{index: make(map[string]int)}
}

// Len returns the number of characters
func (r *Roster) Len() int {
	return len(r.chars)
}

// Get returns the character with id
func (r *Roster) Get(id string) (*Character, bool) {
	i, ok := r.index[id]
	if !ok {
		return nil, false
	}
	return r.chars[i], true
}

// Ensure returns the character with id, appending an empty one if needed
func (r *Roster) Ensure(id string) *Character {
	if c, ok := r.Get(id); ok {
		return c
	}
	c := &Character{ID: id}
	r.index[id] = len(r.chars)
	r.chars = append(r.chars, c)
	return c
}

// Characters returns the characters in roster order
func (r *Roster) Characters() []*Character {
	out := make([]*Character, len(r.chars))
	copy(out, r.chars)
	return out
}

// IDs returns the ids in roster order
func (r *Roster) IDs() []string {
	ids := make([]string, len(r.chars))
	for i, c := range r.chars {
		ids[i] = c.ID
	}
	return ids
}

// SortByID orders characters by numeric id. Ids that are not integers sort
// after the numeric ones, lexically.
func (r *Roster) SortByID() {
	sort.SliceStable(r.chars, func(i, j int) bool {
		return lessID(r.chars[i].ID, r.chars[j].ID)
	})
	for i, c := range r.chars {
		r.index[c.ID] = i
	}
}

func lessID(a, b string) bool {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}

// MarshalJSON writes the roster as an object keyed by id, preserving both
// character order and field order
func (r *Roster) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.chars {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeKey(&buf, c.ID)
		buf.WriteByte('{')
		for j, f := range c.Fields {
			if j > 0 {
				buf.WriteByte(',')
			}
			writeKey(&buf, f.Key)
			buf.Write(f.Value)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeKey(buf *bytes.Buffer, key string) {
	k, _ := encode(key)
	buf.Write(k)
	buf.WriteByte(':')
}

// encode marshals v without HTML escaping so names stay readable
func encode(v interface{}) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON reads an object keyed by id, keeping file order. Each value
// must itself be an object.
func (r *Roster) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}

	out := NewRoster()
	for dec.More() {
		id, err := readKey(dec)
		if err != nil {
			return err
		}
		c := out.Ensure(id)
		c.Fields = nil
		if err := expectDelim(dec, '{'); err != nil {
			return fmt.Errorf("character %s: %w", id, err)
		}
		for dec.More() {
			key, err := readKey(dec)
			if err != nil {
				return fmt.Errorf("character %s: %w", id, err)
			}
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return fmt.Errorf("character %s field %s: %w", id, key, err)
			}
			c.Fields = append(c.Fields, Field{Key: key, Value: raw})
		}
		if err := expectDelim(dec, '}'); err != nil {
			return err
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return err
	}

	*r = *out
	return nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", tok)
	}
	return key, nil
}

// Load reads the id2role file at path
func Load(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read character file: %w", err)
	}

	r := NewRoster()
	if err := json.Unmarshal(data, r); err != nil {
		return nil, errs.New(errs.ErrorTypeParsing, 0, err, "invalid character file %s", path)
	}
	return r, nil
}

// Save writes the roster to path as indented JSON with atomic replace
func Save(path string, r *Roster) error {
	compact, err := r.MarshalJSON()
	if err != nil {
		return err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "  "); err != nil {
		return fmt.Errorf("failed to format character file: %w", err)
	}
	out.WriteByte('\n')

	if err := storage.WriteFileAtomic(path, out.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to save character file: %w", err)
	}
	return nil
}

// ImageFileName is the portrait file name for a character id
func ImageFileName(id string) string {
	return "role_pile_" + id + ".png"
}
