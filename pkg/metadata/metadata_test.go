package metadata

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "rolesync/pkg/errors"
)

func TestRosterPreservesOrder(t *testing.T) {
	input := `{
  "1205": {"en": "Changli", "background": "/Game/Aki/UI/a.png"},
  "1102": {"zh-Hans": "散华", "en": "Sanhua"}
}`
	r := NewRoster()
	require.NoError(t, json.Unmarshal([]byte(input), r))

	assert.Equal(t, []string{"1205", "1102"}, r.IDs())
	c, ok := r.Get("1102")
	require.True(t, ok)
	assert.Equal(t, "zh-Hans", c.Fields[0].Key)
	assert.Equal(t, "散华", c.String("zh-Hans"))

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t,
		`{"1205":{"en":"Changli","background":"/Game/Aki/UI/a.png"},"1102":{"zh-Hans":"散华","en":"Sanhua"}}`,
		string(out))
}

func TestSortByID(t *testing.T) {
	r := NewRoster()
	for _, id := range []string{"1205", "abc", "99", "1102", "aaa"} {
		r.Ensure(id)
	}
	r.SortByID()

	assert.Equal(t, []string{"99", "1102", "1205", "aaa", "abc"}, r.IDs())
	c, ok := r.Get("1205")
	require.True(t, ok)
	assert.Equal(t, "1205", c.ID, "index is rebuilt after sorting")
}

func TestCharacterFields(t *testing.T) {
	c := &Character{ID: "1"}

	set, err := c.SetIfAbsent("en", "Rover")
	require.NoError(t, err)
	assert.True(t, set)

	set, err = c.SetIfAbsent("en", "Other")
	require.NoError(t, err)
	assert.False(t, set, "first name wins")
	assert.Equal(t, "Rover", c.String("en"))

	require.NoError(t, c.Set("Background", "/Game/Aki/x.png"))
	require.NoError(t, c.Set("rank", 5))
	assert.Equal(t, "/Game/Aki/x.png", c.StringFold("background"))
	assert.Equal(t, "", c.String("rank"), "non-string values are not names")

	require.NoError(t, c.Set("rank", 4))
	assert.Len(t, c.Fields, 3, "Set replaces in place")

	require.NoError(t, c.Set("en", "A & B"))
	raw, _ := c.Get("en")
	assert.Equal(t, `"A & B"`, string(raw))
}

func TestUnmarshalRejectsBadShapes(t *testing.T) {
	for _, input := range []string{`[]`, `{"1": "name"}`, `{"1": {"en": }}`, `{"1": {}`} {
		assert.Error(t, json.Unmarshal([]byte(input), NewRoster()), input)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "src", "id2role.json")

	r := NewRoster()
	c := r.Ensure("101")
	require.NoError(t, c.Set("en", "Alice"))
	require.NoError(t, c.Set("zh-Hans", "爱丽丝"))
	require.NoError(t, Save(path, r))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"101\": {\n    \"en\": \"Alice\"")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"101"}, loaded.IDs())
	got, _ := loaded.Get("101")
	assert.Equal(t, "爱丽丝", got.String("zh-Hans"))
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{oops"), 0o644))
	_, err = Load(bad)
	assert.True(t, errs.Is(err, errs.ErrorTypeParsing))
}
