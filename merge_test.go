package visualswe

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeArrays(t *testing.T) {
	a := []json.RawMessage{json.RawMessage(`1`), json.RawMessage(`{"x":1}`)}
	b := []json.RawMessage{json.RawMessage(`"s"`)}

	got := MergeArrays(a, b)
	assert.Equal(t, []json.RawMessage{a[0], a[1], b[0]}, got)
	assert.Len(t, MergeArrays(nil, nil), 0)
}

func TestMergeFiles(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "images.json")
	p2 := filepath.Join(dir, "videos.json")
	out := filepath.Join(dir, "data.json")
	writeTestFile(t, p1, `[{"instance_id":"a","problem_statement":"x <b>"},{"instance_id":"b"}]`)
	writeTestFile(t, p2, `[{"instance_id":"a","extra":[1,2]}]`)

	n, err := MergeFiles(p1, p2, out)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var got []map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 3)
	// duplicates are kept and nothing is re-encoded
	assert.Equal(t, "a", got[0]["instance_id"])
	assert.Equal(t, "x <b>", got[0]["problem_statement"])
	assert.Equal(t, "a", got[2]["instance_id"])
	assert.NotContains(t, string(data), `\u003c`)
}

func TestMergeFiles_NotAnArray(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "a.json")
	p2 := filepath.Join(dir, "b.json")
	writeTestFile(t, p1, `[]`)
	writeTestFile(t, p2, `{"not":"array"}`)

	_, err := MergeFiles(p1, p2, filepath.Join(dir, "out.json"))
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "out.json"))
}
