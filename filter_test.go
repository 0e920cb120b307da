package visualswe

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterIssues(t *testing.T) {
	issues := []*Issue{NewIssue("a", nil), NewIssue("b", nil), NewIssue("c", nil)}

	got, missing := FilterIssues(issues, []string{"c", "a", "zz", "zz"})
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].InstanceID)
	assert.Equal(t, "c", got[1].InstanceID)
	assert.Equal(t, []string{"zz"}, missing)
}

func TestFilterFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.json")
	out := filepath.Join(dir, "out.json")
	writeTestFile(t, in, `[{"instance_id":"a","problem_statement":["1"]},{"instance_id":"b","problem_statement":["2"]}]`)

	n, err := FilterFile(in, out, []string{"b"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	issues, err := ReadIssues(out)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "b", issues[0].InstanceID)

	_, err = FilterFile(in, filepath.Join(dir, "none.json"), []string{"b", "q"})
	assert.ErrorIs(t, err, ErrMissingRecord)
	assert.NoFileExists(t, filepath.Join(dir, "none.json"))
}
