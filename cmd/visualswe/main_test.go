package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", "", "--no-color"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestMergeCommand(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.json")
	b := filepath.Join(dir, "b.json")
	out := filepath.Join(dir, "data.json")
	writeFile(t, a, `[{"instance_id":"x"},{"instance_id":"y"}]`)
	writeFile(t, b, `[{"instance_id":"z"}]`)

	stdout, err := execute(t, "merge", "--file1", a, "--file2", b, "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "merged 3 records")

	var merged []map[string]string
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &merged))
	require.Len(t, merged, 3)
	assert.Equal(t, "x", merged[0]["instance_id"])
	assert.Equal(t, "z", merged[2]["instance_id"])
}

func TestMergeCommand_RequiresFiles(t *testing.T) {
	_, err := execute(t, "merge", "--file1", "only.json")
	assert.Error(t, err)
}

func TestFilterCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.json")
	out := filepath.Join(dir, "out.json")
	writeFile(t, in, `[
		{"instance_id":"a","problem_statement":["one"]},
		{"instance_id":"b","problem_statement":["two"]},
		{"instance_id":"c","problem_statement":["three"]}
	]`)

	_, err := execute(t, "filter", "--dataset", in, "--ids", "c, a", "--out", out)
	require.NoError(t, err)

	var got []map[string]any
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0]["instance_id"])
	assert.Equal(t, "c", got[1]["instance_id"])
}

func TestFilterCommand_MissingID(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.json")
	out := filepath.Join(dir, "out.json")
	writeFile(t, in, `[{"instance_id":"a","problem_statement":["one"]}]`)

	_, err := execute(t, "filter", "--dataset", in, "--ids", "a,zzz", "--out", out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zzz")
	assert.NoFileExists(t, out)
}

func TestAssembleCommand(t *testing.T) {
	dir := t.TempDir()
	dataset := filepath.Join(dir, "data.json")
	stages := filepath.Join(dir, "run")
	writeFile(t, dataset, `[{"instance_id":"i1","problem_statement":["Button is broken","http://x/a.png","see above"],"repo":"o/r"}]`)
	writeFile(t, filepath.Join(stages, "step1.json"),
		`[{"instance_id":"i1","raw_description_list":[{"item_id":"0","raw_description":"a button"}]}]`)
	writeFile(t, filepath.Join(stages, "step2_des.json"),
		`[{"instance_id":"i1","description_list":[{"image_id":"1","description":"the broken button"}]}]`)
	writeFile(t, filepath.Join(stages, "step2_analysis.json"),
		`[{"instance_id":"i1","description_list":[{"image_id":"1","analysis":"label overflows"}]}]`)
	writeFile(t, filepath.Join(stages, "step3.json"),
		`[{"instance_id":"i1","structure_problem":{"title":"Broken button"}}]`)

	stdout, err := execute(t, "assemble", "--dataset", dataset, "--in-folder", stages)
	require.NoError(t, err)
	assert.Contains(t, stdout, "1/1 succeeded")

	data, err := os.ReadFile(filepath.Join(stages, "data_with_image.json"))
	require.NoError(t, err)
	var got []map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 1)
	statement, ok := got[0]["problem_statement"].(string)
	require.True(t, ok)
	assert.Contains(t, statement, "Button is broken")
	assert.Contains(t, statement, "- **Image ID**: 1")
	assert.Contains(t, statement, "the broken button")
	assert.Contains(t, statement, "- **title**: Broken button")
	assert.Equal(t, "o/r", got[0]["repo"])
}

func TestContextualizeCommand_RejectsAspect(t *testing.T) {
	dir := t.TempDir()
	dataset := filepath.Join(dir, "data.json")
	writeFile(t, dataset, `[{"instance_id":"a","problem_statement":["one"]}]`)

	_, err := execute(t, "--model", "m", "--base-url", "http://127.0.0.1:1/v1",
		"contextualize", "--dataset", dataset, "--aspect", "colour")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aspect")
}

func TestReadIDs(t *testing.T) {
	ids, err := readIDs(" a, b ,,c ")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	path := filepath.Join(t.TempDir(), "ids.txt")
	writeFile(t, path, "x\n\ny\n")
	ids, err = readIDs("@" + path)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, ids)

	_, err = readIDs(" , ")
	assert.Error(t, err)
}

func TestDefaultOutFolder(t *testing.T) {
	assert.Equal(t, "Qwen2.5-VL-72B-Instruct", defaultOutFolder("Qwen/Qwen2.5-VL-72B-Instruct"))
	assert.Equal(t, "gpt-4o", defaultOutFolder("gpt-4o"))
	assert.Equal(t, "output", defaultOutFolder(""))
}
