package visualswe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ReadJSON decodes a JSON array corpus into records of type T.
func ReadJSON[T any](path string) ([]T, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}
	var out []T
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode corpus %s: %w", path, err)
	}
	return out, nil
}

// ReadIssues loads an input corpus of issue records.
func ReadIssues(path string) ([]*Issue, error) {
	issues, err := ReadJSON[*Issue](path)
	if err != nil {
		return nil, err
	}
	out := issues[:0]
	for _, is := range issues {
		if is != nil {
			out = append(out, is)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyCorpus)
	}
	return out, nil
}

// ReadRawArray loads a JSON array without interpreting its elements.
func ReadRawArray(path string) ([]json.RawMessage, error) {
	return ReadJSON[json.RawMessage](path)
}

// MarshalIndent renders v with 4-space indentation, non-ASCII text kept as is
// and HTML characters left unescaped.
func MarshalIndent(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteJSON replaces path with the JSON rendering of v. The data goes to a
// temp file in the same directory first so readers never see a partial file.
func WriteJSON(path string, v any) error {
	b, err := MarshalIndent(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	_ = os.Chmod(tmpPath, 0o644)

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// LoadJoiner reads step1.json, step2_des.json, step2_analysis.json and
// step3.json from folder and indexes them.
func LoadJoiner(folder string) (*Joiner, error) {
	raw, err := ReadJSON[RawDescriptionRecord](filepath.Join(folder, StageRawDescription.FileName()))
	if err != nil {
		return nil, err
	}
	desc, err := ReadJSON[DescriptionRecord](filepath.Join(folder, StageDescription.FileName()))
	if err != nil {
		return nil, err
	}
	analysis, err := ReadJSON[DescriptionRecord](filepath.Join(folder, StageAnalysis.FileName()))
	if err != nil {
		return nil, err
	}
	summaries, err := ReadJSON[SummaryRecord](filepath.Join(folder, StageSummary.FileName()))
	if err != nil {
		return nil, err
	}
	return NewJoiner(raw, desc, analysis, summaries), nil
}
