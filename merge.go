package visualswe

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// DefaultMergeOutput is the file MergeFiles writes when no output is named.
const DefaultMergeOutput = "data.json"

// MergeArrays concatenates a and b, keeping both orders. Elements are not
// inspected or copied.
func MergeArrays(a, b []json.RawMessage) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// MergeFiles writes the concatenation of two JSON array files to out.
func MergeFiles(path1, path2, out string) (int, error) {
	a, err := ReadRawArray(path1)
	if err != nil {
		return 0, err
	}
	b, err := ReadRawArray(path2)
	if err != nil {
		return 0, err
	}
	if out == "" {
		out = DefaultMergeOutput
	}
	merged := MergeArrays(a, b)
	if err := WriteJSON(out, merged); err != nil {
		return 0, fmt.Errorf("write %s: %w", out, err)
	}
	slog.Debug("Merged corpora", "first", len(a), "second", len(b), "output", out)
	return len(merged), nil
}
