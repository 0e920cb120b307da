package visualswe

import "fmt"

// FilterIssues keeps the issues whose id is in ids, in corpus order. The
// second result lists requested ids that were not found.
func FilterIssues(issues []*Issue, ids []string) ([]*Issue, []string) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	seen := make(map[string]bool, len(ids))
	out := make([]*Issue, 0, len(ids))
	for _, is := range issues {
		if want[is.InstanceID] {
			out = append(out, is)
			seen[is.InstanceID] = true
		}
	}
	var missing []string
	for _, id := range ids {
		if !seen[id] {
			missing = append(missing, id)
			seen[id] = true
		}
	}
	return out, missing
}

// FilterFile writes the selected issues of in to out. Nothing is written
// unless every requested id is present.
func FilterFile(in, out string, ids []string) (int, error) {
	issues, err := ReadIssues(in)
	if err != nil {
		return 0, err
	}
	selected, missing := FilterIssues(issues, ids)
	if len(missing) > 0 {
		return 0, fmt.Errorf("%w: %v", ErrMissingRecord, missing)
	}
	if err := WriteJSON(out, selected); err != nil {
		return 0, err
	}
	return len(selected), nil
}
