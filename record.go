package visualswe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Object is a JSON object whose key order is preserved.
type Object = orderedmap.OrderedMap[string, json.RawMessage]

// NewObject returns an empty ordered object.
func NewObject() *Object { return orderedmap.New[string, json.RawMessage]() }

// decodeObject parses b as a single JSON object, keeping key order.
func decodeObject(b []byte) (*Object, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' || !json.Valid(b) {
		return nil, ErrMalformedObject
	}
	obj := NewObject()
	if err := obj.UnmarshalJSON(b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedObject, err)
	}
	return obj, nil
}

// encodeValue marshals v without HTML escaping and without a trailing newline.
func encodeValue(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// appendObject writes o as a JSON object. Raw values are copied verbatim so
// nothing read from a corpus is re-escaped.
func appendObject(buf *bytes.Buffer, o *Object) error {
	if o == nil {
		buf.WriteString("null")
		return nil
	}
	buf.WriteByte('{')
	first := true
	for pair := o.Oldest(); pair != nil; pair = pair.Next() {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, err := encodeValue(pair.Key)
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if len(pair.Value) == 0 {
			buf.WriteString("null")
			continue
		}
		buf.Write(pair.Value)
	}
	buf.WriteByte('}')
	return nil
}

// renderValue formats a JSON value for display: strings are unquoted, any
// other value is shown as compact JSON.
func renderValue(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// Issue is one record of an input corpus. Every field of the source record
// is retained in order; InstanceID and ProblemStatement are decoded views.
type Issue struct {
	InstanceID       string
	ProblemStatement []string
	fields           *Object
}

// NewIssue builds an issue with just the two required fields.
func NewIssue(instanceID string, statement []string) *Issue {
	is := &Issue{InstanceID: instanceID, ProblemStatement: statement, fields: NewObject()}
	id, _ := encodeValue(instanceID)
	st, _ := encodeValue(statement)
	is.fields.Set("instance_id", id)
	is.fields.Set("problem_statement", st)
	return is
}

func (is *Issue) UnmarshalJSON(b []byte) error {
	obj, err := decodeObject(b)
	if err != nil {
		return fmt.Errorf("issue record: %w", err)
	}
	rawID, ok := obj.Get("instance_id")
	if !ok {
		return fmt.Errorf("issue record: missing instance_id")
	}
	if err := json.Unmarshal(rawID, &is.InstanceID); err != nil {
		return fmt.Errorf("issue record: instance_id: %w", err)
	}
	is.ProblemStatement = nil
	if rawPS, ok := obj.Get("problem_statement"); ok {
		rawPS = bytes.TrimSpace(rawPS)
		switch {
		case len(rawPS) > 0 && rawPS[0] == '"':
			// already collapsed into one string; treat as a single text segment
			var s string
			if err := json.Unmarshal(rawPS, &s); err != nil {
				return fmt.Errorf("issue %s: problem_statement: %w", is.InstanceID, err)
			}
			is.ProblemStatement = []string{s}
		case len(rawPS) > 0 && rawPS[0] == '[':
			if err := json.Unmarshal(rawPS, &is.ProblemStatement); err != nil {
				return fmt.Errorf("issue %s: problem_statement: %w", is.InstanceID, err)
			}
		}
	}
	is.fields = obj
	return nil
}

func (is *Issue) MarshalJSON() ([]byte, error) {
	if is.fields == nil {
		is.fields = NewIssue(is.InstanceID, is.ProblemStatement).fields
	}
	var buf bytes.Buffer
	if err := appendObject(&buf, is.fields); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Field returns the raw value of any source field.
func (is *Issue) Field(key string) (json.RawMessage, bool) {
	if is.fields == nil {
		return nil, false
	}
	return is.fields.Get(key)
}

// WithStatement returns a copy whose problem_statement is the collapsed
// string s. The receiver is left untouched.
func (is *Issue) WithStatement(s string) (*Issue, error) {
	raw, err := encodeValue(s)
	if err != nil {
		return nil, err
	}
	fields := NewObject()
	if is.fields != nil {
		for pair := is.fields.Oldest(); pair != nil; pair = pair.Next() {
			fields.Set(pair.Key, pair.Value)
		}
	} else {
		id, _ := encodeValue(is.InstanceID)
		fields.Set("instance_id", id)
	}
	fields.Set("problem_statement", raw)
	return &Issue{InstanceID: is.InstanceID, ProblemStatement: []string{s}, fields: fields}, nil
}

// StageItem is one per-media entry of a stage record.
type StageItem struct {
	ItemID         string `json:"item_id"`
	RawDescription string `json:"raw_description,omitempty"`
	Description    string `json:"description,omitempty"`
	Analysis       string `json:"analysis,omitempty"`
}

// item id aliases accepted on read, in priority order
var itemIDKeys = []string{"item_id", "image_id", "video_id"}

func (it *StageItem) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		// legacy step1 entries are bare strings
		*it = StageItem{}
		return json.Unmarshal(b, &it.RawDescription)
	}
	obj, err := decodeObject(b)
	if err != nil {
		return fmt.Errorf("stage item: %w", err)
	}
	*it = itemFromObject(obj)
	return nil
}

func itemFromObject(obj *Object) StageItem {
	var it StageItem
	for _, k := range itemIDKeys {
		if raw, ok := obj.Get(k); ok {
			it.ItemID = renderValue(raw)
			break
		}
	}
	if raw, ok := obj.Get("raw_description"); ok {
		it.RawDescription = renderValue(raw)
	}
	if raw, ok := obj.Get("description"); ok {
		it.Description = renderValue(raw)
	}
	if raw, ok := obj.Get("analysis"); ok {
		it.Analysis = renderValue(raw)
	}
	return it
}

// RawDescriptionRecord is a step1 record.
type RawDescriptionRecord struct {
	InstanceID string      `json:"instance_id"`
	Items      []StageItem `json:"raw_description_list"`
}

// DescriptionRecord is a step2 record; the contextual-description and
// analysis corpora share the shape.
type DescriptionRecord struct {
	InstanceID string      `json:"instance_id"`
	Items      []StageItem `json:"description_list"`
}

// SummaryRecord is a step3 record. Summary keeps the model's key order.
type SummaryRecord struct {
	InstanceID string
	Summary    *Object
}

func (s *SummaryRecord) UnmarshalJSON(b []byte) error {
	var wire struct {
		InstanceID string          `json:"instance_id"`
		Summary    json.RawMessage `json:"structure_problem"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	s.InstanceID = wire.InstanceID
	s.Summary = nil
	if len(wire.Summary) == 0 || string(bytes.TrimSpace(wire.Summary)) == "null" {
		return nil
	}
	obj, err := decodeObject(wire.Summary)
	if err != nil {
		return fmt.Errorf("summary %s: %w", s.InstanceID, err)
	}
	s.Summary = obj
	return nil
}

func (s SummaryRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	id, err := encodeValue(s.InstanceID)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`{"instance_id":`)
	buf.Write(id)
	buf.WriteString(`,"structure_problem":`)
	if err := appendObject(&buf, s.Summary); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func indexLabel(i int) string { return strconv.Itoa(i) }
