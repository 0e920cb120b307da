package visualswe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// objectSpans returns the top-level balanced {...} spans of text, in order.
// Braces inside JSON strings do not count. When the last object never closes,
// its body is scanned again for the objects that did close; an unclosed
// object with nothing recoverable inside is an error.
func objectSpans(text string) ([]string, error) {
	var (
		spans    []string
		depth    int
		start    int
		inString bool
		escaped  bool
	)
	for i := 0; i < len(text); i++ {
		c := text[i]
		if depth > 0 && inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				spans = append(spans, text[start:i+1])
			}
		}
	}
	if depth > 0 {
		inner, err := objectSpans(text[start+1:])
		if err != nil {
			return nil, err
		}
		if len(inner) == 0 {
			return nil, fmt.Errorf("%w: unclosed object %q", ErrMalformedObject, preview(text[start:], 80))
		}
		spans = append(spans, inner...)
	}
	return spans, nil
}

// leafObjects flattens obj into the objects that hold no nested objects,
// walking values and arrays left to right.
func leafObjects(obj *Object) ([]*Object, error) {
	var (
		out    []*Object
		nested bool
	)
	for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
		found, err := nestedObjects(pair.Value)
		if err != nil {
			return nil, err
		}
		for _, child := range found {
			nested = true
			leaves, err := leafObjects(child)
			if err != nil {
				return nil, err
			}
			out = append(out, leaves...)
		}
	}
	if !nested {
		return []*Object{obj}, nil
	}
	return out, nil
}

// nestedObjects returns the objects directly contained in a value: the value
// itself when it is an object, or the objects reachable through arrays.
func nestedObjects(raw json.RawMessage) ([]*Object, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	switch raw[0] {
	case '{':
		obj, err := decodeObject(raw)
		if err != nil {
			return nil, err
		}
		return []*Object{obj}, nil
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return nil, ErrMalformedObject
		}
		var out []*Object
		for _, e := range elems {
			found, err := nestedObjects(e)
			if err != nil {
				return nil, err
			}
			out = append(out, found...)
		}
		return out, nil
	}
	return nil, nil
}

// ExtractObjects finds every JSON object embedded in free-form model output.
// Wrapper objects such as {"images": [{...}, {...}]} are flattened into their
// innermost objects. If any candidate fails to parse, nothing is returned.
func ExtractObjects(text string) ([]*Object, error) {
	spans, err := objectSpans(text)
	if err != nil {
		return nil, err
	}
	var out []*Object
	for _, span := range spans {
		obj, err := decodeObject([]byte(span))
		if err != nil {
			return nil, err
		}
		leaves, err := leafObjects(obj)
		if err != nil {
			return nil, err
		}
		out = append(out, leaves...)
	}
	return out, nil
}

// item payload keys; an object with neither these nor an item id is not an item
var itemPayloadKeys = []string{"raw_description", "description", "analysis"}

func isItemObject(o *Object) bool {
	for _, keys := range [][]string{itemIDKeys, itemPayloadKeys} {
		for _, k := range keys {
			if _, ok := o.Get(k); ok {
				return true
			}
		}
	}
	return false
}

// ExtractItems converts the objects in text into stage items. field names
// the payload the caller expects ("description" or "analysis"); it is only
// used to keep items that carry it when the output mixes in unrelated objects.
// Objects that carry no item id and no payload, such as an empty
// {"images": []} wrapper, are not items.
func ExtractItems(text, field string) ([]StageItem, error) {
	objs, err := ExtractObjects(text)
	if err != nil {
		return nil, err
	}
	candidates := make([]*Object, 0, len(objs))
	withField := 0
	for _, o := range objs {
		if !isItemObject(o) {
			continue
		}
		candidates = append(candidates, o)
		if _, ok := o.Get(field); ok {
			withField++
		}
	}
	items := make([]StageItem, 0, len(candidates))
	for _, o := range candidates {
		if _, ok := o.Get(field); !ok && withField > 0 {
			continue
		}
		items = append(items, itemFromObject(o))
	}
	return items, nil
}

// ExtractFenced parses summary output laid out as a rationale line followed
// by a fenced JSON block. The first line is dropped, an opening fence that
// leads the remainder is dropped, and everything after the last fence marker
// is cut before parsing.
func ExtractFenced(text string) (*Object, error) {
	s := strings.TrimSpace(text)
	nl := strings.IndexByte(s, '\n')
	if nl < 0 {
		return nil, ErrNoFence
	}
	rest := s[nl+1:]
	if trimmed := strings.TrimLeft(rest, " \t\r\n"); strings.HasPrefix(trimmed, "```") {
		if i := strings.IndexByte(trimmed, '\n'); i >= 0 {
			rest = trimmed[i+1:]
		} else {
			return nil, ErrNoFence
		}
	}
	end := strings.LastIndex(rest, "```")
	if end < 0 {
		return nil, ErrNoFence
	}
	return decodeObject([]byte(strings.TrimSpace(rest[:end])))
}
