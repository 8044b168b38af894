package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedResponse is returned when model output cannot be turned into a Result.
var ErrMalformedResponse = errors.New("malformed model response")

// Result is the title and tag suggestion extracted from one model response.
type Result struct {
	Title string
	Tags  []string
	// Invalid holds the raw JSON of suggested tags that were not strings.
	Invalid []string
}

// Parse extracts a Result from raw model output.
//
// The JSON candidate is everything from the first '{' to the last '}', so
// commentary the model adds before or after the object is ignored. A scalar
// "tags" value is wrapped into a one-element list. Tags are neither
// deduplicated nor length-limited here.
func Parse(raw string) (Result, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return Result{}, fmt.Errorf("%w: no JSON object found", ErrMalformedResponse)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw[start:end+1]), &fields); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	rawTitle, ok := fields["title"]
	if !ok {
		return Result{}, fmt.Errorf("%w: missing field %q", ErrMalformedResponse, "title")
	}
	rawTags, ok := fields["tags"]
	if !ok {
		return Result{}, fmt.Errorf("%w: missing field %q", ErrMalformedResponse, "tags")
	}

	var result Result
	if !isNull(rawTitle) {
		if err := json.Unmarshal(rawTitle, &result.Title); err != nil {
			return Result{}, fmt.Errorf("%w: title is not a string", ErrMalformedResponse)
		}
	}

	entries, err := tagEntries(rawTags)
	if err != nil {
		return Result{}, err
	}
	for _, entry := range entries {
		var name string
		if err := json.Unmarshal(entry, &name); err != nil {
			result.Invalid = append(result.Invalid, string(entry))
			continue
		}
		result.Tags = append(result.Tags, name)
	}

	return result, nil
}

// tagEntries returns the elements of the "tags" value, wrapping a scalar
// into a one-element list.
func tagEntries(raw json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty tags", ErrMalformedResponse)
	}

	switch trimmed[0] {
	case '[':
		var entries []json.RawMessage
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("%w: tags: %v", ErrMalformedResponse, err)
		}
		return entries, nil
	case '{':
		return nil, fmt.Errorf("%w: tags is an object", ErrMalformedResponse)
	default:
		return []json.RawMessage{trimmed}, nil
	}
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
