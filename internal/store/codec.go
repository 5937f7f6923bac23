package store

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Tag-style columns (tags, highlights, learnings) are persisted as JSON
// text. The codec keeps ordering exact and surfaces malformed column data
// instead of silently degrading to an empty list.

// ErrCorrupt marks a list column whose stored text is not valid JSON.
var ErrCorrupt = errors.New("corrupt list column")

func encodeStringList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode string list: %w", err)
	}
	return string(raw), nil
}

func decodeStringList(column, raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, column, err)
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}
