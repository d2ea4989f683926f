package calibre

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedList is returned by ParseList when a stored list is not a JSON string array.
var ErrMalformedList = errors.New("malformed list")

// ParseList decodes the tag and format arrays built by the book projection.
// A nil or empty value is an empty list. On ErrMalformedList the returned
// slice is empty and non-nil so callers can log the error and carry on.
func ParseList(raw *string) ([]string, error) {
	if raw == nil || *raw == "" {
		return []string{}, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(*raw), &out); err != nil {
		return []string{}, fmt.Errorf("%w: %v", ErrMalformedList, err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}
