package faceprint

import (
	"encoding/json"
	"fmt"
)

// MarshalSet serializes an ordered sequence of encodings as a JSON array of
// arrays of numbers, the format persisted per user.
func MarshalSet(encodings []Encoding) ([]byte, error) {
	data, err := json.Marshal(encodings)
	if err != nil {
		return nil, fmt.Errorf("marshal encoding set: %w", err)
	}
	return data, nil
}

// UnmarshalSet parses a persisted encoding set. Every inner vector must have
// exactly Dim components; anything else means the record is corrupt.
func UnmarshalSet(data []byte) ([]Encoding, error) {
	var encodings []Encoding
	if err := json.Unmarshal(data, &encodings); err != nil {
		return nil, fmt.Errorf("unmarshal encoding set: %w", err)
	}
	for i, enc := range encodings {
		if len(enc) != Dim {
			return nil, fmt.Errorf("encoding %d has %d dimensions, want %d", i, len(enc), Dim)
		}
	}
	return encodings, nil
}
