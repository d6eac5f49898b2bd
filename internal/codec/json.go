package codec

import (
	"encoding/json"
	"fmt"

	"github.com/starford/tatami/internal/record"
)

// JSONCodec stores records as indented JSON objects.
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec.
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier.
func (c *JSONCodec) Format() string {
	return FormatJSON
}

// Encode serializes r with four-space indentation and a trailing newline.
func (c *JSONCodec) Encode(r *record.Record) ([]byte, error) {
	r.Normalize()
	data, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a JSON document. Null references decode as absent.
func (c *JSONCodec) Decode(data []byte) (*record.Record, error) {
	var r record.Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	r.Normalize()
	return &r, nil
}
