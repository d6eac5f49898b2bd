package codec

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/starford/tatami/internal/record"
)

// YAMLCodec stores records as YAML documents with the same keys as JSON.
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec.
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier.
func (c *YAMLCodec) Format() string {
	return FormatYAML
}

// Encode serializes r as YAML.
func (c *YAMLCodec) Encode(r *record.Record) ([]byte, error) {
	r.Normalize()
	data, err := yaml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode YAML: %w", err)
	}
	return data, nil
}

// Decode parses a YAML document.
func (c *YAMLCodec) Decode(data []byte) (*record.Record, error) {
	var r record.Record
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	r.Normalize()
	return &r, nil
}
