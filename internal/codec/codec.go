// Package codec converts records to and from their stored document form.
package codec

import (
	"fmt"
	"path/filepath"

	"github.com/starford/tatami/internal/record"
)

// Supported formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Codec encodes one record per document.
type Codec interface {
	Encode(r *record.Record) ([]byte, error)
	Decode(data []byte) (*record.Record, error)
	// Format returns the codec identifier, also used as the file extension.
	Format() string
}

// New returns the codec for format.
func New(format string) (Codec, error) {
	switch format {
	case FormatJSON, "":
		return NewJSONCodec(), nil
	case FormatYAML:
		return NewYAMLCodec(), nil
	}
	return nil, fmt.Errorf("codec: unknown format %q", format)
}

// ForFile picks a codec from a file name extension, defaulting to JSON.
func ForFile(name string) Codec {
	switch filepath.Ext(name) {
	case ".yaml", ".yml":
		return NewYAMLCodec()
	}
	return NewJSONCodec()
}
