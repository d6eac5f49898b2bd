// Package storage defines the document backends that hold serialized records.
package storage

// Backend is a flat collection of named documents. Reads and deletes of a
// missing key return an error wrapping fs.ErrNotExist.
type Backend interface {
	// List returns every stored key in ascending order.
	List() ([]string, error)
	// Read returns the raw bytes of the document stored under key.
	Read(key string) ([]byte, error)
	// Write stores content under key, replacing any previous document.
	Write(key string, content []byte) error
	// Delete removes the document stored under key.
	Delete(key string) error
}

// Checksummer is implemented by backends that keep the checksum.Sum of each
// document next to it. A missing key returns an error wrapping fs.ErrNotExist.
type Checksummer interface {
	Checksum(key string) (string, error)
}

var (
	_ Backend = (*FS)(nil)
	_ Backend = (*Memory)(nil)
	_ Backend = (*sqliteBackend)(nil)

	_ Checksummer = (*sqliteBackend)(nil)
)
