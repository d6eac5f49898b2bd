// Package testutil provides shared test helpers for setting up stores and services.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/tatami/internal/codec"
	"github.com/starford/tatami/internal/record"
	"github.com/starford/tatami/internal/service"
	"github.com/starford/tatami/internal/storage"
	"github.com/starford/tatami/internal/store"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// MemoryService creates a service with an in-memory store per built-in family.
func MemoryService(t *testing.T, opts ...store.Option) *service.Service {
	t.Helper()
	logger := Logger()
	opts = append([]store.Option{store.WithLogger(logger)}, opts...)
	var stores []*store.Store
	for _, f := range record.Families() {
		stores = append(stores, store.New(f, storage.NewMemory(), codec.NewJSONCodec(), opts...))
	}
	return service.New(logger, stores...)
}

// FSStore creates a file store for family inside a temporary data directory,
// storing documents in format.
func FSStore(t *testing.T, family record.Family, format string) (*store.Store, *storage.FS) {
	t.Helper()
	c, err := codec.New(format)
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(t.TempDir(), family.Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	backend, err := storage.NewFS(dir, c.Format())
	if err != nil {
		t.Fatal(err)
	}
	return store.New(family, backend, c, store.WithLogger(Logger())), backend
}

// Technique returns a minimal valid technique record.
func Technique(id string) *record.Record {
	return &record.Record{
		ID:           id,
		Name:         id,
		Summary:      "Basic technique.",
		Types:        []record.Category{record.Position},
		Difficulty:   record.Universal,
		IsSearchable: true,
	}
}
