// Package store implements the record store: identity-checked persistence of
// records of one family over a document backend.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/starford/tatami/internal/apperr"
	"github.com/starford/tatami/internal/checksum"
	"github.com/starford/tatami/internal/codec"
	"github.com/starford/tatami/internal/record"
	"github.com/starford/tatami/internal/storage"
)

// RegistryKey is the reserved document listing every known id.
const RegistryKey = "_ids"

// Op identifies a store mutation.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpSave   Op = "save"
	OpDelete Op = "delete"
)

// Event describes a successful mutation.
type Event struct {
	Family string `json:"family"`
	ID     string `json:"id"`
	Op     Op     `json:"op"`
}

// Listener is notified after every successful mutation.
type Listener func(Event)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for mutation log lines.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithListener registers fn to receive mutation events.
func WithListener(fn Listener) Option {
	return func(s *Store) {
		s.listeners = append(s.listeners, fn)
	}
}

// Store owns the durable state of one record family. Records returned by
// Fetch and Find are decoded fresh on every call.
type Store struct {
	family    record.Family
	backend   storage.Backend
	codec     codec.Codec
	logger    *slog.Logger
	listeners []Listener
}

// New creates a store for family over backend, encoding documents with c.
func New(family record.Family, backend storage.Backend, c codec.Codec, opts ...Option) *Store {
	s := &Store{
		family:  family,
		backend: backend,
		codec:   c,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Family returns the family descriptor the store serves.
func (s *Store) Family() record.Family {
	return s.family
}

// reserved reports whether id can never name a stored record.
func reserved(id string) bool {
	return id == "" || id == "." || id == ".." ||
		strings.HasPrefix(id, "_") || strings.ContainsAny(id, `/\`)
}

// ListIDs returns the id of every persisted record, excluding bookkeeping entries.
func (s *Store) ListIDs() ([]string, error) {
	keys, err := s.backend.List()
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", s.family.Name, err)
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if reserved(k) {
			continue
		}
		ids = append(ids, k)
	}
	return ids, nil
}

// Fetch returns the record stored under id, or nil when there is none.
func (s *Store) Fetch(id string) (*record.Record, error) {
	if reserved(id) {
		return nil, nil
	}
	data, err := s.backend.Read(id)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r, err := s.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("store: decode %s/%s: %w", s.family.Name, id, err)
	}
	// The storage key is authoritative.
	r.ID = id
	return r, nil
}

// Find is Fetch for callers that expect the record to exist.
func (s *Store) Find(id string) (*record.Record, error) {
	r, err := s.Fetch(id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("%s %q: %w", s.family.Name, id, apperr.ErrNotFound)
	}
	return r, nil
}

// Exists reports whether a record is stored under id.
func (s *Store) Exists(id string) (bool, error) {
	if reserved(id) {
		return false, nil
	}
	_, err := s.backend.Read(id)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Create persists a new record. It fails with apperr.ErrAlreadyExists when
// the id is taken.
func (s *Store) Create(r *record.Record) error {
	if err := r.Validate(s.family); err != nil {
		return err
	}
	ok, err := s.Exists(r.ID)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%s %q: %w", s.family.Name, r.ID, apperr.ErrAlreadyExists)
	}
	return s.persist(r, OpCreate)
}

// Update overwrites an existing record. It fails with apperr.ErrNotFound when
// the id is not stored.
func (s *Store) Update(r *record.Record) error {
	if err := r.Validate(s.family); err != nil {
		return err
	}
	ok, err := s.Exists(r.ID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s %q: %w", s.family.Name, r.ID, apperr.ErrNotFound)
	}
	return s.persist(r, OpUpdate)
}

// Save persists r without existence checks or validation.
func (s *Store) Save(r *record.Record) error {
	return s.persist(r, OpSave)
}

// Delete removes the record stored under id.
func (s *Store) Delete(id string) error {
	ok, err := s.Exists(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s %q: %w", s.family.Name, id, apperr.ErrNotFound)
	}
	if err := s.backend.Delete(id); err != nil {
		return err
	}
	s.emit(Event{Family: s.family.Name, ID: id, Op: OpDelete})
	return nil
}

// Checksum returns the SHA-256 digest of the stored document for id. Backends
// that keep the digest answer without reading the document.
func (s *Store) Checksum(id string) (string, error) {
	if reserved(id) {
		return "", fmt.Errorf("%s %q: %w", s.family.Name, id, apperr.ErrNotFound)
	}
	var sum string
	var err error
	if cs, ok := s.backend.(storage.Checksummer); ok {
		sum, err = cs.Checksum(id)
	}
	if sum == "" && err == nil {
		var data []byte
		data, err = s.backend.Read(id)
		sum = checksum.Sum(data)
	}
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%s %q: %w", s.family.Name, id, apperr.ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return sum, nil
}

// Registry returns the ids recorded in the side registry, or nil when the
// registry has never been written.
func (s *Store) Registry() ([]string, error) {
	data, err := s.backend.Read(RegistryKey)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("store: decode registry: %w", err)
	}
	return ids, nil
}

// WriteRegistry records ids in the side registry. It reports whether a write
// happened; families without a registry and unchanged content are skipped.
func (s *Store) WriteRegistry(ids []string) (bool, error) {
	if !s.family.Registry {
		return false, nil
	}
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return false, fmt.Errorf("store: encode registry: %w", err)
	}
	current, err := s.backend.Read(RegistryKey)
	if err == nil && bytes.Equal(current, data) {
		return false, nil
	}
	if err := s.backend.Write(RegistryKey, data); err != nil {
		return false, err
	}
	s.logger.Debug("store: registry written",
		slog.String("family", s.family.Name),
		slog.Int("ids", len(ids)))
	return true, nil
}

func (s *Store) persist(r *record.Record, op Op) error {
	if reserved(r.ID) {
		return fmt.Errorf("%s %q: %w: reserved id", s.family.Name, r.ID, apperr.ErrInvalid)
	}
	data, err := s.codec.Encode(r)
	if err != nil {
		return fmt.Errorf("store: encode %s/%s: %w", s.family.Name, r.ID, err)
	}
	if err := s.backend.Write(r.ID, data); err != nil {
		return err
	}
	s.emit(Event{Family: s.family.Name, ID: r.ID, Op: op})
	return nil
}

func (s *Store) emit(ev Event) {
	s.logger.Info("store: "+string(ev.Op),
		slog.String("family", ev.Family),
		slog.String("id", ev.ID))
	for _, fn := range s.listeners {
		fn(ev)
	}
}
