// Package service coordinates record stores and clean passes for the outer
// surfaces (HTTP API, MCP tools, CLI, file watcher).
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/tatami/internal/apperr"
	"github.com/starford/tatami/internal/reconcile"
	"github.com/starford/tatami/internal/record"
	"github.com/starford/tatami/internal/store"
)

// RecordDetail is a record together with the checksum of its stored document.
type RecordDetail struct {
	Record   *record.Record `json:"record"`
	Checksum string         `json:"checksum"`
}

// Service serializes every mutation across all families so the stores keep a
// single writer even when several surfaces are active.
type Service struct {
	mu       sync.Mutex
	stores   map[string]*store.Store
	families []string
	logger   *slog.Logger
	onClean  []CleanListener
}

// CleanListener is notified after every completed clean pass, whichever
// surface started it.
type CleanListener func(reconcile.Report)

// OnClean registers fn. Register listeners before serving requests.
func (s *Service) OnClean(fn CleanListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClean = append(s.onClean, fn)
}

// New creates a service over the given stores, one per family.
func New(logger *slog.Logger, stores ...*store.Store) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{stores: make(map[string]*store.Store, len(stores)), logger: logger}
	for _, st := range stores {
		name := st.Family().Name
		s.stores[name] = st
		s.families = append(s.families, name)
	}
	return s
}

// Families returns the served family names in registration order.
func (s *Service) Families() []string {
	return append([]string(nil), s.families...)
}

// Store returns the store of family.
func (s *Service) Store(family string) (*store.Store, error) {
	st, ok := s.stores[family]
	if !ok {
		return nil, fmt.Errorf("family %q: %w", family, apperr.ErrNotFound)
	}
	return st, nil
}

// ListIDs returns every record id of family.
func (s *Service) ListIDs(_ context.Context, family string) ([]string, error) {
	st, err := s.Store(family)
	if err != nil {
		return nil, err
	}
	return st.ListIDs()
}

// Get returns one record with its checksum.
func (s *Service) Get(_ context.Context, family, id string) (*RecordDetail, error) {
	st, err := s.Store(family)
	if err != nil {
		return nil, err
	}
	return detail(st, id)
}

// Create stores a new record.
func (s *Service) Create(_ context.Context, family string, r *record.Record) (*RecordDetail, error) {
	st, err := s.Store(family)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := st.Create(r); err != nil {
		return nil, err
	}
	return detail(st, r.ID)
}

// Update overwrites a record. When ifMatch is non-empty it must equal the
// checksum of the stored document, otherwise apperr.ErrConflict is returned.
func (s *Service) Update(_ context.Context, family string, r *record.Record, ifMatch string) (*RecordDetail, error) {
	st, err := s.Store(family)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ifMatch != "" {
		current, err := st.Checksum(r.ID)
		if err != nil {
			return nil, err
		}
		if current != ifMatch {
			return nil, fmt.Errorf("%s %q: checksum mismatch: %w", family, r.ID, apperr.ErrConflict)
		}
	}
	if err := st.Update(r); err != nil {
		return nil, err
	}
	return detail(st, r.ID)
}

// Delete removes a record. References to it are left for the next clean pass.
func (s *Service) Delete(_ context.Context, family, id string) error {
	st, err := s.Store(family)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return st.Delete(id)
}

// Clean runs a clean pass over family. Listeners hear about passes that
// complete; a pass halted by an error is only returned.
func (s *Service) Clean(_ context.Context, family string) (reconcile.Report, error) {
	st, err := s.Store(family)
	if err != nil {
		return reconcile.Report{Family: family}, err
	}
	s.mu.Lock()
	rep, err := reconcile.New(st, s.logger).Clean()
	listeners := s.onClean
	s.mu.Unlock()
	if err != nil {
		return rep, err
	}
	for _, fn := range listeners {
		fn(rep)
	}
	return rep, nil
}

// CleanAll runs a clean pass over every family, stopping at the first error.
func (s *Service) CleanAll(ctx context.Context) ([]reconcile.Report, error) {
	reports := make([]reconcile.Report, 0, len(s.families))
	for _, f := range s.families {
		rep, err := s.Clean(ctx, f)
		reports = append(reports, rep)
		if err != nil {
			return reports, err
		}
	}
	return reports, nil
}

func detail(st *store.Store, id string) (*RecordDetail, error) {
	r, err := st.Find(id)
	if err != nil {
		return nil, err
	}
	cs, err := st.Checksum(id)
	if err != nil {
		return nil, err
	}
	return &RecordDetail{Record: r, Checksum: cs}, nil
}
