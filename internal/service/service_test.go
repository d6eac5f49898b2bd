package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/starford/tatami/internal/apperr"
	"github.com/starford/tatami/internal/codec"
	"github.com/starford/tatami/internal/reconcile"
	"github.com/starford/tatami/internal/record"
	"github.com/starford/tatami/internal/storage"
	"github.com/starford/tatami/internal/store"
)

func testService(t *testing.T) *Service {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	var stores []*store.Store
	for _, f := range record.Families() {
		stores = append(stores, store.New(f, storage.NewMemory(), codec.NewJSONCodec(), store.WithLogger(logger)))
	}
	return New(logger, stores...)
}

func rec(id string) *record.Record {
	return &record.Record{ID: id, Name: id, Types: []record.Category{record.Sweep}}
}

func TestFamilies(t *testing.T) {
	s := testService(t)
	got := s.Families()
	if len(got) != 2 || got[0] != "techniques" || got[1] != "articles" {
		t.Errorf("families = %v", got)
	}
	if _, err := s.ListIDs(context.Background(), "katas"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown family: err = %v, want ErrNotFound", err)
	}
}

func TestCreateGetUpdate(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	created, err := s.Create(ctx, "techniques", rec("scissor-sweep"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Checksum == "" || created.Record.ID != "scissor-sweep" {
		t.Errorf("created = %+v", created)
	}

	r := rec("scissor-sweep")
	r.Summary = "v2"
	updated, err := s.Update(ctx, "techniques", r, created.Checksum)
	if err != nil {
		t.Fatalf("Update with matching checksum: %v", err)
	}

	// created.Checksum is stale now.
	if _, err := s.Update(ctx, "techniques", r, created.Checksum); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("stale checksum: err = %v, want ErrConflict", err)
	}
	got, _ := s.Get(ctx, "techniques", "scissor-sweep")
	if got.Checksum != updated.Checksum || got.Record.Summary != "v2" {
		t.Errorf("get = %+v", got)
	}
}

func TestDeleteThenCleanRemovesReferences(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	a := rec("a")
	a.Followups = []string{"b"}
	_, _ = s.Create(ctx, "techniques", a)
	_, _ = s.Create(ctx, "techniques", rec("b"))
	if _, err := s.Clean(ctx, "techniques"); err != nil {
		t.Fatalf("Clean: %v", err)
	}

	if err := s.Delete(ctx, "techniques", "b"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	rep, err := s.Clean(ctx, "techniques")
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if rep.Writes != 1 {
		t.Errorf("writes = %d, want 1", rep.Writes)
	}
	got, _ := s.Get(ctx, "techniques", "a")
	if len(got.Record.Followups) != 0 {
		t.Errorf("followups = %v", got.Record.Followups)
	}
}

func TestCleanAllStopsAtConflict(t *testing.T) {
	s := testService(t)
	ctx := context.Background()
	st, _ := s.Store("techniques")
	_ = st.Save(&record.Record{ID: "a", Name: "a", Inverse: "b"})
	_ = st.Save(&record.Record{ID: "b", Name: "b", Inverse: "c"})
	_ = st.Save(&record.Record{ID: "c", Name: "c"})

	reports, err := s.CleanAll(ctx)
	var conflict *reconcile.InverseConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want inverse conflict", err)
	}
	if len(reports) != 1 {
		t.Errorf("articles should not be cleaned after a conflict, reports = %+v", reports)
	}
}

func TestCleanNotifiesListeners(t *testing.T) {
	s := testService(t)
	ctx := context.Background()
	var got []reconcile.Report
	s.OnClean(func(rep reconcile.Report) { got = append(got, rep) })

	st, _ := s.Store("techniques")
	_ = st.Save(&record.Record{ID: "a", Name: "a", Parent: "ghost"})

	if _, err := s.CleanAll(ctx); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Family != "techniques" || got[1].Family != "articles" {
		t.Fatalf("reports = %+v, want one per family", got)
	}
	if got[0].Writes != 1 {
		t.Errorf("techniques writes = %d, want 1", got[0].Writes)
	}

	// A halted pass is returned to the caller only.
	_ = st.Save(&record.Record{ID: "b", Name: "b", Inverse: "c"})
	_ = st.Save(&record.Record{ID: "c", Name: "c", Inverse: "a"})
	_ = st.Save(&record.Record{ID: "d", Name: "d", Inverse: "c"})
	if _, err := s.Clean(ctx, "techniques"); err == nil {
		t.Fatal("expected inverse conflict")
	}
	if len(got) != 2 {
		t.Errorf("listener called for a failed pass: %+v", got)
	}
}
