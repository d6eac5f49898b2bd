package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tatami/internal/apperr"
	"github.com/starford/tatami/internal/checksum"
	"github.com/starford/tatami/internal/reconcile"
	"github.com/starford/tatami/internal/service"
)

// Handler holds API route handlers.
type Handler struct {
	svc *service.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// writeError maps domain errors to HTTP statuses.
func writeError(w http.ResponseWriter, op string, err error) {
	var conflict *reconcile.InverseConflictError
	switch {
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, errorBody(conflict.Error()))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("record already exists"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
	case errors.Is(err, apperr.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListFamilies handles GET /api/families.
func (h *Handler) ListFamilies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, FamiliesResponse{Families: h.svc.Families()})
}

// ListRecords handles GET /api/{family}/records.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	family := chi.URLParam(r, "family")
	ids, err := h.svc.ListIDs(r.Context(), family)
	if err != nil {
		writeError(w, "list records", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, RecordListResponse{Family: family, IDs: ids, Total: len(ids)})
}

// GetRecord handles GET /api/{family}/records/{id}.
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Get(r.Context(), chi.URLParam(r, "family"), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get record", err)
		return
	}
	w.Header().Set("ETag", checksum.ETag(d.Checksum))
	writeJSON(w, http.StatusOK, d)
}

// CreateRecord handles POST /api/{family}/records.
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	rec := decodeRecord(w, r)
	if rec == nil {
		return
	}
	d, err := h.svc.Create(r.Context(), chi.URLParam(r, "family"), rec)
	if err != nil {
		writeError(w, "create record", err)
		return
	}
	w.Header().Set("ETag", checksum.ETag(d.Checksum))
	writeJSON(w, http.StatusCreated, d)
}

// UpdateRecord handles PUT /api/{family}/records/{id}. The id in the path wins
// over any id in the body.
func (h *Handler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	rec := decodeRecord(w, r)
	if rec == nil {
		return
	}
	rec.ID = chi.URLParam(r, "id")

	ifMatch := checksum.FromETag(r.Header.Get("If-Match"))

	d, err := h.svc.Update(r.Context(), chi.URLParam(r, "family"), rec, ifMatch)
	if err != nil {
		writeError(w, "update record", err)
		return
	}
	w.Header().Set("ETag", checksum.ETag(d.Checksum))
	writeJSON(w, http.StatusOK, d)
}

// DeleteRecord handles DELETE /api/{family}/records/{id}.
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "family"), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete record", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clean handles POST /api/{family}/clean.
func (h *Handler) Clean(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.Clean(r.Context(), chi.URLParam(r, "family"))
	if err != nil {
		writeError(w, "clean", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
