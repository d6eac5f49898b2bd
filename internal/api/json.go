package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/starford/tatami/internal/record"
)

// maxRecordBody bounds request documents.
const maxRecordBody = 10 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

// decodeRecord reads a record document from the request body. On failure it
// writes a 400 response and returns nil.
func decodeRecord(w http.ResponseWriter, r *http.Request) *record.Record {
	r.Body = http.MaxBytesReader(w, r.Body, maxRecordBody)
	var rec record.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body: "+err.Error()))
		return nil
	}
	return &rec
}

type errResponse struct {
	Error string `json:"error"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}
