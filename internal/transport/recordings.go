package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rpggio/screenmark/internal/domain/annotation"
	"github.com/rpggio/screenmark/internal/domain/coordinator"
	"github.com/rpggio/screenmark/internal/domain/recording"
)

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) handleListRecordings(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	offset, err := intQuery(r, "offset", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	recs, err := s.recordings.List(r.Context(), coordinator.IdentityFromContext(r.Context()), recording.ListOptions{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recordings": recs})
}

func (s *Server) handleGetRecording(w http.ResponseWriter, r *http.Request) {
	detail, err := s.recordings.Get(r.Context(), coordinator.IdentityFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleAnnotations returns the full timeline, or with ?at= the annotations
// active at that playback offset.
func (s *Server) handleAnnotations(w http.ResponseWriter, r *http.Request) {
	pb, err := s.recordings.Playback(r.Context(), coordinator.IdentityFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if r.URL.Query().Get("at") == "" {
		writeJSON(w, http.StatusOK, map[string]any{"annotations": nonNil(slices.Collect(pb.Replay()))})
		return
	}

	at, err := int64Query(r, "at", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tolerance, err := int64Query(r, "tolerance", s.defaultToleranceMs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"offset_ms":    at,
		"tolerance_ms": tolerance,
		"annotations":  nonNil(pb.ActiveAt(at, tolerance)),
	})
}

func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	seq, err := strconv.Atoi(chi.URLParam(r, "seq"))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: seq %q", recording.ErrInvalidInput, chi.URLParam(r, "seq")))
		return
	}
	chunk, err := s.recordings.Chunk(r.Context(), coordinator.IdentityFromContext(r.Context()), chi.URLParam(r, "id"), seq)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Chunk-Offset-Ms", strconv.FormatInt(chunk.OffsetMs, 10))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(chunk.Data)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, recording.ErrRecordingNotFound), errors.Is(err, recording.ErrChunkNotFound):
		status = http.StatusNotFound
	case errors.Is(err, recording.ErrInvalidInput):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "request_id", RequestIDFromContext(r.Context()), "path", r.URL.Path, "error", err)
		writeJSON(w, status, errorBody{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func intQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", recording.ErrInvalidInput, name)
	}
	return v, nil
}

func int64Query(r *http.Request, name string, def int64) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", recording.ErrInvalidInput, name)
	}
	return v, nil
}

func nonNil(list []annotation.Annotation) []annotation.Annotation {
	if list == nil {
		return []annotation.Annotation{}
	}
	return list
}
