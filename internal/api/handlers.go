package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/amanthanvi/tripbook/internal/app"
	"github.com/amanthanvi/tripbook/internal/record"
	"github.com/amanthanvi/tripbook/internal/storage"
)

var availableEndpoints = []string{
	"/api/",
	"/api/clients",
	"/api/airlines",
	"/api/flights",
	"/api/search",
	"/api/stats",
	"/api/health",
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	endpoints := map[string]map[string]string{
		"utilities": {
			"GET /api/search": "Search records (params: type, field, value, match)",
			"GET /api/stats":  "Get system statistics",
			"GET /api/health": "Health check",
		},
	}
	for collection, recordType := range collections {
		endpoints[collection] = map[string]string{
			"GET /api/" + collection:              "List all " + collection,
			"POST /api/" + collection:             "Create a new " + recordType,
			"GET /api/" + collection + "/{id}":    "Get a specific " + recordType,
			"PUT /api/" + collection + "/{id}":    "Update a " + recordType,
			"DELETE /api/" + collection + "/{id}": "Delete a " + recordType,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Travel agency record API",
		"version":   s.version.Version,
		"endpoints": endpoints,
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.recordService(w, r)
	if !ok {
		return
	}
	records, err := svc.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.recordService(w, r)
	if !ok {
		return
	}
	fields, ok := decodeRecord(w, r)
	if !ok {
		return
	}
	created, err := svc.Create(r.Context(), fields)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.recordService(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := svc.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.recordService(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	patch, ok := decodeRecord(w, r)
	if !ok {
		return
	}
	updated, err := svc.Update(r.Context(), id, patch)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.recordService(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := svc.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteBody{
		Message: fmt.Sprintf("%s %d deleted successfully", capitalize(svc.Kind()), id),
		ID:      id,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	params := searchParameters{
		Type:  query.Get("type"),
		Field: query.Get("field"),
		Value: query.Get("value"),
		Match: query.Get("match"),
	}
	if params.Field == "" {
		params.Field = storage.AllFields
	}
	if params.Match == "" {
		params.Match = app.MatchContains
	}
	if params.Type == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION", "Record type is required (type=client|airline|flight)")
		return
	}

	results, err := s.services.Search.Search(r.Context(), app.SearchRequest{
		Type:  params.Type,
		Field: params.Field,
		Value: params.Value,
		Match: params.Match,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchBody{
		Results:    results,
		Count:      len(results),
		Parameters: params,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.services.Stats.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health, err := s.services.Stats.Health(r.Context())
	if err != nil {
		s.logger.Error("health check failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, struct {
			app.Health
			Error string `json:"error"`
		}{Health: health, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, health)
}

func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error":               "Endpoint not found",
		"available_endpoints": availableEndpoints,
	})
}

func (s *Server) recordService(w http.ResponseWriter, r *http.Request) (*app.RecordService, bool) {
	recordType, ok := collections[r.PathValue("collection")]
	if !ok {
		s.handleNotFound(w, r)
		return nil, false
	}
	svc := s.services.Records[recordType]
	if svc == nil {
		s.handleNotFound(w, r)
		return nil, false
	}
	return svc, true
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrValidation), errors.Is(err, app.ErrUnknownType):
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
	}
}

func decodeRecord(w http.ResponseWriter, r *http.Request) (*record.Record, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "request body too large")
		return nil, false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		writeError(w, http.StatusBadRequest, "VALIDATION", "No data provided")
		return nil, false
	}
	rec := &record.Record{}
	if err := json.Unmarshal(body, rec); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "request body must be a JSON object")
		return nil, false
	}
	return rec, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "record ID must be a positive integer")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: message, Code: code})
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
