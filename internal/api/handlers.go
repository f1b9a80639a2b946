// Package api exposes the records API the client sync engine reconciles against.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"example.com/fittracker/internal/auth"
	"example.com/fittracker/internal/collections"
)

const maxBodyBytes = 1 << 20

// Handler coordinates HTTP requests with the collections service.
type Handler struct {
	service *collections.Service
}

// NewHandler builds a Handler.
func NewHandler(service *collections.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/collections/{collection}/records", h.records)
	mux.HandleFunc("/v1/collections/{collection}/records/{id}", h.recordByID)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) records(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listRecords(w, r)
	case http.MethodPost:
		h.createRecord(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) recordByID(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodDelete:
		h.deleteRecord(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

// authorize resolves the owner a request acts for, writing the error response
// when the caller may not act.
func authorize(w http.ResponseWriter, r *http.Request, scope, requested string) (string, bool) {
	owner, err := auth.OwnerKey(r.Context(), scope, requested)
	switch {
	case err == nil:
		return owner, true
	case errors.Is(err, auth.ErrMissingToken):
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	default:
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	}
	return "", false
}

func (h *Handler) listRecords(w http.ResponseWriter, r *http.Request) {
	owner, ok := authorize(w, r, auth.ScopeRecordsRead, r.URL.Query().Get("owner"))
	if !ok {
		return
	}

	records, err := h.service.List(r.Context(), owner, r.PathValue("collection"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListRecordsResponse{Records: records})
}

func (h *Handler) createRecord(w http.ResponseWriter, r *http.Request) {
	owner, ok := authorize(w, r, auth.ScopeRecordsWrite, "")
	if !ok {
		return
	}

	var rec collections.Record
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	stored, err := h.service.Create(r.Context(), owner, r.PathValue("collection"), rec)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (h *Handler) deleteRecord(w http.ResponseWriter, r *http.Request) {
	owner, ok := authorize(w, r, auth.ScopeRecordsWrite, "")
	if !ok {
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing record id")
		return
	}

	if err := h.service.Delete(r.Context(), owner, r.PathValue("collection"), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListRecordsResponse packages list results.
type ListRecordsResponse struct {
	Records []collections.Record `json:"records"`
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, collections.ErrUnknownCollection):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, collections.ErrInvalidRecord):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
