// Package rest exposes the dashboard's HTTP API: log ingestion, anomaly
// queries, lifecycle updates, and the manual analysis trigger.
package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/sentinelhq/sentinel-backend/internal/api/middleware"
	"github.com/sentinelhq/sentinel-backend/internal/models"
	"github.com/sentinelhq/sentinel-backend/internal/service"
)

// Ingestor receives one log record through the ingestion pipeline.
type Ingestor interface {
	Ingest(ctx context.Context, input service.IngestInput) (service.IngestResult, error)
}

// AnomalyQueries serves the dashboard queries and the status mutation.
type AnomalyQueries interface {
	ListAnomalies(ctx context.Context, limit, offset int) (*service.AnomalyPage, error)
	AnomaliesByIP(ctx context.Context, ip string) ([]models.AnomalyPayload, error)
	LogsByIP(ctx context.Context, ip string) ([]*models.LogEntryPayload, error)
	AISummary(ctx context.Context) *models.AISummary
	UpdateStatus(ctx context.Context, id int64, status string, notes, resolvedBy *string) service.StatusUpdateResult
}

// AnalysisTrigger forces one scheduler cycle.
type AnalysisTrigger interface {
	Trigger(ctx context.Context) bool
}

// Handler manages HTTP request handlers.
type Handler struct {
	ingest    Ingestor
	anomalies AnomalyQueries
	trigger   AnalysisTrigger
	log       *slog.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(ingest Ingestor, anomalies AnomalyQueries, trigger AnalysisTrigger, log *slog.Logger) *Handler {
	return &Handler{
		ingest:    ingest,
		anomalies: anomalies,
		trigger:   trigger,
		log:       log,
	}
}

// SetupRoutes configures API routes.
func SetupRoutes(router *mux.Router, h *Handler) {
	router.HandleFunc("/logs", h.IngestLog).Methods("POST")
	router.HandleFunc("/anomalies", h.ListAnomalies).Methods("GET")
	router.HandleFunc("/anomalies/{id}/status", h.UpdateAnomalyStatus).Methods("PATCH")
	router.HandleFunc("/ips/{ip}/logs", h.LogsByIP).Methods("GET")
	router.HandleFunc("/ips/{ip}/anomalies", h.AnomaliesByIP).Methods("GET")
	router.HandleFunc("/analysis/summary", h.AISummary).Methods("GET")
	router.HandleFunc("/analysis/trigger", h.TriggerAnalysis).Methods("POST")
}

// IngestLog handles POST /logs
func (h *Handler) IngestLog(w http.ResponseWriter, r *http.Request) {
	var input service.IngestInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid request body",
			middleware.RequestIDFromContext(r.Context()))
		return
	}

	result, err := h.ingest.Ingest(r.Context(), input)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, result.Message,
			middleware.RequestIDFromContext(r.Context()))
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// ListAnomalies handles GET /anomalies
func (h *Handler) ListAnomalies(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", service.DefaultAnomalyPageSize)
	offset := queryInt(r, "offset", 0)

	page, err := h.anomalies.ListAnomalies(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error(),
			middleware.RequestIDFromContext(r.Context()))
		return
	}

	respondJSON(w, http.StatusOK, page)
}

// LogsByIP handles GET /ips/{ip}/logs
func (h *Handler) LogsByIP(w http.ResponseWriter, r *http.Request) {
	ip := mux.Vars(r)["ip"]

	logs, err := h.anomalies.LogsByIP(r.Context(), ip)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error(),
			middleware.RequestIDFromContext(r.Context()))
		return
	}

	respondJSON(w, http.StatusOK, logs)
}

// AnomaliesByIP handles GET /ips/{ip}/anomalies
func (h *Handler) AnomaliesByIP(w http.ResponseWriter, r *http.Request) {
	ip := mux.Vars(r)["ip"]

	anomalies, err := h.anomalies.AnomaliesByIP(r.Context(), ip)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error(),
			middleware.RequestIDFromContext(r.Context()))
		return
	}

	respondJSON(w, http.StatusOK, anomalies)
}

// AISummary handles GET /analysis/summary
func (h *Handler) AISummary(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.anomalies.AISummary(r.Context()))
}

// UpdateAnomalyStatus handles PATCH /anomalies/{id}/status
func (h *Handler) UpdateAnomalyStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status          string  `json:"status"`
		ResolutionNotes *string `json:"resolutionNotes"`
		ResolvedBy      *string `json:"resolvedBy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid request body",
			middleware.RequestIDFromContext(r.Context()))
		return
	}

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondJSON(w, http.StatusOK, service.StatusUpdateResult{
			Success: false,
			Message: "invalid anomaly id",
		})
		return
	}

	result := h.anomalies.UpdateStatus(r.Context(), id, req.Status, req.ResolutionNotes, req.ResolvedBy)
	respondJSON(w, http.StatusOK, result)
}

// TriggerAnalysis handles POST /analysis/trigger
func (h *Handler) TriggerAnalysis(w http.ResponseWriter, r *http.Request) {
	ran := h.trigger.Trigger(r.Context())

	result := service.IngestResult{Success: ran, Message: "AI analysis cycle completed"}
	if !ran {
		result.Message = "AI analysis skipped: already running or nothing to analyze"
	}
	respondJSON(w, http.StatusOK, result)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
