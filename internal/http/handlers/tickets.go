// Package handlers exposes the triage engine over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mobilierdefrance/sav-ai-platform/internal/evidence"
	"github.com/mobilierdefrance/sav-ai-platform/internal/resilience"
	"github.com/mobilierdefrance/sav-ai-platform/internal/ticket"
	"github.com/mobilierdefrance/sav-ai-platform/internal/workflow"
	"github.com/mobilierdefrance/sav-ai-platform/pkg/logging"
)

// TicketsHandler handles claim intake and the ticket lifecycle endpoints.
type TicketsHandler struct {
	engine   *workflow.Engine
	circuits *resilience.Registry
	logger   *logging.Logger
}

// NewTicketsHandler creates the handler. Engine is required.
func NewTicketsHandler(engine *workflow.Engine, circuits *resilience.Registry, logger *logging.Logger) *TicketsHandler {
	if engine == nil {
		panic("handlers: workflow engine is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &TicketsHandler{engine: engine, circuits: circuits, logger: logger}
}

// SubmitClaim handles POST /claims.
func (h *TicketsHandler) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	var claim workflow.Claim
	if err := json.NewDecoder(r.Body).Decode(&claim); err != nil {
		h.logger.Error("failed to decode claim", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.engine.ProcessClaim(r.Context(), claim)
	if err != nil {
		if errors.Is(err, workflow.ErrInvalidClaim) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to process claim", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

// ValidateTicket handles POST /tickets/{id}/validate.
func (h *TicketsHandler) ValidateTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result := h.engine.Validate(r.Context(), id)
	respondJSON(w, validationStatusCode(result), result)
}

// CancelTicket handles POST /tickets/{id}/cancel.
func (h *TicketsHandler) CancelTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result := h.engine.Cancel(r.Context(), id)
	respondJSON(w, validationStatusCode(result), result)
}

// addEvidenceRequest is the body of POST /tickets/{id}/evidence.
type addEvidenceRequest struct {
	Evidence []evidence.Item `json:"evidences"`
}

// AddEvidence handles POST /tickets/{id}/evidence.
func (h *TicketsHandler) AddEvidence(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req addEvidenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Evidence) == 0 {
		http.Error(w, "No evidence supplied", http.StatusBadRequest)
		return
	}

	check, err := h.engine.AddEvidence(r.Context(), id, req.Evidence)
	if err != nil {
		if errors.Is(err, ticket.ErrNotFound) {
			http.Error(w, "Ticket not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to add evidence", "ticket_id", id, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, check)
}

// GetTicket handles GET /tickets/{id}.
func (h *TicketsHandler) GetTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := h.engine.Ticket(r.Context(), id)
	if err != nil {
		if errors.Is(err, ticket.ErrNotFound) {
			http.Error(w, "Ticket not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load ticket", "ticket_id", id, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// GetTicketSummary handles GET /tickets/{id}/summary.
func (h *TicketsHandler) GetTicketSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	overview, err := h.engine.TicketSummary(r.Context(), id)
	if err != nil {
		if errors.Is(err, ticket.ErrNotFound) {
			http.Error(w, "Ticket not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to summarize ticket", "ticket_id", id, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, overview)
}

// ListCircuits handles GET /circuits.
func (h *TicketsHandler) ListCircuits(w http.ResponseWriter, r *http.Request) {
	if h.circuits == nil {
		respondJSON(w, http.StatusOK, []resilience.Stats{})
		return
	}
	respondJSON(w, http.StatusOK, h.circuits.Stats())
}

// ResetCircuits handles POST /circuits/reset.
func (h *TicketsHandler) ResetCircuits(w http.ResponseWriter, r *http.Request) {
	if h.circuits != nil {
		h.circuits.ResetAll()
		h.logger.Info("circuit breakers reset")
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (h *TicketsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// validationStatusCode maps a validate/cancel result to an HTTP status.
func validationStatusCode(result *workflow.ValidationResult) int {
	if result.Success {
		return http.StatusOK
	}
	if strings.Contains(result.Message, "introuvable") {
		return http.StatusNotFound
	}
	return http.StatusConflict
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
