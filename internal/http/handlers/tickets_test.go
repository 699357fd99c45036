package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobilierdefrance/sav-ai-platform/internal/resilience"
	"github.com/mobilierdefrance/sav-ai-platform/internal/ticket"
	"github.com/mobilierdefrance/sav-ai-platform/internal/workflow"
)

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	engine := workflow.NewEngine(workflow.Deps{Pending: ticket.NewMemoryStore()})
	circuits := resilience.NewRegistry(resilience.Config{}, nil)
	circuits.Get("bedrock")
	h := NewTicketsHandler(engine, circuits, nil)

	r := chi.NewRouter()
	r.Post("/claims", h.SubmitClaim)
	r.Route("/tickets/{id}", func(r chi.Router) {
		r.Get("/", h.GetTicket)
		r.Get("/summary", h.GetTicketSummary)
		r.Post("/validate", h.ValidateTicket)
		r.Post("/cancel", h.CancelTicket)
		r.Post("/evidence", h.AddEvidence)
	})
	r.Get("/circuits", h.ListCircuits)
	r.Post("/circuits/reset", h.ResetCircuits)
	r.Get("/health", h.HealthCheck)
	return r
}

func claimBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(workflow.Claim{
		CustomerID:         "CUST-001",
		CustomerName:       "Marie Dupont",
		OrderNumber:        "CMD-2025-0042",
		ProductSKU:         "FAU-RELAX-EL",
		ProductName:        "Fauteuil relax électrique",
		ProblemDescription: "Le mécanisme relax de mon fauteuil est bloqué, le ressort grince et le vérin ne fonctionne plus",
		PurchaseDate:       time.Now().AddDate(0, 0, -100),
		DeliveryDate:       time.Now().AddDate(0, 0, -100),
		ProductValue:       1200,
	})
	require.NoError(t, err)
	return body
}

func submitClaim(t *testing.T, router http.Handler) *workflow.TriageResult {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/claims", bytes.NewReader(claimBody(t))))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var result workflow.TriageResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	return &result
}

func TestSubmitClaim(t *testing.T) {
	router := testRouter(t)

	result := submitClaim(t, router)
	assert.Equal(t, ticket.StatusAwaitingTechnician, result.Decision)
	assert.True(t, result.ValidationRequired)
	assert.NotEmpty(t, result.Ticket.ID)
}

func TestSubmitClaimBadJSON(t *testing.T) {
	router := testRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/claims", bytes.NewBufferString("{not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitClaimMissingFields(t *testing.T) {
	router := testRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/claims", bytes.NewBufferString(`{"customer_id":"CUST-001"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTicket(t *testing.T) {
	router := testRouter(t)
	result := submitClaim(t, router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tickets/"+result.Ticket.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got ticket.Ticket
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, result.Ticket.ID, got.ID)
	assert.Equal(t, ticket.StatusAwaitingTechnician, got.Status)
}

func TestGetTicketNotFound(t *testing.T) {
	router := testRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tickets/SAV-0-0", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTicketSummary(t *testing.T) {
	router := testRouter(t)
	result := submitClaim(t, router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tickets/"+result.Ticket.ID+"/summary", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var overview workflow.Overview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &overview))
	assert.Equal(t, result.Ticket.ID, overview.TicketID)
	assert.NotZero(t, overview.ActionCount)
}

func TestValidateTicket(t *testing.T) {
	router := testRouter(t)
	result := submitClaim(t, router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tickets/"+result.Ticket.ID+"/validate", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var out workflow.ValidationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, out.Success)
}

func TestValidateUnknownTicket(t *testing.T) {
	router := testRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tickets/SAV-0-0/validate", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidateTwiceIsIdempotent(t *testing.T) {
	router := testRouter(t)
	result := submitClaim(t, router)
	url := "/tickets/" + result.Ticket.ID + "/validate"

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, url, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	// Without a durable store the ticket stays pending; a repeated
	// validation succeeds rather than conflicting.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, url, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestValidateAfterCancelNotFound(t *testing.T) {
	router := testRouter(t)
	result := submitClaim(t, router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tickets/"+result.Ticket.ID+"/cancel", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	// Cancel removes the ticket from the pending store entirely.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tickets/"+result.Ticket.ID+"/validate", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelTicket(t *testing.T) {
	router := testRouter(t)
	result := submitClaim(t, router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tickets/"+result.Ticket.ID+"/cancel", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	// The ticket is gone from the pending store afterwards.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tickets/"+result.Ticket.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddEvidence(t *testing.T) {
	router := testRouter(t)
	result := submitClaim(t, router)

	body := `{"evidences":[
		{"evidence_id":"ev-1","type":"photo","file_url":"https://cdn.mobilierdefrance.com/sav/ev-1.jpg",
		 "file_size_bytes":819200,"description":"Vue d'ensemble du fauteuil avec le mécanisme bloqué",
		 "metadata":{"width":1920,"height":1080}}
	]}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tickets/"+result.Ticket.ID+"/evidence", bytes.NewBufferString(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestAddEvidenceEmptyBody(t *testing.T) {
	router := testRouter(t)
	result := submitClaim(t, router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tickets/"+result.Ticket.ID+"/evidence", bytes.NewBufferString(`{"evidences":[]}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCircuitEndpoints(t *testing.T) {
	router := testRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/circuits", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats []resilience.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Len(t, stats, 1)
	assert.Equal(t, "bedrock", stats[0].Name)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/circuits/reset", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	router := testRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
