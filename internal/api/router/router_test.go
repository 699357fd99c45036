package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mobilierdefrance/sav-ai-platform/internal/http/handlers"
	"github.com/mobilierdefrance/sav-ai-platform/internal/ticket"
	"github.com/mobilierdefrance/sav-ai-platform/internal/workflow"
)

func TestRouterWiring(t *testing.T) {
	engine := workflow.NewEngine(workflow.Deps{Pending: ticket.NewMemoryStore()})
	r := New(&Config{
		Tickets: handlers.NewTicketsHandler(engine, nil, nil),
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	})

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/circuits", http.StatusOK},
		{http.MethodGet, "/tickets/SAV-0-0", http.StatusNotFound},
		{http.MethodPost, "/tickets/SAV-0-0/validate", http.StatusNotFound},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		assert.Equal(t, tt.want, rec.Code, "%s %s", tt.method, tt.path)
	}
}
