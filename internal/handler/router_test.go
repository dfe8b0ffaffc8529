package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	writerModel "github.com/zhouzirui/chaptered-writer/backend/internal/model/writer"
	"github.com/zhouzirui/chaptered-writer/backend/internal/service/ai"
	progressService "github.com/zhouzirui/chaptered-writer/backend/internal/service/progress"
	writerService "github.com/zhouzirui/chaptered-writer/backend/internal/service/writer"
)

type nopGenerator struct{}

func (nopGenerator) GenerateText(context.Context, ai.Request) (string, error) { return "text", nil }

func (nopGenerator) GenerateList(context.Context, ai.Request) ([]string, error) {
	return []string{"A"}, nil
}

func newTestRouter() http.Handler {
	broker := progressService.NewBroker(0)
	svc := writerService.NewService(nopGenerator{}, writerModel.NewMemoryCatalog(writerModel.SeedModels()), broker)
	return NewRouter(svc, broker)
}

func TestRouterServesHealthAndMetrics(t *testing.T) {
	router := newTestRouter()

	for _, path := range []string{"/healthz", "/metrics", "/api/models"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.Code)
		}
	}
}

func TestRouterUnknownRoute(t *testing.T) {
	resp := httptest.NewRecorder()
	newTestRouter().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "route not found") {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestRouterAppliesCORS(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp := httptest.NewRecorder()
	newTestRouter().ServeHTTP(resp, req)
	if resp.Code >= 300 {
		t.Fatalf("expected 2xx, got %d", resp.Code)
	}
	if resp.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatal("missing CORS header")
	}
}
