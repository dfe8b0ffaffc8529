package writer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	writerModel "github.com/zhouzirui/chaptered-writer/backend/internal/model/writer"
	"github.com/zhouzirui/chaptered-writer/backend/internal/service/ai"
	writerService "github.com/zhouzirui/chaptered-writer/backend/internal/service/writer"
)

type stubGenerator struct {
	text  func(req ai.Request) (string, error)
	list  []string
	calls int
}

func (g *stubGenerator) GenerateText(_ context.Context, req ai.Request) (string, error) {
	g.calls++
	return g.text(req)
}

func (g *stubGenerator) GenerateList(_ context.Context, _ ai.Request) ([]string, error) {
	g.calls++
	return g.list, nil
}

func setupRouter(gen ai.Generator) *chi.Mux {
	svc := writerService.NewService(gen, writerModel.NewMemoryCatalog(writerModel.SeedModels()), nil)
	handler := New(svc)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func createSession(t *testing.T, r http.Handler) string {
	t.Helper()
	resp := do(t, r, http.MethodPost, "/sessions", nil)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}
	var snap writerModel.Snapshot
	if err := json.Unmarshal(resp.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return snap.ID
}

func newStub() *stubGenerator {
	return &stubGenerator{
		text: func(req ai.Request) (string, error) {
			if strings.Contains(req.Prompt, "「B」") {
				return "", errors.New("boom")
			}
			return "本文", nil
		},
		list: []string{"A", "B"},
	}
}

func TestListModels(t *testing.T) {
	r := setupRouter(newStub())
	resp := do(t, r, http.MethodGet, "/models", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var payload listModelsResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Default != "gemini-2.5-flash" || len(payload.Models) != 3 {
		t.Fatalf("unexpected models %+v", payload)
	}
	if payload.Paragraphs.Min != 6 || payload.Paragraphs.Max != 10 || payload.ApproxCharsPerParagraph.Default != 800 {
		t.Fatalf("unexpected bounds %+v", payload)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	r := setupRouter(newStub())
	if resp := do(t, r, http.MethodGet, "/sessions/missing", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestSettingsDoNotEchoAPIKey(t *testing.T) {
	r := setupRouter(newStub())
	id := createSession(t, r)

	resp := do(t, r, http.MethodPatch, "/sessions/"+id, map[string]string{"apiKey": "super-secret", "topic": "X"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if strings.Contains(resp.Body.String(), "super-secret") {
		t.Fatal("api key echoed in response")
	}
	if !strings.Contains(resp.Body.String(), `"hasApiKey":true`) {
		t.Fatalf("expected hasApiKey true: %s", resp.Body.String())
	}
}

func TestUpdateSettingsUnknownModel(t *testing.T) {
	r := setupRouter(newStub())
	id := createSession(t, r)
	resp := do(t, r, http.MethodPatch, "/sessions/"+id, map[string]string{"modelName": "unknown"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestGenerateOutlineWithoutKey(t *testing.T) {
	gen := newStub()
	r := setupRouter(gen)
	id := createSession(t, r)

	resp := do(t, r, http.MethodPost, "/sessions/"+id+"/outline", nil)
	if resp.Code != http.StatusPreconditionFailed {
		t.Fatalf("expected 412, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"kind":"config"`) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
	if gen.calls != 0 {
		t.Fatalf("no generation calls expected, got %d", gen.calls)
	}
}

func TestFullWorkflow(t *testing.T) {
	r := setupRouter(newStub())
	id := createSession(t, r)
	do(t, r, http.MethodPatch, "/sessions/"+id, map[string]string{"apiKey": "k", "topic": "X"})

	resp := do(t, r, http.MethodPost, "/sessions/"+id+"/outline", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("outline: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	if resp := do(t, r, http.MethodGet, "/sessions/"+id+"/document", nil); resp.Code != http.StatusConflict {
		t.Fatalf("document before bodies: expected 409, got %d", resp.Code)
	}

	resp = do(t, r, http.MethodPut, "/sessions/"+id+"/chapters", map[string][]string{"chapters": {" B ", "", "A"}})
	if resp.Code != http.StatusOK {
		t.Fatalf("edit: expected 200, got %d", resp.Code)
	}
	var snap writerModel.Snapshot
	if err := json.Unmarshal(resp.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if strings.Join(snap.Chapters, ",") != "B,A" {
		t.Fatalf("unexpected chapters %v", snap.Chapters)
	}

	resp = do(t, r, http.MethodPost, "/sessions/"+id+"/chapters/generate", map[string]int{"paragraphs": 8, "approxCharsPerParagraph": 800})
	if resp.Code != http.StatusOK {
		t.Fatalf("generate: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.GeneratedTexts["A"] != "本文" || !strings.HasPrefix(snap.GeneratedTexts["B"], writerService.ChapterErrorPrefix) {
		t.Fatalf("unexpected texts %v", snap.GeneratedTexts)
	}

	resp = do(t, r, http.MethodGet, "/sessions/"+id+"/document", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("document: expected 200, got %d", resp.Code)
	}
	if got := resp.Header().Get("Content-Disposition"); !strings.Contains(got, "generated_article.txt") {
		t.Fatalf("unexpected disposition %q", got)
	}
	if got := resp.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/plain") {
		t.Fatalf("unexpected content type %q", got)
	}
	body := resp.Body.String()
	if !strings.HasPrefix(body, "# テーマ\nX\n") || strings.Index(body, "## B\n") > strings.Index(body, "## A\n") {
		t.Fatalf("unexpected document:\n%s", body)
	}
}

func TestGenerateChaptersRejectsOutOfRangeParams(t *testing.T) {
	r := setupRouter(newStub())
	id := createSession(t, r)
	do(t, r, http.MethodPatch, "/sessions/"+id, map[string]string{"apiKey": "k"})
	do(t, r, http.MethodPut, "/sessions/"+id+"/chapters", map[string][]string{"chapters": {"A"}})

	resp := do(t, r, http.MethodPost, "/sessions/"+id+"/chapters/generate", map[string]int{"paragraphs": 20})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestGenerateChaptersStreamsProgress(t *testing.T) {
	r := setupRouter(newStub())
	id := createSession(t, r)
	do(t, r, http.MethodPatch, "/sessions/"+id, map[string]string{"apiKey": "k"})
	do(t, r, http.MethodPut, "/sessions/"+id+"/chapters", map[string][]string{"chapters": {"A", "B"}})

	resp := do(t, r, http.MethodPost, "/sessions/"+id+"/chapters/generate", nil, "Accept", "text/event-stream")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if got := resp.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("unexpected content type %q", got)
	}

	body := resp.Body.String()
	if strings.Count(body, "event: progress\n") != 3 {
		t.Fatalf("expected start + 2 progress events:\n%s", body)
	}
	if !strings.Contains(body, `"fraction":1`) {
		t.Fatalf("progress never reached 1:\n%s", body)
	}
	if !strings.Contains(body, "event: result\n") {
		t.Fatalf("missing result event:\n%s", body)
	}
}

func TestGenerateChaptersStreamReportsError(t *testing.T) {
	r := setupRouter(newStub())
	id := createSession(t, r)

	resp := do(t, r, http.MethodPost, "/sessions/"+id+"/chapters/generate", nil, "Accept", "text/event-stream")
	body := resp.Body.String()
	if !strings.Contains(body, "event: error\n") || !strings.Contains(body, `"kind":"config"`) {
		t.Fatalf("expected config error event:\n%s", body)
	}
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		writerService.ErrConfig:   http.StatusPreconditionFailed,
		writerService.ErrInvalid:  http.StatusBadRequest,
		writerService.ErrNotFound: http.StatusNotFound,
		writerService.ErrBusy:     http.StatusConflict,
		writerService.ErrNotReady: http.StatusConflict,
		writerService.ErrService:  http.StatusBadGateway,
		writerService.ErrCanceled: statusClientClosedRequest,
		errors.New("other"):       http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := statusFor(err); got != want {
			t.Fatalf("statusFor(%v) = %d, want %d", err, got, want)
		}
	}
}
