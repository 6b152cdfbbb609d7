package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/kirillkom/knowledge-gateway/internal/core/domain"
)

type searchServiceFake struct {
	resp       *domain.SearchResponse
	err        error
	workspaces []domain.WorkspaceDescriptor
	wsErr      error

	lastReq domain.SearchRequest
	calls   int
}

func (f *searchServiceFake) Search(_ context.Context, req domain.SearchRequest) (*domain.SearchResponse, error) {
	f.lastReq = req
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	return &domain.SearchResponse{Results: []domain.SearchResult{}}, nil
}

func (f *searchServiceFake) ListWorkspaces(context.Context) ([]domain.WorkspaceDescriptor, error) {
	if f.wsErr != nil {
		return nil, f.wsErr
	}
	return f.workspaces, nil
}

func newTestHandler(t *testing.T, fake *searchServiceFake, opts Options) http.Handler {
	t.Helper()
	rt, err := NewRouter(fake, opts)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return rt.Handler()
}

func postSearch(handler http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/search", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestPostSearchReturnsPipelineResponse(t *testing.T) {
	fake := &searchServiceFake{
		resp: &domain.SearchResponse{
			Results: []domain.SearchResult{
				{Title: "Goroutine leaks", Snippet: "how to find them", Source: "web-knowledge", Origin: domain.OriginInternal, Score: 0.91},
			},
			TotalCount:   1,
			QualityScore: 0.8,
		},
	}
	handler := newTestHandler(t, fake, Options{})

	res := postSearch(handler, `{"q": "goroutine leak", "limit": 5}`)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var got domain.SearchResponse
	if err := json.Unmarshal(res.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.TotalCount != 1 || len(got.Results) != 1 || got.Results[0].Title != "Goroutine leaks" {
		t.Fatalf("unexpected response: %+v", got)
	}
	if fake.lastReq.Text != "goroutine leak" || fake.lastReq.Limit != 5 {
		t.Fatalf("request not passed through: %+v", fake.lastReq)
	}
}

func TestGetSearchBindsQueryParameters(t *testing.T) {
	fake := &searchServiceFake{}
	handler := newTestHandler(t, fake, Options{})

	target := "/v1/search?q=goroutine+leak&technology=go&limit=5&offset=10" +
		"&providers=brave,searxng&force_external=true&session_id=sess-1"
	req := httptest.NewRequest(http.MethodGet, target, nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	want := domain.SearchRequest{
		Text:          "goroutine leak",
		TechHint:      "go",
		Limit:         5,
		Offset:        10,
		ProviderIDs:   []string{"brave", "searxng"},
		ForceExternal: true,
		SessionID:     "sess-1",
	}
	if !reflect.DeepEqual(fake.lastReq, want) {
		t.Fatalf("bound request mismatch:\n got %+v\nwant %+v", fake.lastReq, want)
	}
}

func TestGetSearchWithoutQueryIsRejected(t *testing.T) {
	fake := &searchServiceFake{}
	handler := newTestHandler(t, fake, Options{})

	req := httptest.NewRequest(http.MethodGet, "/v1/search?limit=5", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if fake.calls != 0 {
		t.Fatalf("pipeline must not run for invalid requests, got %d calls", fake.calls)
	}
}

func TestPostSearchRejectsMalformedJSON(t *testing.T) {
	fake := &searchServiceFake{}
	handler := newTestHandler(t, fake, Options{})

	res := postSearch(handler, `{"q": `)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if fake.calls != 0 {
		t.Fatalf("pipeline must not run for malformed bodies, got %d calls", fake.calls)
	}
}

func TestValidationErrorMapsToBadRequest(t *testing.T) {
	fake := &searchServiceFake{
		err: &domain.ValidationError{Field: "q", Reason: "must not exceed 500 characters"},
	}
	handler := newTestHandler(t, fake, Options{})

	res := postSearch(handler, `{"q": "x"}`)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "500 characters") {
		t.Fatalf("validation reason should reach the caller, got %s", res.Body.String())
	}
}

func TestTimeoutErrorMapsToGatewayTimeout(t *testing.T) {
	fake := &searchServiceFake{
		err: domain.WrapError(domain.ErrTimeout, "search", context.DeadlineExceeded),
	}
	handler := newTestHandler(t, fake, Options{})

	res := postSearch(handler, `{"q": "goroutine leak"}`)

	if res.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "request timed out") {
		t.Fatalf("unexpected body: %s", res.Body.String())
	}
}

func TestUnknownErrorIsNotEchoed(t *testing.T) {
	fake := &searchServiceFake{
		err: errors.New("pg: connection refused to 10.2.3.4:5432"),
	}
	handler := newTestHandler(t, fake, Options{})

	res := postSearch(handler, `{"q": "goroutine leak"}`)

	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if strings.Contains(res.Body.String(), "10.2.3.4") {
		t.Fatalf("internal detail leaked to caller: %s", res.Body.String())
	}
	if !strings.Contains(res.Body.String(), "internal error") {
		t.Fatalf("unexpected body: %s", res.Body.String())
	}
}

func TestBearerAuthGuardsSearchRoutes(t *testing.T) {
	fake := &searchServiceFake{}
	handler := newTestHandler(t, fake, Options{APIKey: "secret-key"})

	cases := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer secret-key", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/v1/search?q=test", nil)
		if tc.authHeader != "" {
			req.Header.Set("Authorization", tc.authHeader)
		}
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != tc.wantStatus {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.wantStatus, res.Code)
		}
	}
}

func TestHealthzBypassesAuth(t *testing.T) {
	handler := newTestHandler(t, &searchServiceFake{}, Options{APIKey: "secret-key"})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestListWorkspacesReturnsCatalog(t *testing.T) {
	fake := &searchServiceFake{
		workspaces: []domain.WorkspaceDescriptor{
			{Slug: "python-backend", Name: "Python Backend", TechTags: []string{"python"}},
			{Slug: "web-knowledge", Name: "Web Knowledge"},
		},
	}
	handler := newTestHandler(t, fake, Options{})

	req := httptest.NewRequest(http.MethodGet, "/v1/workspaces", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var got struct {
		Workspaces []domain.WorkspaceDescriptor `json:"workspaces"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got.Workspaces) != 2 || got.Workspaces[0].Slug != "python-backend" {
		t.Fatalf("unexpected catalog: %+v", got.Workspaces)
	}
}

func TestListWorkspacesEmptyCatalogIsArray(t *testing.T) {
	handler := newTestHandler(t, &searchServiceFake{}, Options{})

	req := httptest.NewRequest(http.MethodGet, "/v1/workspaces", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `"workspaces":[]`) {
		t.Fatalf("empty catalog should serialize as [], got %s", res.Body.String())
	}
}

func TestServeOpenAPISpec(t *testing.T) {
	handler := newTestHandler(t, &searchServiceFake{}, Options{})

	req := httptest.NewRequest(http.MethodGet, "/openapi.json", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "Knowledge Gateway") {
		t.Fatalf("spec body missing title: %s", res.Body.String())
	}
}

func TestDeleteSearchIsMethodNotAllowed(t *testing.T) {
	handler := newTestHandler(t, &searchServiceFake{}, Options{})

	req := httptest.NewRequest(http.MethodDelete, "/v1/search", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestResponseCarriesRequestID(t *testing.T) {
	handler := newTestHandler(t, &searchServiceFake{}, Options{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-42")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if got := res.Header().Get(requestIDHeader); got != "req-42" {
		t.Fatalf("expected request id to round-trip, got %q", got)
	}
}
