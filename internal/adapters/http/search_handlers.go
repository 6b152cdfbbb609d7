package httpadapter

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/knowledge-gateway/internal/core/domain"
	"github.com/kirillkom/knowledge-gateway/internal/observability/metrics"
)

func (rt *Router) handleSearch(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.searchFromBody(w, r)
	case http.MethodGet:
		rt.searchFromQuery(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (rt *Router) searchFromBody(w http.ResponseWriter, r *http.Request) {
	var req domain.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rt.recordRejected("invalid")
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	rt.runSearch(w, r, req)
}

func (rt *Router) searchFromQuery(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var req domain.SearchRequest

	bindings := []struct {
		name     string
		explode  bool
		required bool
		dest     any
	}{
		{"q", true, true, &req.Text},
		{"technology", true, false, &req.TechHint},
		{"limit", true, false, &req.Limit},
		{"offset", true, false, &req.Offset},
		{"providers", false, false, &req.ProviderIDs},
		{"force_external", true, false, &req.ForceExternal},
		{"session_id", true, false, &req.SessionID},
	}
	for _, b := range bindings {
		if err := runtime.BindQueryParameter("form", b.explode, b.required, b.name, query, b.dest); err != nil {
			rt.recordRejected("invalid")
			writeError(w, http.StatusBadRequest, "invalid query parameter "+b.name)
			return
		}
	}
	rt.runSearch(w, r, req)
}

func (rt *Router) runSearch(w http.ResponseWriter, r *http.Request, req domain.SearchRequest) {
	start := time.Now()
	resp, err := rt.search.Search(r.Context(), req)
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		rt.recordRejected(rejectionLabel(status))
		writeError(w, status, clientMessage(status, err))
		return
	}

	if rt.opts.Metrics != nil {
		rt.opts.Metrics.RecordSearch(rt.opts.ServiceName, "http", metrics.SearchObservation{
			ResultCount:         len(resp.Results),
			QualityScore:        resp.QualityScore,
			CacheHit:            resp.CacheHit,
			EnrichmentTriggered: resp.EnrichmentTriggered,
			ExternalSearchUsed:  resp.ExternalSearchUsed,
			FailedWorkspaces:    resp.FailedWorkspaces,
			Duration:            time.Since(start),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	workspaces, err := rt.search.ListWorkspaces(r.Context())
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		writeError(w, status, clientMessage(status, err))
		return
	}
	if workspaces == nil {
		workspaces = []domain.WorkspaceDescriptor{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"workspaces": workspaces})
}

func (rt *Router) recordRejected(status string) {
	if rt.opts.Metrics != nil {
		rt.opts.Metrics.RecordSearchRejected(rt.opts.ServiceName, "http", status)
	}
}

func rejectionLabel(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid"
	case http.StatusGatewayTimeout:
		return "timeout"
	default:
		return "error"
	}
}
