// Package httpadapter exposes the search pipeline over HTTP.
package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/routers"

	"github.com/kirillkom/knowledge-gateway/internal/core/ports"
	"github.com/kirillkom/knowledge-gateway/internal/observability/metrics"
)

type Options struct {
	// ServiceName labels metrics and logs. Defaults to "api".
	ServiceName string
	// APIKey guards the /v1 routes when non-empty.
	APIKey string

	RateLimitRPS   float64
	RateLimitBurst int
	// MaxConcurrent bounds in-flight /v1 requests; zero disables the gate.
	MaxConcurrent int
	QueueTimeout  time.Duration

	Logger  *slog.Logger
	Metrics *metrics.HTTPServerMetrics
}

type Router struct {
	search     ports.SearchService
	opts       Options
	spec       *openapi3.T
	specRouter routers.Router
}

func NewRouter(search ports.SearchService, opts Options) (*Router, error) {
	spec, specRouter, err := loadOpenAPI()
	if err != nil {
		return nil, err
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "api"
	}
	if opts.QueueTimeout <= 0 {
		opts.QueueTimeout = 2 * time.Second
	}
	return &Router{
		search:     search,
		opts:       opts,
		spec:       spec,
		specRouter: specRouter,
	}, nil
}

// Handler builds the middleware chain: request id, access log, metrics, then
// per-API traffic control, auth and OpenAPI validation. Health, spec and
// metrics endpoints sit outside the API gate so probes survive overload.
func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("/v1/search", rt.handleSearch)
	api.HandleFunc("/v1/workspaces", rt.handleListWorkspaces)

	var apiHandler http.Handler = api
	apiHandler = rt.validationMiddleware(apiHandler)
	apiHandler = bearerAuthMiddleware(apiHandler, rt.opts.APIKey)
	apiHandler = backpressureMiddleware(apiHandler, rt.opts.MaxConcurrent, rt.opts.QueueTimeout)
	apiHandler = rateLimitMiddleware(apiHandler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst)

	root := http.NewServeMux()
	root.Handle("/v1/", apiHandler)
	root.HandleFunc("/healthz", rt.healthz)
	root.HandleFunc("/openapi.json", rt.serveOpenAPI)
	if rt.opts.Metrics != nil {
		root.Handle("/metrics", rt.opts.Metrics.Handler())
	}

	var handler http.Handler = root
	if rt.opts.Metrics != nil {
		handler = rt.opts.Metrics.Middleware(rt.opts.ServiceName, handler)
	}
	handler = accessLogMiddleware(handler, rt.opts.Logger)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) serveOpenAPI(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rt.spec)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
