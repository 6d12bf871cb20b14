// Package httptransport is the thin HTTP layer over the streaming engine.
// Handlers delegate to the dispatcher without embedding business logic so
// transport concerns remain isolated.
package httptransport

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"auditstream/pkg/platform/httputil"
	"auditstream/pkg/platform/middleware/metadata"
	"auditstream/pkg/platform/middleware/requestid"
	"auditstream/pkg/platform/middleware/requesttime"
	"auditstream/pkg/platform/sentinel"
)

// NewRouter wires all public endpoints with the shared middleware chain.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httputil.WriteError(w, fmt.Errorf("no route for %s: %w", req.URL.Path, sentinel.ErrNotFound))
	})

	r.Post("/v1/events", h.HandleIngest)
	r.Get("/healthz", h.HandleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}
