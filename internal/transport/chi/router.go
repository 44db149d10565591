package chi

import (
	"net/http"

	gochi "github.com/go-chi/chi/v5"
)

// Routes registers the API on r.
func (s *Server) Routes(r gochi.Router) {
	r.Post("/chat", s.Chat)
	r.Get("/debug/search", s.DebugSearch)
	r.Get("/usage", s.GetUsage)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorCodeBadRequest, "method not allowed")
	})
}
