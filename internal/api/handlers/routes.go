package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Instrument wraps a handler with request metrics under a handler id
type Instrument func(handlerID string, h http.Handler) http.Handler

func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	}
}

// NewRouter registers every route. The SSE route is never passed to instrument
// because the metrics wrapper must not sit between the handler and its Flusher.
func (h *Handlers) NewRouter(instrument Instrument) *http.ServeMux {
	if instrument == nil {
		instrument = func(_ string, next http.Handler) http.Handler { return next }
	}
	protect := h.config.Tokens.AuthMiddleware

	mux := http.NewServeMux()
	handle := func(pattern, id string, fn http.HandlerFunc) {
		mux.Handle(pattern, instrument(id, enableCORS(fn)))
	}

	// Public routes
	handle("POST /api/login", "login", h.LoginHandler)
	handle("POST /api/register", "register", h.RegisterHandler)
	handle("GET /api/health", "health", h.HealthHandler)
	mux.Handle("GET /metrics", promhttp.Handler())
	handle("GET /sites/{key}", "sites", h.SiteRedirectHandler)
	handle("GET /sites/{key}/{path...}", "sites", h.SiteHandler)

	// Protected routes
	handle("POST /api/apps", "create_app", protect(h.CreateAppHandler))
	handle("POST /api/apps/{id}/deploy", "deploy", protect(h.DeployHandler))
	handle("GET /api/apps/{id}/history", "history", protect(h.HistoryHandler))
	mux.HandleFunc("GET /api/apps/{id}/chat/gen", enableCORS(protect(h.GenerateHandler)))

	// CORS preflight for every API route
	mux.HandleFunc("OPTIONS /api/", enableCORS(nil))

	return mux
}
