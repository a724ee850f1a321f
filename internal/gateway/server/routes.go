package server

import (
	"net/http"

	"go.uber.org/zap"

	"summeriq/internal/gateway/handler"
	"summeriq/internal/gateway/middleware"
	"summeriq/internal/logging"
	"summeriq/internal/metrics"
)

func NewMux(
	projectHandler *handler.ProjectHandler,
	eventsHandler *handler.EventsHandler,
	log *zap.Logger,
) http.Handler {
	mux := http.NewServeMux()

	// Project operations
	mux.HandleFunc("POST /api/projects", projectHandler.HandleUpload)
	mux.HandleFunc("GET /api/projects/{id}", projectHandler.HandleMeta)
	mux.HandleFunc("DELETE /api/projects/{id}", projectHandler.HandleDelete)
	mux.HandleFunc("GET /api/projects/{id}/tree", projectHandler.HandleTree)
	mux.HandleFunc("GET /api/projects/{id}/file", projectHandler.HandleFile)
	mux.HandleFunc("POST /api/projects/{id}/analyze", projectHandler.HandleAnalyze)
	mux.HandleFunc("GET /api/projects/{id}/documentation", projectHandler.HandleDocumentation)
	mux.HandleFunc("POST /api/projects/{id}/ask", projectHandler.HandleAsk)

	// Progress
	mux.HandleFunc("GET /api/projects/{id}/events", eventsHandler.HandleEventsWS)

	// Ops
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	// Middleware
	return middleware.CORS(logging.Middleware(log, mux))
}
