package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	middlewarePkg "github.com/zhouzirui/chaptered-writer/backend/internal/middleware"
	progressHandler "github.com/zhouzirui/chaptered-writer/backend/internal/handler/progress"
	writerHandler "github.com/zhouzirui/chaptered-writer/backend/internal/handler/writer"
	progressService "github.com/zhouzirui/chaptered-writer/backend/internal/service/progress"
	writerService "github.com/zhouzirui/chaptered-writer/backend/internal/service/writer"
	"github.com/zhouzirui/chaptered-writer/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(writerSvc *writerService.Service, broker *progressService.Broker) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(middlewarePkg.DefaultCORSConfig()))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.RespondError(w, http.StatusNotFound, "route not found")
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		writerHandler.New(writerSvc).RegisterRoutes(api)

		if broker != nil {
			progressHandler.New(broker, writerSvc).RegisterRoutes(api)
		}
	})

	return r
}
