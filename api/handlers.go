package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/rpupo63/portfolio-backend/database"
	"github.com/rs/zerolog/log"
)

// initializeHandlers creates and returns all handlers organized in a routeHandlers struct
func initializeHandlers(database database.Database, services Services, uploadTimeout time.Duration) *routeHandlers {
	return &routeHandlers{
		adminHandler:   newAdminHandler(services.Gate),
		profileHandler: newProfileHandler(database.ProfileRepo(), database.ProjectRepo(), services.Guard, services.Uploads, uploadTimeout),
		projectHandler: newProjectHandler(database.ProjectRepo(), services.Guard),
	}
}

// healthCheck reports liveness and uptime
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /healthz [get]
func healthCheck(startupTime time.Time) http.HandlerFunc {
	responder := NewResponder(log.With().Str("handlerName", "healthCheck").Logger())
	return func(w http.ResponseWriter, r *http.Request) {
		responder.WriteJSON(w, HealthResponse{
			Status:        "ok",
			UptimeSeconds: int64(time.Since(startupTime).Seconds()),
		})
	}
}

// uploadFileServer serves stored uploads from dir without directory listings.
func uploadFileServer(prefix, dir string) http.Handler {
	files := http.StripPrefix(prefix, http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") || strings.Contains(r.URL.Path, "/.") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=86400")
		files.ServeHTTP(w, r)
	})
}
