package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// setupAPIRoutes mounts the JSON API. Every response carries a CSRF token;
// admin mutations need an authenticated session first and a valid token second.
func setupAPIRoutes(r chi.Router, handlers *routeHandlers, authMiddleware authMiddleware, csrfMiddleware csrfMiddleware, loginLimiter func(http.Handler) http.Handler) {
	r.Route("/api", func(r chi.Router) {
		r.Use(csrfMiddleware.issue)

		// Admin session endpoints
		r.Get("/csrf-token", handlers.adminHandler.getCSRFToken())
		r.Get("/admin/status", handlers.adminHandler.getStatus())
		r.With(loginLimiter, csrfMiddleware.verify).Post("/admin/login", handlers.adminHandler.login())
		r.With(csrfMiddleware.verify).Post("/admin/logout", handlers.adminHandler.logout())

		// Public reads
		r.Get("/config", handlers.profileHandler.getSiteConfig())
		r.Get("/profile", handlers.profileHandler.getProfile())
		r.Get("/projects", handlers.projectHandler.getAllProjects())
		r.Get("/projects/{projectID}", handlers.projectHandler.getProject())

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.authenticate)
			r.Use(csrfMiddleware.verify)

			r.Post("/profile", handlers.profileHandler.upsertProfile())

			r.Post("/projects", handlers.projectHandler.createProject())
			r.Post("/projects/upload-image", handlers.projectHandler.uploadProjectImage())
			r.Patch("/projects/{projectID}", handlers.projectHandler.updateProject())
			r.Delete("/projects/{projectID}", handlers.projectHandler.deleteProject())
		})
	})
}
