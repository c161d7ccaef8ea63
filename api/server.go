package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rpupo63/portfolio-backend/auth"
	"github.com/rpupo63/portfolio-backend/config"
	"github.com/rpupo63/portfolio-backend/database"
	"github.com/rpupo63/portfolio-backend/errs"
	"github.com/rpupo63/portfolio-backend/images"
	"github.com/rs/zerolog/log"
)

// Services are the collaborators the handlers need besides the repositories.
type Services struct {
	Gate    *auth.Gate
	CSRF    *auth.CSRFGuard
	Guard   *images.UploadGuard
	Uploads images.UploadStore
}

func (s Services) validate() error {
	switch {
	case s.Gate == nil:
		return errors.New("api: auth gate is required")
	case s.CSRF == nil:
		return errors.New("api: csrf guard is required")
	case s.Guard == nil:
		return errors.New("api: upload guard is required")
	case s.Uploads == nil:
		return errors.New("api: upload store is required")
	}
	return nil
}

type Server struct {
	*http.Server
	startupTime time.Time
}

func NewServer(database database.Database, settings config.Settings, services Services) (Server, error) {
	if err := services.validate(); err != nil {
		return Server{}, err
	}

	address := fmt.Sprintf("0.0.0.0:%s", settings.Port) // Bind to 0.0.0.0 for external access

	// Capture startup time
	startupTime := time.Now()

	router := newRouter(database, services, withSettings(settings), withStartupTime(startupTime))

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  settings.ReadTimeout,  // Timeout for reading the entire request
		WriteTimeout: settings.WriteTimeout, // Timeout for writing the response
		IdleTimeout:  settings.IdleTimeout,  // Timeout for idle connections
	}

	return Server{server, startupTime}, nil
}

type router struct {
	settings    config.Settings
	startupTime time.Time
}

func withSettings(s config.Settings) func(*router) {
	return func(r *router) {
		r.settings = s
	}
}

func withStartupTime(startupTime time.Time) func(*router) {
	return func(r *router) {
		r.startupTime = startupTime
	}
}

func newRouter(database database.Database, services Services, opts ...func(*router)) *chi.Mux {
	var router router
	for _, opt := range opts {
		opt(&router)
	}

	chiRouter := chi.NewRouter()
	chiRouter.Use(LogInternalServerErrors)
	chiRouter.Use(middleware.RequestID)
	chiRouter.Use(middleware.RealIP)
	chiRouter.Use(securityHeaders)
	chiRouter.Use(ColoredHTTPLoggingMiddleware)
	if router.settings.MetricsEnabled {
		chiRouter.Use(MetricsMiddleware)
	}

	// Apply CORS middleware
	chiRouter.Use(CORSCheckMiddleware(router.settings.AllowedOrigins))
	chiRouter.Use(corsMiddleware(router.settings.AllowedOrigins))

	// Initialize all handlers
	handlers := initializeHandlers(database, services, router.settings.UploadTimeout)

	authMiddleware := newAuthMiddleware(services.Gate)
	csrfMiddleware := newCSRFMiddleware(services.Gate, services.CSRF)

	setupAPIRoutes(chiRouter, handlers, authMiddleware, csrfMiddleware, loginLimiter(router.settings.LoginRateLimit))

	chiRouter.Get("/healthz", healthCheck(router.startupTime))
	if router.settings.MetricsEnabled {
		chiRouter.Handle("/metrics", metricsHandler())
	}

	// Profile images stored on local disk are served as static files
	if disk, ok := services.Uploads.(*images.DiskUploads); ok {
		chiRouter.Handle(disk.PublicPrefix()+"/*", uploadFileServer(disk.PublicPrefix(), disk.Dir()))
		if disk.PublicPrefix() != images.LegacyPublicPrefix {
			chiRouter.Handle(images.LegacyPublicPrefix+"/*", uploadFileServer(images.LegacyPublicPrefix, disk.Dir()))
		}
	}

	return chiRouter
}

// loginLimiter caps login attempts per client IP per minute. A limit of zero disables it.
func loginLimiter(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	responder := NewResponder(log.With().Str("handlerName", "loginLimiter").Logger())
	return httprate.Limit(
		perMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			responder.WriteError(w, errs.NewRateLimitedError("Too many login attempts, try again later"))
		}),
	)
}

func (s Server) Start(errChannel chan<- error) {
	log.Info().Msgf("Server started on: %s", s.Addr)
	errChannel <- s.ListenAndServe()
}

func (s Server) ShutdownGracefully(timeout time.Duration) {
	log.Info().Msg("Gracefully shutting down...")

	gracefullCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.Shutdown(gracefullCtx); err != nil {
		log.Error().Msgf("Error shutting down the server: %v", err)
	} else {
		log.Info().Msg("HttpServer gracefully shut down")
	}
}
