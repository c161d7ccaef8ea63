package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rpupo63/portfolio-backend/auth"
	"github.com/rpupo63/portfolio-backend/errs"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const maxLoginBodyBytes = 4 << 10

type adminHandler struct {
	responder Responder
	logger    zerolog.Logger
	gate      *auth.Gate
}

func newAdminHandler(gate *auth.Gate) adminHandler {
	logger := log.With().Str("handlerName", "adminHandler").Logger()

	return adminHandler{
		responder: NewResponder(logger),
		logger:    logger,
		gate:      gate,
	}
}

// getCSRFToken returns the token issued for the caller's session
// @Summary Get CSRF token
// @Tags Admin
// @Produce json
// @Success 200 {object} CSRFTokenResponse
// @Failure 503 {object} ErrorResponse "Session store unavailable"
// @Router /api/csrf-token [get]
func (h adminHandler) getCSRFToken() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := ctxGetCSRFToken(r.Context())
		if token == "" {
			h.responder.WriteError(w, errs.NewStorageError("establish session", errs.ErrInternal))
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		h.responder.WriteJSON(w, CSRFTokenResponse{Token: token})
	}
}

// getStatus reports whether the caller is logged in and whether admin access is configured
// @Summary Admin status
// @Tags Admin
// @Produce json
// @Success 200 {object} AdminStatusResponse
// @Router /api/admin/status [get]
func (h adminHandler) getStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.responder.WriteJSON(w, AdminStatusResponse{
			Authenticated: h.gate.IsAuthenticated(r),
			Configured:    h.gate.Configured(),
		})
	}
}

// login checks the admin key and marks the session authenticated
// @Summary Admin login
// @Tags Admin
// @Accept json
// @Produce json
// @Param body body LoginRequest true "Admin key"
// @Success 200 {object} SuccessResponse
// @Failure 401 {object} ErrorResponse "Invalid admin key"
// @Failure 403 {object} ErrorResponse "Admin access not configured or CSRF rejected"
// @Failure 429 {object} ErrorResponse "Too many attempts"
// @Router /api/admin/login [post]
func (h adminHandler) login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body LoginRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxLoginBodyBytes)).Decode(&body); err != nil && err != io.EOF {
			h.responder.WriteError(w, errs.NewMalformedPayloadError("JSON", err))
			return
		}

		if err := h.gate.Login(w, r, body.Key); err != nil {
			h.logger.Warn().Str("remote_addr", r.RemoteAddr).Err(err).Msg("Admin login rejected")
			h.responder.WriteError(w, err)
			return
		}

		h.logger.Info().Str("remote_addr", r.RemoteAddr).Msg("Admin logged in")
		h.responder.WriteJSON(w, SuccessResponse{Success: true})
	}
}

// logout destroys the admin session
// @Summary Admin logout
// @Tags Admin
// @Produce json
// @Success 200 {object} SuccessResponse
// @Router /api/admin/logout [post]
func (h adminHandler) logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.gate.Logout(w, r); err != nil {
			h.responder.WriteError(w, err)
			return
		}
		h.responder.WriteJSON(w, SuccessResponse{Success: true})
	}
}
