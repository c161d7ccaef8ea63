package api

import "github.com/rpupo63/portfolio-backend/models"

// routeHandlers contains all the handlers for different route types
type routeHandlers struct {
	adminHandler   adminHandler
	profileHandler profileHandler
	projectHandler projectHandler
}

// ErrorResponse represents an error response from the API
// @Description Error response structure
type ErrorResponse struct {
	Error   string `json:"error" example:"Internal Server Error"`
	Code    string `json:"code" example:"invalid_argument"`
	Status  string `json:"status" example:"error"`
	Field   string `json:"field,omitempty" example:"title"`
	Details string `json:"details,omitempty" example:"Additional error details"`
}

// CSRFTokenResponse carries the token that mutating requests must echo in X-CSRF-Token.
type CSRFTokenResponse struct {
	Token string `json:"token"`
}

type AdminStatusResponse struct {
	Authenticated bool `json:"authenticated"`
	Configured    bool `json:"configured"`
}

type LoginRequest struct {
	Key string `json:"key"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

// SiteConfigResponse is the public subset of the site document.
type SiteConfigResponse struct {
	Profile      *models.PublicProfile `json:"profile"`
	ProjectCount int                   `json:"projectCount"`
}

type ImageDataResponse struct {
	ImageData string `json:"imageData"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
}
