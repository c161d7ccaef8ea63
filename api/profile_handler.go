package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/rpupo63/portfolio-backend/database"
	"github.com/rpupo63/portfolio-backend/errs"
	"github.com/rpupo63/portfolio-backend/images"
	"github.com/rpupo63/portfolio-backend/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	profileImageField    = "profileImage"
	profileImageURLField = "profileImageUrl"

	// multipart overhead allowed on top of the image itself
	formOverheadBytes = 1 << 20
)

type profileHandler struct {
	responder     Responder
	logger        zerolog.Logger
	profileRepo   *database.ProfileRepo
	projectRepo   *database.ProjectRepo
	guard         *images.UploadGuard
	uploads       images.UploadStore
	uploadTimeout time.Duration
}

func newProfileHandler(profileRepo *database.ProfileRepo, projectRepo *database.ProjectRepo, guard *images.UploadGuard, uploads images.UploadStore, uploadTimeout time.Duration) profileHandler {
	logger := log.With().Str("handlerName", "profileHandler").Logger()

	return profileHandler{
		responder:     NewResponder(logger),
		logger:        logger,
		profileRepo:   profileRepo,
		projectRepo:   projectRepo,
		guard:         guard,
		uploads:       uploads,
		uploadTimeout: uploadTimeout,
	}
}

// profileRequest is the profile form. The stored image is never taken from
// the body directly; it comes from profileImageUrl or an uploaded file.
type profileRequest struct {
	Name            string `json:"name"`
	Title           string `json:"title"`
	Bio             string `json:"bio"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Location        string `json:"location"`
	Github          string `json:"github"`
	Linkedin        string `json:"linkedin"`
	Twitter         string `json:"twitter"`
	ProfileImageURL string `json:"profileImageUrl"`
}

func (p profileRequest) input() models.ProfileInput {
	return models.ProfileInput{
		Name:     p.Name,
		Title:    p.Title,
		Bio:      p.Bio,
		Email:    p.Email,
		Phone:    p.Phone,
		Location: p.Location,
		Github:   p.Github,
		Linkedin: p.Linkedin,
		Twitter:  p.Twitter,
	}
}

// getSiteConfig returns the public part of the site document
// @Summary Public site config
// @Tags Profile
// @Produce json
// @Success 200 {object} SiteConfigResponse
// @Failure 503 {object} ErrorResponse "Storage unavailable"
// @Router /api/config [get]
func (h profileHandler) getSiteConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, err := h.profileRepo.Find(r.Context())
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		projects, err := h.projectRepo.FindAll(r.Context())
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		response := SiteConfigResponse{ProjectCount: len(projects)}
		if profile != nil {
			public := profile.Public()
			response.Profile = &public
		}
		h.responder.WriteJSON(w, response)
	}
}

// getProfile returns the stored profile
// @Summary Get profile
// @Tags Profile
// @Produce json
// @Success 200 {object} models.Profile
// @Failure 404 {object} ErrorResponse "Profile not found"
// @Router /api/profile [get]
func (h profileHandler) getProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, err := h.profileRepo.Find(r.Context())
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		if profile == nil {
			h.responder.WriteError(w, errs.NewNotFound("profile"))
			return
		}
		h.responder.WriteJSON(w, profile)
	}
}

// upsertProfile replaces the profile, resolving its image from an explicit URL, an uploaded file or the stored value
// @Summary Create or replace profile
// @Tags Profile
// @Accept multipart/form-data,application/x-www-form-urlencoded,json
// @Produce json
// @Success 200 {object} models.Profile
// @Failure 400 {object} ErrorResponse "Invalid field"
// @Failure 401 {object} ErrorResponse "Not logged in"
// @Failure 403 {object} ErrorResponse "CSRF rejected"
// @Failure 413 {object} ErrorResponse "Image too large"
// @Failure 415 {object} ErrorResponse "Unsupported image type"
// @Router /api/profile [post]
func (h profileHandler) upsertProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		maxBody := h.guard.MaxBytes() + formOverheadBytes
		r.Body = http.MaxBytesReader(w, r.Body, maxBody)

		req, upload, err := parseProfileRequest(r, maxBody)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		if upload != nil {
			if err := h.guard.Admit(ctx, *upload); err != nil {
				h.logger.Warn().Err(err).Str("filename", upload.Filename).Msg("Profile image rejected")
				h.responder.WriteError(w, err)
				return
			}
		}

		var uploadedPath *string
		if upload != nil && !images.PrefersExplicitURL(req.ProfileImageURL) {
			uploadCtx, cancel := context.WithTimeout(ctx, h.uploadTimeout)
			path, err := h.uploads.Save(uploadCtx, *upload)
			cancel()
			if err != nil {
				if errs.KindOf(err) == errs.KindUnknown {
					err = errs.NewStorageError("store profile image", err)
				}
				h.responder.WriteError(w, err)
				return
			}
			uploadedPath = &path
		}

		// The stored image is read inside the write cycle so a concurrent
		// replacement is never undone.
		saved, replaced, err := h.profileRepo.UpsertChoosingImage(ctx, req.input(), func(stored *string) (*string, error) {
			return images.ResolveProfileImage(images.ImageCandidates{
				ExplicitURL:  req.ProfileImageURL,
				UploadedPath: uploadedPath,
				Existing:     stored,
			})
		})
		if err != nil {
			h.discardUpload(uploadedPath)
			h.responder.WriteError(w, err)
			return
		}
		h.discardUpload(replaced)

		h.responder.WriteJSON(w, saved)
	}
}

// discardUpload removes a stored upload this server owns. Failures are only logged.
func (h profileHandler) discardUpload(ref *string) {
	if ref == nil || !h.uploads.Owns(*ref) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.uploadTimeout)
	defer cancel()
	if err := h.uploads.Delete(ctx, *ref); err != nil {
		h.logger.Warn().Err(err).Str("ref", *ref).Msg("Failed to remove stored profile image")
	}
}

func parseProfileRequest(r *http.Request, maxBody int64) (profileRequest, *images.Upload, error) {
	var req profileRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxBody); err != nil {
			return req, nil, bodyError("multipart form", err)
		}
		defer r.MultipartForm.RemoveAll()
		req = profileFromForm(r)

		file, header, err := r.FormFile(profileImageField)
		if errors.Is(err, http.ErrMissingFile) {
			return req, nil, nil
		}
		if err != nil {
			return req, nil, bodyError("multipart form", err)
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return req, nil, bodyError("multipart form", err)
		}
		return req, &images.Upload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		}, nil

	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return req, nil, bodyError("form", err)
		}
		return profileFromForm(r), nil, nil

	default:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return req, nil, bodyError("JSON", err)
		}
		return req, nil, nil
	}
}

func profileFromForm(r *http.Request) profileRequest {
	return profileRequest{
		Name:            r.FormValue("name"),
		Title:           r.FormValue("title"),
		Bio:             r.FormValue("bio"),
		Email:           r.FormValue("email"),
		Phone:           r.FormValue("phone"),
		Location:        r.FormValue("location"),
		Github:          r.FormValue("github"),
		Linkedin:        r.FormValue("linkedin"),
		Twitter:         r.FormValue("twitter"),
		ProfileImageURL: r.FormValue(profileImageURLField),
	}
}

// bodyError maps body read failures, turning an exceeded MaxBytesReader into a size rejection.
func bodyError(payloadType string, err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return errs.NewMaxBodySizeExceededError(maxErr.Limit)
	}
	return errs.NewMalformedPayloadError(payloadType, err)
}
