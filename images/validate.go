package images

import (
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/rpupo63/portfolio-backend/errs"
)

// ValidateRemoteURL accepts only absolute http and https URLs.
func ValidateRemoteURL(field, raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !u.IsAbs() || u.Host == "" {
		return errs.NewInvalidArgumentError(field, "must be a valid URL")
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return nil
	default:
		return errs.NewInvalidArgumentError(field, "only HTTP and HTTPS URLs are allowed")
	}
}

// ValidateImageReference accepts a remote URL or a server-relative upload path.
func ValidateImageReference(field, raw string) error {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//") {
		if strings.Contains(raw, "..") {
			return errs.NewInvalidArgumentError(field, "must not contain path traversal")
		}
		return nil
	}
	return ValidateRemoteURL(field, raw)
}

// ValidateDataURI checks a base64 data URI carrying one of the accepted image types.
func ValidateDataURI(field, raw string) error {
	meta, payload, ok := strings.Cut(strings.TrimSpace(raw), ",")
	if !ok || !strings.HasPrefix(meta, "data:") {
		return errs.NewInvalidArgumentError(field, "must be a data URI")
	}
	mediaType, encoding, _ := strings.Cut(strings.TrimPrefix(meta, "data:"), ";")
	if encoding != "base64" {
		return errs.NewInvalidArgumentError(field, "must be base64 encoded")
	}
	if _, allowed := AllowedContentTypes[strings.ToLower(mediaType)]; !allowed {
		return errs.NewPayloadRejectedError(errs.ConstraintType, "Only image files are allowed (JPEG, PNG, GIF, WebP)")
	}
	if int64(base64.StdEncoding.DecodedLen(len(payload))) > MaxUploadBytes+2 {
		return errs.NewPayloadRejectedError(errs.ConstraintSize, "File size exceeds 5MB limit")
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return errs.NewInvalidArgumentError(field, "contains invalid base64 data")
	}
	return nil
}

// EncodeDataURI renders an admitted upload as an inline data URI.
func EncodeDataURI(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
