package images

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rpupo63/portfolio-backend/errs"
)

// MaxUploadBytes is the largest image accepted, 5 MiB.
const MaxUploadBytes int64 = 5 << 20

// AllowedContentTypes maps each accepted image type to the extension used when storing it.
var AllowedContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// Upload is a file received from a client, fully buffered.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

func (u Upload) Size() int64 {
	return int64(len(u.Data))
}

func (u Upload) Extension() string {
	return strings.ToLower(filepath.Ext(u.Filename))
}

// MediaType is the declared content type without parameters, lowercased.
func (u Upload) MediaType() string {
	mediaType, _, err := mime.ParseMediaType(u.ContentType)
	if err != nil {
		mediaType = u.ContentType
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if mediaType == "image/jpg" {
		return "image/jpeg"
	}
	return mediaType
}

// UploadGuard decides whether an upload may be stored.
type UploadGuard struct {
	maxBytes int64
	sniff    bool
	scanner  Scanner
}

type GuardOption func(*UploadGuard)

// WithScanner runs every admitted upload through a malware scanner.
func WithScanner(scanner Scanner) GuardOption {
	return func(g *UploadGuard) {
		g.scanner = scanner
	}
}

// WithoutContentSniffing trusts the declared type and extension alone.
func WithoutContentSniffing() GuardOption {
	return func(g *UploadGuard) {
		g.sniff = false
	}
}

func WithMaxBytes(max int64) GuardOption {
	return func(g *UploadGuard) {
		if max > 0 {
			g.maxBytes = max
		}
	}
}

func NewUploadGuard(opts ...GuardOption) *UploadGuard {
	g := &UploadGuard{maxBytes: MaxUploadBytes, sniff: true}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *UploadGuard) MaxBytes() int64 {
	return g.maxBytes
}

// Admit rejects uploads that are too large, of the wrong type, or flagged by the scanner.
func (g *UploadGuard) Admit(ctx context.Context, u Upload) error {
	if len(u.Data) == 0 {
		return errs.NewPayloadRejectedError(errs.ConstraintContent, "Uploaded file is empty")
	}
	if u.Size() > g.maxBytes {
		return errs.NewPayloadRejectedError(errs.ConstraintSize, fmt.Sprintf("File size exceeds %dMB limit", g.maxBytes>>20))
	}
	if _, ok := AllowedContentTypes[u.MediaType()]; !ok {
		return errs.NewPayloadRejectedError(errs.ConstraintType, "Only image files are allowed (JPEG, PNG, GIF, WebP)")
	}
	if !allowedExtensions[u.Extension()] {
		return errs.NewPayloadRejectedError(errs.ConstraintType, "File extension must be .jpg, .jpeg, .png, .gif or .webp")
	}

	if g.sniff {
		detected := mimetype.Detect(u.Data)
		if !isAllowedDetected(detected) {
			return errs.NewPayloadRejectedError(errs.ConstraintContent, "File content is not a supported image")
		}
	}

	if g.scanner != nil {
		if err := g.scanner.Scan(ctx, bytes.NewReader(u.Data)); err != nil {
			return err
		}
	}
	return nil
}

func isAllowedDetected(detected *mimetype.MIME) bool {
	for contentType := range AllowedContentTypes {
		if detected.Is(contentType) {
			return true
		}
	}
	return false
}
