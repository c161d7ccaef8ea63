package images

import "strings"

// ImageCandidates are the possible sources for a profile image, highest priority first.
type ImageCandidates struct {
	ExplicitURL  string
	UploadedPath *string
	Existing     *string
}

// PrefersExplicitURL reports whether an explicit URL will win over any upload.
func PrefersExplicitURL(explicit string) bool {
	return strings.TrimSpace(explicit) != ""
}

// ResolveProfileImage picks the explicit URL, then the uploaded path, then the
// existing value. It returns nil when none is available.
func ResolveProfileImage(c ImageCandidates) (*string, error) {
	if explicit := strings.TrimSpace(c.ExplicitURL); explicit != "" {
		if err := ValidateRemoteURL("profileImage", explicit); err != nil {
			return nil, err
		}
		return &explicit, nil
	}
	if c.UploadedPath != nil && *c.UploadedPath != "" {
		path := *c.UploadedPath
		return &path, nil
	}
	if c.Existing != nil && *c.Existing != "" {
		existing := *c.Existing
		return &existing, nil
	}
	return nil, nil
}
