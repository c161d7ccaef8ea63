package database

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rpupo63/portfolio-backend/images"
	"github.com/rpupo63/portfolio-backend/models"
)

type ProfileRepo struct {
	store *DocumentStore
}

func NewProfileRepo(store *DocumentStore) *ProfileRepo {
	return &ProfileRepo{store}
}

// Find returns the stored profile, or nil when none has been saved yet.
func (r *ProfileRepo) Find(ctx context.Context) (*models.Profile, error) {
	doc, err := r.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if doc.Profile == nil {
		return nil, nil
	}
	profile := doc.Profile.Clone()
	return &profile, nil
}

// ImageChoice picks the profile image given the value currently stored.
// It runs inside the write cycle, so stored is never stale.
type ImageChoice func(stored *string) (*string, error)

// Upsert replaces every profile field with the input. The id survives replacement.
func (r *ProfileRepo) Upsert(ctx context.Context, input models.ProfileInput) (*models.Profile, error) {
	saved, _, err := r.upsert(ctx, input, nil)
	return saved, err
}

// UpsertChoosingImage is Upsert with the image decided by choose against the
// stored profile. It also returns the image reference the save replaced, if any.
// A choice equal to the stored value is kept without revalidation.
func (r *ProfileRepo) UpsertChoosingImage(ctx context.Context, input models.ProfileInput, choose ImageChoice) (*models.Profile, *string, error) {
	input.ProfileImage = ""
	return r.upsert(ctx, input, choose)
}

func (r *ProfileRepo) upsert(ctx context.Context, input models.ProfileInput, choose ImageChoice) (*models.Profile, *string, error) {
	candidate, err := buildProfile(input)
	if err != nil {
		return nil, nil, err
	}

	var saved models.Profile
	var replaced *string
	_, err = r.store.Update(ctx, func(doc *models.Document) error {
		profile := candidate.Clone()

		var stored *string
		if doc.Profile != nil && doc.Profile.ProfileImage != nil {
			image := *doc.Profile.ProfileImage
			stored = &image
		}
		if choose != nil {
			image, err := choose(stored)
			if err != nil {
				return err
			}
			if image != nil && !sameRef(image, stored) {
				if err := images.ValidateImageReference("profileImage", *image); err != nil {
					return err
				}
			}
			profile.ProfileImage = image
		}

		if doc.Profile != nil && doc.Profile.ID != "" {
			profile.ID = doc.Profile.ID
		} else {
			profile.ID = uuid.NewString()
		}
		doc.Profile = &profile
		saved = profile.Clone()
		if stored != nil && !sameRef(profile.ProfileImage, stored) {
			replaced = stored
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &saved, replaced, nil
}

func sameRef(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

func buildProfile(input models.ProfileInput) (models.Profile, error) {
	profile := models.Profile{
		Name:     input.Name,
		Title:    input.Title,
		Bio:      input.Bio,
		Email:    input.Email,
		Phone:    input.Phone,
		Location: input.Location,
	}

	if image := strings.TrimSpace(input.ProfileImage); image != "" {
		if err := images.ValidateImageReference("profileImage", image); err != nil {
			return models.Profile{}, err
		}
		profile.ProfileImage = &image
	}

	socials := []struct {
		field string
		raw   string
		dst   **string
	}{
		{"github", input.Github, &profile.Github},
		{"linkedin", input.Linkedin, &profile.Linkedin},
		{"twitter", input.Twitter, &profile.Twitter},
	}
	for _, social := range socials {
		value := strings.TrimSpace(social.raw)
		if value == "" {
			continue
		}
		if err := images.ValidateRemoteURL(social.field, value); err != nil {
			return models.Profile{}, err
		}
		*social.dst = &value
	}
	return profile, nil
}
