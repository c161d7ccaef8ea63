package database

import (
	"math"
	"strconv"
	"strings"

	"github.com/rpupo63/portfolio-backend/errs"
	"github.com/rpupo63/portfolio-backend/images"
	"github.com/rpupo63/portfolio-backend/models"
)

type change[T any] struct {
	set   bool
	value T
}

// projectChanges is a validated set of field updates, ready to apply inside a write cycle.
type projectChanges struct {
	title           change[string]
	description     change[string]
	longDescription change[*string]
	image           change[*string]
	imageData       change[*string]
	tags            change[[]string]
	liveURL         change[*string]
	githubURL       change[*string]
	order           change[int]
}

// collectProjectChanges validates the fields. With requireCore set, title and
// description must be present, as on create.
func collectProjectChanges(fields models.ProjectFields, requireCore bool) (projectChanges, error) {
	var c projectChanges
	var err error

	if c.title, err = requiredText("title", fields.Title, requireCore); err != nil {
		return c, err
	}
	if c.description, err = requiredText("description", fields.Description, requireCore); err != nil {
		return c, err
	}

	if fields.LongDescription.Set {
		c.longDescription = change[*string]{set: true, value: nonEmpty(fields.LongDescription)}
	}

	if fields.Image.Set {
		image := nonEmpty(fields.Image)
		if image != nil {
			if err := images.ValidateImageReference("image", *image); err != nil {
				return c, err
			}
		}
		c.image = change[*string]{set: true, value: image}
	}
	if fields.ImageData.Set {
		data := nonEmpty(fields.ImageData)
		if data != nil {
			if err := images.ValidateDataURI("imageData", *data); err != nil {
				return c, err
			}
		}
		c.imageData = change[*string]{set: true, value: data}
	}
	if c.image.value != nil && c.imageData.value != nil {
		return c, errs.NewInvalidArgumentError("image", "image and imageData cannot both be set")
	}

	if fields.Tags.Set {
		tags := []string{}
		if fields.Tags.Present() {
			tags = append(tags, fields.Tags.Value...)
		}
		c.tags = change[[]string]{set: true, value: tags}
	}

	if c.liveURL, err = optionalURL("liveUrl", fields.LiveURL); err != nil {
		return c, err
	}
	if c.githubURL, err = optionalURL("githubUrl", fields.GithubURL); err != nil {
		return c, err
	}

	if fields.Order.Present() {
		order, ok, err := ParseOrder(fields.Order.Value)
		if err != nil {
			return c, err
		}
		if ok {
			c.order = change[int]{set: true, value: order}
		}
	}
	return c, nil
}

func (c projectChanges) apply(p *models.Project) {
	if c.title.set {
		p.Title = c.title.value
	}
	if c.description.set {
		p.Description = c.description.value
	}
	if c.longDescription.set {
		p.LongDescription = c.longDescription.value
	}
	if c.image.set {
		p.Image = c.image.value
		if p.Image != nil && !c.imageData.set {
			p.ImageData = nil
		}
	}
	if c.imageData.set {
		p.ImageData = c.imageData.value
		if p.ImageData != nil && !c.image.set {
			p.Image = nil
		}
	}
	if c.tags.set {
		p.Tags = append([]string{}, c.tags.value...)
	}
	if c.liveURL.set {
		p.LiveURL = c.liveURL.value
	}
	if c.githubURL.set {
		p.GithubURL = c.githubURL.value
	}
	if c.order.set {
		p.Order = c.order.value
	}
}

// ParseOrder converts a raw order to a non-negative integer, flooring fractions.
// ok is false when the value is empty and should be ignored.
func ParseOrder(v models.OrderValue) (order int, ok bool, err error) {
	raw := v.Raw()
	if raw == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, false, errs.NewInvalidArgumentError("order", "must be a valid non-negative number")
	}
	if f > math.MaxInt32 {
		return 0, false, errs.NewInvalidArgumentError("order", "is too large")
	}
	return int(math.Floor(f)), true, nil
}

func requiredText(field string, v models.Optional[string], required bool) (change[string], error) {
	if !v.Set {
		if required {
			return change[string]{}, errs.NewMissingRequiredFieldError(field)
		}
		return change[string]{}, nil
	}
	if v.Null || strings.TrimSpace(v.Value) == "" {
		if required {
			return change[string]{}, errs.NewMissingRequiredFieldError(field)
		}
		return change[string]{}, errs.NewInvalidArgumentError(field, "cannot be empty")
	}
	return change[string]{set: true, value: v.Value}, nil
}

func optionalURL(field string, v models.Optional[string]) (change[*string], error) {
	if !v.Set {
		return change[*string]{}, nil
	}
	value := nonEmpty(v)
	if value != nil {
		if err := images.ValidateRemoteURL(field, *value); err != nil {
			return change[*string]{}, err
		}
	}
	return change[*string]{set: true, value: value}, nil
}

// nonEmpty maps null and blank strings to nil. Other values are kept verbatim.
func nonEmpty(v models.Optional[string]) *string {
	if !v.Present() || strings.TrimSpace(v.Value) == "" {
		return nil
	}
	value := v.Value
	return &value
}
