package database

import (
	"fmt"

	"github.com/rpupo63/portfolio-backend/errs"
	"github.com/rpupo63/portfolio-backend/models"
)

// ValidateDocument checks the shape every saved document must have.
func ValidateDocument(doc *models.Document) error {
	if doc == nil {
		return errs.NewConfigInvalidError("document is missing")
	}
	if doc.Projects == nil {
		return errs.NewConfigInvalidError("projects must be a list")
	}
	if doc.Profile != nil && doc.Profile.ID == "" {
		return errs.NewConfigInvalidError("profile is missing an id")
	}

	seen := make(map[string]struct{}, len(doc.Projects))
	for i, project := range doc.Projects {
		if project.ID == "" {
			return errs.NewConfigInvalidError(fmt.Sprintf("project at index %d is missing an id", i))
		}
		if _, dup := seen[project.ID]; dup {
			return errs.NewConfigInvalidError(fmt.Sprintf("duplicate project id %q", project.ID))
		}
		seen[project.ID] = struct{}{}
		if project.Order < 0 {
			return errs.NewConfigInvalidError(fmt.Sprintf("project %q has a negative order", project.ID))
		}
	}
	return nil
}
