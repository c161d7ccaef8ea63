package database

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/rpupo63/portfolio-backend/errs"
	"github.com/rpupo63/portfolio-backend/models"
)

type ProjectRepo struct {
	store *DocumentStore
}

func NewProjectRepo(store *DocumentStore) *ProjectRepo {
	return &ProjectRepo{store}
}

// FindAll returns all projects sorted by ascending order. Ties keep insertion order.
func (r *ProjectRepo) FindAll(ctx context.Context) ([]models.Project, error) {
	doc, err := r.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	projects := make([]models.Project, 0, len(doc.Projects))
	for _, project := range doc.Projects {
		projects = append(projects, project.Clone())
	}
	sort.SliceStable(projects, func(i, j int) bool {
		return projects[i].Order < projects[j].Order
	})
	return projects, nil
}

// FindByID returns a project by its ID, or nil when no project has that ID
func (r *ProjectRepo) FindByID(ctx context.Context, id string) (*models.Project, error) {
	doc, err := r.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	idx := doc.ProjectIndex(id)
	if idx < 0 {
		return nil, nil
	}
	project := doc.Projects[idx].Clone()
	return &project, nil
}

// Add validates the fields and appends a new project with a fresh id.
func (r *ProjectRepo) Add(ctx context.Context, fields models.ProjectFields) (*models.Project, error) {
	changes, err := collectProjectChanges(fields, true)
	if err != nil {
		return nil, err
	}

	project := models.Project{ID: uuid.NewString(), Tags: []string{}}
	changes.apply(&project)

	_, err = r.store.Update(ctx, func(doc *models.Document) error {
		doc.Projects = append(doc.Projects, project.Clone())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// Update merges the provided fields into an existing project.
func (r *ProjectRepo) Update(ctx context.Context, id string, fields models.ProjectFields) (*models.Project, error) {
	changes, err := collectProjectChanges(fields, false)
	if err != nil {
		return nil, err
	}

	var saved models.Project
	_, err = r.store.Update(ctx, func(doc *models.Document) error {
		idx := doc.ProjectIndex(id)
		if idx < 0 {
			return errs.NewNotFound("project")
		}
		changes.apply(&doc.Projects[idx])
		saved = doc.Projects[idx].Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// Delete removes a project from the document by id
func (r *ProjectRepo) Delete(ctx context.Context, id string) error {
	_, err := r.store.Update(ctx, func(doc *models.Document) error {
		idx := doc.ProjectIndex(id)
		if idx < 0 {
			return errs.NewNotFound("project")
		}
		doc.Projects = append(doc.Projects[:idx], doc.Projects[idx+1:]...)
		return nil
	})
	return err
}
