package services

import (
	"context"

	"github.com/shashiranjanraj/lister/app/models"
	"github.com/shashiranjanraj/lister/app/repositories"
	"github.com/shashiranjanraj/lister/pkg/errs"
)

// ProjectService scopes project access to the owner.
type ProjectService struct {
	projects *repositories.ProjectRepository
}

func NewProjectService(projects *repositories.ProjectRepository) *ProjectService {
	return &ProjectService{projects: projects}
}

// List returns the user's projects, newest first.
func (s *ProjectService) List(ctx context.Context, userID string) ([]models.Project, error) {
	out := []models.Project{}
	for p, err := range s.projects.List(ctx, userID) {
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Get returns a project owned by userID. Someone else's project is
// reported as not found.
func (s *ProjectService) Get(ctx context.Context, userID, id string) (models.Project, error) {
	p, err := s.projects.Get(ctx, id)
	if err != nil {
		return models.Project{}, err
	}
	if p.OwnerID != userID {
		return models.Project{}, errs.NotFound("project")
	}
	return p, nil
}

func (s *ProjectService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.projects.Delete(ctx, id)
}

// Export renders the owner's project as a standalone HTML document.
func (s *ProjectService) Export(ctx context.Context, userID, id string) (string, error) {
	p, err := s.Get(ctx, userID, id)
	if err != nil {
		return "", err
	}
	return RenderPreview(p), nil
}
