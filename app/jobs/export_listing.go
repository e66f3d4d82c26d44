// Package jobs holds the background jobs dispatched through pkg/queue.
package jobs

import (
	"context"
	"fmt"

	"github.com/shashiranjanraj/lister/app/repositories"
	"github.com/shashiranjanraj/lister/app/services"
	"github.com/shashiranjanraj/lister/pkg/event"
	"github.com/shashiranjanraj/lister/pkg/logger"
	"github.com/shashiranjanraj/lister/pkg/queue"
	"github.com/shashiranjanraj/lister/pkg/storage"
)

const ExportListingName = "export_listing"

// ExportPath is where a project's rendered listing is written on the disk.
func ExportPath(projectID string) string {
	return "exports/" + projectID + ".html"
}

// ExportListing renders a project to ExportPath on the storage disk.
type ExportListing struct {
	ProjectID string `json:"projectId"`

	projects *repositories.ProjectRepository
	disk     storage.Disk
}

// NewExportListing builds an empty job bound to its dependencies; used as
// the queue factory.
func NewExportListing(projects *repositories.ProjectRepository, disk storage.Disk) *ExportListing {
	return &ExportListing{projects: projects, disk: disk}
}

func (j *ExportListing) JobName() string { return ExportListingName }

func (j *ExportListing) Handle(ctx context.Context) error {
	p, err := j.projects.Get(ctx, j.ProjectID)
	if err != nil {
		return fmt.Errorf("export %s: %w", j.ProjectID, err)
	}
	if err := j.disk.Put(ctx, ExportPath(p.ID), []byte(services.RenderPreview(p))); err != nil {
		return fmt.Errorf("export %s: %w", j.ProjectID, err)
	}
	logger.WithCtx(ctx).Info("jobs: listing exported", "project_id", p.ID, "url", j.disk.URL(ExportPath(p.ID)))
	return nil
}

// Register wires the export job into the queue and queues an export each
// time a wizard is completed.
func Register(q *queue.Manager, events *event.Dispatcher, projects *repositories.ProjectRepository, disk storage.Disk) {
	q.Register(ExportListingName, func() queue.Job { return NewExportListing(projects, disk) })

	events.Listen(services.EventWizardCompleted, func(ctx context.Context, payload any) {
		done, ok := payload.(services.WizardCompleted)
		if !ok {
			return
		}
		if err := q.Dispatch(ctx, &ExportListing{ProjectID: done.ProjectID}); err != nil {
			logger.WithCtx(ctx).Error("jobs: could not queue export", "project_id", done.ProjectID, "error", err)
		}
	})
}
