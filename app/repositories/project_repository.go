package repositories

import (
	"context"
	"errors"
	"iter"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/shashiranjanraj/lister/app/models"
	"github.com/shashiranjanraj/lister/pkg/errs"
	"github.com/shashiranjanraj/lister/pkg/keylock"
	"github.com/shashiranjanraj/lister/pkg/kv"
)

func projectKey(id string) string { return "project:" + id }
func projectIndexKey(userID string) string { return "projects:" + userID }

// ProjectRepository persists projects on a kv.Store. Writes to one project
// are serialised so Upsert is an atomic read-merge-write per id.
type ProjectRepository struct {
	store kv.Store
	locks keylock.Locker
	now   func() time.Time
	newID func() string
}

func NewProjectRepository(store kv.Store) *ProjectRepository {
	return &ProjectRepository{store: store, now: time.Now, newID: uuid.NewString}
}

// WithClock replaces the time source used for createdAt/updatedAt.
func (r *ProjectRepository) WithClock(now func() time.Time) *ProjectRepository {
	r.now = now
	return r
}

// Get returns the project or a not_found error.
func (r *ProjectRepository) Get(ctx context.Context, id string) (models.Project, error) {
	var p models.Project
	if err := kv.GetJSON(ctx, r.store, projectKey(id), &p); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return models.Project{}, errs.NotFound("project")
		}
		return models.Project{}, errs.Wrap(err, errs.CodeInternal, "load project")
	}
	return p, nil
}

// Create stores a new DRAFT project owned by ownerID and indexes it as the
// owner's newest.
func (r *ProjectRepository) Create(ctx context.Context, ownerID string) (models.Project, error) {
	now := r.now().UTC()
	p := models.Project{
		ID:          r.newID(),
		OwnerID:     ownerID,
		Images:      []string{},
		SEOKeywords: []string{},
		Highlights:  []string{},
		Status:      models.StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := kv.SetJSON(ctx, r.store, projectKey(p.ID), p); err != nil {
		return models.Project{}, errs.Wrap(err, errs.CodeInternal, "save project")
	}
	if err := r.updateIndex(ctx, ownerID, func(ids []string) []string {
		return append([]string{p.ID}, ids...)
	}); err != nil {
		return models.Project{}, err
	}
	return p, nil
}

// Upsert merges patch into the stored project and returns the result. An
// absent id is created with no owner. List fields are replaced wholesale.
func (r *ProjectRepository) Upsert(ctx context.Context, id string, patch models.ProjectPatch) (models.Project, error) {
	unlock := r.locks.Lock(projectKey(id))
	defer unlock()

	now := r.now().UTC()
	p, err := r.Get(ctx, id)
	switch {
	case errs.IsCode(err, errs.CodeNotFound):
		p = models.Project{ID: id, Status: models.StatusDraft, CreatedAt: now}
	case err != nil:
		return models.Project{}, err
	}

	p.Apply(patch)
	p.UpdatedAt = now

	if err := kv.SetJSON(ctx, r.store, projectKey(id), p); err != nil {
		return models.Project{}, errs.Wrap(err, errs.CodeInternal, "save project")
	}
	return p, nil
}

// Delete removes the project and its index entry. Deleting a missing
// project is not an error.
func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	unlock := r.locks.Lock(projectKey(id))
	defer unlock()

	p, err := r.Get(ctx, id)
	if errs.IsCode(err, errs.CodeNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := r.store.Delete(ctx, projectKey(id)); err != nil {
		return errs.Wrap(err, errs.CodeInternal, "delete project")
	}
	if p.OwnerID == "" {
		return nil
	}
	return r.updateIndex(ctx, p.OwnerID, func(ids []string) []string {
		return slices.DeleteFunc(ids, func(s string) bool { return s == id })
	})
}

// IDs returns the owner's project ids, newest first.
func (r *ProjectRepository) IDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := kv.GetJSON(ctx, r.store, projectIndexKey(userID), &ids)
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		return nil, errs.Wrap(err, errs.CodeInternal, "load project index")
	}
	return ids, nil
}

// List yields the owner's projects newest first. Projects are loaded one at
// a time as the caller ranges; ids whose record has vanished are skipped.
func (r *ProjectRepository) List(ctx context.Context, userID string) iter.Seq2[models.Project, error] {
	return func(yield func(models.Project, error) bool) {
		ids, err := r.IDs(ctx, userID)
		if err != nil {
			yield(models.Project{}, err)
			return
		}
		for _, id := range ids {
			p, err := r.Get(ctx, id)
			if errs.IsCode(err, errs.CodeNotFound) {
				continue
			}
			if !yield(p, err) {
				return
			}
		}
	}
}

func (r *ProjectRepository) updateIndex(ctx context.Context, userID string, fn func([]string) []string) error {
	unlock := r.locks.Lock(projectIndexKey(userID))
	defer unlock()

	ids, err := r.IDs(ctx, userID)
	if err != nil {
		return err
	}
	if err := kv.SetJSON(ctx, r.store, projectIndexKey(userID), fn(ids)); err != nil {
		return errs.Wrap(err, errs.CodeInternal, "save project index")
	}
	return nil
}
