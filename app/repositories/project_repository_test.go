package repositories

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/lister/app/models"
	"github.com/shashiranjanraj/lister/pkg/errs"
	"github.com/shashiranjanraj/lister/pkg/kv"
)

func newProjects(t *testing.T) *ProjectRepository {
	t.Helper()
	clock := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	return NewProjectRepository(kv.NewMemory()).WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	})
}

func TestGetMissingProject(t *testing.T) {
	_, err := newProjects(t).Get(context.Background(), "nope")
	assert.True(t, errs.IsCode(err, errs.CodeNotFound))
}

func TestUpsertOverwritesOnlyPatchedFields(t *testing.T) {
	ctx := context.Background()
	repo := newProjects(t)

	p, err := repo.Create(ctx, "alice")
	require.NoError(t, err)

	p, err = repo.Upsert(ctx, p.ID, models.ProjectPatch{
		Title:       models.Ptr("Widget"),
		Description: models.Ptr("A *great* widget"),
		Images:      []string{"https://img/1.png", "https://img/2.png"},
	})
	require.NoError(t, err)

	got, err := repo.Upsert(ctx, p.ID, models.ProjectPatch{Title: models.Ptr("Gadget")})
	require.NoError(t, err)

	stored, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, got, stored)

	want := p
	want.Title = "Gadget"
	want.UpdatedAt = stored.UpdatedAt
	assert.Equal(t, want, stored)
	assert.True(t, stored.UpdatedAt.After(p.UpdatedAt))
	assert.Equal(t, p.CreatedAt, stored.CreatedAt)
	assert.Equal(t, "alice", stored.OwnerID)
}

func TestUpsertReplacesListsWholesale(t *testing.T) {
	ctx := context.Background()
	repo := newProjects(t)

	p, err := repo.Create(ctx, "alice")
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, p.ID, models.ProjectPatch{Images: []string{"a", "b"}})
	require.NoError(t, err)

	got, err := repo.Upsert(ctx, p.ID, models.ProjectPatch{Images: []string{"c"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, got.Images)
}

func TestUpsertCreatesAbsentRecord(t *testing.T) {
	ctx := context.Background()
	repo := newProjects(t)

	got, err := repo.Upsert(ctx, "fixed-id", models.ProjectPatch{Title: models.Ptr("x")})
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", got.ID)
	assert.Equal(t, models.StatusDraft, got.Status)
	assert.Empty(t, got.OwnerID)
}

func TestConcurrentUpsertsDoNotLoseFields(t *testing.T) {
	ctx := context.Background()
	repo := newProjects(t)
	p, err := repo.Create(ctx, "alice")
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_, _ = repo.Upsert(ctx, p.ID, models.ProjectPatch{Title: models.Ptr("t")})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_, _ = repo.Upsert(ctx, p.ID, models.ProjectPatch{StoreName: models.Ptr("s")})
		}
	}()
	wg.Wait()

	got, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "t", got.Title)
	assert.Equal(t, "s", got.StoreName)
}

func TestListNewestFirstAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := newProjects(t)

	first, err := repo.Create(ctx, "alice")
	require.NoError(t, err)
	second, err := repo.Create(ctx, "alice")
	require.NoError(t, err)
	_, err = repo.Create(ctx, "bob")
	require.NoError(t, err)

	var ids []string
	for p, err := range repo.List(ctx, "alice") {
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{second.ID, first.ID}, ids)

	require.NoError(t, repo.Delete(ctx, second.ID))
	require.NoError(t, repo.Delete(ctx, second.ID), "delete is idempotent")

	_, err = repo.Get(ctx, second.ID)
	assert.True(t, errs.IsCode(err, errs.CodeNotFound))

	remaining, err := repo.IDs(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID}, remaining)
}

func TestListStopsEarly(t *testing.T) {
	ctx := context.Background()
	repo := newProjects(t)
	for i := 0; i < 3; i++ {
		_, err := repo.Create(ctx, "alice")
		require.NoError(t, err)
	}

	n := 0
	for range repo.List(ctx, "alice") {
		n++
		break
	}
	assert.Equal(t, 1, n)
}
