package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/lister/app/models"
	"github.com/shashiranjanraj/lister/app/repositories"
	"github.com/shashiranjanraj/lister/pkg/errs"
	"github.com/shashiranjanraj/lister/pkg/kv"
)

func TestProjectServiceScopesToOwner(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewProjectRepository(kv.NewMemory())
	svc := NewProjectService(repo)

	mine, err := repo.Create(ctx, "alice")
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, mine.ID, models.ProjectPatch{Title: models.Ptr("Lamp")})
	require.NoError(t, err)
	theirs, err := repo.Create(ctx, "bob")
	require.NoError(t, err)

	list, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)

	_, err = svc.Get(ctx, "alice", theirs.ID)
	assert.True(t, errs.IsCode(err, errs.CodeNotFound))

	assert.True(t, errs.IsCode(svc.Delete(ctx, "alice", theirs.ID), errs.CodeNotFound))
	_, err = repo.Get(ctx, theirs.ID)
	assert.NoError(t, err, "other owner's project survives")

	html, err := svc.Export(ctx, "alice", mine.ID)
	require.NoError(t, err)
	assert.Contains(t, html, "Lamp")

	require.NoError(t, svc.Delete(ctx, "alice", mine.ID))
	list, err = svc.List(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, list)
}
