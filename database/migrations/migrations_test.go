package migrations_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/shashiranjanraj/lister/database/migrations"
	"github.com/shashiranjanraj/lister/pkg/database"
	"github.com/shashiranjanraj/lister/pkg/kv"
	"github.com/shashiranjanraj/lister/pkg/migration"
	"github.com/shashiranjanraj/lister/pkg/queue"
)

func TestMigrations_UpAndRollback(t *testing.T) {
	db, err := database.Open("sqlite", "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	runner := migration.New(db)
	ran, err := runner.Run()
	require.NoError(t, err)
	assert.Len(t, ran, 2)

	assert.True(t, db.Migrator().HasTable(&kv.Record{}))
	assert.True(t, db.Migrator().HasTable(&queue.FailedJobRecord{}))

	store := kv.NewSQL(db)
	require.NoError(t, store.Set(context.Background(), "project:p1", []byte(`{"id":"p1"}`)))
	got, err := store.Get(context.Background(), "project:p1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"p1"}`, string(got))

	again, err := runner.Run()
	require.NoError(t, err)
	assert.Empty(t, again)

	reverted, err := runner.Rollback()
	require.NoError(t, err)
	assert.Len(t, reverted, 2)
	assert.False(t, db.Migrator().HasTable(&kv.Record{}))
	assert.False(t, db.Migrator().HasTable(&queue.FailedJobRecord{}))
}
