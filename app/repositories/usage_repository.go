package repositories

import (
	"context"
	"errors"

	"github.com/shashiranjanraj/lister/app/models"
	"github.com/shashiranjanraj/lister/pkg/errs"
	"github.com/shashiranjanraj/lister/pkg/kv"
)

func usageKey(userID, month string) string { return "usage:" + userID + ":" + month }

// UsageRepository stores one UsageRecord per user and month.
type UsageRepository struct {
	store kv.Store
}

func NewUsageRepository(store kv.Store) *UsageRepository {
	return &UsageRepository{store: store}
}

// Get returns the record for month, or a zeroed one when none exists yet.
func (r *UsageRepository) Get(ctx context.Context, userID, month string) (models.UsageRecord, error) {
	rec := models.UsageRecord{UserID: userID, Month: month}
	err := kv.GetJSON(ctx, r.store, usageKey(userID, month), &rec)
	if errors.Is(err, kv.ErrNotFound) {
		return models.UsageRecord{UserID: userID, Month: month}, nil
	}
	if err != nil {
		return models.UsageRecord{}, errs.Wrap(err, errs.CodeInternal, "load usage")
	}
	return rec, nil
}

func (r *UsageRepository) Put(ctx context.Context, rec models.UsageRecord) error {
	if err := kv.SetJSON(ctx, r.store, usageKey(rec.UserID, rec.Month), rec); err != nil {
		return errs.Wrap(err, errs.CodeInternal, "save usage")
	}
	return nil
}
