package repositories

import (
	"context"
	"errors"

	"github.com/shashiranjanraj/lister/app/models"
	"github.com/shashiranjanraj/lister/pkg/errs"
	"github.com/shashiranjanraj/lister/pkg/kv"
)

func subscriptionKey(userID string) string { return "subscription:" + userID }

type SubscriptionRepository struct {
	store kv.Store
}

func NewSubscriptionRepository(store kv.Store) *SubscriptionRepository {
	return &SubscriptionRepository{store: store}
}

// Get returns the user's subscription. Users without one are on the free plan.
func (r *SubscriptionRepository) Get(ctx context.Context, userID string) (models.SubscriptionRecord, error) {
	var rec models.SubscriptionRecord
	err := kv.GetJSON(ctx, r.store, subscriptionKey(userID), &rec)
	if errors.Is(err, kv.ErrNotFound) {
		return models.SubscriptionRecord{UserID: userID, Plan: models.PlanFree}, nil
	}
	if err != nil {
		return models.SubscriptionRecord{}, errs.Wrap(err, errs.CodeInternal, "load subscription")
	}
	return rec, nil
}

func (r *SubscriptionRepository) Put(ctx context.Context, rec models.SubscriptionRecord) error {
	if err := kv.SetJSON(ctx, r.store, subscriptionKey(rec.UserID), rec); err != nil {
		return errs.Wrap(err, errs.CodeInternal, "save subscription")
	}
	return nil
}
