package services

import (
	"context"
	"time"

	"github.com/shashiranjanraj/lister/app/models"
	"github.com/shashiranjanraj/lister/app/repositories"
	"github.com/shashiranjanraj/lister/pkg/errs"
	"github.com/shashiranjanraj/lister/pkg/keylock"
	"github.com/shashiranjanraj/lister/pkg/logger"
	"github.com/shashiranjanraj/lister/pkg/metrics"
)

// UsageSnapshot is what GET /api/usage returns.
type UsageSnapshot struct {
	Usage  models.UsageRecord `json:"usage"`
	Plan   models.Plan        `json:"plan"`
	Limits models.PlanLimits  `json:"limits"`
}

// UsageService meters listings and AI requests against the user's plan.
// Counters live in one record per UTC calendar month; a record from an
// earlier month is never read as current.
type UsageService struct {
	usage *repositories.UsageRepository
	subs  *repositories.SubscriptionRepository
	locks keylock.Locker
	now   func() time.Time
}

func NewUsageService(usage *repositories.UsageRepository, subs *repositories.SubscriptionRepository) *UsageService {
	return &UsageService{usage: usage, subs: subs, now: time.Now}
}

// WithClock replaces the time source that decides the current month.
func (s *UsageService) WithClock(now func() time.Time) *UsageService {
	s.now = now
	return s
}

func (s *UsageService) current(ctx context.Context, userID string) (models.UsageRecord, error) {
	month := models.MonthKey(s.now())
	rec, err := s.usage.Get(ctx, userID, month)
	if err != nil {
		return models.UsageRecord{}, err
	}
	if rec.Month != month {
		rec = models.UsageRecord{UserID: userID, Month: month}
	}
	return rec, nil
}

// CheckLimit reports whether userID has used up resource for this month.
// Unlimited plans never reach their limit.
func (s *UsageService) CheckLimit(ctx context.Context, userID string, resource models.Resource) (bool, error) {
	if !resource.Known() {
		return false, errs.Validation("resource", "unknown resource "+string(resource))
	}

	sub, err := s.subs.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	limit := sub.Plan.Limits().Limit(resource)
	if limit == models.Unlimited {
		return false, nil
	}

	rec, err := s.current(ctx, userID)
	if err != nil {
		return false, err
	}
	reached := rec.Used(resource) >= limit
	if reached {
		metrics.LimitHits.WithLabelValues(string(resource), string(sub.Plan)).Inc()
	}
	return reached, nil
}

// Gate returns a limit_reached error when CheckLimit is true.
func (s *UsageService) Gate(ctx context.Context, userID string, resource models.Resource) error {
	reached, err := s.CheckLimit(ctx, userID, resource)
	if err != nil {
		return err
	}
	if !reached {
		return nil
	}

	sub, err := s.subs.Get(ctx, userID)
	if err != nil {
		return err
	}
	rec, err := s.current(ctx, userID)
	if err != nil {
		return err
	}
	return errs.LimitReached(string(resource), sub.Plan.Limits().Limit(resource), rec.Used(resource))
}

// Increment adds amount to this month's counter for resource.
func (s *UsageService) Increment(ctx context.Context, userID string, resource models.Resource, amount int) (models.UsageRecord, error) {
	if !resource.Known() {
		return models.UsageRecord{}, errs.Validation("resource", "unknown resource "+string(resource))
	}
	if amount < 0 {
		return models.UsageRecord{}, errs.Validation("amount", "amount must not be negative")
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	rec, err := s.current(ctx, userID)
	if err != nil {
		return models.UsageRecord{}, err
	}
	rec.Add(resource, amount)
	if err := s.usage.Put(ctx, rec); err != nil {
		return models.UsageRecord{}, err
	}

	logger.WithCtx(ctx).Debug("usage incremented",
		"user_id", userID, "resource", resource, "amount", amount, "month", rec.Month)
	return rec, nil
}

// Usage returns this month's counters together with the plan and limits.
func (s *UsageService) Usage(ctx context.Context, userID string) (UsageSnapshot, error) {
	sub, err := s.subs.Get(ctx, userID)
	if err != nil {
		return UsageSnapshot{}, err
	}
	rec, err := s.current(ctx, userID)
	if err != nil {
		return UsageSnapshot{}, err
	}
	return UsageSnapshot{Usage: rec, Plan: sub.Plan, Limits: sub.Plan.Limits()}, nil
}

func (s *UsageService) Plan(ctx context.Context, userID string) (models.SubscriptionRecord, error) {
	return s.subs.Get(ctx, userID)
}

// SetPlan replaces the user's plan. This is what the mocked checkout calls.
func (s *UsageService) SetPlan(ctx context.Context, userID string, plan models.Plan) (models.SubscriptionRecord, error) {
	if !plan.Known() {
		return models.SubscriptionRecord{}, errs.Validation("plan", "unknown plan "+string(plan))
	}
	rec := models.SubscriptionRecord{UserID: userID, Plan: plan, UpdatedAt: s.now().UTC()}
	if err := s.subs.Put(ctx, rec); err != nil {
		return models.SubscriptionRecord{}, err
	}
	logger.WithCtx(ctx).Info("subscription changed", "user_id", userID, "plan", plan)
	return rec, nil
}
