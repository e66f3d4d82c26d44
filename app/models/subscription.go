package models

import "time"

// Plan is a subscription tier.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// Unlimited marks a limit that is never reached.
const Unlimited = -1

// PlanLimits are the monthly ceilings of a plan.
type PlanLimits struct {
	MaxListings   int `json:"maxListings"`
	MaxAIRequests int `json:"maxAiRequests"`
}

var planLimits = map[Plan]PlanLimits{
	PlanFree:       {MaxListings: 3, MaxAIRequests: 10},
	PlanPro:        {MaxListings: 50, MaxAIRequests: 500},
	PlanEnterprise: {MaxListings: Unlimited, MaxAIRequests: Unlimited},
}

func (p Plan) Known() bool {
	_, ok := planLimits[p]
	return ok
}

// Limits returns the plan's ceilings; unknown plans get the free limits.
func (p Plan) Limits() PlanLimits {
	if l, ok := planLimits[p]; ok {
		return l
	}
	return planLimits[PlanFree]
}

// Limit returns the ceiling for one resource.
func (l PlanLimits) Limit(r Resource) int {
	if r == ResourceAIRequests {
		return l.MaxAIRequests
	}
	return l.MaxListings
}

// SubscriptionRecord is the plan a user is on.
type SubscriptionRecord struct {
	UserID    string    `json:"userId"`
	Plan      Plan      `json:"plan"`
	UpdatedAt time.Time `json:"updatedAt"`
}
