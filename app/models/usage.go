package models

import "time"

// Resource is a metered action.
type Resource string

const (
	ResourceListings   Resource = "listings"
	ResourceAIRequests Resource = "aiRequests"
)

func (r Resource) Known() bool {
	return r == ResourceListings || r == ResourceAIRequests
}

// UsageRecord holds one user's counters for one UTC calendar month.
type UsageRecord struct {
	UserID            string `json:"userId"`
	Month             string `json:"month"` // YYYY-MM
	ListingsGenerated int    `json:"listingsGenerated"`
	AIRequestsMade    int    `json:"aiRequestsMade"`
}

// Used returns the counter for r.
func (u UsageRecord) Used(r Resource) int {
	if r == ResourceAIRequests {
		return u.AIRequestsMade
	}
	return u.ListingsGenerated
}

// Add bumps the counter for r.
func (u *UsageRecord) Add(r Resource, n int) {
	if r == ResourceAIRequests {
		u.AIRequestsMade += n
		return
	}
	u.ListingsGenerated += n
}

// MonthKey formats t as the UTC "YYYY-MM" usage period.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
