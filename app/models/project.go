package models

import (
	"strings"
	"time"
)

// ShippingPolicy selects the dispatch-time wording of a listing.
type ShippingPolicy string

const (
	ShippingSameDay ShippingPolicy = "SAME_DAY"
	Shipping2To5    ShippingPolicy = "D2_5"
	Shipping15To20  ShippingPolicy = "D15_20"

	DefaultShippingPolicy = Shipping2To5
)

// Known reports whether p is one of the three supported policies.
func (p ShippingPolicy) Known() bool {
	switch p {
	case ShippingSameDay, Shipping2To5, Shipping15To20:
		return true
	}
	return false
}

// ProjectStatus is DRAFT until the listing is published.
type ProjectStatus string

const (
	StatusDraft     ProjectStatus = "DRAFT"
	StatusPublished ProjectStatus = "PUBLISHED"
)

// Project is one listing being built by the wizard.
type Project struct {
	ID             string         `json:"id"`
	OwnerID        string         `json:"ownerId"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Images         []string       `json:"images"`
	StoreName      string         `json:"storeName"`
	StoreLogo      string         `json:"storeLogo,omitempty"`
	ShippingPolicy ShippingPolicy `json:"shippingPolicy,omitempty"`
	SEOKeywords    []string       `json:"seoKeywords"`
	Highlights     []string       `json:"highlights"`
	SourceURL      string         `json:"sourceUrl,omitempty"`
	Status         ProjectStatus  `json:"status"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// ProjectPatch is a partial update. Nil fields are left untouched; a
// non-nil slice replaces the stored list wholesale, even when empty.
type ProjectPatch struct {
	Title          *string         `json:"title,omitempty"`
	Description    *string         `json:"description,omitempty"`
	Images         []string        `json:"images,omitempty"`
	StoreName      *string         `json:"storeName,omitempty"`
	StoreLogo      *string         `json:"storeLogo,omitempty"`
	ShippingPolicy *ShippingPolicy `json:"shippingPolicy,omitempty"`
	SEOKeywords    []string        `json:"seoKeywords,omitempty"`
	Highlights     []string        `json:"highlights,omitempty"`
	SourceURL      *string         `json:"sourceUrl,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p ProjectPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Images == nil &&
		p.StoreName == nil && p.StoreLogo == nil && p.ShippingPolicy == nil &&
		p.SEOKeywords == nil && p.Highlights == nil && p.SourceURL == nil
}

// Apply merges patch into p. Identity fields and timestamps are not touched.
func (p *Project) Apply(patch ProjectPatch) {
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Images != nil {
		p.Images = append([]string{}, patch.Images...)
	}
	if patch.StoreName != nil {
		p.StoreName = *patch.StoreName
	}
	if patch.StoreLogo != nil {
		p.StoreLogo = *patch.StoreLogo
	}
	if patch.ShippingPolicy != nil {
		p.ShippingPolicy = *patch.ShippingPolicy
	}
	if patch.SEOKeywords != nil {
		p.SEOKeywords = NormalizeKeywords(patch.SEOKeywords)
	}
	if patch.Highlights != nil {
		p.Highlights = append([]string{}, patch.Highlights...)
	}
	if patch.SourceURL != nil {
		p.SourceURL = *patch.SourceURL
	}
}

// Clone returns a deep copy so callers can mutate slices freely.
func (p Project) Clone() Project {
	p.Images = cloneStrings(p.Images)
	p.SEOKeywords = cloneStrings(p.SEOKeywords)
	p.Highlights = cloneStrings(p.Highlights)
	return p
}

// NormalizeKeywords trims, drops empties and removes duplicates while
// keeping first-seen order.
func NormalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, k := range in {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string{}, s...)
}

// Ptr is a small helper for building patches.
func Ptr[T any](v T) *T { return &v }
