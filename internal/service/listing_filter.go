package service

import (
	"strings"

	"homehive/internal/models"
)

// ListingFilter narrows the listing feed. Zero values disable a criterion.
type ListingFilter struct {
	Search  string
	Type    string
	MinRent int64
	MaxRent int64
}

// IsEmpty reports whether the filter accepts every listing.
func (f ListingFilter) IsEmpty() bool {
	return strings.TrimSpace(f.Search) == "" && strings.TrimSpace(f.Type) == "" && f.MinRent <= 0 && f.MaxRent <= 0
}

// Matches applies the search (description or location substring, case-insensitive),
// exact type and inclusive rent range criteria.
func (f ListingFilter) Matches(l *models.Listing) bool {
	if l == nil {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		if !strings.Contains(strings.ToLower(l.Description), q) && !strings.Contains(strings.ToLower(l.Location), q) {
			return false
		}
	}
	if t := strings.TrimSpace(f.Type); t != "" && !strings.EqualFold(t, l.Type) {
		return false
	}
	if f.MinRent > 0 && l.Rent < f.MinRent {
		return false
	}
	if f.MaxRent > 0 && l.Rent > f.MaxRent {
		return false
	}
	return true
}

// Apply returns the matching listings in their original order. An empty filter
// returns the input slice itself.
func (f ListingFilter) Apply(listings []*models.Listing) []*models.Listing {
	if f.IsEmpty() {
		return listings
	}
	out := make([]*models.Listing, 0, len(listings))
	for _, l := range listings {
		if f.Matches(l) {
			out = append(out, l)
		}
	}
	return out
}
