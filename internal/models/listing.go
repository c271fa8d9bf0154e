package models

import (
	"strings"
	"time"
)

// MaxListingMedia is the number of files accepted per listing.
const MaxListingMedia = 5

// ListingTypes holds the canonical property types in display order.
var ListingTypes = []string{
	"Single Room",
	"Bedsitter",
	"Studio",
	"One Bedroom",
	"Two Bedroom",
	"Three Bedroom",
	"Four Bedroom",
	"Apartment",
	"House",
	"Shared",
}

// CanonicalListingType matches raw case-insensitively against ListingTypes.
func CanonicalListingType(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	for _, t := range ListingTypes {
		if strings.EqualFold(t, raw) {
			return t, true
		}
	}
	return "", false
}

// Listing is a rental property advertisement.
type Listing struct {
	ID          uint     `gorm:"primaryKey" json:"id"`
	OwnerID     *uint    `gorm:"index" json:"user_id"`
	Owner       *User    `gorm:"-" json:"user,omitempty"`
	Description string   `gorm:"type:text;not null" json:"description"`
	Location    string   `gorm:"not null;index" json:"location"`
	Type        string   `gorm:"not null;index" json:"type"`
	Rent        int64    `gorm:"not null" json:"rent"`
	Media       []string `gorm:"serializer:json;type:text" json:"media"`
	// LikesCount is not persisted; computed at query time
	LikesCount int64 `gorm:"->;-:migration" json:"likes_count"`
	// CommentsCount is not persisted; computed at query time
	CommentsCount int64 `gorm:"->;-:migration" json:"comments_count"`
	// Liked and Saved describe the requesting user's engagement (computed)
	Liked     bool      `gorm:"->;-:migration" json:"liked"`
	Saved     bool      `gorm:"->;-:migration" json:"saved"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

