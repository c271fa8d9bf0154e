package models

import "time"

// Like records that a user likes a listing.
// The combination of ListingID and UserID must be unique.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ListingID uint      `gorm:"not null;uniqueIndex:idx_likes_listing_user" json:"listing_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_likes_listing_user;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Favorite records that a user saved a listing.
// The combination of ListingID and UserID must be unique.
type Favorite struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ListingID uint      `gorm:"not null;uniqueIndex:idx_favorites_listing_user" json:"listing_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_favorites_listing_user;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// LikeState is the like summary of a listing from one viewer's perspective.
type LikeState struct {
	ListingID uint  `json:"listing_id"`
	Count     int64 `json:"count"`
	Liked     bool  `json:"liked"`
	CanLike   bool  `json:"can_like"`
}

// ToggleResult is the outcome of a like or favorite toggle.
type ToggleResult struct {
	ListingID uint  `json:"listing_id"`
	Active    bool  `json:"active"`
	Count     int64 `json:"count"`
}
