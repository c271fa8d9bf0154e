// Package models contains the typed records persisted by Home Hive.
package models

import (
	"time"
)

// Placeholder values shown when a referenced user row no longer exists.
const (
	UnknownUserName   = "Unknown User"
	UnknownUserPhone  = "N/A"
	DefaultAvatarPath = "/default-avatar.png"
)

// User represents a registered Home Hive account.
type User struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"not null" json:"name"`
	Email         string    `gorm:"uniqueIndex;not null" json:"email"`
	Password      string    `gorm:"not null" json:"-"`
	PhoneNumber   string    `json:"phone_number"`
	AvatarURL     string    `json:"avatar_url"`
	CoverPhotoURL string    `json:"cover_photo_url"`
	Bio           string    `gorm:"type:text" json:"bio"`
	Location      string    `json:"location"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// UnknownUser returns the placeholder profile for a dangling user reference.
func UnknownUser(id uint) *User {
	return &User{
		ID:          id,
		Name:        UnknownUserName,
		PhoneNumber: UnknownUserPhone,
		AvatarURL:   DefaultAvatarPath,
	}
}

// DisplayAvatar falls back to the default avatar when none is set.
func (u *User) DisplayAvatar() string {
	if u == nil || u.AvatarURL == "" {
		return DefaultAvatarPath
	}
	return u.AvatarURL
}
