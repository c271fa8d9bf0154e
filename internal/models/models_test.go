package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalListingType(t *testing.T) {
	got, ok := CanonicalListingType("  two bedroom ")
	assert.True(t, ok)
	assert.Equal(t, "Two Bedroom", got)

	_, ok = CanonicalListingType("Penthouse Castle")
	assert.False(t, ok)
}

func TestUnknownUser(t *testing.T) {
	u := UnknownUser(44)
	assert.Equal(t, uint(44), u.ID)
	assert.Equal(t, "Unknown User", u.Name)
	assert.Equal(t, "N/A", u.PhoneNumber)
	assert.Equal(t, "/default-avatar.png", u.DisplayAvatar())
}

func TestMessagePeerAndInvolves(t *testing.T) {
	m := &Message{SenderID: 1, ReceiverID: 2}
	assert.Equal(t, uint(2), m.PeerOf(1))
	assert.Equal(t, uint(1), m.PeerOf(2))
	assert.True(t, m.Involves(2, 1))
	assert.False(t, m.Involves(1, 3))
}

func TestIsCode_Wrapped(t *testing.T) {
	err := fmt.Errorf("load listing: %w", NewNotFoundError("Listing", 5))
	assert.True(t, IsCode(err, CodeNotFound))
	assert.False(t, IsCode(err, CodeValidation))
	assert.False(t, IsCode(errors.New("plain"), CodeNotFound))
}
