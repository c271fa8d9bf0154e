package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"homehive/internal/models"
)

const (
	MaxDescriptionLength = 5000
	MaxLocationLength    = 255
)

// ListingFields is the textual part of a new listing.
type ListingFields struct {
	Description string
	Location    string
	Type        string
	Rent        int64
}

// ValidateListing checks the required listing fields and returns them
// trimmed, with Type in its canonical spelling.
func ValidateListing(f ListingFields) (ListingFields, error) {
	f.Description = strings.TrimSpace(f.Description)
	f.Location = strings.TrimSpace(f.Location)

	if f.Description == "" {
		return f, fmt.Errorf("description is required")
	}
	if utf8.RuneCountInString(f.Description) > MaxDescriptionLength {
		return f, fmt.Errorf("description must not exceed %d characters", MaxDescriptionLength)
	}
	if f.Location == "" {
		return f, fmt.Errorf("location is required")
	}
	if utf8.RuneCountInString(f.Location) > MaxLocationLength {
		return f, fmt.Errorf("location must not exceed %d characters", MaxLocationLength)
	}
	if strings.TrimSpace(f.Type) == "" {
		return f, fmt.Errorf("property type is required")
	}
	canonical, ok := models.CanonicalListingType(f.Type)
	if !ok {
		return f, fmt.Errorf("unknown property type %q", f.Type)
	}
	f.Type = canonical
	if f.Rent <= 0 {
		return f, fmt.Errorf("rent must be a positive amount")
	}
	return f, nil
}

// ValidateText trims a comment or message body and enforces the length cap.
// Empty input returns an empty string and no error; callers decide if that is allowed.
func ValidateText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) > models.MaxTextLength {
		return "", fmt.Errorf("text must not exceed %d characters", models.MaxTextLength)
	}
	return text, nil
}
