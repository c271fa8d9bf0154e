package validation

import (
	"strings"
	"testing"

	"homehive/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateListing(t *testing.T) {
	t.Parallel()
	valid := ListingFields{Description: " Sunny bedsitter ", Location: " Kilimani ", Type: "bedsitter", Rent: 15000}

	tests := []struct {
		name    string
		mutate  func(*ListingFields)
		wantErr string
	}{
		{"Valid", func(*ListingFields) {}, ""},
		{"Missing Description", func(f *ListingFields) { f.Description = "  " }, "description is required"},
		{"Missing Location", func(f *ListingFields) { f.Location = "" }, "location is required"},
		{"Missing Type", func(f *ListingFields) { f.Type = "" }, "property type is required"},
		{"Unknown Type", func(f *ListingFields) { f.Type = "Castle" }, "unknown property type"},
		{"Zero Rent", func(f *ListingFields) { f.Rent = 0 }, "rent must be a positive amount"},
		{"Negative Rent", func(f *ListingFields) { f.Rent = -5 }, "rent must be a positive amount"},
		{"Long Description", func(f *ListingFields) { f.Description = strings.Repeat("d", MaxDescriptionLength+1) }, "description must not exceed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid
			tt.mutate(&f)
			got, err := ValidateListing(f)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Sunny bedsitter", got.Description)
			assert.Equal(t, "Kilimani", got.Location)
			assert.Equal(t, "Bedsitter", got.Type)
		})
	}
}

func TestValidateText(t *testing.T) {
	t.Parallel()
	got, err := ValidateText("  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	got, err = ValidateText("   ")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ValidateText(strings.Repeat("x", models.MaxTextLength+1))
	assert.Error(t, err)
}
