package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"homehive/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngagementService_GetLikeState(t *testing.T) {
	t.Parallel()

	engagement := noopEngagementRepo()
	engagement.likeStateFn = func(_ context.Context, listingID, userID uint) (int64, bool, error) {
		return 4, userID == 7, nil
	}
	svc := NewEngagementService(engagement, noopListingRepo(), noopCommentRepo())

	state, err := svc.GetLikeState(context.Background(), 3, 7)
	require.NoError(t, err)
	assert.Equal(t, &models.LikeState{ListingID: 3, Count: 4, Liked: true, CanLike: true}, state)

	anon, err := svc.GetLikeState(context.Background(), 3, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), anon.Count)
	assert.False(t, anon.Liked)
	assert.False(t, anon.CanLike)
}

func TestEngagementService_UnknownListing(t *testing.T) {
	t.Parallel()

	listings := noopListingRepo()
	listings.existsFn = func(_ context.Context, _ uint) (bool, error) { return false, nil }
	engagement := noopEngagementRepo()
	engagement.toggleLikeFn = func(_ context.Context, _, _ uint) (bool, int64, error) {
		t.Fatal("toggle must not run for a missing listing")
		return false, 0, nil
	}
	svc := NewEngagementService(engagement, listings, noopCommentRepo())
	ctx := context.Background()

	_, err := svc.GetLikeState(ctx, 99, 1)
	assertAppError(t, err, models.CodeNotFound)

	_, err = svc.ToggleLike(ctx, 99, 1)
	assertAppError(t, err, models.CodeNotFound)

	_, err = svc.GetCommentCount(ctx, 99)
	assertAppError(t, err, models.CodeNotFound)

	_, err = svc.ListComments(ctx, 99)
	assertAppError(t, err, models.CodeNotFound)
}

func TestEngagementService_Toggle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		toggle func(*EngagementService, context.Context, uint, uint) (*models.ToggleResult, error)
	}{
		{name: "like", toggle: (*EngagementService).ToggleLike},
		{name: "favorite", toggle: (*EngagementService).ToggleFavorite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			active := false
			var count int64
			flip := func(_ context.Context, _, _ uint) (bool, int64, error) {
				active = !active
				if active {
					count++
				} else {
					count--
				}
				return active, count, nil
			}
			engagement := noopEngagementRepo()
			engagement.toggleLikeFn = flip
			engagement.toggleFavoriteFn = flip
			svc := NewEngagementService(engagement, noopListingRepo(), noopCommentRepo())
			ctx := context.Background()

			_, err := tt.toggle(svc, ctx, 5, 0)
			assertUnauthorizedError(t, err)

			on, err := tt.toggle(svc, ctx, 5, 2)
			require.NoError(t, err)
			assert.Equal(t, &models.ToggleResult{ListingID: 5, Active: true, Count: 1}, on)

			off, err := tt.toggle(svc, ctx, 5, 2)
			require.NoError(t, err)
			assert.Equal(t, &models.ToggleResult{ListingID: 5, Active: false, Count: 0}, off)
		})
	}
}

func TestEngagementService_ToggleRepoError(t *testing.T) {
	t.Parallel()

	engagement := noopEngagementRepo()
	engagement.toggleLikeFn = func(_ context.Context, _, _ uint) (bool, int64, error) {
		return false, 0, models.NewInternalError(errors.New("db down"))
	}
	svc := NewEngagementService(engagement, noopListingRepo(), noopCommentRepo())

	_, err := svc.ToggleLike(context.Background(), 1, 1)
	assertAppError(t, err, models.CodeInternal)
}

func TestEngagementService_AddComment_Validation(t *testing.T) {
	t.Parallel()

	comments := noopCommentRepo()
	comments.createFn = func(_ context.Context, _ *models.Comment) error {
		t.Fatal("invalid comments must not be written")
		return nil
	}
	svc := NewEngagementService(noopEngagementRepo(), noopListingRepo(), comments)
	ctx := context.Background()

	_, err := svc.AddComment(ctx, AddCommentInput{ListingID: 1, UserID: 0, Text: "hi"})
	assertUnauthorizedError(t, err)

	_, err = svc.AddComment(ctx, AddCommentInput{ListingID: 1, UserID: 1, Text: "   \n\t"})
	assertValidationError(t, err)

	_, err = svc.AddComment(ctx, AddCommentInput{ListingID: 1, UserID: 1, Text: strings.Repeat("a", models.MaxTextLength+1)})
	assertValidationError(t, err)
}

func TestEngagementService_AddComment(t *testing.T) {
	t.Parallel()

	var written *models.Comment
	comments := noopCommentRepo()
	comments.createFn = func(_ context.Context, c *models.Comment) error {
		c.ID = 12
		written = c
		return nil
	}
	comments.getByIDFn = func(_ context.Context, id uint) (*models.Comment, error) {
		return &models.Comment{ID: id, ListingID: written.ListingID, UserID: written.UserID, Text: written.Text,
			User: &models.User{ID: written.UserID, Name: "Ann"}}, nil
	}
	svc := NewEngagementService(noopEngagementRepo(), noopListingRepo(), comments)

	got, err := svc.AddComment(context.Background(), AddCommentInput{ListingID: 4, UserID: 2, Text: "  Is parking included?  "})
	require.NoError(t, err)
	assert.Equal(t, uint(12), got.ID)
	assert.Equal(t, "Is parking included?", got.Text)
	require.NotNil(t, got.User)
	assert.Equal(t, "Ann", got.User.Name)
}

func TestEngagementService_Counts(t *testing.T) {
	t.Parallel()

	engagement := noopEngagementRepo()
	engagement.likeStateFn = func(_ context.Context, _, userID uint) (int64, bool, error) {
		assert.Zero(t, userID)
		return 3, false, nil
	}
	engagement.commentCountFn = func(_ context.Context, _ uint) (int64, error) { return 8, nil }
	svc := NewEngagementService(engagement, noopListingRepo(), noopCommentRepo())

	likes, comments, err := svc.Counts(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), likes)
	assert.Equal(t, int64(8), comments)
}
