package service

import (
	"context"

	"homehive/internal/cache"
	"homehive/internal/models"
	"homehive/internal/observability"
	"homehive/internal/repository"
	"homehive/internal/validation"
)

// EngagementService is the single source of like, favorite and comment state.
type EngagementService struct {
	engagementRepo repository.EngagementRepository
	listingRepo    repository.ListingRepository
	commentRepo    repository.CommentRepository
}

type AddCommentInput struct {
	ListingID uint
	UserID    uint
	Text      string
}

func NewEngagementService(
	engagementRepo repository.EngagementRepository,
	listingRepo repository.ListingRepository,
	commentRepo repository.CommentRepository,
) *EngagementService {
	return &EngagementService{
		engagementRepo: engagementRepo,
		listingRepo:    listingRepo,
		commentRepo:    commentRepo,
	}
}

func (s *EngagementService) requireListing(ctx context.Context, listingID uint) error {
	ok, err := s.listingRepo.Exists(ctx, listingID)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewNotFoundError("Listing", listingID)
	}
	return nil
}

// GetLikeState returns the like count and the viewer's own like. A zero userID is an
// anonymous viewer who cannot like.
func (s *EngagementService) GetLikeState(ctx context.Context, listingID, userID uint) (*models.LikeState, error) {
	if err := s.requireListing(ctx, listingID); err != nil {
		return nil, err
	}
	count, liked, err := s.engagementRepo.LikeState(ctx, listingID, userID)
	if err != nil {
		return nil, err
	}
	return &models.LikeState{
		ListingID: listingID,
		Count:     count,
		Liked:     liked,
		CanLike:   userID != 0,
	}, nil
}

func (s *EngagementService) ToggleLike(ctx context.Context, listingID, userID uint) (*models.ToggleResult, error) {
	return s.toggle(ctx, "like", listingID, userID, s.engagementRepo.ToggleLike)
}

func (s *EngagementService) ToggleFavorite(ctx context.Context, listingID, userID uint) (*models.ToggleResult, error) {
	return s.toggle(ctx, "favorite", listingID, userID, s.engagementRepo.ToggleFavorite)
}

func (s *EngagementService) toggle(
	ctx context.Context,
	kind string,
	listingID, userID uint,
	flip func(ctx context.Context, listingID, userID uint) (bool, int64, error),
) (*models.ToggleResult, error) {
	if userID == 0 {
		return nil, models.NewUnauthorizedError("Sign in to " + kind + " listings")
	}
	if err := s.requireListing(ctx, listingID); err != nil {
		return nil, err
	}
	active, count, err := flip(ctx, listingID, userID)
	if err != nil {
		return nil, err
	}
	observability.RecordToggle(kind, active)
	cache.InvalidateListing(ctx, listingID)
	return &models.ToggleResult{ListingID: listingID, Active: active, Count: count}, nil
}

func (s *EngagementService) GetCommentCount(ctx context.Context, listingID uint) (int64, error) {
	if err := s.requireListing(ctx, listingID); err != nil {
		return 0, err
	}
	return s.engagementRepo.CommentCount(ctx, listingID)
}

func (s *EngagementService) AddComment(ctx context.Context, in AddCommentInput) (*models.Comment, error) {
	if in.UserID == 0 {
		return nil, models.NewUnauthorizedError("Sign in to comment")
	}
	text, err := validation.ValidateText(in.Text)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if text == "" {
		return nil, models.NewValidationError("Comment cannot be empty")
	}
	if err := s.requireListing(ctx, in.ListingID); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		ListingID: in.ListingID,
		UserID:    in.UserID,
		Text:      text,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}
	cache.InvalidateListing(ctx, in.ListingID)
	return s.commentRepo.GetByID(ctx, comment.ID)
}

// ListComments returns a listing's comments oldest first with authors attached.
func (s *EngagementService) ListComments(ctx context.Context, listingID uint) ([]*models.Comment, error) {
	if err := s.requireListing(ctx, listingID); err != nil {
		return nil, err
	}
	return s.commentRepo.ListByListing(ctx, listingID)
}

// Counts returns the current like and comment totals of a listing.
func (s *EngagementService) Counts(ctx context.Context, listingID uint) (likes, comments int64, err error) {
	likes, _, err = s.engagementRepo.LikeState(ctx, listingID, 0)
	if err != nil {
		return 0, 0, err
	}
	comments, err = s.engagementRepo.CommentCount(ctx, listingID)
	if err != nil {
		return 0, 0, err
	}
	return likes, comments, nil
}
