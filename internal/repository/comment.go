package repository

import (
	"context"

	"homehive/internal/models"
	"homehive/internal/observability"

	"gorm.io/gorm"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListByListing(ctx context.Context, listingID uint) ([]*models.Comment, error)
}

type commentRepository struct {
	db     *gorm.DB
	logger *observability.RepoLogger
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db, logger: observability.NewRepoLogger("comments")}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Omit("User").Create(comment).Error; err != nil {
		r.logger.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.logger.LogCreate(ctx, map[string]interface{}{"comment_id": comment.ID, "listing_id": comment.ListingID})
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).Preload("User").First(&comment, id).Error; err != nil {
		return nil, notFoundOr(err, "Comment", id)
	}
	fillCommentAuthors([]*models.Comment{&comment})
	return &comment, nil
}

// ListByListing returns a listing's comments oldest first.
func (r *commentRepository) ListByListing(ctx context.Context, listingID uint) ([]*models.Comment, error) {
	var comments []*models.Comment
	if err := readDB(r.db).WithContext(ctx).
		Preload("User").
		Where("listing_id = ?", listingID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&comments).Error; err != nil {
		r.logger.LogError(ctx, err, "list_by_listing")
		return nil, models.NewInternalError(err)
	}
	fillCommentAuthors(comments)
	return comments, nil
}

func fillCommentAuthors(comments []*models.Comment) {
	for _, c := range comments {
		if c.User == nil {
			c.User = models.UnknownUser(c.UserID)
		}
	}
}
