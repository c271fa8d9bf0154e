package repository

import (
	"context"

	"homehive/internal/models"
	"homehive/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EngagementRepository owns the like and favorite tables and the derived counts.
type EngagementRepository interface {
	LikeState(ctx context.Context, listingID, userID uint) (count int64, liked bool, err error)
	ToggleLike(ctx context.Context, listingID, userID uint) (active bool, count int64, err error)
	ToggleFavorite(ctx context.Context, listingID, userID uint) (active bool, count int64, err error)
	CommentCount(ctx context.Context, listingID uint) (int64, error)
}

type engagementRepository struct {
	db     *gorm.DB
	logger *observability.RepoLogger
}

// NewEngagementRepository creates a new engagement repository.
func NewEngagementRepository(db *gorm.DB) EngagementRepository {
	return &engagementRepository{db: db, logger: observability.NewRepoLogger("engagement")}
}

type likeStateRow struct {
	Count int64
	Mine  int64
}

// LikeState reads the like count and the user's own like with one statement.
func (r *engagementRepository) LikeState(ctx context.Context, listingID, userID uint) (int64, bool, error) {
	var row likeStateRow
	err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Select("COUNT(*) AS count, COALESCE(SUM(CASE WHEN user_id = ? THEN 1 ELSE 0 END), 0) AS mine", userID).
		Where("listing_id = ?", listingID).
		Scan(&row).Error
	if err != nil {
		r.logger.LogError(ctx, err, "like_state")
		return 0, false, models.NewInternalError(err)
	}
	return row.Count, userID != 0 && row.Mine > 0, nil
}

func (r *engagementRepository) ToggleLike(ctx context.Context, listingID, userID uint) (bool, int64, error) {
	active, count, err := toggle(ctx, r.db, listingID, userID, func() any {
		return &models.Like{ListingID: listingID, UserID: userID}
	})
	if err != nil {
		r.logger.LogError(ctx, err, "toggle_like")
		return false, 0, models.NewInternalError(err)
	}
	return active, count, nil
}

func (r *engagementRepository) ToggleFavorite(ctx context.Context, listingID, userID uint) (bool, int64, error) {
	active, count, err := toggle(ctx, r.db, listingID, userID, func() any {
		return &models.Favorite{ListingID: listingID, UserID: userID}
	})
	if err != nil {
		r.logger.LogError(ctx, err, "toggle_favorite")
		return false, 0, models.NewInternalError(err)
	}
	return active, count, nil
}

func (r *engagementRepository) CommentCount(ctx context.Context, listingID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Comment{}).Where("listing_id = ?", listingID).Count(&count).Error; err != nil {
		r.logger.LogError(ctx, err, "comment_count")
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

// toggle flips the (listing, user) row inside one transaction: delete if present,
// otherwise insert guarded by the unique index so a concurrent insert cannot duplicate it.
func toggle(ctx context.Context, db *gorm.DB, listingID, userID uint, newRow func() any) (bool, int64, error) {
	var active bool
	var count int64

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("listing_id = ? AND user_id = ?", listingID, userID).Delete(newRow())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "listing_id"}, {Name: "user_id"}},
				DoNothing: true,
			}).Create(newRow()).Error; err != nil {
				return err
			}
			active = true
		}
		return tx.Model(newRow()).Where("listing_id = ?", listingID).Count(&count).Error
	})
	return active, count, err
}
