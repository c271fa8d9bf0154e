package repository

import (
	"context"
	"errors"

	"homehive/internal/models"
	"homehive/internal/observability"

	"gorm.io/gorm"
)

// ListingRepository defines persistence operations for rental listings.
type ListingRepository interface {
	Create(ctx context.Context, listing *models.Listing) error
	GetByID(ctx context.Context, id, viewerID uint) (*models.Listing, error)
	Exists(ctx context.Context, id uint) (bool, error)
	List(ctx context.Context) ([]*models.Listing, error)
	ListByOwner(ctx context.Context, ownerID, viewerID uint) ([]*models.Listing, error)
	ListFavorites(ctx context.Context, userID uint) ([]*models.Listing, error)
	ApplyViewerState(ctx context.Context, listings []*models.Listing, viewerID uint) error
}

type listingRepository struct {
	db     *gorm.DB
	users  UserRepository
	logger *observability.RepoLogger
}

// NewListingRepository creates a new listing repository. Owners are resolved through users.
func NewListingRepository(db *gorm.DB, users UserRepository) ListingRepository {
	return &listingRepository{db: db, users: users, logger: observability.NewRepoLogger("listings")}
}

func (r *listingRepository) Create(ctx context.Context, listing *models.Listing) error {
	defer observability.TrackQuery("create", "listings")()
	if err := r.db.WithContext(ctx).Create(listing).Error; err != nil {
		r.logger.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.logger.LogCreate(ctx, map[string]interface{}{"listing_id": listing.ID, "media": len(listing.Media)})
	return nil
}

func (r *listingRepository) GetByID(ctx context.Context, id, viewerID uint) (*models.Listing, error) {
	var listing models.Listing
	if err := r.applyListingDetails(readDB(r.db).WithContext(ctx), viewerID).
		Where("listings.id = ?", id).
		First(&listing).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			r.logger.LogError(ctx, err, "get_by_id")
		}
		return nil, notFoundOr(err, "Listing", id)
	}
	if err := r.attachOwners(ctx, []*models.Listing{&listing}); err != nil {
		return nil, err
	}
	return &listing, nil
}

// Exists reports whether a listing row is present. Absence is not an error.
func (r *listingRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Listing{}).Where("id = ?", id).Limit(1).Count(&count).Error; err != nil {
		r.logger.LogError(ctx, err, "exists")
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// List returns every owned listing, newest first, with counts and owners but no viewer state.
func (r *listingRepository) List(ctx context.Context) ([]*models.Listing, error) {
	defer observability.TrackQuery("list", "listings")()
	var listings []*models.Listing
	if err := r.applyListingDetails(readDB(r.db).WithContext(ctx), 0).
		Where("listings.owner_id IS NOT NULL").
		Order("listings.created_at DESC").
		Order("listings.id DESC").
		Find(&listings).Error; err != nil {
		r.logger.LogError(ctx, err, "list")
		return nil, models.NewInternalError(err)
	}
	if err := r.attachOwners(ctx, listings); err != nil {
		return nil, err
	}
	return listings, nil
}

func (r *listingRepository) ListByOwner(ctx context.Context, ownerID, viewerID uint) ([]*models.Listing, error) {
	var listings []*models.Listing
	if err := r.applyListingDetails(readDB(r.db).WithContext(ctx), viewerID).
		Where("listings.owner_id = ?", ownerID).
		Order("listings.created_at DESC").
		Order("listings.id DESC").
		Find(&listings).Error; err != nil {
		r.logger.LogError(ctx, err, "list_by_owner")
		return nil, models.NewInternalError(err)
	}
	if err := r.attachOwners(ctx, listings); err != nil {
		return nil, err
	}
	return listings, nil
}

// ListFavorites returns the user's saved listings, most recently saved first.
func (r *listingRepository) ListFavorites(ctx context.Context, userID uint) ([]*models.Listing, error) {
	var listings []*models.Listing
	if err := r.applyListingDetails(readDB(r.db).WithContext(ctx), userID).
		Joins("JOIN favorites ON favorites.listing_id = listings.id").
		Where("favorites.user_id = ?", userID).
		Order("favorites.created_at DESC").
		Order("favorites.id DESC").
		Find(&listings).Error; err != nil {
		r.logger.LogError(ctx, err, "list_favorites")
		return nil, models.NewInternalError(err)
	}
	if err := r.attachOwners(ctx, listings); err != nil {
		return nil, err
	}
	return listings, nil
}

// ApplyViewerState sets Liked and Saved for viewerID using one batched query per table.
func (r *listingRepository) ApplyViewerState(ctx context.Context, listings []*models.Listing, viewerID uint) error {
	for _, l := range listings {
		l.Liked, l.Saved = false, false
	}
	if viewerID == 0 || len(listings) == 0 {
		return nil
	}

	ids := make([]uint, 0, len(listings))
	for _, l := range listings {
		ids = append(ids, l.ID)
	}

	var liked, saved []uint
	db := readDB(r.db).WithContext(ctx)
	if err := db.Model(&models.Like{}).Where("user_id = ? AND listing_id IN ?", viewerID, ids).Pluck("listing_id", &liked).Error; err != nil {
		r.logger.LogError(ctx, err, "viewer_likes")
		return models.NewInternalError(err)
	}
	if err := db.Model(&models.Favorite{}).Where("user_id = ? AND listing_id IN ?", viewerID, ids).Pluck("listing_id", &saved).Error; err != nil {
		r.logger.LogError(ctx, err, "viewer_favorites")
		return models.NewInternalError(err)
	}

	likedSet := make(map[uint]struct{}, len(liked))
	for _, id := range liked {
		likedSet[id] = struct{}{}
	}
	savedSet := make(map[uint]struct{}, len(saved))
	for _, id := range saved {
		savedSet[id] = struct{}{}
	}
	for _, l := range listings {
		_, l.Liked = likedSet[l.ID]
		_, l.Saved = savedSet[l.ID]
	}
	return nil
}

// applyListingDetails adds subqueries to fetch counts and viewer state in a single query.
func (r *listingRepository) applyListingDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	selectQuery := "listings.*, " +
		"(SELECT COUNT(*) FROM likes WHERE likes.listing_id = listings.id) AS likes_count, " +
		"(SELECT COUNT(*) FROM comments WHERE comments.listing_id = listings.id) AS comments_count"

	if viewerID != 0 {
		return db.Model(&models.Listing{}).Select(selectQuery+
			", EXISTS(SELECT 1 FROM likes WHERE likes.listing_id = listings.id AND likes.user_id = ?) AS liked"+
			", EXISTS(SELECT 1 FROM favorites WHERE favorites.listing_id = listings.id AND favorites.user_id = ?) AS saved",
			viewerID, viewerID)
	}
	return db.Model(&models.Listing{}).Select(selectQuery + ", false AS liked, false AS saved")
}

// attachOwners resolves every owner with a single IN lookup.
func (r *listingRepository) attachOwners(ctx context.Context, listings []*models.Listing) error {
	ids := make([]uint, 0, len(listings))
	for _, l := range listings {
		if l.OwnerID != nil {
			ids = append(ids, *l.OwnerID)
		}
	}
	found, err := r.users.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for _, l := range listings {
		if l.OwnerID != nil {
			l.Owner = resolveUser(found, *l.OwnerID)
		}
	}
	return nil
}
