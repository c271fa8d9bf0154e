package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"homehive/internal/cache"
	"homehive/internal/models"
	"homehive/internal/observability"
	"homehive/internal/repository"
	"homehive/internal/storage"
	"homehive/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

type CatalogService struct {
	listingRepo   repository.ListingRepository
	media         *MediaService
	publicBaseURL string
}

type CreateListingInput struct {
	OwnerID     uint
	Description string
	Location    string
	Type        string
	Rent        int64
	Files       []MediaFile
}

type ListListingsInput struct {
	ViewerID uint
	Filter   ListingFilter
}

// ShareLinks are the prebuilt share targets of one listing.
type ShareLinks struct {
	URL      string `json:"url"`
	WhatsApp string `json:"whatsapp"`
	Twitter  string `json:"twitter"`
	Facebook string `json:"facebook"`
	Telegram string `json:"telegram"`
}

func NewCatalogService(listingRepo repository.ListingRepository, media *MediaService, publicBaseURL string) *CatalogService {
	return &CatalogService{
		listingRepo:   listingRepo,
		media:         media,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// CreateListing validates the form, uploads media (images first, then the optional
// video) and inserts the row. Nothing is written when validation or any upload fails.
func (s *CatalogService) CreateListing(ctx context.Context, in CreateListingInput) (listing *models.Listing, err error) {
	ctx, span := observability.StartSpan(ctx, "catalog", "create_listing",
		attribute.Int("listing.media_count", len(in.Files)),
	)
	defer func() { observability.EndSpan(span, err) }()

	if in.OwnerID == 0 {
		return nil, models.NewUnauthorizedError("Sign in to post a listing")
	}
	fields, err := validation.ValidateListing(validation.ListingFields{
		Description: in.Description,
		Location:    in.Location,
		Type:        in.Type,
		Rent:        in.Rent,
	})
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	files, err := classifyListingMedia(in.Files)
	if err != nil {
		return nil, err
	}

	urls, err := s.media.uploadAll(ctx, storage.CategoryListings, files)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	ownerID := in.OwnerID
	listing = &models.Listing{
		OwnerID:     &ownerID,
		Description: fields.Description,
		Location:    fields.Location,
		Type:        fields.Type,
		Rent:        fields.Rent,
		Media:       urls,
	}
	if err := s.listingRepo.Create(ctx, listing); err != nil {
		s.media.Discard(ctx, urls...)
		return nil, err
	}
	cache.InvalidateFeed(ctx)

	created, err := s.listingRepo.GetByID(ctx, listing.ID, in.OwnerID)
	if err != nil {
		// The row exists; return what was written rather than failing the request.
		return listing, nil
	}
	return created, nil
}

// ListListings returns every owned listing newest first. The anonymous projection is
// shared through the cache; the viewer's flags and the filter are applied per call.
func (s *CatalogService) ListListings(ctx context.Context, in ListListingsInput) ([]*models.Listing, error) {
	var listings []*models.Listing
	err := cache.Aside(ctx, cache.ListingFeedKey, &listings, cache.ListingFeedTTL, func() error {
		var err error
		listings, err = s.listingRepo.List(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	listings = in.Filter.Apply(listings)
	if err := s.listingRepo.ApplyViewerState(ctx, listings, in.ViewerID); err != nil {
		return nil, err
	}
	return listings, nil
}

func (s *CatalogService) GetListing(ctx context.Context, id, viewerID uint) (*models.Listing, error) {
	var listing models.Listing
	err := cache.Aside(ctx, cache.ListingKey(id), &listing, cache.ListingTTL, func() error {
		l, err := s.listingRepo.GetByID(ctx, id, 0)
		if err != nil {
			return err
		}
		listing = *l
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.listingRepo.ApplyViewerState(ctx, []*models.Listing{&listing}, viewerID); err != nil {
		return nil, err
	}
	return &listing, nil
}

// ListFavorites returns the listings userID saved, most recently saved first.
func (s *CatalogService) ListFavorites(ctx context.Context, userID uint) ([]*models.Listing, error) {
	if userID == 0 {
		return nil, models.NewUnauthorizedError("Sign in to see saved listings")
	}
	return s.listingRepo.ListFavorites(ctx, userID)
}

func (s *CatalogService) ListUserListings(ctx context.Context, ownerID, viewerID uint) ([]*models.Listing, error) {
	return s.listingRepo.ListByOwner(ctx, ownerID, viewerID)
}

// ShareLinks builds the public URL of a listing and the share intents for it.
func (s *CatalogService) ShareLinks(listingID uint) ShareLinks {
	link := fmt.Sprintf("%s/home-hive/%d", s.publicBaseURL, listingID)
	enc := url.QueryEscape(link)
	return ShareLinks{
		URL:      link,
		WhatsApp: "https://wa.me/?text=" + enc,
		Twitter:  "https://twitter.com/intent/tweet?url=" + enc,
		Facebook: "https://www.facebook.com/sharer/sharer.php?u=" + enc,
		Telegram: "https://t.me/share/url?url=" + enc,
	}
}
