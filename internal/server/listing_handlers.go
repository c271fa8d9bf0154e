package server

import (
	"homehive/internal/middleware"
	"homehive/internal/models"
	"homehive/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetListings handles GET /api/listings
// @Summary List listings
// @Description Newest first; a bearer token adds the viewer's liked and saved flags
// @Tags listings
// @Produce json
// @Param search query string false "Substring of description or location"
// @Param type query string false "Property type"
// @Param min_price query int false "Minimum monthly rent"
// @Param max_price query int false "Maximum monthly rent"
// @Success 200 {array} models.Listing
// @Router /listings [get]
func (s *Server) GetListings(c *fiber.Ctx) error {
	filter := service.ListingFilter{
		Search:  c.Query("search"),
		Type:    c.Query("type"),
		MinRent: int64(c.QueryInt("min_price", 0)),
		MaxRent: int64(c.QueryInt("max_price", 0)),
	}
	listings, err := s.catalogService.ListListings(c.UserContext(), service.ListListingsInput{
		ViewerID: middleware.UserID(c),
		Filter:   filter,
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(listings)
}

// GetListing handles GET /api/listings/:id
// @Summary Get a listing
// @Tags listings
// @Produce json
// @Param id path int true "Listing ID"
// @Success 200 {object} models.Listing
// @Failure 404 {object} models.ErrorResponse
// @Router /listings/{id} [get]
func (s *Server) GetListing(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	listing, err := s.catalogService.GetListing(c.UserContext(), id, middleware.UserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(listing)
}

// CreateListing handles POST /api/listings with a multipart form (description,
// location, type, rent, media[]) or a JSON body without media.
// @Summary Create a listing
// @Description Photos upload first, then at most one video
// @Tags listings
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param description formData string true "Description"
// @Param location formData string true "Location"
// @Param type formData string true "Property type"
// @Param rent formData int true "Monthly rent"
// @Param media formData file false "Photos and an optional video"
// @Success 201 {object} models.Listing
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /listings [post]
func (s *Server) CreateListing(c *fiber.Ctx) error {
	var req struct {
		Description string `json:"description" form:"description"`
		Location    string `json:"location" form:"location"`
		Type        string `json:"type" form:"type"`
		Rent        int64  `json:"rent" form:"rent"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	files, err := formFiles(c, "media")
	if err != nil {
		return mapServiceError(c, err)
	}

	ctx := c.UserContext()
	listing, err := s.catalogService.CreateListing(ctx, service.CreateListingInput{
		OwnerID:     middleware.UserID(c),
		Description: req.Description,
		Location:    req.Location,
		Type:        req.Type,
		Rent:        req.Rent,
		Files:       files,
	})
	if err != nil {
		return mapServiceError(c, err)
	}

	s.publishListingCreated(ctx, listing)
	return c.Status(fiber.StatusCreated).JSON(listing)
}

// GetLikeState handles GET /api/listings/:id/likes
// @Summary Get like state
// @Tags engagement
// @Produce json
// @Param id path int true "Listing ID"
// @Success 200 {object} models.LikeState
// @Failure 404 {object} models.ErrorResponse
// @Router /listings/{id}/likes [get]
func (s *Server) GetLikeState(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	state, err := s.engagementService.GetLikeState(c.UserContext(), id, middleware.UserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(state)
}

// ToggleLike handles POST /api/listings/:id/like
// @Summary Toggle like
// @Tags engagement
// @Produce json
// @Security BearerAuth
// @Param id path int true "Listing ID"
// @Success 200 {object} models.ToggleResult
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /listings/{id}/like [post]
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	ctx := c.UserContext()
	result, err := s.engagementService.ToggleLike(ctx, id, middleware.UserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	s.publishEngagementUpdate(ctx, id)
	return c.JSON(result)
}

// ToggleFavorite handles POST /api/listings/:id/favorite
// @Summary Toggle favorite
// @Tags engagement
// @Produce json
// @Security BearerAuth
// @Param id path int true "Listing ID"
// @Success 200 {object} models.ToggleResult
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /listings/{id}/favorite [post]
func (s *Server) ToggleFavorite(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	result, err := s.engagementService.ToggleFavorite(c.UserContext(), id, middleware.UserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(result)
}

// GetComments handles GET /api/listings/:id/comments
// @Summary List comments
// @Tags engagement
// @Produce json
// @Param id path int true "Listing ID"
// @Success 200 {array} models.Comment
// @Router /listings/{id}/comments [get]
func (s *Server) GetComments(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	comments, err := s.engagementService.ListComments(c.UserContext(), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(comments)
}

// GetCommentCount handles GET /api/listings/:id/comments/count
// @Summary Count comments
// @Tags engagement
// @Produce json
// @Param id path int true "Listing ID"
// @Success 200 {object} object{listing_id=int,count=int}
// @Router /listings/{id}/comments/count [get]
func (s *Server) GetCommentCount(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	count, err := s.engagementService.GetCommentCount(c.UserContext(), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"listing_id": id, "count": count})
}

// CreateComment handles POST /api/listings/:id/comments
// @Summary Add a comment
// @Tags engagement
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Listing ID"
// @Param request body object{text=string} true "Comment"
// @Success 201 {object} models.Comment
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /listings/{id}/comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Text string `json:"text" form:"text"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	ctx := c.UserContext()
	comment, err := s.engagementService.AddComment(ctx, service.AddCommentInput{
		ListingID: id,
		UserID:    middleware.UserID(c),
		Text:      req.Text,
	})
	if err != nil {
		return mapServiceError(c, err)
	}

	s.publishCommentCreated(ctx, comment)
	s.publishEngagementUpdate(ctx, id)
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// GetShareLinks handles GET /api/listings/:id/share
// @Summary Share links
// @Tags listings
// @Produce json
// @Param id path int true "Listing ID"
// @Success 200 {object} service.ShareLinks
// @Failure 404 {object} models.ErrorResponse
// @Router /listings/{id}/share [get]
func (s *Server) GetShareLinks(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if _, err := s.catalogService.GetListing(c.UserContext(), id, 0); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(s.catalogService.ShareLinks(id))
}

// GetFavorites handles GET /api/favorites
// @Summary Saved listings
// @Tags listings
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Listing
// @Failure 401 {object} models.ErrorResponse
// @Router /favorites [get]
func (s *Server) GetFavorites(c *fiber.Ctx) error {
	listings, err := s.catalogService.ListFavorites(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(listings)
}
