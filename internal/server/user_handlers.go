package server

import (
	"context"

	"homehive/internal/middleware"
	"homehive/internal/models"
	"homehive/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/users/me
// @Summary Current user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Router /users/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetUserByID(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(user)
}

// UpdateMyProfile handles PUT /api/users/me
// @Summary Update profile
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{name=string,bio=string,phone_number=string,location=string} true "Profile fields"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Router /users/me [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req struct {
		Name        string `json:"name"`
		Bio         string `json:"bio"`
		PhoneNumber string `json:"phone_number"`
		Location    string `json:"location"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID:      middleware.UserID(c),
		Name:        req.Name,
		Bio:         req.Bio,
		PhoneNumber: req.PhoneNumber,
		Location:    req.Location,
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(user)
}

// UploadAvatar handles POST /api/users/me/avatar (multipart field "file")
// @Summary Upload avatar
// @Tags users
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Image"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Router /users/me/avatar [post]
func (s *Server) UploadAvatar(c *fiber.Ctx) error {
	return s.uploadProfileImage(c, s.userService.UpdateAvatar)
}

// UploadCover handles POST /api/users/me/cover (multipart field "file")
// @Summary Upload cover photo
// @Tags users
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Image"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Router /users/me/cover [post]
func (s *Server) UploadCover(c *fiber.Ctx) error {
	return s.uploadProfileImage(c, s.userService.UpdateCover)
}

func (s *Server) uploadProfileImage(c *fiber.Ctx, update func(ctx context.Context, userID uint, file service.MediaFile) (*models.User, error)) error {
	file, err := formFile(c, "file")
	if err != nil {
		return mapServiceError(c, err)
	}
	if file == nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("An image file is required"))
	}
	user, err := update(c.UserContext(), middleware.UserID(c), *file)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(user)
}

// SearchUsers handles GET /api/users/search?q=
// @Summary Search users
// @Tags users
// @Produce json
// @Param q query string true "Name substring"
// @Success 200 {array} models.User
// @Router /users/search [get]
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	users, err := s.userService.SearchUsers(c.UserContext(), c.Query("q"))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(users)
}

// GetUserProfile handles GET /api/users/:id
// @Summary Get a user
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.userService.GetUserByID(c.UserContext(), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(user)
}

// GetUserListings handles GET /api/users/:id/listings
// @Summary A user's listings
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {array} models.Listing
// @Router /users/{id}/listings [get]
func (s *Server) GetUserListings(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	listings, err := s.catalogService.ListUserListings(c.UserContext(), id, middleware.UserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(listings)
}
