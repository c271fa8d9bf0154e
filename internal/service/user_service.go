package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"homehive/internal/models"
	"homehive/internal/repository"
	"homehive/internal/validation"
)

const (
	maxBioLen      = 500
	maxLocationLen = 255
	searchLimit    = 20
)

type UserService struct {
	userRepo repository.UserRepository
	media    *MediaService
}

type UpdateProfileInput struct {
	UserID      uint
	Name        string
	Bio         string
	PhoneNumber string
	Location    string
}

func NewUserService(userRepo repository.UserRepository, media *MediaService) *UserService {
	return &UserService{userRepo: userRepo, media: media}
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// SearchUsers matches a case-insensitive substring of the display name.
func (s *UserService) SearchUsers(ctx context.Context, query string) ([]*models.User, error) {
	return s.userRepo.Search(ctx, query, searchLimit)
}

// UpdateProfile replaces the editable profile fields. Name is required; the other
// fields may be cleared.
func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if err := validation.ValidateName(name); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	bio := strings.TrimSpace(in.Bio)
	if utf8.RuneCountInString(bio) > maxBioLen {
		return nil, models.NewValidationError("Bio too long (max 500 characters)")
	}
	location := strings.TrimSpace(in.Location)
	if utf8.RuneCountInString(location) > maxLocationLen {
		return nil, models.NewValidationError("Location too long (max 255 characters)")
	}
	phone := strings.TrimSpace(in.PhoneNumber)
	if phone != "" {
		if err := validation.ValidatePhone(phone); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
	}

	user.Name = name
	user.Bio = bio
	user.Location = location
	user.PhoneNumber = phone
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateAvatar stores a new profile picture and points the user at it. The previous
// picture is removed once the row is updated.
func (s *UserService) UpdateAvatar(ctx context.Context, userID uint, file MediaFile) (*models.User, error) {
	return s.replaceImage(ctx, userID, file, s.media.UploadAvatar, func(u *models.User) *string { return &u.AvatarURL })
}

// UpdateCover stores a new cover photo for the user.
func (s *UserService) UpdateCover(ctx context.Context, userID uint, file MediaFile) (*models.User, error) {
	return s.replaceImage(ctx, userID, file, s.media.UploadCover, func(u *models.User) *string { return &u.CoverPhotoURL })
}

func (s *UserService) replaceImage(
	ctx context.Context,
	userID uint,
	file MediaFile,
	upload func(ctx context.Context, userID uint, file MediaFile) (string, error),
	field func(u *models.User) *string,
) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	url, err := upload(ctx, userID, file)
	if err != nil {
		return nil, err
	}

	previous := *field(user)
	*field(user) = url
	if err := s.userRepo.Update(ctx, user); err != nil {
		s.media.Discard(ctx, url)
		return nil, err
	}
	if previous != "" && previous != models.DefaultAvatarPath {
		s.media.Discard(ctx, previous)
	}
	return user, nil
}
