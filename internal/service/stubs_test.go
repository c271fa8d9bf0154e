package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"homehive/internal/models"
	"homehive/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn        func(context.Context, uint) (*models.User, error)
	getByIDsFn       func(context.Context, []uint) (map[uint]*models.User, error)
	getByEmailFn     func(context.Context, string) (*models.User, error)
	createFn         func(context.Context, *models.User) error
	updateFn         func(context.Context, *models.User) error
	updatePasswordFn func(context.Context, uint, string) error
	searchFn         func(context.Context, string, int) ([]*models.User, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByIDs(ctx context.Context, ids []uint) (map[uint]*models.User, error) {
	return s.getByIDsFn(ctx, ids)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) Update(ctx context.Context, user *models.User) error {
	return s.updateFn(ctx, user)
}
func (s *userRepoStub) UpdatePassword(ctx context.Context, id uint, hash string) error {
	return s.updatePasswordFn(ctx, id, hash)
}
func (s *userRepoStub) Search(ctx context.Context, query string, limit int) ([]*models.User, error) {
	return s.searchFn(ctx, query, limit)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id, Name: fmt.Sprintf("user-%d", id)}, nil
		},
		getByIDsFn:       func(_ context.Context, _ []uint) (map[uint]*models.User, error) { return map[uint]*models.User{}, nil },
		getByEmailFn:     func(_ context.Context, _ string) (*models.User, error) { return nil, models.NewNotFoundError("User", 0) },
		createFn:         func(_ context.Context, _ *models.User) error { return nil },
		updateFn:         func(_ context.Context, _ *models.User) error { return nil },
		updatePasswordFn: func(_ context.Context, _ uint, _ string) error { return nil },
		searchFn:         func(_ context.Context, _ string, _ int) ([]*models.User, error) { return nil, nil },
	}
}

// listingRepoStub is a stub for repository.ListingRepository.
type listingRepoStub struct {
	createFn           func(context.Context, *models.Listing) error
	getByIDFn          func(context.Context, uint, uint) (*models.Listing, error)
	existsFn           func(context.Context, uint) (bool, error)
	listFn             func(context.Context) ([]*models.Listing, error)
	listByOwnerFn      func(context.Context, uint, uint) ([]*models.Listing, error)
	listFavoritesFn    func(context.Context, uint) ([]*models.Listing, error)
	applyViewerStateFn func(context.Context, []*models.Listing, uint) error
}

func (s *listingRepoStub) Create(ctx context.Context, listing *models.Listing) error {
	return s.createFn(ctx, listing)
}
func (s *listingRepoStub) GetByID(ctx context.Context, id, viewerID uint) (*models.Listing, error) {
	return s.getByIDFn(ctx, id, viewerID)
}
func (s *listingRepoStub) Exists(ctx context.Context, id uint) (bool, error) {
	return s.existsFn(ctx, id)
}
func (s *listingRepoStub) List(ctx context.Context) ([]*models.Listing, error) {
	return s.listFn(ctx)
}
func (s *listingRepoStub) ListByOwner(ctx context.Context, ownerID, viewerID uint) ([]*models.Listing, error) {
	return s.listByOwnerFn(ctx, ownerID, viewerID)
}
func (s *listingRepoStub) ListFavorites(ctx context.Context, userID uint) ([]*models.Listing, error) {
	return s.listFavoritesFn(ctx, userID)
}
func (s *listingRepoStub) ApplyViewerState(ctx context.Context, listings []*models.Listing, viewerID uint) error {
	return s.applyViewerStateFn(ctx, listings, viewerID)
}

func noopListingRepo() *listingRepoStub {
	return &listingRepoStub{
		createFn: func(_ context.Context, l *models.Listing) error {
			l.ID = 1
			return nil
		},
		getByIDFn: func(_ context.Context, id, _ uint) (*models.Listing, error) {
			return nil, models.NewNotFoundError("Listing", id)
		},
		existsFn:           func(_ context.Context, _ uint) (bool, error) { return true, nil },
		listFn:             func(_ context.Context) ([]*models.Listing, error) { return nil, nil },
		listByOwnerFn:      func(_ context.Context, _, _ uint) ([]*models.Listing, error) { return nil, nil },
		listFavoritesFn:    func(_ context.Context, _ uint) ([]*models.Listing, error) { return nil, nil },
		applyViewerStateFn: func(_ context.Context, _ []*models.Listing, _ uint) error { return nil },
	}
}

// engagementRepoStub is a stub for repository.EngagementRepository.
type engagementRepoStub struct {
	likeStateFn      func(context.Context, uint, uint) (int64, bool, error)
	toggleLikeFn     func(context.Context, uint, uint) (bool, int64, error)
	toggleFavoriteFn func(context.Context, uint, uint) (bool, int64, error)
	commentCountFn   func(context.Context, uint) (int64, error)
}

func (s *engagementRepoStub) LikeState(ctx context.Context, listingID, userID uint) (int64, bool, error) {
	return s.likeStateFn(ctx, listingID, userID)
}
func (s *engagementRepoStub) ToggleLike(ctx context.Context, listingID, userID uint) (bool, int64, error) {
	return s.toggleLikeFn(ctx, listingID, userID)
}
func (s *engagementRepoStub) ToggleFavorite(ctx context.Context, listingID, userID uint) (bool, int64, error) {
	return s.toggleFavoriteFn(ctx, listingID, userID)
}
func (s *engagementRepoStub) CommentCount(ctx context.Context, listingID uint) (int64, error) {
	return s.commentCountFn(ctx, listingID)
}

func noopEngagementRepo() *engagementRepoStub {
	return &engagementRepoStub{
		likeStateFn:      func(_ context.Context, _, _ uint) (int64, bool, error) { return 0, false, nil },
		toggleLikeFn:     func(_ context.Context, _, _ uint) (bool, int64, error) { return true, 1, nil },
		toggleFavoriteFn: func(_ context.Context, _, _ uint) (bool, int64, error) { return true, 1, nil },
		commentCountFn:   func(_ context.Context, _ uint) (int64, error) { return 0, nil },
	}
}

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	createFn        func(context.Context, *models.Comment) error
	getByIDFn       func(context.Context, uint) (*models.Comment, error)
	listByListingFn func(context.Context, uint) ([]*models.Comment, error)
}

func (s *commentRepoStub) Create(ctx context.Context, comment *models.Comment) error {
	return s.createFn(ctx, comment)
}
func (s *commentRepoStub) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	return s.getByIDFn(ctx, id)
}
func (s *commentRepoStub) ListByListing(ctx context.Context, listingID uint) ([]*models.Comment, error) {
	return s.listByListingFn(ctx, listingID)
}

func noopCommentRepo() *commentRepoStub {
	return &commentRepoStub{
		createFn:        func(_ context.Context, _ *models.Comment) error { return nil },
		getByIDFn:       func(_ context.Context, id uint) (*models.Comment, error) { return &models.Comment{ID: id}, nil },
		listByListingFn: func(_ context.Context, _ uint) ([]*models.Comment, error) { return nil, nil },
	}
}

// messageRepoStub is a stub for repository.MessageRepository.
type messageRepoStub struct {
	createFn        func(context.Context, *models.Message) error
	getByIDFn       func(context.Context, uint) (*models.Message, error)
	conversationFn  func(context.Context, uint, uint) ([]*models.Message, error)
	latestPerPeerFn func(context.Context, uint) ([]*models.Message, error)
}

func (s *messageRepoStub) Create(ctx context.Context, msg *models.Message) error {
	return s.createFn(ctx, msg)
}
func (s *messageRepoStub) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	return s.getByIDFn(ctx, id)
}
func (s *messageRepoStub) Conversation(ctx context.Context, userA, userB uint) ([]*models.Message, error) {
	return s.conversationFn(ctx, userA, userB)
}
func (s *messageRepoStub) LatestPerPeer(ctx context.Context, userID uint) ([]*models.Message, error) {
	return s.latestPerPeerFn(ctx, userID)
}

func noopMessageRepo() *messageRepoStub {
	return &messageRepoStub{
		createFn: func(_ context.Context, m *models.Message) error {
			m.ID = 1
			return nil
		},
		getByIDFn: func(_ context.Context, id uint) (*models.Message, error) {
			return nil, models.NewNotFoundError("Message", id)
		},
		conversationFn:  func(_ context.Context, _, _ uint) ([]*models.Message, error) { return nil, nil },
		latestPerPeerFn: func(_ context.Context, _ uint) ([]*models.Message, error) { return nil, nil },
	}
}

// memoryStore is an in-memory storage.Store that records every call.
type memoryStore struct {
	mu      sync.Mutex
	objects map[string]storage.Object
	saved   []string
	deleted []string
	failOn  func(obj storage.Object) error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string]storage.Object)}
}

func (m *memoryStore) Save(_ context.Context, obj storage.Object) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != nil {
		if err := m.failOn(obj); err != nil {
			return "", err
		}
	}
	url := "mem://" + obj.Path
	if _, exists := m.objects[url]; exists {
		return "", fmt.Errorf("object %s already exists", obj.Path)
	}
	m.objects[url] = obj
	m.saved = append(m.saved, url)
	return url, nil
}

func (m *memoryStore) Delete(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !strings.HasPrefix(url, "mem://") {
		return errors.New("not a memory object")
	}
	delete(m.objects, url)
	m.deleted = append(m.deleted, url)
	return nil
}

func (m *memoryStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// Minimal file headers that http.DetectContentType recognises.
var (
	pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	mp4Bytes = []byte("\x00\x00\x00\x18ftypmp42\x00\x00\x00\x00mp42isom")
)

func imageFile(name string) MediaFile {
	return MediaFile{Filename: name, ContentType: "image/png", Data: pngBytes}
}

func videoFile(name string) MediaFile {
	return MediaFile{Filename: name, ContentType: "video/mp4", Data: mp4Bytes}
}

func textFile(name string) MediaFile {
	return MediaFile{Filename: name, ContentType: "text/plain", Data: []byte("just some notes")}
}

// assertAppError asserts that err is an AppError with the given code.
func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeValidation)
}

// assertUnauthorizedError asserts that err is an AppError with code UNAUTHORIZED.
func assertUnauthorizedError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeUnauthorized)
}

func imageObject(p string) storage.Object {
	return storage.Object{Path: p, Kind: storage.KindImage, ContentType: "image/png", Data: pngBytes}
}
