// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"homehive/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "Password123!"

var neighbourhoods = []string{
	"Kilimani", "Kileleshwa", "Westlands", "Lavington", "Parklands", "South B",
	"South C", "Embakasi", "Roysambu", "Kasarani", "Ngara", "Githurai",
	"Rongai", "Ruaka", "Kitengela", "Syokimau", "Karen", "Langata",
}

var listingAdjectives = []string{
	"Spacious", "Cosy", "Newly built", "Secure", "Modern", "Affordable",
	"Well lit", "Quiet", "Furnished", "Renovated",
}

var commentPrompts = []string{
	"Is water available throughout?", "Is the rent negotiable?",
	"How far is it from the main road?", "Is parking included?",
	"When is it available?", "Are pets allowed?", "Is there a deposit?",
}

var rentRanges = map[string][2]int{
	"Single Room":   {3000, 7000},
	"Bedsitter":     {7000, 15000},
	"Studio":        {12000, 30000},
	"One Bedroom":   {15000, 45000},
	"Two Bedroom":   {25000, 80000},
	"Three Bedroom": {40000, 150000},
	"Four Bedroom":  {80000, 300000},
	"Apartment":     {20000, 120000},
	"House":         {50000, 350000},
	"Shared":        {4000, 12000},
}

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by Seed and tests.
type Factory struct {
	db   *gorm.DB
	opts Options
	rng  *rand.Rand
	hash string
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a Factory bound to db. db may be nil in DryRun mode.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gofakeit.Seed(seed)
	return &Factory{
		db:   db,
		opts: opts,
		// #nosec G404: acceptable for seeding
		rng:    rand.New(rand.NewSource(seed)),
		nextID: 1000,
	}
}

func (f *Factory) passwordHash() string {
	if f.opts.SkipBcrypt {
		return DefaultPassword
	}
	if f.hash == "" {
		hashed, _ := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
		f.hash = string(hashed)
	}
	return f.hash
}

// createdAt spreads timestamps over the last MaxDays days.
func (f *Factory) createdAt() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	back := time.Duration(f.rng.Intn(maxDays))*24*time.Hour +
		time.Duration(f.rng.Intn(24))*time.Hour +
		time.Duration(f.rng.Intn(60))*time.Minute
	return time.Now().Add(-back)
}

func (f *Factory) persist(kind string, v any, id *uint) error {
	if f.opts.DryRun {
		f.nextID++
		*id = f.nextID
		log.Printf("[dry-run] %s: id=%d", kind, *id)
		return nil
	}
	return f.db.Create(v).Error
}

// BuildUser constructs a user without persisting it.
func (f *Factory) BuildUser(overrides ...func(*models.User)) *models.User {
	first, last := gofakeit.FirstName(), gofakeit.LastName()
	user := &models.User{
		Name:          first + " " + last,
		Email:         fmt.Sprintf("%s.%s.%d@example.com", first, last, gofakeit.Number(100, 9999)),
		Password:      f.passwordHash(),
		PhoneNumber:   fmt.Sprintf("+2547%08d", gofakeit.Number(0, 99999999)),
		AvatarURL:     fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
		CoverPhotoURL: fmt.Sprintf("https://picsum.photos/seed/cover-%s/1600/900", gofakeit.UUID()),
		Bio:           gofakeit.Sentence(10),
		Location:      neighbourhoods[f.rng.Intn(len(neighbourhoods))],
	}
	for _, override := range overrides {
		override(user)
	}
	return user
}

// CreateUser constructs and persists a sample user.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(overrides...)
	if err := f.persist("CreateUser", user, &user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

// BuildListing constructs a listing owned by owner without persisting it.
// Media holds one to four photos and, for some listings, a trailing video.
func (f *Factory) BuildListing(owner *models.User, overrides ...func(*models.Listing)) *models.Listing {
	kind := models.ListingTypes[f.rng.Intn(len(models.ListingTypes))]
	bounds := rentRanges[kind]
	rent := bounds[0] + f.rng.Intn(bounds[1]-bounds[0]+1)
	rent -= rent % 500

	location := neighbourhoods[f.rng.Intn(len(neighbourhoods))]
	photos := 1 + f.rng.Intn(4)
	media := make([]string, 0, photos+1)
	for i := 0; i < photos; i++ {
		media = append(media, fmt.Sprintf("https://picsum.photos/seed/%s/1200/800", gofakeit.UUID()))
	}
	if f.rng.Intn(4) == 0 {
		media = append(media, "https://samplelib.com/lib/preview/mp4/sample-5s.mp4")
	}

	ownerID := owner.ID
	listing := &models.Listing{
		OwnerID: &ownerID,
		Description: fmt.Sprintf("%s %s in %s. %s",
			listingAdjectives[f.rng.Intn(len(listingAdjectives))], kind, location, gofakeit.Sentence(12)),
		Location:  location,
		Type:      kind,
		Rent:      int64(rent),
		Media:     media,
		CreatedAt: f.createdAt(),
	}
	for _, override := range overrides {
		override(listing)
	}
	return listing
}

func (f *Factory) CreateListing(owner *models.User, overrides ...func(*models.Listing)) (*models.Listing, error) {
	listing := f.BuildListing(owner, overrides...)
	if err := f.persist("CreateListing", listing, &listing.ID); err != nil {
		return nil, err
	}
	return listing, nil
}

// CreateComment persists a comment by user on listing.
func (f *Factory) CreateComment(user *models.User, listing *models.Listing, overrides ...func(*models.Comment)) (*models.Comment, error) {
	comment := &models.Comment{
		ListingID: listing.ID,
		UserID:    user.ID,
		Text:      commentPrompts[f.rng.Intn(len(commentPrompts))],
		CreatedAt: listing.CreatedAt.Add(time.Duration(1+f.rng.Intn(72)) * time.Hour),
	}
	for _, override := range overrides {
		override(comment)
	}
	if err := f.persist("CreateComment", comment, &comment.ID); err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateLike persists a like from user on listing.
func (f *Factory) CreateLike(user *models.User, listing *models.Listing) error {
	like := &models.Like{ListingID: listing.ID, UserID: user.ID}
	return f.persist("CreateLike", like, &like.ID)
}

// CreateFavorite persists a favorite from user on listing.
func (f *Factory) CreateFavorite(user *models.User, listing *models.Listing) error {
	fav := &models.Favorite{ListingID: listing.ID, UserID: user.ID}
	return f.persist("CreateFavorite", fav, &fav.ID)
}

// CreateMessage persists a direct message from sender to receiver.
func (f *Factory) CreateMessage(sender, receiver *models.User, overrides ...func(*models.Message)) (*models.Message, error) {
	msg := &models.Message{
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Text:       gofakeit.Sentence(8),
		CreatedAt:  f.createdAt(),
	}
	for _, override := range overrides {
		override(msg)
	}
	if err := f.persist("CreateMessage", msg, &msg.ID); err != nil {
		return nil, err
	}
	return msg, nil
}
