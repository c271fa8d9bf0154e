// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"errors"
	"fmt"
	"log"
	"time"

	"homehive/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumListings int
	// MaxCommentsPerListing caps the comments generated per listing.
	MaxCommentsPerListing int
	// NumConversations is the number of direct-message threads; zero means NumUsers/2.
	NumConversations int
	ShouldClean      bool
	// SkipBcrypt stores the plain default password. Only for tests.
	SkipBcrypt bool
	// DryRun builds entities and logs them without touching the database.
	DryRun bool
	// MaxDays spreads creation timestamps over this many days.
	MaxDays int
	// RandSeed makes a run reproducible when non-zero.
	RandSeed int64
}

// Summary counts what a Seed run created.
type Summary struct {
	Users     int
	Listings  int
	Likes     int
	Favorites int
	Comments  int
	Messages  int
}

// demoAccounts are created first so there is always a known login.
var demoAccounts = []struct{ name, email string }{
	{"Demo Tenant", "tenant@example.com"},
	{"Demo Landlord", "landlord@example.com"},
}

// Seed populates the database with test data
func Seed(db *gorm.DB, opts Options) (*Summary, error) {
	if db == nil && !opts.DryRun {
		return nil, errors.New("seed: database is required unless DryRun is set")
	}
	if opts.NumUsers < 2 {
		return nil, fmt.Errorf("seed: need at least 2 users, got %d", opts.NumUsers)
	}
	if opts.MaxCommentsPerListing <= 0 {
		opts.MaxCommentsPerListing = 4
	}
	if opts.NumConversations <= 0 {
		opts.NumConversations = opts.NumUsers / 2
	}

	log.Printf("🌱 Starting database seeding with %d users and %d listings...", opts.NumUsers, opts.NumListings)

	// Clear existing data to avoid conflicts if requested
	if opts.ShouldClean && !opts.DryRun {
		if err := clearData(db); err != nil {
			return nil, fmt.Errorf("failed to clear data: %w", err)
		}
	}

	f := NewFactory(db, opts)
	summary := &Summary{}

	users, err := createUsers(f, opts.NumUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to create users: %w", err)
	}
	summary.Users = len(users)
	log.Printf("✓ %d users created", len(users))

	// Roughly a third of the accounts post listings.
	landlords := users[:max(1, len(users)/3)]
	listings := make([]*models.Listing, 0, opts.NumListings)
	for i := 0; i < opts.NumListings; i++ {
		owner := landlords[f.rng.Intn(len(landlords))]
		listing, err := f.CreateListing(owner)
		if err != nil {
			return nil, fmt.Errorf("failed to create listing: %w", err)
		}
		listings = append(listings, listing)
	}
	summary.Listings = len(listings)
	log.Printf("✓ %d listings created", len(listings))

	for _, listing := range listings {
		if err := engage(f, users, listing, opts.MaxCommentsPerListing, summary); err != nil {
			return nil, err
		}
	}
	log.Printf("✓ %d likes, %d favorites, %d comments created", summary.Likes, summary.Favorites, summary.Comments)

	for i := 0; i < opts.NumConversations; i++ {
		a := users[f.rng.Intn(len(users))]
		b := users[f.rng.Intn(len(users))]
		if a.ID == b.ID {
			continue
		}
		n, err := createConversation(f, a, b)
		if err != nil {
			return nil, fmt.Errorf("failed to create messages: %w", err)
		}
		summary.Messages += n
	}
	log.Printf("✓ %d messages created", summary.Messages)

	log.Println("🎉 Database seeding completed successfully!")
	return summary, nil
}

func createUsers(f *Factory, count int) ([]*models.User, error) {
	users := make([]*models.User, 0, count)
	for _, demo := range demoAccounts {
		if len(users) == count {
			break
		}
		user, err := demoUser(f, demo.name, demo.email)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	for len(users) < count {
		user, err := f.CreateUser()
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// demoUser reuses an existing demo account so reseeding without cleaning works.
func demoUser(f *Factory, name, email string) (*models.User, error) {
	if !f.opts.DryRun {
		var existing models.User
		err := f.db.Where("email = ?", email).First(&existing).Error
		if err == nil {
			return &existing, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return f.CreateUser(func(u *models.User) {
		u.Name = name
		u.Email = email
	})
}

// engage adds likes, favorites and comments from a random subset of users.
func engage(f *Factory, users []*models.User, listing *models.Listing, maxComments int, summary *Summary) error {
	for _, user := range users {
		if listing.OwnerID != nil && *listing.OwnerID == user.ID {
			continue
		}
		if f.rng.Intn(3) == 0 {
			if err := f.CreateLike(user, listing); err != nil {
				return fmt.Errorf("failed to create like: %w", err)
			}
			summary.Likes++
		}
		if f.rng.Intn(6) == 0 {
			if err := f.CreateFavorite(user, listing); err != nil {
				return fmt.Errorf("failed to create favorite: %w", err)
			}
			summary.Favorites++
		}
	}

	comments := f.rng.Intn(maxComments + 1)
	for i := 0; i < comments; i++ {
		author := users[f.rng.Intn(len(users))]
		if _, err := f.CreateComment(author, listing); err != nil {
			return fmt.Errorf("failed to create comment: %w", err)
		}
		summary.Comments++
	}
	return nil
}

// createConversation writes an alternating thread between a and b.
func createConversation(f *Factory, a, b *models.User) (int, error) {
	n := 2 + f.rng.Intn(7)
	start := f.createdAt()
	for i := 0; i < n; i++ {
		sender, receiver := a, b
		if i%2 == 1 {
			sender, receiver = b, a
		}
		at := start.Add(time.Duration(i) * time.Duration(1+f.rng.Intn(90)) * time.Minute)
		if _, err := f.CreateMessage(sender, receiver, func(m *models.Message) {
			m.CreatedAt = at
		}); err != nil {
			return i, err
		}
	}
	return n, nil
}

// seededTables lists tables in dependency order, children first.
var seededTables = []string{"messages", "comments", "favorites", "likes", "listings", "users"}

func clearData(db *gorm.DB) error {
	log.Println("🗑️  Clearing existing data...")
	if db.Dialector.Name() == "postgres" {
		return db.Exec(`TRUNCATE TABLE messages, comments, favorites, likes, listings, users RESTART IDENTITY CASCADE;`).Error
	}
	for _, table := range seededTables {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return err
		}
	}
	return nil
}
