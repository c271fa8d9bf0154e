// Command seed fills the database with demo users, listings and conversations.
package main

import (
	"flag"
	"log"

	"homehive/internal/config"
	"homehive/internal/database"
	"homehive/internal/seed"
)

func main() {
	// Parse command line flags
	numUsers := flag.Int("users", 30, "Number of users to create")
	numListings := flag.Int("listings", 80, "Number of listings to create")
	numConversations := flag.Int("conversations", 0, "Number of direct-message threads (0 = users/2)")
	maxComments := flag.Int("max-comments", 4, "Maximum comments per listing")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	dryRun := flag.Bool("dry-run", false, "Log generated entities without writing them")
	randSeed := flag.Int64("rand-seed", 0, "Seed for reproducible runs (0 = random)")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d users, %d listings, clean=%v, dry-run=%v\n", *numUsers, *numListings, *shouldClean, *dryRun)

	opts := seed.Options{
		NumUsers:              *numUsers,
		NumListings:           *numListings,
		NumConversations:      *numConversations,
		MaxCommentsPerListing: *maxComments,
		ShouldClean:           *shouldClean,
		DryRun:                *dryRun,
		RandSeed:              *randSeed,
	}

	var err error
	var summary *seed.Summary
	if *dryRun {
		summary, err = seed.Seed(nil, opts)
	} else {
		// Load configuration
		cfg, cfgErr := config.LoadConfig()
		if cfgErr != nil {
			log.Fatalf("Failed to load configuration: %v", cfgErr)
		}
		// Connect to database
		db, connErr := database.Connect(cfg)
		if connErr != nil {
			log.Fatalf("Failed to connect to database: %v", connErr)
		}
		summary, err = seed.Seed(db, opts)
	}
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ All done! users=%d listings=%d likes=%d favorites=%d comments=%d messages=%d",
		summary.Users, summary.Listings, summary.Likes, summary.Favorites, summary.Comments, summary.Messages)
	log.Printf("📧 All seeded users have the password: %s", seed.DefaultPassword)
}
