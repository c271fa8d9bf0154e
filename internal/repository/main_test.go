package repository

import (
	"fmt"
	"testing"
	"time"

	"homehive/internal/database"
	"homehive/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB returns an isolated in-memory SQLite database with the full schema.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A single connection keeps every query on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	u := &models.User{
		Name:        name,
		Email:       fmt.Sprintf("%s-%d@example.com", name, time.Now().UnixNano()),
		Password:    "hashed",
		PhoneNumber: "+254700000000",
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedListing(t *testing.T, db *gorm.DB, ownerID *uint, description string, createdAt time.Time) *models.Listing {
	t.Helper()
	l := &models.Listing{
		OwnerID:     ownerID,
		Description: description,
		Location:    "Kilimani",
		Type:        "Bedsitter",
		Rent:        15000,
		Media:       []string{"https://cdn.example/listings/1.jpg"},
		CreatedAt:   createdAt,
	}
	require.NoError(t, db.Create(l).Error)
	return l
}

func ptr(v uint) *uint { return &v }
