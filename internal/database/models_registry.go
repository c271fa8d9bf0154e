package database

import "homehive/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Listing{},
		&models.Like{},
		&models.Favorite{},
		&models.Comment{},
		&models.Message{},
	}
}
