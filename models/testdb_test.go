package models

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/openshelf/library_backend/config"
	"github.com/openshelf/library_backend/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB installs a fresh in-memory sqlite database as the global DB and
// migrates the schema. Each call gets its own named database so tests do not
// leak rows into each other.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	config.SetDB(db)
	MigrateTable()
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email string) *User {
	t.Helper()
	user := User{
		Name:        "Test Reader",
		Email:       email,
		Password:    "not-a-real-hash",
		IsAdmin:     utils.NewFalse(),
		PackageType: PackageTypeFree,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return &user
}

func seedResource(t *testing.T, db *gorm.DB, title string, copies int) *Resource {
	t.Helper()
	resource := Resource{
		Title:           title,
		Author:          "Test Author",
		PackageType:     PackageTypeFree,
		TotalCopies:     copies,
		AvailableCopies: copies,
	}
	if err := db.Create(&resource).Error; err != nil {
		t.Fatalf("failed to seed resource: %v", err)
	}
	return &resource
}

func availableCopies(t *testing.T, db *gorm.DB, resourceId int) int {
	t.Helper()
	var resource Resource
	if err := db.First(&resource, resourceId).Error; err != nil {
		t.Fatalf("failed to reload resource: %v", err)
	}
	return resource.AvailableCopies
}
