// seed-admin creates or updates the admin console user.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin
//
// Email and password default to admin@openshelf.local / change-me and can be
// overridden with ADMIN_EMAIL / ADMIN_PASSWORD.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/openshelf/library_backend/config"
	"github.com/openshelf/library_backend/models"
	"github.com/openshelf/library_backend/utils"
	"gorm.io/gorm"
)

const (
	defaultAdminEmail    = "admin@openshelf.local"
	defaultAdminPassword = "change-me"
	adminName            = "OpenShelf Admin"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	models.MigrateTable()

	adminEmail := os.Getenv("ADMIN_EMAIL")
	if adminEmail == "" {
		adminEmail = defaultAdminEmail
	}
	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminPassword == "" {
		adminPassword = defaultAdminPassword
	}

	hashed, err := utils.HashPassword(adminPassword)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	hashedStr := string(hashed)

	var existing models.User
	err = db.WithContext(ctx).Model(&models.User{}).Where("email = ?", adminEmail).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		// Create new admin user
		u := models.User{
			Name:        adminName,
			Email:       adminEmail,
			Password:    hashedStr,
			IsAdmin:     utils.NewTrue(),
			PackageType: models.PackageTypePremium,
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin user: email=%q\n", adminEmail)
		return
	}

	// Update existing user: ensure password and admin flag
	if err := db.WithContext(ctx).Model(&models.User{}).Where("email = ?", adminEmail).Updates(map[string]any{
		"password":     hashedStr,
		"name":         adminName,
		"is_admin":     true,
		"package_type": models.PackageTypePremium,
	}).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Updated admin user: email=%q\n", adminEmail)
}
