package models

import (
	"log"

	"github.com/openshelf/library_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&User{},
		&Resource{},
		&Borrow{}, &Reserve{},
		&Fine{},
		&Notification{}, &NotificationEvent{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
