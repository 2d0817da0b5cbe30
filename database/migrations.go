package database

import (
	"log"

	"gorm.io/gorm"

	"inkdrop/models"
)

func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	err := db.AutoMigrate(
		&models.User{},
		&models.UserSettings{},
		&models.Blog{},
		&models.Post{},
		&models.Upvote{},
		&models.Comment{},
		&models.DangerousReport{},
	)

	if err != nil {
		log.Printf("Error running migrations: %v", err)
		return err
	}

	log.Println("Migrations completed successfully")
	return nil
}
