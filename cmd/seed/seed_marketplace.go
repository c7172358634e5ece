package main

import (
	"log"
	"os"

	"marketplace-chat-be/internal/model"
	"marketplace-chat-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

// Fixed ids so local clients can hard-code a listing to contact.
var (
	sellerID  = uuid.MustParse("7c1d3a52-1f0e-4c1b-9a55-3f1d2a7e0b01")
	buyerID   = uuid.MustParse("7c1d3a52-1f0e-4c1b-9a55-3f1d2a7e0b02")
	listingID = uuid.MustParse("7c1d3a52-1f0e-4c1b-9a55-3f1d2a7e0b10")
)

func main() {
	// Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.Open(os.Getenv("DB_DRIVER"), dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Seeding marketplace directory...")
	seedProfiles(db)
	seedListings(db)
	log.Println("Marketplace seeding completed!")
}

func seedProfiles(db *gorm.DB) {
	profiles := []model.Profile{
		{Id: sellerID, FullName: "Mari Maasikas", CompanyName: "Alused OÜ"},
		{Id: buyerID, FullName: "Jaan Tamm"},
	}

	for _, p := range profiles {
		var existing model.Profile
		if err := db.Where("id = ?", p.Id).First(&existing).Error; err == nil {
			log.Printf("Profile '%s' already exists, skipping...", p.FullName)
			continue
		}

		if err := db.Create(&p).Error; err != nil {
			log.Printf("Error creating profile '%s': %v", p.FullName, err)
		} else {
			log.Printf("Created profile: %s (%s)", p.FullName, p.Id)
		}
	}
}

func seedListings(db *gorm.DB) {
	listings := []model.Listing{
		{Id: listingID, UserId: sellerID, Title: "EUR alused 120 tk"},
	}

	for _, l := range listings {
		var existing model.Listing
		if err := db.Where("id = ?", l.Id).First(&existing).Error; err == nil {
			log.Printf("Listing '%s' already exists, skipping...", l.Title)
			continue
		}

		if err := db.Create(&l).Error; err != nil {
			log.Printf("Error creating listing '%s': %v", l.Title, err)
		} else {
			log.Printf("Created listing: %s (%s)", l.Title, l.Id)
		}
	}
}
