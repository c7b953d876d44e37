package database

import (
	"fmt"
	"log"
	"os"

	"gympro-app/internal/domain/billing"
	"gympro-app/internal/domain/plans"
	"gympro-app/internal/domain/subscriptions"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func InitDB() {
	dsn := os.Getenv("DB_URL")
	if dsn == "" {
		log.Fatal("❌ DB_URL not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("❌ Failed to connect to database:", err)
	}

	DB = db

	if err := DB.AutoMigrate(
		&plans.Plan{},
		&plans.PlanPrice{},
		&subscriptions.Subscription{},
		&billing.Payment{},
	); err != nil {
		log.Fatal("❌ AutoMigrate error:", err)
	}

	fmt.Println("✅ Connected and migrated successfully")
}
