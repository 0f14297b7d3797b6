package main

import (
	"fmt"
	"log"
	"os"

	"github.com/arbmuseum/arb/backend/internal/config"
	"github.com/arbmuseum/arb/backend/internal/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	// Parse command
	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "up":
		runMigrationsUp(cfg.DatabaseURL)
	case "reset":
		resetDatabase(cfg.DatabaseURL, cfg.IsProduction())
	default:
		fmt.Println("Usage: migrate [up|reset]")
		fmt.Println("  up     - Create or update all tables")
		fmt.Println("  reset  - Drop every table and migrate again (refused in production)")
		os.Exit(1)
	}
}

func runMigrationsUp(url string) {
	log.Println("🔄 Connecting to database...")

	if err := database.Initialize(url, false); err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer database.Close()

	log.Println("✅ Database connected")
	log.Println("📈 Running migrations...")

	if err := database.Migrate(); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	log.Println("✅ All migrations completed successfully!")
}

func resetDatabase(url string, production bool) {
	if production {
		log.Fatal("❌ Refusing to reset a production database")
	}

	if err := database.Initialize(url, false); err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer database.Close()

	log.Println("🗑️  Dropping tables...")
	if err := database.DropAll(database.DB); err != nil {
		log.Fatalf("❌ Drop failed: %v", err)
	}
	if err := database.Migrate(); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	log.Println("✅ Database reset")
}
