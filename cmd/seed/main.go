package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/arbmuseum/arb/backend/internal/config"
	"github.com/arbmuseum/arb/backend/internal/database"
	"github.com/arbmuseum/arb/backend/internal/progress"
	"github.com/arbmuseum/arb/backend/internal/seed"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	// Parse command
	command := "catalog"
	args := os.Args[1:]
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	fs := flag.NewFlagSet(command, flag.ExitOnError)
	visits := fs.Int("visits", 50, "number of fake museum visits")
	accounts := fs.Int("accounts", 10, "number of fake AR accounts")
	_ = fs.Parse(args)

	switch command {
	case "catalog", "dev", "clean":
	default:
		fmt.Println("Usage: seed [catalog|dev|clean] [-visits N] [-accounts N]")
		fmt.Println("  catalog - Insert the exhibit assets and AR characters")
		fmt.Println("  dev     - Catalog plus fake visits and accounts")
		fmt.Println("  clean   - Remove visits, identities and accounts (catalog stays)")
		os.Exit(1)
	}

	if err := database.Initialize(cfg.DatabaseURL, false); err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer database.Close()
	if err := database.Migrate(); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	log.Println("✅ Database connected")

	ctx := context.Background()
	engine := progress.NewEngine(database.DB, progress.Config{FirstViewPoints: cfg.FirstViewPoints})
	seeder := seed.NewSeeder(database.DB, engine)

	switch command {
	case "catalog":
		log.Println("🌱 Seeding catalog...")
		if err := seeder.SeedCatalog(ctx); err != nil {
			log.Fatalf("❌ Seeding failed: %v", err)
		}
	case "dev":
		log.Println("🌱 Seeding development database...")
		if err := seeder.SeedDev(ctx, *visits, *accounts); err != nil {
			log.Fatalf("❌ Seeding failed: %v", err)
		}
	case "clean":
		if cfg.IsProduction() {
			log.Fatal("❌ Refusing to clean a production database")
		}
		log.Println("🧹 Cleaning seed data...")
		if err := seeder.Clean(ctx); err != nil {
			log.Fatalf("❌ Clean failed: %v", err)
		}
	}

	log.Println("✅ Done")
}
