package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"log"

	"github.com/arbmuseum/arb/backend/internal/auth"
	"github.com/arbmuseum/arb/backend/internal/config"
	"github.com/arbmuseum/arb/backend/internal/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	// Parse command-line flags
	email := flag.String("email", "", "Email address of the AR account to promote to admin")
	revoke := flag.Bool("revoke", false, "Revoke admin privileges instead of granting")
	flag.Parse()

	if *email == "" {
		fmt.Println("Usage: go run ./cmd/promote-admin -email=user@example.com")
		fmt.Println("       go run ./cmd/promote-admin -email=user@example.com -revoke")
		return
	}

	if err := database.Initialize(cfg.DatabaseURL, false); err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	svc := auth.NewService(database.DB, cfg.JWTSecret, cfg.AccessTokenTTL)

	account, err := svc.FindAccountByEmail(ctx, *email)
	if stderrors.Is(err, auth.ErrAccountNotFound) {
		fmt.Printf("❌ Account not found: %s\n", *email)
		return
	} else if err != nil {
		log.Fatalf("❌ Lookup failed: %v", err)
	}

	if account.IsAdmin == !*revoke {
		fmt.Printf("⚠️  Nothing to do: %s already has is_admin=%t\n", account.Email, account.IsAdmin)
		return
	}

	updated, err := svc.SetAdmin(ctx, account.ID, !*revoke)
	if err != nil {
		log.Fatalf("❌ Failed to update account: %v", err)
	}

	if updated.IsAdmin {
		fmt.Printf("✓ Admin privileges granted to %s\n", updated.Email)
		fmt.Printf("  Account ID: %s\n", updated.ID)
	} else {
		fmt.Printf("✓ Admin privileges revoked for %s\n", updated.Email)
	}
}
