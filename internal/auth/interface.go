package auth

import (
	"context"

	"github.com/arbmuseum/arb/backend/internal/models"
)

// AuthServiceInterface defines the contract for authentication operations.
// Handlers and middleware depend on it so tests can swap in a fake.
type AuthServiceInterface interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	FindAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	SetAdmin(ctx context.Context, accountID string, admin bool) (*models.Account, error)
	ValidateToken(ctx context.Context, tokenString string) (*models.Account, error)
}

// Ensure Service implements AuthServiceInterface
var _ AuthServiceInterface = (*Service)(nil)
