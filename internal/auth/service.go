package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arbmuseum/arb/backend/internal/database"
	"github.com/arbmuseum/arb/backend/internal/logger"
	"github.com/arbmuseum/arb/backend/internal/models"
	"github.com/arbmuseum/arb/backend/internal/util"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountExists      = errors.New("account already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrInvalidEmail       = errors.New("invalid email")
)

// Service handles AR account registration, login and token validation
type Service struct {
	db        *gorm.DB
	jwtSecret []byte
	tokenTTL  time.Duration
}

// NewService creates a new authentication service
func NewService(db *gorm.DB, jwtSecret []byte, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 30 * time.Minute
	}
	return &Service{
		db:        db,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

// AuthResponse represents authentication response
type AuthResponse struct {
	Token     string         `json:"access_token"`
	TokenType string         `json:"token_type"`
	Account   models.Account `json:"account"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Register creates a new account with email/password
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	email := util.NormalizeEmail(req.Email)
	if !util.IsValidEmail(email) {
		return nil, ErrInvalidEmail
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := models.Account{
		Email:        email,
		PasswordHash: string(hashedPassword),
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	logger.Log.Info("Account registered", logger.WithAccountID(account.ID))
	return s.generateAuthResponse(&account)
}

// Login authenticates with email/password
func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	account, err := s.FindAccountByEmail(ctx, req.Email)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, ErrInvalidCredentials
	} else if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !account.IsActive {
		return nil, ErrAccountInactive
	}

	return s.generateAuthResponse(account)
}

// FindAccountByEmail finds an account by email (case-insensitive)
func (s *Service) FindAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	err := s.db.WithContext(ctx).Where("email = ?", util.NormalizeEmail(email)).First(&account).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &account, nil
}

// SetAdmin grants or revokes admin rights
func (s *Service) SetAdmin(ctx context.Context, accountID string, admin bool) (*models.Account, error) {
	res := s.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", accountID).Update("is_admin", admin)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update account: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrAccountNotFound
	}

	var account models.Account
	if err := s.db.WithContext(ctx).First(&account, "id = ?", accountID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload account: %w", err)
	}

	logger.Log.Info("Account admin flag changed",
		logger.WithAccountID(accountID),
		zap.Bool("is_admin", admin),
	)
	return &account, nil
}

func (s *Service) generateAuthResponse(account *models.Account) (*AuthResponse, error) {
	now := time.Now()
	expiresAt := now.Add(s.tokenTTL)

	claims := jwt.RegisteredClaims{
		Subject:   account.ID,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &AuthResponse{
		Token:     tokenString,
		TokenType: "bearer",
		Account:   *account,
		ExpiresAt: expiresAt,
	}, nil
}

// ValidateToken validates a JWT and returns the active account it names
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*models.Account, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token claims")
	}

	var account models.Account
	err = s.db.WithContext(ctx).Where("id = ?", claims.Subject).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if !account.IsActive {
		return nil, ErrAccountInactive
	}

	return &account, nil
}
