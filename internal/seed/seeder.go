package seed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/arbmuseum/arb/backend/internal/logger"
	"github.com/arbmuseum/arb/backend/internal/models"
	"github.com/arbmuseum/arb/backend/internal/progress"
	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CatalogAsset describes one exhibit that can be scanned
type CatalogAsset struct {
	Slug     string
	Name     string
	Type     string
	Campaign string
}

// CatalogCharacter describes one AR character
type CatalogCharacter struct {
	Code   string
	NameEN string
	NameRU string
}

// DefaultAssets is the exhibit catalog shipped with the museum
var DefaultAssets = []CatalogAsset{
	{Slug: "cheburashka_company", Name: "Cheburashka and Company", Type: "ar_scene", Campaign: "default"},
	{Slug: "volk", Name: "The Wolf", Type: "ar_scene", Campaign: "default"},
	{Slug: "hedgehog_in_fog", Name: "Hedgehog in the Fog", Type: "ar_scene", Campaign: "default"},
	{Slug: "winnie", Name: "Winnie the Pooh", Type: "ar_scene", Campaign: "default"},
	{Slug: "prostokvashino", Name: "Three from Prostokvashino", Type: "ar_scene", Campaign: "default"},
}

// DefaultCharacters are the AR characters a visitor can record with
var DefaultCharacters = []CatalogCharacter{
	{Code: "cheburashka", NameEN: "Cheburashka", NameRU: "Чебурашка"},
	{Code: "gena", NameEN: "Crocodile Gena", NameRU: "Крокодил Гена"},
	{Code: "volk", NameEN: "The Wolf", NameRU: "Волк"},
	{Code: "zayats", NameEN: "The Hare", NameRU: "Заяц"},
	{Code: "matroskin", NameEN: "Cat Matroskin", NameRU: "Кот Матроскин"},
}

// Seeder handles database seeding operations
type Seeder struct {
	db     *gorm.DB
	engine *progress.Engine
	rng    *rand.Rand
}

// NewSeeder creates a new seeder instance. Demo visits go through engine so
// that scores, events and promo codes match what real traffic produces.
func NewSeeder(db *gorm.DB, engine *progress.Engine) *Seeder {
	seed := time.Now().UnixNano()
	// Seed returns an error only for invalid sources
	_ = gofakeit.Seed(seed)
	return &Seeder{db: db, engine: engine, rng: rand.New(rand.NewSource(seed))}
}

// SeedCatalog inserts the default assets and characters. Existing rows are kept.
func (s *Seeder) SeedCatalog(ctx context.Context) error {
	return s.SeedCatalogWith(ctx, DefaultAssets, DefaultCharacters)
}

// SeedCatalogWith inserts the given assets and characters, skipping slugs and
// codes that already exist
func (s *Seeder) SeedCatalogWith(ctx context.Context, assets []CatalogAsset, characters []CatalogCharacter) error {
	db := s.db.WithContext(ctx)

	for _, a := range assets {
		campaign := a.Campaign
		if campaign == "" {
			campaign = "default"
		}
		row := models.Asset{Slug: a.Slug, Name: a.Name, Type: a.Type, Campaign: campaign, Meta: models.JSONMap{}}
		if err := db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "slug"}}, DoNothing: true}).Create(&row).Error; err != nil {
			return fmt.Errorf("failed to seed asset %s: %w", a.Slug, err)
		}
	}

	for _, ch := range characters {
		row := models.Character{Code: ch.Code, NameEN: ch.NameEN, NameRU: ch.NameRU}
		if err := db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).Create(&row).Error; err != nil {
			return fmt.Errorf("failed to seed character %s: %w", ch.Code, err)
		}
	}

	logger.Log.Info("Catalog seeded",
		zap.Int("assets", len(assets)),
		zap.Int("characters", len(characters)),
	)
	return nil
}

// SeedDev seeds the development database with the catalog plus fake visits and AR accounts
func (s *Seeder) SeedDev(ctx context.Context, visits, accounts int) error {
	log := func(msg string) {
		logger.Log.Info(msg)
	}

	log("Creating catalog...")
	if err := s.SeedCatalog(ctx); err != nil {
		return err
	}

	log("Creating demo visits...")
	if err := s.seedVisits(ctx, visits); err != nil {
		return fmt.Errorf("failed to seed visits: %w", err)
	}

	log("Creating AR accounts...")
	if _, err := s.seedAccounts(ctx, accounts, "password123"); err != nil {
		return fmt.Errorf("failed to seed accounts: %w", err)
	}

	return nil
}

// seedVisits plays random visits through the engine. Roughly half the
// visitors leave an email, and some scan every exhibit.
func (s *Seeder) seedVisits(ctx context.Context, count int) error {
	if s.engine == nil {
		return fmt.Errorf("progress engine not configured")
	}

	var assets []models.Asset
	if err := s.db.WithContext(ctx).Order("id").Find(&assets).Error; err != nil {
		return fmt.Errorf("failed to load assets: %w", err)
	}
	if len(assets) == 0 {
		return fmt.Errorf("no assets to visit")
	}

	completed := 0
	for i := 0; i < count; i++ {
		sess, err := s.engine.StartSession(ctx, map[string]interface{}{
			"user_agent": gofakeit.UserAgent(),
			"ip":         gofakeit.IPv4Address(),
			"seeded":     true,
		})
		if err != nil {
			return err
		}

		n := 1 + s.rng.Intn(len(assets))
		for _, idx := range s.rng.Perm(len(assets))[:n] {
			if _, err := s.engine.RecordView(ctx, sess.ID, assets[idx].Slug, map[string]interface{}{
				"source": "seed",
			}); err != nil {
				return err
			}
		}
		if n == len(assets) {
			completed++
		}

		if s.rng.Intn(2) == 0 {
			if _, err := s.engine.AttachIdentity(ctx, sess.ID, gofakeit.Email()); err != nil {
				logger.Log.Warn("Failed to attach seeded identity", logger.WithSessionID(sess.ID), zap.Error(err))
			}
		}
	}

	logger.Log.Info("Visits seeded", zap.Int("visits", count), zap.Int("completed", completed))
	return nil
}

// seedAccounts creates AR accounts with a shared password
func (s *Seeder) seedAccounts(ctx context.Context, count int, password string) ([]models.Account, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	accounts := make([]models.Account, 0, count)
	for i := 0; i < count; i++ {
		account := models.Account{
			Email:        fmt.Sprintf("%d.%s", i, gofakeit.Email()),
			PasswordHash: string(hashed),
		}
		if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
			return nil, fmt.Errorf("failed to create account: %w", err)
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// Clean removes all visit and account data. The catalog stays.
func (s *Seeder) Clean(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	// Delete in reverse order of dependencies
	for _, table := range []string{"view_events", "item_progress", "promo_codes", "sessions", "users", "client_logs", "videos", "accounts"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clean %s: %w", table, err)
		}
	}
	return nil
}
