package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arbmuseum/arb/backend/internal/logger"
	"github.com/arbmuseum/arb/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB holds the database connection
var DB *gorm.DB

// Options tunes the connection pool and query logging
type Options struct {
	Verbose      bool
	MaxIdleConns int
	MaxOpenConns int
}

// Open connects to the database named by url. "sqlite://path" (or
// "sqlite://:memory:") selects the sqlite driver; anything else is handed to
// the postgres driver as a DSN or URL.
func Open(url string, opts Options) (*gorm.DB, error) {
	gormLogger := gormlogger.Default.LogMode(gormlogger.Warn)
	if opts.Verbose {
		gormLogger = gormlogger.Default.LogMode(gormlogger.Info)
	}

	cfg := &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var (
		db  *gorm.DB
		err error
	)
	isSQLite := strings.HasPrefix(url, "sqlite://")
	if isSQLite {
		db, err = gorm.Open(sqlite.Open(sqliteDSN(strings.TrimPrefix(url, "sqlite://"))), cfg)
	} else {
		db, err = gorm.Open(postgres.Open(url), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if isSQLite {
		// sqlite serializes writers; a single connection also keeps :memory: databases alive
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(orDefault(opts.MaxIdleConns, 10))
		sqlDB.SetMaxOpenConns(orDefault(opts.MaxOpenConns, 100))
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	return db, nil
}

// Initialize opens the global connection
func Initialize(url string, verbose bool) error {
	db, err := Open(url, Options{Verbose: verbose})
	if err != nil {
		return err
	}
	DB = db
	logger.Log.Info("Database connected", zap.String("dialect", db.Dialector.Name()))
	return nil
}

// Migrate runs auto-migration on the global connection
func Migrate() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	return MigrateDB(DB)
}

// MigrateDB auto-migrates every model and creates the indexes gorm tags cannot express
func MigrateDB(db *gorm.DB) error {
	if db.Dialector.Name() == "postgres" {
		if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
			logger.Log.Warn("Could not create uuid-ossp extension", zap.Error(err))
		}
	}

	err := db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.Asset{},
		&models.ItemProgress{},
		&models.ViewEvent{},
		&models.PromoCode{},
		&models.Account{},
		&models.Character{},
		&models.Video{},
		&models.ClientLog{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logger.Log.Info("Database migrations completed")
	return nil
}

// DropAll removes every table owned by the service
func DropAll(db *gorm.DB) error {
	return db.Migrator().DropTable(
		&models.ClientLog{},
		&models.Video{},
		&models.Character{},
		&models.Account{},
		&models.PromoCode{},
		&models.ViewEvent{},
		&models.ItemProgress{},
		&models.Asset{},
		&models.Session{},
		&models.User{},
	)
}

func createIndexes(db *gorm.DB) error {
	// At most one unused promo code per session. Issuance relies on this to stay idempotent under races.
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_promo_codes_session_unused ON promo_codes (session_id) WHERE used_at IS NULL`).Error; err != nil {
		return err
	}

	// Best effort, these only speed up reads
	optional := []string{
		"CREATE INDEX IF NOT EXISTS idx_users_email_lower ON users (LOWER(email))",
		"CREATE INDEX IF NOT EXISTS idx_item_progress_viewed ON item_progress (session_id) WHERE times_viewed > 0",
		"CREATE INDEX IF NOT EXISTS idx_promo_codes_user_issued ON promo_codes (user_id, issued_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_videos_account_created ON videos (account_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_client_logs_created ON client_logs (created_at DESC)",
	}
	for _, stmt := range optional {
		if err := db.Exec(stmt).Error; err != nil {
			logger.Log.Warn("Could not create index", zap.String("statement", stmt), zap.Error(err))
		}
	}
	return nil
}

// Close closes the database connection
func Close() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// Health checks database connectivity
func Health() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Ping()
}

// IsDuplicateKey reports whether err is a unique-constraint violation
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

func sqliteDSN(path string) string {
	if path == "" || path == ":memory:" {
		return "file::memory:?_foreign_keys=on"
	}
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_foreign_keys=on&_busy_timeout=5000"
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
