package db

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"atlasgw/internal/auth"
	"atlasgw/internal/config"
)

// ErrNotFound is returned by store lookups that matched no row. Callers
// must not leak anything more specific than this to the outside.
var ErrNotFound = errors.New("record not found")

// Connect opens a GORM database connection using APP_DATABASE_URL (PostgreSQL URL).
func Connect(cfg *config.Config) (*gorm.DB, error) {
	dsn := strings.TrimSpace(cfg.DatabaseURL)
	if dsn == "" {
		return nil, errors.New("APP_DATABASE_URL is required (PostgreSQL URL)")
	}
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return nil, errors.New("APP_DATABASE_URL must be a postgres:// or postgresql:// URL")
	}

	// PrepareStmt: true prevents the GORM postgres migrator from forcing simple protocol
	// for "SELECT * FROM table LIMIT 1", which would otherwise trigger "insufficient arguments".
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{PrepareStmt: true})
	if err != nil {
		return nil, err
	}

	// Auto-migrate the core tables. Schema creation is idempotent.
	if err := db.AutoMigrate(&Principal{}, &Credential{}, &UsageEvent{}, &UsageBucket{}); err != nil {
		return nil, err
	}

	return db, nil
}

// EnsureBootstrapPrincipal makes sure the principal named in config exists
// and returns it. An existing row is left as-is.
func EnsureBootstrapPrincipal(db *gorm.DB, cfg *config.Config) (*Principal, error) {
	var p Principal
	err := db.Where("name = ?", cfg.BootstrapPrincipal).Limit(1).Find(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID != "" {
		return &p, nil
	}

	p = Principal{ID: uuid.NewString(), Name: cfg.BootstrapPrincipal}
	if err := db.Create(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// EnsureBootstrapCredential seeds a credential for the bootstrap principal
// from APP_BOOTSTRAP_TOKEN so a fresh deployment has a usable key. The env
// value must be a well-formed raw token; only its hashes are persisted.
func EnsureBootstrapCredential(db *gorm.DB, cfg *config.Config, principal *Principal, logger *zap.Logger) error {
	if cfg.BootstrapToken == "" {
		return nil
	}
	if !auth.WellFormed(cfg.BootstrapToken) {
		return errors.New("APP_BOOTSTRAP_TOKEN is not a well-formed token (expected atl_ + 64 hex chars)")
	}

	fp := auth.Fingerprint(cfg.BootstrapToken)

	// Use Find so "not found" doesn't log as error.
	var existing Credential
	if err := db.Where("fingerprint = ?", fp).Limit(1).Find(&existing).Error; err != nil {
		return err
	}
	if existing.ID != "" {
		if existing.PrincipalID != principal.ID {
			return errors.New("APP_BOOTSTRAP_TOKEN already belongs to a different principal")
		}
		return nil
	}

	secretHash, err := auth.HashSecret(cfg.BootstrapToken)
	if err != nil {
		return err
	}
	cred := Credential{
		ID:            uuid.NewString(),
		CreatedAt:     time.Now(),
		PrincipalID:   principal.ID,
		Label:         "bootstrap",
		VisiblePrefix: auth.VisiblePrefix(cfg.BootstrapToken),
		Fingerprint:   fp,
		SecretHash:    secretHash,
	}
	if err := db.Create(&cred).Error; err != nil {
		return err
	}
	logger.Info("bootstrap credential seeded",
		zap.String("principal", principal.Name),
		zap.String("visible_prefix", cred.VisiblePrefix))
	return nil
}
