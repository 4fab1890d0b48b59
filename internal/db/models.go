package db

import (
	"time"

	"gorm.io/datatypes"
)

// Principal is the account entity that credentials and usage events belong
// to. The bootstrap principal (from env) is created as a row on startup.
type Principal struct {
	ID string `gorm:"type:uuid;primaryKey"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Name string `gorm:"uniqueIndex;size:64;not null"`
}

// Credential is one issued access token. The raw token is never stored:
// Fingerprint (SHA-256) is the unique lookup key and SecretHash (bcrypt)
// is verified after the fingerprint match.
type Credential struct {
	ID string `gorm:"type:uuid;primaryKey"`

	CreatedAt time.Time

	// PrincipalID links this credential to its owner. All reads and the
	// revoke path are scoped by it.
	PrincipalID string `gorm:"type:uuid;index;not null"`

	// Label is the caller-chosen display name (e.g. "laptop").
	Label string `gorm:"size:128;not null"`

	// VisiblePrefix is the first few characters of the raw token, kept
	// for display only.
	VisiblePrefix string `gorm:"size:16;not null"`

	// Fingerprint is the hex SHA-256 of the raw token. Unique across all
	// credentials; a collision on insert is treated as fatal.
	Fingerprint string `gorm:"uniqueIndex;size:64;not null"`

	// SecretHash is the bcrypt hash of the raw token.
	SecretHash string `gorm:"size:255;not null"`

	// LastUsedAt is touched best-effort on each successful verification.
	LastUsedAt *time.Time

	Principal Principal `gorm:"foreignKey:PrincipalID"`
}

// Usage event statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusPending = "pending"
)

// UsageEvent is one immutable audit record per gateway invocation (or one
// caller-reported workflow step). Rows are append-only: the gateway never
// mutates or deletes them.
type UsageEvent struct {
	ID string `gorm:"type:uuid;primaryKey"`

	CreatedAt time.Time `gorm:"index"`

	PrincipalID string `gorm:"type:uuid;index;not null"`

	// CredentialID survives credential deletion via SET NULL, so history
	// is kept even after the key that produced it is revoked.
	CredentialID *string `gorm:"type:uuid;index"`

	// Action is a free-form operation tag (e.g. "rpc.eth", "swap.price").
	Action string `gorm:"size:128;not null;index"`

	// Workflow optionally groups related events.
	Workflow string `gorm:"size:128;index"`

	DurationMs *int64

	// Status is one of success, error, pending. ErrorMessage is required
	// when Status is error.
	Status       string `gorm:"size:16;not null;index"`
	ErrorMessage string

	// Metadata holds arbitrary key/value pairs so callers can attach
	// context without schema changes.
	Metadata datatypes.JSONMap `gorm:"type:json"`

	Credential *Credential `gorm:"foreignKey:CredentialID;constraint:OnDelete:SET NULL"`
}

// UsageBucket stores pre-aggregated hourly usage per principal for fast
// summary queries. Filled by the rollup worker.
type UsageBucket struct {
	ID uint `gorm:"primaryKey"`

	PrincipalID string    `gorm:"uniqueIndex:idx_usage_bucket_unique,priority:1;not null"`
	BucketStart time.Time `gorm:"uniqueIndex:idx_usage_bucket_unique,priority:2;not null"` // start of the hour (UTC)

	TotalCount    int64 `gorm:"not null"`
	ErrorCount    int64 `gorm:"not null"`
	DurationP50Ms int64 `gorm:"not null"`
	DurationP95Ms int64 `gorm:"not null"`
	DurationP99Ms int64 `gorm:"not null"`
}

// ValidStatus reports whether s is a recognized usage event status.
func ValidStatus(s string) bool {
	return s == StatusSuccess || s == StatusError || s == StatusPending
}
