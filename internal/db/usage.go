package db

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Pagination bounds for usage queries. An over-large limit is clamped,
// never rejected.
const (
	DefaultUsageLimit = 50
	MaxUsageLimit     = 200
)

// UsageFilter narrows a usage history query. Zero values mean "no filter".
type UsageFilter struct {
	Action   string
	Workflow string
	Status   string
	Limit    int
	Offset   int
}

// ClampLimit normalizes a caller-supplied page size: non-positive values
// get the default, over-large values are clamped to the maximum.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultUsageLimit
	}
	if limit > MaxUsageLimit {
		return MaxUsageLimit
	}
	return limit
}

// UsageStore appends and queries the audit trail.
type UsageStore struct {
	db *gorm.DB
}

func NewUsageStore(db *gorm.DB) *UsageStore {
	return &UsageStore{db: db}
}

// Insert appends one immutable event row.
func (s *UsageStore) Insert(ev *UsageEvent) error {
	return s.db.Create(ev).Error
}

// Query returns matching events newest-first plus the total count for
// pagination.
func (s *UsageStore) Query(principalID string, f UsageFilter) ([]UsageEvent, int64, error) {
	q := s.db.Model(&UsageEvent{}).Where("principal_id = ?", principalID)
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.Workflow != "" {
		q = q.Where("workflow = ?", f.Workflow)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := ClampLimit(f.Limit)
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var events []UsageEvent
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&events).Error
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// UpsertBucket writes one hourly rollup row, replacing any previous rollup
// for the same (principal, hour).
func (s *UsageStore) UpsertBucket(b *UsageBucket) error {
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "principal_id"}, {Name: "bucket_start"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_count", "error_count",
			"duration_p50_ms", "duration_p95_ms", "duration_p99_ms",
		}),
	}).Create(b).Error
}

// BucketsForPrincipal returns rollups newer than since, newest first.
func (s *UsageStore) BucketsForPrincipal(principalID string, since time.Time) ([]UsageBucket, error) {
	var buckets []UsageBucket
	err := s.db.Where("principal_id = ? AND bucket_start >= ?", principalID, since).
		Order("bucket_start DESC").
		Find(&buckets).Error
	return buckets, err
}

// eventsBetween loads the fields the rollup needs for one hour window.
func (s *UsageStore) eventsBetween(start, end time.Time) ([]UsageEvent, error) {
	var events []UsageEvent
	err := s.db.Where("created_at >= ? AND created_at < ?", start, end).
		Select("principal_id", "status", "duration_ms").
		Find(&events).Error
	return events, err
}
