package db

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// CredentialStore persists issued credentials. All single-row operations
// rely on the database's own atomicity; there is no in-process locking.
type CredentialStore struct {
	db *gorm.DB
}

func NewCredentialStore(db *gorm.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

// Insert creates a new credential row. The unique index on fingerprint
// makes a digest collision a hard insert error.
func (s *CredentialStore) Insert(c *Credential) error {
	return s.db.Create(c).Error
}

// ListByPrincipal returns the principal's credentials, newest first.
func (s *CredentialStore) ListByPrincipal(principalID string) ([]Credential, error) {
	var creds []Credential
	err := s.db.Where("principal_id = ?", principalID).
		Order("created_at DESC").
		Find(&creds).Error
	return creds, err
}

// FindByFingerprint looks a credential up by its token digest.
func (s *CredentialStore) FindByFingerprint(fingerprint string) (*Credential, error) {
	var c Credential
	err := s.db.Where("fingerprint = ?", fingerprint).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteOwned deletes the credential only if it belongs to principalID and
// returns the deleted row. A credential owned by someone else (or one that
// does not exist) yields ErrNotFound either way, so existence never leaks.
// Two concurrent deletes of the same id race benignly: one wins, the other
// sees ErrNotFound.
func (s *CredentialStore) DeleteOwned(id, principalID string) (*Credential, error) {
	var c Credential
	err := s.db.Where("id = ? AND principal_id = ?", id, principalID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	res := s.db.Where("id = ? AND principal_id = ?", id, principalID).Delete(&Credential{})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &c, nil
}

// TouchLastUsed stamps the credential's last use. Best-effort: callers run
// it off the request path and ignore the error beyond logging.
func (s *CredentialStore) TouchLastUsed(id string) error {
	now := time.Now()
	return s.db.Model(&Credential{}).Where("id = ?", id).
		Update("last_used_at", now).Error
}
