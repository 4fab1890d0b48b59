// Package usage validates and appends audit events. Recording a gateway
// invocation is best-effort: a write failure is logged and never turns a
// successful proxied call into a failed response.
package usage

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"atlasgw/internal/db"
)

// Store is the slice of the usage store the recorder needs.
type Store interface {
	Insert(ev *db.UsageEvent) error
}

// Entry is one event to record. Principal and credential ids come from the
// verified auth context, never from caller input.
type Entry struct {
	PrincipalID  string
	CredentialID string
	Action       string
	Workflow     string
	DurationMs   *int64
	Status       string
	ErrorMessage string
	Metadata     map[string]any
}

// Recorder appends usage events.
type Recorder struct {
	store  Store
	logger *zap.Logger
}

func NewRecorder(store Store, logger *zap.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// Validate enforces the recording contract: action present, status known,
// and an error status always carries a message.
func Validate(e Entry) error {
	if e.Action == "" {
		return errors.New("action is required")
	}
	if e.PrincipalID == "" {
		return errors.New("principal id is required")
	}
	if !db.ValidStatus(e.Status) {
		return fmt.Errorf("invalid status %q (expected success, error or pending)", e.Status)
	}
	if e.Status == db.StatusError && e.ErrorMessage == "" {
		return errors.New("error_message is required when status is error")
	}
	return nil
}

// Record validates and appends one event synchronously.
func (r *Recorder) Record(e Entry) (*db.UsageEvent, error) {
	if err := Validate(e); err != nil {
		return nil, err
	}

	ev := &db.UsageEvent{
		ID:           uuid.NewString(),
		CreatedAt:    time.Now(),
		PrincipalID:  e.PrincipalID,
		Action:       e.Action,
		Workflow:     e.Workflow,
		DurationMs:   e.DurationMs,
		Status:       e.Status,
		ErrorMessage: e.ErrorMessage,
	}
	if e.CredentialID != "" {
		id := e.CredentialID
		ev.CredentialID = &id
	}
	if len(e.Metadata) > 0 {
		meta := datatypes.JSONMap{}
		for k, v := range e.Metadata {
			meta[k] = v
		}
		ev.Metadata = meta
	}

	if err := r.store.Insert(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// RecordAsync appends the event off the request path. Failures are logged
// with full context server-side and otherwise swallowed.
func (r *Recorder) RecordAsync(e Entry) {
	go func() {
		if _, err := r.Record(e); err != nil {
			r.logger.Warn("usage record failed",
				zap.String("action", e.Action),
				zap.String("principal_id", e.PrincipalID),
				zap.Error(err))
		}
	}()
}
