package store

import (
	"context"
	"errors"
	"time"

	"github.com/aurashield/mentions-bot/internal/models"
)

// ErrAlreadyTracked is returned when a subject with the same
// (user, type, value) already exists.
var ErrAlreadyTracked = errors.New("subject is already being tracked")

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Filter narrows a mention query for the read API. Zero fields are
// ignored.
type Filter struct {
	Subject    string
	Source     models.Source
	Since      time.Time
	Until      time.Time
	CrisisOnly bool
	Limit      int
}

// MentionStore is the persistence contract of the pipeline. The
// implementation must keep (source, external_ref) unique and never let
// an upsert reset alert state.
type MentionStore interface {
	// Upsert stores a mention idempotently. A second upsert for an
	// existing (source, external_ref) updates mutable fields and
	// returns the stored row; it never creates a duplicate.
	Upsert(ctx context.Context, mention *models.Mention) (*models.Mention, error)

	// ListAlertCandidates returns crisis mentions not yet alerted,
	// oldest first, bounded by limit.
	ListAlertCandidates(ctx context.Context, limit int) ([]models.Mention, error)

	// MarkProcessed and MarkAlerted are separate, idempotent state
	// transitions.
	MarkProcessed(ctx context.Context, id string) error
	MarkAlerted(ctx context.Context, id string) error

	// MarkNonCrisisProcessed flags every non-crisis, unprocessed
	// mention as processed so later cycles skip them.
	MarkNonCrisisProcessed(ctx context.Context) (int64, error)

	// QueryMentions serves the dashboard read API, created_at desc.
	QueryMentions(ctx context.Context, filter Filter) ([]models.Mention, error)
}

// SubjectStore manages tracked subjects and alert channel preferences.
type SubjectStore interface {
	ListSubjects(ctx context.Context) ([]models.Subject, error)
	TrackSubject(ctx context.Context, subject *models.Subject) error
	UntrackSubject(ctx context.Context, userID, id string) error
	ChannelConfig(ctx context.Context, userID string) (*models.ChannelConfig, error)
}
