package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aurashield/mentions-bot/internal/models"
)

// Store is the postgres-backed implementation of MentionStore and
// SubjectStore.
type Store struct {
	db *gorm.DB
}

var _ MentionStore = (*Store)(nil)
var _ SubjectStore = (*Store)(nil)

// Open connects to postgres, runs migrations and returns the store.
func Open(dsn string, logger *logrus.Logger) (*Store, error) {
	logger.Debug("Establishing database connection")

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         newGormLogger(logger),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&models.Mention{}, &models.Subject{}, &models.ChannelConfig{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	logger.Info("Database setup completed")
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing gorm connection, used by tests.
func NewWithDB(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Upsert stores a mention keyed by (source, external_ref). On conflict
// only the mutable fields are updated: identity and creation fields are
// first-write-wins, and alert state (processed, alert_queued,
// alerted_at) is never reset once set.
func (s *Store) Upsert(ctx context.Context, mention *models.Mention) (*models.Mention, error) {
	if mention.ID == "" {
		mention.ID = uuid.NewString()
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "source"}, {Name: "external_ref"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"text", "author", "engagement",
				"sentiment", "crisis_score", "severity", "is_crisis",
			}),
		}).
		Create(mention).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert mention %s/%s: %w", mention.Source, mention.ExternalRef, err)
	}

	var stored models.Mention
	err = s.db.WithContext(ctx).
		Where("source = ? AND external_ref = ?", mention.Source, mention.ExternalRef).
		First(&stored).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load upserted mention: %w", err)
	}

	return &stored, nil
}

// ListAlertCandidates returns crisis mentions whose alerts have not
// been queued yet, oldest first so nothing starves.
func (s *Store) ListAlertCandidates(ctx context.Context, limit int) ([]models.Mention, error) {
	var mentions []models.Mention
	err := s.db.WithContext(ctx).
		Where("is_crisis = ? AND alert_queued = ?", true, false).
		Order("created_at asc").
		Limit(limit).
		Find(&mentions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list alert candidates: %w", err)
	}
	return mentions, nil
}

// MarkProcessed records that alert evaluation ran for the mention.
// Idempotent.
func (s *Store) MarkProcessed(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).
		Model(&models.Mention{}).
		Where("id = ?", id).
		Update("processed", true).Error
	if err != nil {
		return fmt.Errorf("failed to mark mention %s processed: %w", id, err)
	}
	return nil
}

// MarkAlerted flips alert_queued exactly once and stamps alerted_at.
// A second call is a no-op.
func (s *Store) MarkAlerted(ctx context.Context, id string) error {
	now := time.Now().UTC()
	err := s.db.WithContext(ctx).
		Model(&models.Mention{}).
		Where("id = ? AND alert_queued = ?", id, false).
		Updates(map[string]interface{}{
			"alert_queued": true,
			"alerted_at":   now,
			"processed":    true,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark mention %s alerted: %w", id, err)
	}
	return nil
}

// MarkNonCrisisProcessed bulk-flags non-crisis mentions so polling
// cycles do not re-evaluate them forever.
func (s *Store) MarkNonCrisisProcessed(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&models.Mention{}).
		Where("is_crisis = ? AND processed = ?", false, false).
		Update("processed", true)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark non-crisis mentions processed: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// QueryMentions serves the read API consumed by the dashboard layer.
func (s *Store) QueryMentions(ctx context.Context, filter Filter) ([]models.Mention, error) {
	q := s.db.WithContext(ctx).Model(&models.Mention{})

	if filter.Subject != "" {
		q = q.Where("subject = ?", filter.Subject)
	}
	if filter.Source != "" {
		q = q.Where("source = ?", filter.Source)
	}
	if !filter.Since.IsZero() {
		q = q.Where("created_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		q = q.Where("created_at <= ?", filter.Until)
	}
	if filter.CrisisOnly {
		q = q.Where("is_crisis = ?", true)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var mentions []models.Mention
	if err := q.Order("created_at desc").Limit(limit).Find(&mentions).Error; err != nil {
		return nil, fmt.Errorf("failed to query mentions: %w", err)
	}
	return mentions, nil
}

// ListSubjects returns every tracked subject across users.
func (s *Store) ListSubjects(ctx context.Context) ([]models.Subject, error) {
	var subjects []models.Subject
	if err := s.db.WithContext(ctx).Order("created_at asc").Find(&subjects).Error; err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	return subjects, nil
}

// TrackSubject creates a tracked subject; (user, type, value) must be
// unique. The unique index is the arbiter, so two concurrent track
// calls cannot both succeed and the loser gets ErrAlreadyTracked.
func (s *Store) TrackSubject(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}

	if err := s.db.WithContext(ctx).Create(subject).Error; err != nil {
		return trackError(subject, err)
	}
	return nil
}

// trackError maps the unique-index violation onto the domain error.
func trackError(subject *models.Subject, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAlreadyTracked
	}
	return fmt.Errorf("failed to track subject %s/%s: %w", subject.Type, subject.Value, err)
}

// UntrackSubject removes a tracked subject owned by the user.
func (s *Store) UntrackSubject(ctx context.Context, userID, id string) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Subject{})
	if result.Error != nil {
		return fmt.Errorf("failed to untrack subject %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ChannelConfig loads the user's alert channel preferences; a user
// without a row gets an all-disabled config.
func (s *Store) ChannelConfig(ctx context.Context, userID string) (*models.ChannelConfig, error) {
	var cfg models.ChannelConfig
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.ChannelConfig{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load channel config for user %s: %w", userID, err)
	}
	return &cfg, nil
}
