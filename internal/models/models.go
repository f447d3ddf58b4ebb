package models

import "time"

// Source identifies the platform a mention was observed on.
type Source string

const (
	SourceForum       Source = "forum"
	SourceMicroblog   Source = "microblog"
	SourceVideo       Source = "video"
	SourcePlaceReview Source = "place_review"
)

// Sentiment is the label assigned by the classifier.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Severity buckets a crisis score into a coarse tier.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Mention is one observed reference to a tracked subject on an
// external platform. (Source, ExternalRef) is the natural key; the
// uuid ID is assigned at persistence time.
type Mention struct {
	ID           string    `json:"id" gorm:"primaryKey;column:id"`
	UserID       string    `json:"user_id" gorm:"column:user_id;index"`
	Subject      string    `json:"subject" gorm:"column:subject;index"`
	IsCompetitor bool      `json:"is_competitor" gorm:"column:is_competitor"`
	Source       Source    `json:"source" gorm:"column:source;uniqueIndex:idx_source_external_ref"`
	Community    string    `json:"community,omitempty" gorm:"column:community"`
	ExternalRef  string    `json:"external_ref" gorm:"column:external_ref;uniqueIndex:idx_source_external_ref"`
	Text         string    `json:"text" gorm:"column:text"`
	Author       string    `json:"author,omitempty" gorm:"column:author"`
	URL          string    `json:"url" gorm:"column:url"`
	Engagement   int       `json:"engagement" gorm:"column:engagement"`
	CreatedAt    time.Time `json:"created_at" gorm:"column:created_at;index"`
	IngestedAt   time.Time `json:"ingested_at" gorm:"column:ingested_at;autoCreateTime"`

	Sentiment   Sentiment `json:"sentiment" gorm:"column:sentiment"`
	CrisisScore float64   `json:"crisis_score" gorm:"column:crisis_score"`
	Severity    Severity  `json:"severity" gorm:"column:severity"`
	IsCrisis    bool      `json:"is_crisis" gorm:"column:is_crisis;index"`

	Processed   bool       `json:"processed" gorm:"column:processed;default:false"`
	AlertQueued bool       `json:"alert_queued" gorm:"column:alert_queued;default:false"`
	AlertedAt   *time.Time `json:"alerted_at,omitempty" gorm:"column:alerted_at"`
}

// TableName specifies the table name for GORM.
func (Mention) TableName() string {
	return "mentions"
}

// SubjectType distinguishes what kind of thing a subject value names.
type SubjectType string

const (
	SubjectHandle  SubjectType = "handle"
	SubjectKeyword SubjectType = "keyword"
	SubjectPlace   SubjectType = "place"
	SubjectChannel SubjectType = "channel"
)

// Subject is a (type, value) pair a user monitors. Uniqueness is
// enforced per (user, type, value).
type Subject struct {
	ID           string      `json:"id" gorm:"primaryKey;column:id"`
	UserID       string      `json:"user_id" gorm:"column:user_id;uniqueIndex:idx_user_type_value"`
	Type         SubjectType `json:"type" gorm:"column:type;uniqueIndex:idx_user_type_value"`
	Value        string      `json:"value" gorm:"column:value;uniqueIndex:idx_user_type_value"`
	IsCompetitor bool        `json:"is_competitor" gorm:"column:is_competitor"`
	CreatedAt    time.Time   `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (Subject) TableName() string {
	return "tracked_subjects"
}

// ChannelConfig holds a user's alert channel preferences. It is
// read-only input to the alert dispatcher.
type ChannelConfig struct {
	UserID         string `json:"user_id" gorm:"primaryKey;column:user_id"`
	EmailEnabled   bool   `json:"email_enabled" gorm:"column:email_enabled"`
	Email          string `json:"email" gorm:"column:email"`
	WebhookEnabled bool   `json:"webhook_enabled" gorm:"column:webhook_enabled"`
	WebhookURL     string `json:"webhook_url" gorm:"column:webhook_url"`
	SMSEnabled     bool   `json:"sms_enabled" gorm:"column:sms_enabled"`
	SMSTo          string `json:"sms_to" gorm:"column:sms_to"`
}

func (ChannelConfig) TableName() string {
	return "channel_configs"
}

// EnabledChannels returns the names of the channels the dispatcher
// should attempt for this user.
func (c *ChannelConfig) EnabledChannels() []string {
	var channels []string
	if c.EmailEnabled && c.Email != "" {
		channels = append(channels, "email")
	}
	if c.WebhookEnabled && c.WebhookURL != "" {
		channels = append(channels, "webhook")
	}
	if c.SMSEnabled && c.SMSTo != "" {
		channels = append(channels, "sms")
	}
	return channels
}

// CycleReport summarizes one complete orchestrator run.
type CycleReport struct {
	Polled             int            `json:"polled"`
	Errors             int            `json:"errors"`
	AlertsSent         int            `json:"alerts_sent"`
	Skipped            int            `json:"skipped"`
	SourceCounts       map[string]int `json:"source_counts"`
	SentimentBreakdown map[string]int `json:"sentiment_breakdown"`
	SuspendedPlatforms []string       `json:"suspended_platforms,omitempty"`
	StartedAt          time.Time      `json:"started_at"`
	Duration           string         `json:"duration"`
}
