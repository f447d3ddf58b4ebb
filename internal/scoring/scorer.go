// Package scoring computes crisis risk from per-mention signals and
// per-platform aggregates. Two scoring paths exist deliberately: the
// full weighted model used on the poll path where cycle aggregates are
// available, and the coarse per-mention rule used when they are not.
// Callers must not conflate them.
package scoring

import (
	"github.com/aurashield/mentions-bot/internal/models"
)

// Weights and caps of the composite model.
const (
	sentimentWeight  = 0.4
	engagementWeight = 0.3
	velocityWeight   = 0.3

	hostilePlatformBonus = 0.1
	hostileNegativeRatio = 0.7

	// DefaultThreshold is the alerting threshold: a mention is a crisis
	// when its score strictly exceeds it. Distinct from the severity
	// tier boundaries, which are informational.
	DefaultThreshold = 0.7

	// DefaultEngagementCap and DefaultVelocityCap bound the normalized
	// signals so viral outliers cannot dominate the composite.
	// Engagement is the raw like/upvote/reply count; velocity is
	// mentions per polling window.
	DefaultEngagementCap = 500.0
	DefaultVelocityCap   = 100.0

	// DefaultMinCrisisLength is the text-length floor of the coarse rule.
	DefaultMinCrisisLength = 100
)

// Input carries the per-mention signals of the full model.
type Input struct {
	Sentiment      models.Sentiment
	EngagementRate float64
	Velocity       float64 // recent mentions per window
}

// PlatformAggregates summarizes the owning platform over the current
// polling window.
type PlatformAggregates struct {
	NegativeMentions int
	TotalMentions    int
}

// NegativeRatio is the share of negative mentions, 0 when the window
// is empty.
func (a PlatformAggregates) NegativeRatio() float64 {
	if a.TotalMentions == 0 {
		return 0
	}
	return float64(a.NegativeMentions) / float64(a.TotalMentions)
}

// Scorer computes the weighted composite. The zero value is not usable;
// construct with NewScorer.
type Scorer struct {
	engagementCap float64
	velocityCap   float64
}

// NewScorer creates a scorer with the given signal caps; non-positive
// caps fall back to the defaults.
func NewScorer(engagementCap, velocityCap float64) *Scorer {
	if engagementCap <= 0 {
		engagementCap = DefaultEngagementCap
	}
	if velocityCap <= 0 {
		velocityCap = DefaultVelocityCap
	}
	return &Scorer{engagementCap: engagementCap, velocityCap: velocityCap}
}

// Score computes the crisis score and severity tier for one mention.
//
//	(1 - sentimentUnit) * 0.4
//	+ min(engagement, cap)/cap * 0.3
//	+ min(velocity, cap)/cap * 0.3
//	+ 0.1 when the platform's negative ratio exceeds 0.7
//
// clamped to [0,1]. Negative sentiment contributes the most; a platform
// already trending hostile amplifies every new mention from it.
func (s *Scorer) Score(in Input, agg PlatformAggregates) (float64, models.Severity) {
	score := (1 - sentimentUnit(in.Sentiment)) * sentimentWeight
	score += capped(in.EngagementRate, s.engagementCap) * engagementWeight
	score += capped(in.Velocity, s.velocityCap) * velocityWeight

	if agg.NegativeRatio() > hostileNegativeRatio {
		score += hostilePlatformBonus
	}

	score = clamp01(score)
	return score, SeverityFor(score)
}

// SeverityFor maps a score onto its tier.
func SeverityFor(score float64) models.Severity {
	switch {
	case score >= 0.8:
		return models.SeverityCritical
	case score >= 0.6:
		return models.SeverityHigh
	case score >= 0.4:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// IsCrisis reports whether a score crosses the alerting threshold. The
// flag is a pure function of score and threshold, never set
// independently; a score exactly at the threshold is not a crisis.
func IsCrisis(score, threshold float64) bool {
	return score > threshold
}

// CoarseIsCrisis is the fallback scoring path for call sites without
// platform aggregates: negative sentiment on text longer than minLen.
func CoarseIsCrisis(s models.Sentiment, text string, minLen int) bool {
	if minLen <= 0 {
		minLen = DefaultMinCrisisLength
	}
	return s == models.SentimentNegative && len(text) > minLen
}

// sentimentUnit places a label on a 0..1 scale: positive 1, neutral
// 0.5, negative 0.
func sentimentUnit(s models.Sentiment) float64 {
	switch s {
	case models.SentimentPositive:
		return 1
	case models.SentimentNegative:
		return 0
	default:
		return 0.5
	}
}

func capped(value, cap float64) float64 {
	if value < 0 {
		return 0
	}
	if value > cap {
		return 1
	}
	return value / cap
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
