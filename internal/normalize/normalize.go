// Package normalize maps platform-native payloads into canonical
// Mention records. Normalization is pure: sentiment and scoring fields
// are left unset for the later pipeline stages.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/aurashield/mentions-bot/internal/models"
	"github.com/aurashield/mentions-bot/internal/sources"
)

// Normalize converts one raw item into a Mention for the given subject.
// A malformed item (no usable dedup ref or timestamp) returns an error
// the caller counts and skips; it never aborts a batch.
func Normalize(source models.Source, subject models.Subject, item sources.RawItem) (models.Mention, error) {
	ref := externalRef(item)
	if ref == "" {
		return models.Mention{}, fmt.Errorf("item from %s has no usable external ref", source)
	}

	createdAt, err := timestamp(item)
	if err != nil {
		return models.Mention{}, fmt.Errorf("item %s from %s: %w", ref, source, err)
	}

	text := strings.TrimSpace(item.Text)
	if text == "" {
		text = strings.TrimSpace(item.Title)
	}

	return models.Mention{
		UserID:       subject.UserID,
		Subject:      subject.Value,
		IsCompetitor: subject.IsCompetitor,
		Source:       source,
		Community:    item.Community,
		ExternalRef:  ref,
		Text:         text,
		Author:       item.Author,
		URL:          item.Permalink,
		Engagement:   item.Engagement,
		CreatedAt:    createdAt,
	}, nil
}

// externalRef picks the stable dedup key: the permalink when the
// platform has one, otherwise the platform-native id.
func externalRef(item sources.RawItem) string {
	if item.Permalink != "" {
		return item.Permalink
	}
	return item.Ref
}

// timestamp converts the platform's native representation (epoch
// seconds or RFC3339) to the canonical type. The original post time is
// kept, never the ingestion time.
func timestamp(item sources.RawItem) (time.Time, error) {
	if item.EpochSeconds > 0 {
		return time.Unix(int64(item.EpochSeconds), 0).UTC(), nil
	}
	if item.RFC3339Time != "" {
		t, err := time.Parse(time.RFC3339, item.RFC3339Time)
		if err != nil {
			return time.Time{}, fmt.Errorf("unparseable timestamp %q: %w", item.RFC3339Time, err)
		}
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("no timestamp on item")
}
