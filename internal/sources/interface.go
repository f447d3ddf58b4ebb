package sources

import (
	"context"

	"github.com/aurashield/mentions-bot/internal/models"
)

// RawItem is one platform-native item before normalization. Connectors
// fill the fields their platform provides and leave the rest zero; the
// normalizer owns defaulting and validation.
type RawItem struct {
	Ref          string  // platform-native id
	Permalink    string  // canonical link, preferred dedup key
	Title        string
	Text         string
	Author       string
	Community    string  // forum sub-community, empty elsewhere
	EpochSeconds float64 // platforms reporting unix timestamps
	RFC3339Time  string  // platforms reporting ISO timestamps
	Engagement   int     // upvotes, likes, etc.
}

// FetchResult is one page of items plus the cursor for the next page,
// empty when the platform has no more.
type FetchResult struct {
	Items      []RawItem
	NextCursor string
}

// Connector is the uniform mention-fetch capability every platform
// implements. Query construction, auth and paging are the connector's
// business; callers see only subjects and cursors.
type Connector interface {
	Name() models.Source
	Enabled() bool
	FetchMentions(ctx context.Context, subject models.Subject, cursor string) (*FetchResult, error)
}
