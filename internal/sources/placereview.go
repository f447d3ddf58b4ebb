package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aurashield/mentions-bot/internal/models"
	"github.com/aurashield/mentions-bot/internal/transport"
)

const defaultPlacesAPIBase = "https://maps.googleapis.com/maps/api"

// PlaceReviewConnector fetches reviews for a tracked place. The place
// details API is key-authenticated and unpaged; subjects of type
// "place" carry the platform's place id as their value.
type PlaceReviewConnector struct {
	client  *transport.Client
	apiBase string
	apiKey  string
	enabled bool
}

type placeDetailsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Result       struct {
		Reviews []struct {
			AuthorName string `json:"author_name"`
			Rating     int    `json:"rating"`
			Text       string `json:"text"`
			Time       int64  `json:"time"`
		} `json:"reviews"`
	} `json:"result"`
}

// NewPlaceReviewConnector creates a place-review connector.
func NewPlaceReviewConnector(client *transport.Client, apiBase, apiKey string, enabled bool) *PlaceReviewConnector {
	if apiBase == "" {
		apiBase = defaultPlacesAPIBase
	}
	return &PlaceReviewConnector{
		client:  client,
		apiBase: apiBase,
		apiKey:  apiKey,
		enabled: enabled,
	}
}

func (p *PlaceReviewConnector) Name() models.Source { return models.SourcePlaceReview }

func (p *PlaceReviewConnector) Enabled() bool { return p.enabled }

func (p *PlaceReviewConnector) FetchMentions(ctx context.Context, subject models.Subject, cursor string) (*FetchResult, error) {
	if subject.Type != models.SubjectPlace {
		return &FetchResult{}, nil
	}

	resp, err := p.client.Execute(ctx, &transport.Request{
		Method:   "GET",
		URL:      p.apiBase + "/place/details/json",
		Platform: string(models.SourcePlaceReview),
		QueryParam: map[string]string{
			"place_id": subject.Value,
			"fields":   "reviews",
			"key":      p.apiKey,
		},
		Idempotent: true,
	})
	if err != nil {
		return nil, fmt.Errorf("place details fetch failed: %w", err)
	}

	var details placeDetailsResponse
	if err := json.Unmarshal(resp.Body(), &details); err != nil {
		return nil, fmt.Errorf("failed to parse place details response: %w", err)
	}

	switch details.Status {
	case "OK", "ZERO_RESULTS":
	case "OVER_QUERY_LIMIT":
		// The places API signals rate limits in-band rather than via 429.
		return nil, &transport.RateLimitedError{
			Platform:   string(models.SourcePlaceReview),
			RetryAfter: time.Minute,
		}
	default:
		return nil, fmt.Errorf("place details returned status %s: %s", details.Status, details.ErrorMessage)
	}

	result := &FetchResult{}
	for _, review := range details.Result.Reviews {
		result.Items = append(result.Items, RawItem{
			// Reviews have no platform id; author+time is stable enough
			// for dedup and survives review edits.
			Ref:          fmt.Sprintf("%s:%s:%d", subject.Value, review.AuthorName, review.Time),
			Text:         review.Text,
			Author:       review.AuthorName,
			EpochSeconds: float64(review.Time),
			Engagement:   review.Rating,
		})
	}

	return result, nil
}
