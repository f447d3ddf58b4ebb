package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aurashield/mentions-bot/internal/credentials"
	"github.com/aurashield/mentions-bot/internal/models"
	"github.com/aurashield/mentions-bot/internal/transport"
)

const defaultMicroblogAPIBase = "https://api.twitter.com"

// MicroblogConnector searches a microblog's recent-post index for
// mentions of a subject, paging via the platform's native next_token.
type MicroblogConnector struct {
	client  *transport.Client
	creds   *credentials.Manager
	apiBase string
	enabled bool
	window  time.Duration
}

type microblogSearchResponse struct {
	Data []struct {
		ID            string `json:"id"`
		Text          string `json:"text"`
		AuthorID      string `json:"author_id"`
		CreatedAt     string `json:"created_at"`
		PublicMetrics struct {
			RetweetCount int `json:"retweet_count"`
			LikeCount    int `json:"like_count"`
			ReplyCount   int `json:"reply_count"`
		} `json:"public_metrics"`
	} `json:"data"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}

// NewMicroblogConnector creates a microblog connector. window bounds
// how far back each search reaches.
func NewMicroblogConnector(client *transport.Client, creds *credentials.Manager, apiBase string, window time.Duration, enabled bool) *MicroblogConnector {
	if apiBase == "" {
		apiBase = defaultMicroblogAPIBase
	}
	return &MicroblogConnector{
		client:  client,
		creds:   creds,
		apiBase: apiBase,
		enabled: enabled,
		window:  window,
	}
}

func (m *MicroblogConnector) Name() models.Source { return models.SourceMicroblog }

func (m *MicroblogConnector) Enabled() bool { return m.enabled }

func (m *MicroblogConnector) FetchMentions(ctx context.Context, subject models.Subject, cursor string) (*FetchResult, error) {
	variants := queryVariants(subject)
	if cursor != "" && len(variants) > 1 {
		variants = variants[:1]
	}

	var result *FetchResult
	for _, query := range variants {
		page, err := m.search(ctx, query, cursor)
		if err != nil {
			return nil, err
		}
		result = page
		if len(page.Items) > 0 {
			break
		}
		logrus.Debugf("Microblog query variant %q returned nothing for subject %q", query, subject.Value)
	}

	return result, nil
}

func (m *MicroblogConnector) search(ctx context.Context, query, cursor string) (*FetchResult, error) {
	result := &FetchResult{}

	err := m.creds.Do(ctx, string(models.SourceMicroblog), func(token string) error {
		params := map[string]string{
			"query":        query,
			"max_results":  "50",
			"start_time":   time.Now().Add(-m.window).UTC().Format(time.RFC3339),
			"tweet.fields": "created_at,author_id,public_metrics",
		}
		if cursor != "" {
			params["next_token"] = cursor
		}

		resp, err := m.client.Execute(ctx, &transport.Request{
			Method:     "GET",
			URL:        m.apiBase + "/2/tweets/search/recent",
			Platform:   string(models.SourceMicroblog),
			Header:     map[string]string{"Authorization": "Bearer " + token},
			QueryParam: params,
			Idempotent: true,
		})
		if err != nil {
			return err
		}

		var searchResp microblogSearchResponse
		if err := json.Unmarshal(resp.Body(), &searchResp); err != nil {
			return fmt.Errorf("failed to parse microblog response: %w", err)
		}

		for _, post := range searchResp.Data {
			result.Items = append(result.Items, RawItem{
				Ref:         post.ID,
				Permalink:   fmt.Sprintf("https://twitter.com/i/status/%s", post.ID),
				Text:        post.Text,
				Author:      post.AuthorID,
				RFC3339Time: post.CreatedAt,
				Engagement:  post.PublicMetrics.LikeCount + post.PublicMetrics.ReplyCount + post.PublicMetrics.RetweetCount,
			})
		}
		result.NextCursor = searchResp.Meta.NextToken
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("microblog search failed: %w", err)
	}

	return result, nil
}
