package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/aurashield/mentions-bot/internal/credentials"
	"github.com/aurashield/mentions-bot/internal/models"
	"github.com/aurashield/mentions-bot/internal/transport"
)

const defaultForumAPIBase = "https://oauth.reddit.com"

// ForumConnector searches forum-style communities for posts mentioning
// a subject. Searches are restricted to the configured communities so
// relevance filtering stays with the platform that needs it.
type ForumConnector struct {
	client      *transport.Client
	creds       *credentials.Manager
	apiBase     string
	communities []string
	enabled     bool
	pageSize    int
}

type forumSearchResponse struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Data forumPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type forumPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	Permalink   string  `json:"permalink"`
	Created     float64 `json:"created_utc"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
}

// NewForumConnector creates a forum connector. It is disabled (and
// skipped by the orchestrator) when no credentials were configured.
func NewForumConnector(client *transport.Client, creds *credentials.Manager, apiBase string, communities []string, enabled bool) *ForumConnector {
	if apiBase == "" {
		apiBase = defaultForumAPIBase
	}
	return &ForumConnector{
		client:      client,
		creds:       creds,
		apiBase:     apiBase,
		communities: communities,
		enabled:     enabled,
		pageSize:    100,
	}
}

func (f *ForumConnector) Name() models.Source { return models.SourceForum }

func (f *ForumConnector) Enabled() bool { return f.enabled }

func (f *ForumConnector) FetchMentions(ctx context.Context, subject models.Subject, cursor string) (*FetchResult, error) {
	var result *FetchResult

	// Try each query variant in order; the first non-empty result set
	// wins. A continuation cursor belongs to the first variant, so
	// paged calls skip the relaxations.
	variants := queryVariants(subject)
	if cursor != "" && len(variants) > 1 {
		variants = variants[:1]
	}

	for _, query := range variants {
		page, err := f.search(ctx, query, cursor)
		if err != nil {
			return nil, err
		}
		result = page
		if len(page.Items) > 0 {
			break
		}
		logrus.Debugf("Forum query variant %q returned nothing for subject %q", query, subject.Value)
	}

	return result, nil
}

// forumCursor encodes which community a continuation token belongs to,
// so a paged call resumes in the community that produced it instead of
// replaying one community's token against all of them.
func forumCursor(community, after string) string {
	return community + ":" + after
}

func splitForumCursor(cursor string) (community, after string) {
	if i := strings.IndexByte(cursor, ':'); i >= 0 {
		return cursor[:i], cursor[i+1:]
	}
	return "", cursor
}

func (f *ForumConnector) search(ctx context.Context, query, cursor string) (*FetchResult, error) {
	communities := f.communities
	after := ""
	if cursor != "" {
		community, token := splitForumCursor(cursor)
		if community != "" {
			communities = []string{community}
		}
		after = token
	}

	result := &FetchResult{}

	for _, community := range communities {
		err := f.creds.Do(ctx, string(models.SourceForum), func(token string) error {
			params := map[string]string{
				"q":           query,
				"restrict_sr": "1",
				"sort":        "new",
				"limit":       fmt.Sprintf("%d", f.pageSize),
			}
			if after != "" {
				params["after"] = after
			}

			resp, err := f.client.Execute(ctx, &transport.Request{
				Method:     "GET",
				URL:        fmt.Sprintf("%s/r/%s/search.json", f.apiBase, community),
				Platform:   string(models.SourceForum),
				Header:     map[string]string{"Authorization": "Bearer " + token},
				QueryParam: params,
				Idempotent: true,
			})
			if err != nil {
				return err
			}

			var searchResp forumSearchResponse
			if err := json.Unmarshal(resp.Body(), &searchResp); err != nil {
				return fmt.Errorf("failed to parse forum response: %w", err)
			}

			for _, child := range searchResp.Data.Children {
				post := child.Data
				result.Items = append(result.Items, RawItem{
					Ref:          post.ID,
					Permalink:    "https://reddit.com" + post.Permalink,
					Title:        post.Title,
					Text:         strings.TrimSpace(post.Title + "\n\n" + post.Selftext),
					Author:       post.Author,
					Community:    post.Subreddit,
					EpochSeconds: post.Created,
					Engagement:   post.Score + post.NumComments,
				})
			}
			if result.NextCursor == "" && searchResp.Data.After != "" {
				result.NextCursor = forumCursor(community, searchResp.Data.After)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("forum search in %s failed: %w", community, err)
		}
	}

	return result, nil
}
