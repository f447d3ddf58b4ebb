package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/aurashield/mentions-bot/internal/credentials"
	"github.com/aurashield/mentions-bot/internal/models"
	"github.com/aurashield/mentions-bot/internal/transport"
)

const defaultVideoAPIBase = "https://www.googleapis.com/youtube/v3"

// VideoConnector lists comments on a channel's recent videos. Subjects
// of type "channel" name the channel id; other subject types fall back
// to a keyword video search.
type VideoConnector struct {
	client     *transport.Client
	creds      *credentials.Manager
	apiBase    string
	apiKey     string
	enabled    bool
	maxVideos  int
	maxResults int
}

type videoSearchResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

type videoCommentsResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		ID      string `json:"id"`
		Snippet struct {
			VideoID         string `json:"videoId"`
			TopLevelComment struct {
				Snippet struct {
					TextDisplay       string `json:"textDisplay"`
					AuthorDisplayName string `json:"authorDisplayName"`
					PublishedAt       string `json:"publishedAt"`
					LikeCount         int    `json:"likeCount"`
				} `json:"snippet"`
			} `json:"topLevelComment"`
		} `json:"snippet"`
	} `json:"items"`
}

// NewVideoConnector creates a video-comment connector.
func NewVideoConnector(client *transport.Client, creds *credentials.Manager, apiBase, apiKey string, enabled bool) *VideoConnector {
	if apiBase == "" {
		apiBase = defaultVideoAPIBase
	}
	return &VideoConnector{
		client:     client,
		creds:      creds,
		apiBase:    apiBase,
		apiKey:     apiKey,
		enabled:    enabled,
		maxVideos:  10,
		maxResults: 100,
	}
}

func (v *VideoConnector) Name() models.Source { return models.SourceVideo }

func (v *VideoConnector) Enabled() bool { return v.enabled }

// FetchMentions lists recent videos for the subject, then the comments
// on each. The cursor pages the video listing; comment pages inside one
// call are bounded by maxVideos * maxResults.
func (v *VideoConnector) FetchMentions(ctx context.Context, subject models.Subject, cursor string) (*FetchResult, error) {
	videoIDs, nextCursor, err := v.listVideos(ctx, subject, cursor)
	if err != nil {
		return nil, err
	}

	result := &FetchResult{NextCursor: nextCursor}
	for _, videoID := range videoIDs {
		items, err := v.listComments(ctx, videoID)
		if err != nil {
			// Comments disabled on one video should not sink the rest.
			var authErr *transport.AuthError
			if errors.As(err, &authErr) && authErr.StatusCode == 403 {
				logrus.Debugf("Comments unavailable for video %s, skipping", videoID)
				continue
			}
			return nil, err
		}
		result.Items = append(result.Items, items...)
	}

	return result, nil
}

func (v *VideoConnector) listVideos(ctx context.Context, subject models.Subject, cursor string) ([]string, string, error) {
	params := map[string]string{
		"part":       "snippet",
		"type":       "video",
		"order":      "date",
		"maxResults": fmt.Sprintf("%d", v.maxVideos),
		"key":        v.apiKey,
	}
	if subject.Type == models.SubjectChannel {
		params["channelId"] = subject.Value
	} else {
		params["q"] = subject.Value
	}
	if cursor != "" {
		params["pageToken"] = cursor
	}

	var videoIDs []string
	var nextPage string
	err := v.creds.Do(ctx, string(models.SourceVideo), func(token string) error {
		resp, err := v.client.Execute(ctx, &transport.Request{
			Method:     "GET",
			URL:        v.apiBase + "/search",
			Platform:   string(models.SourceVideo),
			Header:     map[string]string{"Authorization": "Bearer " + token},
			QueryParam: params,
			Idempotent: true,
		})
		if err != nil {
			return err
		}

		var searchResp videoSearchResponse
		if err := json.Unmarshal(resp.Body(), &searchResp); err != nil {
			return fmt.Errorf("failed to parse video search response: %w", err)
		}

		videoIDs = videoIDs[:0]
		for _, item := range searchResp.Items {
			if item.ID.VideoID != "" {
				videoIDs = append(videoIDs, item.ID.VideoID)
			}
		}
		nextPage = searchResp.NextPageToken
		return nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("video listing failed: %w", err)
	}

	return videoIDs, nextPage, nil
}

func (v *VideoConnector) listComments(ctx context.Context, videoID string) ([]RawItem, error) {
	var items []RawItem
	err := v.creds.Do(ctx, string(models.SourceVideo), func(token string) error {
		resp, err := v.client.Execute(ctx, &transport.Request{
			Method:   "GET",
			URL:      v.apiBase + "/commentThreads",
			Platform: string(models.SourceVideo),
			Header:   map[string]string{"Authorization": "Bearer " + token},
			QueryParam: map[string]string{
				"part":       "snippet",
				"videoId":    videoID,
				"maxResults": fmt.Sprintf("%d", v.maxResults),
				"key":        v.apiKey,
			},
			Idempotent: true,
		})
		if err != nil {
			return err
		}

		var commentsResp videoCommentsResponse
		if err := json.Unmarshal(resp.Body(), &commentsResp); err != nil {
			return fmt.Errorf("failed to parse comments response: %w", err)
		}

		for _, comment := range commentsResp.Items {
			snippet := comment.Snippet.TopLevelComment.Snippet
			items = append(items, RawItem{
				Ref:         comment.ID,
				Permalink:   fmt.Sprintf("https://youtube.com/watch?v=%s&lc=%s", videoID, comment.ID),
				Text:        snippet.TextDisplay,
				Author:      snippet.AuthorDisplayName,
				RFC3339Time: snippet.PublishedAt,
				Engagement:  snippet.LikeCount,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("comment listing for video %s failed: %w", videoID, err)
	}

	return items, nil
}
