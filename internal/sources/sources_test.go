package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurashield/mentions-bot/internal/credentials"
	"github.com/aurashield/mentions-bot/internal/models"
	"github.com/aurashield/mentions-bot/internal/transport"
)

// staticGrant hands out a fixed token without hitting any endpoint.
type staticGrant struct{ token string }

func (g staticGrant) Acquire(ctx context.Context, client *transport.Client) (credentials.Token, error) {
	return credentials.Token{Value: g.token, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func testCreds(platforms ...string) *credentials.Manager {
	grants := make(map[string]credentials.Grant)
	for _, p := range platforms {
		grants[p] = staticGrant{token: "test-token"}
	}
	return credentials.NewManager(nil, grants)
}

func testClient() *transport.Client {
	return transport.NewClient(5*time.Second, 0, time.Millisecond)
}

func TestForumConnector_FetchMentions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/r/technology/search.json", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "1", r.URL.Query().Get("restrict_sr"))
		assert.Equal(t, "new", r.URL.Query().Get("sort"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"after": "t3_next",
				"children": []map[string]interface{}{
					{"data": map[string]interface{}{
						"id":           "abc123",
						"title":        "Acme outage",
						"selftext":     "Everything is down",
						"author":       "user1",
						"subreddit":    "technology",
						"permalink":    "/r/technology/comments/abc123/",
						"created_utc":  1700000000.0,
						"score":        40,
						"num_comments": 12,
					}},
				},
			},
		})
	}))
	defer server.Close()

	connector := NewForumConnector(testClient(), testCreds("forum"), server.URL, []string{"technology"}, true)
	result, err := connector.FetchMentions(context.Background(), models.Subject{
		Type:  models.SubjectKeyword,
		Value: "Acme",
	}, "")

	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	item := result.Items[0]
	assert.Equal(t, "abc123", item.Ref)
	assert.Equal(t, "https://reddit.com/r/technology/comments/abc123/", item.Permalink)
	assert.Equal(t, "technology", item.Community)
	assert.Equal(t, 52, item.Engagement)
	assert.Equal(t, float64(1700000000), item.EpochSeconds)
	assert.Equal(t, "technology:t3_next", result.NextCursor)
}

func TestForumConnector_CursorResumesItsOwnCommunity(t *testing.T) {
	var requests []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.Path+"|"+r.URL.Query().Get("after"))

		after := ""
		if r.URL.Path == "/r/technology/search.json" && r.URL.Query().Get("after") == "" {
			after = "t3_tech2"
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"after": after,
				"children": []map[string]interface{}{
					{"data": map[string]interface{}{
						"id": "p-" + r.URL.Path, "title": "Acme", "permalink": "/p/x",
						"created_utc": 1700000000.0,
					}},
				},
			},
		})
	}))
	defer server.Close()

	connector := NewForumConnector(testClient(), testCreds("forum"), server.URL,
		[]string{"technology", "smallbusiness"}, true)
	subject := models.Subject{Type: models.SubjectKeyword, Value: "Acme"}

	first, err := connector.FetchMentions(context.Background(), subject, "")
	require.NoError(t, err)
	assert.Equal(t, "technology:t3_tech2", first.NextCursor)
	assert.Equal(t, []string{
		"/r/technology/search.json|",
		"/r/smallbusiness/search.json|",
	}, requests)

	// The continuation token goes back to the community that issued it,
	// never to its siblings.
	requests = nil
	second, err := connector.FetchMentions(context.Background(), subject, first.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, []string{"/r/technology/search.json|t3_tech2"}, requests)
	assert.Empty(t, second.NextCursor)
}

func TestForumConnector_VariantsStopAtFirstHit(t *testing.T) {
	var queries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		queries = append(queries, q)

		children := []map[string]interface{}{}
		if q == `"Acme"` {
			// Only the suffix-stripped variant matches anything.
			children = append(children, map[string]interface{}{
				"data": map[string]interface{}{
					"id": "hit1", "title": "Acme", "permalink": "/p/hit1",
					"created_utc": 1700000000.0,
				},
			})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"after": "", "children": children},
		})
	}))
	defer server.Close()

	connector := NewForumConnector(testClient(), testCreds("forum"), server.URL, []string{"all"}, true)
	result, err := connector.FetchMentions(context.Background(), models.Subject{
		Type:  models.SubjectKeyword,
		Value: "Acme Inc",
	}, "")

	require.NoError(t, err)
	assert.Len(t, result.Items, 1)
	// The exact phrase came first, the stripped variant hit, the
	// hyphenated relaxation never ran.
	assert.Equal(t, []string{`"Acme Inc"`, `"Acme"`}, queries)
}

func TestForumConnector_CursorSkipsRelaxations(t *testing.T) {
	var queries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query().Get("q"))
		assert.Equal(t, "t3_page2", r.URL.Query().Get("after"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"after": "", "children": []map[string]interface{}{}},
		})
	}))
	defer server.Close()

	connector := NewForumConnector(testClient(), testCreds("forum"), server.URL, []string{"all"}, true)
	_, err := connector.FetchMentions(context.Background(), models.Subject{
		Type:  models.SubjectKeyword,
		Value: "Acme Inc",
	}, "all:t3_page2")

	require.NoError(t, err)
	// A continuation cursor belongs to the first variant only.
	assert.Equal(t, []string{`"Acme Inc"`}, queries)
}

func TestMicroblogConnector_FetchMentions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2/tweets/search/recent", r.URL.Path)
		assert.Equal(t, "50", r.URL.Query().Get("max_results"))
		assert.NotEmpty(t, r.URL.Query().Get("start_time"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{
					"id":         "111",
					"text":       "Acme support is terrible",
					"author_id":  "u9",
					"created_at": "2026-08-01T10:00:00Z",
					"public_metrics": map[string]int{
						"retweet_count": 3, "like_count": 10, "reply_count": 2,
					},
				},
			},
			"meta": map[string]interface{}{"result_count": 1, "next_token": "tok2"},
		})
	}))
	defer server.Close()

	connector := NewMicroblogConnector(testClient(), testCreds("microblog"), server.URL, 24*time.Hour, true)
	result, err := connector.FetchMentions(context.Background(), models.Subject{
		Type:  models.SubjectHandle,
		Value: "acme",
	}, "")

	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "111", result.Items[0].Ref)
	assert.Equal(t, "https://twitter.com/i/status/111", result.Items[0].Permalink)
	assert.Equal(t, 15, result.Items[0].Engagement)
	assert.Equal(t, "2026-08-01T10:00:00Z", result.Items[0].RFC3339Time)
	assert.Equal(t, "tok2", result.NextCursor)
}

func TestMicroblogConnector_RateLimitSurfacesTyped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	connector := NewMicroblogConnector(testClient(), testCreds("microblog"), server.URL, 24*time.Hour, true)
	_, err := connector.FetchMentions(context.Background(), models.Subject{
		Type:  models.SubjectHandle,
		Value: "acme",
	}, "")

	var rateErr *transport.RateLimitedError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, 30*time.Second, rateErr.RetryAfter)
}

func TestPlaceReviewConnector_FetchMentions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/place/details/json", r.URL.Path)
		assert.Equal(t, "place-42", r.URL.Query().Get("place_id"))
		assert.Equal(t, "secret-key", r.URL.Query().Get("key"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "OK",
			"result": map[string]interface{}{
				"reviews": []map[string]interface{}{
					{"author_name": "Jo", "rating": 1, "text": "Horrible service", "time": 1700000000},
				},
			},
		})
	}))
	defer server.Close()

	connector := NewPlaceReviewConnector(testClient(), server.URL, "secret-key", true)
	result, err := connector.FetchMentions(context.Background(), models.Subject{
		Type:  models.SubjectPlace,
		Value: "place-42",
	}, "")

	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "place-42:Jo:1700000000", result.Items[0].Ref)
	assert.Equal(t, 1, result.Items[0].Engagement)
}

func TestPlaceReviewConnector_SkipsNonPlaceSubjects(t *testing.T) {
	connector := NewPlaceReviewConnector(testClient(), "http://unused", "key", true)
	result, err := connector.FetchMentions(context.Background(), models.Subject{
		Type:  models.SubjectKeyword,
		Value: "Acme",
	}, "")

	require.NoError(t, err)
	assert.Empty(t, result.Items)
}

func TestPlaceReviewConnector_InBandQuotaIsRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "OVER_QUERY_LIMIT"})
	}))
	defer server.Close()

	connector := NewPlaceReviewConnector(testClient(), server.URL, "key", true)
	_, err := connector.FetchMentions(context.Background(), models.Subject{
		Type:  models.SubjectPlace,
		Value: "place-42",
	}, "")

	var rateErr *transport.RateLimitedError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, string(models.SourcePlaceReview), rateErr.Platform)
}
