package sentiment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tmc/langchaingo/llms"

	"github.com/aurashield/mentions-bot/internal/models"
)

// fakeLLM returns a canned completion or error.
type fakeLLM struct {
	completion string
	err        error
	calls      int
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	f.calls++
	return f.completion, f.err
}

func (f *fakeLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	return nil, errors.New("not used")
}

func TestClassify_UsesModelLabel(t *testing.T) {
	tests := []struct {
		name       string
		completion string
		expected   models.Sentiment
	}{
		{"Plain label", "negative", models.SentimentNegative},
		{"Label with whitespace", " positive\n", models.SentimentPositive},
		{"Uppercase label", "NEUTRAL", models.SentimentNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &fakeLLM{completion: tt.completion}
			classifier := NewClassifier(llm, time.Second)

			got := classifier.Classify(context.Background(), "whatever")
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, 1, llm.calls)
		})
	}
}

func TestClassify_ServiceErrorFallsBackToKeywords(t *testing.T) {
	llm := &fakeLLM{err: errors.New("service unavailable")}
	classifier := NewClassifier(llm, time.Second)

	got := classifier.Classify(context.Background(), "this product is terrible and broken")
	assert.Equal(t, models.SentimentNegative, got)
}

func TestClassify_IllegalLabelFallsBackToKeywords(t *testing.T) {
	llm := &fakeLLM{completion: "somewhat negative, leaning neutral"}
	classifier := NewClassifier(llm, time.Second)

	got := classifier.Classify(context.Background(), "what a great and helpful tool")
	assert.Equal(t, models.SentimentPositive, got)
}

func TestClassify_NilModelUsesKeywordsOnly(t *testing.T) {
	classifier := NewClassifier(nil, time.Second)

	got := classifier.Classify(context.Background(), "love it, best purchase ever")
	assert.Equal(t, models.SentimentPositive, got)
}

func TestKeywordSentiment(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected models.Sentiment
	}{
		{"Positive words win", "great product, awesome support", models.SentimentPositive},
		{"Negative words win", "terrible, worst experience, totally broken", models.SentimentNegative},
		{"No signal words", "the delivery arrived on Tuesday", models.SentimentNeutral},
		{"Tie is neutral", "good idea but poor execution", models.SentimentNeutral},
		{"Case insensitive", "HORRIBLE service", models.SentimentNegative},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, KeywordSentiment(tt.text))
		})
	}
}
