// Package sentiment assigns one of three labels to free text. The
// primary path asks an LLM with a constrained prompt; when the service
// is unavailable, times out, or answers outside the permitted label
// set, a deterministic keyword heuristic takes over. The fallback is
// documented behavior, not an accident of exception handling: it runs
// whenever the service cannot produce a legal label, and classification
// never surfaces an error to the caller.
package sentiment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"

	"github.com/aurashield/mentions-bot/internal/models"
)

var positiveWords = []string{
	"great", "good", "excellent", "amazing", "love", "best",
	"fantastic", "wonderful", "awesome", "helpful",
}

var negativeWords = []string{
	"bad", "poor", "terrible", "awful", "horrible", "worst",
	"disappointed", "disappointing", "broken", "hate",
}

const classifyPrompt = `Classify the sentiment of the following text.
Answer with exactly one word: positive, neutral, or negative.

Text: %s`

// Classifier assigns sentiment labels. A nil LLM disables the primary
// path and every call uses the keyword heuristic.
type Classifier struct {
	llm     llms.LLM
	timeout time.Duration
}

// NewClassifier creates a classifier over the given language model.
func NewClassifier(llm llms.LLM, timeout time.Duration) *Classifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Classifier{llm: llm, timeout: timeout}
}

// Classify returns one of the three labels. It never fails: any
// problem on the primary path falls through to the local heuristic.
func (c *Classifier) Classify(ctx context.Context, text string) models.Sentiment {
	if c.llm != nil {
		if label, ok := c.classifyRemote(ctx, text); ok {
			return label
		}
	}
	return KeywordSentiment(text)
}

func (c *Classifier) classifyRemote(ctx context.Context, text string) (models.Sentiment, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	completion, err := c.llm.Call(ctx, fmt.Sprintf(classifyPrompt, text),
		llms.WithTemperature(0),
		llms.WithMaxTokens(4),
	)
	if err != nil {
		logrus.Warnf("Sentiment service unavailable, using keyword fallback: %v", err)
		return "", false
	}

	switch label := models.Sentiment(strings.ToLower(strings.TrimSpace(completion))); label {
	case models.SentimentPositive, models.SentimentNeutral, models.SentimentNegative:
		return label, true
	default:
		logrus.Warnf("Sentiment service returned illegal label %q, using keyword fallback", completion)
		return "", false
	}
}

// KeywordSentiment is the deterministic local heuristic: count fixed
// positive and negative word occurrences (case-insensitive substring
// match) and pick the larger side, neutral on a tie.
func KeywordSentiment(text string) models.Sentiment {
	lower := strings.ToLower(text)

	positive := 0
	for _, word := range positiveWords {
		if strings.Contains(lower, word) {
			positive++
		}
	}

	negative := 0
	for _, word := range negativeWords {
		if strings.Contains(lower, word) {
			negative++
		}
	}

	switch {
	case positive > negative:
		return models.SentimentPositive
	case negative > positive:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}
