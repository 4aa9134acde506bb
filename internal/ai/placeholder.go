package ai

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by placeholder clients when a provider's
// credentials are missing.
var ErrNotConfigured = errors.New("ai provider not configured")

// Placeholder stands in for every provider until credentials are set.
// All calls fail with ErrNotConfigured.
type Placeholder struct{}

func (Placeholder) ClassifySentiment(ctx context.Context, text string) (SentimentResult, error) {
	return SentimentResult{}, ErrNotConfigured
}

func (Placeholder) ClassifyTopics(ctx context.Context, text string, candidates []string) ([]TopicScore, error) {
	return nil, ErrNotConfigured
}

func (Placeholder) ExtractEntities(ctx context.Context, text, language string) (EntityResult, error) {
	return EntityResult{}, ErrNotConfigured
}

func (Placeholder) SynthesizeInsight(ctx context.Context, req InsightRequest) (InsightResult, error) {
	return InsightResult{}, ErrNotConfigured
}

var (
	_ SentimentClassifier = Placeholder{}
	_ TopicClassifier     = Placeholder{}
	_ EntityExtractor     = Placeholder{}
	_ InsightSynthesizer  = Placeholder{}
)
