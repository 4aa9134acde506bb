package ai

import "context"

// SentimentLabel is the closed sentiment vocabulary.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNegative SentimentLabel = "negative"
	SentimentNeutral  SentimentLabel = "neutral"
)

// Urgency is the derived severity tier used by automation rules.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// SentimentResult is one classifier verdict for a piece of text.
type SentimentResult struct {
	Label      SentimentLabel `json:"label"`
	Score      float64        `json:"score"`
	Confidence float64        `json:"confidence"`
	Model      string         `json:"model"`
}

// TopicScore is one label from multi-label topic classification.
type TopicScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Entity is a named entity found in the text.
type Entity struct {
	Text       string         `json:"text"`
	Type       string         `json:"type"`
	Confidence float64        `json:"confidence"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Keyword is a salient term with its relevance.
type Keyword struct {
	Text      string  `json:"text"`
	Relevance float64 `json:"relevance"`
}

// Category is a high-level content category.
type Category struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// EntityResult bundles the NLU outputs for one text.
type EntityResult struct {
	Entities   []Entity   `json:"entities"`
	Keywords   []Keyword  `json:"keywords"`
	Categories []Category `json:"categories"`
}

// TieBreak is a secondary sentiment judgment requested when the primary
// classifier's confidence is below threshold. It never replaces the
// original label; both are retained for audit.
type TieBreak struct {
	Label     SentimentLabel `json:"label"`
	Reasoning string         `json:"reasoning"`
}

// InsightRequest carries the feedback text plus all prior stage outputs.
type InsightRequest struct {
	Text      string
	Language  string
	Sentiment SentimentResult
	Topics    []TopicScore
	Entities  []Entity
	// NeedTieBreak asks the synthesizer to re-assess the sentiment label.
	NeedTieBreak bool
}

// Insight is the synthesized assessment of one feedback.
type Insight struct {
	Urgency              Urgency `json:"urgency"`
	ActionRecommendation string  `json:"action_recommendation"`
	Confidence           float64 `json:"confidence"`
	Reasoning            string  `json:"reasoning,omitempty"`
}

// InsightResult is the full synthesizer output.
type InsightResult struct {
	Summary     string       `json:"summary"`
	TopicsFixed []TopicScore `json:"topics_fixed"`
	TieBreak    *TieBreak    `json:"tie_break,omitempty"`
	Insight     Insight      `json:"insight"`
	Raw         string       `json:"-"`
}

// SentimentClassifier classifies the sentiment of a text with one model.
type SentimentClassifier interface {
	ClassifySentiment(ctx context.Context, text string) (SentimentResult, error)
}

// TopicClassifier performs zero-shot multi-label classification against a
// candidate label set.
type TopicClassifier interface {
	ClassifyTopics(ctx context.Context, text string, candidates []string) ([]TopicScore, error)
}

// EntityExtractor returns entities, keywords, and categories for a text.
type EntityExtractor interface {
	ExtractEntities(ctx context.Context, text, language string) (EntityResult, error)
}

// InsightSynthesizer aggregates prior stage outputs into a summarized insight.
type InsightSynthesizer interface {
	SynthesizeInsight(ctx context.Context, req InsightRequest) (InsightResult, error)
}
