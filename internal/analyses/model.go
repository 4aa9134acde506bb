package analyses

import (
	"time"

	"feedback-backend/internal/ai"
)

// StageError records a non-fatal failure of one pipeline stage. The order
// of stage errors follows pipeline order.
type StageError struct {
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// Pipeline stage names as recorded in stage_errors.
const (
	StageLanguage  = "language_detection"
	StageSentiment = "sentiment"
	StageTopics    = "topics"
	StageEntities  = "entities"
	StageInsight   = "insight"
)

// Analysis is the persisted result of running the pipeline on one feedback.
// There is at most one analysis per feedback; re-analysis replaces it.
type Analysis struct {
	ID               string              `json:"id"`
	FeedbackID       string              `json:"feedback_id"`
	DetectedLanguage string              `json:"detected_language,omitempty"`
	Sentiment        *ai.SentimentResult `json:"sentiment,omitempty"`
	Topics           []ai.TopicScore     `json:"topics"`
	TopicsFixed      []ai.TopicScore     `json:"topics_fixed"`
	Entities         []ai.Entity         `json:"entities"`
	Keywords         []ai.Keyword        `json:"keywords"`
	Categories       []ai.Category       `json:"categories"`
	Summary          string              `json:"summary,omitempty"`
	Insight          *ai.Insight         `json:"insight,omitempty"`
	TieBreak         *ai.TieBreak        `json:"tie_break,omitempty"`
	StageErrors      []StageError        `json:"stage_errors"`
	ProcessingTimeMs int64               `json:"processing_time_ms"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}
