package analyses

import "context"

// Repo abstracts analysis persistence.
type Repo interface {
	// Upsert replaces the analysis for its feedback atomically. The row is
	// keyed by feedback_id; a re-analysis overwrites the previous result.
	Upsert(ctx context.Context, a Analysis) error
	GetByFeedbackID(ctx context.Context, feedbackID string) (Analysis, error)
}
