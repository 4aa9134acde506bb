package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"feedback-backend/internal/ai"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Upsert inserts the analysis or replaces the existing row for the same
// feedback. The UNIQUE constraint on feedback_id makes re-analysis an
// atomic replace.
func (r *PGRepo) Upsert(ctx context.Context, a Analysis) error {
	const query = `
INSERT INTO analyses (
    id,
    feedback_id,
    detected_language,
    sentiment_label,
    sentiment_score,
    sentiment_confidence,
    sentiment_model,
    topics,
    topics_fixed,
    entities,
    keywords,
    categories,
    summary,
    insight,
    tie_break,
    stage_errors,
    processing_time_ms,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
ON CONFLICT (feedback_id) DO UPDATE SET
    detected_language = EXCLUDED.detected_language,
    sentiment_label = EXCLUDED.sentiment_label,
    sentiment_score = EXCLUDED.sentiment_score,
    sentiment_confidence = EXCLUDED.sentiment_confidence,
    sentiment_model = EXCLUDED.sentiment_model,
    topics = EXCLUDED.topics,
    topics_fixed = EXCLUDED.topics_fixed,
    entities = EXCLUDED.entities,
    keywords = EXCLUDED.keywords,
    categories = EXCLUDED.categories,
    summary = EXCLUDED.summary,
    insight = EXCLUDED.insight,
    tie_break = EXCLUDED.tie_break,
    stage_errors = EXCLUDED.stage_errors,
    processing_time_ms = EXCLUDED.processing_time_ms,
    updated_at = EXCLUDED.updated_at`

	var detectedLang, summary sql.NullString
	if a.DetectedLanguage != "" {
		detectedLang = sql.NullString{String: a.DetectedLanguage, Valid: true}
	}
	if a.Summary != "" {
		summary = sql.NullString{String: a.Summary, Valid: true}
	}

	var sentLabel, sentModel sql.NullString
	var sentScore, sentConfidence sql.NullFloat64
	if a.Sentiment != nil {
		sentLabel = sql.NullString{String: string(a.Sentiment.Label), Valid: true}
		sentModel = sql.NullString{String: a.Sentiment.Model, Valid: true}
		sentScore = sql.NullFloat64{Float64: a.Sentiment.Score, Valid: true}
		sentConfidence = sql.NullFloat64{Float64: a.Sentiment.Confidence, Valid: true}
	}

	topics, err := marshalJSONBArray(a.Topics)
	if err != nil {
		return err
	}
	topicsFixed, err := marshalJSONBArray(a.TopicsFixed)
	if err != nil {
		return err
	}
	entities, err := marshalJSONBArray(a.Entities)
	if err != nil {
		return err
	}
	keywords, err := marshalJSONBArray(a.Keywords)
	if err != nil {
		return err
	}
	categories, err := marshalJSONBArray(a.Categories)
	if err != nil {
		return err
	}
	stageErrors, err := marshalJSONBArray(a.StageErrors)
	if err != nil {
		return err
	}
	insight, err := marshalNullable(a.Insight)
	if err != nil {
		return err
	}
	tieBreak, err := marshalNullable(a.TieBreak)
	if err != nil {
		return err
	}

	_, err = r.DB.ExecContext(
		ctx,
		query,
		a.ID,
		a.FeedbackID,
		detectedLang,
		sentLabel,
		sentScore,
		sentConfidence,
		sentModel,
		topics,
		topicsFixed,
		entities,
		keywords,
		categories,
		summary,
		insight,
		tieBreak,
		stageErrors,
		a.ProcessingTimeMs,
		a.CreatedAt,
		a.UpdatedAt,
	)
	return err
}

// GetByFeedbackID fetches the analysis for a feedback.
func (r *PGRepo) GetByFeedbackID(ctx context.Context, feedbackID string) (Analysis, error) {
	const query = `
SELECT id, feedback_id, detected_language, sentiment_label, sentiment_score, sentiment_confidence, sentiment_model,
       topics, topics_fixed, entities, keywords, categories, summary, insight, tie_break, stage_errors,
       processing_time_ms, created_at, updated_at
FROM analyses
WHERE feedback_id = $1
LIMIT 1`

	var a Analysis
	var detectedLang, summary, sentLabel, sentModel sql.NullString
	var sentScore, sentConfidence sql.NullFloat64
	var processingTime sql.NullInt64
	var topics, topicsFixed, entities, keywords, categories, insight, tieBreak, stageErrors []byte

	err := r.DB.QueryRowContext(ctx, query, feedbackID).Scan(
		&a.ID,
		&a.FeedbackID,
		&detectedLang,
		&sentLabel,
		&sentScore,
		&sentConfidence,
		&sentModel,
		&topics,
		&topicsFixed,
		&entities,
		&keywords,
		&categories,
		&summary,
		&insight,
		&tieBreak,
		&stageErrors,
		&processingTime,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, err
	}

	if detectedLang.Valid {
		a.DetectedLanguage = detectedLang.String
	}
	if summary.Valid {
		a.Summary = summary.String
	}
	if sentLabel.Valid {
		a.Sentiment = &ai.SentimentResult{
			Label:      ai.SentimentLabel(sentLabel.String),
			Score:      sentScore.Float64,
			Confidence: sentConfidence.Float64,
			Model:      sentModel.String,
		}
	}
	if processingTime.Valid {
		a.ProcessingTimeMs = processingTime.Int64
	}

	a.Topics = unmarshalSlice[ai.TopicScore](topics)
	a.TopicsFixed = unmarshalSlice[ai.TopicScore](topicsFixed)
	a.Entities = unmarshalSlice[ai.Entity](entities)
	a.Keywords = unmarshalSlice[ai.Keyword](keywords)
	a.Categories = unmarshalSlice[ai.Category](categories)
	a.StageErrors = unmarshalSlice[StageError](stageErrors)

	if len(insight) > 0 {
		var v ai.Insight
		if json.Unmarshal(insight, &v) == nil {
			a.Insight = &v
		}
	}
	if len(tieBreak) > 0 {
		var v ai.TieBreak
		if json.Unmarshal(tieBreak, &v) == nil {
			a.TieBreak = &v
		}
	}
	return a, nil
}

func marshalJSONBArray(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return []byte(`[]`), nil
	}
	return data, nil
}

func marshalNullable(v any) (any, error) {
	switch t := v.(type) {
	case *ai.Insight:
		if t == nil {
			return nil, nil
		}
	case *ai.TieBreak:
		if t == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

func unmarshalSlice[T any](data []byte) []T {
	out := []T{}
	if len(data) > 0 {
		_ = json.Unmarshal(data, &out)
	}
	return out
}

var _ Repo = (*PGRepo)(nil)
