package analyses

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"feedback-backend/internal/ai"
	"feedback-backend/internal/feedbacks"
	"feedback-backend/internal/shared/metrics"
	"feedback-backend/internal/shared/telemetry"
)

// batchConcurrency bounds how many feedbacks a batch request analyzes at
// once, matching the rate the inference providers tolerate.
const defaultBatchConcurrency = 5

// LanguageDetector detects the language of a text.
type LanguageDetector interface {
	Detect(text string) (code string, confidence float64)
}

// JobDispatcher enqueues automation jobs for a completed analysis. It is
// implemented by the orchestrate service; a nil dispatcher disables
// automation.
type JobDispatcher interface {
	DispatchJobs(ctx context.Context, a Analysis) error
}

// Service runs the analysis pipeline: language detection, sentiment,
// zero-shot topics, entity extraction, then insight synthesis.
type Service struct {
	Feedbacks feedbacks.Repo
	Repo      Repo

	Detector   LanguageDetector
	Sentiment  ai.SentimentSet
	Topics     ai.TopicClassifier
	Entities   ai.EntityExtractor
	Insight    ai.InsightSynthesizer
	Dispatcher JobDispatcher

	BatchConcurrency int

	// inflight collapses concurrent Analyze calls for the same feedback
	// into one pipeline run.
	inflight singleflight.Group
}

// BatchItemResult reports the outcome for one feedback in a batch.
type BatchItemResult struct {
	FeedbackID string    `json:"feedback_id"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Analysis   *Analysis `json:"analysis,omitempty"`
}

// Analyze runs the pipeline for one feedback. When an analysis already
// exists and force is false, the stored result is returned unchanged.
// Concurrent calls for the same feedback share a single run.
func (s *Service) Analyze(ctx context.Context, feedbackID string, force bool) (Analysis, error) {
	if feedbackID == "" {
		return Analysis{}, fmt.Errorf("%w: feedback_id is required", ErrInvalidInput)
	}

	if !force {
		existing, err := s.Repo.GetByFeedbackID(ctx, feedbackID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Analysis{}, err
		}
	}

	v, err, _ := s.inflight.Do(feedbackID, func() (any, error) {
		return s.runPipeline(ctx, feedbackID)
	})
	if err != nil {
		return Analysis{}, err
	}
	return v.(Analysis), nil
}

// AnalyzeBatch analyzes several feedbacks with bounded concurrency. One
// feedback failing never aborts the others.
func (s *Service) AnalyzeBatch(ctx context.Context, feedbackIDs []string, force bool) []BatchItemResult {
	limit := s.BatchConcurrency
	if limit <= 0 {
		limit = defaultBatchConcurrency
	}

	results := make([]BatchItemResult, len(feedbackIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, id := range feedbackIDs {
		g.Go(func() error {
			a, err := s.Analyze(gctx, id, force)
			if err != nil {
				results[i] = BatchItemResult{FeedbackID: id, Status: "failed", Error: err.Error()}
				return nil
			}
			results[i] = BatchItemResult{FeedbackID: id, Status: "completed", Analysis: &a}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Get returns the stored analysis for a feedback.
func (s *Service) Get(ctx context.Context, feedbackID string) (Analysis, error) {
	if feedbackID == "" {
		return Analysis{}, fmt.Errorf("%w: feedback_id is required", ErrInvalidInput)
	}
	return s.Repo.GetByFeedbackID(ctx, feedbackID)
}

func (s *Service) runPipeline(ctx context.Context, feedbackID string) (Analysis, error) {
	started := time.Now()
	metrics.IncAnalysisStarted()

	fb, err := s.Feedbacks.GetByID(ctx, feedbackID)
	if err != nil {
		metrics.IncAnalysisFailed()
		return Analysis{}, err
	}

	a := Analysis{
		ID:          uuid.NewString(),
		FeedbackID:  feedbackID,
		Topics:      []ai.TopicScore{},
		TopicsFixed: []ai.TopicScore{},
		Entities:    []ai.Entity{},
		Keywords:    []ai.Keyword{},
		Categories:  []ai.Category{},
		StageErrors: []StageError{},
	}

	// Stage 1: language. A declared language on the feedback short-circuits
	// detection; an undetectable text falls through to the multilingual
	// sentiment model with a recorded soft error.
	language := fb.Language
	if language == "" || language == "auto" {
		language, _ = s.Detector.Detect(fb.Content)
		if language == "auto" {
			a.StageErrors = append(a.StageErrors, StageError{
				Stage:  StageLanguage,
				Reason: "language not detected, using multilingual fallback",
			})
			metrics.IncStageSoftFailure()
		}
	}
	a.DetectedLanguage = language

	// Stages 2-4 run in parallel: sentiment, topics, entities. Sentiment
	// and topics are required fields, so either failing aborts the run
	// with nothing persisted; entity extraction degrades to empty slices.
	var (
		sentiment    ai.SentimentResult
		topicsRaw    []ai.TopicScore
		entityResult ai.EntityResult
		entitiesErr  error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sentiment, err = s.Sentiment.ForLanguage(language).ClassifySentiment(gctx, fb.Content)
		if err != nil {
			return fmt.Errorf("%s stage: %w", StageSentiment, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		topicsRaw, err = s.Topics.ClassifyTopics(gctx, fb.Content, ai.CanonicalTopics)
		if err != nil {
			return fmt.Errorf("%s stage: %w", StageTopics, err)
		}
		return nil
	})
	g.Go(func() error {
		entityResult, entitiesErr = s.Entities.ExtractEntities(gctx, fb.Content, language)
		return nil
	})
	if err := g.Wait(); err != nil {
		metrics.IncAnalysisFailed()
		telemetry.Error("analysis_failed", map[string]any{
			"feedback_id": feedbackID,
			"error":       err.Error(),
		})
		return Analysis{}, err
	}

	a.Sentiment = &sentiment
	a.Topics = ai.FilterTopics(topicsRaw)
	if entitiesErr != nil {
		a.StageErrors = append(a.StageErrors, StageError{Stage: StageEntities, Reason: entitiesErr.Error()})
		metrics.IncStageSoftFailure()
	} else {
		a.Entities = entityResult.Entities
		a.Keywords = entityResult.Keywords
		a.Categories = entityResult.Categories
	}

	// Stage 5: insight synthesis. A tie-break is requested when the
	// sentiment classifier was unsure. Synthesis failures are soft; the
	// analysis persists without a summary.
	needTieBreak := sentiment.Confidence < ai.TieBreakThreshold
	if needTieBreak {
		metrics.IncTieBreak()
	}
	insightResult, insightErr := s.Insight.SynthesizeInsight(ctx, ai.InsightRequest{
		Text:         fb.Content,
		Language:     language,
		Sentiment:    sentiment,
		Topics:       a.Topics,
		Entities:     a.Entities,
		NeedTieBreak: needTieBreak,
	})
	if insightErr != nil {
		a.StageErrors = append(a.StageErrors, StageError{Stage: StageInsight, Reason: insightErr.Error()})
		metrics.IncStageSoftFailure()
	} else {
		a.Summary = insightResult.Summary
		a.TopicsFixed = insightResult.TopicsFixed
		insight := insightResult.Insight
		a.Insight = &insight
		if needTieBreak {
			a.TieBreak = insightResult.TieBreak
		}
	}

	now := time.Now().UTC()
	a.ProcessingTimeMs = time.Since(started).Milliseconds()
	a.CreatedAt = now
	a.UpdatedAt = now

	// A re-analysis keeps the stored row's identity and creation time, so
	// callers and the store always agree on the analysis ID.
	if existing, err := s.Repo.GetByFeedbackID(ctx, feedbackID); err == nil {
		a.ID = existing.ID
		a.CreatedAt = existing.CreatedAt
	}

	if err := s.Repo.Upsert(ctx, a); err != nil {
		metrics.IncAnalysisFailed()
		return Analysis{}, fmt.Errorf("persist analysis: %w", err)
	}

	metrics.IncAnalysisCompleted()
	metrics.ObserveAnalysisDurationMs(float64(a.ProcessingTimeMs))
	telemetry.Info("analysis_completed", map[string]any{
		"feedback_id":        feedbackID,
		"analysis_id":        a.ID,
		"language":           language,
		"sentiment":          string(sentiment.Label),
		"tie_break":          needTieBreak,
		"stage_errors":       len(a.StageErrors),
		"processing_time_ms": a.ProcessingTimeMs,
	})

	if s.Dispatcher != nil {
		if err := s.Dispatcher.DispatchJobs(ctx, a); err != nil {
			// Automation is best-effort relative to the analysis itself.
			telemetry.Warn("job_dispatch_failed", map[string]any{
				"feedback_id": feedbackID,
				"analysis_id": a.ID,
				"error":       err.Error(),
			})
		}
	}

	return a, nil
}
