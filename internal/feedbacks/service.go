package feedbacks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"feedback-backend/internal/shared/telemetry"
)

// maxContentLength bounds feedback content; anything longer is dumped
// input from a broken collector, not real feedback.
const maxContentLength = 5000

// CreateInput is the payload for creating one feedback.
type CreateInput struct {
	Content        string         `json:"content"`
	Source         string         `json:"source"`
	SourceURL      string         `json:"source_url"`
	SourceMetadata map[string]any `json:"source_metadata"`
	AuthorName     string         `json:"author_name"`
	AuthorHandle   string         `json:"author_handle"`
	PostedAt       *time.Time     `json:"posted_at"`
	Language       string         `json:"language"`
}

// Service implements feedback use cases.
type Service struct {
	Repo Repo
}

// NewService constructs a Service.
func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// Create validates and stores one feedback.
func (s *Service) Create(ctx context.Context, in CreateInput) (Feedback, error) {
	fb, err := buildFeedback(in)
	if err != nil {
		return Feedback{}, err
	}
	if err := s.Repo.Create(ctx, fb); err != nil {
		return Feedback{}, fmt.Errorf("create feedback: %w", err)
	}
	telemetry.Info("feedback_created", map[string]any{
		"feedback_id": fb.ID,
		"source":      fb.Source,
	})
	return fb, nil
}

// CreateBatch stores up to 50 feedbacks. Validation failures abort the
// whole batch before anything is written.
func (s *Service) CreateBatch(ctx context.Context, inputs []CreateInput) ([]Feedback, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: batch is empty", ErrInvalidInput)
	}
	if len(inputs) > 50 {
		return nil, fmt.Errorf("%w: batch exceeds 50 items", ErrInvalidInput)
	}

	out := make([]Feedback, 0, len(inputs))
	for i, in := range inputs {
		fb, err := buildFeedback(in)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, fb)
	}
	for _, fb := range out {
		if err := s.Repo.Create(ctx, fb); err != nil {
			return nil, fmt.Errorf("create feedback %s: %w", fb.ID, err)
		}
	}
	telemetry.Info("feedback_batch_created", map[string]any{
		"count": len(out),
	})
	return out, nil
}

// Get fetches one feedback.
func (s *Service) Get(ctx context.Context, id string) (Feedback, error) {
	if strings.TrimSpace(id) == "" {
		return Feedback{}, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	return s.Repo.GetByID(ctx, id)
}

// List returns feedbacks newest-first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Feedback, error) {
	return s.Repo.List(ctx, limit, offset)
}

func buildFeedback(in CreateInput) (Feedback, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return Feedback{}, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	if len(content) > maxContentLength {
		return Feedback{}, fmt.Errorf("%w: content exceeds %d characters", ErrInvalidInput, maxContentLength)
	}

	language := strings.ToLower(strings.TrimSpace(in.Language))
	if language == "" {
		language = "auto"
	}
	source := strings.TrimSpace(in.Source)
	if source == "" {
		source = SourceManual
	}

	return Feedback{
		ID:             uuid.NewString(),
		Content:        content,
		Source:         source,
		SourceURL:      strings.TrimSpace(in.SourceURL),
		SourceMetadata: in.SourceMetadata,
		AuthorName:     strings.TrimSpace(in.AuthorName),
		AuthorHandle:   strings.TrimSpace(in.AuthorHandle),
		PostedAt:       in.PostedAt,
		Language:       language,
		CreatedAt:      time.Now().UTC(),
	}, nil
}
