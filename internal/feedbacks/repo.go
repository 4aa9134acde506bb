package feedbacks

import "context"

// Repo abstracts feedback persistence.
type Repo interface {
	Create(ctx context.Context, fb Feedback) error
	GetByID(ctx context.Context, id string) (Feedback, error)
	List(ctx context.Context, limit, offset int) ([]Feedback, error)
}
