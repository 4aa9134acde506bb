package feedbacks

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new feedback row.
func (r *PGRepo) Create(ctx context.Context, fb Feedback) error {
	const query = `
INSERT INTO feedbacks (
    id,
    content,
    source,
    source_url,
    source_metadata,
    author_name,
    author_handle,
    posted_at,
    language,
    created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	source := fb.Source
	if source == "" {
		source = SourceManual
	}
	language := fb.Language
	if language == "" {
		language = "auto"
	}

	metadata, err := marshalJSONB(fb.SourceMetadata)
	if err != nil {
		return err
	}

	var sourceURL, authorName, authorHandle sql.NullString
	if fb.SourceURL != "" {
		sourceURL = sql.NullString{String: fb.SourceURL, Valid: true}
	}
	if fb.AuthorName != "" {
		authorName = sql.NullString{String: fb.AuthorName, Valid: true}
	}
	if fb.AuthorHandle != "" {
		authorHandle = sql.NullString{String: fb.AuthorHandle, Valid: true}
	}
	var postedAt sql.NullTime
	if fb.PostedAt != nil {
		postedAt = sql.NullTime{Time: *fb.PostedAt, Valid: true}
	}

	_, err = r.DB.ExecContext(
		ctx,
		query,
		fb.ID,
		fb.Content,
		source,
		sourceURL,
		metadata,
		authorName,
		authorHandle,
		postedAt,
		language,
		fb.CreatedAt,
	)
	return err
}

const selectColumns = `id, content, source, source_url, source_metadata, author_name, author_handle, posted_at, language, created_at`

// GetByID fetches a feedback by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Feedback, error) {
	const query = `
SELECT ` + selectColumns + `
FROM feedbacks
WHERE id = $1
LIMIT 1`
	row := r.DB.QueryRowContext(ctx, query, id)
	fb, err := scanFeedback(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Feedback{}, ErrNotFound
		}
		return Feedback{}, err
	}
	return fb, nil
}

// List returns feedbacks ordered newest-first.
func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]Feedback, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
SELECT ` + selectColumns + `
FROM feedbacks
ORDER BY created_at DESC
LIMIT $1 OFFSET $2`

	rows, err := r.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Feedback
	for rows.Next() {
		fb, err := scanFeedback(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}

func scanFeedback(scan func(dest ...any) error) (Feedback, error) {
	var fb Feedback
	var sourceURL, authorName, authorHandle sql.NullString
	var postedAt sql.NullTime
	var metadata []byte
	if err := scan(
		&fb.ID,
		&fb.Content,
		&fb.Source,
		&sourceURL,
		&metadata,
		&authorName,
		&authorHandle,
		&postedAt,
		&fb.Language,
		&fb.CreatedAt,
	); err != nil {
		return Feedback{}, err
	}
	if sourceURL.Valid {
		fb.SourceURL = sourceURL.String
	}
	if authorName.Valid {
		fb.AuthorName = authorName.String
	}
	if authorHandle.Valid {
		fb.AuthorHandle = authorHandle.String
	}
	if postedAt.Valid {
		t := postedAt.Time
		fb.PostedAt = &t
	}
	if len(metadata) > 0 {
		_ = json.Unmarshal(metadata, &fb.SourceMetadata)
	}
	return fb, nil
}

func marshalJSONB(v map[string]any) ([]byte, error) {
	if v == nil {
		return []byte(`{}`), nil
	}
	return json.Marshal(v)
}

var _ Repo = (*PGRepo)(nil)
