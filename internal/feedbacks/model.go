package feedbacks

import "time"

// Feedback is one piece of customer feedback to be analyzed.
type Feedback struct {
	ID             string         `json:"id"`
	Content        string         `json:"content"`
	Source         string         `json:"source"`
	SourceURL      string         `json:"source_url,omitempty"`
	SourceMetadata map[string]any `json:"source_metadata,omitempty"`
	AuthorName     string         `json:"author_name,omitempty"`
	AuthorHandle   string         `json:"author_handle,omitempty"`
	PostedAt       *time.Time     `json:"posted_at,omitempty"`
	// Language is the declared language of the content, or "auto" when the
	// pipeline should detect it.
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"created_at"`
}

// Known feedback sources. Source is free-form in storage; these are the
// values the collectors use.
const (
	SourceManual     = "manual"
	SourceTwitter    = "twitter"
	SourceGoogleMaps = "google_maps"
	SourceCSVImport  = "csv_import"
	SourceAPI        = "api"
)
