package watson

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"feedback-backend/internal/ai"
)

const analyzeVersion = "2022-04-07"

// nluLanguages are the languages Watson NLU accepts for entity analysis.
// Anything else is analyzed as English, which still yields usable keywords.
var nluLanguages = map[string]bool{
	"ar": true, "de": true, "en": true, "es": true, "fr": true,
	"it": true, "ja": true, "ko": true, "nl": true, "pt": true,
	"sv": true, "zh": true,
}

// Client calls IBM Watson Natural Language Understanding for entity,
// keyword, and category extraction.
type Client struct {
	apiKey     string
	serviceURL string
	httpClient *http.Client
}

// NewClient constructs a Watson NLU client.
func NewClient(apiKey, serviceURL string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("WATSON_API_KEY is required")
	}
	if strings.TrimSpace(serviceURL) == "" {
		return nil, fmt.Errorf("WATSON_URL is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiKey:     apiKey,
		serviceURL: strings.TrimRight(serviceURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type analyzeRequest struct {
	Text     string   `json:"text"`
	Language string   `json:"language"`
	Features features `json:"features"`
}

type features struct {
	Entities   limitOpt `json:"entities"`
	Keywords   limitOpt `json:"keywords"`
	Categories limitOpt `json:"categories"`
}

type limitOpt struct {
	Limit int `json:"limit"`
}

type analyzeResponse struct {
	Entities []struct {
		Text      string  `json:"text"`
		Type      string  `json:"type"`
		Relevance float64 `json:"relevance"`
		Count     int     `json:"count"`
	} `json:"entities"`
	Keywords []struct {
		Text      string  `json:"text"`
		Relevance float64 `json:"relevance"`
	} `json:"keywords"`
	Categories []struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	} `json:"categories"`
}

// ExtractEntities analyzes the text and returns entities, keywords, and
// categories. Languages NLU does not support fall back to English.
func (c *Client) ExtractEntities(ctx context.Context, text, language string) (ai.EntityResult, error) {
	lang := language
	if !nluLanguages[lang] {
		lang = "en"
	}

	reqBody := analyzeRequest{
		Text:     text,
		Language: lang,
		Features: features{
			Entities:   limitOpt{Limit: 10},
			Keywords:   limitOpt{Limit: 10},
			Categories: limitOpt{Limit: 5},
		},
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return ai.EntityResult{}, err
	}

	url := c.serviceURL + "/v1/analyze?version=" + analyzeVersion
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return ai.EntityResult{}, err
	}
	req.SetBasicAuth("apikey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ai.EntityResult{}, fmt.Errorf("watson analyze: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ai.EntityResult{}, fmt.Errorf("watson analyze: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return ai.EntityResult{}, fmt.Errorf("watson analyze: http status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed analyzeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ai.EntityResult{}, fmt.Errorf("watson analyze: parse: %w", err)
	}

	out := ai.EntityResult{
		Entities:   make([]ai.Entity, 0, len(parsed.Entities)),
		Keywords:   make([]ai.Keyword, 0, len(parsed.Keywords)),
		Categories: make([]ai.Category, 0, len(parsed.Categories)),
	}
	for _, e := range parsed.Entities {
		out.Entities = append(out.Entities, ai.Entity{
			Text:       e.Text,
			Type:       e.Type,
			Confidence: e.Relevance,
			Metadata:   map[string]any{"count": e.Count},
		})
	}
	for _, k := range parsed.Keywords {
		out.Keywords = append(out.Keywords, ai.Keyword{Text: k.Text, Relevance: k.Relevance})
	}
	for _, cat := range parsed.Categories {
		out.Categories = append(out.Categories, ai.Category{Label: cat.Label, Score: cat.Score})
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var _ ai.EntityExtractor = (*Client)(nil)
