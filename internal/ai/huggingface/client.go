package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"feedback-backend/internal/ai"
)

const defaultBaseURL = "https://api-inference.huggingface.co/models"

// Client calls the HuggingFace Inference API for sentiment and zero-shot
// topic classification.
type Client struct {
	apiToken   string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the inference endpoint, mainly for tests.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithTimeout bounds each inference call.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRequestsPerSec throttles outbound calls to the inference API.
func WithRequestsPerSec(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// NewClient constructs a HuggingFace inference client.
func NewClient(apiToken string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiToken) == "" {
		return nil, fmt.Errorf("HUGGINGFACE_API_TOKEN is required")
	}
	c := &Client{
		apiToken: apiToken,
		baseURL:  defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SentimentClassifier returns a classifier bound to one model ID.
func (c *Client) SentimentClassifier(model string) ai.SentimentClassifier {
	return sentimentClassifier{client: c, model: model}
}

// SentimentSet returns the language-routed classifier variants.
func (c *Client) SentimentSet() ai.SentimentSet {
	return ai.SentimentSet{
		Primary:   c.SentimentClassifier(ai.SentimentModelIndonesian),
		Secondary: c.SentimentClassifier(ai.SentimentModelEnglish),
		Fallback:  c.SentimentClassifier(ai.SentimentModelMultilingual),
	}
}

type sentimentClassifier struct {
	client *Client
	model  string
}

type scoredLabel struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

func (s sentimentClassifier) ClassifySentiment(ctx context.Context, text string) (ai.SentimentResult, error) {
	body, err := s.client.post(ctx, s.model, map[string]any{"inputs": text})
	if err != nil {
		return ai.SentimentResult{}, fmt.Errorf("sentiment inference model=%s: %w", s.model, err)
	}

	scores, err := decodeScoredLabels(body)
	if err != nil {
		return ai.SentimentResult{}, fmt.Errorf("sentiment inference model=%s: %w", s.model, err)
	}
	if len(scores) == 0 {
		return ai.SentimentResult{}, fmt.Errorf("sentiment inference model=%s: empty response", s.model)
	}

	best := scores[0]
	for _, sc := range scores[1:] {
		if sc.Score > best.Score {
			best = sc
		}
	}

	return ai.SentimentResult{
		Label:      normalizeSentimentLabel(best.Label),
		Score:      best.Score,
		Confidence: best.Score,
		Model:      s.model,
	}, nil
}

// decodeScoredLabels handles the two response shapes the inference API uses
// for text classification: [[{label,score}...]] and [{label,score}...].
func decodeScoredLabels(body []byte) ([]scoredLabel, error) {
	var nested [][]scoredLabel
	if err := json.Unmarshal(body, &nested); err == nil && len(nested) > 0 {
		return nested[0], nil
	}
	var flat []scoredLabel
	if err := json.Unmarshal(body, &flat); err == nil {
		return flat, nil
	}
	return nil, errors.New("unexpected response shape")
}

func normalizeSentimentLabel(label string) ai.SentimentLabel {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "positive", "pos", "1", "label_2":
		return ai.SentimentPositive
	case "negative", "neg", "0", "label_0":
		return ai.SentimentNegative
	default:
		return ai.SentimentNeutral
	}
}

const zeroShotModel = "facebook/bart-large-mnli"

type zeroShotResponse struct {
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
}

// ClassifyTopics runs zero-shot multi-label classification against the
// candidate labels and returns every label with its score, unfiltered.
func (c *Client) ClassifyTopics(ctx context.Context, text string, candidates []string) ([]ai.TopicScore, error) {
	payload := map[string]any{
		"inputs": text,
		"parameters": map[string]any{
			"candidate_labels": candidates,
			"multi_label":      true,
		},
	}

	body, err := c.post(ctx, zeroShotModel, payload)
	if err != nil {
		return nil, fmt.Errorf("topic inference model=%s: %w", zeroShotModel, err)
	}

	var parsed zeroShotResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("topic inference model=%s: parse: %w", zeroShotModel, err)
	}
	if len(parsed.Labels) != len(parsed.Scores) {
		return nil, fmt.Errorf("topic inference model=%s: mismatched labels and scores", zeroShotModel)
	}

	out := make([]ai.TopicScore, 0, len(parsed.Labels))
	for i, label := range parsed.Labels {
		out = append(out, ai.TopicScore{Label: label, Score: parsed.Scores[i]})
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, model string, payload any) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := c.baseURL + "/" + model
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return nil, fmt.Errorf("huggingface request timeout: %w", err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var _ ai.TopicClassifier = (*Client)(nil)
