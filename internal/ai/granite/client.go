package granite

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

	"feedback-backend/internal/ai"
	"feedback-backend/internal/shared/telemetry"
)

const defaultBaseURL = "https://api.replicate.com/v1"

// Client runs the Granite instruct model through Replicate to synthesize
// a feedback insight from prior stage outputs.
type Client struct {
	apiToken   string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a Replicate-backed Granite client.
func NewClient(apiToken, model string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(apiToken) == "" {
		return nil, fmt.Errorf("REPLICATE_API_TOKEN is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("REPLICATE_MODEL is required")
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		apiToken:   apiToken,
		model:      model,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// WithBaseURL overrides the Replicate endpoint, mainly for tests.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = strings.TrimRight(url, "/")
	return c
}

type predictionRequest struct {
	Input predictionInput `json:"input"`
}

type predictionInput struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type predictionResponse struct {
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  *string         `json:"error"`
}

// SynthesizeInsight asks the model for a structured insight. If the model
// output cannot be parsed as the expected JSON, a heuristic result built
// from the prior stage outputs is returned instead of an error so the
// pipeline still completes.
func (c *Client) SynthesizeInsight(ctx context.Context, req ai.InsightRequest) (ai.InsightResult, error) {
	raw, err := c.predict(ctx, buildPrompt(req))
	if err != nil {
		return ai.InsightResult{}, err
	}

	result, err := parseInsight(raw, req)
	if err != nil {
		telemetry.Warn("granite_parse_fallback", map[string]any{
			"error": err.Error(),
		})
		return heuristicResult(req, raw), nil
	}
	return result, nil
}

func (c *Client) predict(ctx context.Context, prompt string) (string, error) {
	reqBody := predictionRequest{
		Input: predictionInput{
			Prompt:      prompt,
			MaxTokens:   1024,
			Temperature: 0,
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := c.baseURL + "/models/" + c.model + "/predictions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiToken)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Prefer", "wait")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return "", fmt.Errorf("replicate request timeout: %w", err)
		}
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("replicate: http status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed predictionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("replicate response parse: %w", err)
	}
	if parsed.Error != nil && *parsed.Error != "" {
		return "", fmt.Errorf("replicate: %s", *parsed.Error)
	}
	if parsed.Status == "failed" || parsed.Status == "canceled" {
		return "", fmt.Errorf("replicate: prediction %s", parsed.Status)
	}
	return joinOutput(parsed.Output)
}

// joinOutput flattens the prediction output, which Replicate returns as
// either a string or an array of string chunks.
func joinOutput(raw json.RawMessage) (string, error) {
	var chunks []string
	if err := json.Unmarshal(raw, &chunks); err == nil {
		return strings.Join(chunks, ""), nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single, nil
	}
	return "", errors.New("replicate: unexpected output shape")
}

type insightPayload struct {
	Summary     string          `json:"summary"`
	TopicsFixed []ai.TopicScore `json:"topics_fixed"`
	TieBreak    *ai.TieBreak    `json:"tie_break"`
	Insight     ai.Insight      `json:"insight"`
}

// parseInsight extracts the JSON object embedded in the model output. The
// model occasionally wraps the object in prose, so everything outside the
// first '{' and last '}' is discarded before unmarshalling.
func parseInsight(raw string, req ai.InsightRequest) (ai.InsightResult, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ai.InsightResult{}, errors.New("no JSON object in model output")
	}

	var payload insightPayload
	if err := json.Unmarshal([]byte(raw[start:end+1]), &payload); err != nil {
		return ai.InsightResult{}, fmt.Errorf("insight parse: %w", err)
	}
	if strings.TrimSpace(payload.Summary) == "" {
		return ai.InsightResult{}, errors.New("insight missing summary")
	}

	result := ai.InsightResult{
		Summary:     payload.Summary,
		TopicsFixed: sanitizeTopics(payload.TopicsFixed),
		Insight:     sanitizeInsight(payload.Insight),
		Raw:         raw,
	}
	if req.NeedTieBreak && payload.TieBreak != nil {
		tb := *payload.TieBreak
		tb.Label = sanitizeSentiment(tb.Label, req.Sentiment.Label)
		result.TieBreak = &tb
	}
	return result, nil
}

// sanitizeTopics drops labels outside the canonical taxonomy and clamps
// scores to [0, 1].
func sanitizeTopics(topics []ai.TopicScore) []ai.TopicScore {
	allowed := make(map[string]bool, len(ai.CanonicalTopics))
	for _, t := range ai.CanonicalTopics {
		allowed[t] = true
	}
	out := make([]ai.TopicScore, 0, len(topics))
	for _, t := range topics {
		label := strings.ToLower(strings.TrimSpace(t.Label))
		if !allowed[label] {
			continue
		}
		out = append(out, ai.TopicScore{Label: label, Score: clamp01(t.Score)})
	}
	return out
}

func sanitizeInsight(in ai.Insight) ai.Insight {
	switch in.Urgency {
	case ai.UrgencyLow, ai.UrgencyMedium, ai.UrgencyHigh:
	default:
		in.Urgency = ai.UrgencyLow
	}
	in.Confidence = clamp01(in.Confidence)
	return in
}

func sanitizeSentiment(label, fallback ai.SentimentLabel) ai.SentimentLabel {
	switch label {
	case ai.SentimentPositive, ai.SentimentNegative, ai.SentimentNeutral:
		return label
	}
	return fallback
}

// heuristicResult builds a usable insight from the prior stage outputs
// when the model output is unusable.
func heuristicResult(req ai.InsightRequest, raw string) ai.InsightResult {
	urgency := ai.UrgencyLow
	action := "No immediate action needed."
	switch req.Sentiment.Label {
	case ai.SentimentNegative:
		urgency = ai.UrgencyHigh
		action = "Follow up with the customer about their complaint."
	case ai.SentimentNeutral:
		urgency = ai.UrgencyMedium
		action = "Review the feedback for possible improvements."
	}

	topicPart := ""
	if len(req.Topics) > 0 {
		labels := make([]string, 0, len(req.Topics))
		for _, t := range req.Topics {
			labels = append(labels, t.Label)
		}
		topicPart = " about " + strings.Join(labels, ", ")
	}

	result := ai.InsightResult{
		Summary:     fmt.Sprintf("Customer left %s feedback%s.", req.Sentiment.Label, topicPart),
		TopicsFixed: req.Topics,
		Insight: ai.Insight{
			Urgency:              urgency,
			ActionRecommendation: action,
			Confidence:           0.3,
			Reasoning:            "heuristic fallback after unparseable model output",
		},
		Raw: raw,
	}
	// A requested tie-break still gets an answer: without a usable model
	// opinion the classifier label stands.
	if req.NeedTieBreak {
		result.TieBreak = &ai.TieBreak{
			Label:     req.Sentiment.Label,
			Reasoning: "model output unusable; keeping the classifier label",
		}
	}
	return result
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var _ ai.InsightSynthesizer = (*Client)(nil)
