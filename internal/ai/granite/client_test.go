package granite

import (
	"strings"
	"testing"

	"feedback-backend/internal/ai"
)

func tieBreakRequest() ai.InsightRequest {
	return ai.InsightRequest{
		Text:     "Barangnya ya gitu deh",
		Language: "id",
		Sentiment: ai.SentimentResult{
			Label: ai.SentimentNeutral, Score: 0.5, Confidence: 0.5,
		},
		NeedTieBreak: true,
	}
}

func TestParseInsightExtractsEmbeddedJSON(t *testing.T) {
	raw := "Here is the analysis you asked for:\n" +
		`{"summary": "Customer is unhappy with delivery times.", ` +
		`"topics_fixed": [{"label": "pengiriman", "score": 0.8}, {"label": "random", "score": 0.9}], ` +
		`"insight": {"urgency": "high", "action_recommendation": "escalate", "confidence": 0.85}}` +
		"\nHope that helps!"

	result, err := parseInsight(raw, ai.InsightRequest{Sentiment: ai.SentimentResult{Label: ai.SentimentNegative}})
	if err != nil {
		t.Fatalf("parseInsight: %v", err)
	}
	if result.Summary != "Customer is unhappy with delivery times." {
		t.Errorf("summary = %q", result.Summary)
	}
	if len(result.TopicsFixed) != 1 || result.TopicsFixed[0].Label != "pengiriman" {
		t.Errorf("topics_fixed = %+v, want only canonical labels", result.TopicsFixed)
	}
	if result.Insight.Urgency != ai.UrgencyHigh {
		t.Errorf("urgency = %s", result.Insight.Urgency)
	}
}

func TestParseInsightTieBreakOnlyWhenRequested(t *testing.T) {
	raw := `{"summary": "Ambivalent.", "tie_break": {"label": "negative", "reasoning": "sarcasm"}, ` +
		`"insight": {"urgency": "low", "action_recommendation": "none", "confidence": 0.5}}`

	withTieBreak, err := parseInsight(raw, tieBreakRequest())
	if err != nil {
		t.Fatalf("parseInsight: %v", err)
	}
	if withTieBreak.TieBreak == nil || withTieBreak.TieBreak.Label != ai.SentimentNegative {
		t.Errorf("tie break = %+v, want negative", withTieBreak.TieBreak)
	}

	req := tieBreakRequest()
	req.NeedTieBreak = false
	withoutTieBreak, err := parseInsight(raw, req)
	if err != nil {
		t.Fatalf("parseInsight: %v", err)
	}
	if withoutTieBreak.TieBreak != nil {
		t.Errorf("tie break = %+v, want nil when not requested", withoutTieBreak.TieBreak)
	}
}

func TestParseInsightRejectsOutputWithoutJSON(t *testing.T) {
	if _, err := parseInsight("I could not produce an answer.", tieBreakRequest()); err == nil {
		t.Fatal("expected error for output without a JSON object")
	}
	if _, err := parseInsight(`{"topics_fixed": []}`, tieBreakRequest()); err == nil {
		t.Fatal("expected error for JSON missing summary")
	}
}

func TestParseInsightSanitizesInvalidEnums(t *testing.T) {
	raw := `{"summary": "ok", "tie_break": {"label": "meh"}, ` +
		`"insight": {"urgency": "critical", "action_recommendation": "x", "confidence": 3.5}}`

	result, err := parseInsight(raw, tieBreakRequest())
	if err != nil {
		t.Fatalf("parseInsight: %v", err)
	}
	if result.Insight.Urgency != ai.UrgencyLow {
		t.Errorf("urgency = %s, want low for unknown value", result.Insight.Urgency)
	}
	if result.Insight.Confidence != 1 {
		t.Errorf("confidence = %f, want clamped to 1", result.Insight.Confidence)
	}
	if result.TieBreak == nil || result.TieBreak.Label != ai.SentimentNeutral {
		t.Errorf("tie break = %+v, want fallback to original label", result.TieBreak)
	}
}

func TestHeuristicResultFromNegativeSentiment(t *testing.T) {
	req := ai.InsightRequest{
		Sentiment: ai.SentimentResult{Label: ai.SentimentNegative, Confidence: 0.9},
		Topics:    []ai.TopicScore{{Label: "kualitas", Score: 0.7}},
	}
	result := heuristicResult(req, "garbled output")
	if result.Insight.Urgency != ai.UrgencyHigh {
		t.Errorf("urgency = %s, want high for negative sentiment", result.Insight.Urgency)
	}
	if !strings.Contains(result.Summary, "kualitas") {
		t.Errorf("summary = %q, want topic mention", result.Summary)
	}
	if result.Raw != "garbled output" {
		t.Errorf("raw = %q", result.Raw)
	}
	if result.TieBreak != nil {
		t.Errorf("tie break = %+v, want nil when not requested", result.TieBreak)
	}
}

func TestHeuristicResultAnswersRequestedTieBreak(t *testing.T) {
	result := heuristicResult(tieBreakRequest(), "not json")
	if result.TieBreak == nil {
		t.Fatal("requested tie break must be answered on the fallback path")
	}
	if result.TieBreak.Label != ai.SentimentNeutral {
		t.Errorf("tie break label = %s, want the classifier label retained", result.TieBreak.Label)
	}
	if result.TieBreak.Reasoning == "" {
		t.Error("tie break reasoning must explain the fallback")
	}
}

func TestBuildPromptIncludesTieBreakInstruction(t *testing.T) {
	prompt := buildPrompt(tieBreakRequest())
	if !strings.Contains(prompt, "tie_break") {
		t.Error("prompt must ask for a tie_break field when requested")
	}

	req := tieBreakRequest()
	req.NeedTieBreak = false
	prompt = buildPrompt(req)
	if strings.Contains(prompt, "tie_break") {
		t.Error("prompt must not mention tie_break when not requested")
	}
}
