package orchestrate

import (
	"testing"

	"feedback-backend/internal/ai"
	"feedback-backend/internal/analyses"
)

func negativeAnalysis(urgency ai.Urgency, topics ...string) analyses.Analysis {
	a := analyses.Analysis{
		ID:         "analysis-1",
		FeedbackID: "fb-1",
		Sentiment: &ai.SentimentResult{
			Label: ai.SentimentNegative, Score: 0.9, Confidence: 0.9,
		},
		Insight: &ai.Insight{Urgency: urgency, ActionRecommendation: "act"},
		Summary: "complaint",
	}
	for _, t := range topics {
		a.Topics = append(a.Topics, ai.TopicScore{Label: t, Score: 0.7})
	}
	return a
}

func kinds(specs []JobSpec) map[Kind]bool {
	out := make(map[Kind]bool, len(specs))
	for _, s := range specs {
		out[s.Kind] = true
	}
	return out
}

func TestEvaluateRulesNegativeHighUrgency(t *testing.T) {
	got := kinds(EvaluateRules(negativeAnalysis(ai.UrgencyHigh, "pengiriman")))
	if !got[KindTicket] {
		t.Error("expected a ticket for negative high-urgency feedback")
	}
	if !got[KindAlert] {
		t.Error("expected an alert for high urgency")
	}
	if got[KindAssignment] {
		t.Error("no assignment without layanan or after-sales topics")
	}
}

func TestEvaluateRulesAssignment(t *testing.T) {
	specs := EvaluateRules(negativeAnalysis(ai.UrgencyLow, "layanan"))
	got := kinds(specs)
	if !got[KindAssignment] {
		t.Fatal("expected an assignment for negative layanan feedback")
	}
	for _, s := range specs {
		if s.Kind == KindAssignment {
			if s.Payload["team"] != "customer-care" {
				t.Errorf("assignment payload team = %v", s.Payload["team"])
			}
		}
	}
}

func TestEvaluateRulesFollowupOnMediumUrgency(t *testing.T) {
	got := kinds(EvaluateRules(negativeAnalysis(ai.UrgencyMedium)))
	if !got[KindFollowup] {
		t.Error("expected a followup for negative medium-urgency feedback")
	}
	if got[KindTicket] || got[KindAlert] {
		t.Error("medium urgency must not raise tickets or alerts")
	}
}

func TestEvaluateRulesFollowupOnNegativeTieBreak(t *testing.T) {
	a := analyses.Analysis{
		ID:         "analysis-1",
		FeedbackID: "fb-1",
		Sentiment: &ai.SentimentResult{
			Label: ai.SentimentNeutral, Score: 0.5, Confidence: 0.5,
		},
		TieBreak: &ai.TieBreak{Label: ai.SentimentNegative, Reasoning: "veiled complaint"},
		Insight:  &ai.Insight{Urgency: ai.UrgencyLow},
	}
	got := kinds(EvaluateRules(a))
	if !got[KindFollowup] {
		t.Error("expected a followup when the tie-break flips to negative")
	}
}

func TestEvaluateRulesPositiveNoJobs(t *testing.T) {
	a := analyses.Analysis{
		ID:         "analysis-1",
		FeedbackID: "fb-1",
		Sentiment: &ai.SentimentResult{
			Label: ai.SentimentPositive, Score: 0.95, Confidence: 0.95,
		},
		Insight: &ai.Insight{Urgency: ai.UrgencyLow},
	}
	if specs := EvaluateRules(a); len(specs) != 0 {
		t.Errorf("specs = %+v, want none for satisfied feedback", specs)
	}
}

func TestEvaluateRulesNoSentimentNoJobs(t *testing.T) {
	if specs := EvaluateRules(analyses.Analysis{ID: "a", FeedbackID: "f"}); specs != nil {
		t.Errorf("specs = %+v, want nil without sentiment", specs)
	}
}

func TestEvaluateRulesPayloadCarriesAnalysisContext(t *testing.T) {
	specs := EvaluateRules(negativeAnalysis(ai.UrgencyHigh, "produk"))
	if len(specs) == 0 {
		t.Fatal("expected specs")
	}
	payload := specs[0].Payload
	if payload["feedback_id"] != "fb-1" || payload["analysis_id"] != "analysis-1" {
		t.Errorf("payload ids = %+v", payload)
	}
	if payload["urgency"] != "high" {
		t.Errorf("payload urgency = %v", payload["urgency"])
	}
}
