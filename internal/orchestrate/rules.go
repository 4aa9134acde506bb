package orchestrate

import (
	"feedback-backend/internal/ai"
	"feedback-backend/internal/analyses"
)

// JobSpec is a job to enqueue, produced by the trigger rules.
type JobSpec struct {
	Kind    Kind
	Payload map[string]any
}

// EvaluateRules maps a completed analysis to the automation jobs it
// warrants. Rules are evaluated independently; one analysis can trigger
// several jobs.
//
// Rules:
//   - ticket:     negative sentiment with high urgency
//   - alert:      high urgency regardless of sentiment
//   - assignment: negative sentiment touching layanan or after-sales
//   - followup:   negative sentiment with medium urgency, or a tie-break
//     that flipped the label to negative
func EvaluateRules(a analyses.Analysis) []JobSpec {
	if a.Sentiment == nil {
		return nil
	}

	sentiment := a.Sentiment.Label
	urgency := ai.UrgencyLow
	if a.Insight != nil {
		urgency = a.Insight.Urgency
	}

	var specs []JobSpec

	if sentiment == ai.SentimentNegative && urgency == ai.UrgencyHigh {
		specs = append(specs, JobSpec{Kind: KindTicket, Payload: basePayload(a)})
	}
	if urgency == ai.UrgencyHigh {
		specs = append(specs, JobSpec{Kind: KindAlert, Payload: basePayload(a)})
	}
	if sentiment == ai.SentimentNegative && hasAnyTopic(a, "layanan", "after-sales") {
		payload := basePayload(a)
		payload["team"] = "customer-care"
		specs = append(specs, JobSpec{Kind: KindAssignment, Payload: payload})
	}
	followup := sentiment == ai.SentimentNegative && urgency == ai.UrgencyMedium
	if a.TieBreak != nil && a.TieBreak.Label == ai.SentimentNegative {
		followup = true
	}
	if followup {
		specs = append(specs, JobSpec{Kind: KindFollowup, Payload: basePayload(a)})
	}

	return specs
}

// manualPayload builds the payload for an explicitly triggered job,
// reusing the rule payload plus any kind-specific fields.
func manualPayload(a analyses.Analysis, kind Kind) map[string]any {
	payload := basePayload(a)
	if kind == KindAssignment {
		payload["team"] = "customer-care"
	}
	return payload
}

func basePayload(a analyses.Analysis) map[string]any {
	payload := map[string]any{
		"feedback_id": a.FeedbackID,
		"analysis_id": a.ID,
		"language":    a.DetectedLanguage,
	}
	if a.Sentiment != nil {
		payload["sentiment"] = string(a.Sentiment.Label)
	}
	if a.Summary != "" {
		payload["summary"] = a.Summary
	}
	if a.Insight != nil {
		payload["urgency"] = string(a.Insight.Urgency)
		payload["action_recommendation"] = a.Insight.ActionRecommendation
	}
	if len(a.Topics) > 0 {
		labels := make([]string, 0, len(a.Topics))
		for _, t := range a.Topics {
			labels = append(labels, t.Label)
		}
		payload["topics"] = labels
	}
	return payload
}

func hasAnyTopic(a analyses.Analysis, labels ...string) bool {
	for _, t := range a.Topics {
		for _, label := range labels {
			if t.Label == label {
				return true
			}
		}
	}
	return false
}
