package granite

import (
	"fmt"
	"strings"

	"feedback-backend/internal/ai"
)

// buildPrompt renders the synthesis prompt. It embeds every prior stage
// output so the model grounds its summary on the pipeline's findings
// instead of re-deriving them.
func buildPrompt(req ai.InsightRequest) string {
	var b strings.Builder

	b.WriteString("You are an analyst for customer feedback. Given the feedback text and ")
	b.WriteString("prior analysis results, respond with a single JSON object and nothing else.\n\n")

	b.WriteString("Feedback text:\n")
	b.WriteString(req.Text)
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Detected language: %s\n", req.Language)
	fmt.Fprintf(&b, "Sentiment: %s (confidence %.2f, model %s)\n",
		req.Sentiment.Label, req.Sentiment.Confidence, req.Sentiment.Model)

	if len(req.Topics) > 0 {
		b.WriteString("Topics:\n")
		for _, t := range req.Topics {
			fmt.Fprintf(&b, "- %s (%.2f)\n", t.Label, t.Score)
		}
	}
	if len(req.Entities) > 0 {
		b.WriteString("Entities:\n")
		for _, e := range req.Entities {
			fmt.Fprintf(&b, "- %s (%s)\n", e.Text, e.Type)
		}
	}

	b.WriteString("\nAllowed topic labels: ")
	b.WriteString(strings.Join(ai.CanonicalTopics, ", "))
	b.WriteString("\n\n")

	b.WriteString("Return a JSON object with exactly these fields:\n")
	b.WriteString(`{"summary": "one or two sentences", ` +
		`"topics_fixed": [{"label": "...", "score": 0.0}], ` +
		`"insight": {"urgency": "low|medium|high", "action_recommendation": "...", "confidence": 0.0, "reasoning": "..."}`)
	if req.NeedTieBreak {
		b.WriteString(`, "tie_break": {"label": "positive|negative|neutral", "reasoning": "..."}`)
	}
	b.WriteString("}\n")

	if req.NeedTieBreak {
		fmt.Fprintf(&b, "\nThe sentiment classifier was unsure (confidence %.2f). ",
			req.Sentiment.Confidence)
		b.WriteString("Re-read the feedback and give your own sentiment label in tie_break.\n")
	}

	b.WriteString("topics_fixed must only use the allowed topic labels. ")
	b.WriteString("Do not include markdown, code fences, or any text outside the JSON object.\n")

	return b.String()
}
