package ai

// CanonicalTopics is the fixed taxonomy feedback is classified against.
// Labels are Indonesian because most of the feedback corpus is.
var CanonicalTopics = []string{
	"harga",
	"layanan",
	"produk",
	"pengiriman",
	"lokasi",
	"kualitas",
	"after-sales",
}

// TopicThreshold is the minimum zero-shot score for a topic to be kept.
const TopicThreshold = 0.35

// TieBreakThreshold is the sentiment confidence below which a secondary
// judgment is requested from the insight synthesizer.
const TieBreakThreshold = 0.6

// FilterTopics keeps scores at or above TopicThreshold, preserving the
// descending-score order the classifier returns.
func FilterTopics(scores []TopicScore) []TopicScore {
	out := make([]TopicScore, 0, len(scores))
	for _, s := range scores {
		if s.Score >= TopicThreshold {
			out = append(out, s)
		}
	}
	return out
}
