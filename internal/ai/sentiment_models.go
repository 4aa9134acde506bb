package ai

// Sentiment model identifiers. One dedicated model per primary supported
// language plus a multilingual fallback for everything else.
const (
	SentimentModelIndonesian   = "w11wo/indonesian-roberta-base-sentiment-classifier"
	SentimentModelEnglish      = "distilbert-base-uncased-finetuned-sst-2-english"
	SentimentModelMultilingual = "cardiffnlp/twitter-xlm-roberta-base-sentiment-multilingual"
)

// SentimentModelForLanguage picks the model for a detected language.
// Unknown or undetected languages get the multilingual fallback.
func SentimentModelForLanguage(language string) string {
	switch language {
	case "id":
		return SentimentModelIndonesian
	case "en":
		return SentimentModelEnglish
	default:
		return SentimentModelMultilingual
	}
}

// SentimentSet holds the named classifier variants and selects one per
// language. Selection is a pure function of the detected language so
// callers never branch on language themselves.
type SentimentSet struct {
	Primary   SentimentClassifier // Indonesian
	Secondary SentimentClassifier // English
	Fallback  SentimentClassifier // multilingual
}

// ForLanguage returns the classifier variant for a detected language.
func (s SentimentSet) ForLanguage(language string) SentimentClassifier {
	switch language {
	case "id":
		if s.Primary != nil {
			return s.Primary
		}
	case "en":
		if s.Secondary != nil {
			return s.Secondary
		}
	}
	return s.Fallback
}
