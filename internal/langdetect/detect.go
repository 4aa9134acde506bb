package langdetect

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
)

// minTextLength is the minimum input length for a meaningful detection.
// Shorter texts return the sentinel "auto" with zero confidence.
const minTextLength = 10

// LanguageAuto is returned when the language cannot be determined.
const LanguageAuto = "auto"

// Detector wraps a lingua language detector restricted to the languages
// the downstream models can handle well.
type Detector struct {
	inner lingua.LanguageDetector
}

var (
	buildOnce sync.Once
	shared    *Detector
)

// New returns the process-wide detector. Building the lingua models is
// expensive, so the instance is shared.
func New() *Detector {
	buildOnce.Do(func() {
		inner := lingua.NewLanguageDetectorBuilder().
			FromLanguages(
				lingua.Indonesian,
				lingua.English,
				lingua.Malay,
				lingua.Spanish,
				lingua.Portuguese,
				lingua.French,
				lingua.German,
				lingua.Japanese,
				lingua.Korean,
				lingua.Chinese,
				lingua.Arabic,
			).
			WithMinimumRelativeDistance(0.1).
			Build()
		shared = &Detector{inner: inner}
	})
	return shared
}

// Detect returns the ISO 639-1 code of the most likely language and the
// detector's confidence in it. Texts too short to classify return
// ("auto", 0) so callers can fall back to a declared language or the
// multilingual model path.
func (d *Detector) Detect(text string) (string, float64) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < minTextLength {
		return LanguageAuto, 0
	}

	lang, ok := d.inner.DetectLanguageOf(trimmed)
	if !ok {
		return LanguageAuto, 0
	}

	confidence := d.inner.ComputeLanguageConfidence(trimmed, lang)
	code := strings.ToLower(lang.IsoCode639_1().String())

	// Malay and Indonesian are close enough that either detection routes
	// to the Indonesian sentiment model.
	if code == "ms" {
		code = "id"
	}
	return code, confidence
}
