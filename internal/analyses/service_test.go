package analyses

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"feedback-backend/internal/ai"
	"feedback-backend/internal/feedbacks"
)

type fakeDetector struct {
	code string
	conf float64
}

func (f fakeDetector) Detect(text string) (string, float64) {
	return f.code, f.conf
}

type fakeSentiment struct {
	result ai.SentimentResult
	err    error
	calls  atomic.Int64
}

func (f *fakeSentiment) ClassifySentiment(ctx context.Context, text string) (ai.SentimentResult, error) {
	f.calls.Add(1)
	return f.result, f.err
}

type fakeTopics struct {
	scores []ai.TopicScore
	err    error
}

func (f *fakeTopics) ClassifyTopics(ctx context.Context, text string, candidates []string) ([]ai.TopicScore, error) {
	return f.scores, f.err
}

type fakeEntities struct {
	result ai.EntityResult
	err    error
}

func (f *fakeEntities) ExtractEntities(ctx context.Context, text, language string) (ai.EntityResult, error) {
	return f.result, f.err
}

type fakeInsight struct {
	result   ai.InsightResult
	err      error
	lastReq  ai.InsightRequest
	requests atomic.Int64
}

func (f *fakeInsight) SynthesizeInsight(ctx context.Context, req ai.InsightRequest) (ai.InsightResult, error) {
	f.requests.Add(1)
	f.lastReq = req
	return f.result, f.err
}

type fakeDispatcher struct {
	calls atomic.Int64
	last  Analysis
}

func (f *fakeDispatcher) DispatchJobs(ctx context.Context, a Analysis) error {
	f.calls.Add(1)
	f.last = a
	return nil
}

func seedFeedback(t *testing.T, repo feedbacks.Repo, content, language string) string {
	t.Helper()
	fb := feedbacks.Feedback{
		ID:        "fb-" + content[:min(8, len(content))],
		Content:   content,
		Source:    feedbacks.SourceManual,
		Language:  language,
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), fb); err != nil {
		t.Fatalf("seed feedback: %v", err)
	}
	return fb.ID
}

func newTestService(fbRepo feedbacks.Repo, sentiment *fakeSentiment, topics *fakeTopics, entities *fakeEntities, insight *fakeInsight) *Service {
	return &Service{
		Feedbacks: fbRepo,
		Repo:      NewMemoryRepo(),
		Detector:  fakeDetector{code: "id", conf: 0.95},
		Sentiment: ai.SentimentSet{
			Primary:   sentiment,
			Secondary: sentiment,
			Fallback:  sentiment,
		},
		Topics:   topics,
		Entities: entities,
		Insight:  insight,
	}
}

func TestAnalyzeHappyPath(t *testing.T) {
	fbRepo := feedbacks.NewMemoryRepo()
	id := seedFeedback(t, fbRepo, "Pelayanan sangat bagus dan pengiriman cepat", "auto")

	sentiment := &fakeSentiment{result: ai.SentimentResult{
		Label: ai.SentimentPositive, Score: 0.93, Confidence: 0.93, Model: ai.SentimentModelIndonesian,
	}}
	topics := &fakeTopics{scores: []ai.TopicScore{
		{Label: "layanan", Score: 0.81},
		{Label: "pengiriman", Score: 0.62},
		{Label: "harga", Score: 0.12},
	}}
	entities := &fakeEntities{result: ai.EntityResult{
		Keywords: []ai.Keyword{{Text: "pengiriman", Relevance: 0.9}},
	}}
	insight := &fakeInsight{result: ai.InsightResult{
		Summary:     "Happy customer praising service and delivery speed.",
		TopicsFixed: []ai.TopicScore{{Label: "layanan", Score: 0.81}},
		Insight:     ai.Insight{Urgency: ai.UrgencyLow, ActionRecommendation: "none", Confidence: 0.9},
	}}

	svc := newTestService(fbRepo, sentiment, topics, entities, insight)
	a, err := svc.Analyze(context.Background(), id, false)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if a.DetectedLanguage != "id" {
		t.Errorf("detected language = %s, want id", a.DetectedLanguage)
	}
	if a.Sentiment == nil || a.Sentiment.Label != ai.SentimentPositive {
		t.Errorf("sentiment = %+v, want positive", a.Sentiment)
	}
	if len(a.Topics) != 2 {
		t.Fatalf("topics = %d, want 2 (threshold filters harga at 0.12)", len(a.Topics))
	}
	if a.Topics[0].Label != "layanan" || a.Topics[1].Label != "pengiriman" {
		t.Errorf("topics order = %+v", a.Topics)
	}
	if a.Summary == "" {
		t.Error("expected summary from insight stage")
	}
	if a.TieBreak != nil {
		t.Error("tie break must not be set at confidence 0.93")
	}
	if len(a.StageErrors) != 0 {
		t.Errorf("stage errors = %+v, want none", a.StageErrors)
	}

	stored, err := svc.Repo.GetByFeedbackID(context.Background(), id)
	if err != nil {
		t.Fatalf("stored analysis: %v", err)
	}
	if stored.ID != a.ID {
		t.Errorf("stored id = %s, want %s", stored.ID, a.ID)
	}
}

func TestAnalyzeIdempotentWithoutForce(t *testing.T) {
	fbRepo := feedbacks.NewMemoryRepo()
	id := seedFeedback(t, fbRepo, "Produk oke tapi pengiriman lama sekali", "auto")

	sentiment := &fakeSentiment{result: ai.SentimentResult{
		Label: ai.SentimentNeutral, Score: 0.8, Confidence: 0.8, Model: ai.SentimentModelIndonesian,
	}}
	insight := &fakeInsight{result: ai.InsightResult{Summary: "Mixed feedback.", Insight: ai.Insight{Urgency: ai.UrgencyMedium}}}
	svc := newTestService(fbRepo, sentiment, &fakeTopics{}, &fakeEntities{}, insight)

	first, err := svc.Analyze(context.Background(), id, false)
	if err != nil {
		t.Fatalf("first Analyze: %v", err)
	}
	second, err := svc.Analyze(context.Background(), id, false)
	if err != nil {
		t.Fatalf("second Analyze: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("second call produced a new analysis: %s vs %s", first.ID, second.ID)
	}
	if got := sentiment.calls.Load(); got != 1 {
		t.Errorf("classifier calls = %d, want 1", got)
	}
}

func TestAnalyzeConcurrentCallsShareOneRun(t *testing.T) {
	fbRepo := feedbacks.NewMemoryRepo()
	id := seedFeedback(t, fbRepo, "Aplikasinya sering keluar sendiri saat checkout", "auto")

	sentiment := &fakeSentiment{result: ai.SentimentResult{
		Label: ai.SentimentNegative, Score: 0.9, Confidence: 0.9, Model: ai.SentimentModelIndonesian,
	}}
	insight := &fakeInsight{result: ai.InsightResult{Summary: "App stability complaint.", Insight: ai.Insight{Urgency: ai.UrgencyMedium}}}
	svc := newTestService(fbRepo, sentiment, &fakeTopics{}, &fakeEntities{}, insight)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := svc.Analyze(context.Background(), id, false)
			if err != nil {
				t.Errorf("Analyze: %v", err)
				return
			}
			ids[i] = a.ID
		}()
	}
	wg.Wait()

	for _, got := range ids[1:] {
		if got != ids[0] {
			t.Fatalf("callers observed different analyses: %v", ids)
		}
	}
	stored, err := svc.Repo.GetByFeedbackID(context.Background(), id)
	if err != nil {
		t.Fatalf("stored analysis: %v", err)
	}
	if stored.ID != ids[0] {
		t.Errorf("stored id = %s, callers saw %s", stored.ID, ids[0])
	}
}

func TestAnalyzeForceRecomputes(t *testing.T) {
	fbRepo := feedbacks.NewMemoryRepo()
	id := seedFeedback(t, fbRepo, "Kualitas produk menurun belakangan ini", "auto")

	sentiment := &fakeSentiment{result: ai.SentimentResult{
		Label: ai.SentimentNegative, Score: 0.85, Confidence: 0.85, Model: ai.SentimentModelIndonesian,
	}}
	insight := &fakeInsight{result: ai.InsightResult{Summary: "Quality complaint.", Insight: ai.Insight{Urgency: ai.UrgencyHigh}}}
	svc := newTestService(fbRepo, sentiment, &fakeTopics{}, &fakeEntities{}, insight)

	if _, err := svc.Analyze(context.Background(), id, false); err != nil {
		t.Fatalf("first Analyze: %v", err)
	}
	if _, err := svc.Analyze(context.Background(), id, true); err != nil {
		t.Fatalf("forced Analyze: %v", err)
	}

	if got := sentiment.calls.Load(); got != 2 {
		t.Errorf("classifier calls = %d, want 2 with force", got)
	}
}

func TestAnalyzeTieBreakOnLowConfidence(t *testing.T) {
	fbRepo := feedbacks.NewMemoryRepo()
	id := seedFeedback(t, fbRepo, "Hmm ya begitulah pengalamannya kemarin", "auto")

	sentiment := &fakeSentiment{result: ai.SentimentResult{
		Label: ai.SentimentNeutral, Score: 0.45, Confidence: 0.45, Model: ai.SentimentModelIndonesian,
	}}
	insight := &fakeInsight{result: ai.InsightResult{
		Summary:  "Ambiguous feedback.",
		TieBreak: &ai.TieBreak{Label: ai.SentimentNegative, Reasoning: "subtle complaint"},
		Insight:  ai.Insight{Urgency: ai.UrgencyMedium},
	}}
	svc := newTestService(fbRepo, sentiment, &fakeTopics{}, &fakeEntities{}, insight)

	a, err := svc.Analyze(context.Background(), id, false)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if !insight.lastReq.NeedTieBreak {
		t.Error("expected NeedTieBreak at confidence 0.45")
	}
	if a.TieBreak == nil || a.TieBreak.Label != ai.SentimentNegative {
		t.Errorf("tie break = %+v, want negative", a.TieBreak)
	}
	if a.Sentiment.Label != ai.SentimentNeutral {
		t.Error("tie break must not overwrite the original sentiment label")
	}
}

func TestAnalyzeNoTieBreakAtThreshold(t *testing.T) {
	fbRepo := feedbacks.NewMemoryRepo()
	id := seedFeedback(t, fbRepo, "Barang sesuai deskripsi penjual ramah", "auto")

	sentiment := &fakeSentiment{result: ai.SentimentResult{
		Label: ai.SentimentPositive, Score: 0.6, Confidence: 0.6, Model: ai.SentimentModelIndonesian,
	}}
	insight := &fakeInsight{result: ai.InsightResult{
		Summary:  "Positive feedback.",
		TieBreak: &ai.TieBreak{Label: ai.SentimentNegative, Reasoning: "should be ignored"},
		Insight:  ai.Insight{Urgency: ai.UrgencyLow},
	}}
	svc := newTestService(fbRepo, sentiment, &fakeTopics{}, &fakeEntities{}, insight)

	a, err := svc.Analyze(context.Background(), id, false)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if insight.lastReq.NeedTieBreak {
		t.Error("NeedTieBreak must be false at exactly 0.6")
	}
	if a.TieBreak != nil {
		t.Errorf("tie break = %+v, want nil without a tie-break request", a.TieBreak)
	}
}

func TestAnalyzeSoftStageFailuresRecorded(t *testing.T) {
	fbRepo := feedbacks.NewMemoryRepo()
	id := seedFeedback(t, fbRepo, "Pengiriman telat dua minggu tanpa kabar", "auto")

	sentiment := &fakeSentiment{result: ai.SentimentResult{
		Label: ai.SentimentNegative, Score: 0.9, Confidence: 0.9, Model: ai.SentimentModelIndonesian,
	}}
	entities := &fakeEntities{err: errors.New("watson unavailable")}
	insight := &fakeInsight{err: errors.New("replicate: http status 503")}
	svc := newTestService(fbRepo, sentiment, &fakeTopics{}, entities, insight)

	a, err := svc.Analyze(context.Background(), id, false)
	if err != nil {
		t.Fatalf("Analyze must succeed despite soft failures: %v", err)
	}

	if len(a.StageErrors) != 2 {
		t.Fatalf("stage errors = %d, want 2", len(a.StageErrors))
	}
	if a.StageErrors[0].Stage != StageEntities || a.StageErrors[1].Stage != StageInsight {
		t.Errorf("stage error order = %+v, want entities then insight", a.StageErrors)
	}
	if a.Sentiment == nil {
		t.Error("surviving stages must still populate the analysis")
	}
	if len(a.Entities) != 0 {
		t.Errorf("entities = %+v, want empty after failed extraction", a.Entities)
	}
}

func TestAnalyzeTopicsFailureIsFatal(t *testing.T) {
	fbRepo := feedbacks.NewMemoryRepo()
	id := seedFeedback(t, fbRepo, "Lokasi tokonya susah sekali ditemukan", "auto")

	sentiment := &fakeSentiment{result: ai.SentimentResult{
		Label: ai.SentimentNegative, Score: 0.9, Confidence: 0.9, Model: ai.SentimentModelIndonesian,
	}}
	topics := &fakeTopics{err: errors.New("inference timeout")}
	svc := newTestService(fbRepo, sentiment, topics, &fakeEntities{}, &fakeInsight{})

	if _, err := svc.Analyze(context.Background(), id, false); err == nil {
		t.Fatal("expected error when topic stage fails")
	}
	if _, err := svc.Repo.GetByFeedbackID(context.Background(), id); !errors.Is(err, ErrNotFound) {
		t.Errorf("failed analysis must not be persisted, got %v", err)
	}
}

func TestAnalyzeUndetectableLanguageIsSoftError(t *testing.T) {
	fbRepo := feedbacks.NewMemoryRepo()
	id := seedFeedback(t, fbRepo, "ok", "auto")

	sentiment := &fakeSentiment{result: ai.SentimentResult{
		Label: ai.SentimentNeutral, Score: 0.7, Confidence: 0.7, Model: ai.SentimentModelMultilingual,
	}}
	insight := &fakeInsight{result: ai.InsightResult{Summary: "Terse feedback.", Insight: ai.Insight{Urgency: ai.UrgencyLow}}}
	svc := newTestService(fbRepo, sentiment, &fakeTopics{}, &fakeEntities{}, insight)
	svc.Detector = fakeDetector{code: "auto", conf: 0}

	a, err := svc.Analyze(context.Background(), id, false)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if a.DetectedLanguage != "auto" {
		t.Errorf("language = %s, want auto", a.DetectedLanguage)
	}
	if len(a.StageErrors) != 1 || a.StageErrors[0].Stage != StageLanguage {
		t.Errorf("stage errors = %+v, want one language_detection error", a.StageErrors)
	}
}

func TestAnalyzeSentimentFailureIsFatal(t *testing.T) {
	fbRepo := feedbacks.NewMemoryRepo()
	id := seedFeedback(t, fbRepo, "Tidak akan beli lagi di sini pokoknya", "auto")

	sentiment := &fakeSentiment{err: errors.New("model loading")}
	svc := newTestService(fbRepo, sentiment, &fakeTopics{}, &fakeEntities{}, &fakeInsight{})

	if _, err := svc.Analyze(context.Background(), id, false); err == nil {
		t.Fatal("expected error when sentiment stage fails")
	}
	if _, err := svc.Repo.GetByFeedbackID(context.Background(), id); !errors.Is(err, ErrNotFound) {
		t.Errorf("failed analysis must not be persisted, got %v", err)
	}
}

func TestAnalyzeInsightFailureIsSoft(t *testing.T) {
	fbRepo := feedbacks.NewMemoryRepo()
	id := seedFeedback(t, fbRepo, "Harga naik terus tiap bulan capek deh", "auto")

	sentiment := &fakeSentiment{result: ai.SentimentResult{
		Label: ai.SentimentNegative, Score: 0.88, Confidence: 0.88, Model: ai.SentimentModelIndonesian,
	}}
	insight := &fakeInsight{err: errors.New("replicate: http status 503")}
	svc := newTestService(fbRepo, sentiment, &fakeTopics{}, &fakeEntities{}, insight)

	a, err := svc.Analyze(context.Background(), id, false)
	if err != nil {
		t.Fatalf("Analyze must succeed despite insight failure: %v", err)
	}
	if len(a.StageErrors) != 1 || a.StageErrors[0].Stage != StageInsight {
		t.Errorf("stage errors = %+v, want one insight error", a.StageErrors)
	}
	if a.Summary != "" || a.Insight != nil {
		t.Error("failed insight stage must leave summary and insight empty")
	}
}

func TestAnalyzeDeclaredLanguageShortCircuitsDetection(t *testing.T) {
	fbRepo := feedbacks.NewMemoryRepo()
	id := seedFeedback(t, fbRepo, "The checkout flow keeps crashing on my phone", "en")

	sentiment := &fakeSentiment{result: ai.SentimentResult{
		Label: ai.SentimentNegative, Score: 0.9, Confidence: 0.9, Model: ai.SentimentModelEnglish,
	}}
	insight := &fakeInsight{result: ai.InsightResult{Summary: "App crash report.", Insight: ai.Insight{Urgency: ai.UrgencyHigh}}}
	svc := newTestService(fbRepo, sentiment, &fakeTopics{}, &fakeEntities{}, insight)
	// Detector says "id"; the declared language must win.
	svc.Detector = fakeDetector{code: "id", conf: 0.99}

	a, err := svc.Analyze(context.Background(), id, false)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if a.DetectedLanguage != "en" {
		t.Errorf("language = %s, want declared en", a.DetectedLanguage)
	}
}

func TestAnalyzeDispatchesJobs(t *testing.T) {
	fbRepo := feedbacks.NewMemoryRepo()
	id := seedFeedback(t, fbRepo, "Sangat kecewa dengan kualitas barangnya", "auto")

	sentiment := &fakeSentiment{result: ai.SentimentResult{
		Label: ai.SentimentNegative, Score: 0.95, Confidence: 0.95, Model: ai.SentimentModelIndonesian,
	}}
	insight := &fakeInsight{result: ai.InsightResult{Summary: "Quality complaint.", Insight: ai.Insight{Urgency: ai.UrgencyHigh}}}
	svc := newTestService(fbRepo, sentiment, &fakeTopics{}, &fakeEntities{}, insight)
	dispatcher := &fakeDispatcher{}
	svc.Dispatcher = dispatcher

	a, err := svc.Analyze(context.Background(), id, false)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got := dispatcher.calls.Load(); got != 1 {
		t.Fatalf("dispatcher calls = %d, want 1", got)
	}
	if dispatcher.last.ID != a.ID {
		t.Errorf("dispatcher saw analysis %s, want %s", dispatcher.last.ID, a.ID)
	}
}

func TestAnalyzeBatchIsolatesFailures(t *testing.T) {
	fbRepo := feedbacks.NewMemoryRepo()
	good := seedFeedback(t, fbRepo, "Layanan memuaskan terima kasih banyak", "auto")

	sentiment := &fakeSentiment{result: ai.SentimentResult{
		Label: ai.SentimentPositive, Score: 0.9, Confidence: 0.9, Model: ai.SentimentModelIndonesian,
	}}
	insight := &fakeInsight{result: ai.InsightResult{Summary: "Satisfied customer.", Insight: ai.Insight{Urgency: ai.UrgencyLow}}}
	svc := newTestService(fbRepo, sentiment, &fakeTopics{}, &fakeEntities{}, insight)

	results := svc.AnalyzeBatch(context.Background(), []string{good, "missing-id"}, false)
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Status != "completed" {
		t.Errorf("first item = %+v, want completed", results[0])
	}
	if results[1].Status != "failed" || results[1].Error == "" {
		t.Errorf("second item = %+v, want failed with error", results[1])
	}
}
