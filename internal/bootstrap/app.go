package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"feedback-backend/internal/ai"
	"feedback-backend/internal/ai/granite"
	"feedback-backend/internal/ai/huggingface"
	"feedback-backend/internal/ai/watson"
	"feedback-backend/internal/analyses"
	"feedback-backend/internal/feedbacks"
	"feedback-backend/internal/langdetect"
	"feedback-backend/internal/orchestrate"
	"feedback-backend/internal/shared/config"
	"feedback-backend/internal/shared/server"
	"feedback-backend/internal/shared/storage/db"
)

// App holds shared dependencies for the api and worker binaries.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB

	FeedbacksRepo feedbacks.Repo
	AnalysesRepo  analyses.Repo
	JobsRepo      orchestrate.Repo

	FeedbacksService   *feedbacks.Service
	AnalysesService    *analyses.Service
	OrchestrateService *orchestrate.Service

	FeedbacksHandler   *feedbacks.Handler
	AnalysesHandler    *analyses.Handler
	OrchestrateHandler *orchestrate.Handler
}

// Build prepares shared dependencies and the HTTP router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, DB: sqlDB}

	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewEngine(cfg, sqlDB, server.Handlers{
		Feedbacks:   app.FeedbacksHandler,
		Analyses:    app.AnalysesHandler,
		Orchestrate: app.OrchestrateHandler,
	})
	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildServices(app *App) error {
	cfg := app.Config

	if app.DB != nil {
		app.FeedbacksRepo = &feedbacks.PGRepo{DB: app.DB}
		app.AnalysesRepo = &analyses.PGRepo{DB: app.DB}
		app.JobsRepo = &orchestrate.PGRepo{DB: app.DB}
	} else {
		app.FeedbacksRepo = feedbacks.NewMemoryRepo()
		app.AnalysesRepo = analyses.NewMemoryRepo()
		app.JobsRepo = orchestrate.NewMemoryRepo()
	}

	sentimentSet, topicClassifier, err := buildHuggingFace(cfg)
	if err != nil {
		return err
	}
	entityExtractor, err := buildWatson(cfg)
	if err != nil {
		return err
	}
	insightSynthesizer, err := buildGranite(cfg)
	if err != nil {
		return err
	}
	workflowClient, err := buildWorkflow(cfg)
	if err != nil {
		return err
	}

	app.OrchestrateService = orchestrate.NewService(app.JobsRepo, app.AnalysesRepo, workflowClient)

	app.FeedbacksService = feedbacks.NewService(app.FeedbacksRepo)
	app.AnalysesService = &analyses.Service{
		Feedbacks:        app.FeedbacksRepo,
		Repo:             app.AnalysesRepo,
		Detector:         langdetect.New(),
		Sentiment:        sentimentSet,
		Topics:           topicClassifier,
		Entities:         entityExtractor,
		Insight:          insightSynthesizer,
		Dispatcher:       app.OrchestrateService,
		BatchConcurrency: cfg.BatchConcurrency,
	}

	app.FeedbacksHandler = feedbacks.NewHandler(app.FeedbacksService)
	app.AnalysesHandler = analyses.NewHandler(app.AnalysesService)
	app.OrchestrateHandler = orchestrate.NewHandler(app.OrchestrateService)
	return nil
}

func buildHuggingFace(cfg config.Config) (ai.SentimentSet, ai.TopicClassifier, error) {
	if strings.TrimSpace(cfg.HuggingFaceToken) == "" {
		if !isDevLike(cfg.Env) {
			return ai.SentimentSet{}, nil, fmt.Errorf("HUGGINGFACE_API_TOKEN is required")
		}
		log.Printf("bootstrap: HUGGINGFACE_API_TOKEN empty; sentiment and topics disabled")
		placeholder := ai.Placeholder{}
		return ai.SentimentSet{Primary: placeholder, Secondary: placeholder, Fallback: placeholder}, placeholder, nil
	}

	client, err := huggingface.NewClient(
		cfg.HuggingFaceToken,
		huggingface.WithBaseURL(cfg.HuggingFaceBaseURL),
		huggingface.WithTimeout(cfg.AICallTimeout),
		huggingface.WithRequestsPerSec(cfg.AIRequestsPerSec),
	)
	if err != nil {
		return ai.SentimentSet{}, nil, err
	}
	return client.SentimentSet(), client, nil
}

func buildWatson(cfg config.Config) (ai.EntityExtractor, error) {
	if strings.TrimSpace(cfg.WatsonAPIKey) == "" {
		if !isDevLike(cfg.Env) {
			return nil, fmt.Errorf("IBM_WATSON_NLU_API_KEY is required")
		}
		log.Printf("bootstrap: IBM_WATSON_NLU_API_KEY empty; entity extraction disabled")
		return ai.Placeholder{}, nil
	}
	return watson.NewClient(cfg.WatsonAPIKey, cfg.WatsonURL, cfg.AICallTimeout)
}

func buildGranite(cfg config.Config) (ai.InsightSynthesizer, error) {
	if strings.TrimSpace(cfg.ReplicateToken) == "" {
		if !isDevLike(cfg.Env) {
			return nil, fmt.Errorf("REPLICATE_API_TOKEN is required")
		}
		log.Printf("bootstrap: REPLICATE_API_TOKEN empty; insight synthesis disabled")
		return ai.Placeholder{}, nil
	}
	return granite.NewClient(cfg.ReplicateToken, cfg.ReplicateModel, cfg.AICallTimeout)
}

func buildWorkflow(cfg config.Config) (orchestrate.WorkflowClient, error) {
	if strings.TrimSpace(cfg.OrchestrateAPIKey) == "" {
		if !isDevLike(cfg.Env) {
			return nil, fmt.Errorf("IBM_ORCHESTRATE_API_KEY is required")
		}
		log.Printf("bootstrap: IBM_ORCHESTRATE_API_KEY empty; workflow executions are logged only")
		return orchestrate.LogWorkflowClient{}, nil
	}
	return orchestrate.NewHTTPWorkflowClient(cfg.OrchestrateAPIKey, cfg.OrchestrateBaseURL, cfg.AICallTimeout)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
