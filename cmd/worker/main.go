package main

// Run the automation job worker:
//   go run ./cmd/worker

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"feedback-backend/internal/bootstrap"
	"feedback-backend/internal/orchestrate"
	"feedback-backend/internal/shared/config"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}

	worker, err := orchestrate.NewWorker(app.OrchestrateService, cfg.WorkerPollEvery, cfg.WorkerConcurrency)
	if err != nil {
		log.Fatalf("build worker: %v", err)
	}

	log.Printf("worker started poll=%s concurrency=%d", cfg.WorkerPollEvery, cfg.WorkerConcurrency)
	worker.Run(ctx)
}
