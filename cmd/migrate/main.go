package main

// Applies pending schema migrations and exits:
//   go run ./cmd/migrate

import (
	"context"
	"log"
	"os"

	"feedback-backend/internal/shared/config"
	"feedback-backend/internal/shared/storage/db"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	opts := db.OptionsFromEnv(db.DefaultMigrateOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		log.Printf("migrate: connect: %v", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		log.Printf("migrate: apply: %v", err)
		os.Exit(1)
	}
	log.Printf("migrate: schema up to date")
}
