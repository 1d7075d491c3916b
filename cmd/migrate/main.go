package main

// Run database migrations:
//   go run ./cmd/migrate          apply pending migrations
//   go run ./cmd/migrate status   print applied state

import (
	"context"
	"flag"
	"fmt"
	"os"

	"docanalysis-backend/internal/shared/config"
	"docanalysis-backend/internal/shared/storage/db"
	"docanalysis-backend/internal/shared/telemetry"
)

func main() {
	flag.Parse()
	os.Exit(run(config.Load(), flag.Args()))
}

func run(cfg config.Config, args []string) int {
	closeLogs, err := telemetry.Setup(telemetry.Options{Level: cfg.LogLevel, FilePath: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "telemetry setup: %v\n", err)
		return 1
	}
	defer closeLogs()

	command := "up"
	if len(args) > 0 {
		command = args[0]
	}
	if command != "up" && command != "status" {
		telemetry.Error("migrate.unknown_command", map[string]any{"command": command})
		return 2
	}

	ctx := context.Background()
	sqlDB, err := db.Open(ctx, cfg.DatabaseURL, db.RoleMigrate)
	if err != nil {
		telemetry.Error("migrate.connect_failed", map[string]any{"error": err})
		return 1
	}
	defer sqlDB.Close()

	if command == "status" {
		err = db.MigrationStatus(ctx, sqlDB)
	} else {
		err = db.RunMigrations(ctx, sqlDB)
	}
	if err != nil {
		telemetry.Error("migrate.failed", map[string]any{"command": command, "error": err})
		return 1
	}
	telemetry.Info("migrate.done", map[string]any{"command": command})
	return 0
}
