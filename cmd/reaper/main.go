package main

import (
	"context"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"

	"staffdesk/internal/app"
	"staffdesk/internal/auth"
	"staffdesk/internal/config"
	"staffdesk/internal/maintenance"
	"staffdesk/internal/observability"
)

// Out-of-band reaper entrypoint for cron. Purges ledger records past the
// grace window and prints how many were removed.
func main() {
	logger := observability.NewLogger()

	cfg, err := config.Load(true)
	if err != nil {
		logger.Error("reaper_config_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	database, err := app.OpenDatabase(cfg)
	if err != nil {
		logger.Error("reaper_database_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer database.Close()

	repo := auth.NewRepository(database)
	reaper := maintenance.NewReaper(repo, repo, cfg.Tokens.LedgerGrace, logger)

	result, err := reaper.Run(context.Background())
	if err != nil {
		logger.Error("reaper_run_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	fmt.Printf("Successfully deleted %d expired tokens\n", result.PurgedAccessRecords)
}
