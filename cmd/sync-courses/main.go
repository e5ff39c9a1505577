package main

import (
	"context"
	"flag"
	"log/slog"
	"time"

	"teetime/internal/clock"
	"teetime/internal/config"
	"teetime/internal/database"
	"teetime/internal/logger"
	"teetime/internal/repository"
	"teetime/internal/search"
	"teetime/internal/service"
)

func main() {
	var since time.Duration
	flag.DurationVar(&since, "since", 0, "Only reindex courses updated within this window (0 = all courses)")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Starting course synchronization", "index", cfg.Elasticsearch.Index)

	ctx := context.Background()

	// Connect to database
	slog.Info("Connecting to database")
	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	index, err := search.NewCourseIndex(cfg.Elasticsearch)
	if err != nil {
		logger.Fatal("Failed to connect to Elasticsearch", "error", err)
	}

	clk := clock.NewSystem()
	repos := repository.NewRepositories(db, clk)
	courses := service.NewCourseService(repos.Courses, repos.Slots, nil, index)

	var from time.Time
	if since > 0 {
		from = clk.Now().Add(-since)
	}

	start := time.Now()
	indexed, err := courses.Reindex(ctx, from)
	if err != nil {
		logger.Fatal("Course synchronization failed", "error", err, "indexed", indexed)
	}

	slog.Info("Course synchronization completed",
		"courses_indexed", indexed,
		"duration", time.Since(start).String())
}
