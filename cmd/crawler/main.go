package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"LectureCrawler/internal/app"
	"LectureCrawler/internal/scheduler"
	"LectureCrawler/internal/server"
	"LectureCrawler/pkg/config"
)

func main() {
	task := flag.String("task", "crawl", "Task to run: crawl, serve, or schedule")
	configPath := flag.String("config", "config.yml", "Path to the YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	initLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialise application", "error", err)
		os.Exit(1)
	}

	slog.Info("running task", "task", *task, "domain", cfg.Crawler.Domain)

	code := run(ctx, *task, application, cfg)
	if err := application.Close(); err != nil {
		slog.Warn("failed to close database", "error", err)
	}
	os.Exit(code)
}

func run(ctx context.Context, task string, application *app.App, cfg *config.Config) int {
	switch task {
	case "crawl":
		resp, err := application.Handle(ctx, nil)
		slog.Info("crawl finished", "statusCode", resp.StatusCode, "body", resp.Body)
		if err != nil {
			return 1
		}

	case "serve":
		if err := server.Start(ctx, application, application.Repo, cfg); err != nil {
			slog.Error("HTTP server error", "error", err)
			return 1
		}

	case "schedule":
		s := scheduler.New(application, cfg.Scheduler.Spec, cfg.Scheduler.RunOnStart)
		if err := s.Start(ctx); err != nil {
			slog.Error("failed to start scheduler", "error", err)
			return 1
		}
		<-ctx.Done()
		slog.Info("shutdown signal received")
		<-s.Stop().Done()

	default:
		slog.Error("unknown task", "task", task)
		return 2
	}
	return 0
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
