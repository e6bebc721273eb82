package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	_ "time/tzdata"

	"NewsOnboarding/internal/app"
	"NewsOnboarding/internal/config"
	"NewsOnboarding/internal/logging"
)

func main() {
	once := flag.Bool("once", os.Getenv("RUN_ONCE") == "1", "run a single batch refresh and exit")
	now := flag.Bool("now", os.Getenv("RUN_NOW") == "1", "run a refresh immediately, then keep the schedule")
	force := flag.Bool("force", false, "with --once, replace the active batch even if unexpired")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("application init failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	if *once {
		if err := application.RunOnce(ctx, *force); err != nil {
			logger.Error("batch refresh failed", "error", err)
			application.Close()
			os.Exit(1)
		}
		return
	}

	if err := application.Run(ctx, *now); err != nil {
		logger.Error("application stopped", "error", err)
		application.Close()
		os.Exit(1)
	}
}
