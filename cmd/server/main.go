package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/david/assembly-tracker/internal/api"
	"github.com/david/assembly-tracker/internal/app"
	"github.com/david/assembly-tracker/internal/config"
	"github.com/david/assembly-tracker/internal/refresh"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	scheduler, err := a.Scheduler()
	if err != nil {
		log.Fatalf("Failed to build scheduler: %v", err)
	}

	log.Printf("Preloading data for %s in background...", cfg.Member.Name)
	scheduler.Preload(ctx)

	if interval := cfg.Refresh.SummaryRetryInterval; interval > 0 {
		go refresh.RunPeriodic(ctx, "SummaryRetry", interval, func(ctx context.Context) error {
			n, err := a.Retrier.RetryFailed(ctx)
			if n > 0 {
				log.Printf("[SummaryRetry] regenerated %d summaries", n)
			}
			return err
		})
	}

	srv, err := api.NewServer(api.Options{
		Datasets:      scheduler,
		Retrier:       a.Retrier,
		DefaultMember: cfg.Member.Name,
		AdminSecret:   cfg.Server.AdminSecret,
		CORSOrigins:   cfg.Server.CORSOrigins,
		JobTimeout:    cfg.Refresh.Timeout,
	})
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("Server starting on port %s...", cfg.Server.Port)
	if err := srv.Start(cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
