package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"ai-helpdesk-be/internal/bootstrap"
	"ai-helpdesk-be/internal/config"
	"ai-helpdesk-be/internal/server"
	"ai-helpdesk-be/internal/tracer"
	"ai-helpdesk-be/pkg/database"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database (optional: without it the bot answers from the model only)
	var gormDB *gorm.DB
	if cfg.Database.Connection != "" {
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection, cfg.App.Environment == "production")
		if err != nil {
			log.Panicf("Unable to connect to GORM DB: %v", err)
		}
		gormDB = db
	}

	// 3. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(gormDB, cfg)
	if err != nil {
		log.Fatalf("Failed to bootstrap: %v", err)
	}
	defer container.Close()

	shutdownTracer := tracer.InitTracer(tracer.Options{
		Enabled:     cfg.App.OtelEnabled,
		Endpoint:    cfg.App.OtelEndpoint,
		Environment: cfg.App.Environment,
		SampleRatio: cfg.App.OtelSampleRatio,
	}, container.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. Start Background Services
	if err := container.StartBackground(ctx); err != nil {
		container.Logger.Error("Main", "Escalation consumer failed to start", map[string]interface{}{"error": err.Error()})
	}

	// 5. Initialize Server
	srv := server.New(cfg, container)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Run)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownTracer(shutdownCtx)
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		container.Logger.Error("Main", "Server stopped with error", map[string]interface{}{"error": err.Error()})
	}
}
