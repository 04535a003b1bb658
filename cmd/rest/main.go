package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"sdm-platform-be/internal/bootstrap"
	"sdm-platform-be/internal/config"
	"sdm-platform-be/internal/server"
	"sdm-platform-be/internal/tracer"
	"sdm-platform-be/pkg/database"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func main() {
	cfg := config.Load()

	shutdownTracer, err := tracer.Init(cfg.Otel)
	if err != nil {
		log.Printf("Warning: %v (tracing export disabled)", err)
	}
	defer shutdownTracer(context.Background())

	// No DSN means development mode with in-process stores.
	var gormDB *gorm.DB
	if cfg.Database.Connection != "" {
		db, err := database.Open(cfg.DatabaseOptions())
		if err != nil {
			log.Fatalf("Unable to connect to database: %v", err)
		}
		defer database.Close(db)
		gormDB = db
	}

	container, err := bootstrap.NewContainer(gormDB, cfg)
	if err != nil {
		log.Fatalf("Unable to bootstrap application: %v", err)
	}
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Println("Starting job consumer...")
		return container.JobConsumer.Run(gctx)
	})
	g.Go(func() error {
		return server.New(cfg, container).Run(gctx)
	})
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Printf("Stopped with error: %v", err)
	}
	log.Println("Shutdown complete")
}
