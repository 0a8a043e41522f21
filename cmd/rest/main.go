package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"deep-research-be/internal/bootstrap"
	"deep-research-be/internal/config"
	"deep-research-be/internal/server"
	"deep-research-be/internal/tracer"
	"deep-research-be/pkg/database"

	"gorm.io/gorm"
)

func main() {
	// 0. Initialize Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database (optional: the in-memory chunk store needs none)
	var gormDB *gorm.DB
	if cfg.App.StoreDriver == "postgres" {
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
		if err != nil {
			log.Panicf("Unable to connect to GORM DB: %v", err)
		}
		gormDB = db
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)

	// 4. Initialize Server
	srv := server.New(cfg, container)

	// 5. Graceful shutdown on SIGINT/SIGTERM
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down...")
		if err := srv.Shutdown(); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	// 6. Run Server
	if err := srv.Run(); err != nil {
		log.Fatal(err)
	}
}
