package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	pkgNats "deep-research-be/pkg/nats"
)

// Worker that tails research completion events off the NATS bus and logs
// them. Serves as the attachment point for archival or analytics handlers.
func main() {
	_ = godotenv.Load()

	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}

	sub, err := pkgNats.NewSubscriber(natsURL)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer sub.Close()

	err = sub.Subscribe("research.session.>", "completion-logger", func(ctx context.Context, subject string, event pkgNats.CompletionEvent) error {
		if event.Error != "" {
			log.Printf("[%s] run %s (session %s) failed: %s", subject, event.RunID, event.SessionID, event.Error)
			return nil
		}
		log.Printf("[%s] run %s (session %s): %d/%d units succeeded, finished at %s",
			subject, event.RunID, event.SessionID, event.Succeeded, event.TaskCount, event.FinishedAt.Format("2006-01-02 15:04:05"))
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to subscribe: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Worker shutting down")
}
