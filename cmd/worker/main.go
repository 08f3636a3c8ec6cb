package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"contestvote/internal/app/bootstrap"

	"github.com/joho/godotenv"
)

// Worker process entrypoint.
// Data flow:
// 1) Load .env (optional) and config.
// 2) Build app wiring.
// 3) Relay ballot outbox rows to the event bus until stopped.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	log.Println("contestvote worker starting")

	app, err := bootstrap.BuildWorker()
	if err != nil {
		log.Fatalf("bootstrap worker failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("worker shutdown close failed: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		log.Printf("contestvote worker stopped with error: %v", err)
	}
}
