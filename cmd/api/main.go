package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"contestvote/internal/app/bootstrap"

	"github.com/joho/godotenv"
)

// API process entrypoint.
// Data flow:
// 1) Load .env (optional) and config.
// 2) Build app wiring (ports + adapters + use cases).
// 3) Start HTTP server, results refresher and, when enabled, the embedded
//    outbox relay.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	log.Println("contestvote api starting")

	app, err := bootstrap.BuildAPI()
	if err != nil {
		log.Fatalf("bootstrap api failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("api shutdown close failed: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		log.Printf("contestvote api stopped with error: %v", err)
	}
}
