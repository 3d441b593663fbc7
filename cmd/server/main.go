package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"analytics/internal/app"
)

func main() {
	application, err := app.NewApp()
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		log.Fatalf("Server stopped with error: %v", err)
	}
}
