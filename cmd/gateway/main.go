package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"drivermonitor/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gw, err := app.NewGateway()
	if err != nil {
		log.Fatalf("Failed to start gateway: %v", err)
	}

	if err := gw.Run(ctx); err != nil {
		log.Fatalf("Gateway stopped with error: %v", err)
	}
}
