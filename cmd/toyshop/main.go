package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/avc/toyshop/internal/app"
	"github.com/avc/toyshop/internal/config"
)

// @title Toyshop API
// @version 1.0
// @description Toy shop with Tocoin balances, card receipts and admin settlement.
// @BasePath /
// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := application.Run(ctx); err != nil {
		log.Fatalf("Failed to run application: %v", err)
	}
}
