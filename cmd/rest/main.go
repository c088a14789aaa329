package main

import (
	"context"
	"log"

	"ma-assistant/internal/bootstrap"
	"ma-assistant/internal/config"
	"ma-assistant/internal/server"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(cfg)
	if err != nil {
		log.Fatalf("Failed to bootstrap: %v", err)
	}
	defer container.Close()
	defer container.Logger.Sync()

	// 3. Start Role Handlers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	container.RunHandlers(ctx)

	// 4. Initialize and Run Server
	srv := server.New(cfg, container)
	log.Fatal(srv.Run())
}
