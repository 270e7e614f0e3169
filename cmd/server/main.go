package main

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"antakshari-backend/internal/config"
	"antakshari-backend/internal/engine"
	"antakshari-backend/internal/httpapi"
	"antakshari-backend/internal/hub"
	"antakshari-backend/internal/room"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx := context.Background()
	h := hub.NewHub(ctx, room.Config{
		TurnTimeout: cfg.TurnTimeout,
		GraceDelay:  cfg.GraceDelay,
		Rules: engine.Rules{
			MaxPlayers: cfg.MaxPlayers,
			Points:     cfg.Points,
		},
	}, cfg.CodeLength, logger)

	// Build the router *with* the hub injected
	handler := httpapi.SetupRoutes(h, logger)

	logger.Info("listening", zap.String("addr", cfg.Addr))
	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
