package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"drivermonitor/internal/config"
	"drivermonitor/internal/gateway"
	"drivermonitor/internal/logger"
)

// Gateway relays dashboard frames to the model server.
type Gateway struct {
	config *config.Config
	logger *logger.Logger
	server *http.Server
}

func NewGateway() (*Gateway, error) {
	cfg := config.Load()
	if err := cfg.ValidateGateway(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.NewLogger(cfg)
	client := gateway.NewClient(cfg)

	return &Gateway{
		config: cfg,
		logger: log,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.GatewayPort),
			Handler:           gateway.SetupRoutes(client, cfg, log),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run serves until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) error {
	defer g.logger.Close()

	g.logger.Info("Gateway listening on http://localhost:%d", g.config.GatewayPort)
	g.logger.Info("Model server: %s", g.config.ModelServerURL)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- g.server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return g.server.Shutdown(shutdownCtx)
	}
}
