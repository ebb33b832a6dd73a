// Package app wires configuration, persistence, the dispatch service and the
// HTTP router together. Both the standalone server and the serverless entry
// point build through it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arnavshah/dispatch-api-go/pkg/auth"
	"github.com/arnavshah/dispatch-api-go/pkg/config"
	"github.com/arnavshah/dispatch-api-go/pkg/database"
	"github.com/arnavshah/dispatch-api-go/pkg/handlers"
	"github.com/arnavshah/dispatch-api-go/pkg/matching"
	"github.com/arnavshah/dispatch-api-go/pkg/service"
	"github.com/gin-gonic/gin"
)

// App is a ready-to-serve dispatch service
type App struct {
	Router  *gin.Engine
	Service *service.Service
	close   func() error
}

// New opens the store (unless disabled), restores persisted state and
// builds the router
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	gin.SetMode(cfg.Server.GinMode)

	opts := service.Options{
		Logger:          logger,
		LockTimeout:     cfg.Ledger.LockTimeout,
		RequireApproval: cfg.Ledger.RequireApproval,
		Matching: matching.Options{
			Weights:  cfg.Matching.Weights,
			TopK:     cfg.Matching.TopK,
			HalfLife: cfg.Matching.ProximityHalfLife,
			ETA:      matching.GreatCircle{SpeedKmh: cfg.Matching.AverageSpeedKmh},
		},
	}

	closer := func() error { return nil }
	if cfg.Database.Disabled {
		logger.Warn("persistence disabled, state is kept in memory only")
	} else {
		db, err := database.InitDB(cfg.Database)
		if err != nil {
			return nil, err
		}
		store := database.NewStore(db)
		opts.Store = store
		opts.Journal = store
		opts.Recorder = store
		closer = func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		}
		backend := "sqlite"
		if cfg.Database.URL != "" {
			backend = "postgres"
		}
		logger.Info("database ready", "backend", backend)
	}

	svc := service.New(opts)
	if err := svc.Restore(ctx); err != nil {
		_ = closer()
		return nil, fmt.Errorf("restore state: %w", err)
	}

	tokens := auth.NewTokens(cfg.Auth.JWTSecret)
	if cfg.Auth.RequireToken && !tokens.Enabled() {
		_ = closer()
		return nil, fmt.Errorf("auth.require_token is set but no JWT secret is configured")
	}

	router := handlers.NewRouter(&handlers.Handler{
		Svc:          svc,
		Tokens:       tokens,
		Logger:       logger,
		RequireToken: cfg.Auth.RequireToken,
	})
	return &App{Router: router, Service: svc, close: closer}, nil
}

// Close releases the database connection
func (a *App) Close() error {
	return a.close()
}
