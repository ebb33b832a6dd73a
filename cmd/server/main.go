package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arnavshah/dispatch-api-go/pkg/app"
	"github.com/arnavshah/dispatch-api-go/pkg/config"
	flag "github.com/spf13/pflag"
)

func main() {
	configPath := flag.StringP("config", "c", "", "path to a YAML config file (default $DISPATCH_CONFIG)")
	port := flag.StringP("port", "p", "", "port to listen on (overrides PORT)")
	memory := flag.Bool("memory", false, "keep all state in memory")
	flag.Parse()

	// Load .env if it exists
	// Try root and parent directories for flexibility
	config.LoadDotEnv()

	cfg, err := config.Load(*configPath)
	if err != nil {
		config.Default().Logging.NewLogger(os.Stderr).Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *memory {
		cfg.Database.Disabled = true
	}
	logger := cfg.Logging.NewLogger(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("could not start service", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("server starting", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("could not run server", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
