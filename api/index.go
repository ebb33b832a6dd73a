package handler

import (
	"context"
	"net/http"
	"os"

	"github.com/arnavshah/dispatch-api-go/pkg/app"
	"github.com/arnavshah/dispatch-api-go/pkg/config"
	"github.com/joho/godotenv"
)

var (
	a       *app.App
	initErr error
)

func init() {
	// Load .env if it exists (for local testing with vercel dev)
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg, err := config.Load("")
	if err != nil {
		initErr = err
		return
	}
	logger := cfg.Logging.NewLogger(os.Stdout)
	a, initErr = app.New(context.Background(), cfg, logger)
	if initErr != nil {
		logger.Error("could not start service", "error", initErr)
	}
}

// Handler is the entry point for Vercel Go Runtime
func Handler(w http.ResponseWriter, r *http.Request) {
	if initErr != nil {
		http.Error(w, `{"error":"service unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	a.Router.ServeHTTP(w, r)
}
