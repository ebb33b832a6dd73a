package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/arnavshah/dispatch-api-go/pkg/auth"
	"github.com/arnavshah/dispatch-api-go/pkg/config"
	flag "github.com/spf13/pflag"
)

func main() {
	actor := flag.StringP("actor", "a", "", "operator the token attributes actions to (required)")
	console := flag.String("console", "", "operator console the token is issued to")
	ttl := flag.Duration("ttl", auth.DefaultTTL, "token lifetime")
	configPath := flag.StringP("config", "c", "", "path to a YAML config file (default $DISPATCH_CONFIG)")
	flag.Parse()

	// Load .env from project root
	config.LoadDotEnv()

	if *actor == "" && flag.NArg() > 0 {
		*actor = flag.Arg(0)
	}
	if *actor == "" {
		fmt.Println("Usage: tokengen --actor <name> [--console <name>] [--ttl 24h] [--config dispatch.yaml]")
		os.Exit(1)
	}

	secret, err := signingSecret(*configPath)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	token, err := auth.NewTokens(secret).CreateToken(*actor, *console, *ttl)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated token for %s (expires %s):\n%s\n",
		*actor, time.Now().Add(*ttl).UTC().Format(time.RFC3339), token)
}

// signingSecret resolves the secret the server verifies tokens with, so a
// jwt_secret in the YAML config is honored as well as JWT_SECRET.
func signingSecret(configPath string) (string, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", err
	}
	if cfg.Auth.JWTSecret == "" {
		return "", errors.New("no jwt_secret in config and JWT_SECRET not found in environment or .env")
	}
	return cfg.Auth.JWTSecret, nil
}
