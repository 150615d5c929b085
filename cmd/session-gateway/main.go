// ABOUTME: Entry point for the session-gateway server
// ABOUTME: Wires the stores, engines, sweeper, and HTTP surface together

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/session-gateway/internal/cloudapi"
	"github.com/2389/session-gateway/internal/config"
	"github.com/2389/session-gateway/internal/dedupe"
	"github.com/2389/session-gateway/internal/metrics"
	"github.com/2389/session-gateway/internal/outbound"
	"github.com/2389/session-gateway/internal/session"
	"github.com/2389/session-gateway/internal/store"
	"github.com/2389/session-gateway/internal/sweeper"
	"github.com/2389/session-gateway/internal/webhook"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                        _                          _
  ___  ___  ___ ___(_) ___  _ __         __ _ __ _| |_ _____      ____ _ _   _
 / __|/ _ \/ __/ __| |/ _ \| '_ \ _____ / _' / _' | __/ _ \ \ /\ / / _' | | | |
 \__ \  __/\__ \__ \ | (_) | | | |_____| (_| (_| | ||  __/\ V  V / (_| | |_| |
 |___/\___||___/___/_|\___/|_| |_|      \__, \__,_|\__\___| \_/\_/ \__,_|\__, |
                                        |___/                            |___/
`

// getConfigPath returns the path to the gateway config file.
// Priority: SESSIONGW_CONFIG env var > XDG_CONFIG_HOME/session-gateway/gateway.yaml
// > ~/.config/session-gateway/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("SESSIONGW_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "session-gateway", "gateway.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: session-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve     Start the gateway server")
		fmt.Println("  health    Check gateway health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("initializing store: %w", err)
	}
	defer db.Close()

	sessions := session.NewEngine(db, cfg.Sessions.Window, logger)
	engine := dedupe.New(db, cfg.Dedupe.TTL, logger)

	sweep := sweeper.New(db, cfg.Sweeper.Interval, cfg.Sweeper.Retention, logger)
	sweep.Start()
	defer sweep.Close()

	gateway := cloudapi.New(cfg.Gateway.BaseURL, cfg.Gateway.PhoneNumberID, cfg.Gateway.AccessToken, logger)
	sender := outbound.NewSender(gateway, sessions, logger)
	receiver := webhook.NewReceiver(engine, sessions, cfg.Gateway.VerifyToken, logger)

	mux := http.NewServeMux()
	mux.Handle("/webhook", receiver)
	sender.RegisterRoutes(mux)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok"}`)
	})
	if cfg.Metrics.Enabled {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		mux.Handle(path, metrics.Handler())
	}

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	green := color.New(color.FgGreen)
	green.Printf("  listening on %s\n\n", cfg.Server.HTTPAddr)
	logger.Info("session-gateway started", "addr", cfg.Server.HTTPAddr, "db", cfg.Database.Path)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	return nil
}

func runHealth(ctx context.Context) error {
	addr := os.Getenv("SESSIONGW_HTTP")
	if addr == "" {
		addr = "http://localhost:8080"
	}
	if !strings.HasPrefix(addr, "http") {
		addr = "http://" + addr
	}

	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, addr+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("checking health: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway unhealthy: status %d", resp.StatusCode)
	}

	color.Green("healthy: %s", strings.TrimSpace(string(body)))
	return nil
}

// setupLogger builds the process logger from config.
// Level defaults to info, format to text.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
