package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/agentdeck/agentdeck/internal/bridge"
	"github.com/agentdeck/agentdeck/internal/codec"
	"github.com/agentdeck/agentdeck/internal/config"
	"github.com/agentdeck/agentdeck/internal/domain"
	"github.com/agentdeck/agentdeck/internal/opencode"
	"github.com/agentdeck/agentdeck/internal/server"
	"github.com/agentdeck/agentdeck/internal/storage"
	"github.com/agentdeck/agentdeck/internal/storage/memory"
	"github.com/agentdeck/agentdeck/internal/storage/sqlite"
	"github.com/agentdeck/agentdeck/internal/telemetry"
)

// reconnectDelay is the pause before re-subscribing after the event stream
// drops.
const reconnectDelay = 2 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.InitTracer("agentdeck", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, statErr := os.Stat(*configPath); statErr == nil {
		err = config.Watch(ctx, *configPath, logger, func(next *config.Config) {
			logger.Info("config change noted; restart to apply transport changes",
				slog.String("agent_base_url", next.Agent.BaseURL),
			)
		})
		if err != nil {
			logger.Warn("config watch unavailable", slog.String("error", err.Error()))
		}
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open session store: %v", err)
	}
	defer store.Close()

	var client *opencode.Client
	if cfg.Agent.BaseURL != "" {
		opts := []opencode.ClientOption{opencode.WithBaseURL(cfg.Agent.BaseURL)}
		if cfg.Agent.Directory != "" {
			opts = append(opts, opencode.WithDirectory(cfg.Agent.Directory))
		}
		client = opencode.NewClient(opts...)
	}

	bridgeOpts := []bridge.Option{
		bridge.WithStore(store),
		bridge.WithLogger(logger),
	}
	if client != nil {
		bridgeOpts = append(bridgeOpts, bridge.WithTransport(client))
	}
	if providerID, modelID, ok := cfg.Agent.ModelRef(); ok {
		bridgeOpts = append(bridgeOpts, bridge.WithModel(providerID, modelID))
	}
	b := bridge.New(bridgeOpts...)

	if client != nil {
		go consumeEvents(ctx, client, b, cfg.Agent.Directory, logger)
	} else {
		logger.Warn("agent endpoint not configured; running without a transport")
	}

	var creator server.SessionCreator
	if client != nil {
		creator = client
	}
	api := server.New(b, creator, store, logger)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.Handler(),
	}

	go func() {
		logger.Info("control api listening", slog.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		logger.Info("shutting down")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.String("error", err.Error()))
	}
}

func openStore(cfg *config.Config) (storage.SessionStore, error) {
	switch cfg.Storage.Type {
	case "memory":
		return memory.New(), nil
	case "sqlite", "":
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLite.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		return sqlite.New(cfg.Storage.SQLite.Path)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}

// consumeEvents subscribes to the agent event stream and feeds decoded
// events to the bridge in arrival order, reconnecting when the stream
// drops. Decoding runs here, off the bridge's lock; undecodable envelopes
// are skipped silently and the stream treated as uninterrupted.
func consumeEvents(ctx context.Context, client *opencode.Client, b *bridge.Bridge, directory string, logger *slog.Logger) {
	for {
		events, err := client.Events(ctx)
		if err != nil {
			logger.Warn("event stream unavailable", slog.String("error", err.Error()))
		} else {
			logger.Info("event stream connected")
			for result := range events {
				if result.Err != nil {
					logger.Warn("event stream broken", slog.String("error", result.Err.Error()))
					break
				}
				if event, ok := decodeAny(result.Raw, directory); ok {
					b.Handle(event)
				}
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

// decodeAny accepts both plain and directory-scoped envelopes, filtering
// scoped events that belong to another working directory.
func decodeAny(raw []byte, directory string) (domain.Event, bool) {
	if scoped, ok := codec.DecodeScoped(raw); ok {
		if directory != "" && scoped.Directory != "" && scoped.Directory != directory {
			return nil, false
		}
		return scoped.Event, true
	}
	return codec.Decode(raw)
}
