package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/wirechat/wirechat/memory"
	"github.com/wirechat/wirechat/model"
	"github.com/wirechat/wirechat/observability"
	"github.com/wirechat/wirechat/server"
)

// apiKeyEnv names the environment variable carrying the upstream API key.
// The key never lives in the config file.
const apiKeyEnv = "WIRECHAT_API_KEY"

const shutdownGrace = 10 * time.Second

func main() {
	var (
		configFile   = flag.String("config", "", "Path to gateway config JSON file")
		addr         = flag.String("addr", "", "Listen address (overrides config)")
		modelName    = flag.String("model", "", "Default model name (overrides config)")
		strategy     = flag.String("strategy", "", "Memory strategy: buffer, window, summary, summary_window, entity (overrides config)")
		observerName = flag.String("observer", "slog", "Observer for gateway events: slog or noop")
		verbose      = flag.Bool("verbose", false, "Enable verbose logging to stderr")
	)
	flag.Parse()

	cfg := DefaultConfig()
	if *configFile != "" {
		loaded, err := LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = *loaded
	}

	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *modelName != "" {
		cfg.Model.Model = *modelName
	}
	if *strategy != "" {
		cfg.Memory.Strategy = memory.Kind(*strategy)
	}

	// A local .env is a development convenience; the environment wins.
	godotenv.Load()
	cfg.Model.APIKey = os.Getenv(apiKeyEnv)

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	observability.RegisterObserver("slog", observability.NewSlogObserver(logger))
	observer, err := observability.GetObserver(*observerName)
	if err != nil {
		log.Fatalf("Failed to select observer: %v", err)
	}

	client, err := model.NewClient(&cfg.Model)
	if err != nil {
		log.Fatalf("Failed to create model client: %v", err)
	}

	compactor := model.NewCompactor(client, cfg.Model.Model)
	store, err := memory.NewStore(&cfg.Memory, compactor)
	if err != nil {
		log.Fatalf("Failed to create memory store: %v", err)
	}
	store.OnEvict(func(sessionID string) {
		observer.OnEvent(context.Background(), observability.Event{
			Type:      server.EventSessionEvicted,
			Level:     observability.LevelInfo,
			Timestamp: time.Now(),
			Source:    "memory.Store",
			Data:      map[string]any{"session_id": sessionID},
		})
	})

	gateway, err := server.New(&cfg.Server, store, client,
		server.WithObserver(observer),
		server.WithRegisterer(prometheus.DefaultRegisterer),
	)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", gateway)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("gateway listening", "addr", cfg.Server.Addr, "strategy", string(cfg.Memory.Strategy))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()

		gateway.Shutdown(shutdownCtx)
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Fatalf("Gateway exited: %v", err)
	}
}
