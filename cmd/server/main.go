package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"docmentor/internal/app"
	"docmentor/internal/config"
	"docmentor/internal/engine"
	"docmentor/internal/ratelimit"
	"docmentor/internal/server"
	"docmentor/internal/util"
	"docmentor/pkg/ai"
	"docmentor/pkg/storage"
	"docmentor/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := util.InitLogger(cfg.LogLevel)

	generator, err := newGenerator(cfg)
	if err != nil {
		fatal(logger, "failed to init model provider", err)
	}

	st, err := newStore(cfg)
	if err != nil {
		fatal(logger, "failed to init store", err)
	}

	var archive storage.ObjectStore
	if cfg.MinioEndpoint != "" {
		archive, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			fatal(logger, "failed to init object store", err)
		}
	}

	appCore, err := app.New(app.Config{
		Store:   st,
		Engine:  engine.New(generator),
		Archive: archive,
	})
	if err != nil {
		fatal(logger, "failed to init app", err)
	}

	var limiter *ratelimit.FixedWindowLimiter
	if cfg.RateLimitPerMinute > 0 {
		limiter, err = ratelimit.NewRedisFixedWindowLimiter(
			cfg.RedisAddr, cfg.RedisPassword, "", cfg.RateLimitPerMinute, time.Minute)
		if err != nil {
			fatal(logger, "failed to init rate limiter", err)
		}
	}

	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxyList())
	if err != nil {
		fatal(logger, "failed to parse trusted proxies", err)
	}

	httpServer, err := server.New(server.Config{
		App:            appCore,
		Limiter:        limiter,
		TrustedProxies: trustedProxies,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
	if err != nil {
		fatal(logger, "failed to init server", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", addr, "provider", cfg.Provider)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.RetentionHours > 0 {
		if pruner, ok := st.(store.Pruner); ok {
			g.Go(func() error {
				runRetentionSweeper(gctx, pruner,
					time.Duration(cfg.RetentionHours)*time.Hour,
					time.Duration(cfg.RetentionSweepMins)*time.Minute)
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}

// runRetentionSweeper periodically removes records older than ttl.
func runRetentionSweeper(ctx context.Context, pruner store.Pruner, ttl, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := pruner.PruneOlderThan(time.Now().UTC().Add(-ttl))
			if err != nil {
				slog.Warn("retention sweep failed", "err", err)
				continue
			}
			if removed > 0 {
				slog.Info("retention sweep", "removed", removed)
			}
		}
	}
}

func newGenerator(cfg config.FileConfig) (ai.TextGenerator, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		client, err := ai.NewGeminiClient(cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		return ai.NewGeminiGenerator(client, cfg.GenerationModel), nil
	case config.ProviderOllama:
		return ai.NewOllamaGenerator(ai.NewOllamaClient(cfg.OllamaBaseURL), cfg.GenerationModel), nil
	case config.ProviderOpenAI:
		return ai.NewOpenAICompatGenerator(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.GenerationModel), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func newStore(cfg config.FileConfig) (store.Store, error) {
	if cfg.DatabaseURL != "" {
		return store.NewGormStore(cfg.DatabaseURL)
	}
	return store.NewMemoryStore(), nil
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "err", err)
	os.Exit(1)
}
