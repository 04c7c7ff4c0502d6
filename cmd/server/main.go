package main

import (
	"context"
	"net/http"
	"os"

	"github.com/mediagrab/backend/internal/api"
	"github.com/mediagrab/backend/internal/cache"
	"github.com/mediagrab/backend/internal/config"
	apperrors "github.com/mediagrab/backend/internal/errors"
	"github.com/mediagrab/backend/internal/fetch"
	"github.com/mediagrab/backend/internal/health"
	"github.com/mediagrab/backend/internal/job"
	"github.com/mediagrab/backend/internal/logger"
	"github.com/mediagrab/backend/internal/metrics"
	"github.com/mediagrab/backend/internal/pipeline"
	"github.com/mediagrab/backend/internal/reaper"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()

	log := logger.New(os.Stdout, logger.ParseLevel(cfg.LogLevel), "server")
	logger.SetDefault(log)

	ctx := context.Background()

	if err := os.MkdirAll(cfg.DownloadRoot, 0o755); err != nil {
		log.Error(ctx, "failed to create download root", err, map[string]interface{}{
			"path": cfg.DownloadRoot,
		})
		os.Exit(1)
	}

	m := metrics.Default()

	var infoCache *cache.Cache
	if cfg.RedisAddr != "" {
		var err error
		infoCache, err = cache.New(cfg.RedisAddr, cfg.InfoCacheTTL, log)
		if err != nil {
			log.Warn(ctx, "cache unavailable, continuing without it", map[string]interface{}{
				"addr":  cfg.RedisAddr,
				"error": err.Error(),
			})
			infoCache = nil
		} else {
			defer infoCache.Close()
		}
	}

	store := job.NewStore()
	fetcher := fetch.NewYTDLP(cfg.YtdlpPath)
	transcoder := pipeline.NewTranscoder(cfg.FFmpegPath, log)
	worker := pipeline.NewWorker(store, fetcher, transcoder, cfg.DownloadRoot, config.CommonHeaders(), log, m)

	sweeper := reaper.New(store, cfg.DownloadRoot, cfg.ReaperInterval, cfg.RetentionAge, log, m)
	go sweeper.Run(ctx)

	checker := health.NewChecker(&health.CheckerConfig{
		YtdlpPath:    cfg.YtdlpPath,
		FFmpegPath:   cfg.FFmpegPath,
		DownloadRoot: cfg.DownloadRoot,
		Cache:        infoCache,
		Version:      version,
	})

	router := api.NewRouter(
		api.NewDownloadHandlers(store, worker, log),
		api.NewInfoHandlers(fetcher, infoCache, m, log),
		api.NewWSHandlers(store, m, log),
		health.NewHandler(checker),
		m,
	)

	var handler http.Handler = router
	handler = metrics.Middleware(m)(handler)
	handler = logger.LoggingMiddleware(handler)
	handler = logger.RecoveryMiddleware(handler)
	handler = apperrors.RequestIDMiddleware(handler)

	log.Info(ctx, "server starting", map[string]interface{}{
		"addr":          cfg.ServerAddr,
		"download_root": cfg.DownloadRoot,
		"version":       version,
	})
	if err := http.ListenAndServe(cfg.ServerAddr, handler); err != nil {
		log.Error(ctx, "server failed", err)
		os.Exit(1)
	}
}
