package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"legalnexus/api/internal/access"
	"legalnexus/api/internal/app"
	"legalnexus/api/internal/blob"
	"legalnexus/api/internal/cache"
	"legalnexus/api/internal/config"
	"legalnexus/api/internal/logging"
	"legalnexus/api/internal/routing"
	"legalnexus/api/internal/search"
	"legalnexus/api/internal/store"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	version, err := store.ApplyMigrations(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}
	log.Info().Uint("version", version).Msg("schema up to date")

	db, err := store.Open(ctx, cfg.DatabaseURL, cfg.DBMaxOpenConns)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	dataStore := store.NewPostgresStore(db)
	readiness := map[string]app.Pinger{"database": dataStore}

	ruleCache, closeCache := newRuleCache(cfg, log, readiness)
	defer closeCache()

	var index search.Index
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, log)
		defer meiliClient.Close()
		index = meiliClient
	}
	searchService := search.NewService(index, search.NewPgFTS(db), dataStore, log)
	go searchService.ReindexAllFromPG(ctx)

	var signer access.DownloadSigner
	if strings.TrimSpace(cfg.MinIOEndpoint) != "" {
		files, err := blob.New(blob.Config{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
			LinkTTL:   cfg.DownloadURLTTL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("object storage setup failed")
		}
		signer = files
		readiness["storage"] = files
	} else {
		log.Info().Msg("object storage not configured; downloads disabled")
	}

	rules := routing.NewRuleService(dataStore, ruleCache, log)
	resolver := routing.NewResolver(dataStore, rules, routing.NewRoundRobin(dataStore), log)
	evaluator := access.NewEvaluator(dataStore, log)
	documents := access.NewDocumentService(dataStore, evaluator, searchService, searchService, signer, log)
	audit := access.NewAuditService(dataStore, cfg.AuditRetention, log)

	httpServer := app.NewHTTPServer(app.Services{
		Assigner:  resolver,
		Rules:     rules,
		Access:    evaluator,
		Documents: documents,
		Audit:     audit,
		Readiness: readiness,
	}, cfg.JWTSecret, cfg.CORSOrigin, log)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("LegalNexus API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}

// newRuleCache shares rules through Redis when REDIS_URL is set and keeps
// them in process otherwise.
func newRuleCache(cfg config.Config, log zerolog.Logger, readiness map[string]app.Pinger) (routing.RuleCache, func()) {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		local := cache.NewLocalRuleCache(cfg.RuleCacheSize, cfg.RuleCacheTTL)
		log.Warn().Int("size", cfg.RuleCacheSize).Dur("ttl", local.TTL()).
			Msg("REDIS_URL not set: rule cache is per instance, rule changes reach other instances only after the ttl")
		return local, func() {}
	}
	redisCache, err := cache.NewRedisRuleCache(cfg.RedisURL, cfg.RuleCacheTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	log.Info().Dur("ttl", cfg.RuleCacheTTL).Msg("using redis rule cache")
	readiness["redis"] = redisCache
	return redisCache, func() {
		if err := redisCache.Close(); err != nil {
			log.Warn().Err(err).Msg("close redis")
		}
	}
}
