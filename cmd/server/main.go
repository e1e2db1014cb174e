package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	router "github.com/dkeye/liveshow/internal/adapters/http"
	sig "github.com/dkeye/liveshow/internal/adapters/signal"
	"github.com/dkeye/liveshow/internal/app"
	"github.com/dkeye/liveshow/internal/app/orch"
	"github.com/dkeye/liveshow/internal/app/translate"
	"github.com/dkeye/liveshow/internal/config"
	"github.com/dkeye/liveshow/internal/domain"
	"github.com/dkeye/liveshow/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Console logger first so config.Load can report.
	logging.Init(logging.Config{Level: "info", Pretty: true})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})

	langs, err := domain.NewLanguages(cfg.Languages.Base, cfg.Languages.Supported)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid languages")
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid show timezone")
	}

	cache, closeCache := buildCache(cfg)
	defer closeCache()

	var provider translate.Provider
	if cfg.Translation.URL != "" {
		provider = translate.NewHTTPProvider(cfg.Translation.URL, cfg.Translation.APIKey, cfg.Translation.Timeout)
	} else {
		log.Warn().Msg("translation.url not set, chat is relayed untranslated")
	}
	translator := translate.NewDispatcher(provider, cache, langs, translate.Options{
		MaxTextLength: cfg.Translation.MaxTextLength,
		Timeout:       cfg.Translation.Timeout,
	})

	hub := sig.NewHub(sig.PolicyByName(cfg.Signal.Backpressure))
	sessions := app.NewRegistry(langs)
	rooms := app.NewRoomRegistry(sessions, hub, loc)

	o := orch.New(sessions, rooms, translator, hub, orch.Options{
		ICEServers:  cfg.ICEServers(),
		MaxParallel: cfg.Translation.MaxParallel,
	})
	loopCtx, stopLoop := context.WithCancel(context.Background())
	go o.Run(loopCtx)

	ctl := sig.NewSignalWSController(hub, o, sig.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		ReadLimit:      cfg.ReadLimit,
		PingPeriod:     cfg.PingPeriod,
		SendBuffer:     cfg.Signal.SendBuffer,
		RateLimit:      cfg.RateLimit.Events,
		RateInterval:   cfg.RateLimit.Interval,
	})

	r := router.SetupRouter(ctx, cfg, ctl, rooms, langs)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Str("base_language", langs.Base()).Strs("languages", langs.List()).
			Bool("translation", translator.Enabled()).Msg("liveshow server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	hub.CloseAll()
	stopLoop()
	<-o.Done()
	o.Close()
	log.Info().Msg("Server exited gracefully")
}

// buildCache returns the translation cache and its cleanup. A redis cache that
// cannot be reached falls back to memory only.
func buildCache(cfg *config.Config) (translate.Cache, func()) {
	local := translate.NewLRUCache(cfg.Translation.Cache.Size, cfg.Translation.Cache.TTL)
	if cfg.Translation.Cache.Driver != config.CacheRedis {
		return local, func() {}
	}
	shared, err := translate.NewRedisCache(translate.RedisConfig{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.Prefix,
		TTL:      cfg.Translation.Cache.TTL,
	})
	if err != nil {
		log.Error().Err(err).Str("address", cfg.Redis.Address).Msg("redis unavailable, translation cache is local")
		return local, func() {}
	}
	return &translate.Tiered{Local: local, Shared: shared}, func() {
		if err := shared.Close(); err != nil {
			log.Warn().Err(err).Msg("close redis cache")
		}
	}
}
