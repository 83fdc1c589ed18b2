package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/DeafMist/kpop-radar/backend/internal/blacklist"
	"github.com/DeafMist/kpop-radar/backend/internal/cache"
	"github.com/DeafMist/kpop-radar/backend/internal/collector"
	"github.com/DeafMist/kpop-radar/backend/internal/config"
	"github.com/DeafMist/kpop-radar/backend/internal/elasticsearch"
	"github.com/DeafMist/kpop-radar/backend/internal/events"
	"github.com/DeafMist/kpop-radar/backend/internal/keywords"
	"github.com/DeafMist/kpop-radar/backend/internal/logger"
	"github.com/DeafMist/kpop-radar/backend/internal/metrics"
	"github.com/DeafMist/kpop-radar/backend/internal/models"
	"github.com/DeafMist/kpop-radar/backend/internal/scheduler"
	"github.com/DeafMist/kpop-radar/backend/internal/source"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("load .env", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	youtube, err := source.NewYouTube(ctx, cfg.YouTube.APIKey, source.Options{
		Endpoint: cfg.YouTube.Endpoint,
		Timeout:  cfg.UpstreamTimeout,
		RPS:      cfg.YouTube.RPS,
		Logger:   log,
		Metrics:  m,
	})
	if err != nil {
		log.Error("init youtube", slog.Any("err", err))
		os.Exit(1)
	}
	naver := source.NewNaver(cfg.Naver.ClientID, cfg.Naver.ClientSecret, source.Options{
		Endpoint: cfg.Naver.Endpoint,
		Timeout:  cfg.UpstreamTimeout,
		RPS:      cfg.Naver.RPS,
		Logger:   log,
		Metrics:  m,
	})

	normalizer := keywords.Default()
	pipeline := collector.New([]source.Adapter{youtube, naver}, normalizer,
		collector.WithLimit(models.SourceVideo, cfg.YouTube.MaxResults),
		collector.WithLimit(models.SourceNews, cfg.Naver.MaxResults),
		collector.WithConcurrency(cfg.CollectConcurrency),
		collector.WithLogger(log),
		collector.WithMetrics(m),
	)

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		log.Info("publishing reports to kafka", slog.String("topic", cfg.KafkaTopic))
	}
	defer publisher.Close()

	store, health, err := openBlacklist(ctx, cfg, log)
	if err != nil {
		log.Error("init blacklist", slog.Any("err", err))
		os.Exit(1)
	}

	reportCache := cache.New()
	tracked := make([]keywords.Input, 0, len(cfg.DefaultKeywords))
	for _, kw := range cfg.DefaultKeywords {
		tracked = append(tracked, keywords.Pair(normalizer.NormalizeString(kw)))
	}

	sched, err := scheduler.New(scheduler.Config{
		Collector: pipeline,
		Cache:     reportCache,
		Publisher: publisher,
		Metrics:   m,
		Logger:    log,
		Interval:  cfg.UpdateInterval,
		Keywords:  tracked,
	})
	if err != nil {
		log.Error("init scheduler", slog.Any("err", err))
		os.Exit(1)
	}
	if err := sched.Start(ctx); err != nil {
		log.Error("start scheduler", slog.Any("err", err))
		os.Exit(1)
	}

	srv := &server{
		log:        log,
		cache:      reportCache,
		refresher:  sched,
		normalizer: normalizer,
		blacklist:  store,
		keys: apiKeys{
			YouTube:     cfg.YouTube.APIKey != "",
			NaverID:     cfg.Naver.ClientID != "",
			NaverSecret: cfg.Naver.ClientSecret != "",
		},
		gatherer: reg,
		health:   health,
	}

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Live fetches on a cache miss query both sources in both languages.
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("api server starting", slog.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

// openBlacklist selects the configured blacklist backend. The returned health
// check is nil for the file backend.
func openBlacklist(ctx context.Context, cfg *config.API, log *slog.Logger) (blacklist.Store, func(context.Context) error, error) {
	if cfg.BlacklistBackend != config.BlacklistElasticsearch {
		log.Info("blacklist stored in file", slog.String("path", cfg.BlacklistPath))
		return blacklist.NewFileStore(cfg.BlacklistPath, log), nil, nil
	}

	es, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		return nil, nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := es.Ping(pingCtx); err != nil {
		return nil, nil, err
	}

	store, err := blacklist.NewESStore(ctx, es)
	if err != nil {
		return nil, nil, err
	}
	log.Info("blacklist stored in elasticsearch", slog.String("index", cfg.ElasticsearchIndex))
	return store, es.Health, nil
}
