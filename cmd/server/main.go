package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/Simplici0/cotizador/internal/config"
	"github.com/Simplici0/cotizador/internal/db"
	"github.com/Simplici0/cotizador/internal/migrations"
	"github.com/Simplici0/cotizador/internal/obs"
	"github.com/Simplici0/cotizador/internal/quotes"
	"github.com/Simplici0/cotizador/internal/seed"
)

const (
	metricsNamespace = "cotizador"
	shutdownTimeout  = 10 * time.Second
	persistTimeout   = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("load config")
	}
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("app", "cotizador").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer database.Close()

	if err := migrations.Up(database); err != nil {
		logger.Fatal().Err(err).Msg("failed to run database migrations")
	}
	stats, err := seed.Run(ctx, database, cfg.Policy())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to seed pricing policy")
	}
	logger.Info().Int("inserts", stats.Inserts).Int("updates", stats.Updates).Msg("seed complete")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := obs.NewQuoteMetrics(metricsNamespace, reg)

	store := quotes.NewStore(database)
	var persister quotes.Persister = quotes.SyncPersister{Store: store}
	if cfg.RedisAddr != "" {
		client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer client.Close()
		persister = quotes.TaskPersister{Client: client, MaxRetry: cfg.PersistMaxRetry, Timeout: persistTimeout}
		logger.Info().Str("redis_addr", cfg.RedisAddr).Msg("quotation writes go through the worker queue")
	}

	svc, err := quotes.NewService(quotes.ServiceConfig{
		Store:         store,
		Persister:     persister,
		Metrics:       metrics,
		Logger:        logger,
		DraftDebounce: cfg.RecalcDebounce,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build quote service")
	}
	defer svc.Close()

	srv := &server{svc: svc, db: database, logger: logger}
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           newRouter(srv, reg, cfg.IsDev()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		logger.Fatal().Err(err).Str("addr", httpServer.Addr).Msg("listen")
	}
	logger.Info().Str("addr", httpServer.Addr).Str("env", cfg.AppEnv).Msg("listening")
	if err := serve(ctx, httpServer, ln, shutdownTimeout); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		return
	}
	logger.Info().Msg("server stopped")
}

// serve runs srv on ln until ctx is done. It returns only once Shutdown has drained in-flight requests.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, timeout time.Duration) error {
	shutdownDone := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		shutdownDone <- srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-shutdownDone
}
