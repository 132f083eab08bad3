package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/b3hniya/tenderd-fms-sub000/internal/auth"
	"github.com/b3hniya/tenderd-fms-sub000/internal/config"
	"github.com/b3hniya/tenderd-fms-sub000/internal/events"
	"github.com/b3hniya/tenderd-fms-sub000/internal/ingest"
	"github.com/b3hniya/tenderd-fms-sub000/internal/monitor"
	"github.com/b3hniya/tenderd-fms-sub000/internal/store"
	transport "github.com/b3hniya/tenderd-fms-sub000/internal/transport/http"
)

func main() {
	_ = godotenv.Load() // containers inject env directly
	cfg := config.Load()

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	live, err := store.NewLiveState(ctx, cfg)
	if err != nil {
		logger.Fatal("redis init failed", zap.Error(err))
	}
	defer live.Close()

	pg, err := store.NewPostgresStore(ctx, cfg, live, logger)
	if err != nil {
		logger.Fatal("postgres init failed", zap.Error(err))
	}
	defer pg.Close()

	handlers := []events.Handler{events.NewBroadcastHandler(live)}
	var analytics *events.AnalyticsHandler
	if len(cfg.KafkaBrokers) > 0 {
		analytics = events.NewAnalyticsHandler(cfg.KafkaBrokers, cfg.KafkaTopic)
		handlers = append(handlers, analytics)
		defer analytics.Close()
	}
	bus := events.NewBus(logger, handlers...)

	ingestor := ingest.New(pg, pg, bus, logger)
	mon := monitor.New(pg, bus, logger, cfg.SweepInterval)
	go mon.Run(ctx)

	authenticator := auth.NewAuthenticator(cfg, live)
	feed := transport.NewLiveFeed(live, logger)
	router := transport.NewRouter(
		transport.NewHandlers(ingestor, pg, live, logger),
		authenticator,
		feed,
	)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", zap.Error(err))
	}
	logger.Info("server exited")
}

func newLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.EncoderConfig.TimeKey = "timestamp"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := zcfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
