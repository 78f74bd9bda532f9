// HTTP API баллов: начисление, списание, баланс, webhook
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/glkeru/loyalty/ledger/internal/api"
	config "github.com/glkeru/loyalty/ledger/internal/config"
	db "github.com/glkeru/loyalty/ledger/internal/db"
	whatsapp "github.com/glkeru/loyalty/ledger/internal/external/whatsapp"
	interf "github.com/glkeru/loyalty/ledger/internal/interfaces"
	services "github.com/glkeru/loyalty/ledger/internal/services"
	otel "github.com/glkeru/loyalty/ledger/observability/otel"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// log
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// config
	cfg := config.Load()
	if cfg.Port == "" {
		panic("env LEDGER_PORT is not set")
	}
	metricsPort := cfg.MetricsPort
	if metricsPort == "" {
		metricsPort = "9090"
	}

	// tracing
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	shutdownTracer := otel.InitTracer(ctx)
	defer shutdownTracer()

	// database
	var storage interf.LedgerStorage
	dt, err := db.NewLedgerDB(cfg.MongoURI, cfg.MongoDatabase, logger)
	if err != nil {
		panic(err)
	}
	storage = dt

	// cache
	var cache interf.CacheStorage
	cacheService, err := db.NewCacheService(cfg.CacheAddr, cfg.CacheUser, cfg.CachePassword)
	if err != nil {
		logger.Error(err.Error())
	} else {
		cache = cacheService
	}

	// notifications
	var notify interf.Notifier
	sender, err := whatsapp.NewSender(cfg.WhatsAppToken, cfg.PhoneNumberID, logger)
	if err != nil {
		logger.Error(err.Error())
	} else {
		notify = sender
	}

	// api handlers
	serv := services.NewLedgerService(logger, storage, cache)
	handler := api.NewHandler(serv, notify, logger, cfg.VerifyToken, cfg.RestaurantID)
	srv := &http.Server{
		Handler:      otelhttp.NewHandler(handler, "ledger"),
		Addr:         ":" + cfg.Port,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	// metrics
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Handler: metricsMux,
		Addr:    ":" + metricsPort,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := metricsSrv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	// shutdown
	g.Go(func() error {
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
		select {
		case <-interrupt:
		case <-gctx.Done():
		}
		timeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(timeout)
		return srv.Shutdown(timeout)
	})

	if err := g.Wait(); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
