package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/File-Sharing-BondBridg/Publication-Images/internal/api"
	"github.com/File-Sharing-BondBridg/Publication-Images/internal/api/handlers"
	"github.com/File-Sharing-BondBridg/Publication-Images/internal/api/handlers/util"
	"github.com/File-Sharing-BondBridg/Publication-Images/internal/configuration"
	"github.com/File-Sharing-BondBridg/Publication-Images/internal/logging"
	"github.com/File-Sharing-BondBridg/Publication-Images/internal/metrics"
	"github.com/File-Sharing-BondBridg/Publication-Images/internal/storage"
	"github.com/File-Sharing-BondBridg/Publication-Images/internal/uploader"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	gintrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/gin-gonic/gin"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

const serviceName = "publication-images"

func main() {
	cfg, err := configuration.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg *configuration.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TraceEnabled {
		tracer.Start(tracer.WithService(serviceName))
		defer tracer.Stop()
	}

	backend, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	registry := storage.NewRegistry(backend.store)
	prometheus.MustRegister(metrics.RegistryCollector(registry.Count, func() int { return len(registry.Pending()) }))

	svc := uploader.NewService(registry, backend.store, logger, uploaderOptions(cfg))
	sub := svc.Watch(ctx)

	scanner, checks := buildScanner(cfg, logger, backend.checks)
	r := newRouter(cfg, handlers.NewFileHandler(registry, svc, scanner, logger), handlers.NewHealthHandler(checks))

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("store", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			sub.Stop()
			return err
		}
	}

	logger.Info("shutting down gracefully")
	sub.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newRouter(cfg *configuration.Config, files *handlers.FileHandler, health *handlers.HealthHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.TraceEnabled {
		r.Use(gintrace.Middleware(serviceName))
	}
	api.RegisterRoutes(r, files, health)
	return r
}

func buildScanner(cfg *configuration.Config, logger *zap.Logger, checks map[string]handlers.Check) (util.Scanner, map[string]handlers.Check) {
	if cfg.CLAMAVURL == "" {
		return util.NopScanner{}, checks
	}
	scanner := util.NewClamdScanner(cfg.CLAMAVURL, logger)
	checks["clamav"] = scanner.CheckConnection
	return scanner, checks
}

func uploaderOptions(cfg *configuration.Config) uploader.Options {
	opts := uploader.DefaultOptions()
	opts.SmallBound = cfg.Thumbnails.SmallBound
	opts.LargeBound = cfg.Thumbnails.LargeBound
	opts.Quality = cfg.Thumbnails.Quality
	opts.WriteTimeout = cfg.WriteTimeout
	opts.BackoffInitial = cfg.Watch.BackoffInitial
	opts.BackoffMax = cfg.Watch.BackoffMax
	return opts
}
