package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/modelstack/driftwatch/internal/api"
	"github.com/modelstack/driftwatch/internal/cache"
	"github.com/modelstack/driftwatch/internal/config"
	"github.com/modelstack/driftwatch/internal/engine"
	"github.com/modelstack/driftwatch/internal/metrics"
	"github.com/modelstack/driftwatch/internal/models"
	"github.com/modelstack/driftwatch/internal/repo"
	"github.com/modelstack/driftwatch/internal/schema"
	"github.com/modelstack/driftwatch/internal/services"
	"github.com/modelstack/driftwatch/internal/stats"
	"github.com/modelstack/driftwatch/internal/utils"
)

func main() {
	var (
		configPath string
		once       bool
	)
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.BoolVar(&once, "once", false, "Run a single detection pass and print the outcome")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(os.Stdout, cfg.Logging.Level, cfg.Logging.JSON)

	featureSchema, err := schema.Load(cfg.Schema.Path)
	if err != nil {
		logger.Error("failed to load feature schema", slog.Any("error", err))
		os.Exit(1)
	}

	var cacheProvider cache.Provider = cache.NoopProvider{}
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewValkeyProvider(cache.ValkeyConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			logger.Warn("valkey cache unavailable", slog.Any("error", err))
		} else {
			cacheProvider = provider
			defer provider.Close()
		}
	}

	var source services.SampleSource
	if cfg.Baseline.CSVPath != "" && cfg.Baseline.CurrentCSV != "" {
		names := make([]string, 0, len(featureSchema.Features))
		for _, f := range featureSchema.Features {
			names = append(names, f.Name)
		}
		source = repo.CSVSampleSource{
			BaselinePath: cfg.Baseline.CSVPath,
			CurrentPath:  cfg.Baseline.CurrentCSV,
			Features:     names,
		}
	} else {
		source = repo.NewFeatureServiceClient(
			cfg.Clients.Features.BaseURL,
			cfg.Clients.Features.BaselinePath,
			cfg.Clients.Features.WindowPath,
			cfg.Clients.Features.Timeout,
			cacheProvider,
			cfg.Cache.BaselineTTL,
		)
	}

	detector := engine.NewDetector(
		logger,
		featureSchema,
		stats.NewComparator(cfg.Detector.MinSamplesPerFeature),
		engine.PolicyFromName(cfg.Detector.Policy, cfg.Detector.MinDriftedFeatures),
		engine.Config{
			SignificanceThreshold: cfg.Detector.SignificanceThreshold,
			MinSamplesPerFeature:  cfg.Detector.MinSamplesPerFeature,
			MaxParallel:           cfg.Detector.MaxParallel,
		},
	)
	trigger := engine.NewTrigger(cfg.Trigger.HysteresisWindow, cfg.Trigger.HysteresisRequiredHits)
	reportStore := repo.NewFileReportStore(cfg.Reports.Dir)

	var (
		history       services.HistoryRecorder
		historyReader api.HistoryReader
	)
	if cfg.Reports.HistoryDB != "" {
		historyStore, err := repo.OpenHistoryStore(cfg.Reports.HistoryDB)
		if err != nil {
			logger.Warn("history store unavailable", slog.Any("error", err))
		} else {
			history = historyStore
			historyReader = historyStore
			defer historyStore.Close()
		}
	}

	service := services.NewDriftService(logger, source, detector, trigger, reportStore, history)

	if once {
		runOnce(logger, cfg, service)
		return
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting driftwatch", slog.String("address", cfg.Server.Address))

	handler := api.NewHandler(logger, service, reportStore, historyReader, trigger, cfg.Baseline.Version, cfg.Baseline.WindowSpan)
	server, err := api.NewServer(cfg.Server, handler.Routes())
	if err != nil {
		logger.Error("failed to create server", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	logger.Info("driftwatch stopped")
}

// runOnce performs a single scheduled detection pass and prints the outcome as
// JSON for the invoking scheduler. Exit code 1 means the run failed; a retrain
// signal is carried in the payload, not the exit code.
func runOnce(logger *slog.Logger, cfg *config.Config, service *services.DriftService) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start, end := utils.TrailingWindow(cfg.Baseline.WindowSpan)
	req := models.RunRequest{
		BaselineVersion: cfg.Baseline.Version,
		Window:          models.TimeRange{Start: start, End: end},
	}

	outcome, err := service.RunDetection(ctx, req)
	if err != nil {
		logger.Error("detection run failed", slog.Any("error", err))
		os.Exit(1)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(outcome); err != nil {
		logger.Error("failed to encode outcome", slog.Any("error", err))
		os.Exit(1)
	}
}
