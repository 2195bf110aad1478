package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"attrition/config"
	"attrition/dataset"
	"attrition/db"
	ahttp "attrition/http"
	"attrition/logger"
	"attrition/ml"
	"attrition/monitoring"

	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to a YAML config file; skipped when absent")
	envFile := flag.String("env", ".env", "dotenv file exported before reading the config")
	flag.Parse()

	if err := run(*configPath, *envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, envFile string) error {
	// 1. Load config
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}
	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		configPath = ""
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer zap.ReplaceGlobals(log)()

	// 2. Load the model
	metrics := monitoring.NewMetrics()
	adapter, err := ml.OpenAdapter(cfg.Model.Type, cfg.Model.Path,
		ml.WithLogger(log),
		ml.WithObserver(metrics),
	)
	if err != nil {
		var loadErr *ml.ArtifactLoadError
		if errors.As(err, &loadErr) {
			log.Error("model artifact unavailable", zap.String("path", loadErr.Path), zap.Error(loadErr.Err))
		}
		return err
	}

	datasets, err := dataset.NewStore(cfg.Dataset.CacheSize)
	if err != nil {
		return err
	}

	// 3. Open prediction history
	deps := ahttp.Dependencies{
		Adapter:  adapter,
		Datasets: datasets,
		Metrics:  metrics,
		Logger:   log,
	}
	if cfg.History.Path != "" {
		history, err := db.Open(cfg.History.Path)
		if err != nil {
			return err
		}
		defer history.Close()
		deps.History = history
		log.Info("prediction history enabled", zap.String("path", cfg.History.Path))
	}

	// 4. Start HTTP server
	server, err := ahttp.NewServer(ahttp.ServerConfig{
		Port:           cfg.HTTP.Port,
		Timeout:        cfg.HTTP.Timeout,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		MaxBodyBytes:   cfg.MaxUploadBytes(),
		RequireDataset: cfg.Dataset.Require,
	}, deps)
	if err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	// 5. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		log.Warn("shutdown incomplete", zap.Error(err))
	}
	log.Info("exiting")
	return nil
}
