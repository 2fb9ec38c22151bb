package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"airquality/config"
	qhttp "airquality/http"
	"airquality/logging"
	"airquality/ml"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load model artifacts and start the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	// 1. Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	// 3. Load artifacts once; they are shared read-only by every request
	artifacts := ml.NewArtifactLoader(cfg.Model.LoaderConfig(), logger).Load()
	predictor := ml.NewPredictor(artifacts, logger, ml.WithNoise(nil, cfg.Model.NoiseStdDev()))
	logger.Info("predictor ready",
		zap.String("mode", string(predictor.Mode())),
		zap.Bool("model_loaded", predictor.ModelLoaded()),
	)

	// 4. Start HTTP server
	handler := qhttp.NewHandler(predictor, logger, cfg.Model.MaxBatchSize)
	server := qhttp.NewServer(qhttp.NewServerConfig(cfg.Http), handler, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// 5. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	logger.Info("shutting down")

	if err := server.Stop(); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		return err
	}
	logger.Info("exiting")
	return nil
}
