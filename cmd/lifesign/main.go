package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"lifesign/internal/config"
	"lifesign/internal/logger"
	"lifesign/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "lifesign")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	monitorService, err := service.NewMonitorService(cfg, log)
	if err != nil {
		log.Fatal("Failed to create monitor service",
			zap.Error(err),
		)
	}
	defer monitorService.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serviceErrChan := make(chan error, 1)
	go func() {
		if err := monitorService.Start(ctx); err != nil {
			serviceErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down",
			zap.String("signal", sig.String()),
		)
		cancel()
	case err := <-serviceErrChan:
		log.Fatal("Service error",
			zap.Error(err),
		)
	}

	log.Info("Monitor service stopped")
}
