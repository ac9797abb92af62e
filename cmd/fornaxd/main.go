package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"fornax/internal/api"
	"fornax/internal/config"
	"fornax/internal/daemon"
	"fornax/internal/logging"
	"fornax/internal/notifications"
	"fornax/internal/ops"
	"fornax/internal/pipeline"
	"fornax/internal/services/archivematica"
	"fornax/internal/services/cleanup"
	"fornax/internal/sips"
)

func main() {
	configFlag := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := sips.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return
	}

	d, err := buildDaemon(cfg, store, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		_ = store.Close()
		return
	}
	defer d.Close()

	if err := d.Run(ctx); err != nil {
		logger.Error("daemon run", logging.Error(err))
		return
	}
	logger.Info("fornaxd shut down")
}

func buildDaemon(cfg *config.Config, store *sips.Store, logger *slog.Logger) (*daemon.Daemon, error) {
	httpClient := &http.Client{Timeout: requestTimeout(cfg)}
	clients := archivematica.NewFactory(cfg, httpClient, logger)
	sources := func(origin string) (ops.ProcessingConfigSource, error) {
		client, err := clients(origin)
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	runner := pipeline.NewRunner(store, logger,
		ops.NewExtractor(cfg, logger),
		ops.NewRestructurer(cfg, sources, logger),
		ops.NewAssembler(cfg, logger),
		archivematica.NewTransferStarter(store, clients, logger),
		cleanup.NewRequester(cfg, httpClient, logger),
	)
	runner.SetNotifier(notifications.NewService(cfg))

	server := api.NewServer(cfg, store, runner, cleanup.NewRoutine(cfg, logger), clients, logger)
	return daemon.New(cfg, store, runner, server.Handler(), logger)
}

func requestTimeout(cfg *config.Config) time.Duration {
	timeout := time.Duration(cfg.Workflow.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return timeout
}
