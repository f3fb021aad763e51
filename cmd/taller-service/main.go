package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/TallerLink/TallerLink/internal/common/config"
	"github.com/TallerLink/TallerLink/internal/common/logger"
	"github.com/TallerLink/TallerLink/internal/common/middleware"
	"github.com/TallerLink/TallerLink/internal/common/server"
	"github.com/TallerLink/TallerLink/internal/common/tracing"
	"github.com/TallerLink/TallerLink/internal/storage/adapter"
	"github.com/TallerLink/TallerLink/internal/taller"
)

func main() {
	configPath := flag.String("config", "configs/config.json", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output, cfg.Log.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}

	// Tracing is best effort: a missing Jaeger agent must not stop the service.
	if _, closer, err := tracing.InitTracer(cfg.Server.Name, cfg.Jaeger.Endpoint, cfg.Jaeger.Sampler); err != nil {
		log.Warnf("tracing disabled: %v", err)
	} else {
		defer closer.Close()
	}

	store, storeCloser, err := adapter.Abrir(cfg, log)
	if err != nil {
		log.Fatalf("failed to open storage backend: %v", err)
	}
	defer storeCloser.Close()

	handler := taller.NewHandler(store, cfg.Auth, log)

	if err := server.RunHTTPServer(cfg, log, handler.Routes(),
		server.WithRateLimiter(middleware.NewTokenBucket(200, 100)),
	); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
