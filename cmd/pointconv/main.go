package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"pointconv/internal/config"
	"pointconv/internal/engine"
	"pointconv/internal/logging"
	"pointconv/source/kafka"
)

func main() {
	cfgPath := flag.String("config", "pointconv.yml", "engine config file (optional)")
	pipelinePath := flag.String("pipeline", "", "pipeline file; overrides the config")
	flag.Parse()

	cfg, err := config.LoadEngine(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *pipelinePath != "" {
		cfg.Pipeline = *pipelinePath
	}
	logging.Configure(logging.FromEnv(cfg.Log))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	kafka.Register("sarama", func() kafka.Adapter { return &kafka.SaramaDriver{} })

	e, err := engine.Bootstrap(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	if err := e.Run(ctx); err != nil {
		log.Fatalf("engine: %v", err)
	}
}
