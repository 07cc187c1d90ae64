package engine

import (
	"context"
	"fmt"

	"pointconv/internal/config"
	"pointconv/internal/dataset"
	"pointconv/internal/host"
	"pointconv/internal/logging"
	"pointconv/internal/pipeline"
	"pointconv/internal/plugin"
	"pointconv/internal/telemetry"
	"pointconv/internal/transform"
	"pointconv/internal/transport"
)

func Bootstrap(ctx context.Context, cfg config.Engine) (*Engine, error) {
	kind, factor, err := cfg.Conversion.Resolve()
	if err != nil {
		return nil, fmt.Errorf("conversion: %w", err)
	}

	// 1. host core shared by the transport and in-process pipeline stages
	core := host.New(plugin.WithDefaults(kind, factor))
	core.Subscribe(func(ds *dataset.Points, rev uint64) {
		logging.L().Debug("engine: dataset changed", "id", ds.ID(), "name", ds.Name(), "revision", rev)
	})

	// 2. transport server
	srv, err := transport.StartServer(cfg.GRPCPort, transport.NewService(transform.NewInProcessClient(core)))
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}

	// 3. pipeline runner
	var runner *pipeline.Runner
	if cfg.Pipeline != "" {
		runner, err = pipeline.Compile(cfg.Pipeline, core)
		if err != nil {
			srv.Stop()
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		if err := runner.Start(ctx); err != nil {
			srv.Stop()
			_ = runner.Close()
			return nil, err
		}
	}

	// 4. metrics
	metrics := telemetry.Expose(cfg.MetricsPort)

	logging.L().Info("engine: started",
		"grpc", srv.Addr().String(), "metrics_port", cfg.MetricsPort,
		"kind", kind.String(), "factor", factor, "pipeline", cfg.Pipeline != "")

	return &Engine{
		core:      core,
		transport: srv,
		runner:    runner,
		metrics:   metrics,
	}, nil
}
