// Package engine wires the conversion service, the Kafka pipeline and the
// metrics endpoint into one process.
package engine

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"pointconv/internal/host"
	"pointconv/internal/logging"
	"pointconv/internal/pipeline"
	"pointconv/internal/transport"
)

const shutdownTimeout = 5 * time.Second

type Engine struct {
	core      *host.Core
	transport *transport.Server
	runner    *pipeline.Runner
	metrics   *http.Server
}

func (e *Engine) Core() *host.Core { return e.core }

func (e *Engine) Addr() net.Addr { return e.transport.Addr() }

// Run serves gRPC until ctx ends. It returns only after the pipeline has
// been closed (sinks flushed, offsets committed) and metrics shut down.
func (e *Engine) Run(ctx context.Context) error {
	served := make(chan error, 1)
	go func() { served <- e.transport.Serve() }()

	var err error
	select {
	case <-ctx.Done():
		e.transport.Stop()
		err = <-served
	case err = <-served:
		e.transport.Stop()
	}
	e.shutdown()
	return err
}

func (e *Engine) shutdown() {
	if e.runner != nil {
		if err := e.runner.Close(); err != nil {
			logging.L().Warn("engine: pipeline close", "err", err)
		}
	}
	if e.metrics != nil {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := e.metrics.Shutdown(sctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.L().Warn("engine: metrics shutdown", "err", err)
		}
	}
	logging.L().Info("engine: stopped")
}
