// Package pipeline moves Kafka frames carrying datasets through one or more
// conversion stages and hands the results to the sinks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"sync"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"pointconv/internal/conversion"
	"pointconv/internal/frame"
	"pointconv/internal/logging"
	"pointconv/internal/telemetry"
	"pointconv/internal/transform"
	"pointconv/internal/wire"
	"pointconv/sink"
	"pointconv/source/kafka"
)

// Headers set on every converted frame.
const (
	HeaderKind   = "pointconv-kind"
	HeaderFactor = "pointconv-factor"
)

type stage struct {
	name     string
	client   transform.Client
	timeout  time.Duration
	attempts int // retries after the first call
	backoff  time.Duration
}

type Runner struct {
	source kafka.Adapter
	stages []stage
	sinks  []sink.Adapter

	kind   conversion.Kind
	factor float32

	ctx  context.Context
	done chan struct{}

	mu   sync.Mutex
	subs []func(frame.Checkpoint)
}

func NewRunner() *Runner {
	return &Runner{
		kind:   conversion.ArcSin,
		factor: conversion.DefaultFactor,
		ctx:    context.Background(),
		done:   make(chan struct{}),
	}
}

func (r *Runner) AddSink(s sink.Adapter)    { r.sinks = append(r.sinks, s) }
func (r *Runner) SetSource(s kafka.Adapter) { r.source = s }

// SetDefaults sets the transform used for frames that carry no kind or factor.
func (r *Runner) SetDefaults(kind conversion.Kind, factor float32) {
	r.kind, r.factor = kind, factor
}

// AddTransformer appends a conversion stage. A stage call that fails is
// retried up to attempts times, backoff apart, each call bounded by timeout.
func (r *Runner) AddTransformer(name string, cli transform.Client, timeout time.Duration, attempts int, backoff time.Duration) {
	r.stages = append(r.stages, stage{name: name, client: cli, timeout: timeout, attempts: attempts, backoff: backoff})
}

func (r *Runner) SubscribeAck(fn func(frame.Checkpoint)) {
	r.mu.Lock()
	r.subs = append(r.subs, fn)
	r.mu.Unlock()
}

// Ack forwards a resolved checkpoint to every subscriber (the source driver).
func (r *Runner) Ack(cp frame.Checkpoint) {
	r.mu.Lock()
	handlers := append([]func(frame.Checkpoint){}, r.subs...)
	r.mu.Unlock()

	for _, fn := range handlers {
		fn(cp)
	}
}

// pushFrame is the source's EmitFunc. Only sink failures are returned;
// frames that cannot be converted are acked and dropped.
func (r *Runner) pushFrame(f *frame.Frame) error {
	return r.handle(r.ctx, f)
}

func (r *Runner) handle(ctx context.Context, f *frame.Frame) error {
	log := logging.L().With("topic", f.Checkpoint.Topic, "partition", f.Checkpoint.Partition, "offset", f.Checkpoint.Offset)

	req, err := wire.Unmarshal(f.Value)
	if err != nil {
		log.Warn("pipeline: dropping undecodable frame", "err", err)
		r.drop(f, "malformed")
		return nil
	}
	if !req.HasKind {
		req.Kind, req.HasKind = r.kind, true
	}
	if req.Factor == 0 {
		req.Factor = r.factor
	}

	for _, st := range r.stages {
		if req, err = r.call(ctx, st, req); err != nil {
			log.Error("pipeline: conversion failed", "stage", st.name, "err", err)
			r.drop(f, "failed")
			return nil
		}
	}

	value, err := wire.Marshal(req)
	if err != nil {
		log.Error("pipeline: encode failed", "err", err)
		r.drop(f, "failed")
		return nil
	}
	out := &frame.Frame{
		Key:        f.Key,
		Value:      value,
		Headers:    maps.Clone(f.Headers),
		Timestamp:  f.Timestamp,
		Checkpoint: f.Checkpoint,
	}
	if out.Headers == nil {
		out.Headers = make(map[string][]byte, 2)
	}
	out.Headers[HeaderKind] = []byte(req.Kind.String())
	out.Headers[HeaderFactor] = []byte(strconv.FormatFloat(float64(req.Factor), 'g', -1, 32))

	telemetry.Frames.WithLabelValues("converted").Inc()
	if len(r.sinks) == 0 {
		r.Ack(f.Checkpoint)
		return nil
	}
	for _, s := range r.sinks {
		if err := s.Push(out); err != nil {
			telemetry.Frames.WithLabelValues("sink_error").Inc()
			return fmt.Errorf("sink: %w", err)
		}
	}
	return nil
}

func (r *Runner) drop(f *frame.Frame, outcome string) {
	telemetry.Frames.WithLabelValues(outcome).Inc()
	r.Ack(f.Checkpoint)
}

func (r *Runner) call(ctx context.Context, st stage, req wire.Request) (wire.Request, error) {
	var err error
	for attempt := 0; attempt <= st.attempts; attempt++ {
		if attempt > 0 {
			logging.L().Debug("pipeline: retrying stage", "stage", st.name, "attempt", attempt, "err", err)
			select {
			case <-ctx.Done():
				return req, ctx.Err()
			case <-time.After(st.backoff):
			}
		}
		var out wire.Request
		if out, err = r.invoke(ctx, st, req); err == nil {
			return out, nil
		}
		if !retryable(err) {
			return req, err
		}
	}
	return req, err
}

func (r *Runner) invoke(ctx context.Context, st stage, req wire.Request) (wire.Request, error) {
	if st.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, st.timeout)
		defer cancel()
	}
	return st.client.Convert(ctx, req)
}

func retryable(err error) bool {
	if errors.Is(err, transform.ErrInvalidRequest) || errors.Is(err, context.Canceled) {
		return false
	}
	switch status.Code(err) {
	case codes.InvalidArgument, codes.Unimplemented, codes.Canceled:
		return false
	}
	return true
}

// Start runs the source in the background until ctx ends.
func (r *Runner) Start(ctx context.Context) error {
	if r.source == nil {
		return errors.New("runner: no source configured")
	}
	r.ctx = ctx
	go func() {
		defer close(r.done)
		if err := r.source.Run(ctx, r.pushFrame); err != nil && !errors.Is(err, context.Canceled) {
			logging.L().Error("pipeline: source stopped", "err", err)
		}
	}()
	return nil
}

// Done is closed once the source stops after Start.
func (r *Runner) Done() <-chan struct{} { return r.done }

// Close releases the source, then the sinks, then the stage clients.
func (r *Runner) Close() error {
	var errs []error
	if r.source != nil {
		errs = append(errs, r.source.Close())
	}
	for _, s := range r.sinks {
		errs = append(errs, s.Close())
	}
	for _, st := range r.stages {
		errs = append(errs, st.client.Close())
	}
	return errors.Join(errs...)
}
