package pipeline

import (
	"fmt"
	"time"

	"pointconv/internal/config"
	"pointconv/internal/host"
	"pointconv/internal/transform"
	"pointconv/internal/transport"
	"pointconv/sink"
	sinkkafka "pointconv/sink/kafka"
	"pointconv/sink/stdout"
	"pointconv/source/kafka"
)

// Compile builds a Runner from a pipeline YAML. In-process stages convert
// through core.
func Compile(path string, core *host.Core) (*Runner, error) {
	r := NewRunner()
	if err := LoadYAML(path, core, r); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

func LoadYAML(path string, core *host.Core, r *Runner) error {
	cfg, confPath, err := config.LoadPipelineSpec(path)
	if err != nil {
		return err
	}

	kind, factor, err := cfg.Conversion.Resolve()
	if err != nil {
		return err
	}
	r.SetDefaults(kind, factor)

	for _, t := range cfg.Transformers {
		cli, err := stageClient(t, core)
		if err != nil {
			return err
		}
		to := time.Duration(t.TimeoutMS) * time.Millisecond
		backoff := time.Duration(t.RetryPolicy.BackoffMS) * time.Millisecond
		r.AddTransformer(t.Name, cli, to, t.RetryPolicy.Attempts, backoff)
	}

	for _, name := range cfg.Sinks {
		sDrv, err := sink.NewAdapter(name)
		if err != nil {
			return err
		}

		switch name {
		case "stdout":
			err = sDrv.Configure(stdout.Config{
				DelayMS:      cfg.Debug.PerFrameDelayMS,
				PrintCounter: cfg.Debug.PrintCounter,
				BatchSize:    cfg.Debug.AckBatchSize,
				FlushMS:      cfg.Debug.AckFlushMS,
				PrintValues:  cfg.Debug.PrintValues,
				MaxValues:    cfg.Debug.MaxValues,
			})
		case "kafka":
			kc := cfg.SinkConfigs.Kafka
			err = sDrv.Configure(sinkkafka.Config{Brokers: kc.Brokers, Topic: kc.Topic, Acks: kc.Acks})
		default:
			err = fmt.Errorf("no config block for sink %q", name)
		}
		if err != nil {
			return fmt.Errorf("sink %s: %w", name, err)
		}

		if ackAware, ok := sDrv.(sink.AckAware); ok {
			ackAware.BindAck(r.Ack)
		}
		r.AddSink(sDrv)
	}

	// source last: the sarama driver dials the brokers in Configure
	if cfg.Source.Kind != "kafka" {
		return fmt.Errorf("unsupported source %q", cfg.Source.Kind)
	}
	kc, err := kafka.LoadConfig(confPath)
	if err != nil {
		return err
	}
	src, err := kafka.NewAdapter(cfg.Source.Driver)
	if err != nil {
		return err
	}
	if err = src.Configure(kc); err != nil {
		return err
	}
	r.SetSource(src)

	if aw, ok := src.(kafka.AckAware); ok {
		r.SubscribeAck(aw.OnAck)
	}
	return nil
}

func stageClient(t config.TransformerSpec, core *host.Core) (transform.Client, error) {
	switch t.Type {
	case "inproc", "":
		if core == nil {
			return nil, fmt.Errorf("transform %s: no in-process core", t.Name)
		}
		return transform.NewInProcessClient(core), nil
	case "grpc":
		cli, err := transport.Dial(t.Address)
		if err != nil {
			return nil, fmt.Errorf("transform %s: dial %s: %w", t.Name, t.Address, err)
		}
		return cli, nil
	default:
		return nil, fmt.Errorf("unsupported transformer type %q for %s", t.Type, t.Name)
	}
}
