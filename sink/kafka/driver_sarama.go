// Package kafka publishes converted frames to a Kafka topic.
package kafka

import (
	"errors"
	"fmt"
	"sync"

	"github.com/IBM/sarama"

	"pointconv/internal/frame"
	"pointconv/internal/logging"
	"pointconv/internal/telemetry"
	"pointconv/sink"
)

type Config struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	Acks    int16    `yaml:"required_acks"` // 0,1,-1
	Version string   `yaml:"version"`
}

// driver acks a frame once the broker confirms the produced message.
// Failed deliveries are logged and left unacked so the source redelivers them.
type driver struct {
	cfg  Config
	p    sarama.AsyncProducer
	ack  sink.EmitFn
	wg   sync.WaitGroup
	once sync.Once
}

func (d *driver) Configure(c any) error {
	cfg, ok := c.(Config)
	if !ok {
		return fmt.Errorf("kafka-sink: want Config, got %T", c)
	}
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return errors.New("kafka-sink: brokers and topic are required")
	}
	sc, err := producerConfig(cfg)
	if err != nil {
		return err
	}
	p, err := sarama.NewAsyncProducer(cfg.Brokers, sc)
	if err != nil {
		return err
	}
	d.start(cfg, p)
	return nil
}

func producerConfig(cfg Config) (*sarama.Config, error) {
	sc := sarama.NewConfig()
	if cfg.Version != "" {
		ver, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			return nil, err
		}
		sc.Version = ver
	}
	sc.Producer.RequiredAcks = sarama.RequiredAcks(cfg.Acks)
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	return sc, nil
}

func (d *driver) start(cfg Config, p sarama.AsyncProducer) {
	d.cfg, d.p = cfg, p
	d.wg.Add(2)
	go func() {
		defer d.wg.Done()
		for msg := range p.Successes() {
			if cp, ok := msg.Metadata.(frame.Checkpoint); ok && d.ack != nil {
				d.ack(cp)
			}
		}
	}()
	go func() {
		defer d.wg.Done()
		for perr := range p.Errors() {
			telemetry.Frames.WithLabelValues("sink_error").Inc()
			logging.L().Error("kafka-sink: produce failed", "topic", d.cfg.Topic, "err", perr.Err)
		}
	}()
}

func (d *driver) Push(f *frame.Frame) error {
	msg := &sarama.ProducerMessage{
		Topic:    d.cfg.Topic,
		Value:    sarama.ByteEncoder(f.Value),
		Metadata: f.Checkpoint,
	}
	if f.Key != nil {
		msg.Key = sarama.ByteEncoder(f.Key)
	}
	for k, v := range f.Headers {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(k), Value: v})
	}
	if !f.Timestamp.IsZero() {
		msg.Timestamp = f.Timestamp
	}
	d.p.Input() <- msg
	return nil
}

func (d *driver) BindAck(fn sink.EmitFn) { d.ack = fn }

// Close flushes buffered messages, then waits for their acks.
func (d *driver) Close() error {
	d.once.Do(func() {
		if d.p == nil {
			return
		}
		d.p.AsyncClose()
		d.wg.Wait()
	})
	return nil
}

func init() { sink.Register("kafka", func() sink.Adapter { return &driver{} }) }
