package kafka

import (
	"context"
	"errors"
	"sync"

	"github.com/IBM/sarama"

	"pointconv/internal/frame"
	"pointconv/internal/logging"
)

type SaramaDriver struct {
	cfg   Config
	cl    sarama.Client
	group sarama.ConsumerGroup
	limit *Limiter
	clock *commitClock

	mu      sync.Mutex
	pending map[frame.Checkpoint]func()
}

func (d *SaramaDriver) Configure(config Config) error {
	if err := config.Validate(); err != nil {
		return err
	}
	d.init(config)

	sc, err := saramaConfig(config)
	if err != nil {
		return err
	}
	if d.cl, err = sarama.NewClient(config.Brokers, sc); err != nil {
		return err
	}
	d.group, err = sarama.NewConsumerGroupFromClient(config.GroupID, d.cl)
	return err
}

func (d *SaramaDriver) init(config Config) {
	d.cfg = config
	d.pending = make(map[frame.Checkpoint]func())
	d.limit = NewLimiter(config.BackPressure.Capacity)
	d.clock = newCommitClock(config.Checkpoint.CommitInt)
}

func saramaConfig(config Config) (*sarama.Config, error) {
	ver, err := sarama.ParseKafkaVersion(config.Version)
	if err != nil {
		return nil, err
	}
	sc := sarama.NewConfig()
	sc.Version = ver
	sc.Consumer.Return.Errors = true
	// commits follow commitClock instead of sarama's ticker
	sc.Consumer.Offsets.AutoCommit.Enable = false
	if config.TLSEn {
		sc.Net.TLS.Enable = true
	}
	if config.SASLUser != "" {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.User, sc.Net.SASL.Password = config.SASLUser, config.SASLPass
	}
	switch config.StartFrom {
	case "oldest":
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	default:
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	return sc, nil
}

func (d *SaramaDriver) Run(ctx context.Context, emit EmitFunc) error {
	go func() {
		for err := range d.group.Errors() {
			logging.L().Error("sarama-driver: consumer error", "err", err)
		}
	}()

	handler := &groupHandler{driver: d, emit: emit}
	for {
		if err := d.group.Consume(ctx, d.cfg.Topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (d *SaramaDriver) Close() error {
	var errs []error
	if d.group != nil {
		errs = append(errs, d.group.Close())
	}
	if d.cl != nil && !d.cl.Closed() {
		errs = append(errs, d.cl.Close())
	}
	return errors.Join(errs...)
}

// OnAck resolves a frame emitted in e2e mode. Unknown checkpoints (already
// resolved, or dropped by a rebalance) are ignored.
func (d *SaramaDriver) OnAck(cp frame.Checkpoint) {
	d.mu.Lock()
	cb, ok := d.pending[cp]
	if ok {
		delete(d.pending, cp)
	}
	d.mu.Unlock()
	if !ok {
		return
	}
	cb()
	d.limit.Release(1)
	logging.L().Debug("kafka ack released", "topic", cp.Topic, "partition", cp.Partition, "offset", cp.Offset)
}

func (d *SaramaDriver) track(cp frame.Checkpoint, cb func()) {
	d.mu.Lock()
	d.pending[cp] = cb
	d.mu.Unlock()
}

func (d *SaramaDriver) untrack(cp frame.Checkpoint) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[cp]
	delete(d.pending, cp)
	return ok
}

func (d *SaramaDriver) commitIfDue(sess sarama.ConsumerGroupSession) {
	if d.clock.due() {
		sess.Commit()
	}
}

type groupHandler struct {
	driver *SaramaDriver
	emit   EmitFunc
}

func (*groupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup flushes marked offsets and forgets frames whose session ended.
func (h *groupHandler) Cleanup(sess sarama.ConsumerGroupSession) error {
	d := h.driver
	d.mu.Lock()
	dropped := len(d.pending)
	d.pending = make(map[frame.Checkpoint]func())
	d.mu.Unlock()

	d.limit.Release(dropped)
	sess.Commit()
	if dropped > 0 {
		logging.L().Info("sarama-driver: rebalance – cleared pending callbacks", "count", dropped)
	}
	return nil
}

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	d := h.driver
	for {
		select {
		case <-sess.Context().Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := d.limit.Acquire(sess.Context()); err != nil {
				return nil
			}

			fr := toFrame(msg)
			e2e := d.cfg.CommitMode == CommitE2E
			if e2e {
				// registered before emit: sinks may ack synchronously
				d.track(fr.Checkpoint, func() {
					sess.MarkMessage(msg, "")
					d.commitIfDue(sess)
				})
			}
			if err := h.emit(fr); err != nil {
				if !e2e || d.untrack(fr.Checkpoint) {
					d.limit.Release(1)
				}
				return err
			}
			if !e2e {
				sess.MarkMessage(msg, "")
				d.commitIfDue(sess)
				d.limit.Release(1)
			}
		}
	}
}

func toFrame(msg *sarama.ConsumerMessage) *frame.Frame {
	return &frame.Frame{
		Key:       msg.Key,
		Value:     msg.Value,
		Headers:   toHeaderMap(msg.Headers),
		Timestamp: msg.Timestamp,
		Checkpoint: frame.Checkpoint{
			Topic:     msg.Topic,
			Partition: msg.Partition,
			Offset:    msg.Offset,
		},
	}
}

func toHeaderMap(src []*sarama.RecordHeader) map[string][]byte {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string][]byte, len(src))
	for _, h := range src {
		out[string(h.Key)] = h.Value
	}
	return out
}
