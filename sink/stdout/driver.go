// Package stdout prints converted datasets and acknowledges them in batches.
package stdout

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"pointconv/internal/frame"
	"pointconv/internal/wire"
	"pointconv/sink"
)

type Config struct {
	DelayMS      int  `yaml:"delay_ms"`       // artificial per-frame delay
	PrintCounter bool `yaml:"print_counter"`  // prepend seq#
	BatchSize    int  `yaml:"ack_batch_size"` // 0 = disabled
	FlushMS      int  `yaml:"ack_flush_ms"`   // 0 = disabled
	PrintValues  bool `yaml:"print_values"`
	MaxValues    int  `yaml:"max_values"` // 0 = all

	Out io.Writer `yaml:"-"` // defaults to os.Stdout
}

type driver struct {
	cfg Config
	out io.Writer
	ack sink.EmitFn

	mu      sync.Mutex // guards pending+timer
	pending []frame.Checkpoint
	timer   *time.Timer // nil → no timer armed
}

var seq atomic.Uint64

func (d *driver) Configure(raw any) error {
	c, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("stdout-sink: expected Config, got %T", raw)
	}
	d.cfg = c
	d.out = c.Out
	if d.out == nil {
		d.out = os.Stdout
	}
	return nil
}

func (d *driver) Push(f *frame.Frame) error {
	if d.cfg.DelayMS > 0 {
		time.Sleep(time.Duration(d.cfg.DelayMS) * time.Millisecond)
	}
	d.print(f)

	if d.ack == nil {
		return nil
	}
	d.mu.Lock()
	d.pending = append(d.pending, f.Checkpoint)

	// 1. flush on batch size, or straight away when no batching is configured
	if len(d.pending) >= d.cfg.BatchSize && (d.cfg.BatchSize > 0 || d.cfg.FlushMS <= 0) {
		d.flushLocked()
		d.mu.Unlock()
		return nil
	}

	// 2. arm the one-shot timer if needed
	if d.cfg.FlushMS > 0 && d.timer == nil {
		d.timer = time.AfterFunc(time.Duration(d.cfg.FlushMS)*time.Millisecond, d.timerFlush)
	}
	d.mu.Unlock()
	return nil
}

func (d *driver) print(f *frame.Frame) {
	var b strings.Builder
	if d.cfg.PrintCounter {
		fmt.Fprintf(&b, "[sink %06d] ", seq.Add(1))
	} else {
		b.WriteString("[sink] ")
	}
	fmt.Fprintf(&b, "%s[%d]@%d", f.Checkpoint.Topic, f.Checkpoint.Partition, f.Checkpoint.Offset)

	req, err := wire.Unmarshal(f.Value)
	if err != nil {
		fmt.Fprintf(&b, " undecodable (%d bytes)", len(f.Value))
	} else {
		ds := req.Dataset
		fmt.Fprintf(&b, " %q %dx%d %s", ds.Name(), ds.NumPoints(), ds.NumDimensions(), req.Kind.Formula(req.Factor))
		if d.cfg.PrintValues {
			values := ds.Snapshot()
			if d.cfg.MaxValues > 0 && len(values) > d.cfg.MaxValues {
				values = values[:d.cfg.MaxValues]
			}
			fmt.Fprintf(&b, " %v", values)
		}
	}
	b.WriteByte('\n')

	d.mu.Lock()
	_, _ = io.WriteString(d.out, b.String())
	d.mu.Unlock()
}

func (d *driver) Close() error {
	d.mu.Lock()
	d.flushLocked()
	d.mu.Unlock()
	return nil
}

func (d *driver) BindAck(fn sink.EmitFn) { d.ack = fn }

// called by the background timer goroutine
func (d *driver) timerFlush() {
	d.mu.Lock()
	d.flushLocked()
	d.mu.Unlock()
}

// must be called with d.mu held
func (d *driver) flushLocked() {
	if len(d.pending) == 0 || d.ack == nil {
		d.stopTimerLocked()
		return
	}
	for _, cp := range d.pending {
		d.ack(cp)
	}
	d.pending = d.pending[:0]
	d.stopTimerLocked() // re-armed on next Push if needed
}

func (d *driver) stopTimerLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func init() {
	sink.Register("stdout", func() sink.Adapter { return &driver{} })
}
