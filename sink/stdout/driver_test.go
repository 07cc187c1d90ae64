package stdout

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pointconv/internal/conversion"
	"pointconv/internal/dataset"
	"pointconv/internal/frame"
	"pointconv/internal/wire"
	"pointconv/sink"
)

type ackRecorder struct {
	mu  sync.Mutex
	got []frame.Checkpoint
}

func (a *ackRecorder) ack(cp frame.Checkpoint) {
	a.mu.Lock()
	a.got = append(a.got, cp)
	a.mu.Unlock()
}

func (a *ackRecorder) len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.got)
}

func newDriver(t *testing.T, cfg Config) (*driver, *ackRecorder) {
	t.Helper()
	a, err := sink.NewAdapter("stdout")
	require.NoError(t, err)
	require.NoError(t, a.Configure(cfg))
	rec := &ackRecorder{}
	a.(sink.AckAware).BindAck(rec.ack)
	return a.(*driver), rec
}

func convertedFrame(t *testing.T, offset int64) *frame.Frame {
	t.Helper()
	ds, err := dataset.NewPoints("pts", 2, 2, []float32{0, 1, 3, 7})
	require.NoError(t, err)
	b, err := wire.Marshal(wire.Request{Kind: conversion.Log2, HasKind: true, Dataset: ds})
	require.NoError(t, err)
	return &frame.Frame{Value: b, Checkpoint: frame.Checkpoint{Topic: "out", Partition: 1, Offset: offset}}
}

func TestPush_PrintsSummaryAndAcksImmediately(t *testing.T) {
	var out bytes.Buffer
	d, rec := newDriver(t, Config{Out: &out, PrintValues: true, MaxValues: 3})

	require.NoError(t, d.Push(convertedFrame(t, 7)))
	assert.Equal(t, "[sink] out[1]@7 \"pts\" 2x2 log2(value+1) [0 1 3]\n", out.String())
	assert.Equal(t, []frame.Checkpoint{{Topic: "out", Partition: 1, Offset: 7}}, rec.got)
}

func TestPush_UndecodableValue(t *testing.T) {
	var out bytes.Buffer
	d, rec := newDriver(t, Config{Out: &out})

	require.NoError(t, d.Push(&frame.Frame{Value: []byte{0xff}}))
	assert.Contains(t, out.String(), "undecodable (1 bytes)")
	assert.Equal(t, 1, rec.len())
}

func TestPush_BatchesAcks(t *testing.T) {
	var out bytes.Buffer
	d, rec := newDriver(t, Config{Out: &out, BatchSize: 3})

	for i := range 2 {
		require.NoError(t, d.Push(convertedFrame(t, int64(i))))
	}
	assert.Equal(t, 0, rec.len())
	require.NoError(t, d.Push(convertedFrame(t, 2)))
	assert.Equal(t, 3, rec.len())
}

func TestPush_TimerFlush(t *testing.T) {
	var out bytes.Buffer
	d, rec := newDriver(t, Config{Out: &out, FlushMS: 10})

	require.NoError(t, d.Push(convertedFrame(t, 1)))
	require.Eventually(t, func() bool { return rec.len() == 1 }, time.Second, 5*time.Millisecond)
}

func TestClose_FlushesPending(t *testing.T) {
	var out bytes.Buffer
	d, rec := newDriver(t, Config{Out: &out, BatchSize: 10})

	require.NoError(t, d.Push(convertedFrame(t, 1)))
	require.NoError(t, d.Close())
	assert.Equal(t, 1, rec.len())
}

func TestConfigure_WrongType(t *testing.T) {
	assert.Error(t, (&driver{}).Configure(42))
}
