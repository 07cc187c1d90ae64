// Package frame is the unit moved between pipeline sources and sinks.
package frame

import "time"

// Checkpoint locates a frame in its source so it can be acknowledged.
type Checkpoint struct {
	Topic     string
	Partition int32
	Offset    int64
}

type Frame struct {
	Key        []byte
	Value      []byte
	Headers    map[string][]byte
	Timestamp  time.Time
	Checkpoint Checkpoint
}
