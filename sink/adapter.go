package sink

import (
	"fmt"
	"sort"

	"pointconv/internal/frame"
)

// EmitFn is what a sink calls to notify the pipeline that a frame
// has been durably processed.
type EmitFn func(frame.Checkpoint)

// Adapter is the common behaviour every sink exposes.
type Adapter interface {
	Configure(any) error     // driver-specific config struct
	Push(*frame.Frame) error // consume one converted frame
	Close() error            // idempotent
}

// AckAware is optional; sinks that acknowledge frames implement it and
// the compiler binds the callback.
type AckAware interface {
	BindAck(EmitFn)
}

type factory = func() Adapter

var reg = map[string]factory{}

func Register(name string, f factory) { reg[name] = f }

func NewAdapter(name string) (Adapter, error) {
	if f, ok := reg[name]; ok {
		return f(), nil
	}
	return nil, fmt.Errorf("unknown sink %q (have %v)", name, Names())
}

func Names() []string {
	out := make([]string, 0, len(reg))
	for name := range reg {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
