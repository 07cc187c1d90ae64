// Package host is the in-process stand-in for the analytics application that
// owns datasets: it stores them, hands them to plugins and tracks changes.
package host

import (
	"context"
	"fmt"
	"sync"

	"pointconv/internal/dataset"
	"pointconv/internal/logging"
	"pointconv/internal/plugin"
)

type Core struct {
	mu        sync.RWMutex
	datasets  map[string]*dataset.Points
	revisions map[string]uint64
	subs      []func(*dataset.Points, uint64)

	factories map[string]*plugin.Factory
	opts      []plugin.Option
}

// New builds a core; opts are applied to every factory it instantiates
// (after the core's own notifier).
func New(opts ...plugin.Option) *Core {
	return &Core{
		datasets:  map[string]*dataset.Points{},
		revisions: map[string]uint64{},
		factories: map[string]*plugin.Factory{},
		opts:      opts,
	}
}

func (c *Core) AddDataset(ds *dataset.Points) {
	c.mu.Lock()
	c.datasets[ds.ID()] = ds
	c.mu.Unlock()
}

func (c *Core) RemoveDataset(id string) {
	c.mu.Lock()
	delete(c.datasets, id)
	delete(c.revisions, id)
	c.mu.Unlock()
}

func (c *Core) Dataset(id string) (*dataset.Points, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ds, ok := c.datasets[id]
	return ds, ok
}

// Revision counts how many times a dataset was reported changed.
func (c *Core) Revision(id string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.revisions[id]
}

// Subscribe registers fn for dataset change notifications.
func (c *Core) Subscribe(fn func(ds *dataset.Points, revision uint64)) {
	c.mu.Lock()
	c.subs = append(c.subs, fn)
	c.mu.Unlock()
}

// DatasetChanged implements plugin.Notifier.
func (c *Core) DatasetChanged(ds *dataset.Points) {
	c.mu.Lock()
	c.revisions[ds.ID()]++
	rev := c.revisions[ds.ID()]
	subs := append([]func(*dataset.Points, uint64){}, c.subs...)
	c.mu.Unlock()

	logging.L().Debug("host: dataset changed", "dataset", ds.Name(), "revision", rev)
	for _, fn := range subs {
		fn(ds, rev)
	}
}

// RequestPlugin produces a plugin instance of kind, reusing one factory per kind.
func (c *Core) RequestPlugin(kind string) (*plugin.Plugin, error) {
	f, err := c.factory(kind)
	if err != nil {
		return nil, err
	}
	return f.Produce(), nil
}

func (c *Core) factory(kind string) (*plugin.Factory, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.factories[kind]; ok {
		return f, nil
	}
	opts := append([]plugin.Option{plugin.WithNotifier(c)}, c.opts...)
	f, err := plugin.NewFactoryFor(kind, opts...)
	if err != nil {
		return nil, err
	}
	c.factories[kind] = f
	return f, nil
}

func (c *Core) lookup(ids []string) ([]*dataset.Points, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*dataset.Points, 0, len(ids))
	for _, id := range ids {
		ds, ok := c.datasets[id]
		if !ok {
			return nil, fmt.Errorf("host: unknown dataset %q", id)
		}
		out = append(out, ds)
	}
	return out, nil
}

// TriggerActions lists what plugin kind offers for the given datasets.
func (c *Core) TriggerActions(kind string, ids ...string) ([]*plugin.TriggerAction, error) {
	datasets, err := c.lookup(ids)
	if err != nil {
		return nil, err
	}
	f, err := c.factory(kind)
	if err != nil {
		return nil, err
	}
	return f.TriggerActions(datasets), nil
}

// Trigger runs the action called name (e.g. "Log2") over the datasets.
// settings, when non-nil, replaces the action's widget values.
func (c *Core) Trigger(ctx context.Context, kind, name string, settings *plugin.Settings, ids ...string) error {
	actions, err := c.TriggerActions(kind, ids...)
	if err != nil {
		return err
	}
	for _, a := range actions {
		if a.Name != name {
			continue
		}
		if settings != nil && a.Settings != nil {
			s := *settings
			a.Settings = &s
		}
		return a.Trigger(ctx)
	}
	return fmt.Errorf("host: %s offers no action %q for %d dataset(s)", kind, name, len(ids))
}
