package plugin

import (
	"context"
	"fmt"

	"pointconv/internal/conversion"
	"pointconv/internal/dataset"
)

// Kind identifies this plugin in the registry and to hosts.
const Kind = "PointDataConversion"

// Notifier is told when a dataset's values were rewritten.
type Notifier interface {
	DatasetChanged(*dataset.Points)
}

type NotifierFunc func(*dataset.Points)

func (f NotifierFunc) DatasetChanged(ds *dataset.Points) { f(ds) }

type Option func(*Factory)

func WithNotifier(n Notifier) Option { return func(f *Factory) { f.notifier = n } }

// WithDefaults sets the kind and factor of freshly produced plugins.
func WithDefaults(kind conversion.Kind, factor float32) Option {
	return func(f *Factory) { f.kind, f.factor = kind, factor }
}

type Factory struct {
	notifier Notifier
	kind     conversion.Kind
	factor   float32
}

func NewFactory(opts ...Option) *Factory {
	f := &Factory{kind: conversion.ArcSin, factor: conversion.DefaultFactor}
	for _, o := range opts {
		o(f)
	}
	return f
}

func (f *Factory) Kind() string { return Kind }

func (f *Factory) Produce() *Plugin {
	return &Plugin{factory: f, transformer: conversion.New(f.kind, f.factor)}
}

func (f *Factory) notify(ds *dataset.Points) {
	if f.notifier != nil {
		f.notifier.DatasetChanged(ds)
	}
}

// TriggerAction is one user-facing entry ("Log2", "Arcsin") bound to the
// datasets it was offered for.
type TriggerAction struct {
	Name        string
	Description string
	Kind        conversion.Kind
	// Settings is nil for transforms without parameters.
	Settings *Settings

	factory  *Factory
	datasets []*dataset.Points
}

// TriggerActions offers one action per transform when at least one dataset is
// given and all of them hold points.
func (f *Factory) TriggerActions(datasets []*dataset.Points) []*TriggerAction {
	if len(datasets) == 0 {
		return nil
	}
	for _, ds := range datasets {
		if ds == nil || ds.Type() != dataset.PointType {
			return nil
		}
	}
	actions := make([]*TriggerAction, 0, len(conversion.Kinds))
	for _, k := range conversion.Kinds {
		a := &TriggerAction{
			Name:        k.String(),
			Description: fmt.Sprintf("Perform %s data conversion", k),
			Kind:        k,
			factory:     f,
			datasets:    append([]*dataset.Points(nil), datasets...),
		}
		if k == conversion.ArcSin {
			s := DefaultSettings()
			a.Settings = &s
		}
		actions = append(actions, a)
	}
	return actions
}

// TriggerActionsForTypes offers nothing: conversions need concrete datasets.
func (f *Factory) TriggerActionsForTypes([]dataset.DataType) []*TriggerAction {
	return nil
}

func (a *TriggerAction) Datasets() []*dataset.Points { return a.datasets }

// Trigger produces one plugin over all bound datasets and runs it.
func (a *TriggerAction) Trigger(ctx context.Context) error {
	p := a.factory.Produce()
	p.SetInputDatasets(a.datasets...)
	p.SetType(a.Kind)
	if a.Settings != nil {
		if err := p.SetFactor(a.Settings.Factor); err != nil {
			return err
		}
	}
	return p.Transform(ctx)
}
