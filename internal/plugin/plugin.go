// Package plugin exposes the point data conversion plugin to a host: a
// factory that produces instances and advertises trigger actions, and the
// plugin that converts its input datasets in place.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pointconv/internal/conversion"
	"pointconv/internal/dataset"
	"pointconv/internal/logging"
	"pointconv/internal/telemetry"
)

const TaskName = "Converting"

type Plugin struct {
	factory     *Factory
	transformer conversion.Transformer
	inputs      []*dataset.Points
}

func (p *Plugin) Factory() *Factory { return p.factory }

func (p *Plugin) SetInputDataset(ds *dataset.Points) { p.inputs = []*dataset.Points{ds} }

func (p *Plugin) SetInputDatasets(ds ...*dataset.Points) {
	p.inputs = append([]*dataset.Points(nil), ds...)
}

func (p *Plugin) InputDatasets() []*dataset.Points { return p.inputs }

func (p *Plugin) Type() conversion.Kind { return p.transformer.Kind() }

func (p *Plugin) SetType(kind conversion.Kind) {
	if kind == p.transformer.Kind() {
		return
	}
	p.transformer.Configure(kind, p.transformer.Factor())
}

func (p *Plugin) Factor() float32 { return p.transformer.Factor() }

// SetFactor rejects values outside [MinFactor, MaxFactor].
func (p *Plugin) SetFactor(factor float32) error {
	if err := (Settings{Factor: factor}).Validate(); err != nil {
		return err
	}
	p.transformer.Configure(p.transformer.Kind(), factor)
	return nil
}

// Transform converts every input dataset. Invalid datasets are skipped;
// datasets already being converted are skipped and reported in the returned
// error. ctx is checked before each dataset; a started conversion completes.
func (p *Plugin) Transform(ctx context.Context) error {
	var errs []error
	for i, ds := range p.inputs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if !ds.Valid() {
			logging.L().Warn("conversion: skipping invalid dataset", "index", i)
			telemetry.DatasetsSkipped.WithLabelValues("invalid").Inc()
			continue
		}
		if err := p.convert(ds); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Plugin) convert(ds *dataset.Points) error {
	log := logging.L().With("dataset", ds.Name(), "id", ds.ID())

	lease, err := ds.Lock()
	if err != nil {
		log.Warn("conversion: dataset busy", "err", err)
		telemetry.DatasetsSkipped.WithLabelValues("locked").Inc()
		return err
	}
	defer lease.Unlock()

	tk := ds.Task()
	tk.SetName(TaskName)
	tk.SetRunning()
	tk.SetProgressDescription(fmt.Sprintf("%s conversion", p.transformer.Formula()))

	kind := p.transformer.Kind().String()
	start := time.Now()
	if err := p.transformer.Run(lease.Values(), ds.NumPoints(), ds.NumDimensions(), tk.SetProgress); err != nil {
		tk.SetAborted()
		return fmt.Errorf("conversion %s: %w", ds.Name(), err)
	}
	elapsed := time.Since(start)

	tk.SetProgress(1)
	tk.SetFinished()
	lease.Unlock()

	telemetry.Conversions.WithLabelValues(kind).Inc()
	telemetry.PointsConverted.WithLabelValues(kind).Add(float64(ds.NumPoints()))
	telemetry.ConversionSeconds.WithLabelValues(kind).Observe(elapsed.Seconds())
	log.Info("conversion: done", "kind", kind, "points", ds.NumPoints(), "dimensions", ds.NumDimensions(), "elapsed", elapsed)

	p.factory.notify(ds)
	return nil
}
