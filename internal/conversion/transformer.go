package conversion

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"sync/atomic"
)

// CheckpointEvery is the number of points between progress reports.
const CheckpointEvery = 1000

var ErrShape = errors.New("conversion: values do not match shape")

// ProgressFunc receives fractions in [0,1]; the last call is always 1.0.
type ProgressFunc func(fraction float32)

// Transformer is a value type: copy it freely, configure it with Configure.
type Transformer struct {
	kind   Kind
	factor float32
}

// New returns a transformer configured for kind; factor only matters for ArcSin.
func New(kind Kind, factor float32) Transformer {
	var t Transformer
	t.Configure(kind, factor)
	return t
}

func (t Transformer) Kind() Kind { return t.kind }

func (t Transformer) Factor() float32 {
	if t.factor <= 0 {
		return DefaultFactor
	}
	return t.factor
}

// Configure selects the transform. Non-positive factors fall back to DefaultFactor.
func (t *Transformer) Configure(kind Kind, factor float32) {
	if factor <= 0 || math.IsNaN(float64(factor)) {
		factor = DefaultFactor
	}
	if t.kind == kind && t.factor == factor {
		return
	}
	t.kind, t.factor = kind, factor
}

// Formula is Kind.Formula with the configured factor.
func (t Transformer) Formula() string { return t.kind.Formula(t.Factor()) }

// Scalar returns the per-value function, or nil for a kind outside the enumeration.
func (t Transformer) Scalar() func(float32) float32 {
	switch t.kind {
	case Log2:
		return func(v float32) float32 { return float32(math.Log2(float64(v + 1))) }
	case ArcSin:
		f := t.Factor()
		return func(v float32) float32 { return float32(math.Asinh(float64(v / f))) }
	default:
		return nil
	}
}

// Run rewrites values (row-major, numPoints x numDimensions) in place.
func (t Transformer) Run(values []float32, numPoints, numDimensions int, progress ProgressFunc) error {
	if err := checkShape(values, numPoints, numDimensions); err != nil {
		return err
	}
	if progress == nil {
		progress = func(float32) {}
	}
	t.run(values, numPoints, numDimensions, progress)
	return nil
}

// Apply returns the progress of a conversion as a lazy, one-shot sequence.
// Work starts when the sequence is ranged over; if the consumer stops early
// the remaining points are still converted before the range returns.
func (t Transformer) Apply(values []float32, numPoints, numDimensions int) (iter.Seq[float32], error) {
	if err := checkShape(values, numPoints, numDimensions); err != nil {
		return nil, err
	}
	var used atomic.Bool
	return func(yield func(float32) bool) {
		if !used.CompareAndSwap(false, true) {
			return
		}
		open := true
		t.run(values, numPoints, numDimensions, func(f float32) {
			if open {
				open = yield(f)
			}
		})
	}, nil
}

func (t Transformer) run(values []float32, numPoints, numDimensions int, progress ProgressFunc) {
	if numPoints == 0 || numDimensions == 0 {
		progress(1)
		return
	}
	fn := t.Scalar()
	total := float32(numPoints)
	for p := 0; p < numPoints; p++ {
		if fn != nil {
			row := values[p*numDimensions : (p+1)*numDimensions]
			for d := range row {
				row[d] = fn(row[d])
			}
		}
		if done := p + 1; done%CheckpointEvery == 0 {
			progress(float32(done) / total)
		}
	}
	progress(1)
}

func checkShape(values []float32, numPoints, numDimensions int) error {
	if numPoints < 0 || numDimensions < 0 ||
		(numDimensions != 0 && numPoints > math.MaxInt/numDimensions) {
		return fmt.Errorf("%w: %d points x %d dimensions", ErrShape, numPoints, numDimensions)
	}
	if len(values) < numPoints*numDimensions {
		return fmt.Errorf("%w: %d values for %d points x %d dimensions", ErrShape, len(values), numPoints, numDimensions)
	}
	return nil
}
