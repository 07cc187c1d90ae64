// Package dataset holds point datasets: row-major float32 matrices owned by
// the host and lent to converters through an exclusive write lease.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-uuid"

	"pointconv/internal/task"
)

type DataType string

const PointType DataType = "Points"

var (
	ErrLocked = errors.New("dataset: locked by another writer")
	ErrShape  = errors.New("dataset: values do not match shape")
)

type Points struct {
	id       string
	name     string
	dataType DataType
	task     *task.Task

	busy atomic.Bool
	mu   sync.RWMutex

	numPoints     int
	numDimensions int
	values        []float32
}

// NewPoints wraps values without copying; the slice is owned by the dataset from now on.
func NewPoints(name string, numPoints, numDimensions int, values []float32) (*Points, error) {
	if !shapeFits(numPoints, numDimensions, len(values)) {
		return nil, fmt.Errorf("%w: %d values for %d x %d", ErrShape, len(values), numPoints, numDimensions)
	}
	id, err := uuid.GenerateUUID()
	if err != nil {
		return nil, fmt.Errorf("dataset: id: %w", err)
	}
	return &Points{
		id:            id,
		name:          name,
		dataType:      PointType,
		task:          task.New(name),
		numPoints:     numPoints,
		numDimensions: numDimensions,
		values:        values,
	}, nil
}

// FromRows copies a jagged-free [][]float32 into a new dataset.
func FromRows(name string, rows [][]float32) (*Points, error) {
	dims := 0
	if len(rows) > 0 {
		dims = len(rows[0])
	}
	values := make([]float32, 0, len(rows)*dims)
	for i, r := range rows {
		if len(r) != dims {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrShape, i, len(r), dims)
		}
		values = append(values, r...)
	}
	return NewPoints(name, len(rows), dims, values)
}

func (p *Points) ID() string         { return p.id }
func (p *Points) Name() string       { return p.name }
func (p *Points) Type() DataType     { return p.dataType }
func (p *Points) Task() *task.Task   { return p.task }
func (p *Points) NumPoints() int     { return p.numPoints }
func (p *Points) NumDimensions() int { return p.numDimensions }

// Valid reports whether p can be converted.
func (p *Points) Valid() bool {
	return p != nil && p.dataType == PointType && shapeFits(p.numPoints, p.numDimensions, len(p.values))
}

// shapeFits reports whether n x d is a representable shape holding exactly length values.
func shapeFits(n, d, length int) bool {
	if n < 0 || d < 0 || (d != 0 && n > math.MaxInt/d) {
		return false
	}
	return length == n*d
}

// Locked reports whether a write lease is outstanding.
func (p *Points) Locked() bool { return p.busy.Load() }

// Lock hands out the exclusive write lease. A second caller gets ErrLocked
// instead of waiting, so two conversions of one dataset never interleave.
func (p *Points) Lock() (*Lease, error) {
	if !p.busy.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%w: %s", ErrLocked, p.name)
	}
	p.mu.Lock()
	return &Lease{p: p}, nil
}

// Value reads one cell; it blocks while a lease is held.
func (p *Points) Value(point, dimension int) float32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.values[point*p.numDimensions+dimension]
}

// Snapshot copies the row-major values; it blocks while a lease is held.
func (p *Points) Snapshot() []float32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]float32(nil), p.values...)
}

// Rows copies the values as one slice per point.
func (p *Points) Rows() [][]float32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([][]float32, p.numPoints)
	for i := range out {
		out[i] = append([]float32(nil), p.values[i*p.numDimensions:(i+1)*p.numDimensions]...)
	}
	return out
}

// Lease is the mutable view handed to a single writer.
type Lease struct {
	p    *Points
	once sync.Once
}

// Values is the backing storage; it must not be retained after Unlock.
func (l *Lease) Values() []float32 { return l.p.values }

func (l *Lease) Points() *Points { return l.p }

// Unlock releases the lease; extra calls are no-ops.
func (l *Lease) Unlock() {
	l.once.Do(func() {
		l.p.mu.Unlock()
		l.p.busy.Store(false)
	})
}
