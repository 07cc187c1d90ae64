package plugin

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pointconv/internal/conversion"
	"pointconv/internal/dataset"
	"pointconv/internal/task"
)

func scenario(t *testing.T) *dataset.Points {
	t.Helper()
	ds, err := dataset.FromRows("cells", [][]float32{{0, 0}, {1, 2}, {-1, 5}})
	require.NoError(t, err)
	return ds
}

func TestPlugin_TransformLog2(t *testing.T) {
	var changed []*dataset.Points
	f := NewFactory(WithNotifier(NotifierFunc(func(ds *dataset.Points) { changed = append(changed, ds) })))

	ds := scenario(t)
	p := f.Produce()
	p.SetInputDataset(ds)
	p.SetType(conversion.Log2)
	require.NoError(t, p.Transform(context.Background()))

	rows := ds.Rows()
	assert.Equal(t, []float32{0, 0}, rows[0])
	assert.Equal(t, float32(1), rows[1][0])
	assert.InDelta(t, math.Log2(3), rows[1][1], 1e-6)
	assert.True(t, math.IsInf(float64(rows[2][0]), -1))
	assert.InDelta(t, math.Log2(6), rows[2][1], 1e-6)

	assert.Equal(t, []*dataset.Points{ds}, changed)
	assert.False(t, ds.Locked())
	assert.Equal(t, task.Snapshot{
		Name:        TaskName,
		Description: "log2(value+1) conversion",
		Status:      task.Finished,
		Progress:    1,
	}, ds.Task().Snapshot())
}

func TestPlugin_DefaultsToArcSin(t *testing.T) {
	ds := scenario(t)
	p := NewFactory().Produce()
	assert.Equal(t, conversion.ArcSin, p.Type())
	assert.Equal(t, conversion.DefaultFactor, p.Factor())

	p.SetInputDatasets(ds)
	require.NoError(t, p.Transform(context.Background()))

	assert.InDelta(t, math.Asinh(1.0), ds.Value(2, 1), 1e-6)
	assert.Equal(t, "arcsin(value/5.0) conversion", ds.Task().Snapshot().Description)
}

func TestPlugin_TaskObserversRunUnderLease(t *testing.T) {
	ds := scenario(t)
	var lockedDuringTask []bool
	ds.Task().Observe(func(task.Snapshot) { lockedDuringTask = append(lockedDuringTask, ds.Locked()) })

	var readAfter [][]float32
	f := NewFactory(WithNotifier(NotifierFunc(func(ds *dataset.Points) { readAfter = ds.Rows() })))
	p := f.Produce()
	p.SetInputDataset(ds)
	require.NoError(t, p.SetFactor(2.25))
	require.NoError(t, p.Transform(context.Background()))

	require.NotEmpty(t, lockedDuringTask)
	for _, locked := range lockedDuringTask {
		assert.True(t, locked)
	}
	assert.False(t, ds.Locked())
	assert.Len(t, readAfter, 3, "the change notification can read the dataset")
	assert.Equal(t, "arcsin(value/2.25) conversion", ds.Task().Snapshot().Description)
}

func TestPlugin_SetFactorRange(t *testing.T) {
	p := NewFactory().Produce()
	require.NoError(t, p.SetFactor(1))
	require.NoError(t, p.SetFactor(100))
	assert.Error(t, p.SetFactor(0.5))
	assert.Error(t, p.SetFactor(101))
	assert.Equal(t, float32(100), p.Factor())

	p.SetType(conversion.Log2)
	p.SetType(conversion.ArcSin)
	assert.Equal(t, float32(100), p.Factor(), "switching kinds keeps the factor")
}

func TestPlugin_SkipsInvalidDatasets(t *testing.T) {
	ds := scenario(t)
	p := NewFactory().Produce()
	p.SetInputDatasets(nil, ds)
	p.SetType(conversion.Log2)

	require.NoError(t, p.Transform(context.Background()))
	assert.Equal(t, float32(1), ds.Value(1, 0))
}

func TestPlugin_RejectsLockedDataset(t *testing.T) {
	busy := scenario(t)
	free := scenario(t)
	lease, err := busy.Lock()
	require.NoError(t, err)

	p := NewFactory().Produce()
	p.SetInputDatasets(busy, free)
	p.SetType(conversion.Log2)
	err = p.Transform(context.Background())
	require.ErrorIs(t, err, dataset.ErrLocked)

	assert.Equal(t, []float32{0, 0, 1, 2, -1, 5}, lease.Values(), "held dataset is untouched")
	lease.Unlock()
	assert.Equal(t, float32(1), free.Value(1, 0), "other datasets still convert")
}

func TestPlugin_CanceledContextStopsBeforeNextDataset(t *testing.T) {
	ds := scenario(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewFactory().Produce()
	p.SetInputDatasets(ds)
	err := p.Transform(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, float32(2), ds.Value(1, 1))
	assert.Equal(t, task.Idle, ds.Task().Snapshot().Status)
}

func TestPlugin_NotifierMayReadDataset(t *testing.T) {
	var seen []float32
	f := NewFactory(WithNotifier(NotifierFunc(func(ds *dataset.Points) { seen = ds.Snapshot() })))
	ds := scenario(t)

	p := f.Produce()
	p.SetInputDatasets(ds)
	p.SetType(conversion.Log2)
	require.NoError(t, p.Transform(context.Background()))
	assert.Len(t, seen, 6)
}

func TestFactory_TriggerActions(t *testing.T) {
	f := NewFactory()
	a, b := scenario(t), scenario(t)

	actions := f.TriggerActions([]*dataset.Points{a, b})
	require.Len(t, actions, 2)

	assert.Equal(t, "Log2", actions[0].Name)
	assert.Equal(t, "Perform Log2 data conversion", actions[0].Description)
	assert.Nil(t, actions[0].Settings)

	assert.Equal(t, "Arcsin", actions[1].Name)
	assert.Equal(t, "Perform Arcsin data conversion", actions[1].Description)
	require.NotNil(t, actions[1].Settings)
	assert.Equal(t, float32(5), actions[1].Settings.Factor)
	assert.Len(t, actions[1].Datasets(), 2)

	assert.Empty(t, f.TriggerActions(nil))
	assert.Empty(t, f.TriggerActions([]*dataset.Points{a, nil}))
	assert.Empty(t, f.TriggerActionsForTypes([]dataset.DataType{dataset.PointType}))
}

func TestTriggerAction_ConvertsEachDatasetOnce(t *testing.T) {
	a, b := scenario(t), scenario(t)
	actions := NewFactory().TriggerActions([]*dataset.Points{a, b})

	require.NoError(t, actions[0].Trigger(context.Background()))
	for _, ds := range []*dataset.Points{a, b} {
		assert.Equal(t, float32(1), ds.Value(1, 0))
		assert.InDelta(t, math.Log2(3), ds.Value(1, 1), 1e-6)
	}
}

func TestTriggerAction_ArcSinUsesSettings(t *testing.T) {
	ds := scenario(t)
	actions := NewFactory().TriggerActions([]*dataset.Points{ds})
	actions[1].Settings.Factor = 10

	require.NoError(t, actions[1].Trigger(context.Background()))
	assert.InDelta(t, math.Asinh(0.5), ds.Value(2, 1), 1e-6)

	actions[1].Settings.Factor = 1000
	assert.Error(t, actions[1].Trigger(context.Background()))
}

func TestSettingsSchema(t *testing.T) {
	b, err := SettingsSchema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(b, &doc))
	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok, "schema: %s", b)
	factor, ok := props["factor"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "number", factor["type"])
	assert.EqualValues(t, 1, factor["minimum"])
	assert.EqualValues(t, 100, factor["maximum"])
	assert.EqualValues(t, 5, factor["default"])
}

func TestRegistry(t *testing.T) {
	f, err := NewFactoryFor(Kind, WithDefaults(conversion.Log2, 0))
	require.NoError(t, err)
	assert.Equal(t, conversion.Log2, f.Produce().Type())

	_, err = NewFactoryFor("nope")
	assert.Error(t, err)
}
