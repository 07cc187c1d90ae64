package host

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pointconv/internal/dataset"
	"pointconv/internal/plugin"
)

func addScenario(t *testing.T, c *Core) *dataset.Points {
	t.Helper()
	ds, err := dataset.FromRows("cells", [][]float32{{0, 0}, {1, 2}, {-1, 5}})
	require.NoError(t, err)
	c.AddDataset(ds)
	return ds
}

func TestCore_TriggerLog2(t *testing.T) {
	c := New()
	ds := addScenario(t, c)

	var revs []uint64
	c.Subscribe(func(_ *dataset.Points, rev uint64) { revs = append(revs, rev) })

	require.NoError(t, c.Trigger(context.Background(), plugin.Kind, "Log2", nil, ds.ID()))
	assert.InDelta(t, math.Log2(6), ds.Value(2, 1), 1e-6)
	assert.Equal(t, uint64(1), c.Revision(ds.ID()))
	assert.Equal(t, []uint64{1}, revs)
}

func TestCore_TriggerArcSinWithSettings(t *testing.T) {
	c := New()
	ds := addScenario(t, c)

	err := c.Trigger(context.Background(), plugin.Kind, "Arcsin", &plugin.Settings{Factor: 2}, ds.ID())
	require.NoError(t, err)
	assert.InDelta(t, math.Asinh(2.5), ds.Value(2, 1), 1e-6)
}

func TestCore_Errors(t *testing.T) {
	c := New()
	ds := addScenario(t, c)

	assert.Error(t, c.Trigger(context.Background(), plugin.Kind, "Log2", nil, "missing"))
	assert.Error(t, c.Trigger(context.Background(), "OtherPlugin", "Log2", nil, ds.ID()))
	assert.Error(t, c.Trigger(context.Background(), plugin.Kind, "Sqrt", nil, ds.ID()))
	assert.Error(t, c.Trigger(context.Background(), plugin.Kind, "Log2", nil))
}

func TestCore_RequestPluginSharesFactory(t *testing.T) {
	c := New()
	p1, err := c.RequestPlugin(plugin.Kind)
	require.NoError(t, err)
	p2, err := c.RequestPlugin(plugin.Kind)
	require.NoError(t, err)

	assert.NotSame(t, p1, p2)
	assert.Same(t, p1.Factory(), p2.Factory())
}

func TestCore_RemoveDataset(t *testing.T) {
	c := New()
	ds := addScenario(t, c)
	c.RemoveDataset(ds.ID())

	_, ok := c.Dataset(ds.ID())
	assert.False(t, ok)
}
