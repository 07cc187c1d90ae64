package task

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"pointconv/internal/telemetry"
)

func TestTask_Lifecycle(t *testing.T) {
	tk := New("ds")
	var seen []Snapshot
	tk.Observe(func(s Snapshot) { seen = append(seen, s) })

	tk.SetName("Converting")
	tk.SetRunning()
	tk.SetProgressDescription("log2(value+1) conversion")
	tk.SetProgress(0.5)
	tk.SetProgress(1)
	tk.SetFinished()

	got := tk.Snapshot()
	assert.Equal(t, Snapshot{
		Name:        "Converting",
		Description: "log2(value+1) conversion",
		Status:      Finished,
		Progress:    1,
	}, got)
	assert.Len(t, seen, 6, "SetFinished at progress 1 still reports the status change")
	assert.Equal(t, Running, seen[1].Status)
}

func TestTask_ProgressIsMonotonicWhileRunning(t *testing.T) {
	tk := New("ds")
	tk.SetRunning()

	tk.SetProgress(0.6)
	tk.SetProgress(0.3)
	assert.Equal(t, float32(0.6), tk.Snapshot().Progress)

	tk.SetProgress(7)
	assert.Equal(t, float32(1), tk.Snapshot().Progress)
}

func TestTask_ProgressClampsInvalidInput(t *testing.T) {
	tk := New("ds")
	nan := float32(0)
	nan = nan / nan

	tk.SetProgress(-2)
	assert.Equal(t, float32(0), tk.Snapshot().Progress)
	tk.SetProgress(nan)
	assert.Equal(t, float32(0), tk.Snapshot().Progress)
}

func TestTask_RunningResetsProgress(t *testing.T) {
	tk := New("ds")
	tk.SetRunning()
	tk.SetProgress(1)
	tk.SetFinished()

	tk.SetRunning()
	assert.Equal(t, Running, tk.Snapshot().Status)
	assert.Equal(t, float32(0), tk.Snapshot().Progress)
}

func TestTask_RunningGauge(t *testing.T) {
	before := testutil.ToFloat64(telemetry.TasksRunning)

	tk := New("gauge")
	tk.SetRunning()
	assert.Equal(t, before+1, testutil.ToFloat64(telemetry.TasksRunning))

	tk.SetAborted()
	assert.Equal(t, before, testutil.ToFloat64(telemetry.TasksRunning))
	assert.Equal(t, Aborted, tk.Snapshot().Status)
	assert.Equal(t, "aborted", Aborted.String())
}
