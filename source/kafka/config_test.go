package kafka

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_YAMLEnvAndDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "kafka_source.yml")
	require.NoError(t, os.WriteFile(p, []byte(`schema_version: v1
brokers: [b1:9092]
topics: [datasets]
group_id: pointconv
commit_mode: e2e
checkpoint:
  commit_interval: 250ms
`), 0o644))
	t.Setenv("POINTCONV_KAFKA__BACKPRESSURE__CAPACITY", "64")

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"b1:9092"}, cfg.Brokers)
	assert.Equal(t, CommitE2E, cfg.CommitMode)
	assert.Equal(t, 250*time.Millisecond, cfg.Checkpoint.CommitInt)
	assert.Equal(t, int64(64), cfg.BackPressure.Capacity)
	assert.Equal(t, "newest", cfg.StartFrom)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_UnsupportedSchema(t *testing.T) {
	p := filepath.Join(t.TempDir(), "kafka_source.yml")
	require.NoError(t, os.WriteFile(p, []byte("schema_version: v2\n"), 0o644))
	_, err := LoadConfig(p)
	require.Error(t, err)
}

func TestLoadConfig_UnknownCommitModeFallsBackToAuto(t *testing.T) {
	p := filepath.Join(t.TempDir(), "kafka_source.yml")
	require.NoError(t, os.WriteFile(p, []byte("commit_mode: sometimes\n"), 0o644))
	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	assert.Equal(t, CommitAuto, cfg.CommitMode)
	assert.Error(t, cfg.Validate(), "brokers, topics and group are required")
}

func TestRegistry(t *testing.T) {
	Register("test", func() Adapter { return &SaramaDriver{} })
	a, err := NewAdapter("test")
	require.NoError(t, err)
	assert.IsType(t, &SaramaDriver{}, a)
	assert.Contains(t, Drivers(), "test")

	_, err = NewAdapter("nope")
	assert.Error(t, err)
}

func TestLimiter(t *testing.T) {
	l := NewLimiter(2)
	assert.True(t, l.TryAcquire())
	assert.True(t, l.TryAcquire())
	assert.False(t, l.TryAcquire())
	l.Release(5)
	assert.Equal(t, 0, l.InFlight())
	assert.Equal(t, 2, l.Capacity())
}

func TestCommitClock(t *testing.T) {
	now := time.Unix(100, 0)
	c := newCommitClock(time.Second)
	c.now = func() time.Time { return now }

	assert.True(t, c.due())
	assert.False(t, c.due())
	now = now.Add(time.Second)
	assert.True(t, c.due())
}
