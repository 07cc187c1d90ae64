package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pointconv/internal/conversion"
)

func TestLoadEngine_Defaults(t *testing.T) {
	cfg, err := LoadEngine("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.GRPCPort)
	assert.Equal(t, 9100, cfg.MetricsPort)
	assert.Equal(t, "info", cfg.Log.Level)

	kind, factor, err := cfg.Conversion.Resolve()
	require.NoError(t, err)
	assert.Equal(t, conversion.ArcSin, kind)
	assert.Equal(t, float32(5), factor)
}

func TestLoadEngine_MissingFileIsNotAnError(t *testing.T) {
	_, err := LoadEngine(t.TempDir() + "/absent.yml")
	require.NoError(t, err)
}

func TestLoadEngine_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "pointconv.yml", `grpc_port: 7171
pipeline: pipeline.yml
log:
  level: warn
conversion:
  kind: arcsin
  factor: 10
`)
	t.Setenv("POINTCONV__LOG__JSON", "true")
	t.Setenv("POINTCONV__METRICS_PORT", "9200")

	cfg, err := LoadEngine(p)
	require.NoError(t, err)
	assert.Equal(t, 7171, cfg.GRPCPort)
	assert.Equal(t, 9200, cfg.MetricsPort)
	assert.Equal(t, "pipeline.yml", cfg.Pipeline)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, float32(10), cfg.Conversion.Factor)
}

func TestLoadEngine_Invalid(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "pointconv.yml", "conversion: { kind: sqrt }\n")
	_, err := LoadEngine(p)
	require.Error(t, err)

	p = writeFile(t, dir, "ports.yml", "grpc_port: 70000\n")
	_, err = LoadEngine(p)
	require.Error(t, err)
}

func TestConversion_AcceptsEveryParsableKind(t *testing.T) {
	for _, name := range []string{"log2", "LOG2", "Arcsin", "asinh", "ASINH", "arcsinh"} {
		t.Run(name, func(t *testing.T) {
			c := Conversion{Kind: name}
			require.NoError(t, validate.Struct(c))
			_, _, err := c.Resolve()
			require.NoError(t, err)
		})
	}
	assert.Error(t, validate.Struct(Conversion{Kind: "sqrt"}))
}
