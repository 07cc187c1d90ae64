package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"pointconv/internal/conversion"
	"pointconv/internal/logging"
)

const envPrefix = "POINTCONV__"

var validate = newValidator()

// newValidator adds conversion_kind, which accepts exactly what
// conversion.ParseKind accepts.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("conversion_kind", func(fl validator.FieldLevel) bool {
		_, err := conversion.ParseKind(fl.Field().String())
		return err == nil
	})
	return v
}

// Conversion holds the transform applied when a request does not name one.
type Conversion struct {
	Kind   string  `koanf:"kind" yaml:"kind" validate:"omitempty,conversion_kind"`
	Factor float32 `koanf:"factor" yaml:"factor" validate:"omitempty,gte=1,lte=100"`
}

// Resolve parses Kind; an empty Kind means Arcsin.
func (c Conversion) Resolve() (conversion.Kind, float32, error) {
	kind := conversion.ArcSin
	if c.Kind != "" {
		k, err := conversion.ParseKind(c.Kind)
		if err != nil {
			return 0, 0, err
		}
		kind = k
	}
	factor := c.Factor
	if factor == 0 {
		factor = conversion.DefaultFactor
	}
	return kind, factor, nil
}

type Engine struct {
	GRPCPort    int             `koanf:"grpc_port" validate:"gte=0,lte=65535"`
	MetricsPort int             `koanf:"metrics_port" validate:"gte=0,lte=65535"`
	Pipeline    string          `koanf:"pipeline"`
	Log         logging.Options `koanf:"log"`
	Conversion  Conversion      `koanf:"conversion"`
}

// LoadEngine merges an optional YAML file with POINTCONV__ env vars
// (POINTCONV__LOG__LEVEL=debug sets log.level) and validates the result.
func LoadEngine(path string) (Engine, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return Engine{}, fmt.Errorf("engine config %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return Engine{}, err
	}

	var cfg Engine
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, err
	}
	applyEngineDefaults(&cfg)
	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("engine config: %w", err)
	}
	return cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
}

func applyEngineDefaults(c *Engine) {
	if c.GRPCPort == 0 {
		c.GRPCPort = 7070
	}
	if c.MetricsPort == 0 {
		c.MetricsPort = 9100
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}
