package transform

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"pointconv/internal/conversion"
	"pointconv/internal/host"
	"pointconv/internal/plugin"
	"pointconv/internal/wire"
)

// Version is reported by Metadata.
const Version = "0.3.0"

var ErrInvalidRequest = errors.New("transform: invalid request")

type Client interface {
	Metadata(ctx context.Context) (*structpb.Struct, error)
	Health(ctx context.Context) (bool, error)
	Convert(ctx context.Context, req wire.Request) (wire.Request, error)
	Close() error
}

// InProcessClient converts through a host core living in this process.
type InProcessClient struct {
	core *host.Core
}

func NewInProcessClient(core *host.Core) *InProcessClient { return &InProcessClient{core: core} }

func (c *InProcessClient) Metadata(context.Context) (*structpb.Struct, error) { return Metadata() }

func (c *InProcessClient) Health(context.Context) (bool, error) { return true, nil }

func (c *InProcessClient) Close() error { return nil }

// Convert registers req.Dataset with the core for the duration of the call and
// rewrites it in place. The returned request carries the effective kind/factor.
func (c *InProcessClient) Convert(ctx context.Context, req wire.Request) (wire.Request, error) {
	if !req.Dataset.Valid() {
		return wire.Request{}, fmt.Errorf("%w: dataset missing or malformed", ErrInvalidRequest)
	}
	c.core.AddDataset(req.Dataset)
	defer c.core.RemoveDataset(req.Dataset.ID())

	p, err := c.core.RequestPlugin(plugin.Kind)
	if err != nil {
		return wire.Request{}, err
	}
	p.SetInputDataset(req.Dataset)
	if req.HasKind {
		p.SetType(req.Kind)
	}
	if req.Factor != 0 {
		if err := p.SetFactor(req.Factor); err != nil {
			return wire.Request{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}
	if err := p.Transform(ctx); err != nil {
		return wire.Request{}, err
	}
	return wire.Request{Kind: p.Type(), HasKind: true, Factor: p.Factor(), Dataset: req.Dataset}, nil
}

// Metadata describes the plugin: name, version, kinds and the Arcsin settings schema.
func Metadata() (*structpb.Struct, error) {
	schema, err := plugin.SettingsSchema()
	if err != nil {
		return nil, err
	}
	kinds := make([]any, 0, len(conversion.Kinds))
	for _, k := range conversion.Kinds {
		kinds = append(kinds, k.String())
	}
	return structpb.NewStruct(map[string]any{
		"name":            plugin.Kind,
		"version":         Version,
		"kinds":           kinds,
		"settings_schema": string(schema),
	})
}
