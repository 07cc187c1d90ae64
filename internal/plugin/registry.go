package plugin

import "fmt"

// NewFunc builds a factory; hosts pass their own options (notifier, defaults).
type NewFunc func(...Option) *Factory

var registry = map[string]NewFunc{}

func Register(kind string, fn NewFunc) {
	registry[kind] = fn
}

// NewFactoryFor looks up kind and builds its factory.
func NewFactoryFor(kind string, opts ...Option) (*Factory, error) {
	if fn, ok := registry[kind]; ok {
		return fn(opts...), nil
	}
	return nil, fmt.Errorf("plugin: unknown kind %q", kind)
}

func init() { Register(Kind, NewFactory) }
