package driver

import (
	"context"
	"fmt"
	"sort"

	"github.com/san-kum/posetrack/internal/config"
	"github.com/san-kum/posetrack/internal/device"
	"github.com/san-kum/posetrack/internal/device/mqttbridge"
	"github.com/san-kum/posetrack/internal/device/simulated"
)

type Factory func(ctx context.Context, cfg *config.Config) (device.Runtime, error)

type Registry struct {
	drivers map[string]Factory
}

func NewRegistry() *Registry {
	r := &Registry{drivers: make(map[string]Factory)}

	r.drivers["simulated"] = func(_ context.Context, cfg *config.Config) (device.Runtime, error) {
		return simulated.Open(cfg)
	}
	r.drivers["mqtt"] = mqttbridge.Open

	return r
}

func (r *Registry) Register(name string, f Factory) {
	r.drivers[name] = f
}

// Open starts the named device runtime. The caller owns the returned
// runtime and must Close it.
func (r *Registry) Open(ctx context.Context, name string, cfg *config.Config) (device.Runtime, error) {
	f, ok := r.drivers[name]
	if !ok {
		return nil, fmt.Errorf("unknown driver: %s (available: %v)", name, r.List())
	}
	return f(ctx, cfg)
}

func (r *Registry) List() []string {
	names := make([]string, 0, len(r.drivers))
	for name := range r.drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
