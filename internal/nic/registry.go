package nic

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mitchellh/mapstructure"

	"firestige.xyz/bypass/internal/core"
)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a driver available to Open under name. It panics on an empty
// name, a nil factory or a duplicate name, all of which are programming errors.
func Register(name string, f Factory) {
	if name == "" {
		panic("nic: Register with empty name")
	}
	if f == nil {
		panic("nic: Register " + name + " with nil factory")
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[name]; exists {
		panic("nic: driver " + name + " registered twice")
	}
	factories[name] = f
}

// Open builds the named driver.
func Open(name string, opts map[string]any) (Driver, error) {
	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("driver %q: %w", name, core.ErrDriverNotFound)
	}
	if opts == nil {
		opts = map[string]any{}
	}
	d, err := f(opts)
	if err != nil {
		return nil, fmt.Errorf("open %s driver: %w", name, err)
	}
	return d, nil
}

// Names returns the registered driver names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset drops every registration. Only tests should call it.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	factories = make(map[string]Factory)
}

// DecodeOptions fills out from a driver options map. Keys match `mapstructure`
// tags, strings are converted to numbers and booleans where needed, and
// durations may be given as "10ms" style strings.
func DecodeOptions(opts map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(opts); err != nil {
		return fmt.Errorf("%v: %w", err, core.ErrConfigInvalid)
	}
	return nil
}
