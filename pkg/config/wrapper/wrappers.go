package wrapper

import (
	"context"
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"github.com/code-payments/poc-ledger/pkg/config"
)

// ErrUnsuportedConversion indicates the wrapper does not implement conversion from the source type
var ErrUnsuportedConversion = errors.New("config: wrapper conversion from source type not implemented")

// typedConfig converts the raw values of an override config into T. Env
// configs yield []byte, which goes through parse. Memory configs yield
// native values, which go through convert.
type typedConfig[T any] struct {
	override     config.Config
	defaultValue T
	parse        func(string) (T, error)
	convert      func(interface{}) (T, bool)

	stateMu   sync.RWMutex
	lastValue T
}

func newTypedConfig[T any](override config.Config, defaultValue T, parse func(string) (T, error), convert func(interface{}) (T, bool)) *typedConfig[T] {
	return &typedConfig[T]{
		override:     override,
		defaultValue: defaultValue,
		parse:        parse,
		convert:      convert,
		lastValue:    defaultValue,
	}
}

// GetSafe gets a config value and propagates any errors that arise. A best-effort
// attempt is made to return the last known value
func (c *typedConfig[T]) GetSafe(ctx context.Context) (T, error) {
	override, err := c.override.Get(ctx)

	c.stateMu.RLock()
	lastValue := c.lastValue
	c.stateMu.RUnlock()

	if err == config.ErrNoValue {
		c.set(c.defaultValue)
		return c.defaultValue, nil
	} else if err != nil {
		return lastValue, err
	}

	var newValue T
	switch override := override.(type) {
	case []byte:
		newValue, err = c.parse(string(override))
		if err != nil {
			return lastValue, err
		}
	default:
		var ok bool
		newValue, ok = c.convert(override)
		if !ok {
			return lastValue, ErrUnsuportedConversion
		}
	}

	c.set(newValue)
	return newValue, nil
}

// Get is a wrapper for GetSafe that ignores the returned error
func (c *typedConfig[T]) Get(ctx context.Context) T {
	val, _ := c.GetSafe(ctx)
	return val
}

// Shutdown signals the config to stop all underlying resources
func (c *typedConfig[T]) Shutdown() {
	c.override.Shutdown()
}

func (c *typedConfig[T]) set(v T) {
	c.stateMu.Lock()
	c.lastValue = v
	c.stateMu.Unlock()
}

// NewBoolConfig returns a new bool config utility wrapper
func NewBoolConfig(override config.Config, defaultValue bool) config.Bool {
	return newTypedConfig(override, defaultValue, strconv.ParseBool, func(v interface{}) (bool, bool) {
		b, ok := v.(bool)
		return b, ok
	})
}

// NewFloat64Config returns a new float64 config utility wrapper
func NewFloat64Config(override config.Config, defaultValue float64) config.Float64 {
	parse := func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	}

	return newTypedConfig(override, defaultValue, parse, func(v interface{}) (float64, bool) {
		switch v := v.(type) {
		case float64:
			return v, true
		case float32:
			return float64(v), true
		case int:
			return float64(v), true
		}
		return 0, false
	})
}

// NewUint64Config returns a new uint64 config utility wrapper
func NewUint64Config(override config.Config, defaultValue uint64) config.Uint64 {
	parse := func(s string) (uint64, error) {
		return strconv.ParseUint(s, 10, 64)
	}

	return newTypedConfig(override, defaultValue, parse, func(v interface{}) (uint64, bool) {
		switch v := v.(type) {
		case uint64:
			return v, true
		case int:
			if v >= 0 {
				return uint64(v), true
			}
		}
		return 0, false
	})
}
