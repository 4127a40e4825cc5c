// Package config loads service configuration from the process environment.
package config

import (
	"fmt"
	"reflect"

	"github.com/caarlos0/env/v10"
)

// Load populates cfg from environment variables using `env` struct tags
// (`envDefault` for fallbacks, `envSeparator` for slice values such as
// broker lists). cfg must be a non-nil pointer to a struct; anything else
// is a wiring mistake, reported as an error so the caller fails at boot
// rather than running on zero values.
func Load(cfg any) error {
	v := reflect.ValueOf(cfg)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config: Load needs a non-nil struct pointer, got %T", cfg)
	}
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("config: parse environment: %w", err)
	}
	return nil
}
