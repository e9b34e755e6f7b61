// Package config loads environment-driven configuration structs.
//
// Values come from the process environment, optionally seeded from .env
// files, and are parsed into structs annotated with `env` tags:
//
//	type Demo struct {
//	    FrameRate int `env:"FSM_FRAME_RATE" envDefault:"60"`
//	}
//
//	var cfg Demo
//	err := config.Load(&cfg)
//
// Each struct type is parsed once and cached for the life of the process.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	// ErrParsingConfig is returned when the environment cannot be parsed into the struct.
	ErrParsingConfig = errors.New("failed to parse environment into config")

	// ErrNilPointer is returned when Load is given a nil pointer.
	ErrNilPointer = errors.New("nil pointer provided to config loader")
)

var (
	mut    sync.Mutex     //nolint:gochecknoglobals
	cache  map[string]any //nolint:gochecknoglobals
	dotenv sync.Once      //nolint:gochecknoglobals
)

// LoadEnv loads the given .env files into the process environment. Files
// listed later take precedence over earlier ones. Variables already set in
// the environment are never overwritten by the first file but later files
// override earlier files.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		return godotenv.Load()
	}

	if err := godotenv.Load(paths[0]); err != nil {
		return fmt.Errorf("failed to load %q: %w", paths[0], err)
	}

	if len(paths) > 1 {
		if err := godotenv.Overload(paths[1:]...); err != nil {
			return fmt.Errorf("failed to load env overrides: %w", err)
		}
	}

	return nil
}

// Load parses the environment into v. The default .env file in the working
// directory is loaded on first use if present. Subsequent calls for the same
// type return the cached value.
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}

	dotenv.Do(func() {
		// A missing .env file is fine.
		_ = godotenv.Load()
	})

	key := typeName[T]()

	mut.Lock()
	defer mut.Unlock()

	if cached, ok := cache[key]; ok {
		*v = cached.(T) //nolint:forcetypeassert // keyed by type name

		return nil
	}

	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}

	if cache == nil {
		cache = make(map[string]any)
	}

	cache[key] = *v

	return nil
}

// MustLoad is like Load but panics on failure.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// ForceReload discards the cached value for T and parses the environment again.
func ForceReload[T any](v *T) error {
	mut.Lock()
	delete(cache, typeName[T]())
	mut.Unlock()

	return Load(v)
}

// ResetCache discards every cached configuration.
func ResetCache() {
	mut.Lock()
	defer mut.Unlock()

	cache = nil
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}
