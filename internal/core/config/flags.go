// Package config exposes engine configuration toggles.
// The resolution and allocation passes consult these flags only through the
// Flags interface; how they are sourced (env, database, cache) is up to the
// wiring code.
package config

import (
	"context"
	"os"
	"strconv"
)

// Flags is the read-only view of engine toggles.
type Flags interface {
	// AutoProductionEnabled reports whether shortage resolution may synthesize
	// production batches before a commit.
	AutoProductionEnabled(ctx context.Context) bool

	// AllowNegativeAvailability reports whether commits may drive stock below
	// zero instead of failing.
	AllowNegativeAvailability(ctx context.Context) bool

	// LotsEnabled reports whether lot tracking and allocation are active.
	LotsEnabled(ctx context.Context) bool
}

// Static is a fixed flag set. Used in tests and single-tenant deployments.
type Static struct {
	AutoProduction    bool
	NegativeAvailable bool
	Lots              bool
}

func (s Static) AutoProductionEnabled(context.Context) bool     { return s.AutoProduction }
func (s Static) AllowNegativeAvailability(context.Context) bool { return s.NegativeAvailable }
func (s Static) LotsEnabled(context.Context) bool               { return s.Lots }

// FromEnv builds a Static flag set from environment variables.
// Unset variables default to: auto-production on, negative availability off,
// lots on.
func FromEnv() Static {
	return Static{
		AutoProduction:    envBool("FABRICA_AUTO_PRODUCTION", true),
		NegativeAvailable: envBool("FABRICA_ALLOW_NEGATIVE", false),
		Lots:              envBool("FABRICA_LOTS", true),
	}
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

var _ Flags = Static{}
