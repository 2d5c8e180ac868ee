package scheduler

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/multierr"

	"github.com/OCharnyshevich/chunkgen/internal/server/world/pipeline"
	"github.com/OCharnyshevich/chunkgen/internal/server/world/stage"
)

// Config tunes a Scheduler.
type Config struct {
	Workers      int
	PollInterval time.Duration
	// ViewRadius is the Chebyshev radius, in chunks, kept Full around the focal point.
	ViewRadius      int
	RetentionMargin int
	// MaxEmergency caps how far urgency propagates down a dependency chain.
	MaxEmergency int
	// MaxBlockArrays bounds live block arrays; zero means unlimited.
	MaxBlockArrays int
	// VerifyLinks checks neighbour link symmetry after every step and
	// panics on a mismatch.
	VerifyLinks   bool
	StatsInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:         runtime.NumCPU(),
		PollInterval:    50 * time.Millisecond,
		ViewRadius:      8,
		RetentionMargin: 2,
		MaxEmergency:    16,
		StatsInterval:   10 * time.Second,
	}
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs error
	if c.Workers < 1 {
		errs = multierr.Append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.PollInterval <= 0 {
		errs = multierr.Append(errs, errors.New("poll interval must be positive"))
	}
	if c.ViewRadius < 0 {
		errs = multierr.Append(errs, fmt.Errorf("view radius must not be negative, got %d", c.ViewRadius))
	}
	if c.RetentionMargin < 0 {
		errs = multierr.Append(errs, fmt.Errorf("retention margin must not be negative, got %d", c.RetentionMargin))
	}
	if c.MaxEmergency < 1 {
		errs = multierr.Append(errs, fmt.Errorf("max emergency must be at least 1, got %d", c.MaxEmergency))
	}
	if c.MaxBlockArrays < 0 {
		errs = multierr.Append(errs, fmt.Errorf("max block arrays must not be negative, got %d", c.MaxBlockArrays))
	}
	return errs
}

// Retention holds per-stage radii around the focal point. Need bounds how
// far a stage is still generated; Keep bounds how far a chunk at that
// stage stays cached.
type Retention struct {
	Need [stage.Count]int
	Keep [stage.Count]int
}

// RetentionFor derives retention from a view radius and margin. Every
// stage's need covers the dependencies of the stage after it, so a chunk
// inside the need radius never waits on a neighbour outside it.
func RetentionFor(view, margin int) Retention {
	var r Retention
	r.Need[stage.Full] = view + margin
	r.Need[stage.Noise] = view + pipeline.FeatureRadius + margin
	r.Need[stage.StructureReference] = r.Need[stage.Noise]
	r.Need[stage.StructureSeed] = r.Need[stage.Noise] + pipeline.ReferenceRadius
	r.Need[stage.Empty] = r.Need[stage.StructureSeed]

	r.Keep = r.Need
	// Full chunks past the view edge are still neighbours of visible ones.
	r.Keep[stage.Full] = r.Need[stage.Noise]
	return r
}
