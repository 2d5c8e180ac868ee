package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"

	"github.com/OCharnyshevich/chunkgen/internal/server/world/scheduler"
	"github.com/OCharnyshevich/chunkgen/internal/server/world/stage"
)

// Config holds the generator configuration.
type Config struct {
	World     WorldConfig     `toml:"world"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Render    RenderConfig    `toml:"render"`
	Driver    DriverConfig    `toml:"driver"`
	Logging   LoggingConfig   `toml:"logging"`
}

type WorldConfig struct {
	Seed      int64  `toml:"seed"`
	Generator string `toml:"generator"` // "default" or "flat"
	// VerticalCurve is a list of [y, offset] pairs; empty uses the built-in curve.
	VerticalCurve [][2]float64 `toml:"vertical_curve"`
	// Catalog is a structure catalog YAML file; empty uses the built-in one.
	Catalog string `toml:"catalog"`
}

type SchedulerConfig struct {
	Workers         int           `toml:"workers"`
	PollInterval    time.Duration `toml:"poll_interval"`
	ViewRadius      int           `toml:"view_radius"`
	RetentionMargin int           `toml:"retention_margin"`
	MaxEmergency    int           `toml:"max_emergency"`
	MaxBlockArrays  int           `toml:"max_block_arrays"` // 0 = unlimited
	VerifyLinks     bool          `toml:"verify_links"`
	StatsInterval   time.Duration `toml:"stats_interval"`
}

type RenderConfig struct {
	Workers   int `toml:"workers"`
	QueueSize int `toml:"queue_size"`
}

// Config converts the section into the scheduler's own config.
func (c SchedulerConfig) Config() scheduler.Config {
	return scheduler.Config{
		Workers:         c.Workers,
		PollInterval:    c.PollInterval,
		ViewRadius:      c.ViewRadius,
		RetentionMargin: c.RetentionMargin,
		MaxEmergency:    c.MaxEmergency,
		MaxBlockArrays:  c.MaxBlockArrays,
		VerifyLinks:     c.VerifyLinks,
		StatsInterval:   c.StatsInterval,
	}
}

// DriverConfig moves a simulated viewer through the world.
type DriverConfig struct {
	Tick        time.Duration `toml:"tick"`
	Speed       float64       `toml:"speed"`   // blocks per second
	Heading     float64       `toml:"heading"` // degrees, 0 = +X
	StartX      float64       `toml:"start_x"`
	StartZ      float64       `toml:"start_z"`
	PreGenerate int           `toml:"pre_generate"` // radius generated to Full before moving
	// Stage is what chunks around the viewer are generated to.
	Stage stage.Stage `toml:"stage"`
	Duration    time.Duration `toml:"duration"`     // 0 = until stopped
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "console" or "json"
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	sched := scheduler.DefaultConfig()
	return &Config{
		World: WorldConfig{
			Generator: "default",
		},
		Scheduler: SchedulerConfig{
			Workers:         sched.Workers,
			PollInterval:    sched.PollInterval,
			ViewRadius:      sched.ViewRadius,
			RetentionMargin: sched.RetentionMargin,
			MaxEmergency:    sched.MaxEmergency,
			MaxBlockArrays:  sched.MaxBlockArrays,
			StatsInterval:   sched.StatsInterval,
		},
		Render: RenderConfig{
			Workers:   2,
			QueueSize: 256,
		},
		Driver: DriverConfig{
			Tick:        100 * time.Millisecond,
			Speed:       8,
			PreGenerate: 2,
			Stage:       stage.Full,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads a TOML file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs error
	switch c.World.Generator {
	case "default", "flat":
	default:
		errs = multierr.Append(errs, fmt.Errorf("world.generator: unknown generator %q", c.World.Generator))
	}
	for i := 1; i < len(c.World.VerticalCurve); i++ {
		if c.World.VerticalCurve[i][0] <= c.World.VerticalCurve[i-1][0] {
			errs = multierr.Append(errs, fmt.Errorf("world.vertical_curve: heights must increase at point %d", i))
			break
		}
	}

	for _, err := range multierr.Errors(c.Scheduler.Config().Validate()) {
		errs = multierr.Append(errs, fmt.Errorf("scheduler: %w", err))
	}

	if c.Render.Workers < 1 {
		errs = multierr.Append(errs, fmt.Errorf("render.workers: must be at least 1, got %d", c.Render.Workers))
	}
	if c.Render.QueueSize < 1 {
		errs = multierr.Append(errs, fmt.Errorf("render.queue_size: must be at least 1, got %d", c.Render.QueueSize))
	}

	if c.Driver.Tick <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("driver.tick: must be positive, got %s", c.Driver.Tick))
	}
	if c.Driver.PreGenerate < 0 {
		errs = multierr.Append(errs, fmt.Errorf("driver.pre_generate: must not be negative, got %d", c.Driver.PreGenerate))
	}
	if c.Driver.Stage == stage.Empty || int(c.Driver.Stage) >= stage.Count {
		errs = multierr.Append(errs, fmt.Errorf("driver.stage: must be past empty, got %v", c.Driver.Stage))
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("logging.level: %w", err))
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		errs = multierr.Append(errs, fmt.Errorf("logging.format: unknown format %q", c.Logging.Format))
	}
	return errs
}

// Merge replaces cfg with fromFile, keeping the values of flags named in
// explicitFlags.
func Merge(cfg *Config, fromFile *Config, explicitFlags map[string]bool) {
	flagged := *cfg
	*cfg = *fromFile
	if explicitFlags["seed"] {
		cfg.World.Seed = flagged.World.Seed
	}
	if explicitFlags["generator"] {
		cfg.World.Generator = flagged.World.Generator
	}
	if explicitFlags["workers"] {
		cfg.Scheduler.Workers = flagged.Scheduler.Workers
	}
	if explicitFlags["view-radius"] {
		cfg.Scheduler.ViewRadius = flagged.Scheduler.ViewRadius
	}
	if explicitFlags["verify-links"] {
		cfg.Scheduler.VerifyLinks = flagged.Scheduler.VerifyLinks
	}
	if explicitFlags["speed"] {
		cfg.Driver.Speed = flagged.Driver.Speed
	}
	if explicitFlags["stage"] {
		cfg.Driver.Stage = flagged.Driver.Stage
	}
	if explicitFlags["duration"] {
		cfg.Driver.Duration = flagged.Driver.Duration
	}
	if explicitFlags["log-level"] {
		cfg.Logging.Level = flagged.Logging.Level
	}
}
