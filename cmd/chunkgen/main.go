package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/OCharnyshevich/chunkgen/internal/server"
	"github.com/OCharnyshevich/chunkgen/internal/server/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.DefaultConfig()

	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Int64Var(&cfg.World.Seed, "seed", cfg.World.Seed, "world seed")
	flag.StringVar(&cfg.World.Generator, "generator", cfg.World.Generator, "terrain generator: default or flat")
	flag.IntVar(&cfg.Scheduler.Workers, "workers", cfg.Scheduler.Workers, "generation worker count")
	flag.IntVar(&cfg.Scheduler.ViewRadius, "view-radius", cfg.Scheduler.ViewRadius, "view radius in chunks")
	flag.BoolVar(&cfg.Scheduler.VerifyLinks, "verify-links", cfg.Scheduler.VerifyLinks, "check neighbour links after every step")
	flag.Float64Var(&cfg.Driver.Speed, "speed", cfg.Driver.Speed, "viewer speed in blocks per second")
	flag.TextVar(&cfg.Driver.Stage, "stage", cfg.Driver.Stage, "stage to generate around the viewer")
	flag.DurationVar(&cfg.Driver.Duration, "duration", cfg.Driver.Duration, "stop after this long (0 = until interrupted)")
	flag.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "log level: debug, info, warn, error")
	flag.Parse()

	if *configPath != "" {
		fromFile, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		explicit := make(map[string]bool)
		flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
		config.Merge(cfg, fromFile, explicit)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv, err := server.New(cfg, log)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	st := srv.Stats()
	log.Info("done",
		zap.Int("cached", st.Cached),
		zap.Uint64("advanced", st.Advanced),
		zap.Uint64("rendered", st.Rendered),
		zap.Uint64("evicted", st.Evicted),
	)
	return nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
