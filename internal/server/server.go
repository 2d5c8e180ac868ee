package server

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/OCharnyshevich/chunkgen/internal/server/config"
	"github.com/OCharnyshevich/chunkgen/internal/server/world"
	"github.com/OCharnyshevich/chunkgen/internal/server/world/chunk"
	"github.com/OCharnyshevich/chunkgen/internal/server/world/render"
	"github.com/OCharnyshevich/chunkgen/internal/server/world/scheduler"
	"github.com/OCharnyshevich/chunkgen/pkg/world/gen"
)

// Server drives chunk generation around a simulated viewer.
type Server struct {
	cfg    *config.Config
	log    *zap.Logger
	sched  *scheduler.Scheduler
	render *render.Dispatcher
	world  *world.World
	stats  rate.Sometimes
}

// New creates a Server with the given config and logger.
func New(cfg *config.Config, log *zap.Logger) (*Server, error) {
	terrain, err := newTerrain(cfg.World)
	if err != nil {
		return nil, err
	}
	catalog := gen.DefaultCatalog()
	if cfg.World.Catalog != "" {
		if catalog, err = gen.LoadCatalog(cfg.World.Catalog); err != nil {
			return nil, err
		}
	}

	dispatcher := render.NewDispatcher(cfg.Render.Workers, cfg.Render.QueueSize, render.NewLogMesher(log), log)
	planner := gen.NewPlanner(cfg.World.Seed, terrain, catalog)
	sched := scheduler.New(cfg.Scheduler.Config(), terrain, planner, dispatcher, log)

	return &Server{
		cfg:    cfg,
		log:    log.Named("server"),
		sched:  sched,
		render: dispatcher,
		world:  world.New(sched, terrain),
		stats:  rate.Sometimes{Interval: cfg.Scheduler.StatsInterval},
	}, nil
}

func newTerrain(cfg config.WorldConfig) (gen.Terrain, error) {
	switch cfg.Generator {
	case "flat":
		return gen.NewFlatTerrain(cfg.Seed), nil
	case "default", "":
		curve := gen.DefaultCurve()
		if len(cfg.VerticalCurve) > 0 {
			var err error
			if curve, err = gen.NewOffsetCurve(cfg.VerticalCurve); err != nil {
				return nil, fmt.Errorf("world.vertical_curve: %w", err)
			}
		}
		return gen.NewDefaultTerrain(cfg.Seed, curve), nil
	default:
		return nil, fmt.Errorf("unknown generator %q", cfg.Generator)
	}
}

// World returns the block view over the scheduler.
func (s *Server) World() *world.World { return s.world }

// Stats returns the scheduler's counters.
func (s *Server) Stats() scheduler.Stats { return s.sched.Stats() }

// Run starts the scheduler and the render dispatcher and moves the viewer
// until ctx is cancelled or the configured duration elapses. The scheduler
// is drained before the dispatcher stops.
func (s *Server) Run(ctx context.Context) error {
	renderCtx, stopRender := context.WithCancel(context.WithoutCancel(ctx))
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.render.Run(renderCtx)
	})
	g.Go(func() error {
		defer stopRender()
		if err := s.sched.Start(gctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer s.sched.Stop()
		return s.drive(gctx)
	})
	return g.Wait()
}

func (s *Server) drive(ctx context.Context) error {
	d := s.cfg.Driver
	if d.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Duration)
		defer cancel()
	}

	v := newViewer(d.StartX, float64(s.world.SpawnHeight()), d.StartZ, d.Speed, d.Heading)
	current := v.chunk()
	s.sched.SetFocalPoint(current)
	s.log.Info("server started",
		zap.String("generator", s.cfg.World.Generator),
		zap.Int64("seed", s.cfg.World.Seed),
		zap.Stringer("chunk", current),
		zap.Int("viewRadius", s.cfg.Scheduler.ViewRadius),
	)

	if d.PreGenerate > 0 {
		start := time.Now()
		n, err := s.world.PreGenerateRadius(ctx, current, min(d.PreGenerate, s.cfg.Scheduler.ViewRadius))
		if err != nil {
			return s.stopped(ctx, err)
		}
		s.log.Info("pre-generated spawn area", zap.Int("chunks", n), zap.Duration("took", time.Since(start)))
	}
	s.sched.RequestRegion(current, s.cfg.Scheduler.ViewRadius, d.Stage)

	ticker := time.NewTicker(d.Tick)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return s.stopped(ctx, ctx.Err())
		case now := <-ticker.C:
			v.advance(now.Sub(last))
			last = now
			if c := v.chunk(); c != current {
				current = c
				s.sched.SetFocalPoint(c)
				s.sched.RequestRegion(c, s.cfg.Scheduler.ViewRadius, d.Stage)
				s.log.Debug("viewer moved", zap.Stringer("chunk", c))
			}
			s.stats.Do(func() { s.logStats(v) })
		}
	}
}

// stopped maps the end of the drive loop to Run's result: cancellation
// and an elapsed duration are normal shutdowns.
func (s *Server) stopped(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		s.log.Info("server shutting down")
		return nil
	}
	return err
}

func (s *Server) logStats(v *viewer) {
	submitted, dropped, meshed := s.render.Stats()
	s.log.Info("driver stats",
		zap.Float64("x", v.pos.X()),
		zap.Float64("z", v.pos.Z()),
		zap.Uint64("renderSubmitted", submitted),
		zap.Uint64("renderDropped", dropped),
		zap.Uint64("meshed", meshed),
	)
}

// viewer is a point moving at constant velocity on the XZ plane.
type viewer struct {
	pos mgl64.Vec3
	vel mgl64.Vec3
}

// newViewer places a viewer at (x, y, z) heading the given number of
// degrees from +X towards +Z at speed blocks per second.
func newViewer(x, y, z, speed, heading float64) *viewer {
	rad := mgl64.DegToRad(heading)
	return &viewer{
		pos: mgl64.Vec3{x, y, z},
		vel: mgl64.Vec3{math.Cos(rad), 0, math.Sin(rad)}.Mul(speed),
	}
}

func (v *viewer) advance(dt time.Duration) {
	v.pos = v.pos.Add(v.vel.Mul(dt.Seconds()))
}

func (v *viewer) chunk() chunk.Pos {
	return gen.ChunkOf(int(math.Floor(v.pos.X())), int(math.Floor(v.pos.Z())))
}
