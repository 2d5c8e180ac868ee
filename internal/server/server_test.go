package server

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/OCharnyshevich/chunkgen/internal/server/config"
	"github.com/OCharnyshevich/chunkgen/internal/server/world/chunk"
	"github.com/OCharnyshevich/chunkgen/pkg/world/gen"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.World.Generator = "flat"
	cfg.Scheduler.Workers = 2
	cfg.Scheduler.PollInterval = 5 * time.Millisecond
	cfg.Scheduler.ViewRadius = 1
	cfg.Scheduler.VerifyLinks = true
	cfg.Driver.Tick = 5 * time.Millisecond
	cfg.Driver.Speed = 200
	cfg.Driver.PreGenerate = 1
	cfg.Driver.Duration = 500 * time.Millisecond
	return cfg
}

func TestNewTerrain(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.WorldConfig
		wantErr bool
	}{
		{"flat", config.WorldConfig{Generator: "flat"}, false},
		{"default", config.WorldConfig{Generator: "default", Seed: 3}, false},
		{"custom curve", config.WorldConfig{Generator: "default", VerticalCurve: [][2]float64{{0, 10}, {255, -10}}}, false},
		{"bad curve", config.WorldConfig{Generator: "default", VerticalCurve: [][2]float64{{10, 0}, {10, 1}}}, true},
		{"unknown", config.WorldConfig{Generator: "islands"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			terrain, err := newTerrain(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && terrain == nil {
				t.Error("nil terrain without error")
			}
		})
	}
}

func TestNewMissingCatalog(t *testing.T) {
	cfg := testConfig()
	cfg.World.Catalog = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := New(cfg, zap.NewNop()); err == nil {
		t.Error("expected error for missing catalog")
	}
}

func TestViewerMoves(t *testing.T) {
	v := newViewer(-0.5, 70, 0, 16, 0)
	if got := v.chunk(); got != (chunk.Pos{X: -1, Z: 0}) {
		t.Fatalf("start chunk = %v, want (-1,0)", got)
	}
	v.advance(time.Second)
	if got := v.chunk(); got != (chunk.Pos{X: 0, Z: 0}) {
		t.Errorf("after 1s chunk = %v, want (0,0)", got)
	}

	v = newViewer(0, 70, 0, 32, 90)
	v.advance(time.Second)
	if got := v.chunk(); got != (chunk.Pos{X: 0, Z: 2}) {
		t.Errorf("heading 90 chunk = %v, want (0,2)", got)
	}
	if y := v.pos.Y(); y != 70 {
		t.Errorf("y drifted to %v", y)
	}
}

func TestRunGeneratesAlongPath(t *testing.T) {
	srv, err := New(testConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	st := srv.Stats()
	// Pre-generation alone brings 9 chunks to Full, four stages each.
	if st.Advanced < 36 {
		t.Errorf("advanced = %d, want at least 36", st.Advanced)
	}
	if st.Running != 0 || st.Pending != 0 {
		t.Errorf("after Run: running=%d pending=%d", st.Running, st.Pending)
	}
	if got, ok := srv.World().GetBlock(0, 0, 0); ok && got != gen.Bedrock {
		t.Errorf("GetBlock(0,0,0) = %d, want bedrock", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Driver.Duration = 0
	srv, err := New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
