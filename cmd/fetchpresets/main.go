package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	get "github.com/hashicorp/go-getter"
	"go.uber.org/zap"

	"github.com/OCharnyshevich/chunkgen/internal/server/config"
	"github.com/OCharnyshevich/chunkgen/pkg/world/gen"
)

// fetchpresets downloads a world preset directory (chunkgen.toml plus an
// optional structure catalog) and checks that it loads.
func main() {
	var (
		base   = flag.String("base", "", "git url of the preset repository")
		preset = flag.String("preset", "plains", "preset name")
		ref    = flag.String("ref", "main", "git ref")
		out    = flag.String("o", "./presets", "output dir path")
	)
	flag.Parse()

	log, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if *base == "" || *out == "" || *preset == "" {
		log.Fatal("base url, output dir and preset are required")
	}

	path := filepath.Join(*out, *preset)
	if err := os.RemoveAll(path); err != nil {
		log.Fatal("clean output dir", zap.Error(err))
	}

	url := fmt.Sprintf("git::%s//%s?ref=%s", *base, *preset, *ref)
	log.Info("start downloading preset", zap.String("url", url), zap.String("path", path))
	if err := get.Get(path, url); err != nil {
		log.Fatal("download preset", zap.Error(err))
	}

	if err := check(path); err != nil {
		log.Fatal("invalid preset", zap.String("path", path), zap.Error(err))
	}
	log.Info("done downloading preset", zap.String("path", path))
}

// check loads the preset's config and, if present, its catalog.
func check(dir string) error {
	cfg, err := config.Load(filepath.Join(dir, "chunkgen.toml"))
	if err != nil {
		return err
	}
	if cfg.World.Catalog != "" {
		catalog := cfg.World.Catalog
		if !filepath.IsAbs(catalog) {
			catalog = filepath.Join(dir, catalog)
		}
		if _, err := gen.LoadCatalog(catalog); err != nil {
			return err
		}
	}
	return cfg.Validate()
}
