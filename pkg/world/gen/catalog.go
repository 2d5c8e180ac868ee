package gen

import (
	_ "embed"
	"fmt"
	"os"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Reach limits, in chunks from a structure's origin chunk.
const (
	// SurfaceReach bounds trees, which read the surface under their trunk.
	SurfaceReach = 1
	// StructureReach bounds every structure.
	StructureReach = 2
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog lists the structures the planner may place.
type Catalog struct {
	Trees        map[string]TreeKind `yaml:"trees"`
	DefaultTrees BiomeTrees          `yaml:"default_trees"`
	Biomes       []BiomeTrees        `yaml:"biomes"`
	Boulders     BoulderKind         `yaml:"boulders"`

	byBiome       map[byte]*BiomeTrees
	boulderBiomes map[byte]bool
}

// TreeKind describes one tree species.
type TreeKind struct {
	Shape    string `yaml:"shape"` // "round" or "conical"
	Variant  uint16 `yaml:"variant"`
	TrunkMin int    `yaml:"trunk_min"`
	TrunkMax int    `yaml:"trunk_max"`
	Radius   int    `yaml:"radius"`
}

// BiomeTrees sets tree density and species for a biome.
type BiomeTrees struct {
	Biome string   `yaml:"biome"`
	Count int      `yaml:"count"`
	Kinds []string `yaml:"kinds"`
}

// BoulderKind configures stone boulders.
type BoulderKind struct {
	PerMille  int      `yaml:"per_mille"`
	RadiusMin int      `yaml:"radius_min"`
	RadiusMax int      `yaml:"radius_max"`
	Biomes    []string `yaml:"biomes"`
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("gen: built-in catalog: %v", err))
	}
	return c
}

// LoadCatalog reads a catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return c, nil
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if err := c.resolve(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) resolve() error {
	var errs error
	for name, k := range c.Trees {
		if k.Shape != "round" && k.Shape != "conical" {
			errs = multierr.Append(errs, fmt.Errorf("tree %s: unknown shape %q", name, k.Shape))
		}
		if k.TrunkMin < 1 || k.TrunkMax < k.TrunkMin {
			errs = multierr.Append(errs, fmt.Errorf("tree %s: bad trunk range [%d,%d]", name, k.TrunkMin, k.TrunkMax))
		}
		if k.Radius < 1 || k.Radius > SurfaceReach*ChunkWidth {
			errs = multierr.Append(errs, fmt.Errorf("tree %s: radius %d outside [1,%d]", name, k.Radius, SurfaceReach*ChunkWidth))
		}
	}

	checkKinds := func(bt *BiomeTrees) {
		for _, kind := range bt.Kinds {
			if _, ok := c.Trees[kind]; !ok {
				errs = multierr.Append(errs, fmt.Errorf("biome %q: unknown tree %q", bt.Biome, kind))
			}
		}
		if bt.Count > 0 && len(bt.Kinds) == 0 {
			errs = multierr.Append(errs, fmt.Errorf("biome %q: count %d with no kinds", bt.Biome, bt.Count))
		}
	}
	checkKinds(&c.DefaultTrees)

	c.byBiome = make(map[byte]*BiomeTrees, len(c.Biomes))
	for i := range c.Biomes {
		bt := &c.Biomes[i]
		id, err := ParseBiome(bt.Biome)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		checkKinds(bt)
		c.byBiome[id] = bt
	}

	b := c.Boulders
	if b.PerMille < 0 || b.PerMille > 1000 {
		errs = multierr.Append(errs, fmt.Errorf("boulders: per_mille %d outside [0,1000]", b.PerMille))
	}
	if b.PerMille > 0 && (b.RadiusMin < 1 || b.RadiusMax < b.RadiusMin || b.RadiusMax > StructureReach*ChunkWidth) {
		errs = multierr.Append(errs, fmt.Errorf("boulders: bad radius range [%d,%d]", b.RadiusMin, b.RadiusMax))
	}
	c.boulderBiomes = make(map[byte]bool, len(b.Biomes))
	for _, name := range b.Biomes {
		id, err := ParseBiome(name)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("boulders: %w", err))
			continue
		}
		c.boulderBiomes[id] = true
	}
	return errs
}

func (c *Catalog) treesFor(biome byte) *BiomeTrees {
	if bt, ok := c.byBiome[biome]; ok {
		return bt
	}
	return &c.DefaultTrees
}
