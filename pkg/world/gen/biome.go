package gen

import "fmt"

// Biome IDs matching Minecraft 1.8 protocol.
const (
	biomeOcean      byte = 0
	biomePlains     byte = 1
	biomeDesert     byte = 2
	biomeMountains  byte = 3 // extreme hills
	biomeForest     byte = 4
	biomeTaiga      byte = 5
	biomeTundra     byte = 12
	biomeBeach      byte = 16
	biomeJungle     byte = 21
	biomeDarkForest byte = 29
	biomeSnowyTaiga byte = 30
	biomeSavanna    byte = 35
)

var biomeNames = map[string]byte{
	"ocean":       biomeOcean,
	"plains":      biomePlains,
	"desert":      biomeDesert,
	"mountains":   biomeMountains,
	"forest":      biomeForest,
	"taiga":       biomeTaiga,
	"tundra":      biomeTundra,
	"beach":       biomeBeach,
	"jungle":      biomeJungle,
	"dark_forest": biomeDarkForest,
	"snowy_taiga": biomeSnowyTaiga,
	"savanna":     biomeSavanna,
}

// ParseBiome resolves a biome name used in catalogs.
func ParseBiome(name string) (byte, error) {
	b, ok := biomeNames[name]
	if !ok {
		return 0, fmt.Errorf("unknown biome %q", name)
	}
	return b, nil
}

// BiomeGenerator selects biomes using temperature/rainfall noise fields.
type BiomeGenerator struct {
	temp    *Noise
	rain    *Noise
	terrain *Noise
}

// NewBiomeGenerator creates a BiomeGenerator from a seed. The terrain
// field must match the one used for base height so oceans line up.
func NewBiomeGenerator(seed int64) *BiomeGenerator {
	return &BiomeGenerator{
		temp:    NewNoise(seed + 100),
		rain:    NewNoise(seed + 200),
		terrain: NewNoise(seed),
	}
}

// BiomeAt returns the biome ID at the given world block coordinates.
func (bg *BiomeGenerator) BiomeAt(bx, bz int) byte {
	tx := float64(bx) / 512.0
	tz := float64(bz) / 512.0
	temp := bg.temp.Octave2D(tx, tz, 4, 0.5)*0.8 + 0.75
	rain := bg.rain.Octave2D(tx+100, tz+100, 4, 0.5)*0.5 + 0.5

	base := 62.0 + bg.terrain.Octave2D(float64(bx)/128.0, float64(bz)/128.0, 6, 0.5)*8.0
	switch {
	case base < float64(seaLevel)-8:
		return biomeOcean
	case base < float64(seaLevel)-2:
		return biomeBeach
	}
	return selectBiome(temp, rain)
}

// selectBiome maps temperature and rainfall to a biome ID.
//
//	Temp\Rain     | Dry (<0.3)    | Medium (0.3-0.6) | Wet (>0.6)
//	Cold <0.3     | Tundra        | Snowy Taiga      | Taiga
//	Mild 0.3-0.7  | Plains        | Forest           | Dark Forest
//	Warm 0.7-1.2  | Savanna       | Plains           | Jungle
//	Hot >1.2      | Desert        | Desert           | Jungle
func selectBiome(temp, rain float64) byte {
	wetness := 0
	switch {
	case rain >= 0.6:
		wetness = 2
	case rain >= 0.3:
		wetness = 1
	}
	table := [4][3]byte{
		{biomeTundra, biomeSnowyTaiga, biomeTaiga},
		{biomePlains, biomeForest, biomeDarkForest},
		{biomeSavanna, biomePlains, biomeJungle},
		{biomeDesert, biomeDesert, biomeJungle},
	}
	band := 3
	switch {
	case temp < 0.3:
		band = 0
	case temp < 0.7:
		band = 1
	case temp < 1.2:
		band = 2
	}
	return table[band][wetness]
}

// biomeTerrainParams returns (amplitude, baseHeight) for terrain noise scaling.
func biomeTerrainParams(biome byte) (amplitude, baseHeight float64) {
	sea := float64(seaLevel)
	switch biome {
	case biomeOcean:
		return 8, 40
	case biomePlains, biomeSavanna, biomeTundra:
		return 11, sea
	case biomeForest, biomeDarkForest, biomeDesert:
		return 14, sea + 2
	case biomeTaiga, biomeSnowyTaiga, biomeJungle:
		return 18, sea + 4
	case biomeMountains:
		return 40, sea + 10
	case biomeBeach:
		return 3, sea
	default:
		return 14, sea
	}
}
