package gen

// Block IDs. States are stored as blockID<<4 | metadata.
const (
	blockAir       = 0
	blockStone     = 1
	blockGrass     = 2
	blockDirt      = 3
	blockCobble    = 4
	blockBedrock   = 7
	blockWater     = 9 // stationary water
	blockLava      = 11
	blockSand      = 12
	blockGravel    = 13
	blockLog       = 17
	blockLeaves    = 18
	blockSandstone = 24
	blockMossy     = 48

	blockCoalOre     = 16
	blockIronOre     = 15
	blockGoldOre     = 14
	blockDiamondOre  = 56
	blockRedstoneOre = 73
	blockLapisOre    = 21

	seaLevel = 62
)

// State packs a block ID and metadata into a block state.
func State(id, meta uint16) uint16 {
	return id<<4 | meta&0xF
}

// Common block states, exported for callers that place or inspect blocks.
var (
	Air     = State(blockAir, 0)
	Stone   = State(blockStone, 0)
	Grass   = State(blockGrass, 0)
	Dirt    = State(blockDirt, 0)
	Cobble  = State(blockCobble, 0)
	Bedrock = State(blockBedrock, 0)
	Water   = State(blockWater, 0)
)

// SeaLevel is the water surface height.
const SeaLevel = seaLevel
