package gen

// surfaceDepth returns how many blocks of soil go below the top block.
func surfaceDepth(biome byte) int {
	if biome == biomeDesert {
		return 5
	}
	return 4
}

// paintSurface replaces the top stone of a column with biome soil and
// returns the resulting top block.
func paintSurface(v Volume, x, z, height int, biome byte) uint16 {
	if height <= 3 {
		return v.GetBlock(x, height, z)
	}
	depth := surfaceDepth(biome)
	top, fill := Grass, Dirt
	switch {
	case biome == biomeDesert || biome == biomeBeach:
		top, fill = State(blockSand, 0), State(blockSand, 0)
	case biome == biomeOcean:
		top, fill = State(blockGravel, 0), Dirt
	case biome == biomeMountains && height > 100:
		top, fill = Stone, Stone
	case height <= seaLevel:
		top = Dirt
	}
	for y := height; y > height-depth && y > 3; y-- {
		if v.GetBlock(x, y, z) != Stone {
			continue
		}
		if y == height {
			v.SetBlock(x, y, z, top)
		} else {
			v.SetBlock(x, y, z, fill)
		}
	}
	if biome == biomeDesert && height-depth > 3 {
		v.SetBlock(x, height-depth, z, State(blockSandstone, 0))
	}
	return v.GetBlock(x, height, z)
}
