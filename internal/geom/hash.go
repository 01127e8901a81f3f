package geom

// Hash32 mixes a 32-bit input into a well distributed 32-bit output.
func Hash32(x uint32) uint32 {
	x ^= x >> 16
	x *= 0x7feb352d
	x ^= x >> 15
	x *= 0x846ca68b
	x ^= x >> 16
	return x
}

// Hash3 returns a stable hash for a cell and a seed.
func Hash3(seed uint32, x, y, z int32) uint32 {
	h := seed
	h ^= uint32(x) * 0x9e3779b1
	h ^= uint32(y) * 0x85ebca6b
	h ^= uint32(z) * 0xc2b2ae35
	return Hash32(h)
}

// Seed derives a reproducible 64-bit seed for per-position randomness.
func (p Pos) Seed(salt uint32) uint64 {
	hi := Hash3(salt, int32(p.X), int32(p.Y), int32(p.Z))
	lo := Hash3(hi^0x5bd1e995, int32(p.Z), int32(p.X), int32(p.Y))
	return uint64(hi)<<32 | uint64(lo)
}
