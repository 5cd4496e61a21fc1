package gen

// ChunkRNG is a small deterministic LCG used for per-chunk decisions.
// It is not safe for concurrent use; each task owns its own instance.
type ChunkRNG struct {
	state int64
}

// NewChunkRNG seeds an RNG from the world seed, a chunk coordinate and a salt
// identifying the subsystem.
func NewChunkRNG(seed int64, cx, cy int, salt int64) *ChunkRNG {
	return &ChunkRNG{state: DeriveChunkSeed(seed, cx, cy) ^ salt}
}

// DeriveChunkSeed mixes the world seed with a chunk coordinate.
func DeriveChunkSeed(seed int64, cx, cy int) int64 {
	return seed ^ (int64(cx)*341873128712 + int64(cy)*132897987541)
}

func (r *ChunkRNG) next() int64 {
	r.state = r.state*6364136223846793005 + 1442695040888963407
	return r.state
}

// NextN returns a value in [0, n). n must be positive.
func (r *ChunkRNG) NextN(n int) int {
	v := int((r.next()>>33)&0x7FFFFFFF) % n
	if v < 0 {
		v = -v
	}
	return v
}

// Float64 returns a value in [0, 1).
func (r *ChunkRNG) Float64() float64 {
	return float64((r.next()>>11)&(1<<52-1)) / (1 << 52)
}

// Shuffle permutes n elements using swap.
func (r *ChunkRNG) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		swap(i, r.NextN(i+1))
	}
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Hash2 returns a well-mixed hash of a world cell.
func Hash2(seed int64, x, y int) uint64 {
	ux := uint64(uint32(int32(x)))
	uy := uint64(uint32(int32(y)))
	return mix64(uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uy * 0xbf58476d1ce4e5b9))
}
