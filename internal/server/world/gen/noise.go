package gen

// Simplex noise after Ken Perlin's algorithm, restricted to two dimensions
// since the world is a flat tile plane. Values are in [-1, 1].

// grad2 holds the eight 2D gradient directions.
var grad2 = [8][2]float64{
	{1, 1},
	{-1, 1},
	{1, -1},
	{-1, -1},
	{1, 0},
	{-1, 0},
	{0, 1},
	{0, -1},
}

// NoiseGenerator produces deterministic simplex noise from a seed.
// It is immutable after construction and safe for concurrent use.
type NoiseGenerator struct {
	perm [512]uint8
}

// NewNoiseGenerator creates a noise generator with a seeded permutation table.
func NewNoiseGenerator(seed int64) *NoiseGenerator {
	ng := &NoiseGenerator{}

	var p [256]uint8
	for i := range p {
		p[i] = uint8(i)
	}

	// Fisher-Yates shuffle driven by the chunk LCG.
	rng := &ChunkRNG{state: seed}
	for i := 255; i > 0; i-- {
		j := rng.NextN(i + 1)
		p[i], p[j] = p[j], p[i]
	}

	for i := range ng.perm {
		ng.perm[i] = p[i&255]
	}
	return ng
}

// Noise2D returns 2D simplex noise for the given coordinates in [-1, 1].
func (ng *NoiseGenerator) Noise2D(x, y float64) float64 {
	const (
		f2 = 0.36602540378443864676 // (sqrt(3) - 1) / 2
		g2 = 0.21132486540518711775 // (3 - sqrt(3)) / 6
	)

	s := (x + y) * f2
	i := fastFloor(x + s)
	j := fastFloor(y + s)

	t := float64(i+j) * g2
	x0 := x - (float64(i) - t)
	y0 := y - (float64(j) - t)

	i1, j1 := 0, 1
	if x0 > y0 {
		i1, j1 = 1, 0
	}

	x1 := x0 - float64(i1) + g2
	y1 := y0 - float64(j1) + g2
	x2 := x0 - 1.0 + 2.0*g2
	y2 := y0 - 1.0 + 2.0*g2

	ii := i & 255
	jj := j & 255

	n0 := ng.corner(ii, jj, x0, y0)
	n1 := ng.corner(ii+i1, jj+j1, x1, y1)
	n2 := ng.corner(ii+1, jj+1, x2, y2)

	return 70.0 * (n0 + n1 + n2)
}

func (ng *NoiseGenerator) corner(i, j int, x, y float64) float64 {
	t := 0.5 - x*x - y*y
	if t < 0 {
		return 0
	}
	g := grad2[ng.perm[i+int(ng.perm[j])]&7]
	t *= t
	return t * t * (g[0]*x + g[1]*y)
}

// OctaveNoise2D layers multiple octaves of 2D noise. Returns a value in [-1, 1].
func (ng *NoiseGenerator) OctaveNoise2D(x, y float64, octaves int, persistence float64) float64 {
	var total, maxVal float64
	frequency, amplitude := 1.0, 1.0

	for i := 0; i < octaves; i++ {
		total += ng.Noise2D(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2.0
	}
	if maxVal == 0 {
		return 0
	}
	return total / maxVal
}

// Sample01 samples noise at (x+ox, y+oy)*scale remapped to [0, 1].
func (ng *NoiseGenerator) Sample01(x, y, ox, oy, scale float64) float64 {
	return Noise01(ng.Noise2D((x+ox)*scale, (y+oy)*scale))
}

// Noise01 remaps a [-1, 1] noise value to [0, 1], clamping stray overshoot.
func Noise01(n float64) float64 {
	v := (n + 1) * 0.5
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// SeedOffset derives a stable sampling offset from a seed and a salt, so that
// independent noise layers sharing one generator do not line up.
func SeedOffset(seed, salt int64) (float64, float64) {
	h := Hash2(seed, int(salt), int(salt>>32))
	ox := float64(h&0xFFFF) / 16.0
	oy := float64((h>>16)&0xFFFF) / 16.0
	return ox, oy
}

func fastFloor(x float64) int {
	xi := int(x)
	if x < float64(xi) {
		return xi - 1
	}
	return xi
}
