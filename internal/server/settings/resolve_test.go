package settings

import (
	"reflect"
	"testing"

	"github.com/OCharnyshevich/abyss/internal/server/world"
)

func bandsOverlap(a, b BiomeBand) bool {
	if a.OnRight != b.OnRight {
		return false
	}
	aTop, aBottom := a.Origin.Y, a.Origin.Y-a.Height+1
	bTop, bBottom := b.Origin.Y, b.Origin.Y-b.Height+1
	return aBottom <= bTop && bBottom <= aTop
}

func TestResolveFixedLayout(t *testing.T) {
	a := loadSample(t)
	s, err := Resolve(a, 42, false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if len(s.Bands) != len(a.Biomes) {
		t.Fatalf("bands = %d, want %d", len(s.Bands), len(a.Biomes))
	}
	for i, b := range s.Bands {
		want, _ := world.ParseBiome(a.Biomes[i].Biome)
		if b.Type != want {
			t.Errorf("band %d type = %v, want authoring order %v", i, b.Type, want)
		}
		if b.OnRight != (i%2 == 1) {
			t.Errorf("band %d OnRight = %v, want alternating starting left", i, b.OnRight)
		}
		if b.OnRight && b.Origin.X <= a.Trench.CenterX || !b.OnRight && b.Origin.X >= a.Trench.CenterX {
			t.Errorf("band %d origin %v on wrong side", i, b.Origin)
		}
		if b.Origin.X-b.HalfWidth <= a.Trench.CenterX && b.Origin.X+b.HalfWidth >= a.Trench.CenterX {
			t.Errorf("band %d crosses the trench axis", i)
		}
	}
}

func TestResolveStableForSeed(t *testing.T) {
	a := loadSample(t)
	for _, randomize := range []bool{false, true} {
		s1, err := Resolve(a, 7, randomize)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		s2, _ := Resolve(a, 7, randomize)
		if !reflect.DeepEqual(s1, s2) {
			t.Errorf("randomize=%v: resolve not stable for a fixed seed", randomize)
		}
	}
}

func TestResolveFixedLayoutIgnoresSeed(t *testing.T) {
	a := loadSample(t)
	s1, _ := Resolve(a, 1, false)
	s2, _ := Resolve(a, 2, false)
	if !reflect.DeepEqual(s1.Bands, s2.Bands) {
		t.Error("band layout changed with seed while randomization is off")
	}
}

func TestResolveRandomizedNeverOverlaps(t *testing.T) {
	a := loadSample(t)
	for seed := int64(0); seed < 50; seed++ {
		s, err := Resolve(a, seed, true)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		for i := range s.Bands {
			for j := i + 1; j < len(s.Bands); j++ {
				if bandsOverlap(s.Bands[i], s.Bands[j]) {
					t.Fatalf("seed %d: bands %d and %d overlap: %+v %+v", seed, i, j, s.Bands[i], s.Bands[j])
				}
			}
		}
	}
}

func TestResolveOreOrigins(t *testing.T) {
	a := loadSample(t)
	s, err := Resolve(a, 3, false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	cx := a.Trench.CenterX
	for _, o := range s.Ores {
		wantY := -int(o.DepthFraction*float64(a.Depth) + 0.5)
		if o.Origin.Y != wantY {
			t.Errorf("%s origin y = %d, want %d", o.Name, o.Origin.Y, wantY)
		}
		switch o.Stage {
		case 0:
			if o.Origin.X != cx {
				t.Errorf("%s stage 0 origin x = %d, want trench axis", o.Name, o.Origin.X)
			}
		case 1:
			if o.Origin.X >= cx {
				t.Errorf("%s stage 1 should sit left with randomization off", o.Name)
			}
		case 2:
			if o.Origin.X <= cx {
				t.Errorf("%s stage 2 should sit right with randomization off", o.Name)
			}
		}
		if o.Tile <= world.TileVeryToughRock || o.Tile == world.OreInvalid {
			t.Errorf("%s resolved to reserved tile %d", o.Name, o.Tile)
		}
	}
}

func TestBundleFromSample(t *testing.T) {
	a := loadSample(t)
	s, err := Resolve(a, 9, true)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	b, err := NewBundle(a, s)
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}
	if len(b.Entities) != len(a.Entities.Definitions) {
		t.Errorf("entities = %d", len(b.Entities))
	}
	ruin, ok := b.Template("sunken_ruin")
	if !ok || ruin.Width != 7 || ruin.Height != 4 {
		t.Fatalf("sunken_ruin template = %+v", ruin)
	}
	// Bottom-left of the ruin is wall; the chest is on the second row from the bottom.
	if ruin.At(0, 0) != 30 || ruin.At(3, 1) != 31 {
		t.Errorf("ruin tiles = %v", ruin.Tiles)
	}
	if len(s.Features) != 10 {
		t.Errorf("features = %d, want 10", len(s.Features))
	}
}

func TestTrenchHalfWidth(t *testing.T) {
	s := &WorldGenSettings{Trench: Trench{SurfaceWidth: 40, FloorWidth: 10, Depth: 100}}
	if got := s.TrenchHalfWidth(0); got != 20 {
		t.Errorf("half width at surface = %v, want 20", got)
	}
	if got := s.TrenchHalfWidth(-100); got != 5 {
		t.Errorf("half width at floor = %v, want 5", got)
	}
	if got := s.TrenchHalfWidth(-101); got != -1 {
		t.Errorf("half width below floor = %v, want -1", got)
	}
}
