package entities

import "github.com/OCharnyshevich/abyss/internal/server/world"

// Orientation is the side of an entity that attaches to solid terrain.
type Orientation uint8

const (
	Ground Orientation = iota
	Ceiling
	LeftWall
	RightWall
)

var orientationNames = [...]string{
	Ground:    "ground",
	Ceiling:   "ceiling",
	LeftWall:  "left_wall",
	RightWall: "right_wall",
}

func (o Orientation) String() string {
	if int(o) < len(orientationNames) {
		return orientationNames[o]
	}
	return "unknown"
}

// ParseOrientation maps an authoring name to an Orientation.
func ParseOrientation(s string) (Orientation, bool) {
	for i, n := range orientationNames {
		if n == s {
			return Orientation(i), true
		}
	}
	return Ground, false
}

// Remap rotates a canonical offset (ground attachment, volume growing +Y)
// into the world offset for orientation o.
func Remap(p world.Point, o Orientation) world.Point {
	switch o {
	case Ceiling:
		return world.Point{X: -p.X, Y: -p.Y}
	case LeftWall:
		return world.Point{X: p.Y, Y: -p.X}
	case RightWall:
		return world.Point{X: -p.Y, Y: p.X}
	default:
		return p
	}
}
