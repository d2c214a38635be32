package insidetz

import (
	"github.com/akhenakh/insidetz/geometry"
)

// Index is a point lookup strategy returning timezone names.
type Index interface {
	// LookupFirst returns the preferred name containing p, false if none
	LookupFirst(p geometry.Point) (string, bool)

	// LookupAll returns every name containing p
	LookupAll(p geometry.Point) []string
}

// TileKey a slippy map tile.
type TileKey struct {
	X, Y int64
	Z    int
}
