// Package fuzzyindex resolves points against a pre-aggregated pyramid of slippy map tiles.
//
// Coarse tiles only exist where a large area maps to a single timezone,
// so zoom levels are probed from the coarsest to the finest and the first tile found answers.
// Points near borders are usually not covered by any tile.
package fuzzyindex

import (
	"fmt"
	"sort"

	"github.com/akhenakh/insidetz"
	"github.com/akhenakh/insidetz/geometry"
)

// Index tile pyramid, immutable once created and safe for concurrent use.
type Index struct {
	// names per tile are sorted ascending
	tiles       map[insidetz.TileKey][]string
	aggZoom     int
	idxZoom     int
	dataVersion string
}

// New builds an Index from a decoded pre-index.
func New(pre *insidetz.PreindexStorage) (*Index, error) {
	if pre == nil {
		return nil, invalid(-1, "nil preindex")
	}

	switch {
	case pre.AggZoom < 0:
		return nil, invalid(-1, fmt.Sprintf("negative agg_zoom %d", pre.AggZoom))
	case pre.IdxZoom > insidetz.MaxZoom:
		return nil, invalid(-1, fmt.Sprintf("idx_zoom %d above %d", pre.IdxZoom, insidetz.MaxZoom))
	case pre.AggZoom > pre.IdxZoom:
		return nil, invalid(-1, fmt.Sprintf("agg_zoom %d > idx_zoom %d", pre.AggZoom, pre.IdxZoom))
	}

	idx := &Index{
		tiles:       make(map[insidetz.TileKey][]string),
		aggZoom:     pre.AggZoom,
		idxZoom:     pre.IdxZoom,
		dataVersion: pre.Version,
	}

	for i, k := range pre.Keys {
		if k.Name == "" {
			return nil, invalid(i, "empty timezone name")
		}

		if k.Z < pre.AggZoom || k.Z >= pre.IdxZoom {
			return nil, invalid(i, fmt.Sprintf("zoom %d outside [%d, %d)", k.Z, pre.AggZoom, pre.IdxZoom))
		}

		n := int64(1) << uint(k.Z)
		if k.X < 0 || k.X >= n || k.Y < 0 || k.Y >= n {
			return nil, invalid(i, fmt.Sprintf("tile %d/%d/%d out of range", k.Z, k.X, k.Y))
		}

		tk := insidetz.TileKey{X: k.X, Y: k.Y, Z: k.Z}
		names := idx.tiles[tk]

		// insert keeping names sorted
		pos := sort.SearchStrings(names, k.Name)
		if pos < len(names) && names[pos] == k.Name {
			return nil, invalid(i, fmt.Sprintf("duplicate entry %s for tile %d/%d/%d", k.Name, k.Z, k.X, k.Y))
		}
		names = append(names, "")
		copy(names[pos+1:], names[pos:])
		names[pos] = k.Name

		idx.tiles[tk] = names
	}

	return idx, nil
}

func invalid(i int, reason string) error {
	return &insidetz.SnapshotError{Op: "fuzzyindex", Index: i, Reason: reason}
}

// LookupFirst returns the lexicographically first name of the coarsest tile containing p.
func (idx *Index) LookupFirst(p geometry.Point) (string, bool) {
	for z := idx.aggZoom; z < idx.idxZoom; z++ {
		tk, ok := insidetz.TileAt(p.Lng, p.Lat, z)
		if !ok {
			return "", false
		}

		if names, ok := idx.tiles[tk]; ok {
			return names[0], true
		}
	}

	return "", false
}

// LookupAll returns every name of every tile containing p, coarsest zoom first.
func (idx *Index) LookupAll(p geometry.Point) []string {
	var res []string
	for z := idx.aggZoom; z < idx.idxZoom; z++ {
		tk, ok := insidetz.TileAt(p.Lng, p.Lat, z)
		if !ok {
			return nil
		}

		res = append(res, idx.tiles[tk]...)
	}

	return res
}

// Tiles returns the keys of the tiles naming name, ordered by zoom, x then y.
func (idx *Index) Tiles(name string) []insidetz.TileKey {
	var keys []insidetz.TileKey
	for tk, names := range idx.tiles {
		pos := sort.SearchStrings(names, name)
		if pos < len(names) && names[pos] == name {
			keys = append(keys, tk)
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Z != keys[j].Z {
			return keys[i].Z < keys[j].Z
		}
		if keys[i].X != keys[j].X {
			return keys[i].X < keys[j].X
		}

		return keys[i].Y < keys[j].Y
	})

	return keys
}

// Len returns the number of tiles.
func (idx *Index) Len() int {
	return len(idx.tiles)
}

func (idx *Index) DataVersion() string {
	return idx.dataVersion
}

func (idx *Index) IdxZoom() int {
	return idx.idxZoom
}

func (idx *Index) AggZoom() int {
	return idx.aggZoom
}
