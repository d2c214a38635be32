package exactindex

import (
	"fmt"

	"github.com/akhenakh/insidetz"
	"github.com/akhenakh/insidetz/geometry"
)

// Region a named multipolygon.
type Region struct {
	Name     string
	Polygons geometry.MultiPolygon
}

// Index scans regions linearly in table order, the first region containing the point wins.
// It is immutable once created and safe for concurrent use.
type Index struct {
	regions     []Region
	dataVersion string
	reduced     bool
}

// New builds an Index from a decoded snapshot, coordinates are widened to float64.
// Rings with less than 3 points and unnamed timezones are rejected.
func New(tzs *insidetz.TimezonesStorage) (*Index, error) {
	if tzs == nil {
		return nil, &insidetz.SnapshotError{Op: "exactindex", Index: -1, Reason: "nil timezones"}
	}

	idx := &Index{
		regions:     make([]Region, 0, len(tzs.Timezones)),
		dataVersion: tzs.Version,
		reduced:     tzs.Reduced,
	}

	for i, tz := range tzs.Timezones {
		if tz.Name == "" {
			return nil, &insidetz.SnapshotError{Op: "exactindex", Index: i, Reason: "empty timezone name"}
		}

		r := Region{
			Name:     tz.Name,
			Polygons: make(geometry.MultiPolygon, 0, len(tz.Polygons)),
		}

		for pi, ps := range tz.Polygons {
			exterior, err := ring(ps.Points)
			if err != nil {
				return nil, &insidetz.SnapshotError{
					Op:     "exactindex",
					Index:  i,
					Reason: fmt.Sprintf("%s polygon #%d exterior: %v", tz.Name, pi, err),
				}
			}

			holes := make([]geometry.Ring, 0, len(ps.Holes))
			for hi, hs := range ps.Holes {
				h, err := ring(hs)
				if err != nil {
					return nil, &insidetz.SnapshotError{
						Op:     "exactindex",
						Index:  i,
						Reason: fmt.Sprintf("%s polygon #%d hole #%d: %v", tz.Name, pi, hi, err),
					}
				}
				holes = append(holes, h)
			}

			r.Polygons = append(r.Polygons, geometry.NewPolygon(exterior, holes...))
		}

		idx.regions = append(idx.regions, r)
	}

	return idx, nil
}

func ring(pts []insidetz.PointStorage) (geometry.Ring, error) {
	// a repeated closing point is not a vertex
	if n := len(pts); n > 1 && pts[0] == pts[n-1] {
		pts = pts[:n-1]
	}

	if len(pts) < 3 {
		return nil, fmt.Errorf("ring has %d distinct points, need at least 3", len(pts))
	}

	r := make(geometry.Ring, len(pts))
	for i, p := range pts {
		r[i] = geometry.Point{Lng: float64(p.Lng), Lat: float64(p.Lat)}
	}

	return r, nil
}

// LookupFirst returns the name of the first region in table order containing p.
func (idx *Index) LookupFirst(p geometry.Point) (string, bool) {
	for i := range idx.regions {
		if geometry.MultiPolygonContains(idx.regions[i].Polygons, p) {
			return idx.regions[i].Name, true
		}
	}

	return "", false
}

// LookupAll returns the names of every region containing p, in table order.
func (idx *Index) LookupAll(p geometry.Point) []string {
	var names []string
	for i := range idx.regions {
		if geometry.MultiPolygonContains(idx.regions[i].Polygons, p) {
			names = append(names, idx.regions[i].Name)
		}
	}

	return names
}

// TimezoneNames returns every region name in table order.
func (idx *Index) TimezoneNames() []string {
	names := make([]string, len(idx.regions))
	for i := range idx.regions {
		names[i] = idx.regions[i].Name
	}

	return names
}

// Region returns the first region named name.
func (idx *Index) Region(name string) (Region, bool) {
	for i := range idx.regions {
		if idx.regions[i].Name == name {
			return idx.regions[i], true
		}
	}

	return Region{}, false
}

// Len returns the regions count.
func (idx *Index) Len() int {
	return len(idx.regions)
}

func (idx *Index) DataVersion() string {
	return idx.dataVersion
}

// Reduced reports whether the index was built from simplified polygons.
func (idx *Index) Reduced() bool {
	return idx.reduced
}
