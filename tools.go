package insidetz

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"math"

	"github.com/paulmach/orb/maptile"
	"github.com/pkg/errors"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/akhenakh/insidetz/geometry"
)

const (
	regionPrefix = 'R'
	tilePrefix   = 'T'
	infoKey      = 'i'

	// TimezoneProperty GeoJSON feature property holding the timezone name
	TimezoneProperty = "tzid"

	// MaxZoom highest zoom level accepted in a pre-index
	MaxZoom = 30

	// tile coordinates beyond this are not representable once truncated
	maxTileCoord = 1 << 62
)

// ProjectToTile converts lng, lat to slippy map tile coordinates at zoom,
// values are truncated toward zero.
// See https://wiki.openstreetmap.org/wiki/Slippy_map_tilenames
func ProjectToTile(lng, lat float64, zoom int) (x, y int64) {
	xf, yf := project(lng, lat, zoom)

	return int64(xf), int64(yf)
}

// TileAt returns the tile containing lng, lat at zoom,
// false when the projection is not a finite representable value (NaN, poles, bad input).
func TileAt(lng, lat float64, zoom int) (TileKey, bool) {
	xf, yf := project(lng, lat, zoom)
	if !representable(xf) || !representable(yf) {
		return TileKey{}, false
	}

	return TileKey{X: int64(xf), Y: int64(yf), Z: zoom}, true
}

func project(lng, lat float64, zoom int) (float64, float64) {
	latRad := lat * math.Pi / 180
	n := math.Exp2(float64(zoom))
	x := (lng + 180) / 360 * n
	y := (1 - math.Asinh(math.Tan(latRad))/math.Pi) / 2 * n

	return x, y
}

func representable(f float64) bool {
	return !math.IsNaN(f) && f > -maxTileCoord && f < maxTileCoord
}

// TimezonesFromGeoJSON reads every feature as a timezone named by its tzid property,
// features order is preserved.
func TimezonesFromGeoJSON(fc *geojson.FeatureCollection, version string, reduced bool) (*TimezonesStorage, error) {
	tzs := &TimezonesStorage{
		Version:   version,
		Reduced:   reduced,
		Timezones: make([]TimezoneStorage, 0, len(fc.Features)),
	}

	for i, f := range fc.Features {
		name, ok := f.Properties[TimezoneProperty].(string)
		if !ok || name == "" {
			return nil, errors.Errorf("feature #%d has no %s property", i, TimezoneProperty)
		}

		if f.Geometry == nil {
			return nil, errors.Errorf("invalid geometry for %s", name)
		}

		tz := TimezoneStorage{Name: name}

		switch g := f.Geometry.(type) {
		case *geom.Polygon:
			tz.Polygons = append(tz.Polygons, polygonStorage(g))
		case *geom.MultiPolygon:
			for j := 0; j < g.NumPolygons(); j++ {
				tz.Polygons = append(tz.Polygons, polygonStorage(g.Polygon(j)))
			}
		default:
			return nil, errors.Errorf("unsupported geometry type %T for %s", g, name)
		}

		tzs.Timezones = append(tzs.Timezones, tz)
	}

	return tzs, nil
}

func polygonStorage(p *geom.Polygon) PolygonStorage {
	var ps PolygonStorage
	for i := 0; i < p.NumLinearRings(); i++ {
		ring := ringStorage(p.LinearRing(i))
		if i == 0 {
			ps.Points = ring

			continue
		}
		ps.Holes = append(ps.Holes, ring)
	}

	return ps
}

func ringStorage(lr *geom.LinearRing) []PointStorage {
	flat := lr.FlatCoords()
	stride := lr.Stride()
	pts := make([]PointStorage, 0, len(flat)/stride)
	for i := 0; i+1 < len(flat); i += stride {
		pts = append(pts, PointStorage{Lng: float32(flat[i]), Lat: float32(flat[i+1])})
	}

	return pts
}

type preindexFile struct {
	IdxZoom int    `json:"idx_zoom"`
	AggZoom int    `json:"agg_zoom"`
	Version string `json:"version"`
	Keys    []struct {
		Name string `json:"name"`
		X    int64  `json:"x"`
		Y    int64  `json:"y"`
		Z    int    `json:"z"`
	} `json:"keys"`
}

// DecodePreindex reads a JSON pre-index
// {"idx_zoom": 13, "agg_zoom": 3, "version": "", "keys": [{"name": "", "x": 0, "y": 0, "z": 0}]}.
func DecodePreindex(r io.Reader) (*PreindexStorage, error) {
	var pf preindexFile
	if err := json.NewDecoder(r).Decode(&pf); err != nil {
		return nil, errors.Wrap(err, "can't decode preindex")
	}

	pre := &PreindexStorage{
		IdxZoom: pf.IdxZoom,
		AggZoom: pf.AggZoom,
		Version: pf.Version,
		Keys:    make([]PreindexKey, len(pf.Keys)),
	}
	for i, k := range pf.Keys {
		pre.Keys[i] = PreindexKey{Name: k.Name, X: k.X, Y: k.Y, Z: k.Z}
	}

	return pre, nil
}

// MultiPolygonToGeom converts a multipolygon to a go-geom one with closed rings.
func MultiPolygonToGeom(mp geometry.MultiPolygon) *geom.MultiPolygon {
	var flat []float64
	endss := make([][]int, 0, len(mp))

	appendRing := func(r geometry.Ring) int {
		for _, p := range r {
			flat = append(flat, p.Lng, p.Lat)
		}
		if len(r) > 0 && r[0] != r[len(r)-1] {
			flat = append(flat, r[0].Lng, r[0].Lat)
		}

		return len(flat)
	}

	for _, poly := range mp {
		ends := []int{appendRing(poly.Exterior)}
		for _, h := range poly.Holes {
			ends = append(ends, appendRing(h))
		}
		endss = append(endss, ends)
	}

	return geom.NewMultiPolygonFlat(geom.XY, flat, endss)
}

// TilesToGeom returns the tiles footprints as a go-geom multipolygon.
func TilesToGeom(keys []TileKey) *geom.MultiPolygon {
	flat := make([]float64, 0, len(keys)*10)
	endss := make([][]int, 0, len(keys))

	for _, k := range keys {
		b := maptile.New(uint32(k.X), uint32(k.Y), maptile.Zoom(k.Z)).Bound()
		flat = append(flat,
			b.Min.Lon(), b.Min.Lat(),
			b.Max.Lon(), b.Min.Lat(),
			b.Max.Lon(), b.Max.Lat(),
			b.Min.Lon(), b.Max.Lat(),
			b.Min.Lon(), b.Min.Lat(),
		)
		endss = append(endss, []int{len(flat)})
	}

	return geom.NewMultiPolygonFlat(geom.XY, flat, endss)
}

// RegionKey returns the storage key of the timezone at position pos.
func RegionKey(pos uint32) []byte {
	k := make([]byte, 1+4)
	k[0] = regionPrefix
	binary.BigEndian.PutUint32(k[1:], pos)

	return k
}

// TileStorageKey returns the storage key of a tile, z first so keys group by zoom.
func TileStorageKey(tk TileKey) []byte {
	k := make([]byte, 1+1+8+8)
	k[0] = tilePrefix
	k[1] = byte(tk.Z)
	binary.BigEndian.PutUint64(k[2:], uint64(tk.X))
	binary.BigEndian.PutUint64(k[10:], uint64(tk.Y))

	return k
}

// TileFromStorageKey decodes a key built by TileStorageKey.
func TileFromStorageKey(k []byte) (TileKey, error) {
	if len(k) != 1+1+8+8 || k[0] != tilePrefix {
		return TileKey{}, errors.New("invalid tile key")
	}

	return TileKey{
		Z: int(k[1]),
		X: int64(binary.BigEndian.Uint64(k[2:])),
		Y: int64(binary.BigEndian.Uint64(k[10:])),
	}, nil
}

func RegionPrefix() byte {
	return regionPrefix
}

func TilePrefix() byte {
	return tilePrefix
}

func InfoKey() []byte {
	return []byte{infoKey}
}
