package insidetz

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/akhenakh/insidetz/geometry"
)

func TestProjectToTile(t *testing.T) {
	tests := []struct {
		name     string
		lng, lat float64
		zoom     int
		wantX    int64
		wantY    int64
	}{
		{"Beijing z7", 116.3883, 39.9289, 7, 105, 48},
		{"Beijing z3", 116.3883, 39.9289, 3, 6, 3},
		{"Tokyo z7", 139.4382, 36.4432, 7, 113, 50},
		{"London z7", -0.9671, 52.0152, 7, 63, 42},
		{"London z5", -0.9671, 52.0152, 5, 15, 10},
		{"Atlantic z3", -73.7729, 38.3530, 3, 2, 3},
		{"Atlantic z7", -73.7729, 38.3530, 7, 37, 49},
		{"world", 12, 34, 0, 0, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			x, y := ProjectToTile(tt.lng, tt.lat, tt.zoom)
			if x != tt.wantX || y != tt.wantY {
				t.Errorf("ProjectToTile() got = (%d, %d), want (%d, %d)", x, y, tt.wantX, tt.wantY)
			}
		})
	}
}

var tilePoints = []orb.Point{
	{116.3883, 39.9289},
	{139.4382, 36.4432},
	{-0.9671, 52.0152},
	{-73.7729, 38.3530},
	{12.4529, 41.9037},
	{151.2093, -33.8688},
	{-58.3816, -34.6037},
}

// a child tile is always one of the four tiles under its parent
func TestProjectToTile_Nested(t *testing.T) {
	for _, p := range tilePoints {
		for z := 0; z < 24; z++ {
			x, y := ProjectToTile(p.Lon(), p.Lat(), z)
			cx, cy := ProjectToTile(p.Lon(), p.Lat(), z+1)
			require.Equal(t, x, cx>>1, "x at zoom %d for %v", z, p)
			require.Equal(t, y, cy>>1, "y at zoom %d for %v", z, p)
		}
	}
}

func TestProjectToTile_Maptile(t *testing.T) {
	for _, p := range tilePoints {
		for z := 0; z <= 16; z++ {
			x, y := ProjectToTile(p.Lon(), p.Lat(), z)
			tile := maptile.At(p, maptile.Zoom(z))
			require.Equal(t, int64(tile.X), x, "x at zoom %d for %v", z, p)
			require.Equal(t, int64(tile.Y), y, "y at zoom %d for %v", z, p)
		}
	}
}

func TestTileAt(t *testing.T) {
	tk, ok := TileAt(116.3883, 39.9289, 7)
	require.True(t, ok)
	require.Equal(t, TileKey{X: 105, Y: 48, Z: 7}, tk)

	_, ok = TileAt(math.NaN(), 39.9289, 7)
	require.False(t, ok)

	_, ok = TileAt(116.3883, math.NaN(), 7)
	require.False(t, ok)

	_, ok = TileAt(math.Inf(1), 39.9289, 7)
	require.False(t, ok)
}

func loadFeatureCollection(t *testing.T, path string) *geojson.FeatureCollection {
	t.Helper()

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var fc geojson.FeatureCollection
	err = json.NewDecoder(file).Decode(&fc)
	require.NoError(t, err)

	return &fc
}

func TestTimezonesFromGeoJSON(t *testing.T) {
	fc := loadFeatureCollection(t, "testdata/timezones.geojson")

	tzs, err := TimezonesFromGeoJSON(fc, "2025b-test", true)
	require.NoError(t, err)
	require.Equal(t, "2025b-test", tzs.Version)
	require.True(t, tzs.Reduced)

	names := make([]string, len(tzs.Timezones))
	for i, tz := range tzs.Timezones {
		names[i] = tz.Name
	}
	require.Equal(t, []string{
		"Asia/Shanghai", "Asia/Tokyo", "Europe/London", "Etc/GMT+5",
		"Europe/Rome", "Europe/Vatican", "Europe/Zurich", "Europe/Berlin",
	}, names)

	// multipolygon
	require.Len(t, tzs.Timezones[1].Polygons, 2)

	// polygon with a hole
	rome := tzs.Timezones[4]
	require.Len(t, rome.Polygons, 1)
	require.Len(t, rome.Polygons[0].Holes, 1)
	require.Equal(t, PointStorage{Lng: 6, Lat: 36}, rome.Polygons[0].Points[0])
}

func TestTimezonesFromGeoJSON_Invalid(t *testing.T) {
	square := geom.NewPolygonFlat(geom.XY, []float64{0, 0, 1, 0, 1, 1, 0, 1, 0, 0}, []int{10})

	tests := []struct {
		name    string
		feature *geojson.Feature
	}{
		{"no tzid", &geojson.Feature{Geometry: square, Properties: map[string]interface{}{}}},
		{"empty tzid", &geojson.Feature{Geometry: square, Properties: map[string]interface{}{"tzid": ""}}},
		{"no geometry", &geojson.Feature{Properties: map[string]interface{}{"tzid": "Etc/UTC"}}},
		{"point", &geojson.Feature{
			Geometry:   geom.NewPointFlat(geom.XY, []float64{0, 0}),
			Properties: map[string]interface{}{"tzid": "Etc/UTC"},
		}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fc := &geojson.FeatureCollection{Features: []*geojson.Feature{tt.feature}}
			_, err := TimezonesFromGeoJSON(fc, "", false)
			require.Error(t, err)
		})
	}
}

func TestDecodePreindex(t *testing.T) {
	file, err := os.Open("testdata/preindex.json")
	require.NoError(t, err)
	defer file.Close()

	pre, err := DecodePreindex(file)
	require.NoError(t, err)
	require.Equal(t, 8, pre.IdxZoom)
	require.Equal(t, 3, pre.AggZoom)
	require.Equal(t, "2025b-test", pre.Version)
	require.Len(t, pre.Keys, 5)
	require.Equal(t, PreindexKey{Name: "Asia/Shanghai", X: 105, Y: 48, Z: 7}, pre.Keys[0])

	_, err = DecodePreindex(strings.NewReader("{"))
	require.Error(t, err)
}

func TestTileStorageKey(t *testing.T) {
	for _, tk := range []TileKey{{0, 0, 0}, {105, 48, 7}, {1<<30 - 1, 12345, 30}} {
		k := TileStorageKey(tk)
		require.Equal(t, TilePrefix(), k[0])

		got, err := TileFromStorageKey(k)
		require.NoError(t, err)
		require.Equal(t, tk, got)
	}

	_, err := TileFromStorageKey(RegionKey(1))
	require.Error(t, err)
	_, err = TileFromStorageKey(nil)
	require.Error(t, err)
}

func TestRegionKeyOrder(t *testing.T) {
	// keys sort like positions so a cursor walks the table in order
	require.Less(t, string(RegionKey(1)), string(RegionKey(2)))
	require.Less(t, string(RegionKey(255)), string(RegionKey(256)))
	require.Equal(t, RegionPrefix(), RegionKey(0)[0])
}

func TestMultiPolygonToGeom(t *testing.T) {
	mp := geometry.MultiPolygon{
		geometry.NewPolygon(
			geometry.Ring{{Lng: 0, Lat: 0}, {Lng: 10, Lat: 0}, {Lng: 10, Lat: 10}, {Lng: 0, Lat: 10}},
			geometry.Ring{{Lng: 4, Lat: 4}, {Lng: 6, Lat: 4}, {Lng: 6, Lat: 6}, {Lng: 4, Lat: 6}, {Lng: 4, Lat: 4}},
		),
		geometry.NewPolygon(geometry.Ring{{Lng: 20, Lat: 20}, {Lng: 30, Lat: 20}, {Lng: 30, Lat: 30}}),
	}

	g := MultiPolygonToGeom(mp)
	require.Equal(t, 2, g.NumPolygons())

	first := g.Polygon(0)
	require.Equal(t, 2, first.NumLinearRings())
	// exterior closed by the export, the hole was already closed
	require.Equal(t, 5, first.LinearRing(0).NumCoords())
	require.Equal(t, 5, first.LinearRing(1).NumCoords())
	require.Equal(t, 4, g.Polygon(1).LinearRing(0).NumCoords())

	want := []float64{20, 20, 30, 20, 30, 30, 20, 20}
	if got := g.Polygon(1).FlatCoords(); !cmp.Equal(got, want) {
		t.Errorf("MultiPolygonToGeom() got = %v, want %v", got, want)
	}
}

func TestTilesToGeom(t *testing.T) {
	g := TilesToGeom([]TileKey{{0, 0, 0}, {105, 48, 7}})
	require.Equal(t, 2, g.NumPolygons())

	world := g.Polygon(0).Bounds()
	require.InDelta(t, -180, world.Min(0), 1e-9)
	require.InDelta(t, 180, world.Max(0), 1e-9)

	// the tile bound contains the point it was computed from
	b := g.Polygon(1).Bounds()
	require.True(t, b.Min(0) <= 116.3883 && 116.3883 <= b.Max(0))
	require.True(t, b.Min(1) <= 39.9289 && 39.9289 <= b.Max(1))
}

func TestSnapshotError(t *testing.T) {
	var err error = &SnapshotError{Op: "fuzzyindex", Index: 3, Reason: "empty name"}
	require.True(t, errors.Is(err, ErrInvalidSnapshot))
	require.Equal(t, "fuzzyindex: invalid snapshot at #3: empty name", err.Error())

	err = &SnapshotError{Op: "exactindex", Index: -1, Reason: "nil snapshot"}
	require.Equal(t, "exactindex: invalid snapshot: nil snapshot", err.Error())

	var se *SnapshotError
	require.True(t, errors.As(err, &se))
	require.Equal(t, "exactindex", se.Op)
}
