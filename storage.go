package insidetz

import (
	"fmt"
	"time"
)

// Store gives access to a persisted snapshot.
type Store interface {
	LoadTimezones() (*TimezonesStorage, error)
	LoadPreindex() (*PreindexStorage, error)
	LoadIndexInfos() (*IndexInfos, error)
}

// TimezonesStorage is the decoded region snapshot, timezones are kept in input order
// since it is the tie break for overlapping regions.
type TimezonesStorage struct {
	Version string
	// Reduced is true for the simplified polygons dataset
	Reduced   bool
	Timezones []TimezoneStorage
}

// TimezoneStorage a named multipolygon.
type TimezoneStorage struct {
	Name     string
	Polygons []PolygonStorage
}

// PolygonStorage an exterior ring and its holes, rings are not required to be closed.
type PolygonStorage struct {
	Points []PointStorage
	Holes  [][]PointStorage
}

// PointStorage single precision coordinates as found in the source data.
type PointStorage struct {
	Lng, Lat float32
}

// PreindexStorage is the decoded tile pyramid snapshot.
type PreindexStorage struct {
	// IdxZoom finest zoom level, exclusive
	IdxZoom int
	// AggZoom coarsest zoom level, inclusive
	AggZoom int
	Keys    []PreindexKey
	Version string
}

// PreindexKey one tile entry of the pyramid, a tile shared by many timezones
// appears once per name.
type PreindexKey struct {
	Name string
	X, Y int64
	Z    int
}

// IndexInfos used to store information about the index in DB.
type IndexInfos struct {
	Filename       string
	IndexTime      time.Time
	IndexerVersion string
	DataVersion    string
	// PreindexVersion data version of the tile pyramid, usually equals DataVersion
	PreindexVersion string
	Reduced         bool
	TimezoneCount   uint32
	TileCount       uint32
	IdxZoom         int
	AggZoom         int
}

func (infos *IndexInfos) String() string {
	return fmt.Sprintf("Filename: %s\nIndexTime: %s\nIndexerVersion: %s\nDataVersion: %s\nReduced: %t\n"+
		"TimezoneCount: %d\nTileCount: %d\nZoom: %d-%d\n",
		infos.Filename,
		infos.IndexTime,
		infos.IndexerVersion,
		infos.DataVersion,
		infos.Reduced,
		infos.TimezoneCount,
		infos.TileCount,
		infos.AggZoom,
		infos.IdxZoom,
	)
}
