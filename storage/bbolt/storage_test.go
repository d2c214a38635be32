package bbolt

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom/encoding/geojson"
	bolt "go.etcd.io/bbolt"

	"github.com/akhenakh/insidetz"
	"github.com/akhenakh/insidetz/finder"
)

func loadTestdata(t *testing.T) (*insidetz.TimezonesStorage, *insidetz.PreindexStorage) {
	t.Helper()

	file, err := os.Open("../../testdata/timezones.geojson")
	require.NoError(t, err)
	defer file.Close()

	var fc geojson.FeatureCollection
	err = json.NewDecoder(file).Decode(&fc)
	require.NoError(t, err)

	tzs, err := insidetz.TimezonesFromGeoJSON(&fc, "2025b-test", true)
	require.NoError(t, err)

	pfile, err := os.Open("../../testdata/preindex.json")
	require.NoError(t, err)
	defer pfile.Close()

	pre, err := insidetz.DecodePreindex(pfile)
	require.NoError(t, err)

	return tzs, pre
}

func sortKeys(keys []insidetz.PreindexKey) {
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Z != b.Z {
			return a.Z < b.Z
		}
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}

		return a.Name < b.Name
	})
}

func TestStorage_RoundTrip(t *testing.T) {
	logger := log.NewNopLogger()
	path := filepath.Join(t.TempDir(), "tz.db")

	tzs, pre := loadTestdata(t)

	wstorage, wclose, err := NewStorage(path, logger)
	require.NoError(t, err)

	err = wstorage.Index(tzs, pre, "timezones.geojson", "unittest")
	require.NoError(t, err)

	// a DB is indexed once
	err = wstorage.Index(tzs, pre, "timezones.geojson", "unittest")
	require.Error(t, err)

	err = wclose()
	require.NoError(t, err)

	storage, rclose, err := NewROStorage(path, logger)
	require.NoError(t, err)
	defer rclose()

	infos, err := storage.LoadIndexInfos()
	require.NoError(t, err)
	require.Equal(t, "timezones.geojson", infos.Filename)
	require.Equal(t, "unittest", infos.IndexerVersion)
	require.Equal(t, "2025b-test", infos.DataVersion)
	require.Equal(t, "2025b-test", infos.PreindexVersion)
	require.True(t, infos.Reduced)
	require.Equal(t, uint32(8), infos.TimezoneCount)
	require.Equal(t, uint32(5), infos.TileCount)
	require.Equal(t, 8, infos.IdxZoom)
	require.Equal(t, 3, infos.AggZoom)

	gotTzs, err := storage.LoadTimezones()
	require.NoError(t, err)
	if !cmp.Equal(gotTzs, tzs) {
		t.Errorf("LoadTimezones() diff %s", cmp.Diff(tzs, gotTzs))
	}

	gotPre, err := storage.LoadPreindex()
	require.NoError(t, err)
	sortKeys(pre.Keys)
	if !cmp.Equal(gotPre, pre) {
		t.Errorf("LoadPreindex() diff %s", cmp.Diff(pre, gotPre))
	}

	f, err := finder.NewFromStorage(gotTzs, gotPre)
	require.NoError(t, err)

	name, ok := f.GetName(116.3883, 39.9289)
	require.True(t, ok)
	require.Equal(t, "Asia/Shanghai", name)

	name, ok = f.GetName(8.6004, 47.3)
	require.True(t, ok)
	require.Equal(t, "Europe/Zurich", name)
}

func TestStorage_IndexInvalid(t *testing.T) {
	logger := log.NewNopLogger()
	path := filepath.Join(t.TempDir(), "tz.db")

	tzs, pre := loadTestdata(t)
	pre.Keys = append(pre.Keys, insidetz.PreindexKey{Name: "", X: 1, Y: 1, Z: 3})

	storage, sclose, err := NewStorage(path, logger)
	require.NoError(t, err)
	defer sclose()

	err = storage.Index(tzs, pre, "timezones.geojson", "unittest")
	require.True(t, errors.Is(err, insidetz.ErrInvalidSnapshot))

	_, err = storage.LoadIndexInfos()
	var serr OperationStorageError
	require.True(t, errors.As(err, &serr))
}

func TestStorage_MissingBucket(t *testing.T) {
	tests := []struct {
		name   string
		bucket byte
		load   func(s *Storage) error
	}{
		{"regions", insidetz.RegionPrefix(), func(s *Storage) error {
			_, err := s.LoadTimezones()
			return err
		}},
		{"tiles", insidetz.TilePrefix(), func(s *Storage) error {
			_, err := s.LoadPreindex()
			return err
		}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tz.db")
			tzs, pre := loadTestdata(t)

			storage, sclose, err := NewStorage(path, log.NewNopLogger())
			require.NoError(t, err)
			defer sclose()

			err = storage.Index(tzs, pre, "timezones.geojson", "unittest")
			require.NoError(t, err)

			err = storage.Update(func(tx *bolt.Tx) error {
				return tx.DeleteBucket([]byte{tt.bucket})
			})
			require.NoError(t, err)

			err = tt.load(storage)
			require.Error(t, err)
			var serr OperationStorageError
			require.True(t, errors.As(err, &serr))
		})
	}
}
