package bbolt

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/fxamacker/cbor"
	log "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"go.etcd.io/bbolt"

	"github.com/akhenakh/insidetz"
	"github.com/akhenakh/insidetz/index/exactindex"
	"github.com/akhenakh/insidetz/index/fuzzyindex"
)

// OperationStorageError is returned when the DB content is not what is expected.
type OperationStorageError string

func (e OperationStorageError) Error() string {
	return string(e)
}

// Storage cold storage.
type Storage struct {
	*bbolt.DB
	logger log.Logger
}

var _ insidetz.Store = (*Storage)(nil)

// NewStorage returns a cold storage using bboltdb.
func NewStorage(path string, logger log.Logger) (*Storage, func() error, error) {
	// Creating DB
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, nil, fmt.Errorf("can't open database %w", err)
	}

	return &Storage{
		DB:     db,
		logger: logger,
	}, db.Close, nil
}

// NewROStorage returns a read only storage using bboltdb.
func NewROStorage(path string, logger log.Logger) (*Storage, func() error, error) {
	// Creating DB
	db, err := bbolt.Open(path, 0600, &bbolt.Options{ReadOnly: true, Timeout: 1 * time.Second})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open DB for reading at %s: %w", path, err)
	}

	return &Storage{
		DB:     db,
		logger: logger,
	}, db.Close, nil
}

// Index validates and stores both snapshots,
// a DB can only be indexed once.
func (s *Storage) Index(
	tzs *insidetz.TimezonesStorage,
	pre *insidetz.PreindexStorage,
	fileName,
	version string,
) error {
	logger := log.With(s.logger, "component", "indexer")

	// refuse to store what the indexes would reject at load time
	if _, err := exactindex.New(tzs); err != nil {
		return err
	}
	if _, err := fuzzyindex.New(pre); err != nil {
		return err
	}

	err := s.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucket(insidetz.InfoKey()); err != nil {
			return err
		}
		if _, err := tx.CreateBucket([]byte{insidetz.RegionPrefix()}); err != nil {
			return err
		}
		if _, err := tx.CreateBucket([]byte{insidetz.TilePrefix()}); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("can't create bucket into DB: %w", err)
	}

	err = s.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte{insidetz.RegionPrefix()})
		for i := range tzs.Timezones {
			v, err := encode(&tzs.Timezones[i])
			if err != nil {
				return fmt.Errorf("can't encode TimezoneStorage %s: %w", tzs.Timezones[i].Name, err)
			}

			if err := b.Put(insidetz.RegionKey(uint32(i)), v); err != nil {
				return err
			}

			level.Debug(logger).Log(
				"msg", "stored timezone",
				"name", tzs.Timezones[i].Name,
				"polygon_count", len(tzs.Timezones[i].Polygons),
			)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed store timezones into DB: %w", err)
	}

	tiles := make(map[insidetz.TileKey][]string)
	for _, k := range pre.Keys {
		tk := insidetz.TileKey{X: k.X, Y: k.Y, Z: k.Z}
		tiles[tk] = append(tiles[tk], k.Name)
	}

	err = s.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte{insidetz.TilePrefix()})
		for tk, names := range tiles {
			sort.Strings(names)

			v, err := encode(names)
			if err != nil {
				return fmt.Errorf("can't encode tile %v: %w", tk, err)
			}

			if err := b.Put(insidetz.TileStorageKey(tk), v); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed store tiles into DB: %w", err)
	}

	level.Info(logger).Log(
		"msg", "stored snapshots",
		"timezone_count", len(tzs.Timezones),
		"tile_count", len(tiles),
	)

	infos := &insidetz.IndexInfos{
		Filename:        fileName,
		IndexTime:       time.Now(),
		IndexerVersion:  version,
		DataVersion:     tzs.Version,
		PreindexVersion: pre.Version,
		Reduced:         tzs.Reduced,
		TimezoneCount:   uint32(len(tzs.Timezones)),
		TileCount:       uint32(len(tiles)),
		IdxZoom:         pre.IdxZoom,
		AggZoom:         pre.AggZoom,
	}

	return s.writeInfos(infos)
}

func (s *Storage) writeInfos(infos *insidetz.IndexInfos) error {
	v, err := encode(infos)
	if err != nil {
		return fmt.Errorf("failed encoding IndexInfos: %w", err)
	}

	err = s.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(insidetz.InfoKey())

		return b.Put(insidetz.InfoKey(), v)
	})
	if err != nil {
		return fmt.Errorf("failed to store infos: %w", err)
	}

	return nil
}

func encode(v interface{}) ([]byte, error) {
	b := new(bytes.Buffer)
	enc := cbor.NewEncoder(b, cbor.CanonicalEncOptions())
	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// LoadIndexInfos loads index infos from the DB.
func (s *Storage) LoadIndexInfos() (*insidetz.IndexInfos, error) {
	infos := &insidetz.IndexInfos{}

	err := s.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(insidetz.InfoKey())
		if b == nil {
			return OperationStorageError("can't find infos bucket, invalid DB")
		}
		value := b.Get(insidetz.InfoKey())
		if value == nil {
			return OperationStorageError("can't find infos entries, invalid DB")
		}
		dec := cbor.NewDecoder(bytes.NewReader(value))

		return dec.Decode(infos)
	})

	return infos, err
}

// LoadTimezones reads back the regions in table order.
func (s *Storage) LoadTimezones() (*insidetz.TimezonesStorage, error) {
	infos, err := s.LoadIndexInfos()
	if err != nil {
		return nil, err
	}

	tzs := &insidetz.TimezonesStorage{
		Version:   infos.DataVersion,
		Reduced:   infos.Reduced,
		Timezones: make([]insidetz.TimezoneStorage, 0, infos.TimezoneCount),
	}

	err = s.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte{insidetz.RegionPrefix()})
		if b == nil {
			return OperationStorageError("can't find regions bucket, invalid DB")
		}
		c := b.Cursor()
		prefix := []byte{insidetz.RegionPrefix()}

		// keys are big endian positions, the cursor walks them in order
		for key, value := c.Seek(prefix); key != nil && bytes.HasPrefix(key, prefix); key, value = c.Next() {
			var tz insidetz.TimezoneStorage
			dec := cbor.NewDecoder(bytes.NewReader(value))
			if err := dec.Decode(&tz); err != nil {
				return err
			}
			tzs.Timezones = append(tzs.Timezones, tz)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error loading timezones %w", err)
	}

	if len(tzs.Timezones) != int(infos.TimezoneCount) {
		return nil, OperationStorageError(
			fmt.Sprintf("expected %d timezones got %d", infos.TimezoneCount, len(tzs.Timezones)),
		)
	}

	return tzs, nil
}

// LoadPreindex reads back the tile pyramid, one key per tile and name.
func (s *Storage) LoadPreindex() (*insidetz.PreindexStorage, error) {
	infos, err := s.LoadIndexInfos()
	if err != nil {
		return nil, err
	}

	pre := &insidetz.PreindexStorage{
		IdxZoom: infos.IdxZoom,
		AggZoom: infos.AggZoom,
		Version: infos.PreindexVersion,
	}

	err = s.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte{insidetz.TilePrefix()})
		if b == nil {
			return OperationStorageError("can't find tiles bucket, invalid DB")
		}
		c := b.Cursor()
		prefix := []byte{insidetz.TilePrefix()}

		for key, value := c.Seek(prefix); key != nil && bytes.HasPrefix(key, prefix); key, value = c.Next() {
			tk, err := insidetz.TileFromStorageKey(key)
			if err != nil {
				return err
			}

			var names []string
			dec := cbor.NewDecoder(bytes.NewReader(value))
			if err := dec.Decode(&names); err != nil {
				return err
			}

			for _, name := range names {
				pre.Keys = append(pre.Keys, insidetz.PreindexKey{Name: name, X: tk.X, Y: tk.Y, Z: tk.Z})
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error loading preindex %w", err)
	}

	return pre, nil
}
